package fetch

import (
	"context"

	"go.uber.org/zap"
	"resty.dev/v3"

	"github.com/wippyai/qtwasm-loader/errors"
)

// HTTP fetches absolute URLs.
type HTTP struct {
	client *resty.Client
	owned  bool
}

// NewHTTP wraps client, or a new resty client when client is nil.
func NewHTTP(client *resty.Client, logger *zap.Logger) *HTTP {
	owned := false
	if client == nil {
		client = resty.New()
		owned = true
	}
	if logger != nil {
		client.SetLogger(logger.Sugar())
	}
	return &HTTP{client: client, owned: owned}
}

// Fetch implements Fetcher. Any non-2xx status is an error.
func (h *HTTP) Fetch(ctx context.Context, location string) ([]byte, error) {
	resp, err := h.client.R().SetContext(ctx).Get(location)
	if err != nil {
		return nil, errors.Fetch(errors.PhaseFetch, location, err)
	}
	if !resp.IsSuccess() {
		return nil, errors.BadStatus(location, resp.StatusCode())
	}
	return resp.Bytes(), nil
}

// Close closes the client if NewHTTP created it.
func (h *HTTP) Close() error {
	if !h.owned {
		return nil
	}
	return h.client.Close()
}
