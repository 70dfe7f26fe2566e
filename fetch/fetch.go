package fetch

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"resty.dev/v3"
)

// Fetcher reads the contents of a location.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// Func adapts a function to the Fetcher interface.
type Func func(ctx context.Context, location string) ([]byte, error)

// Fetch calls f(ctx, location).
func (f Func) Fetch(ctx context.Context, location string) ([]byte, error) {
	return f(ctx, location)
}

// Option configures a Router.
type Option func(*options)

type options struct {
	logger *zap.Logger
	client *resty.Client
}

// WithLogger sets the logger used by the HTTP client.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithClient sets the resty client used for HTTP locations.
func WithClient(c *resty.Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// Router dispatches locations to the HTTP or directory fetcher.
type Router struct {
	http *HTTP
	dir  *Dir
	base string
}

// New returns a Router resolving relative locations against base.
// An empty base reads from the working directory.
func New(base string, opts ...Option) *Router {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	r := &Router{
		http: NewHTTP(o.client, o.logger),
		base: base,
	}
	if !IsURL(base) {
		r.dir = NewDir(base)
	}
	return r
}

// Fetch implements Fetcher.
func (r *Router) Fetch(ctx context.Context, location string) ([]byte, error) {
	if IsURL(location) {
		return r.http.Fetch(ctx, location)
	}
	if r.dir == nil {
		return r.http.Fetch(ctx, Join(r.base, location))
	}
	return r.dir.Fetch(ctx, location)
}

// Close releases the HTTP client.
func (r *Router) Close() error {
	return r.http.Close()
}

// IsURL reports whether location is an absolute http or https URL.
func IsURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// Join appends a relative location to a URL base.
func Join(base, location string) string {
	if base == "" {
		return location
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(location, "/")
}
