package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/wippyai/qtwasm-loader/errors"
)

// Static serves fixed in-memory contents. Delay holds per-location latency,
// which makes fetch completion order controllable.
type Static struct {
	Files map[string][]byte
	Delay map[string]time.Duration

	mu      sync.Mutex
	fetched []string
}

// Fetch implements Fetcher. Unknown locations behave like a 404.
func (s *Static) Fetch(ctx context.Context, location string) ([]byte, error) {
	if d := s.Delay[location]; d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	s.mu.Lock()
	s.fetched = append(s.fetched, location)
	s.mu.Unlock()

	data, ok := s.Files[location]
	if !ok {
		return nil, errors.BadStatus(location, 404)
	}
	return data, nil
}

// Fetched returns the locations fetched so far, in completion order.
func (s *Static) Fetched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.fetched...)
}
