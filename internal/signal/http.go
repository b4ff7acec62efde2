package signal

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"vibration-diag/internal/common"

	"github.com/go-resty/resty/v2"
)

// HTTPSource fetches signal files over http(s).
type HTTPSource struct {
	rest      *resty.Client
	Column    int
	Separator rune
}

// NewHTTPSource creates a remote source with the given request timeout.
func NewHTTPSource(column int, separator rune, timeout time.Duration) *HTTPSource {
	if separator == 0 {
		separator = ','
	}
	r := resty.New()
	r.SetTimeout(timeout)
	r.SetRetryCount(2)
	r.SetRetryWaitTime(200 * time.Millisecond)
	r.SetHeader("Accept", "text/csv, text/plain")
	return &HTTPSource{rest: r, Column: column, Separator: separator}
}

func (s *HTTPSource) Read(ctx context.Context, location string) ([]float64, error) {
	resp, err := s.rest.R().SetContext(ctx).Get(location)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w: %v", location, common.ErrNotFound, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %w: status %d", location, common.ErrNotFound, resp.StatusCode())
	}

	samples, err := ParseSamples(bytes.NewReader(resp.Body()), s.Column, s.Separator)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	return samples, nil
}

// Router dispatches http(s) locations to a remote source and everything
// else to the local file source.
type Router struct {
	File   *CSVSource
	Remote *HTTPSource
}

func (r *Router) Read(ctx context.Context, location string) ([]float64, error) {
	if IsRemote(location) {
		if r.Remote == nil {
			return nil, fmt.Errorf("fetch %s: %w: remote sources disabled", location, common.ErrNotFound)
		}
		return r.Remote.Read(ctx, location)
	}
	return r.File.Read(ctx, location)
}

// Stat reports file stamps for local locations only; remote locations are
// never cached.
func (r *Router) Stat(location string) (Stamp, error) {
	if IsRemote(location) {
		return Stamp{}, fmt.Errorf("stat %s: %w: remote location", location, common.ErrNotFound)
	}
	return r.File.Stat(location)
}

// IsRemote reports whether location is an http(s) URL.
func IsRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}
