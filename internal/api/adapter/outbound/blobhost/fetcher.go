package blobhost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/anthanhphan/go-chunked-file-storage/internal/api/domain"
	"github.com/anthanhphan/go-chunked-file-storage/internal/api/port"
)

// HTTPFetcher opens blob urls with a plain GET.
type HTTPFetcher struct {
	client *http.Client
}

var _ port.BlobFetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher returns a fetcher whose response headers must arrive within headerTimeout.
// The body itself is bounded only by the caller's context.
func NewHTTPFetcher(headerTimeout time.Duration) *HTTPFetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = headerTimeout
	transport.MaxIdleConnsPerHost = 32
	return &HTTPFetcher{client: &http.Client{Transport: transport}}
}

// Fetch returns the response body of url. 401, 403, 404 and 410 mean the
// signed link was refused; 429, 5xx and network errors are transient.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build blob request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: fetch blob: %v", domain.ErrUpstreamTransient, err)
	}

	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		return resp.Body, nil
	case code == http.StatusUnauthorized, code == http.StatusForbidden,
		code == http.StatusNotFound, code == http.StatusGone:
		drain(resp.Body)
		return nil, fmt.Errorf("%w: blob host answered %d", domain.ErrUpstreamLinkExpired, code)
	case code == http.StatusTooManyRequests, code >= 500:
		drain(resp.Body)
		return nil, fmt.Errorf("%w: blob host answered %d", domain.ErrUpstreamTransient, code)
	default:
		drain(resp.Body)
		return nil, fmt.Errorf("blob host answered %d", code)
	}
}

// drain discards a small error body so the connection can be reused.
func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4<<10))
	_ = body.Close()
}
