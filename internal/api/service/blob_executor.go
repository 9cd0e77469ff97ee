package service

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/anthanhphan/go-chunked-file-storage/internal/api/config"
	"github.com/anthanhphan/go-chunked-file-storage/internal/api/domain"
	"github.com/anthanhphan/go-chunked-file-storage/pkg/resilience"
	"github.com/anthanhphan/gosdk/logger"
)

// newBlobHostBreaker builds the circuit breaker shared by every blob host call.
func newBlobHostBreaker(cfg *config.Config) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "blobhost",
		FailureThreshold: cfg.App.BreakerFailureThreshold,
		OpenTimeout:      time.Duration(cfg.App.BreakerOpenTimeoutMS) * time.Millisecond,
		IsFailure:        isUpstreamFailure,
		OnStateChange: func(name string, from, to resilience.CircuitBreakerState) {
			logger.Warnw("Circuit breaker state changed", "breaker", name, "from", string(from), "to", string(to))
		},
	})
}

// callBlobHost runs one blob host operation with a per-attempt timeout, retrying
// transient failures with backoff while the circuit allows.
func (s *FileServiceImpl) callBlobHost(ctx context.Context, op string, fn func(context.Context) error) error {
	attempt := 0
	return resilience.Retry(ctx, s.retryPolicy(), isRetryableUpstream, func(ctx context.Context) error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.App.UpstreamTimeout())
		defer cancel()

		err := s.breaker.Execute(attemptCtx, fn)
		if err != nil && isRetryableUpstream(err) {
			logger.Warnw("Blob host call failed", "op", op, "attempt", attempt, "error", err.Error())
		}
		return err
	})
}

// fetchBlob opens a ciphertext stream. No attempt timeout is applied because the
// body outlives the call; ctx alone bounds the transfer.
func (s *FileServiceImpl) fetchBlob(ctx context.Context, url string) (io.ReadCloser, error) {
	var body io.ReadCloser
	err := resilience.Retry(ctx, s.retryPolicy(), isRetryableUpstream, func(ctx context.Context) error {
		return s.breaker.Execute(ctx, func(ctx context.Context) error {
			var err error
			body, err = s.fetcher.Fetch(ctx, url)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// refreshURL asks the blob host for a fresh signed url.
func (s *FileServiceImpl) refreshURL(ctx context.Context, blobRef string) (string, error) {
	var fresh string
	err := s.callBlobHost(ctx, "get_url", func(ctx context.Context) error {
		var err error
		fresh, err = s.blobs.GetBlobURL(ctx, blobRef)
		return err
	})
	return fresh, err
}

// deleteBlobs removes blobs through the executor and returns the deleted count.
func (s *FileServiceImpl) deleteBlobs(ctx context.Context, blobRefs []string) (int, error) {
	var deleted int
	err := s.callBlobHost(ctx, "delete", func(ctx context.Context) error {
		var err error
		deleted, err = s.blobs.DeleteBlobs(ctx, blobRefs)
		return err
	})
	return deleted, err
}

func (s *FileServiceImpl) retryPolicy() resilience.RetryPolicy {
	return resilience.RetryPolicy{
		Attempts:  s.maxRetries(),
		BaseDelay: s.retryBaseDelay(),
		MaxDelay:  5 * time.Second,
	}
}

// isUpstreamFailure reports errors that say the blob host itself is unhealthy.
func isUpstreamFailure(err error) bool {
	return errors.Is(err, domain.ErrUpstreamTransient) || errors.Is(err, context.DeadlineExceeded)
}

// isRetryableUpstream reports errors worth another attempt.
func isRetryableUpstream(err error) bool {
	return isUpstreamFailure(err) || errors.Is(err, resilience.ErrCircuitOpen)
}
