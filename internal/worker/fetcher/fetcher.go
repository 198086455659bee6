// Package fetcher downloads source assets to local scratch storage.
// Network failures retry with bounded exponential backoff; a file that
// arrives below its minimum size fails immediately.
package fetcher

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"loopmix/internal/pkg/errors"
	"loopmix/internal/pkg/logger"
)

// errTooLarge marks a source past the configured size cap. The cap is a
// property of the source, so retrying cannot help.
var errTooLarge = stderrors.New("download exceeds size limit")

// Fetcher retrieves remote assets over HTTP.
type Fetcher struct {
	client   *http.Client
	retries  int
	maxBytes int64
	backoff  time.Duration
	log      *logger.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithBackoff overrides the base backoff interval (used by tests).
func WithBackoff(d time.Duration) Option {
	return func(f *Fetcher) { f.backoff = d }
}

// New creates a fetcher. timeout bounds each individual attempt; retries
// is the number of re-attempts after the first failure.
func New(timeout time.Duration, retries int, maxBytes int64, log *logger.Logger, opts ...Option) *Fetcher {
	if log == nil {
		log = logger.NewDefault()
	}
	f := &Fetcher{
		client:   &http.Client{Timeout: timeout},
		retries:  retries,
		maxBytes: maxBytes,
		backoff:  time.Second,
		log:      log.WithComponent("fetcher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads url to dest and validates the minimum size. Partial
// downloads are removed before returning an error.
func (f *Fetcher) Fetch(ctx context.Context, url, dest string, minBytes int64) error {
	log := f.log.FromContext(ctx)

	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			delay := f.backoff << (attempt - 1)
			log.Warn("retrying download",
				"url", url,
				"attempt", attempt,
				"delay_ms", delay.Milliseconds(),
				"error", lastErr.Error(),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return errors.WrapWithCode(ctx.Err(), errors.CodeFetch, "fetcher.fetch", "canceled during backoff")
			}
		}

		size, err := f.download(ctx, url, dest)
		if err != nil {
			os.Remove(dest)
			if stderrors.Is(err, errTooLarge) {
				return errors.WrapWithCode(err, errors.CodeFetch, "fetcher.fetch", "source too large").
					WithField("url", url)
			}
			lastErr = err
			continue
		}

		if size < minBytes {
			os.Remove(dest)
			return errors.Fetchf("downloaded file too small: %d bytes (minimum %d)", size, minBytes).
				WithField("url", url)
		}

		log.Debug("download complete", "url", url, "size_bytes", size)
		return nil
	}

	return errors.WrapWithCode(lastErr, errors.CodeFetch, "fetcher.fetch",
		fmt.Sprintf("download failed after %d attempts", f.retries+1))
}

func (f *Fetcher) download(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	out, err := os.Create(dest)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	limited := &io.LimitedReader{R: resp.Body, N: f.maxBytes + 1}
	written, err := io.Copy(out, limited)
	if err != nil {
		return 0, fmt.Errorf("writing download: %w", err)
	}
	if written > f.maxBytes {
		return 0, fmt.Errorf("%w of %d bytes", errTooLarge, f.maxBytes)
	}

	return written, nil
}
