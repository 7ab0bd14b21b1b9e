// Package fetcher wraps resty.Client with the retry, timeout, and
// streaming behavior the scheduler needs for manifests and segments.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-resty/resty/v2"
)

// Fetcher performs ranged/streamed GETs with cancellation and retry.
type Fetcher struct {
	resty   *resty.Client
	logger  *slog.Logger
	cache   *ManifestCache
}

// Config holds construction parameters for a Fetcher.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	Logger    *slog.Logger
}

// New creates a Fetcher with sane defaults applied for any zero field.
func New(cfg Config) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "aigrabber-core/1.0"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "*/*").
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))

	return &Fetcher{
		resty:  client,
		logger: cfg.Logger,
		cache:  NewManifestCache(100),
	}
}

// FetchManifest performs a GET and caches the body by absolute URL, up
// to the §5 cap of 100 entries. Retries with exponential backoff and
// jitter up to 3 attempts.
func (f *Fetcher) FetchManifest(ctx context.Context, url string) ([]byte, error) {
	if body, ok := f.cache.Get(url); ok {
		return body, nil
	}

	body, err := f.getWithRetry(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	f.cache.Put(url, body)
	return body, nil
}

// segmentBackOff is base 500ms, factor 2, jitter +/-20%, matching the
// manifest fetch policy.
func segmentBackOff() backoff.BackOff {
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(500*time.Millisecond),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0.2),
	)
}

// FetchSegment streams a segment's bytes directly to w without buffering
// the whole body in memory, honoring an optional byte range.
func (f *Fetcher) FetchSegment(ctx context.Context, url string, rangeHeader string, w io.Writer) (int64, error) {
	var written int64
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		written = 0
		req := f.resty.R().SetContext(ctx).SetDoNotParseResponse(true)
		if rangeHeader != "" {
			req.SetHeader("Range", rangeHeader)
		}
		resp, err := req.Get(url)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.RawBody().Close()

		if resp.StatusCode() >= 400 {
			return struct{}{}, fmt.Errorf("segment fetch failed: HTTP %d", resp.StatusCode())
		}

		n, copyErr := io.Copy(w, resp.RawBody())
		written = n
		return struct{}{}, copyErr
	},
		backoff.WithBackOff(segmentBackOff()),
		backoff.WithMaxTries(3),
	)
	return written, err
}

// FetchDirect streams a single URL body to w, reporting the declared
// content length (-1 if unknown) and cumulative bytes written to
// onChunk after every write. Used for the "direct" stream type, where
// the whole resource is one file rather than a segmented manifest.
func (f *Fetcher) FetchDirect(ctx context.Context, url string, w io.Writer, onChunk func(total, downloaded int64)) error {
	req := f.resty.R().SetContext(ctx).SetDoNotParseResponse(true)
	resp, err := req.Get(url)
	if err != nil {
		return err
	}
	defer resp.RawBody().Close()

	if resp.StatusCode() >= 400 {
		return fmt.Errorf("direct fetch failed: HTTP %d", resp.StatusCode())
	}

	total := int64(-1)
	if resp.RawResponse != nil {
		total = resp.RawResponse.ContentLength
	}

	pw := &progressWriter{w: w, onWrite: func(downloaded int64) {
		if onChunk != nil {
			onChunk(total, downloaded)
		}
	}}
	_, err = io.Copy(pw, resp.RawBody())
	return err
}

type progressWriter struct {
	w        io.Writer
	written  int64
	onWrite  func(downloaded int64)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	if p.onWrite != nil {
		p.onWrite(p.written)
	}
	return n, err
}

func (f *Fetcher) getWithRetry(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	result, err := backoff.Retry(ctx, func() ([]byte, error) {
		req := f.resty.R().SetContext(ctx)
		for k, v := range headers {
			req.SetHeader(k, v)
		}
		resp, err := req.Get(url)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= 500 || resp.StatusCode() == 429 {
			return nil, fmt.Errorf("transient HTTP error %d for %s", resp.StatusCode(), url)
		}
		if resp.StatusCode() >= 400 {
			return nil, backoff.Permanent(fmt.Errorf("HTTP error %d for %s", resp.StatusCode(), url))
		}
		return resp.Body(), nil
	},
		backoff.WithBackOff(segmentBackOff()),
		backoff.WithMaxTries(3),
	)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	return result, nil
}
