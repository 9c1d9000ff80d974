// Package fetch retrieves catalog pages and image sources over HTTP with a
// cache-first policy: every locator is looked up in the durable store before
// the network is touched, and every successful response is recorded there.
// Network failures are classified so callers can tell retryable conditions
// from permanent ones.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"git.home.luguber.info/inful/dexbuilder/internal/cache"
	"git.home.luguber.info/inful/dexbuilder/internal/logfields"
	"git.home.luguber.info/inful/dexbuilder/internal/metrics"
	"git.home.luguber.info/inful/dexbuilder/internal/retry"
)

// Profile selects the header set for a request. The upstream wiki serves
// documents and media from different hosts and inspects fetch metadata
// headers, so the two request shapes differ.
type Profile int

const (
	ProfileDocument Profile = iota
	ProfileImage
)

const (
	defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
	acceptDocument   = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8"
	acceptImage      = "image/avif,image/webp,image/apng,image/svg+xml,image/*,*/*;q=0.8"
	maxContentSize   = 20 << 20 // single page or image source
)

// Options configures a Client.
type Options struct {
	Store      cache.Store
	Policy     retry.Policy
	UserAgent  string
	SiteRoot   string           // Referer for media requests
	Politeness time.Duration    // pre-request delay on cache miss
	Timeout    time.Duration    // per-attempt budget
	Recorder   metrics.Recorder // optional; nil means no metrics
}

// Client is the cache-first HTTP fetcher shared by the page and image stages.
type Client struct {
	http       *http.Client
	store      cache.Store
	policy     retry.Policy
	userAgent  string
	siteRoot   string
	politeness time.Duration
	recorder   metrics.Recorder
	logger     *slog.Logger
}

// New builds a Client. The cache store is required; a nil policy field means
// the default retry policy.
func New(opts Options) *Client {
	policy := opts.Policy
	if policy == (retry.Policy{}) {
		policy = retry.DefaultPolicy()
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}

	return &Client{
		http: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (max 5)")
				}
				return nil
			},
		},
		store:      opts.Store,
		policy:     policy,
		userAgent:  ua,
		siteRoot:   opts.SiteRoot,
		politeness: opts.Politeness,
		recorder:   recorder,
		logger:     slog.Default().With("component", "fetch"),
	}
}

// CacheKey derives the page-cache key for a locator. Slashes become tildes so
// the key is a single path element; everything else passes through, keeping
// keys readable when inspecting the cache by hand.
func CacheKey(url string) string {
	return strings.ReplaceAll(url, "/", "~")
}

// Get returns the body for url, from cache when possible. On a miss it
// applies the politeness delay, fetches with retries for transient failures
// and records the result. The returned error is a *Error for network and
// HTTP failures; context cancellation surfaces as the context's error.
func (c *Client) Get(ctx context.Context, url string, profile Profile) ([]byte, error) {
	data, _, err := c.GetOrigin(ctx, url, profile)
	return data, err
}

// GetOrigin is Get plus whether the body came from the durable cache.
func (c *Client) GetOrigin(ctx context.Context, url string, profile Profile) ([]byte, bool, error) {
	key := CacheKey(url)
	data, err := c.store.ReadPage(ctx, key)
	if err == nil {
		c.logger.Debug("cache hit", logfields.URL(url))
		return data, true, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		return nil, false, fmt.Errorf("read cache for %s: %w", url, err)
	}

	attempts := c.policy.MaxRetries + 1
	for attempt := 1; ; attempt++ {
		if err := c.pause(ctx); err != nil {
			return nil, false, err
		}

		data, ferr := c.fetchOnce(ctx, url, profile)
		if ferr == nil {
			if werr := c.store.WritePage(ctx, key, data); werr != nil {
				return nil, false, fmt.Errorf("record %s in cache: %w", url, werr)
			}
			return data, false, nil
		}

		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		var fe *Error
		if errors.As(ferr, &fe) && fe.Retryable() {
			if attempt < attempts {
				delay := c.policy.Delay(attempt)
				c.recorder.IncFetchRetry()
				c.logger.Warn("retrying fetch",
					logfields.URL(url), logfields.Attempt(attempt), slog.Duration("delay", delay), logfields.Error(ferr))
				select {
				case <-time.After(delay):
					continue
				case <-ctx.Done():
					return nil, false, ctx.Err()
				}
			}
			c.recorder.IncFetchRetryExhausted()
		}
		return nil, false, ferr
	}
}

// pause applies the politeness delay, honoring cancellation.
func (c *Client) pause(ctx context.Context) error {
	if c.politeness <= 0 {
		return nil
	}
	select {
	case <-time.After(c.politeness):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) fetchOnce(ctx context.Context, url string, profile Profile) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Kind: KindPermanentHTTP, URL: url, Err: err}
	}
	c.setHeaders(req, profile)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &Error{Kind: KindNotFound, URL: url, Status: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &Error{Kind: KindPermanentHTTP, URL: url, Status: resp.StatusCode}
	}

	limitReader := io.LimitReader(resp.Body, maxContentSize+1)
	body, err := io.ReadAll(limitReader)
	if err != nil {
		return nil, classifyTransport(url, err)
	}
	if len(body) > maxContentSize {
		return nil, &Error{Kind: KindPermanentHTTP, URL: url, Err: fmt.Errorf("content exceeds %d bytes", maxContentSize)}
	}
	return body, nil
}

func (c *Client) setHeaders(req *http.Request, profile Profile) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	switch profile {
	case ProfileImage:
		req.Header.Set("Accept", acceptImage)
		req.Header.Set("Sec-Fetch-Dest", "image")
		req.Header.Set("Sec-Fetch-Mode", "no-cors")
		req.Header.Set("Sec-Fetch-Site", "same-site")
		if c.siteRoot != "" {
			req.Header.Set("Referer", c.siteRoot+"/")
		}
	default:
		req.Header.Set("Accept", acceptDocument)
		req.Header.Set("Sec-Fetch-Dest", "document")
		req.Header.Set("Sec-Fetch-Mode", "navigate")
		req.Header.Set("Sec-Fetch-Site", "none")
	}
}

// classifyTransport maps a transport-level failure onto the error taxonomy.
func classifyTransport(url string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, URL: url, Err: err}
	}
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) && ne.Timeout() {
		return &Error{Kind: KindTimeout, URL: url, Err: err}
	}
	return &Error{Kind: KindTransient, URL: url, Err: err}
}
