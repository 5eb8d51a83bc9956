// Package fetch reads raw payloads for feed, sitemap and page URLs.
// A failure for one URL is reported as a *FetchError so callers can log it
// and move on to sibling URLs.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kismet-tech/NLWeb/internal/metrics"
)

const (
	DefaultTimeout        = 30 * time.Second
	DefaultUserAgent      = "NLWebIndexer/1.0 (+https://www.makekismet.com)"
	DefaultMaxContentSize = 10 << 20
)

// FetchError is a network, transport or non-2xx failure for a single URL.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d: %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// FetchResult contains the result of fetching a URL.
type FetchResult struct {
	URL         string
	Body        []byte
	ContentType string
	StatusCode  int
}

// Reader fetches raw payloads. It is safe to share across goroutines.
type Reader struct {
	client         *http.Client
	timeout        time.Duration
	userAgent      string
	maxContentSize int64
}

// NewReader creates a Reader whose requests each carry their own timeout.
func NewReader(timeout time.Duration, userAgent string, maxContentSize int64) *Reader {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if maxContentSize <= 0 {
		maxContentSize = DefaultMaxContentSize
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}

	return &Reader{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (max 5)")
				}
				return nil
			},
		},
		timeout:        timeout,
		userAgent:      userAgent,
		maxContentSize: maxContentSize,
	}
}

// Fetch retrieves rawURL. Timeouts, transport errors and non-2xx statuses all
// come back as *FetchError.
func (r *Reader) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		metrics.FetchesTotal.WithLabelValues("transport_error").Inc()
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("create request: %w", err)}
	}

	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/rss+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := r.client.Do(req)
	if err != nil {
		metrics.FetchesTotal.WithLabelValues("transport_error").Inc()
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.FetchesTotal.WithLabelValues("http_error").Inc()
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxContentSize+1))
	if err != nil {
		metrics.FetchesTotal.WithLabelValues("transport_error").Inc()
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > r.maxContentSize {
		metrics.FetchesTotal.WithLabelValues("transport_error").Inc()
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("content too large (exceeds %d bytes)", r.maxContentSize)}
	}

	metrics.FetchesTotal.WithLabelValues("ok").Inc()
	return &FetchResult{
		URL:         rawURL,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}, nil
}
