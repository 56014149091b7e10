package crawl

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/david/civic-crawler/internal/models"
)

// Telemetry receives one event per fetch attempt outcome plus redirect hops.
// The coverage monitor satisfies this.
type Telemetry interface {
	LogSuccess(url string, responseTime time.Duration, category string)
	LogError(t models.ErrorType, url, message, category string)
	LogRedirect(oldURL, newURL string)
}

// FetchConfig tunes the polite fetcher. Zero values fall back to the
// defaults the crawl run uses.
type FetchConfig struct {
	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration
	RequestDelay   time.Duration
	MaxFileSize    int64
	Retry          RetryPolicy
}

// RetryPolicy is the explicit retry contract: transient failures only,
// exponential backoff with bounded jitter.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.BaseDelay * (1 << (attempt - 1))
	if p.MaxJitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.MaxJitter)))
	}
	return d
}

// IsTransient reports whether a status code should be retried. 404 and other
// 4xx are final; 5xx and 429 are not.
func (p RetryPolicy) IsTransient(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		UserAgent:      "civic-crawler/1.0 (+https://github.com/david/civic-crawler)",
		AcceptLanguage: "en-GB,en;q=0.8",
		Timeout:        30 * time.Second,
		RequestDelay:   2 * time.Second,
		MaxFileSize:    50 << 20,
		Retry: RetryPolicy{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			MaxJitter:   time.Second,
		},
	}
}

// hostGate serializes fetches to one host and enforces the inter-request
// delay. No two in-flight requests share a host.
type hostGate struct {
	mu        sync.Mutex
	lastFetch time.Time
}

// PoliteFetcher is the production Fetcher: robots-respecting, rate limited
// per host, retrying transient failures, capturing redirects.
type PoliteFetcher struct {
	config    FetchConfig
	reg       *Registry
	transport http.RoundTripper
	robots    *robotsCache
	telemetry Telemetry

	mu    sync.Mutex
	gates map[string]*hostGate
}

func NewPoliteFetcher(config FetchConfig, reg *Registry, telemetry Telemetry) *PoliteFetcher {
	def := DefaultFetchConfig()
	if config.UserAgent == "" {
		config.UserAgent = def.UserAgent
	}
	if config.AcceptLanguage == "" {
		config.AcceptLanguage = def.AcceptLanguage
	}
	if config.Timeout == 0 {
		config.Timeout = def.Timeout
	}
	if config.RequestDelay == 0 {
		config.RequestDelay = def.RequestDelay
	}
	if config.MaxFileSize == 0 {
		config.MaxFileSize = def.MaxFileSize
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry = def.Retry
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	robotsClient := &http.Client{Timeout: 10 * time.Second, Transport: transport}

	return &PoliteFetcher{
		config:    config,
		reg:       reg,
		transport: transport,
		robots:    newRobotsCache(robotsClient, config.UserAgent),
		telemetry: telemetry,
		gates:     make(map[string]*hostGate),
	}
}

// SeedAllowed checks robots.txt for a seed URL at startup. Disallowed seeds
// are a configuration error, not a crawl error.
func (f *PoliteFetcher) SeedAllowed(ctx context.Context, rawURL string) bool {
	return f.robots.Allowed(ctx, rawURL)
}

func (f *PoliteFetcher) gate(host string) *hostGate {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.gates[host]
	if !ok {
		g = &hostGate{}
		f.gates[host] = g
	}
	return g
}

// Fetch retrieves one item. It emits exactly one telemetry event: LogSuccess
// on a 2xx, LogError otherwise.
func (f *PoliteFetcher) Fetch(ctx context.Context, item FrontierItem) (*FetchResult, error) {
	host := hostOf(item.URL)
	if host == "" {
		err := newFetchError(models.ErrorParsing, item.URL, 0, "invalid URL", nil)
		f.telemetry.LogError(err.Type, item.URL, err.Message, item.Category)
		return nil, err
	}

	g := f.gate(host)
	g.mu.Lock()
	defer g.mu.Unlock()

	delay := f.reg.Delay(host, f.config.RequestDelay)
	if wait := politeWait(g.lastFetch, delay); wait > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	defer func() { g.lastFetch = time.Now() }()

	if !f.robots.Allowed(ctx, item.URL) {
		err := newFetchError(models.ErrorAccessDenied, item.URL, 0, "blocked by robots.txt", nil)
		f.telemetry.LogError(err.Type, item.URL, err.Message, item.Category)
		return nil, err
	}

	result, err := f.fetchWithRetry(ctx, item)
	if err != nil {
		var msg string
		t := models.ErrorServer
		if fe, ok := err.(*FetchError); ok {
			t, msg = fe.Type, fe.Message
		} else {
			msg = err.Error()
			if ctx.Err() != nil {
				return nil, err // cancellation is not a crawl error
			}
			t = models.ErrorTimeout
		}
		f.telemetry.LogError(t, item.URL, msg, item.Category)
		return nil, err
	}

	for _, hop := range result.Redirects {
		f.telemetry.LogRedirect(hop.From, hop.To)
	}
	f.telemetry.LogSuccess(item.URL, result.ResponseTime, item.Category)
	return result, nil
}

func (f *PoliteFetcher) fetchWithRetry(ctx context.Context, item FrontierItem) (*FetchResult, error) {
	var lastErr error

	for attempt := 1; attempt <= f.config.Retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.config.Retry.backoff(attempt - 1)):
			}
		}

		result, err := f.fetchOnce(ctx, item, attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if fe, ok := err.(*FetchError); ok {
			if !f.config.Retry.IsTransient(fe.Status) {
				return nil, err
			}
		}
		// network timeouts and 5xx fall through to the next attempt
	}

	return nil, lastErr
}

func (f *PoliteFetcher) fetchOnce(ctx context.Context, item FrontierItem, attempt int) (*FetchResult, error) {
	var hops []RedirectHop

	client := &http.Client{
		Timeout:   f.config.Timeout,
		Transport: f.transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("stopped after 5 redirects")
			}
			hops = append(hops, RedirectHop{
				From: via[len(via)-1].URL.String(),
				To:   req.URL.String(),
			})
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.URL, nil)
	if err != nil {
		return nil, newFetchError(models.ErrorParsing, item.URL, 0, "building request", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/pdf,text/csv,*/*;q=0.8")
	req.Header.Set("Accept-Language", f.config.AcceptLanguage)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
			return nil, newFetchError(models.ErrorTimeout, item.URL, 0, "request timed out", err)
		}
		return nil, newFetchError(models.ErrorServer, item.URL, 0, "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// fall through to body read
	case resp.StatusCode == http.StatusNotFound:
		return nil, newFetchError(models.ErrorNotFound, item.URL, resp.StatusCode, "not found", nil)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, newFetchError(models.ErrorAccessDenied, item.URL, resp.StatusCode, "access denied", nil)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, newFetchError(models.ErrorServer, item.URL, resp.StatusCode, "client error "+strconv.Itoa(resp.StatusCode), nil)
	default:
		return nil, newFetchError(models.ErrorServer, item.URL, resp.StatusCode, "server error "+strconv.Itoa(resp.StatusCode), nil)
	}

	// Reject oversized bodies before reading when the server declares a
	// length; cap the read otherwise in case it lies.
	if resp.ContentLength > f.config.MaxFileSize {
		return nil, newFetchError(models.ErrorParsing, item.URL, resp.StatusCode, "content too large", ErrTooLarge)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxFileSize+1))
	if err != nil {
		return nil, newFetchError(models.ErrorServer, item.URL, resp.StatusCode, "reading body", err)
	}
	if int64(len(body)) > f.config.MaxFileSize {
		return nil, newFetchError(models.ErrorParsing, item.URL, resp.StatusCode, "content too large", ErrTooLarge)
	}

	return &FetchResult{
		URL:          item.URL,
		FinalURL:     resp.Request.URL.String(),
		Status:       resp.StatusCode,
		ContentType:  resp.Header.Get("Content-Type"),
		Body:         body,
		ResponseTime: time.Since(start),
		FetchedAt:    time.Now(),
		Attempt:      attempt,
		Redirects:    hops,
	}, nil
}

// politeWait returns how long to wait before the next fetch to a host:
// the remaining delay plus up to one second of jitter.
func politeWait(lastFetch time.Time, delay time.Duration) time.Duration {
	if lastFetch.IsZero() {
		return 0
	}
	elapsed := time.Since(lastFetch)
	wait := delay - elapsed
	if wait < 0 {
		return 0
	}
	return wait + time.Duration(rand.Int63n(int64(time.Second)))
}
