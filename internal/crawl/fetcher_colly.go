package crawl

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/david/civic-crawler/internal/models"
)

// CollyFetcher is the alternative Fetcher built on colly. Colly brings its
// own robots.txt handling, per-domain rate limiting and charset detection;
// retries for transient statuses follow the same policy as the polite
// fetcher. Selected with --fetcher colly.
type CollyFetcher struct {
	config    FetchConfig
	reg       *Registry
	telemetry Telemetry

	mu         sync.Mutex
	collectors map[string]*colly.Collector
}

func NewCollyFetcher(config FetchConfig, reg *Registry, telemetry Telemetry) *CollyFetcher {
	def := DefaultFetchConfig()
	if config.UserAgent == "" {
		config.UserAgent = def.UserAgent
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
	return &CollyFetcher{
		config:     config,
		reg:        reg,
		telemetry:  telemetry,
		collectors: make(map[string]*colly.Collector),
	}
}

// collector returns the per-host collector, building it on first use so each
// host gets its own rate limit rule from the registry.
func (f *CollyFetcher) collector(host string) *colly.Collector {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.collectors[host]; ok {
		return c
	}

	c := colly.NewCollector(
		colly.UserAgent(f.config.UserAgent),
		colly.AllowedDomains(host),
		colly.MaxBodySize(int(f.config.MaxFileSize)),
		colly.AllowURLRevisit(),
		colly.DetectCharset(),
	)
	c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       f.reg.Delay(host, f.config.RequestDelay),
		RandomDelay: time.Second,
	})
	c.SetRequestTimeout(f.config.Timeout)
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept-Language", f.config.AcceptLanguage)
	})

	f.collectors[host] = c
	return c
}

// Fetch retrieves one item through colly. Like the polite fetcher it emits
// exactly one telemetry event per call.
func (f *CollyFetcher) Fetch(ctx context.Context, item FrontierItem) (*FetchResult, error) {
	host := hostOf(item.URL)
	if host == "" {
		err := newFetchError(models.ErrorParsing, item.URL, 0, "invalid URL", nil)
		f.telemetry.LogError(err.Type, item.URL, err.Message, item.Category)
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= f.config.Retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.config.Retry.backoff(attempt - 1)):
			}
		}

		result, err := f.visit(ctx, item, host, attempt)
		if err == nil {
			for _, hop := range result.Redirects {
				f.telemetry.LogRedirect(hop.From, hop.To)
			}
			f.telemetry.LogSuccess(item.URL, result.ResponseTime, item.Category)
			return result, nil
		}
		lastErr = err

		if fe, ok := err.(*FetchError); ok && !f.config.Retry.IsTransient(fe.Status) {
			break
		}
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	t, msg := models.ErrorServer, lastErr.Error()
	if fe, ok := lastErr.(*FetchError); ok {
		t, msg = fe.Type, fe.Message
	}
	f.telemetry.LogError(t, item.URL, msg, item.Category)
	return nil, lastErr
}

func (f *CollyFetcher) visit(ctx context.Context, item FrontierItem, host string, attempt int) (*FetchResult, error) {
	c := f.collector(host).Clone()
	c.SetRequestTimeout(f.config.Timeout)

	var result *FetchResult
	var visitErr error
	start := time.Now()
	done := make(chan struct{})

	c.OnResponse(func(r *colly.Response) {
		final := r.Request.URL.String()
		var hops []RedirectHop
		if NormalizeURL(final) != NormalizeURL(item.URL) {
			hops = append(hops, RedirectHop{From: item.URL, To: final})
		}
		result = &FetchResult{
			URL:          item.URL,
			FinalURL:     final,
			Status:       r.StatusCode,
			ContentType:  r.Headers.Get("Content-Type"),
			Body:         r.Body,
			ResponseTime: time.Since(start),
			FetchedAt:    time.Now(),
			Attempt:      attempt,
			Redirects:    hops,
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		visitErr = collyError(item.URL, r.StatusCode, err)
	})
	c.OnScraped(func(*colly.Response) { close(done) })

	if err := c.Visit(item.URL); err != nil {
		return nil, collyError(item.URL, 0, err)
	}
	c.Wait()

	select {
	case <-done:
	default:
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if visitErr != nil {
		return nil, visitErr
	}
	if result == nil {
		return nil, newFetchError(models.ErrorServer, item.URL, 0, "no response received", nil)
	}
	return result, nil
}

func collyError(url string, status int, err error) error {
	switch status {
	case http.StatusNotFound:
		return newFetchError(models.ErrorNotFound, url, status, "not found", err)
	case http.StatusUnauthorized, http.StatusForbidden:
		return newFetchError(models.ErrorAccessDenied, url, status, "access denied", err)
	case 0:
		if err != nil && err.Error() == "Forbidden domain" {
			return newFetchError(models.ErrorAccessDenied, url, status, "forbidden domain", err)
		}
		return newFetchError(models.ErrorTimeout, url, status, fmt.Sprintf("request failed: %v", err), err)
	default:
		return newFetchError(models.ErrorServer, url, status, fmt.Sprintf("status %d", status), err)
	}
}
