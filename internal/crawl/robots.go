package crawl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const robotsTTL = 24 * time.Hour

type robotsEntry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
}

// robotsCache caches parsed robots.txt per host with a 24 h TTL. A fetch
// failure allows everything (fail open) unless the server answered 401/403,
// which robotstxt itself treats as deny-all.
type robotsCache struct {
	mu        sync.Mutex
	client    *http.Client
	userAgent string
	entries   map[string]*robotsEntry
}

func newRobotsCache(client *http.Client, userAgent string) *robotsCache {
	return &robotsCache{
		client:    client,
		userAgent: userAgent,
		entries:   make(map[string]*robotsEntry),
	}
}

// Allowed reports whether the user agent may fetch the URL.
func (rc *robotsCache) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	data := rc.dataFor(ctx, u)
	if data == nil {
		return true
	}
	return data.TestAgent(u.Path, rc.userAgent)
}

func (rc *robotsCache) dataFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	host := u.Host

	rc.mu.Lock()
	entry, ok := rc.entries[host]
	if ok && time.Since(entry.fetchedAt) < robotsTTL {
		rc.mu.Unlock()
		return entry.data
	}
	rc.mu.Unlock()

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", rc.userAgent)

	resp, err := rc.client.Do(req)

	var data *robotstxt.RobotsData
	if err == nil {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
		resp.Body.Close()
		if readErr == nil {
			data, _ = robotstxt.FromStatusAndBytes(resp.StatusCode, body)
		}
	}

	rc.mu.Lock()
	rc.entries[host] = &robotsEntry{data: data, fetchedAt: time.Now()}
	rc.mu.Unlock()
	return data
}
