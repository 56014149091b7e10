package crawl

import (
	"net/url"
	"strings"
)

// Session-id style params never distinguish resources; they would defeat the
// frontier's seen set.
var sessionParams = []string{
	"phpsessid", "jsessionid", "sessionid", "session", "sid", "s_cid",
	"fbclid", "gclid", "mc_cid", "mc_eid", "mkt_tok", "ref",
}

// NormalizeURL returns the canonical form used by the seen set: lower-cased
// scheme and host, fragment stripped, query keys sorted, tracking and session
// params dropped. Invalid URLs come back unchanged.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		if strings.HasPrefix(strings.ToLower(k), "utm_") {
			q.Del(k)
			continue
		}
		for _, p := range sessionParams {
			if strings.EqualFold(k, p) {
				q.Del(k)
				break
			}
		}
	}

	// url.Values.Encode sorts keys, which gives the stable ordering the
	// dedup set needs.
	u.RawQuery = q.Encode()

	// Trailing slash on a bare path is not significant.
	if u.Path == "/" {
		u.Path = ""
	}

	return u.String()
}

// hostOf extracts the lower-cased host from a URL, or "" if unparseable.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
