package crawl

import "testing"

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases scheme and host", "HTTPS://WWW.Bolton.GOV.UK/Transparency", "https://www.bolton.gov.uk/Transparency"},
		{"strips fragment", "https://www.bolton.gov.uk/page#section-2", "https://www.bolton.gov.uk/page"},
		{"sorts query keys", "https://www.bolton.gov.uk/search?b=2&a=1", "https://www.bolton.gov.uk/search?a=1&b=2"},
		{"drops tracking params", "https://www.bolton.gov.uk/page?utm_source=x&id=5", "https://www.bolton.gov.uk/page?id=5"},
		{"drops session params", "https://bolton.moderngov.co.uk/mgAi.aspx?sessionid=abc&ID=9", "https://bolton.moderngov.co.uk/mgAi.aspx?ID=9"},
		{"root slash collapses", "https://www.bolton.gov.uk/", "https://www.bolton.gov.uk"},
		{"path casing preserved", "https://www.bolton.gov.uk/CamelCase/Path", "https://www.bolton.gov.uk/CamelCase/Path"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeURL(tc.in); got != tc.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeURLIdempotent(t *testing.T) {
	urls := []string{
		"https://www.bolton.gov.uk/search?b=2&a=1#frag",
		"HTTP://EXAMPLE.GOV.UK/A/B?utm_campaign=z&x=1",
	}
	for _, u := range urls {
		once := NormalizeURL(u)
		twice := NormalizeURL(once)
		if once != twice {
			t.Errorf("not idempotent: %q -> %q -> %q", u, once, twice)
		}
	}
}
