package crawl

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func richTransparencyPage() []byte {
	words := strings.Repeat("spending data for the financial year ", 60)
	return []byte(`<!DOCTYPE html>
<html><body>
<main>
<h1>Transparency and spending</h1>
<p>Published January 2026. Contact transparency@bolton.gov.uk or 01204 333 333.</p>
<p>` + words + `</p>
<table><tr><th>Supplier</th><th>Amount</th></tr><tr><td>Acme</td><td>£1,200</td></tr></table>
<ul>
<li><a href="/downloads/spending-q1.csv">Spending over £500 Q1</a></li>
<li><a href="/transparency/contracts">Contracts register</a></li>
<li><a href="/transparency/performance">Performance</a></li>
<li><a href="/transparency/foi">FOI disclosure log</a></li>
</ul>
</main>
</body></html>`)
}

func TestScoreHTMLDeterministic(t *testing.T) {
	body := richTransparencyPage()
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	first := ScoreHTML(body, "https://www.bolton.gov.uk/transparency", "transparency", now)
	for i := 0; i < 3; i++ {
		again := ScoreHTML(body, "https://www.bolton.gov.uk/transparency", "transparency", now)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("score changed between runs:\n%+v\n%+v", first, again)
		}
	}
}

func TestScoreHTMLRichPage(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	score := ScoreHTML(richTransparencyPage(), "https://www.bolton.gov.uk/transparency", "transparency", now)

	if score.OverallScore < 40 {
		t.Errorf("rich transparency page scored %d, want >= 40 (%+v)", score.OverallScore, score.Components)
	}
	if score.OverallScore > 100 {
		t.Errorf("score %d exceeds the 100 cap", score.OverallScore)
	}
	if score.Components["structure"] == 0 {
		t.Error("page with table, list and <main> got structure 0")
	}
	if score.Components["contact"] == 0 {
		t.Error("page with email and phone got contact 0")
	}
	if score.Components["citation"] == 0 {
		t.Error("page with same-domain and file links got citation 0")
	}
	if score.Components["freshness"] != 10 {
		t.Errorf("freshness = %d for a 2026 date scored in 2026, want 10", score.Components["freshness"])
	}
}

func TestScoreHTMLEmptyPage(t *testing.T) {
	score := ScoreHTML([]byte("<html><body></body></html>"), "https://www.bolton.gov.uk/x", "services", time.Now())
	if score.OverallScore != 0 {
		t.Errorf("empty page scored %d, want 0", score.OverallScore)
	}
	if score.Tier != "poor" {
		t.Errorf("empty page tier = %q, want poor", score.Tier)
	}
}

func TestScoreHTMLDeepOutline(t *testing.T) {
	flat := []byte(`<html><body><h1>Budget</h1><h2>Revenue</h2><p>Figures below.</p></body></html>`)
	deep := []byte(`<html><body><h1>Budget</h1><h2>Revenue</h2><h5>Detail line</h5><p>Figures below.</p></body></html>`)
	now := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	url := "https://www.bolton.gov.uk/budgets"

	f := ScoreHTML(flat, url, "transparency", now)
	d := ScoreHTML(deep, url, "transparency", now)
	if d.Components["content"] == 0 {
		t.Error("deep outline page lost the heading-presence credit")
	}
	if f.Components["content"] != d.Components["content"]+5 {
		t.Errorf("outline depth must cost one credit only: flat=%d deep=%d",
			f.Components["content"], d.Components["content"])
	}
}

func TestScoreHTMLMeetingsBonus(t *testing.T) {
	base := `<html><body><main><h1>Committee</h1>
<p>The planning committee met on 2026-01-15.</p>
%s
</main></body></html>`
	withAgenda := []byte(strings.Replace(base, "%s",
		`<a href="/documents/agenda-pack.pdf">Agenda pack</a>`, 1))
	without := []byte(strings.Replace(base, "%s",
		`<a href="/documents/budget.pdf">Budget</a>`, 1))

	now := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	url := "https://bolton.moderngov.co.uk/mgMeeting.aspx"

	a := ScoreHTML(withAgenda, url, "meetings", now)
	b := ScoreHTML(without, url, "meetings", now)
	if a.OverallScore != b.OverallScore+5 {
		t.Errorf("agenda citation bonus: with=%d without=%d, want +5", a.OverallScore, b.OverallScore)
	}
}

func TestQualityTier(t *testing.T) {
	cases := []struct {
		score int
		want  string
	}{
		{95, "excellent"}, {80, "excellent"}, {79, "good"}, {60, "good"},
		{59, "fair"}, {40, "fair"}, {39, "poor"}, {0, "poor"},
	}
	for _, tc := range cases {
		if got := qualityTier(tc.score); got != tc.want {
			t.Errorf("qualityTier(%d) = %q, want %q", tc.score, got, tc.want)
		}
	}
}
