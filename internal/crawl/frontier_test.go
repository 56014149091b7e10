package crawl

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempSeeds(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seeds.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testRegistry(t *testing.T, yaml string) *Registry {
	t.Helper()
	reg, err := LoadRegistry(writeTempSeeds(t, yaml))
	if err != nil {
		t.Fatalf("loading test registry: %v", err)
	}
	return reg
}

const boltonYAML = `
domains:
  - domain: www.bolton.gov.uk
    category: services
    max_urls: 3
    seeds:
      - https://www.bolton.gov.uk/
  - domain: bolton.moderngov.co.uk
    category: meetings
    seeds:
      - https://bolton.moderngov.co.uk/mgListCommittees.aspx
`

func TestFrontierDedup(t *testing.T) {
	f := NewFrontier(testRegistry(t, boltonYAML), 3, 0)

	first := f.Enqueue(FrontierItem{URL: "https://www.bolton.gov.uk/page?b=2&a=1"})
	if first != EnqueueAccepted {
		t.Fatalf("first enqueue = %v, want accepted", first)
	}

	// Same resource in a different surface form.
	dup := f.Enqueue(FrontierItem{URL: "https://WWW.BOLTON.GOV.UK/page?a=1&b=2#frag"})
	if dup != EnqueueDuplicate {
		t.Fatalf("normalized duplicate = %v, want rejected-duplicate", dup)
	}

	item, ok := f.Dequeue()
	if !ok {
		t.Fatal("expected one item")
	}
	// Dequeued URLs stay in the seen set for the rest of the run.
	if again := f.Enqueue(FrontierItem{URL: item.URL}); again != EnqueueDuplicate {
		t.Fatalf("re-enqueue after dequeue = %v, want rejected-duplicate", again)
	}
}

func TestFrontierAllowlist(t *testing.T) {
	f := NewFrontier(testRegistry(t, boltonYAML), 3, 0)
	if v := f.Enqueue(FrontierItem{URL: "https://evil.example.com/"}); v != EnqueueOutOfScope {
		t.Fatalf("off-list host = %v, want rejected-out-of-scope", v)
	}
}

func TestFrontierDepthLimit(t *testing.T) {
	f := NewFrontier(testRegistry(t, boltonYAML), 3, 0)
	if v := f.Enqueue(FrontierItem{URL: "https://www.bolton.gov.uk/deep", Depth: 4}); v != EnqueueTooDeep {
		t.Fatalf("depth maxDepth+1 = %v, want rejected-too-deep", v)
	}
	if v := f.Enqueue(FrontierItem{URL: "https://www.bolton.gov.uk/ok", Depth: 3}); v != EnqueueAccepted {
		t.Fatalf("depth at limit = %v, want accepted", v)
	}
}

func TestFrontierHostQuota(t *testing.T) {
	f := NewFrontier(testRegistry(t, boltonYAML), 3, 0)
	urls := []string{
		"https://www.bolton.gov.uk/1",
		"https://www.bolton.gov.uk/2",
		"https://www.bolton.gov.uk/3",
		"https://www.bolton.gov.uk/4",
	}
	for _, u := range urls {
		f.Enqueue(FrontierItem{URL: u})
	}

	dequeued := 0
	for {
		if _, ok := f.Dequeue(); !ok {
			break
		}
		dequeued++
	}
	if dequeued != 3 {
		t.Fatalf("dequeued %d items for a max_urls=3 host, want 3", dequeued)
	}

	// Once at quota, further enqueues are rejected outright.
	if v := f.Enqueue(FrontierItem{URL: "https://www.bolton.gov.uk/5"}); v != EnqueueQuota {
		t.Fatalf("enqueue past quota = %v, want rejected-quota", v)
	}
}

func TestFrontierGlobalCap(t *testing.T) {
	f := NewFrontier(testRegistry(t, boltonYAML), 3, 2)
	f.Enqueue(FrontierItem{URL: "https://www.bolton.gov.uk/1"})
	f.Enqueue(FrontierItem{URL: "https://www.bolton.gov.uk/2"})
	f.Enqueue(FrontierItem{URL: "https://www.bolton.gov.uk/3"})

	dequeued := 0
	for {
		if _, ok := f.Dequeue(); !ok {
			break
		}
		dequeued++
	}
	if dequeued != 2 {
		t.Fatalf("dequeued %d with --max-urls 2, want 2", dequeued)
	}
}

func TestFrontierPriorityOrder(t *testing.T) {
	f := NewFrontier(testRegistry(t, boltonYAML), 3, 0)

	f.Enqueue(FrontierItem{URL: "https://www.bolton.gov.uk/generic", Priority: PriorityHTML})
	f.Enqueue(FrontierItem{URL: "https://www.bolton.gov.uk/spending.csv", Priority: PriorityFile})
	f.Enqueue(FrontierItem{URL: "https://www.bolton.gov.uk/transparency", Priority: PriorityCategory})
	f.Enqueue(FrontierItem{URL: "https://www.bolton.gov.uk/budget.pdf", Priority: PriorityFile})

	var got []string
	for {
		item, ok := f.Dequeue()
		if !ok {
			break
		}
		got = append(got, item.URL)
	}

	want := []string{
		"https://www.bolton.gov.uk/spending.csv",
		"https://www.bolton.gov.uk/budget.pdf", // FIFO within the file tier
		"https://www.bolton.gov.uk/transparency",
		"https://www.bolton.gov.uk/generic",
	}
	if len(got) != len(want) {
		t.Fatalf("dequeued %d items, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestFrontierMarkSeenBlocksRedirectSource(t *testing.T) {
	f := NewFrontier(testRegistry(t, boltonYAML), 3, 0)
	f.MarkSeen("https://www.bolton.gov.uk/old-location")
	if v := f.Enqueue(FrontierItem{URL: "https://www.bolton.gov.uk/old-location"}); v != EnqueueDuplicate {
		t.Fatalf("redirect source re-enqueue = %v, want rejected-duplicate", v)
	}
}

func TestFrontierSeenSnapshotRoundTrip(t *testing.T) {
	reg := testRegistry(t, boltonYAML)
	path := filepath.Join(t.TempDir(), "seen.json")

	f1 := NewFrontier(reg, 3, 0)
	f1.Enqueue(FrontierItem{URL: "https://www.bolton.gov.uk/visited"})
	if err := f1.SaveSeen(path); err != nil {
		t.Fatal(err)
	}

	f2 := NewFrontier(reg, 3, 0)
	if err := f2.LoadSeen(path); err != nil {
		t.Fatal(err)
	}
	if v := f2.Enqueue(FrontierItem{URL: "https://www.bolton.gov.uk/visited"}); v != EnqueueDuplicate {
		t.Fatalf("resumed frontier re-accepted a seen URL: %v", v)
	}
}
