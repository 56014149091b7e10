package crawl

import (
	"container/heap"
	"encoding/json"
	"os"
	"sync"
)

// EnqueueVerdict is the frontier's answer for one candidate URL.
type EnqueueVerdict string

const (
	EnqueueAccepted   EnqueueVerdict = "accepted"
	EnqueueDuplicate  EnqueueVerdict = "rejected-duplicate"
	EnqueueQuota      EnqueueVerdict = "rejected-quota"
	EnqueueOutOfScope EnqueueVerdict = "rejected-out-of-scope"
	EnqueueTooDeep    EnqueueVerdict = "rejected-too-deep"
)

// Frontier is the pending-URL queue: highest priority first, FIFO within a
// tier. All mutation happens under one mutex; workers are clients.
type Frontier struct {
	mu       sync.Mutex
	reg      *Registry
	maxDepth int
	maxURLs  int // global dequeue cap, 0 = unlimited

	queue         itemHeap
	seen          map[string]bool
	dequeued      map[string]int // per-host dequeue count, enforces quota
	totalDequeued int
	nextSeq       uint64
	accepted      int
	paused        bool
	cond          *sync.Cond
}

func NewFrontier(reg *Registry, maxDepth, maxURLs int) *Frontier {
	f := &Frontier{
		reg:      reg,
		maxDepth: maxDepth,
		maxURLs:  maxURLs,
		seen:     make(map[string]bool),
		dequeued: make(map[string]int),
	}
	f.cond = sync.NewCond(&f.mu)
	heap.Init(&f.queue)
	return f
}

// Enqueue applies the rejection rules in order: dedup, allowlist, quota,
// depth. Accepted URLs enter the seen set immediately.
func (f *Frontier) Enqueue(item FrontierItem) EnqueueVerdict {
	f.mu.Lock()
	defer f.mu.Unlock()

	norm := NormalizeURL(item.URL)
	if f.seen[norm] {
		return EnqueueDuplicate
	}

	host := hostOf(norm)
	if host == "" || !f.reg.Allowed(host) {
		return EnqueueOutOfScope
	}

	if quota := f.reg.Quota(host); quota > 0 && f.dequeued[host] >= quota {
		return EnqueueQuota
	}

	if item.Depth > f.maxDepth {
		return EnqueueTooDeep
	}

	item.URL = norm
	item.seq = f.nextSeq
	f.nextSeq++
	f.seen[norm] = true
	f.accepted++
	heap.Push(&f.queue, item)
	f.cond.Signal()
	return EnqueueAccepted
}

// Dequeue pops the highest-priority item, skipping hosts that have hit their
// quota. Returns false when the queue is empty.
func (f *Frontier) Dequeue() (FrontierItem, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for f.paused && f.queue.Len() > 0 {
		f.cond.Wait()
	}

	if f.maxURLs > 0 && f.totalDequeued >= f.maxURLs {
		return FrontierItem{}, false
	}

	for f.queue.Len() > 0 {
		item := heap.Pop(&f.queue).(FrontierItem)
		host := hostOf(item.URL)
		if quota := f.reg.Quota(host); quota > 0 && f.dequeued[host] >= quota {
			continue
		}
		f.dequeued[host]++
		f.totalDequeued++
		return item, true
	}
	return FrontierItem{}, false
}

// Size returns the number of items waiting in the queue.
func (f *Frontier) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queue.Len()
}

// SeenCount equals the number of accepted enqueues for this run.
func (f *Frontier) SeenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

// MarkSeen records a URL in the seen set without queueing it. Used for
// redirect sources so the old location is never re-crawled.
func (f *Frontier) MarkSeen(rawURL string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen[NormalizeURL(rawURL)] = true
}

// Pause stops Dequeue until Resume; the storage sink's backpressure hook.
func (f *Frontier) Pause() {
	f.mu.Lock()
	f.paused = true
	f.mu.Unlock()
}

func (f *Frontier) Resume() {
	f.mu.Lock()
	f.paused = false
	f.cond.Broadcast()
	f.mu.Unlock()
}

// SaveSeen snapshots the seen set to path so a later run can --resume.
func (f *Frontier) SaveSeen(path string) error {
	f.mu.Lock()
	urls := make([]string, 0, len(f.seen))
	for u := range f.seen {
		urls = append(urls, u)
	}
	f.mu.Unlock()

	data, err := json.MarshalIndent(urls, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadSeen merges a previously saved seen set into this run's.
func (f *Frontier) LoadSeen(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range urls {
		f.seen[u] = true
	}
	return nil
}

// itemHeap orders by priority ascending, then FIFO sequence.
type itemHeap []FrontierItem

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(FrontierItem)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
