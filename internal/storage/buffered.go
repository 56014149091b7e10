package storage

import (
	"context"
	"sync"

	"github.com/david/civic-crawler/internal/models"
)

// Watermarks for the buffered sink's backpressure hooks.
const (
	DefaultHighWater = 1024
	DefaultLowWater  = 512
)

type bufferedWrite struct {
	kind   models.RecordKind
	record any
}

// Buffered decouples record producers from a slow sink. Writes queue in
// memory and drain on a single background goroutine, preserving write order.
// When the queue length crosses the high watermark the pause hook fires;
// when it drains below the low watermark the resume hook fires.
type Buffered struct {
	sink     Sink
	queue    chan bufferedWrite
	high     int
	low      int
	onPause  func()
	onResume func()

	mu      sync.Mutex
	pending int
	paused  bool
	err     error
	done    chan struct{}
}

func NewBuffered(sink Sink, high, low int, onPause, onResume func()) *Buffered {
	if high <= 0 {
		high = DefaultHighWater
	}
	if low <= 0 || low >= high {
		low = high / 2
	}
	b := &Buffered{
		sink:     sink,
		queue:    make(chan bufferedWrite, 2*high),
		high:     high,
		low:      low,
		onPause:  onPause,
		onResume: onResume,
		done:     make(chan struct{}),
	}
	go b.drain()
	return b
}

// Write queues one record. The queued write cannot fail; sink errors surface
// on Close.
func (b *Buffered) Write(ctx context.Context, kind models.RecordKind, record any) error {
	b.mu.Lock()
	if b.err != nil {
		err := b.err
		b.mu.Unlock()
		return err
	}
	b.pending++
	if b.pending > b.high && !b.paused {
		b.paused = true
		if b.onPause != nil {
			b.onPause()
		}
	}
	b.mu.Unlock()

	select {
	case b.queue <- bufferedWrite{kind: kind, record: record}:
		return nil
	case <-ctx.Done():
		b.settle()
		return ctx.Err()
	}
}

func (b *Buffered) drain() {
	defer close(b.done)
	for w := range b.queue {
		if err := b.sink.Write(context.Background(), w.kind, w.record); err != nil {
			b.mu.Lock()
			if b.err == nil {
				b.err = err
			}
			b.mu.Unlock()
		}
		b.settle()
	}
}

func (b *Buffered) settle() {
	b.mu.Lock()
	b.pending--
	if b.paused && b.pending < b.low {
		b.paused = false
		if b.onResume != nil {
			b.onResume()
		}
	}
	b.mu.Unlock()
}

// Pending reports the queued-but-unwritten record count.
func (b *Buffered) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// Close flushes the queue, closes the underlying sink, and returns the first
// write error seen, if any.
func (b *Buffered) Close(ctx context.Context) error {
	close(b.queue)
	select {
	case <-b.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	closeErr := b.sink.Close(ctx)

	b.mu.Lock()
	err := b.err
	b.mu.Unlock()
	if err != nil {
		return err
	}
	return closeErr
}
