package storage

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/david/civic-crawler/internal/models"
)

// gatedSink blocks every write until the gate opens.
type gatedSink struct {
	MemorySink
	gate chan struct{}
}

func (s *gatedSink) Write(ctx context.Context, kind models.RecordKind, record any) error {
	<-s.gate
	return s.MemorySink.Write(ctx, kind, record)
}

func TestBufferedPreservesOrder(t *testing.T) {
	mem := NewMemorySink()
	b := NewBuffered(mem, 0, 0, nil, nil)

	ctx := context.Background()
	for _, n := range []int{1, 2, 3, 4, 5} {
		if err := b.Write(ctx, models.KindSpendingRecord, n); err != nil {
			t.Fatal(err)
		}
	}
	if err := b.Close(ctx); err != nil {
		t.Fatal(err)
	}

	writes := mem.Writes()
	if len(writes) != 5 {
		t.Fatalf("flushed %d writes, want 5", len(writes))
	}
	for i, w := range writes {
		if w.Record.(int) != i+1 {
			t.Fatalf("write %d = %v, order not preserved", i, w.Record)
		}
	}
}

func TestBufferedWatermarkHooks(t *testing.T) {
	sink := &gatedSink{gate: make(chan struct{})}

	var pauses, resumes atomic.Int32
	b := NewBuffered(sink, 2, 1, func() { pauses.Add(1) }, func() { resumes.Add(1) })

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		if err := b.Write(ctx, models.KindPageRecord, i); err != nil {
			t.Fatal(err)
		}
	}

	// Nothing has drained; pending sits above the high watermark.
	if got := pauses.Load(); got != 1 {
		t.Fatalf("pause hook fired %d times before drain, want 1", got)
	}
	if resumes.Load() != 0 {
		t.Fatal("resume hook fired while the queue was full")
	}

	close(sink.gate)
	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := b.Close(closeCtx); err != nil {
		t.Fatal(err)
	}

	if got := resumes.Load(); got != 1 {
		t.Errorf("resume hook fired %d times after drain, want 1", got)
	}
	if got := sink.CountKind(models.KindPageRecord); got != 4 {
		t.Errorf("drained %d writes, want 4", got)
	}
	if b.Pending() != 0 {
		t.Errorf("pending = %d after close, want 0", b.Pending())
	}
}

type failingSink struct {
	MemorySink
	err error
}

func (s *failingSink) Write(context.Context, models.RecordKind, any) error {
	return s.err
}

func TestBufferedSurfacesSinkErrorOnClose(t *testing.T) {
	wantErr := errors.New("disk full")
	b := NewBuffered(&failingSink{err: wantErr}, 0, 0, nil, nil)

	ctx := context.Background()
	if err := b.Write(ctx, models.KindPageRecord, "x"); err != nil {
		t.Fatalf("queued write returned %v, sink errors must surface on Close", err)
	}
	if err := b.Close(ctx); !errors.Is(err, wantErr) {
		t.Errorf("Close = %v, want %v", err, wantErr)
	}
}
