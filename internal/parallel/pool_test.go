package parallel

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
)

func TestPool_Create(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		want    int
	}{
		{"explicit", 4, 4},
		{"zero uses GOMAXPROCS", 0, runtime.GOMAXPROCS(0)},
		{"negative uses GOMAXPROCS", -3, runtime.GOMAXPROCS(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.workers)
			defer p.Close()
			if p.Workers() != tt.want {
				t.Errorf("Workers() = %d, want %d", p.Workers(), tt.want)
			}
		})
	}
}

func TestPool_RowsCoversEveryRowOnce(t *testing.T) {
	for _, workers := range []int{1, 3, 8} {
		for _, rows := range []int{1, 7, 64, 801} {
			p := New(workers)
			seen := make([]int32, rows)
			err := p.Rows(context.Background(), rows, func(y0, y1 int) {
				if y0 >= y1 {
					t.Errorf("empty band [%d, %d)", y0, y1)
				}
				for y := y0; y < y1; y++ {
					atomic.AddInt32(&seen[y], 1)
				}
			})
			p.Close()
			if err != nil {
				t.Fatalf("Rows: %v", err)
			}
			for y, n := range seen {
				if n != 1 {
					t.Fatalf("workers=%d rows=%d: row %d visited %d times", workers, rows, y, n)
				}
			}
		}
	}
}

func TestPool_RowsZero(t *testing.T) {
	p := New(2)
	defer p.Close()
	called := false
	if err := p.Rows(context.Background(), 0, func(int, int) { called = true }); err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if called {
		t.Error("fn called for zero rows")
	}
}

func TestPool_RowsCancelled(t *testing.T) {
	p := New(4)
	defer p.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int32
	err := p.Rows(ctx, 100, func(int, int) { calls.Add(1) })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Rows error = %v, want context.Canceled", err)
	}
	if calls.Load() != 0 {
		t.Errorf("%d bands ran after cancellation", calls.Load())
	}
}

func TestPool_ClosedRunsInline(t *testing.T) {
	p := New(4)
	p.Close()
	p.Close()

	var total atomic.Int32
	if err := p.Rows(context.Background(), 10, func(y0, y1 int) { total.Add(int32(y1 - y0)) }); err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if total.Load() != 10 {
		t.Errorf("covered %d rows, want 10", total.Load())
	}
}

func TestPool_ConcurrentRows(t *testing.T) {
	p := New(4)
	defer p.Close()

	var wg sync.WaitGroup
	var total atomic.Int64
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Rows(context.Background(), 50, func(y0, y1 int) { total.Add(int64(y1 - y0)) })
		}()
	}
	wg.Wait()
	if total.Load() != 8*50 {
		t.Errorf("covered %d rows, want %d", total.Load(), 8*50)
	}
}

func BenchmarkPool_Rows(b *testing.B) {
	p := New(0)
	defer p.Close()
	ctx := context.Background()
	for b.Loop() {
		_ = p.Rows(ctx, 800, func(y0, y1 int) {})
	}
}
