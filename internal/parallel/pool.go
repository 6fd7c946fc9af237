// Package parallel splits lane grids into row bands and runs them on a fixed
// set of goroutines.
package parallel

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool runs row bands of a lane grid on worker goroutines.
//
// Each worker owns a queue and steals from the others when it runs dry, so a
// band that hits expensive pixels does not stall the rest of the frame.
//
// Thread safety: Pool is safe for concurrent use.
type Pool struct {
	workers int
	queues  []chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

// bandsPerWorker controls how finely a grid is split.
const bandsPerWorker = 4

// New starts a pool. If workers is 0 or negative, GOMAXPROCS is used.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := &Pool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), workers*bandsPerWorker)
	}
	p.running.Store(true)
	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	own := p.queues[id]
	for {
		select {
		case <-p.done:
			drain(own)
			return
		case work := <-own:
			work()
		default:
			if stolen := p.steal(id); stolen != nil {
				stolen()
				continue
			}
			select {
			case <-p.done:
				drain(own)
				return
			case work := <-own:
				work()
			}
		}
	}
}

func drain(q chan func()) {
	for {
		select {
		case work := <-q:
			work()
		default:
			return
		}
	}
}

func (p *Pool) steal(id int) func() {
	for i := range p.workers {
		if i == id {
			continue
		}
		select {
		case work := <-p.queues[i]:
			return work
		default:
		}
	}
	return nil
}

// Rows calls fn for consecutive row bands [y0, y1) covering [0, rows) and
// waits for all of them. Bands not yet started when ctx is cancelled are
// skipped and ctx.Err() is returned. A closed pool runs the bands inline.
func (p *Pool) Rows(ctx context.Context, rows int, fn func(y0, y1 int)) error {
	if rows <= 0 {
		return ctx.Err()
	}
	if !p.running.Load() || p.workers == 1 {
		for y := 0; y < rows; y++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(y, y+1)
		}
		return nil
	}

	band := rows / (p.workers * bandsPerWorker)
	if band < 1 {
		band = 1
	}

	var wg sync.WaitGroup
	i := 0
	for y0 := 0; y0 < rows; y0 += band {
		y1 := min(y0+band, rows)
		wg.Add(1)
		work := func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			fn(y0, y1)
		}
		select {
		case p.queues[i%p.workers] <- work:
		case <-p.done:
			work()
		}
		i++
	}
	wg.Wait()
	return ctx.Err()
}

// Close stops the workers after the queued bands finish. Close is safe to
// call multiple times but must not race with Rows.
func (p *Pool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int { return p.workers }
