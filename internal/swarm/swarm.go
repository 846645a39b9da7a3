// Package swarm runs one callback per worker and joins them.
package swarm

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

var (
	ErrWorkerPanic = errors.New("worker panicked")
	ErrWaitAborted = errors.New("wait aborted before all workers returned")
)

// Swarm is a fixed-size worker pool. Every Execute call runs the callback
// exactly once per worker.
type Swarm struct {
	workers int
}

// New returns a pool of workers goroutines; workers <= 0 uses GOMAXPROCS.
func New(workers int) *Swarm {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Swarm{workers: workers}
}

func (s *Swarm) Workers() int {
	return s.workers
}

// Group is the handle of one Execute call.
type Group struct {
	done chan struct{}
	err  error
}

func (s *Swarm) Execute(fn func(workerID, workerCount int)) *Group {
	g := &Group{done: make(chan struct{})}

	var eg errgroup.Group
	eg.SetLimit(s.workers)
	for id := 0; id < s.workers; id++ {
		eg.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: worker %d: %v", ErrWorkerPanic, id, r)
				}
			}()
			fn(id, s.workers)
			return nil
		})
	}

	go func() {
		g.err = eg.Wait()
		close(g.done)
	}()
	return g
}

// Wait blocks until every worker returned or ctx is done. After an aborted
// wait the workers may still be running and their shared state is undefined.
func (g *Group) Wait(ctx context.Context) error {
	select {
	case <-g.done:
		return g.err
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrWaitAborted, ctx.Err())
	}
}

// Done is closed once every worker returned.
func (g *Group) Done() <-chan struct{} {
	return g.done
}
