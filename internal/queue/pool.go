package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"storyboard/internal/infra"
)

// Pool runs a fixed set of workers on an ants goroutine pool.
type Pool struct {
	pool    *ants.Pool
	workers []*Worker
	logger  infra.Logger
}

func NewPool(workers []*Worker, logger infra.Logger) (*Pool, error) {
	if len(workers) == 0 {
		return nil, fmt.Errorf("worker pool: no workers")
	}
	logger = logger.With().Str("component", "worker_pool").Logger()
	panicHandler := func(p interface{}) {
		logger.Error().Interface("panic", p).Msg("worker pool: worker panicked")
	}
	pool, err := ants.NewPool(len(workers), ants.WithPanicHandler(panicHandler))
	if err != nil {
		return nil, fmt.Errorf("worker pool: %w", err)
	}
	return &Pool{pool: pool, workers: workers, logger: logger}, nil
}

// Run starts every worker and blocks until ctx is done and all have returned.
func (p *Pool) Run(ctx context.Context) error {
	defer p.pool.Release()
	var wg sync.WaitGroup
	for _, w := range p.workers {
		w := w
		wg.Add(1)
		if err := p.pool.Submit(func() {
			defer wg.Done()
			_ = w.Run(ctx)
		}); err != nil {
			wg.Done()
			return fmt.Errorf("worker pool: submit %s: %w", w.ID(), err)
		}
	}
	p.logger.Info().Int("workers", len(p.workers)).Msg("worker pool: running")
	wg.Wait()
	return ctx.Err()
}
