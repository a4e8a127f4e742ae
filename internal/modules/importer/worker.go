package importer

import (
	"context"
	"log"
	"sync"
	"time"
)

// Pool runs a fixed set of worker goroutines that poll the task queue
// and execute claimed imports.
type Pool struct {
	service      *Service
	workers      int
	pollInterval time.Duration

	once sync.Once
}

func NewPool(service *Service, workers int, pollInterval time.Duration) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Pool{
		service:      service,
		workers:      workers,
		pollInterval: pollInterval,
	}
}

// Start launches the workers. Safe to call more than once; only the
// first call has an effect. Cancel the context to stop the pool.
func (p *Pool) Start(ctx context.Context) {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			go p.workerLoop(ctx)
		}
		log.Printf("import pool started: %d workers, poll interval %v", p.workers, p.pollInterval)
	})
}

func (p *Pool) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := p.service.tasks.ClaimNext(ctx)
		if err != nil {
			log.Printf("claim next import task failed: %v", err)
			if !sleepWithContext(ctx, p.pollInterval) {
				return
			}
			continue
		}

		if task == nil {
			if !sleepWithContext(ctx, p.pollInterval) {
				return
			}
			continue
		}

		if err := p.service.ProcessTask(ctx, task); err != nil {
			log.Printf("process import task %s failed: %v", task.ID, err)
		}
	}
}
