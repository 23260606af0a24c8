package sfu

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/openmeet/sfu/internal/engine"
)

// WorkerPool owns one worker+router pair per execution unit and hands out
// routers round-robin, one per room. Pool size is fixed after Initialize.
type WorkerPool struct {
	eng            engine.Engine
	workerSettings engine.WorkerSettings
	routerOptions  engine.RouterOptions

	mu      sync.Mutex
	workers []engine.Worker
	routers []engine.Router
	next    int
}

func NewWorkerPool(eng engine.Engine, workerSettings engine.WorkerSettings, routerOptions engine.RouterOptions) *WorkerPool {
	return &WorkerPool{
		eng:            eng,
		workerSettings: workerSettings,
		routerOptions:  routerOptions,
	}
}

// Initialize creates count worker+router pairs. A count of zero means one
// per CPU. Any engine failure is unrecoverable: without workers the process
// cannot serve a single room.
func (p *WorkerPool) Initialize(ctx context.Context, count int) error {
	if count <= 0 {
		count = runtime.NumCPU()
	}
	if count == 0 {
		return ErrNoWorkers
	}

	workers := make([]engine.Worker, 0, count)
	routers := make([]engine.Router, 0, count)
	for i := 0; i < count; i++ {
		worker, err := p.eng.CreateWorker(ctx, p.workerSettings)
		if err != nil {
			closeWorkers(workers)
			return fmt.Errorf("create worker %d: %w", i, err)
		}
		router, err := worker.CreateRouter(ctx, p.routerOptions)
		if err != nil {
			worker.Close()
			closeWorkers(workers)
			return fmt.Errorf("create router %d: %w", i, err)
		}
		workers = append(workers, worker)
		routers = append(routers, router)
	}

	p.mu.Lock()
	p.workers = workers
	p.routers = routers
	p.next = 0
	p.mu.Unlock()

	log.Info().Str("module", "sfu.pool").Int("workers", count).Msg("worker pool initialized")
	return nil
}

// NextRouter returns routers in strict round-robin order. Returns nil if the
// pool was never initialized.
func (p *WorkerPool) NextRouter() engine.Router {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.routers) == 0 {
		return nil
	}
	router := p.routers[p.next]
	p.next = (p.next + 1) % len(p.routers)
	return router
}

func (p *WorkerPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

func (p *WorkerPool) Close() {
	p.mu.Lock()
	workers := p.workers
	p.workers = nil
	p.routers = nil
	p.mu.Unlock()
	closeWorkers(workers)
}

func closeWorkers(workers []engine.Worker) {
	for _, w := range workers {
		w.Close()
	}
}
