package execution

import (
	"context"
	"fmt"
	"sync"

	"gocut/internal/domain"
	"gocut/internal/logging"
)

// caseFunc runs one test case and reports whether it succeeded.
type caseFunc func(ctx context.Context, tc *domain.TestCase) bool

// panicFunc is told about a panic that escaped a case.
type panicFunc func(tc *domain.TestCase, recovered any)

// WorkerPool runs test cases on a bounded number of goroutines. Each case
// runs entirely on one worker, so the goroutine-keyed context registry
// keeps concurrent tests apart.
type WorkerPool struct {
	workers  int
	failFast bool
	onPanic  panicFunc
	progress func(completed, passed, failed int)
}

// NewWorkerPool creates a new WorkerPool
func NewWorkerPool(workers int, failFast bool) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	return &WorkerPool{workers: workers, failFast: failFast}
}

// SetProgress installs a callback invoked under the pool lock after every
// case.
func (wp *WorkerPool) SetProgress(fn func(completed, passed, failed int)) {
	wp.progress = fn
}

// Execute runs every case and reports whether all succeeded. With
// fail-fast no new case is started after the first failure.
func (wp *WorkerPool) Execute(ctx context.Context, cases []*domain.TestCase, run caseFunc) bool {
	if len(cases) == 0 {
		return true
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	caseQueue := make(chan *domain.TestCase)
	go func() {
		defer close(caseQueue)
		for _, tc := range cases {
			select {
			case <-ctx.Done():
				return
			case caseQueue <- tc:
			}
		}
	}()

	var mu sync.Mutex
	var completed, passed, failed int
	allSuccess := true

	var wg sync.WaitGroup
	for i := 1; i <= wp.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for tc := range caseQueue {
				ok := wp.runCase(ctx, workerID, tc, run)

				mu.Lock()
				completed++
				if ok {
					passed++
				} else {
					failed++
					allSuccess = false
					if wp.failFast {
						cancel()
					}
				}
				if wp.progress != nil {
					wp.progress(completed, passed, failed)
				}
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	return allSuccess
}

func (wp *WorkerPool) runCase(ctx context.Context, workerID int, tc *domain.TestCase, run caseFunc) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("WorkerPool", fmt.Errorf("%v", r), "worker %d: case %s panicked", workerID, tc.Name)
			if wp.onPanic != nil {
				wp.onPanic(tc, r)
			}
			ok = false
		}
	}()
	logging.Debug("WorkerPool", "worker %d: running case %s", workerID, tc.Name)
	return run(ctx, tc)
}
