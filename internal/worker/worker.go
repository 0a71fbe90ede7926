// Package worker runs the background sync loop used by `mmc serve`.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/logger"
	"github.com/adamjohnlea/my-music-collection-sub000/internal/pipeline"
)

// Task is one unit of periodic work, such as a push batch or an image pass.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Worker runs its tasks in order on every tick, one at a time.
type Worker struct {
	tasks    []Task
	interval time.Duration
	logger   *logger.Logger

	mu     sync.Mutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewWorker(interval time.Duration, log *logger.Logger, tasks ...Task) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		tasks:    tasks,
		interval: interval,
		logger:   log.WithComponent("worker"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (w *Worker) Start() {
	w.logger.Info("Starting worker", "interval", w.interval, "tasks", len(w.tasks))
	w.wg.Add(1)
	go w.loop()
}

func (w *Worker) Stop() {
	w.logger.Info("Stopping worker")
	w.cancel()
	w.wg.Wait()
}

func (w *Worker) loop() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(w.ctx)
		}
	}
}

// RunOnce runs every task once. Calls are serialized with the ticker loop.
// A task failure is logged and does not stop the tasks after it.
func (w *Worker) RunOnce(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, t := range w.tasks {
		if ctx.Err() != nil {
			return
		}
		err := w.runTask(ctx, t)
		switch {
		case err == nil:
		case errors.Is(err, pipeline.ErrSyncDisabled):
			w.logger.Warn("Task skipped, sync disabled", "task", t.Name)
		case errors.Is(err, context.Canceled):
			return
		default:
			w.logger.Error("Task failed", "task", t.Name, "error", err)
		}
	}
}

func (w *Worker) runTask(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in task %s: %v", t.Name, r)
		}
	}()
	return t.Run(ctx)
}
