package schedule

import (
	"context"
	"time"
)

// Loop is a single-goroutine scheduler.
//
// Every task runs on the goroutine that called Run, in FIFO order within its
// class. Immediate tasks always take priority; a deferred task runs once no
// immediate task has arrived for the idle delay, or when its maxWait timer
// fires, whichever happens first.
//
// Thread-safety model:
//   - Immediate(), Deferred(), Stop(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
type Loop struct {
	cfg       *config
	immediate *taskQueue
	deferred  *taskQueue
}

var _ Scheduler = (*Loop)(nil)

// NewLoop creates a Loop. Tasks queued before Run is called wait for it.
func NewLoop(opts ...Option) *Loop {
	return &Loop{
		cfg:       newConfig(opts),
		immediate: newTaskQueue(),
		deferred:  newTaskQueue(),
	}
}

// Immediate queues task to run as soon as possible. Tasks queued after Stop
// are dropped.
func (l *Loop) Immediate(task Task) {
	if !l.immediate.Enqueue(&pending{task: task}) {
		l.cfg.logger.Debug("scheduler stopped, dropping immediate task")
	}
}

// Deferred queues task to run when the loop goes idle, or after maxWait.
// A non-positive maxWait only waits for idleness.
func (l *Loop) Deferred(task Task, maxWait time.Duration) {
	p := &pending{task: task}
	if !l.deferred.Enqueue(p) {
		l.cfg.logger.Debug("scheduler stopped, dropping deferred task")
		return
	}
	if maxWait <= 0 {
		return
	}
	time.AfterFunc(maxWait, func() {
		// The idle path may already have run it; promoting a claimed task
		// would run it twice.
		if p.claimed.Load() {
			return
		}
		l.immediate.Enqueue(p)
	})
}

// Run executes tasks until ctx is cancelled or Stop is called.
// Returns ctx.Err() on cancellation and nil after Stop.
func (l *Loop) Run(ctx context.Context) error {
	l.cfg.logger.Debug("scheduler starting")

	for {
		if p, ok := l.immediate.TryDequeue(); ok {
			l.run(p)
			continue
		}

		if l.immediate.Closed() {
			l.cfg.logger.Debug("scheduler stopping: stopped")
			return nil
		}

		if l.deferred.Len() > 0 {
			idle := time.NewTimer(l.cfg.idleDelay)
			select {
			case <-ctx.Done():
				idle.Stop()
				l.Stop()
				return ctx.Err()
			case <-l.immediate.Wait():
				idle.Stop()
			case <-idle.C:
				if p, ok := l.deferred.TryDequeue(); ok {
					l.run(p)
				}
			}
			continue
		}

		select {
		case <-ctx.Done():
			l.cfg.logger.Debug("scheduler stopping: context cancelled")
			l.Stop()
			return ctx.Err()
		case <-l.immediate.Wait():
		case <-l.deferred.Wait():
		}
	}
}

// run executes p if nobody else has claimed it.
func (l *Loop) run(p *pending) {
	if !p.claim() {
		return
	}
	if err := runTask(p.task); err != nil {
		l.cfg.onError(err)
	}
}

// Stop makes Run return once the task in progress finishes. Queued tasks
// are dropped.
func (l *Loop) Stop() {
	l.immediate.Close()
	l.deferred.Close()
}

// Pending returns the number of queued tasks. Deferred tasks promoted by
// their maxWait timer may be counted twice until they run.
func (l *Loop) Pending() int {
	return l.immediate.Len() + l.deferred.Len()
}
