package schedule

import (
	"errors"
	"sync"
	"time"
)

// Manual is a Scheduler that runs nothing until told to.
//
// Flush runs queued immediate tasks first, then deferred tasks, repeating
// until both queues are empty, which models a Loop that goes idle before
// any maxWait elapses. maxWait is ignored.
type Manual struct {
	cfg *config

	mu        sync.Mutex
	immediate []Task
	deferred  []Task
}

var _ Scheduler = (*Manual)(nil)

// NewManual creates a Manual scheduler.
func NewManual(opts ...Option) *Manual {
	return &Manual{cfg: newConfig(opts)}
}

// Immediate queues task.
func (m *Manual) Immediate(task Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.immediate = append(m.immediate, task)
}

// Deferred queues task behind all immediate work.
func (m *Manual) Deferred(task Task, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deferred = append(m.deferred, task)
}

// Pending returns the number of queued tasks.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.immediate) + len(m.deferred)
}

// FlushImmediate runs queued immediate tasks, including ones they queue,
// and leaves deferred tasks queued.
func (m *Manual) FlushImmediate() error {
	var errs []error
	for {
		task, ok := m.next(false)
		if !ok {
			return errors.Join(errs...)
		}
		errs = m.exec(task, errs)
	}
}

// Flush runs tasks until both queues are empty. Every task error is passed
// to the error handler and returned joined.
func (m *Manual) Flush() error {
	var errs []error
	for {
		task, ok := m.next(true)
		if !ok {
			return errors.Join(errs...)
		}
		errs = m.exec(task, errs)
	}
}

func (m *Manual) exec(task Task, errs []error) []error {
	if err := runTask(task); err != nil {
		m.cfg.onError(err)
		errs = append(errs, err)
	}
	return errs
}

// next pops the next task to run. Immediate work always comes first.
func (m *Manual) next(includeDeferred bool) (Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.immediate) > 0 {
		task := m.immediate[0]
		m.immediate[0] = nil
		m.immediate = m.immediate[1:]
		return task, true
	}
	if includeDeferred && len(m.deferred) > 0 {
		task := m.deferred[0]
		m.deferred[0] = nil
		m.deferred = m.deferred[1:]
		return task, true
	}
	return nil, false
}
