package runtime

import "github.com/google/uuid"

// AnyThread is the thread-affinity sentinel meaning "any worker may
// claim this task".
const AnyThread = -1

// Task is a tagged union: exactly one of Fiber or Callable is set.
// Affinity pins dispatch to the worker whose id equals Affinity;
// AnyThread lets any worker claim it. A Task literal that leaves
// Affinity unset carries 0, which is not AnyThread.
//
// CorrelationID is additive instrumentation (see SPEC_FULL.md §3.3):
// it has no effect on dispatch order, affinity, or any scheduling
// invariant, and exists purely so logs and the audit trail can tie a
// submission to the fiber/callable that eventually ran it.
type Task struct {
	Fiber         *Fiber
	Callable      func()
	Affinity      int
	CorrelationID uuid.UUID
}

// empty reports whether t is the sentinel "no task chosen this
// iteration" record.
func (t Task) empty() bool {
	return t.Fiber == nil && t.Callable == nil
}

// NewFiberTask wraps an already-constructed, Ready fiber as a task.
func NewFiberTask(f *Fiber, affinity int) Task {
	return Task{Fiber: f, Affinity: affinity, CorrelationID: uuid.New()}
}

// NewCallableTask wraps a plain callable as a task.
func NewCallableTask(fn func(), affinity int) Task {
	return Task{Callable: fn, Affinity: affinity, CorrelationID: uuid.New()}
}

// newCorrelationID mints a fresh correlation id for a task submitted
// without one.
func newCorrelationID() uuid.UUID {
	return uuid.New()
}
