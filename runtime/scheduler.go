package runtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ErrSchedulerStopping is returned by Schedule once Stop has been
// called. The design leaves "schedule() under an active stopping
// flag" unspecified in the original source and decides: reject, log,
// drop the caller's task. fiberd surfaces the rejection as this error
// instead of silently dropping it so embedders can retry or surface
// it to their own caller.
var ErrSchedulerStopping = errors.New("fiberd: scheduler is stopping")

// Stats is a read-only snapshot of scheduler state, useful for the
// CLI dashboard and for tests that want to assert on dispatch
// progress without reaching into the scheduler's mutex themselves.
type Stats struct {
	Name            string
	QueueDepth      int
	ActiveWorkers   int
	IdleWorkers     int
	FibersCompleted int64
	Yields          int64
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithNotifier replaces the default busy-poll tickle/idle pair with a
// real wait primitive (see Notifier). Optional; the default scheduler
// behaves exactly as the bare core described in the design.
func WithNotifier(n Notifier) Option {
	return func(s *Scheduler) { s.notifier = n }
}

// WithAuditor replaces the default zerolog-backed Auditor.
func WithAuditor(a Auditor) Option {
	return func(s *Scheduler) { s.auditor = a }
}

// Scheduler is the work-queue-driven dispatcher: it owns worker
// goroutines, the shared task list, and the lifecycle flags that
// coordinate them. One scheduling fiber runs per worker (the worker's
// own main fiber for ordinary workers, a dedicated root fiber for a
// participating caller thread).
type Scheduler struct {
	name        string
	threadCount int
	useCaller   bool

	rootThread int64 // goid of the caller thread, or -1
	rootFiber  *Fiber

	notifier Notifier
	auditor  Auditor

	mu        sync.Mutex
	tasks     []Task
	stopping  bool
	started   bool
	active    int
	idle      int
	workerIDs []int64

	wg sync.WaitGroup

	fibersCompleted int64
	yields          int64
}

// NewScheduler constructs a Scheduler. threadCount must be >= 1; if
// useCaller is true, one of those slots is reserved for the
// constructing goroutine and threadCount-1 worker goroutines are
// spawned in addition to it. Constructing a caller-mode scheduler on a
// goroutine that already has an active scheduler is a contract
// violation.
func NewScheduler(threadCount int, useCaller bool, name string, opts ...Option) *Scheduler {
	if threadCount < 1 {
		panic(newContractError("scheduler.new: threadCount must be >= 1", name))
	}

	s := &Scheduler{
		name:        name,
		useCaller:   useCaller,
		threadCount: threadCount,
		rootThread:  -1,
		notifier:    busyNotifier{},
		auditor:     NewLogAuditor(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if useCaller {
		s.threadCount--
		if s.threadCount < 0 {
			s.threadCount = 0
		}

		if CurrentScheduler() != nil {
			panic(newContractError("scheduler.new: caller thread already owns a scheduler", name))
		}

		GetThis() // ensure the caller's main fiber exists

		s.rootThread = currentGoroutineID()
		s.rootFiber = NewFiber(func() { s.dispatchLoop(true) }, 0, false)
		s.rootFiber.SetName(name + "-root")

		a := getAnchors()
		a.scheduler = s
		a.schedulerFiber = s.rootFiber

		setWorkerName(name, s.rootThread)
	}

	return s
}

// Name returns the scheduler's configured name.
func (s *Scheduler) Name() string { return s.name }

// WorkerIDs returns the goroutine ids of every worker started so far
// (including the caller's, once it has entered its dispatch loop),
// in the order they reported in. Used by callers that want to pin
// tasks to a specific worker.
func (s *Scheduler) WorkerIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, len(s.workerIDs))
	copy(out, s.workerIDs)
	return out
}

// Start spawns threadCount worker goroutines, each running the
// dispatch loop, and returns once they have all reported their
// worker id. A caller-mode scheduler's constructing goroutine does
// not enter its dispatch loop here — it only does so inside Stop,
// via rootFiber.resume() — so Start returns promptly and the caller
// may go on to submit more work.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return ErrSchedulerStopping
	}
	if s.started {
		s.mu.Unlock()
		panic(newContractError("scheduler.start: already started", s.name))
	}
	s.started = true
	s.mu.Unlock()

	ready := make(chan int64, s.threadCount)
	for i := 0; i < s.threadCount; i++ {
		s.wg.Add(1)
		go s.workerMain(ready)
	}
	for i := 0; i < s.threadCount; i++ {
		id := <-ready
		s.mu.Lock()
		s.workerIDs = append(s.workerIDs, id)
		s.mu.Unlock()
	}
	return nil
}

func (s *Scheduler) workerMain(ready chan<- int64) {
	defer s.wg.Done()
	id := currentGoroutineID()
	setWorkerName(s.name, id)
	ready <- id
	s.dispatchLoop(false)
}

// Schedule submits a task. If the task list was empty before this
// push, a worker is tickled. Scheduling after Stop has been called is
// rejected: the task is dropped and ErrSchedulerStopping is returned,
// per the design's resolution of the "schedule while stopping" open
// question.
func (s *Scheduler) Schedule(t Task) error {
	if t.CorrelationID == uuid.Nil {
		t.CorrelationID = newCorrelationID()
	}

	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		logger().Warn().Str("scheduler", s.name).Msg("schedule() rejected: scheduler is stopping")
		return ErrSchedulerStopping
	}
	wasEmpty := len(s.tasks) == 0
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()

	s.auditor.Record("task.schedule", t.CorrelationID, map[string]any{
		"affinity": t.Affinity,
		"has_fiber": t.Fiber != nil,
	})
	if wasEmpty {
		s.tickle()
	}
	return nil
}

// ScheduleCallable is a convenience wrapper for the common case of
// scheduling a plain callable.
func (s *Scheduler) ScheduleCallable(fn func(), affinity int) error {
	return s.Schedule(NewCallableTask(fn, affinity))
}

// ScheduleFiber is a convenience wrapper for scheduling an
// already-constructed, Ready fiber.
func (s *Scheduler) ScheduleFiber(f *Fiber, affinity int) error {
	return s.Schedule(NewFiberTask(f, affinity))
}

// ScheduleBatch submits every task in ts under a single lock
// acquisition.
func (s *Scheduler) ScheduleBatch(ts []Task) error {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		logger().Warn().Str("scheduler", s.name).Msg("schedule() rejected: scheduler is stopping")
		return ErrSchedulerStopping
	}
	wasEmpty := len(s.tasks) == 0
	for i := range ts {
		if ts[i].CorrelationID == uuid.Nil {
			ts[i].CorrelationID = newCorrelationID()
		}
	}
	s.tasks = append(s.tasks, ts...)
	s.mu.Unlock()

	if wasEmpty && len(ts) > 0 {
		s.tickle()
	}
	return nil
}

// Stopping reports whether the scheduler has been told to stop, has
// no queued tasks, and has no worker actively running a task fiber —
// the condition the default idle() watches for before terminating.
func (s *Scheduler) Stopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopping && len(s.tasks) == 0 && s.active == 0
}

// Stop requests shutdown. It is idempotent: a second call is a no-op.
// In caller mode, Stop must be called on the constructing goroutine;
// otherwise it must be called from a goroutine outside the worker
// pool. Either violation is a contract error. Stop blocks until every
// worker (and, in caller mode, the caller's own dispatch pass) has
// drained and exited.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return
	}
	s.stopping = true
	s.mu.Unlock()

	if s.useCaller {
		if CurrentScheduler() != s {
			panic(newContractError("scheduler.stop: must be called on the caller thread", s.name))
		}
	} else {
		if CurrentScheduler() == s {
			panic(newContractError("scheduler.stop: must be called from outside the worker pool", s.name))
		}
	}

	n := s.threadCount
	if s.useCaller {
		n++
	}
	for i := 0; i < n; i++ {
		s.tickle()
	}

	if s.useCaller {
		if s.rootFiber.RunsInSchedulerContext() {
			panic(newContractError("scheduler.stop: root fiber must not run in scheduler context", s.name))
		}
		s.rootFiber.resume()
		clearCurrentScheduler()
	}

	s.wg.Wait()
}

func (s *Scheduler) tickle() {
	logger().Debug().Str("scheduler", s.name).Msg("tickle")
	s.notifier.Tickle()
}

// claim removes and returns the first task this worker may run
// (affinity -1 or equal to workerID), reporting whether another
// worker should be tickled: because a skipped task is pinned
// elsewhere, or because work remains after this claim.
func (s *Scheduler) claim(workerID int64) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tickleMe := false
	idx := -1
	for i, t := range s.tasks {
		if t.Affinity == AnyThread || int64(t.Affinity) == workerID {
			idx = i
			break
		}
		tickleMe = true
	}
	if idx == -1 {
		return Task{}, tickleMe
	}

	t := s.tasks[idx]
	s.tasks = append(s.tasks[:idx], s.tasks[idx+1:]...)
	s.active++
	if len(s.tasks) > 0 {
		tickleMe = true
	}
	return t, tickleMe
}

func (s *Scheduler) decActive() {
	s.mu.Lock()
	s.active--
	s.mu.Unlock()
}

func (s *Scheduler) incIdle() {
	s.mu.Lock()
	s.idle++
	s.mu.Unlock()
}

func (s *Scheduler) decIdle() {
	s.mu.Lock()
	s.idle--
	s.mu.Unlock()
}

// dispatchLoop is run()'s dispatch loop from the design: pick a task,
// resume its fiber (constructing or resetting the reusable callable
// fiber as needed), and otherwise resume the idle fiber until it
// reaches Term, which is this worker's shutdown signal.
func (s *Scheduler) dispatchLoop(isRoot bool) {
	setHookedSyscallsEnabled(true)
	defer setHookedSyscallsEnabled(false)

	a := getAnchors()
	a.scheduler = s
	workerID := currentGoroutineID()
	if !isRoot {
		main := GetThis()
		a.schedulerFiber = main
		a.currentFiber = main
	} else {
		s.mu.Lock()
		s.workerIDs = append(s.workerIDs, workerID)
		s.mu.Unlock()
	}

	idleFiber := NewFiber(func() { s.idleLoop() }, 0, true)
	idleFiber.SetName(s.name + "-idle")
	var cbFiber *Fiber

	for {
		task, tickleMe := s.claim(workerID)
		if tickleMe {
			s.tickle()
		}

		switch {
		case task.empty():
			if idleFiber.State() == Term {
				return
			}
			s.incIdle()
			idleFiber.resume()
			s.decIdle()

		case task.Fiber != nil:
			s.auditor.Record("fiber.resume", task.CorrelationID, map[string]any{"fiber_id": task.Fiber.ID()})
			task.Fiber.resume()
			s.afterResume(task.Fiber)
			s.decActive()

		case task.Callable != nil:
			wrapped := task.Callable
			if cbFiber == nil {
				cbFiber = NewFiber(wrapped, 0, true)
				cbFiber.SetName(s.name + "-callable")
			} else {
				cbFiber.Reset(wrapped)
			}
			s.auditor.Record("fiber.resume", task.CorrelationID, map[string]any{"fiber_id": cbFiber.ID()})
			cbFiber.resume()
			s.afterResume(cbFiber)
			s.decActive()
			if cbFiber.State() != Term {
				// The callable yielded mid-run; leave that fiber to
				// whoever re-submits it and use a fresh slot next time.
				cbFiber = nil
			}
		}
	}
}

func (s *Scheduler) afterResume(f *Fiber) {
	if f.State() == Term {
		atomic.AddInt64(&s.fibersCompleted, 1)
	} else {
		atomic.AddInt64(&s.yields, 1)
	}
}

// idleLoop is the default idle policy: spin, yielding once per
// iteration, until Stopping() becomes true. If a non-default Notifier
// is configured, each iteration blocks in Wait first, so "spin" in
// practice means "wake promptly on tickle" rather than a hot loop.
func (s *Scheduler) idleLoop() {
	self := GetThis()
	for !s.Stopping() {
		s.notifier.Wait(context.Background())
		self.Yield()
	}
}

// Stats returns a snapshot of current scheduler state.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Name:            s.name,
		QueueDepth:      len(s.tasks),
		ActiveWorkers:   s.active,
		IdleWorkers:     s.idle,
		FibersCompleted: atomic.LoadInt64(&s.fibersCompleted),
		Yields:          atomic.LoadInt64(&s.yields),
	}
}

// CurrentWorkerID returns the id of the worker whose scheduling fiber
// is anchored on the calling goroutine (so, from inside a task, the
// worker running it) — the affinity value a task must carry to be
// pinned to this worker. Outside any scheduler it returns the calling
// goroutine's id.
func CurrentWorkerID() int64 {
	if sf := getAnchors().schedulerFiber; sf != nil {
		return sf.goid
	}
	return currentGoroutineID()
}
