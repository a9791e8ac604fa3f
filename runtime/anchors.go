package runtime

import (
	"sync"

	"github.com/petermattis/goid"
)

// anchors is the goroutine-local state described by the design as
// "thread-local anchors": the scheduler that owns the calling
// goroutine's dispatch loop, the fiber that runs that dispatch loop,
// and the fiber currently executing. Go gives no public goroutine
// identity or goroutine-local storage, so this package keys a table
// by goid.Get() — the same trick every pure-Go "goroutine-local
// storage" library uses, since the identity only exists inside the
// runtime's own `g` struct. See DESIGN.md for why this dependency is
// named rather than grounded in the retrieval pack.
//
// The map itself is protected by a mutex. Entries are written at
// main-fiber creation, scheduler construction and dispatch-loop entry
// by the owning goroutine, and by resume(), which seeds the callee
// fiber goroutine's entry before waking it; an entry is removed when
// its fiber reaches Term.
type anchors struct {
	scheduler      *Scheduler
	schedulerFiber *Fiber
	currentFiber   *Fiber
	// hookEnabled mirrors the design's per-thread "syscall hook"
	// flag (§4.4 step 1 of the dispatch loop): set while a dispatch
	// loop owns this goroutine, so blocking-syscall interception code
	// elsewhere in the process can tell whether it is running on a
	// scheduler-owned goroutine without threading a parameter through
	// every call site. fiberd does not itself intercept syscalls; the
	// flag is carried so an embedder's own hook (e.g. a patched net
	// dialer) can query HookedSyscallsEnabled() and decide whether to
	// route a blocking call through the scheduler or call straight
	// through.
	hookEnabled bool
}

var (
	anchorMu    sync.Mutex
	anchorTable = make(map[int64]*anchors)
)

func currentGoroutineID() int64 {
	return goid.Get()
}

// getAnchors returns (creating if necessary) the calling goroutine's
// anchor record. A freshly created record has every field nil, which
// correctly describes a goroutine running outside any scheduler.
func getAnchors() *anchors {
	id := currentGoroutineID()
	anchorMu.Lock()
	defer anchorMu.Unlock()
	a, ok := anchorTable[id]
	if !ok {
		a = &anchors{}
		anchorTable[id] = a
	}
	return a
}

// setAnchorsFor seeds an arbitrary goroutine's anchor record, creating
// it if absent. Used by resume() to hand the callee fiber's goroutine
// the caller's scheduler/schedulerFiber/hookEnabled state before
// waking it, since the callee's own goroutine may not have touched
// the table yet.
func setAnchorsFor(id int64, scheduler *Scheduler, schedulerFiber, currentFiber *Fiber, hookEnabled bool) {
	anchorMu.Lock()
	defer anchorMu.Unlock()
	a, ok := anchorTable[id]
	if !ok {
		a = &anchors{}
		anchorTable[id] = a
	}
	a.scheduler = scheduler
	a.schedulerFiber = schedulerFiber
	a.currentFiber = currentFiber
	a.hookEnabled = hookEnabled
}

// dropAnchors removes a goroutine's entry. Called once a fiber's
// backing goroutine has reached TERM and will never be resumed again,
// so the table doesn't grow without bound across fiber churn.
func dropAnchors(id int64) {
	anchorMu.Lock()
	delete(anchorTable, id)
	anchorMu.Unlock()
}

// CurrentScheduler returns the Scheduler owning the calling
// goroutine's dispatch loop, or nil if this goroutine is not running
// under one.
func CurrentScheduler() *Scheduler {
	return getAnchors().scheduler
}

func clearCurrentScheduler() {
	getAnchors().scheduler = nil
}

// setHookedSyscallsEnabled flips the calling goroutine's hookEnabled
// flag. Called at dispatch-loop entry/exit (see Scheduler.dispatchLoop).
func setHookedSyscallsEnabled(v bool) {
	getAnchors().hookEnabled = v
}

// HookedSyscallsEnabled reports whether the calling goroutine is
// currently running a scheduler's dispatch loop or a fiber resumed
// from one.
func HookedSyscallsEnabled() bool {
	return getAnchors().hookEnabled
}
