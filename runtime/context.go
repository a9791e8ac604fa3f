package runtime

// fiberContext is the channel-handshake context-switch primitive: the
// Go-native stand-in for spec.md §4.1's ucontext-style
// makeContext/swapContext pair (see the REDESIGN note at the top of
// SPEC_FULL.md). switchIn is swapContext's caller half: send the
// resume signal, then block until the callee either yields back or
// terminates. park/signalYield are the callee half, called from
// inside a fiber's own backing goroutine.
type fiberContext struct {
	resumeCh chan struct{}
	yieldCh  chan struct{}
	doneCh   chan struct{}
}

func newFiberContext() fiberContext {
	return fiberContext{
		resumeCh: make(chan struct{}),
		yieldCh:  make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// switchIn is the "makeContext, then swapContext in" half: it hands
// control to the backing goroutine (which is parked waiting on
// resumeCh, exactly as if makeContext had just set it up) and blocks
// until that goroutine either calls signalYield or returns from its
// trampoline.
func (c fiberContext) switchIn() {
	c.resumeCh <- struct{}{}
	select {
	case <-c.yieldCh:
	case <-c.doneCh:
	}
}

// parkUntilResumed blocks the calling (backing) goroutine until the
// next switchIn. Called once at trampoline start, and again after
// every signalYield.
func (c fiberContext) parkUntilResumed() {
	<-c.resumeCh
}

// signalYield is swapContext's callee half: hand control back to
// whoever is blocked in switchIn, then park until resumed again.
func (c fiberContext) signalYield() {
	c.yieldCh <- struct{}{}
	c.parkUntilResumed()
}

// signalDone closes doneCh, waking a blocked switchIn for the last
// time. Safe to call exactly once per fiber, from the trampoline's
// terminal defer.
func (c fiberContext) signalDone() {
	close(c.doneCh)
}
