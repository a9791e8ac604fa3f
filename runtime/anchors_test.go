package runtime

import (
	"testing"
)

func TestCurrentSchedulerNilOutsideScheduler(t *testing.T) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if s := CurrentScheduler(); s != nil {
			t.Errorf("CurrentScheduler() = %v, want nil on a bare goroutine", s)
		}
	}()
	<-done
}

func TestCurrentSchedulerVisibleInsideTask(t *testing.T) {
	s := NewScheduler(1, false, "anchors-test")
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	seen := make(chan *Scheduler, 1)
	if err := s.ScheduleCallable(func() {
		seen <- CurrentScheduler()
	}, AnyThread); err != nil {
		t.Fatalf("ScheduleCallable: %v", err)
	}

	got := <-seen
	s.Stop()

	if got != s {
		t.Fatalf("CurrentScheduler() inside task = %v, want %v", got, s)
	}
}

func TestHookedSyscallsEnabledDuringDispatch(t *testing.T) {
	s := NewScheduler(1, false, "hook-test")
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	seen := make(chan bool, 1)
	if err := s.ScheduleCallable(func() {
		seen <- HookedSyscallsEnabled()
	}, AnyThread); err != nil {
		t.Fatalf("ScheduleCallable: %v", err)
	}

	if !<-seen {
		t.Fatal("HookedSyscallsEnabled() = false inside a dispatch-loop-owned task")
	}
	s.Stop()
}
