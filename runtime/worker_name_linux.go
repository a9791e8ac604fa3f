//go:build linux

package runtime

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// setWorkerName assigns the OS thread name shown by tools like ps -L
// and top -H, so a stuck worker is identifiable without attaching a
// debugger. Grounded in sylar's Thread::SetName (scheduler.cpp), which
// calls pthread_setname_np for the same reason.
//
// Go multiplexes goroutines onto OS threads, so this only reliably
// names *a* thread the goroutine happened to be on at call time, not
// the goroutine itself — good enough for the worker-pool case, since
// workerMain calls this once, early, before the goroutine parks and
// migrates under load.
func setWorkerName(schedulerName string, workerID int64) {
	name := shortWorkerName(schedulerName, workerID)
	buf := append([]byte(name), 0) // PR_SET_NAME wants a NUL-terminated C string
	_ = unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(&buf[0])), 0, 0, 0)
}
