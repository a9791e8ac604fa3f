//go:build !linux

package runtime

// setWorkerName is a no-op outside Linux: PR_SET_NAME has no portable
// equivalent exposed by golang.org/x/sys on other platforms fiberd
// targets.
func setWorkerName(schedulerName string, workerID int64) {}
