package runtime

import "fmt"

// shortWorkerName builds a thread name under the 15-byte PR_SET_NAME
// limit, trimming the scheduler name rather than the worker id since
// the id is what distinguishes workers from each other in `ps -L`.
func shortWorkerName(schedulerName string, workerID int64) string {
	suffix := fmt.Sprintf("-%d", workerID)
	budget := 15 - len(suffix)
	if budget < 1 {
		budget = 1
	}
	name := schedulerName
	if len(name) > budget {
		name = name[:budget]
	}
	return name + suffix
}
