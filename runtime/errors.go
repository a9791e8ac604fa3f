package runtime

import "fmt"

// ContractError marks a violation of a hard precondition: resuming a
// terminated fiber, yielding a fiber that isn't running, stopping a
// scheduler from the wrong thread class, or starting one twice. The
// core never tries to recover from these — callers that want a
// process-wide last-resort handler should recover() at the top of
// their own goroutines and treat a ContractError as fatal.
type ContractError struct {
	Invariant string
	Detail    string
}

func (e *ContractError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("contract violation: %s", e.Invariant)
	}
	return fmt.Sprintf("contract violation: %s: %s", e.Invariant, e.Detail)
}

func newContractError(invariant, detail string) *ContractError {
	return &ContractError{Invariant: invariant, Detail: detail}
}
