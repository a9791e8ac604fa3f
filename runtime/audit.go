package runtime

import (
	"time"

	"github.com/google/uuid"
)

// Auditor records scheduler/fiber lifecycle events as structured,
// append-only entries. It is pure instrumentation layered on top of
// transitions the core already makes (§4.4 of the design): Schedule
// records "task.schedule" and the dispatch loop records "fiber.resume"
// before each task fiber it resumes. ScheduleBatch, fiber spawn,
// yield, Term and Stop write no record. Nothing in Auditor feeds back
// into a scheduling decision.
//
// Adapted from fentz26-Neona's internal/audit.PDRWriter, which pairs
// every dispatch with a hashed, persisted "Process Decision Record".
// fiberd keeps the shape (one Record call per lifecycle event, a
// correlation id, a free-form field bag) but not the SHA-256/store
// machinery, since the core has no persistence layer of its own — the
// default implementation logs through zerolog instead of writing to
// a store.
type Auditor interface {
	Record(event string, correlationID uuid.UUID, fields map[string]any)
}

// logAuditor is the default Auditor: every event becomes one
// structured zerolog line.
type logAuditor struct{}

// NewLogAuditor returns the default, zerolog-backed Auditor.
func NewLogAuditor() Auditor { return logAuditor{} }

func (logAuditor) Record(event string, correlationID uuid.UUID, fields map[string]any) {
	evt := logger().Info().
		Str("event", event).
		Str("correlation_id", correlationID.String()).
		Time("ts", time.Now())
	for k, v := range fields {
		evt = evt.Interface(k, v)
	}
	evt.Msg("fiberd audit")
}

// noopAuditor discards every event; used when a caller explicitly
// wants the instrumentation off (e.g. tight benchmark loops).
type noopAuditor struct{}

// NewNoopAuditor returns an Auditor that records nothing.
func NewNoopAuditor() Auditor { return noopAuditor{} }

func (noopAuditor) Record(string, uuid.UUID, map[string]any) {}
