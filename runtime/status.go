package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// StatusServer exposes a Scheduler's Stats() as a polled JSON
// endpoint. Adapted from the teacher's embedded HTTPServer (a
// handler-table wrapper around net/http.Server): fiberd keeps the
// same lifecycle shape (Start(port)/Stop(), a running flag guarded by
// a mutex) but drops the path/method handler table, since a status
// server only ever needs one route.
type StatusServer struct {
	sched   *Scheduler
	server  *http.Server
	mu      sync.RWMutex
	running bool
}

// NewStatusServer returns a StatusServer reporting s's Stats().
func NewStatusServer(s *Scheduler) *StatusServer {
	return &StatusServer{sched: s}
}

// Start begins serving GET /stats on the given port. Starting a
// server that is already running is a no-op.
func (ss *StatusServer) Start(port int) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.running {
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(ss.sched.Stats()); err != nil {
			logger().Error().Err(err).Msg("status server: encode stats")
		}
	})

	ss.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	ss.running = true

	go func() {
		if err := ss.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger().Error().Err(err).Msg("status server stopped unexpectedly")
		}
	}()
	return nil
}

// Stop shuts the server down, if running.
func (ss *StatusServer) Stop() error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if !ss.running {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ss.running = false
	return ss.server.Shutdown(ctx)
}

// Running reports whether the server is currently serving.
func (ss *StatusServer) Running() bool {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.running
}
