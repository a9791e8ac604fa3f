package runtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestStatusServerServesStats(t *testing.T) {
	s := NewScheduler(1, false, "status-test")
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	ss := NewStatusServer(s)
	const port = 18231
	if err := ss.Start(port); err != nil {
		t.Fatalf("StatusServer.Start: %v", err)
	}
	defer ss.Stop()

	time.Sleep(50 * time.Millisecond) // let the listener come up

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/stats", port))
	if err != nil {
		t.Fatalf("GET /stats: %v", err)
	}
	defer resp.Body.Close()

	var stats Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Name != "status-test" {
		t.Fatalf("stats.Name = %q, want %q", stats.Name, "status-test")
	}
}
