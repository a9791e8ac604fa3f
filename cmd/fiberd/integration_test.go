package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// captureOutput runs fn with os.Stdout redirected to a pipe and
// returns everything it wrote, in the spirit of the JVM tree's own
// captureOutput helper.
func captureOutput(t *testing.T, fn func() error) string {
	t.Helper()
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	os.Stdout = w

	fnErr := fn()

	w.Close()
	os.Stdout = oldStdout

	var buf bytes.Buffer
	buf.ReadFrom(r)
	r.Close()

	if fnErr != nil {
		t.Fatalf("command returned error: %v", fnErr)
	}
	return buf.String()
}

func writeScript(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.txt")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestRunCommandDrainsWorkload(t *testing.T) {
	runScript = writeScript(t, "echo one", "echo two", "echo three")
	cfgPath = ""
	t.Setenv("FIBERD_SCHEDULER_THREADS", "4")
	t.Setenv("FIBERD_SCHEDULER_USE_CALLER", "true")

	output := captureOutput(t, func() error {
		return runRun(runCmd, nil)
	})

	if !strings.Contains(output, "drained 3 tasks") {
		t.Fatalf("expected drain summary in output, got: %q", output)
	}
}

func TestRunCommandSkipsBlankAndCommentLines(t *testing.T) {
	runScript = writeScript(t, "", "# a comment", "echo one", "   ", "echo two")
	cfgPath = ""
	t.Setenv("FIBERD_SCHEDULER_THREADS", "2")
	t.Setenv("FIBERD_SCHEDULER_USE_CALLER", "false")

	output := captureOutput(t, func() error {
		return runRun(runCmd, nil)
	})

	if !strings.Contains(output, "drained 2 tasks") {
		t.Fatalf("expected drain summary in output, got: %q", output)
	}
}

func TestRunCommandContinuesPastFailingCommand(t *testing.T) {
	runScript = writeScript(t, "false", "echo ok")
	cfgPath = ""
	t.Setenv("FIBERD_SCHEDULER_THREADS", "2")
	t.Setenv("FIBERD_SCHEDULER_USE_CALLER", "false")

	output := captureOutput(t, func() error {
		return runRun(runCmd, nil)
	})

	if !strings.Contains(output, "drained 2 tasks") {
		t.Fatalf("expected drain summary even with a failing command, got: %q", output)
	}
}
