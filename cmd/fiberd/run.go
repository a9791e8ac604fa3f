package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"fiberd/config"
	"fiberd/runtime"
)

var runScript string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Submit a scripted workload of shell commands to a fiber scheduler and wait for it to drain",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runScript, "script", "", "file of newline-delimited shell commands (default: read from stdin)")
}

// runRun reads newline-delimited shell commands from --script (or
// stdin when --script is unset) and schedules each as a callable that
// runs it via os/exec, then waits for every command to finish before
// stopping the scheduler. Blank lines and lines starting with "#" are
// skipped.
func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	configureLogging(cfg.Logging)

	src, err := openCommandSource(runScript)
	if err != nil {
		return fmt.Errorf("fiberd run: %w", err)
	}
	defer src.Close()

	sched := buildScheduler(cfg.Scheduler)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("fiberd run: start: %w", err)
	}

	var wg sync.WaitGroup
	submitted := 0

	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		command := line
		n := submitted
		wg.Add(1)
		if err := sched.ScheduleCallable(func() {
			defer wg.Done()
			runShellCommand(n, command)
		}, runtime.AnyThread); err != nil {
			wg.Done()
			return fmt.Errorf("fiberd run: schedule task %d: %w", n, err)
		}
		submitted++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("fiberd run: read commands: %w", err)
	}

	wg.Wait()
	sched.Stop()

	stats := sched.Stats()
	fmt.Printf("scheduler %q drained %d tasks (fibers completed=%d yields=%d)\n",
		stats.Name, submitted, stats.FibersCompleted, stats.Yields)
	return nil
}

// openCommandSource opens --script if set, otherwise wraps stdin so
// the caller can always defer Close.
func openCommandSource(script string) (io.ReadCloser, error) {
	if script == "" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(script)
}

// runShellCommand runs command through the shell on the calling
// fiber's own backing goroutine. It yields once before running the
// command so every scheduled task takes at least one cooperative
// suspend point, matching the rest of the harness's workload shape.
// The scheduler does not re-queue a yielded fiber, so the fiber
// re-submits itself first, pinned to the worker running it so no
// other worker can resume it before the yield completes.
func runShellCommand(n int, command string) {
	self := runtime.GetThis()
	if err := runtime.CurrentScheduler().ScheduleFiber(self, int(runtime.CurrentWorkerID())); err == nil {
		self.Yield()
	}

	out, err := exec.Command("sh", "-c", command).CombinedOutput()
	if err != nil {
		runtime.Logger().Error().
			Int("task", n).
			Str("command", command).
			Bytes("output", out).
			Err(err).
			Msg("run task command failed")
		return
	}
	runtime.Logger().Info().
		Int("task", n).
		Str("command", command).
		Msg("run task command completed")
}

func buildScheduler(sc config.Scheduler) *runtime.Scheduler {
	opts := []runtime.Option{runtime.WithAuditor(runtime.NewLogAuditor())}
	if sc.Notifier == "channel" {
		opts = append(opts, runtime.WithNotifier(runtime.NewChannelNotifier()))
	}
	return runtime.NewScheduler(sc.Threads, sc.UseCaller, sc.Name, opts...)
}

func configureLogging(lc config.Logging) {
	level, err := zerolog.ParseLevel(lc.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if lc.JSON {
		runtime.SetLogger(zerolog.New(cmdOut).With().Timestamp().Logger())
		return
	}
	runtime.SetLogger(zerolog.New(zerolog.ConsoleWriter{Out: cmdOut}).With().Timestamp().Logger())
}
