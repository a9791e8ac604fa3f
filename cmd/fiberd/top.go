package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"fiberd/config"
	"fiberd/runtime"
)

var (
	topInterval   time.Duration
	topTasks      int
	topStatusAddr int
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Run a synthetic workload and print a live dispatch dashboard",
	RunE:  runTop,
}

func init() {
	topCmd.Flags().DurationVar(&topInterval, "interval", 250*time.Millisecond, "refresh interval")
	topCmd.Flags().IntVar(&topTasks, "tasks", 10000, "number of synthetic tasks to feed the dashboard")
	topCmd.Flags().IntVar(&topStatusAddr, "status-port", 0, "also serve GET /stats as JSON on this port (0 disables it)")
}

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			BorderForeground(lipgloss.Color("240"))
)

func runTop(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	configureLogging(cfg.Logging)

	sched := buildScheduler(cfg.Scheduler)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("fiberd top: start: %w", err)
	}

	var status *runtime.StatusServer
	if topStatusAddr > 0 {
		status = runtime.NewStatusServer(sched)
		if err := status.Start(topStatusAddr); err != nil {
			return fmt.Errorf("fiberd top: status server: %w", err)
		}
		defer status.Stop()
	}

	done := make(chan struct{})
	go feedSyntheticWorkload(sched, topTasks, done)

	ticker := time.NewTicker(topInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			sched.Stop()
			renderDashboard(sched.Stats(), true)
			return nil
		case <-ticker.C:
			renderDashboard(sched.Stats(), false)
		}
	}
}

func feedSyntheticWorkload(sched *runtime.Scheduler, n int, done chan<- struct{}) {
	for i := 0; i < n; i++ {
		_ = sched.ScheduleCallable(func() {
			runtime.GetThis().Yield()
		}, runtime.AnyThread)
	}
	// Give the workers a moment to drain the tail of the queue before
	// the caller declares done; this is a dashboard demo, not a
	// completion barrier, so a short sleep is adequate here.
	time.Sleep(500 * time.Millisecond)
	close(done)
}

func renderDashboard(s runtime.Stats, final bool) {
	title := labelStyle.Render(fmt.Sprintf("fiberd · %s", s.Name))
	if final {
		title += valueStyle.Render(" (final)")
	}
	body := fmt.Sprintf(
		"%s %s\n%s %s\n%s %s\n%s %s",
		labelStyle.Render("queue depth:"), valueStyle.Render(fmt.Sprint(s.QueueDepth)),
		labelStyle.Render("active:     "), valueStyle.Render(fmt.Sprint(s.ActiveWorkers)),
		labelStyle.Render("idle:       "), valueStyle.Render(fmt.Sprint(s.IdleWorkers)),
		labelStyle.Render("completed:  "), valueStyle.Render(fmt.Sprintf("%d (%d yields)", s.FibersCompleted, s.Yields)),
	)
	fmt.Println(boxStyle.Render(title + "\n" + body))
}
