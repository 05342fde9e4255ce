package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teranos/nanoprobe/am"
	"github.com/teranos/nanoprobe/errors"
	"github.com/teranos/nanoprobe/logger"
	"github.com/teranos/nanoprobe/pulse/executor"
	"github.com/teranos/nanoprobe/pulse/history"
	"github.com/teranos/nanoprobe/pulse/monitor"
	"github.com/teranos/nanoprobe/pulse/reactor"
	"github.com/teranos/nanoprobe/pulse/rscqueue"
	"github.com/teranos/nanoprobe/sym"
)

// RunCmd runs the monitors in the foreground
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: sym.Pulse + " Run monitors from a definitions file",
	Long: sym.Pulse + ` Run monitors in the foreground until interrupted.

Each monitor's command is queued on its resource. The reactor ticks the queue,
starting at most one command per resource at a time; finished checks are
rescheduled on their repeat interval or cron expression, and failing checks
back off. Runs are recorded in the history database when history.enabled is set.

Examples:
  nanoprobe run                              # Use definitions.path (default: monitors.toml)
  nanoprobe run -d /etc/nanoprobe/checks.yaml
  nanoprobe run --once                       # Run every monitor once; exit 1 if any failed
  nanoprobe run --watch                      # Apply am.toml changes without restarting`,
	RunE: runMonitors,
}

var (
	definitionsPath string
	runOnce         bool
	watchConfig     bool
)

func init() {
	RunCmd.Flags().StringVarP(&definitionsPath, "definitions", "d", "", "Monitor definitions file (.toml, .yaml)")
	RunCmd.Flags().BoolVar(&runOnce, "once", false, "Run every monitor once and exit")
	RunCmd.Flags().BoolVar(&watchConfig, "watch", false, "Reload configuration when the user config file changes")
}

func runMonitors(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	path := definitionsPath
	if path == "" {
		path = cfg.Definitions.Path
	}
	if path == "" {
		path = am.DefaultDefinitionsPath
	}
	defs, err := monitor.LoadDefinitions(path)
	if err != nil {
		return err
	}
	if len(defs.Monitors) == 0 {
		return errors.WithHint(errors.Newf("no monitors defined in %s", path), "add [[monitor]] entries")
	}
	if runOnce {
		forceOnce(defs)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.Logger
	r := reactor.NewWithContext(ctx, reactor.Config{Interval: cfg.TickInterval(), Clock: time.Now}, log)

	var results chan monitor.Result
	deps := monitor.Deps{
		Config:  cfg,
		Spawner: executor.NewSpawner(cfg.Executor.MaxSpawnsPerSecond, cfg.Executor.Burst),
		Logger:  log,
	}
	if runOnce {
		results = make(chan monitor.Result, len(defs.Monitors))
		deps.Publisher = monitor.PublisherFunc(func(res monitor.Result) { results <- res })
	}

	monitors, err := monitor.Build(defs, deps)
	if err != nil {
		return err
	}
	logger.SymbolInfow(sym.Probe, "Monitors loaded", logger.FieldCount, len(monitors), "definitions", path)

	if cfg.History.Enabled {
		shutdownHistory, err := startHistory(cfg, r, log)
		if err != nil {
			return err
		}
		defer shutdownHistory()
	}

	if watchConfig {
		if stopWatch := watchUserConfig(r, log); stopWatch != nil {
			defer stopWatch()
		}
	}

	r.Start()
	if err := startMonitors(r, monitors); err != nil {
		r.Stop()
		return err
	}
	r.TickNow()

	if !runOnce {
		pterm.Info.Printfln("%s %d monitors running from %s (tick %s). Press Ctrl+C to stop.",
			sym.Pulse, len(monitors), path, cfg.TickInterval())
	}

	var failed int
	if runOnce {
		failed, err = collectResults(ctx, results, len(monitors))
	} else {
		<-ctx.Done()
	}

	stopMonitors(r, monitors)
	stats := r.Stats()
	r.Stop()

	if !runOnce {
		pterm.Info.Printfln("%s Stopped after %d ticks, %d commands started, %d completed",
			sym.PulseClose, stats.TicksSinceStart, stats.StartedTotal, stats.CompletedTotal)
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d monitors failed", failed, len(monitors))
	}
	return nil
}

// forceOnce turns every definition into a single run
func forceOnce(defs *monitor.Definitions) {
	for i := range defs.Monitors {
		defs.Monitors[i].Repeat = monitor.RepeatOnce
		defs.Monitors[i].Cron = ""
	}
}

func startMonitors(r *reactor.Reactor, monitors []*monitor.Monitor) error {
	var startErr error
	err := r.Do(func(q *rscqueue.ResourceQueue) {
		for _, m := range monitors {
			if err := m.Start(q); err != nil {
				startErr = err
				return
			}
		}
	})
	if err != nil {
		return err
	}
	return startErr
}

func stopMonitors(r *reactor.Reactor, monitors []*monitor.Monitor) {
	// The reactor may already be gone when the signal context was cancelled
	_ = r.Do(func(q *rscqueue.ResourceQueue) {
		for _, m := range monitors {
			m.Stop()
		}
	})
}

// collectResults waits for n one-shot results and prints them; it returns the number that failed
func collectResults(ctx context.Context, results <-chan monitor.Result, n int) (int, error) {
	failed := 0
	for i := 0; i < n; i++ {
		select {
		case res := <-results:
			printResult(res)
			if res.Status == monitor.StatusFailed {
				failed++
			}
		case <-ctx.Done():
			return failed, errors.New("interrupted before every monitor finished")
		}
	}
	return failed, nil
}

func printResult(res monitor.Result) {
	c := res.Completion
	line := fmt.Sprintf("%s [%s] %s (%s, %dms)", res.Monitor, res.Resource, c.How, res.Command, c.Duration.Milliseconds())
	switch {
	case res.Status == monitor.StatusOK:
		pterm.Success.Println(line)
	case c.TimedOut:
		pterm.Error.Printfln("%s timed out", line)
	default:
		pterm.Error.Printfln("%s rc=%d", line, c.ExitCode)
	}
}

// startHistory attaches a recorder to r and schedules daily pruning.
// The returned function flushes pending records and closes the database.
func startHistory(cfg *am.Config, r *reactor.Reactor, log *zap.SugaredLogger) (func(), error) {
	database, err := openDatabase(cfg.GetDatabasePath())
	if err != nil {
		return nil, err
	}

	store := history.NewStore(database)
	if n, err := store.FailAbandoned(time.Now()); err != nil {
		log.Warnw("Failed to close out abandoned executions", logger.FieldError, err)
	} else if n > 0 {
		log.Infow("Marked executions from a previous run as failed", logger.FieldCount, n)
	}

	prune := func() {
		if cfg.History.RetentionDays <= 0 {
			return
		}
		n, err := store.CleanupOldExecutions(cfg.History.RetentionDays)
		if err != nil {
			log.Warnw("History prune failed", logger.FieldError, err)
			return
		}
		log.Debugw("History pruned", logger.FieldCount, n)
	}
	prune()

	pruner := cron.New()
	if _, err := pruner.AddFunc("@daily", prune); err != nil {
		database.Close()
		return nil, errors.Wrap(err, "failed to schedule history pruning")
	}
	pruner.Start()

	recorder := history.NewRecorder(store, cfg.History.Buffer, log)
	recorder.Start()
	r.AddObserver(recorder)

	return func() {
		<-pruner.Stop().Done()
		recorder.Stop()
		database.Close()
	}, nil
}

// watchUserConfig applies tick interval changes from ~/.nanoprobe/am.toml while running
func watchUserConfig(r *reactor.Reactor, log *zap.SugaredLogger) func() {
	watcher, err := am.NewConfigWatcher(am.GetUserConfigPath())
	if err != nil {
		logger.SymbolWarnw(sym.AM, "Config watch disabled", logger.FieldError, err)
		return nil
	}

	watcher.OnReload(func(cfg *am.Config) error {
		return r.SetInterval(cfg.TickInterval())
	})
	am.SetGlobalWatcher(watcher)
	watcher.Start()

	return func() {
		am.SetGlobalWatcher(nil)
		if err := watcher.Stop(); err != nil {
			log.Debugw("Config watcher stop failed", logger.FieldError, err)
		}
	}
}
