package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/nanoprobe/am"
	"github.com/teranos/nanoprobe/pulse/history"
	"github.com/teranos/nanoprobe/sym"
)

// HistoryCmd represents the history command
var HistoryCmd = &cobra.Command{
	Use:   "history",
	Short: sym.DB + " Inspect execution history",
	Long: sym.DB + ` history — Inspect execution history

Every command run started by the agent is recorded with its outcome.

Examples:
  nanoprobe history ls                       # Newest runs across all resources
  nanoprobe history ls --resource nic0       # Runs for one resource
  nanoprobe history ls --status failed       # Failed runs only
  nanoprobe history show <id>                # One run with its output
  nanoprobe history prune --days 7           # Delete runs older than a week`,
}

var historyLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recent executions",
	RunE:  runHistoryLs,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one execution with its output",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old executions",
	Long:  "Delete executions older than --days (default: history.retention_days)",
	RunE:  runHistoryPrune,
}

var (
	historyResource string
	historyStatus   string
	historyLimit    int
	historyOffset   int
	historyJSON     bool
	pruneDays       int
)

func init() {
	historyLsCmd.Flags().StringVar(&historyResource, "resource", "", "Only show this resource")
	historyLsCmd.Flags().StringVar(&historyStatus, "status", "", "Only show this status: running, completed, failed")
	historyLsCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of executions to show")
	historyLsCmd.Flags().IntVar(&historyOffset, "offset", 0, "Skip this many executions")
	historyLsCmd.Flags().BoolVar(&historyJSON, "json", false, "Output as JSON")
	historyPruneCmd.Flags().IntVar(&pruneDays, "days", 0, "Retention in days (default: history.retention_days)")

	HistoryCmd.AddCommand(historyLsCmd)
	HistoryCmd.AddCommand(historyShowCmd)
	HistoryCmd.AddCommand(historyPruneCmd)
}

func runHistoryLs(cmd *cobra.Command, args []string) error {
	switch historyStatus {
	case "", history.StatusRunning, history.StatusCompleted, history.StatusFailed:
	default:
		return fmt.Errorf("unknown status %q (use running, completed or failed)", historyStatus)
	}

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	execs, total, err := history.NewStore(database).ListExecutions(historyResource, historyLimit, historyOffset, historyStatus)
	if err != nil {
		return err
	}

	if historyJSON {
		return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
			"total":      total,
			"executions": execs,
		})
	}

	if len(execs) == 0 {
		pterm.Info.Println("No executions recorded")
		return nil
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(executionTable(execs)).Render(); err != nil {
		return err
	}
	pterm.Printfln("Showing %d of %d", len(execs), total)
	return nil
}

// executionTable renders executions as table rows with a header
func executionTable(execs []*history.Execution) pterm.TableData {
	rows := pterm.TableData{{"ID", "Resource", "Status", "Started", "Duration", "Result", "Command"}}
	for _, e := range execs {
		rows = append(rows, []string{
			shortID(e.ID),
			e.Resource,
			e.Status,
			e.StartedAt,
			formatDuration(e.DurationMs),
			formatResult(e),
			e.Command,
		})
	}
	return rows
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDuration(ms *int) string {
	if ms == nil {
		return "-"
	}
	return strconv.Itoa(*ms) + "ms"
}

func formatResult(e *history.Execution) string {
	if e.HowDied == nil {
		return "-"
	}
	var b strings.Builder
	b.WriteString(*e.HowDied)
	if e.ExitCode != nil {
		fmt.Fprintf(&b, "(%d)", *e.ExitCode)
	}
	if e.TimedOut {
		b.WriteString(" timeout")
	}
	return b.String()
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	store := history.NewStore(database)
	exec, err := store.GetExecution(args[0])
	if err != nil {
		// Accept the short id printed by ls
		exec, err = findByPrefix(store, args[0])
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:        %s\n", exec.ID)
	fmt.Fprintf(out, "Resource:  %s\n", exec.Resource)
	fmt.Fprintf(out, "Command:   %s\n", exec.Command)
	fmt.Fprintf(out, "Status:    %s\n", exec.Status)
	fmt.Fprintf(out, "Result:    %s\n", formatResult(exec))
	fmt.Fprintf(out, "Started:   %s\n", exec.StartedAt)
	if exec.CompletedAt != nil {
		fmt.Fprintf(out, "Completed: %s (%s)\n", *exec.CompletedAt, formatDuration(exec.DurationMs))
	}
	if exec.Output != nil && *exec.Output != "" {
		fmt.Fprintf(out, "\n%s\n", *exec.Output)
	}
	return nil
}

func findByPrefix(store *history.Store, prefix string) (*history.Execution, error) {
	execs, _, err := store.ListExecutions("", 500, 0, "")
	if err != nil {
		return nil, err
	}
	var match *history.Execution
	for _, e := range execs {
		if strings.HasPrefix(e.ID, prefix) {
			if match != nil {
				return nil, fmt.Errorf("id prefix %q is ambiguous", prefix)
			}
			match = e
		}
	}
	if match == nil {
		return nil, fmt.Errorf("no execution with id %q", prefix)
	}
	return match, nil
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	days := pruneDays
	if days <= 0 {
		cfg, err := am.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		days = cfg.History.RetentionDays
	}
	if days <= 0 {
		pterm.Info.Println("Retention is unlimited, nothing to prune")
		return nil
	}

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	deleted, err := history.NewStore(database).CleanupOldExecutions(days)
	if err != nil {
		return err
	}
	pterm.Success.Printfln("Deleted %d executions older than %d days", deleted, days)
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
