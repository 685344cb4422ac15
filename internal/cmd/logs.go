package cmd

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mgx3d/tkutil/internal/logging"
	"github.com/mgx3d/tkutil/internal/styles"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View object lifecycle logs",
	Long: `View and filter the structured lifecycle log, including rotated and
compressed backups.

Examples:
  # Show the last 50 entries
  mgx3d logs

  # Everything the registry logged, as CSV
  mgx3d logs -n 0 --component registry --format csv

  # Warnings about one object from the last hour
  mgx3d logs --level warn --object 42 --since 1h

  # Entries mentioning a message fragment
  mgx3d logs --grep "destroy refused"`,
	RunE: runLogs,
}

var (
	logsDir       string
	logsTail      int
	logsLevel     string
	logsSince     string
	logsComponent string
	logsObject    uint64
	logsName      string
	logsGrep      string
	logsFormat    string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().StringVar(&logsDir, "dir", "", "Log directory (default from config)")
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of entries to show (0 for all)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsComponent, "component", "", "Filter by component (refobj, registry, stress, scenario, event)")
	logsCmd.Flags().Uint64Var(&logsObject, "object", 0, "Filter by object ID")
	logsCmd.Flags().StringVar(&logsName, "name", "", "Filter by unique name")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter messages containing this text")
	logsCmd.Flags().StringVar(&logsFormat, "format", "text", "Output format (text/json/csv)")
}

func runLogs(cmd *cobra.Command, args []string) error {
	if !slices.Contains(logging.ValidExportFormats(), logsFormat) {
		return fmt.Errorf("invalid format %q (supported: %s)", logsFormat, strings.Join(logging.ValidExportFormats(), ", "))
	}

	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	filter := logging.LogFilter{
		Component:       logsComponent,
		ObjectID:        logsObject,
		UniqueName:      logsName,
		MessageContains: logsGrep,
	}
	if logsLevel != "" {
		filter.Level = logging.ParseLevel(logsLevel)
	}
	if logsSince != "" {
		duration, err := time.ParseDuration(logsSince)
		if err != nil {
			return fmt.Errorf("invalid duration format: %w", err)
		}
		filter.StartTime = time.Now().Add(-duration)
	}

	dir := logsDir
	if dir == "" {
		dir = rt.cfg.Logging.ResolveDir()
	}
	entries, err := logging.ReadLogs(dir)
	if err != nil {
		return err
	}
	entries = logging.FilterLogs(entries, filter)

	// Apply tail limit
	if logsTail > 0 && len(entries) > logsTail {
		entries = entries[len(entries)-logsTail:]
	}

	out := cmd.OutOrStdout()
	if logsFormat == "text" && rt.palette.Color() {
		for _, entry := range entries {
			fmt.Fprintln(out, formatLogEntry(rt.palette, entry))
		}
		return nil
	}
	return logging.WriteLogEntries(out, entries, logsFormat)
}

// formatLogEntry formats a log entry for terminal output
func formatLogEntry(p *styles.Palette, entry logging.LogEntry) string {
	var sb strings.Builder

	sb.WriteString(p.Muted("[" + entry.Timestamp.Format("15:04:05.000") + "]"))
	sb.WriteString(" ")
	sb.WriteString(levelStyle(p, entry.Level))
	if entry.Component != "" {
		sb.WriteString(" ")
		sb.WriteString(p.Subtitle(entry.Component))
	}
	sb.WriteString(" ")
	sb.WriteString(entry.Message)

	if entry.ObjectID != 0 {
		sb.WriteString(" ")
		sb.WriteString(p.Muted("object_id=" + strconv.FormatUint(entry.ObjectID, 10)))
	}
	if entry.UniqueName != "" {
		sb.WriteString(" ")
		sb.WriteString(p.Muted("unique_name=" + entry.UniqueName))
	}
	for _, key := range slices.Sorted(maps.Keys(entry.Attrs)) {
		v, _ := json.Marshal(entry.Attrs[key])
		sb.WriteString(" ")
		sb.WriteString(p.Muted(key + "=" + string(v)))
	}
	return sb.String()
}

// levelStyle renders a level tag in its color
func levelStyle(p *styles.Palette, level string) string {
	tag := "[" + level + "]"
	switch level {
	case logging.LevelError:
		return p.Fail(tag)
	case logging.LevelWarn:
		return p.Warn(tag)
	case logging.LevelInfo:
		return p.Pass(tag)
	default:
		return p.Muted(tag)
	}
}
