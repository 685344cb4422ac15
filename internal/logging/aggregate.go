package logging

import (
	"bufio"
	"compress/gzip"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// LogEntry is one parsed line of mgx3d.log.
type LogEntry struct {
	Timestamp  time.Time      `json:"time"`
	Level      string         `json:"level"`
	Message    string         `json:"msg"`
	Component  string         `json:"component,omitempty"`
	ObjectID   uint64         `json:"object_id,omitempty"`
	UniqueName string         `json:"unique_name,omitempty"`
	Attrs      map[string]any `json:"attrs,omitempty"`
}

// LogFilter selects log entries. Zero fields do not filter; set fields are
// combined with AND.
type LogFilter struct {
	// Level keeps entries at or above this level (DEBUG < INFO < WARN < ERROR)
	Level string
	// StartTime and EndTime bound the entry timestamps, inclusive
	StartTime time.Time
	EndTime   time.Time
	// Component keeps entries emitted by this component ("refobj", "registry", ...)
	Component string
	// ObjectID keeps entries about this object handle
	ObjectID uint64
	// UniqueName keeps entries about the object with this unique name
	UniqueName string
	// MessageContains keeps entries whose message contains this substring
	MessageContains string
}

var levelOrder = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// fields lifted out of Attrs into LogEntry.
var standardFields = map[string]bool{
	"time":        true,
	"level":       true,
	"msg":         true,
	"component":   true,
	"object_id":   true,
	"unique_name": true,
}

// ReadLogs parses mgx3d.log in logDir together with its rotated backups,
// plain or gzipped, and returns the entries sorted by time. Lines that are
// not valid JSON are skipped.
func ReadLogs(logDir string) ([]LogEntry, error) {
	current := filepath.Join(logDir, LogFileName)
	if _, err := os.Stat(current); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no log file found in %s: %w", logDir, err)
		}
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	backups, err := filepath.Glob(current + ".*")
	if err != nil {
		return nil, fmt.Errorf("failed to list rotated logs: %w", err)
	}

	var entries []LogEntry
	for _, path := range append(backups, current) {
		fileEntries, err := readLogFile(path)
		if err != nil {
			return nil, err
		}
		entries = append(entries, fileEntries...)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

func readLogFile(path string) ([]LogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open compressed log %s: %w", path, err)
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}

	var entries []LogEntry
	scanner := bufio.NewScanner(r)
	const maxLine = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, err := parseLogEntry(line)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	return entries, nil
}

// parseLogEntry parses a single JSON log line.
func parseLogEntry(line string) (LogEntry, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return LogEntry{}, fmt.Errorf("invalid JSON: %w", err)
	}

	entry := LogEntry{Attrs: make(map[string]any)}
	if s, ok := raw["time"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			entry.Timestamp = t
		}
	}
	entry.Level, _ = raw["level"].(string)
	entry.Message, _ = raw["msg"].(string)
	entry.Component, _ = raw["component"].(string)
	entry.UniqueName, _ = raw["unique_name"].(string)
	if id, ok := raw["object_id"].(float64); ok && id >= 0 {
		entry.ObjectID = uint64(id)
	}

	for k, v := range raw {
		if !standardFields[k] {
			entry.Attrs[k] = v
		}
	}
	return entry, nil
}

// FilterLogs returns the entries matching filter.
func FilterLogs(entries []LogEntry, filter LogFilter) []LogEntry {
	if filter == (LogFilter{}) {
		return entries
	}

	var filtered []LogEntry
	for _, entry := range entries {
		if matchesFilter(entry, filter) {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

func matchesFilter(entry LogEntry, filter LogFilter) bool {
	if filter.Level != "" {
		want, wantOK := levelOrder[strings.ToUpper(filter.Level)]
		got, gotOK := levelOrder[entry.Level]
		if wantOK && gotOK && got < want {
			return false
		}
	}
	if !filter.StartTime.IsZero() && entry.Timestamp.Before(filter.StartTime) {
		return false
	}
	if !filter.EndTime.IsZero() && entry.Timestamp.After(filter.EndTime) {
		return false
	}
	if filter.Component != "" && entry.Component != filter.Component {
		return false
	}
	if filter.ObjectID != 0 && entry.ObjectID != filter.ObjectID && !mentionsObject(entry, filter.ObjectID) {
		return false
	}
	if filter.UniqueName != "" && entry.UniqueName != filter.UniqueName {
		return false
	}
	if filter.MessageContains != "" && !strings.Contains(entry.Message, filter.MessageContains) {
		return false
	}
	return true
}

// mentionsObject reports whether id appears as the target of an edge change.
func mentionsObject(entry LogEntry, id uint64) bool {
	v, ok := entry.Attrs["target_id"].(float64)
	return ok && uint64(v) == id
}

// ValidExportFormats returns the formats accepted by WriteLogEntries.
func ValidExportFormats() []string {
	return []string{"text", "json", "csv"}
}

// WriteLogEntries writes entries to w as "text", "json" or "csv".
func WriteLogEntries(w io.Writer, entries []LogEntry, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "text", "":
		return writeText(w, entries)
	case "csv":
		return writeCSV(w, entries)
	default:
		return fmt.Errorf("unsupported export format: %s (supported: %s)",
			format, strings.Join(ValidExportFormats(), ", "))
	}
}

// writeText writes "[TIME] LEVEL component - message (object=ID name=N) {attrs}".
func writeText(w io.Writer, entries []LogEntry) error {
	for _, entry := range entries {
		parts := []string{
			"[" + entry.Timestamp.Format("2006-01-02 15:04:05.000") + "]",
			entry.Level,
		}
		if entry.Component != "" {
			parts = append(parts, entry.Component)
		}
		parts = append(parts, "-", entry.Message)

		var ctx []string
		if entry.ObjectID != 0 {
			ctx = append(ctx, "object="+strconv.FormatUint(entry.ObjectID, 10))
		}
		if entry.UniqueName != "" {
			ctx = append(ctx, "name="+entry.UniqueName)
		}
		if len(ctx) > 0 {
			parts = append(parts, "("+strings.Join(ctx, " ")+")")
		}
		if len(entry.Attrs) > 0 {
			attrs, _ := json.Marshal(entry.Attrs)
			parts = append(parts, string(attrs))
		}

		if _, err := io.WriteString(w, strings.Join(parts, " ")+"\n"); err != nil {
			return fmt.Errorf("failed to write text entry: %w", err)
		}
	}
	return nil
}

func writeCSV(w io.Writer, entries []LogEntry) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"timestamp", "level", "component", "message", "object_id", "unique_name", "attrs"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, entry := range entries {
		attrs := ""
		if len(entry.Attrs) > 0 {
			if b, err := json.Marshal(entry.Attrs); err == nil {
				attrs = string(b)
			}
		}
		objectID := ""
		if entry.ObjectID != 0 {
			objectID = strconv.FormatUint(entry.ObjectID, 10)
		}
		record := []string{
			entry.Timestamp.Format(time.RFC3339Nano),
			entry.Level,
			entry.Component,
			entry.Message,
			objectID,
			entry.UniqueName,
			attrs,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
