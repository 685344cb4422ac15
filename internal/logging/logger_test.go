package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// decodeLines parses every JSON line written by a logger.
func decodeLines(t *testing.T, data []byte) []map[string]any {
	t.Helper()

	var lines []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		lines = append(lines, m)
	}
	return lines
}

func TestNewLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")

	logger, err := NewLogger(dir, LevelDebug)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	logger.Info("object destroyed", "object_id", 3)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	lines := decodeLines(t, data)
	if len(lines) != 1 || lines[0]["msg"] != "object destroyed" {
		t.Errorf("log file = %s", data)
	}
}

func TestNewLogger_Append(t *testing.T) {
	dir := t.TempDir()

	for i := range 2 {
		logger, err := NewLogger(dir, LevelInfo)
		if err != nil {
			t.Fatalf("NewLogger() #%d error = %v", i, err)
		}
		logger.Info("session", "n", i)
		logger.Close()
	}

	data, _ := os.ReadFile(filepath.Join(dir, LogFileName))
	if n := len(decodeLines(t, data)); n != 2 {
		t.Errorf("reopening the log truncated it: %d lines", n)
	}
}

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  []string
	}{
		{LevelDebug, []string{"DEBUG", "INFO", "WARN", "ERROR"}},
		{LevelInfo, []string{"INFO", "WARN", "ERROR"}},
		{LevelWarn, []string{"WARN", "ERROR"}},
		{LevelError, []string{"ERROR"}},
		{"warn", []string{"WARN", "ERROR"}},
		{"bogus", []string{"INFO", "WARN", "ERROR"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWriterLogger(&buf, tt.level)

			logger.Debug("d")
			logger.Info("i")
			logger.Warn("w")
			logger.Error("e")

			var got []string
			for _, line := range decodeLines(t, buf.Bytes()) {
				got = append(got, line["level"].(string))
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("levels written = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnabled(t *testing.T) {
	logger := NewWriterLogger(&bytes.Buffer{}, LevelWarn)

	tests := map[string]bool{
		LevelDebug: false,
		LevelInfo:  false,
		LevelWarn:  true,
		LevelError: true,
	}
	for level, want := range tests {
		if got := logger.Enabled(level); got != want {
			t.Errorf("Enabled(%s) = %v, want %v", level, got, want)
		}
	}
}

func TestChildLoggers(t *testing.T) {
	var buf bytes.Buffer
	root := NewWriterLogger(&buf, LevelDebug)

	registry := root.WithComponent("registry")
	object := registry.WithObject(42, "geo1")
	anonymous := registry.WithObject(7, "")
	tagged := object.With("op", "register", 99, "dropped", "dangling")

	root.Info("root")
	object.Info("object")
	anonymous.Info("anonymous")
	tagged.Info("tagged", "blocks_destruction", false)

	lines := decodeLines(t, buf.Bytes())
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4", len(lines))
	}

	tests := []struct {
		line   map[string]any
		has    map[string]any
		hasNot []string
	}{
		{lines[0], map[string]any{"msg": "root"}, []string{"component", "object_id"}},
		{lines[1], map[string]any{"component": "registry", "object_id": 42.0, "unique_name": "geo1"}, nil},
		{lines[2], map[string]any{"object_id": 7.0}, []string{"unique_name"}},
		{lines[3], map[string]any{"op": "register", "unique_name": "geo1", "blocks_destruction": false}, []string{"dropped", "dangling"}},
	}
	for i, tt := range tests {
		for k, want := range tt.has {
			if got := tt.line[k]; got != want {
				t.Errorf("line %d: %s = %v, want %v", i, k, got, want)
			}
		}
		for _, k := range tt.hasNot {
			if _, ok := tt.line[k]; ok {
				t.Errorf("line %d: unexpected key %q", i, k)
			}
		}
	}
}

func TestWithNoArgsReturnsSameLogger(t *testing.T) {
	logger := NewWriterLogger(&bytes.Buffer{}, LevelInfo)
	if logger.With() != logger {
		t.Error("With() without attributes should return the receiver")
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()

	logger.Error("discarded")
	if logger.Enabled(LevelError) {
		t.Error("NopLogger should not be enabled at any level")
	}
	if err := logger.WithComponent("refobj").Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"DEBUG", LevelDebug},
		{"debug", LevelDebug},
		{" Warn ", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"trace", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidLevels(t *testing.T) {
	levels := ValidLevels()
	if len(levels) != 4 || levels[0] != LevelDebug || levels[3] != LevelError {
		t.Errorf("ValidLevels() = %v", levels)
	}
}

func TestCloseSharedByChildren(t *testing.T) {
	logger, err := NewLogger(t.TempDir(), LevelInfo)
	if err != nil {
		t.Fatal(err)
	}
	child := logger.WithComponent("stress")

	if err := child.Close(); err != nil {
		t.Fatalf("child Close() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
}

func TestConcurrentWrites(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, LevelInfo)
	if err != nil {
		t.Fatal(err)
	}

	const writers, perWriter = 8, 50
	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			child := logger.WithObject(uint64(w), "")
			for i := range perWriter {
				child.Info("edge registered", "i", i)
			}
		}()
	}
	wg.Wait()
	logger.Close()

	data, _ := os.ReadFile(filepath.Join(dir, LogFileName))
	if n := len(decodeLines(t, data)); n != writers*perWriter {
		t.Errorf("got %d lines, want %d", n, writers*perWriter)
	}
}
