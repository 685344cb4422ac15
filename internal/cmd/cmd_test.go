package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mgx3d/tkutil/internal/errors"
	"github.com/mgx3d/tkutil/internal/logging"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err = root.Execute()
	return buf.String(), err
}

// resetFlags restores every flag of c and its subcommands to its default,
// since the command tree is shared between tests.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// setupTestEnvironment isolates config, logs and viper state in temp dirs
func setupTestEnvironment(t *testing.T) (configDir, stateDir string) {
	t.Helper()

	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(base, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(base, "state"))
	t.Setenv("MGX3D_OUTPUT_COLOR", "never")

	viper.Reset()
	resetFlags(rootCmd)
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	t.Cleanup(viper.Reset)

	return filepath.Join(base, "config", "mgx3d"), filepath.Join(base, "state", "mgx3d")
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "mgx3d" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "mgx3d")
	}

	// Check for expected subcommands (compare by Name(), not Use which includes args)
	expectedCmds := []string{"stress", "run", "config", "logs", "version"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}

	for _, expected := range expectedCmds {
		if !cmdMap[expected] {
			t.Errorf("expected subcommand %q not found", expected)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	setupTestEnvironment(t)

	output, err := executeCommand(rootCmd, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(output, "mgx3d ") {
		t.Errorf("version output = %q, want it to start with %q", output, "mgx3d ")
	}
}

func TestConfigInitCommand(t *testing.T) {
	configDir, _ := setupTestEnvironment(t)

	output, err := executeCommand(rootCmd, "config", "init")
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(output, "Created config file") {
		t.Errorf("unexpected output: %q", output)
	}

	configFile := filepath.Join(configDir, "config.yaml")
	if _, err := os.Stat(configFile); err != nil {
		t.Fatalf("config file not created: %v", err)
	}

	// The generated file must load and validate
	if _, err := executeCommand(rootCmd, "config", "validate", "--config", configFile); err != nil {
		t.Errorf("generated config does not validate: %v", err)
	}

	_, err = executeCommand(rootCmd, "config", "init")
	if !errors.Is(err, &errors.AlreadyExistsError{}) {
		t.Errorf("second config init error = %v, want AlreadyExistsError", err)
	}
}

func TestConfigShowCommand(t *testing.T) {
	setupTestEnvironment(t)

	output, err := executeCommand(rootCmd, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	for _, want := range []string{"(none - using defaults)", "stress:", "iterations: 1000"} {
		if !strings.Contains(output, want) {
			t.Errorf("config show output missing %q:\n%s", want, output)
		}
	}
}

func TestConfigValidateCommand(t *testing.T) {
	setupTestEnvironment(t)
	// An empty variable counts as unset, so the file value is used
	t.Setenv("MGX3D_OUTPUT_COLOR", "")

	configFile := filepath.Join(t.TempDir(), "bad.yaml")
	content := "stress:\n  workers: 0\noutput:\n  color: rainbow\n"
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	output, err := executeCommand(rootCmd, "config", "validate", "--config", configFile)
	if err == nil {
		t.Fatal("config validate should fail")
	}
	if !strings.Contains(err.Error(), "2 invalid values") {
		t.Errorf("error = %v, want 2 invalid values", err)
	}
	for _, want := range []string{"stress.workers", "output.color"} {
		if !strings.Contains(output, want) {
			t.Errorf("validate output missing %q:\n%s", want, output)
		}
	}
}

func TestStressCommand(t *testing.T) {
	setupTestEnvironment(t)

	output, err := executeCommand(rootCmd, "stress", "-w", "3", "-n", "20", "--registry")
	if err != nil {
		t.Fatalf("stress failed: %v\n%s", err, output)
	}
	for _, want := range []string{"Stress run", "PASS", "edges added", "registry size", "mgx3d_registry_operations_total{op=register}"} {
		if !strings.Contains(output, want) {
			t.Errorf("stress output missing %q:\n%s", want, output)
		}
	}
}

func TestStressCommand_JSON(t *testing.T) {
	setupTestEnvironment(t)
	t.Setenv("MGX3D_OUTPUT_FORMAT", "json")

	output, err := executeCommand(rootCmd, "stress", "-w", "2", "-n", "5", "--blocking")
	if err != nil {
		t.Fatalf("stress failed: %v\n%s", err, output)
	}

	var got struct {
		OK     bool `json:"ok"`
		Report struct {
			Workers  int  `json:"workers"`
			Blocking bool `json:"blocking"`
		} `json:"report"`
	}
	if err := json.Unmarshal([]byte(output), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, output)
	}
	if !got.OK || got.Report.Workers != 2 || !got.Report.Blocking {
		t.Errorf("unexpected report: %+v", got)
	}
}

func TestRunCommand(t *testing.T) {
	setupTestEnvironment(t)

	scenarios := filepath.Join("..", "scenario", "testdata")
	output, err := executeCommand(rootCmd, "run",
		filepath.Join(scenarios, "geo1.yaml"),
		filepath.Join(scenarios, "lifecycle.yaml"))
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, output)
	}
	if strings.Count(output, "PASS") != 2 {
		t.Errorf("expected two passing scenarios:\n%s", output)
	}
	if !strings.Contains(output, "expected error:") {
		t.Errorf("expected errors should be shown:\n%s", output)
	}
}

func TestRunCommand_Failures(t *testing.T) {
	setupTestEnvironment(t)

	failing := filepath.Join(t.TempDir(), "failing.yaml")
	body := "name: failing\nversion: \"1\"\nsteps:\n  - op: register\n    object: ghost\n"
	if err := os.WriteFile(failing, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write scenario: %v", err)
	}
	invalid := filepath.Join("..", "scenario", "testdata", "invalid.yaml")

	output, err := executeCommand(rootCmd, "run", failing, invalid)
	if err == nil {
		t.Fatal("run should fail")
	}
	if !strings.Contains(err.Error(), "2 of 2 scenarios failed") {
		t.Errorf("error = %v", err)
	}
	if !strings.Contains(output, "object 'ghost' not found") {
		t.Errorf("failure reason missing:\n%s", output)
	}

	_, err = executeCommand(rootCmd, "run", "--watch", failing, invalid)
	if err == nil || !strings.Contains(err.Error(), "exactly one scenario file") {
		t.Errorf("--watch with two files error = %v", err)
	}
}

func TestLogsCommand(t *testing.T) {
	_, stateDir := setupTestEnvironment(t)

	if output, err := executeCommand(rootCmd, "stress", "-w", "2", "-n", "4"); err != nil {
		t.Fatalf("stress failed: %v\n%s", err, output)
	}
	if _, err := os.Stat(filepath.Join(stateDir, logging.LogFileName)); err != nil {
		t.Fatalf("log file not written: %v", err)
	}

	output, err := executeCommand(rootCmd, "logs", "-n", "0", "--component", "stress", "--format", "json")
	if err != nil {
		t.Fatalf("logs failed: %v", err)
	}

	var entries []logging.LogEntry
	if err := json.Unmarshal([]byte(output), &entries); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, output)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d stress entries, want 2 (started, finished):\n%s", len(entries), output)
	}
	if entries[0].Message != "stress run started" {
		t.Errorf("first entry = %q, want %q", entries[0].Message, "stress run started")
	}

	_, err = executeCommand(rootCmd, "logs", "--format", "xml")
	if err == nil {
		t.Error("logs with an invalid format should fail")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, exitOK},
		{"scenario failures", errors.New("1 of 2 scenarios failed"), exitFailure},
		{"invalid config", errors.Wrap(errors.ErrInvalidInput, "configuration has 2 invalid values"), exitInvalid},
		{"canceled stress run", errors.Join(errors.ErrCanceled, context.DeadlineExceeded), exitCanceled},
		{"second manager", errors.NewRegistryError("cannot install", errors.ErrManagerExists), exitUsage},
		{"naming conflict", errors.NewRegistryError("taken", errors.ErrAlreadyReferenced), exitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
