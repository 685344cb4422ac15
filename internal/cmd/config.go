package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mgx3d/tkutil/internal/config"
	"github.com/mgx3d/tkutil/internal/errors"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or create the mgx3d configuration",
	Long: `View or create the mgx3d configuration.

Without arguments, displays the current configuration.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/mgx3d/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for invalid values",
	RunE:  runConfigValidate,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "# Config file: (none - using defaults)\n")
	}

	data, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if _, err := config.Load(); err != nil {
		var verrs config.ValidationErrors
		if errors.As(err, &verrs) {
			for _, v := range verrs {
				fmt.Fprintf(out, "✗ %s\n", v.Error())
			}
			return fmt.Errorf("configuration has %d invalid values: %w", len(verrs), errors.ErrInvalidInput)
		}
		return err
	}

	fmt.Fprintln(out, "✓ configuration is valid")
	return nil
}

// defaultConfigContent is written by `mgx3d config init`.
const defaultConfigContent = `# mgx3d configuration

# Structured JSON log of object lifecycles (read it with 'mgx3d logs')
logging:
  enabled: true
  # debug, info, warn or error. debug logs every edge change.
  level: info
  # Defaults to $XDG_STATE_HOME/mgx3d (~/.local/state/mgx3d)
  dir: ""
  # Rotate mgx3d.log past this size; 0 disables rotation
  max_size_mb: 10
  max_backups: 3
  compress: false

# How the CLI builds objects
objects:
  # Give every object its own mutex
  mutex: true
  # Publish lifecycle events (feeds the metrics shown by 'mgx3d stress')
  publish_events: true

# Defaults of 'mgx3d stress'
stress:
  workers: 8
  iterations: 1000
  blocking: false
  registry: true
  # 0 means no limit
  timeout_seconds: 60

# Defaults of 'mgx3d run'
scenario:
  stop_on_error: false
  watch_debounce_ms: 200

output:
  # auto, always or never
  color: auto
  # text or json
  format: text
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return errors.NewAlreadyExistsError("config file", configFile)
	}

	// Create config directory
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(defaultConfigContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", config.ConfigFile())
	}

	// Also show config search paths
	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Fprintf(out, "  2. ./config.yaml (current directory)\n")
	fmt.Fprintln(out, "\nEnvironment variables: MGX3D_* (e.g., MGX3D_STRESS_WORKERS)")

	return nil
}
