package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mgx3d/tkutil/internal/config"
	"github.com/mgx3d/tkutil/internal/errors"
)

var rootCmd = &cobra.Command{
	Use:   "mgx3d",
	Short: "Reference-counted object graph toolkit",
	Long: `mgx3d drives the reference-counted observer core used by the Mgx3D
modeler: it stress-tests the lock discipline of the object graph, runs
scripted registry scenarios and inspects the lifecycle logs.`,
	SilenceUsage: true,
}

// Exit codes returned by ExitCode.
const (
	exitOK       = 0
	exitFailure  = 1 // a run completed with failures or mismatches
	exitInvalid  = 2 // bad flags, scenario or configuration
	exitUsage    = 3 // the object graph was misused (critical severity)
	exitCanceled = 130
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errors.ErrCanceled):
		return exitCanceled
	case errors.IsUsageError(err), errors.GetSeverity(err) == errors.SeverityCritical:
		return exitUsage
	case errors.Is(err, errors.ErrInvalidInput):
		return exitInvalid
	default:
		return exitFailure
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/mgx3d/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("MGX3D")
	// Replace dots with underscores for nested keys in env vars
	// e.g., MGX3D_STRESS_WORKERS for stress.workers
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
