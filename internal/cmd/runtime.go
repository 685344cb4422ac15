package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mgx3d/tkutil/internal/config"
	"github.com/mgx3d/tkutil/internal/event"
	"github.com/mgx3d/tkutil/internal/logging"
	"github.com/mgx3d/tkutil/internal/metrics"
	"github.com/mgx3d/tkutil/internal/styles"
)

// runtime bundles what a command needs to build and observe objects.
type runtime struct {
	cfg     *config.Config
	logger  *logging.Logger
	bus     *event.Bus
	metrics *metrics.Collector
	palette *styles.Palette
}

// newRuntime loads the configuration and opens the log file. The caller
// must Close the runtime.
func newRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, logger: logging.NopLogger()}
	if cfg.Logging.Enabled {
		rt.logger, err = logging.NewLoggerWithRotation(cfg.Logging.ResolveDir(), cfg.Logging.Level, logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Compress:   cfg.Logging.Compress,
		})
		if err != nil {
			return nil, err
		}
	}

	if cfg.Objects.PublishEvents {
		rt.bus = event.NewBus()
		rt.bus.SetLogger(rt.logger)
		rt.metrics = metrics.NewCollector()
		rt.metrics.Attach(rt.bus)
	}

	var out *os.File
	if f, ok := cmd.OutOrStdout().(*os.File); ok {
		out = f
	}
	color := styles.ColorEnabled(cfg.Output.Color, out)
	styles.Force(color)
	rt.palette = styles.New(color)

	return rt, nil
}

// jsonOutput reports whether output.format asks for JSON.
func (rt *runtime) jsonOutput() bool {
	return rt.cfg.Output.Format == "json"
}

// Close detaches the metrics and flushes the log file.
func (rt *runtime) Close() error {
	if rt.metrics != nil {
		rt.metrics.Detach()
	}
	return rt.logger.Close()
}
