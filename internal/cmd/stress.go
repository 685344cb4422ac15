package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mgx3d/tkutil/internal/metrics"
	"github.com/mgx3d/tkutil/internal/stress"
)

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Hammer a shared object from concurrent workers",
	Long: `Run concurrent workers that register and release observer edges on a
shared mutex-protected object, and optionally register uniquely named objects
in a manager. The run fails when the final edge or registry counts differ
from what the workers did.

Defaults come from the stress section of the config file.

Examples:
  # Default run
  mgx3d stress

  # 32 workers with blocking edges, no registry
  mgx3d stress -w 32 --blocking --registry=false`,
	RunE: runStress,
}

var (
	stressWorkers    int
	stressIterations int
	stressBlocking   bool
	stressRegistry   bool
	stressTimeout    int
)

func init() {
	rootCmd.AddCommand(stressCmd)

	stressCmd.Flags().IntVarP(&stressWorkers, "workers", "w", 0, "Number of concurrent workers (default from config)")
	stressCmd.Flags().IntVarP(&stressIterations, "iterations", "n", 0, "Iterations per worker (default from config)")
	stressCmd.Flags().BoolVar(&stressBlocking, "blocking", false, "Worker edges block destruction of the shared object")
	stressCmd.Flags().BoolVar(&stressRegistry, "registry", false, "Also register named objects in a manager")
	stressCmd.Flags().IntVar(&stressTimeout, "timeout", 0, "Abort after this many seconds (default from config)")
}

// stressOutput is the JSON form of a run.
type stressOutput struct {
	OK         bool             `json:"ok"`
	Mismatches []string         `json:"mismatches,omitempty"`
	Report     *stress.Report   `json:"report"`
	Metrics    []metrics.Sample `json:"metrics,omitempty"`
}

func runStress(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	cfg := rt.cfg.Stress
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Workers = stressWorkers
	}
	if flags.Changed("iterations") {
		cfg.Iterations = stressIterations
	}
	if flags.Changed("blocking") {
		cfg.Blocking = stressBlocking
	}
	if flags.Changed("registry") {
		cfg.Registry = stressRegistry
	}
	if flags.Changed("timeout") {
		cfg.TimeoutSeconds = stressTimeout
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if d := cfg.Timeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	report, runErr := stress.Run(ctx, stress.Options{
		Workers:    cfg.Workers,
		Iterations: cfg.Iterations,
		Blocking:   cfg.Blocking,
		Registry:   cfg.Registry,
		Logger:     rt.logger,
		Bus:        rt.bus,
	})
	if report == nil {
		return runErr
	}

	var samples []metrics.Sample
	if rt.metrics != nil {
		if samples, err = rt.metrics.Snapshot(); err != nil {
			return fmt.Errorf("failed to gather metrics: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if rt.jsonOutput() {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(stressOutput{
			OK:         report.OK(),
			Mismatches: report.Mismatches(),
			Report:     report,
			Metrics:    samples,
		}); err != nil {
			return err
		}
	} else {
		printStressReport(out, rt, report, samples)
	}

	if runErr != nil {
		return runErr
	}
	if !report.OK() {
		return fmt.Errorf("stress run found %d mismatches", len(report.Mismatches()))
	}
	return nil
}

func printStressReport(w io.Writer, rt *runtime, r *stress.Report, samples []metrics.Sample) {
	p := rt.palette

	fmt.Fprintln(w, p.Title("Stress run")+" "+p.Status(r.OK()))
	fmt.Fprintln(w)

	pairs := [][2]string{
		{"workers", strconv.Itoa(r.Workers)},
		{"iterations", strconv.Itoa(r.Iterations)},
		{"blocking", strconv.FormatBool(r.Blocking)},
		{"duration", r.Duration.String()},
		{"edges added", strconv.FormatInt(r.EdgesAdded, 10)},
		{"edges removed", strconv.FormatInt(r.EdgesRemoved, 10)},
		{"observers", fmt.Sprintf("%d (expected %d)", r.ObservedObservers, r.ExpectedObservers)},
		{"after release", fmt.Sprintf("%d (expected 1)", r.ObserversAfterRelease)},
		{"shared destroyed", strconv.FormatBool(r.SharedDestroyed)},
	}
	if r.RegistryEnabled {
		pairs = append(pairs,
			[2]string{"registered", strconv.FormatInt(r.Registered, 10)},
			[2]string{"registry size", fmt.Sprintf("%d (expected %d)", r.ObservedRegistryObjs, r.ExpectedRegistryObjs)},
			[2]string{"after destroy", fmt.Sprintf("%d (expected 0)", r.RegistryAfterDestroy)},
		)
	}
	fmt.Fprintln(w, p.KeyValues(pairs))

	for _, m := range r.Mismatches() {
		fmt.Fprintln(w, p.Fail("  ✗ ")+m)
	}

	if len(samples) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, p.Subtitle("Metrics"))
		metricPairs := make([][2]string, 0, len(samples))
		for _, s := range samples {
			name := s.Name
			if s.Labels != "" {
				name += "{" + s.Labels + "}"
			}
			metricPairs = append(metricPairs, [2]string{name, strconv.FormatFloat(s.Value, 'f', -1, 64)})
		}
		fmt.Fprintln(w, p.KeyValues(metricPairs))
	}
}
