package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/mgx3d/tkutil/internal/scenario"
)

var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml>...",
	Short: "Run scripted object-graph scenarios",
	Long: `Run one or more YAML scenarios against a fresh object manager each.

Every step creates, observes, releases, registers, looks up, renames,
notifies or destroys objects, and may declare what it expects: an error
message, observer and registry counts, or destruction.

Examples:
  # Run two scenarios
  mgx3d run geo1.yaml lifecycle.yaml

  # Re-run a scenario every time it is saved
  mgx3d run --watch geo1.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScenarios,
}

var (
	runWatch       bool
	runStopOnError bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runWatch, "watch", false, "Re-run the scenario whenever the file changes")
	runCmd.Flags().BoolVar(&runStopOnError, "stop-on-error", false, "Stop a scenario at its first failed step")
}

// stepOutput is the JSON form of a step result.
type stepOutput struct {
	Index   int    `json:"index"`
	Step    string `json:"step"`
	Passed  bool   `json:"passed"`
	Detail  string `json:"detail,omitempty"`
	Error   string `json:"error,omitempty"`
	Failure string `json:"failure,omitempty"`
}

// scenarioOutput is the JSON form of a run.
type scenarioOutput struct {
	File       string       `json:"file"`
	Scenario   string       `json:"scenario,omitempty"`
	OK         bool         `json:"ok"`
	DurationMs int64        `json:"duration_ms"`
	Steps      []stepOutput `json:"steps,omitempty"`
	Error      string       `json:"error,omitempty"`
}

func runScenarios(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	stopOnError := rt.cfg.Scenario.StopOnError
	if cmd.Flags().Changed("stop-on-error") {
		stopOnError = runStopOnError
	}
	runner := scenario.NewRunner(
		scenario.WithLogger(rt.logger),
		scenario.WithBus(rt.bus),
		scenario.WithStopOnError(stopOnError),
		scenario.WithObjectMutex(rt.cfg.Objects.Mutex),
	)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	if runWatch {
		if len(args) != 1 {
			return fmt.Errorf("--watch takes exactly one scenario file, got %d", len(args))
		}
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()

		fmt.Fprintln(out, rt.palette.Muted(fmt.Sprintf("Watching %s (Ctrl+C to stop)", args[0])))
		return runner.Watch(ctx, args[0], rt.cfg.Scenario.WatchDebounce(), func(res *scenario.Result, err error) {
			printScenario(out, rt, args[0], res, err)
		})
	}

	failed := 0
	for _, path := range args {
		s, err := scenario.Load(path)
		if err != nil {
			printScenario(out, rt, path, nil, err)
			failed++
			continue
		}
		res, err := runner.Run(ctx, s)
		printScenario(out, rt, path, res, err)
		if err != nil {
			return err
		}
		if !res.OK() {
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(args))
	}
	return nil
}

func printScenario(w io.Writer, rt *runtime, path string, res *scenario.Result, err error) {
	if rt.jsonOutput() {
		o := scenarioOutput{File: path}
		if res != nil {
			o.Scenario = res.Scenario
			o.OK = res.OK() && err == nil
			o.DurationMs = res.Duration.Milliseconds()
			for _, sr := range res.Steps {
				so := stepOutput{
					Index:   sr.Index,
					Step:    sr.Step.String(),
					Passed:  sr.Passed(),
					Detail:  sr.Detail,
					Failure: sr.Failure,
				}
				if sr.Err != nil {
					so.Error = sr.Err.Error()
				}
				o.Steps = append(o.Steps, so)
			}
		}
		if err != nil {
			o.Error = err.Error()
		}
		_ = json.NewEncoder(w).Encode(o)
		return
	}

	p := rt.palette
	if res == nil {
		fmt.Fprintf(w, "%s %s\n  %s\n", p.Fail("FAIL"), path, err)
		return
	}

	fmt.Fprintf(w, "%s %s %s\n", p.Status(res.OK()), p.Title(res.Scenario), p.Muted("("+path+", "+res.Duration.String()+")"))
	for _, sr := range res.Steps {
		mark := p.Pass("✓")
		if !sr.Passed() {
			mark = p.Fail("✗")
		}
		fmt.Fprintf(w, "  %s %2d. %s\n", mark, sr.Index, sr.Step)
		switch {
		case !sr.Passed():
			fmt.Fprintf(w, "       %s\n", p.Fail(sr.Failure))
		case sr.Err != nil:
			fmt.Fprintf(w, "       %s\n", p.Muted("expected error: "+sr.Err.Error()))
		case sr.Detail != "":
			fmt.Fprintf(w, "       %s\n", p.Muted(sr.Detail))
		}
	}
	if err != nil {
		fmt.Fprintf(w, "  %s\n", p.Warn(err.Error()))
	}
}
