package stress

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/mgx3d/tkutil/internal/errors"
	"github.com/mgx3d/tkutil/internal/event"
	"github.com/mgx3d/tkutil/internal/logging"
	"github.com/mgx3d/tkutil/internal/refobj"
	"github.com/mgx3d/tkutil/internal/registry"
)

// sharedName is the unique name of the object every worker watches.
const sharedName = "stress_shared"

// Options configures a run. Zero Workers or Iterations fall back to the
// defaults.
type Options struct {
	Workers    int
	Iterations int
	// Blocking makes the worker edges block destruction of the shared object.
	Blocking bool
	// Registry also registers one named object per iteration in a Manager.
	Registry bool
	Logger   *logging.Logger
	Bus      *event.Bus
}

const (
	defaultWorkers    = 8
	defaultIterations = 1000
)

// Report is the outcome of a run.
type Report struct {
	Workers    int           `json:"workers"`
	Iterations int           `json:"iterations"`
	Blocking   bool          `json:"blocking"`
	Duration   time.Duration `json:"duration"`

	// EdgesAdded and EdgesRemoved count worker edges on the shared object.
	EdgesAdded   int64 `json:"edges_added"`
	EdgesRemoved int64 `json:"edges_removed"`
	// ExpectedObservers is the anchor plus every edge still held when the
	// workers finished; ObservedObservers is what the shared object reports.
	ExpectedObservers int `json:"expected_observers"`
	ObservedObservers int `json:"observed_observers"`
	// ObserversAfterRelease is the count once every worker was torn down;
	// only the anchor should remain.
	ObserversAfterRelease int `json:"observers_after_release"`
	// SharedDestroyed reports whether releasing the anchor destroyed the
	// shared object.
	SharedDestroyed bool `json:"shared_destroyed"`

	Registered           int64 `json:"registered"`
	ExpectedRegistryObjs int   `json:"expected_registry_objects"`
	ObservedRegistryObjs int   `json:"observed_registry_objects"`
	// RegistryAfterDestroy is the registry size once the kept objects were
	// destroyed; they must have dropped out on their own.
	RegistryAfterDestroy int  `json:"registry_after_destroy"`
	RegistryEnabled      bool `json:"registry_enabled"`
}

// OK reports whether every observed count matched its expectation.
func (r *Report) OK() bool {
	return len(r.Mismatches()) == 0
}

// Mismatches describes every count that differs from its expectation.
func (r *Report) Mismatches() []string {
	var out []string
	if r.ObservedObservers != r.ExpectedObservers {
		out = append(out, fmt.Sprintf("shared object has %d observers, expected %d",
			r.ObservedObservers, r.ExpectedObservers))
	}
	if r.ObserversAfterRelease != 1 {
		out = append(out, fmt.Sprintf("shared object has %d observers after release, expected 1 (anchor)",
			r.ObserversAfterRelease))
	}
	if !r.SharedDestroyed {
		out = append(out, "shared object survived the release of its anchor")
	}
	if r.RegistryEnabled {
		if r.ObservedRegistryObjs != r.ExpectedRegistryObjs {
			out = append(out, fmt.Sprintf("registry holds %d objects, expected %d",
				r.ObservedRegistryObjs, r.ExpectedRegistryObjs))
		}
		if r.RegistryAfterDestroy != 0 {
			out = append(out, fmt.Sprintf("registry holds %d objects after destroying them, expected 0",
				r.RegistryAfterDestroy))
		}
	}
	return out
}

// worker owns a private watcher and the named objects it kept registered.
type worker struct {
	index   int
	watcher *refobj.ObjectBase
	kept    []*refobj.NamedObject
}

// Run executes the stress scenario. It stops early when ctx is done, in which
// case the report still describes the edges created so far and the returned
// error wraps errors.ErrCanceled.
func Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.Iterations <= 0 {
		opts.Iterations = defaultIterations
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	logger = logger.WithComponent("stress")

	objOpts := []refobj.Option{refobj.WithMutex(), refobj.WithLogger(opts.Logger), refobj.WithBus(opts.Bus)}
	shared := refobj.NewNamedObject(sharedName, objOpts...)
	anchor := refobj.NewObjectBase()
	anchor.RegisterObservable(shared, true)

	var mgr *registry.Manager
	if opts.Registry {
		mgr = registry.NewManager(registry.WithLogger(opts.Logger), registry.WithBus(opts.Bus))
	}

	report := &Report{
		Workers:         opts.Workers,
		Iterations:      opts.Iterations,
		Blocking:        opts.Blocking,
		RegistryEnabled: opts.Registry,
	}
	var added, removed, registered, keptNamed atomic.Int64

	workers := make([]*worker, opts.Workers)
	var workersMu sync.Mutex

	logger.Info("stress run started",
		"workers", opts.Workers, "iterations", opts.Iterations,
		"blocking", opts.Blocking, "registry", opts.Registry)
	start := time.Now()

	p := pool.New().WithContext(ctx).WithMaxGoroutines(opts.Workers)
	for w := range opts.Workers {
		p.Go(func(ctx context.Context) error {
			wk := &worker{index: w, watcher: refobj.NewObjectBase(refobj.WithMutex())}
			workersMu.Lock()
			workers[w] = wk
			workersMu.Unlock()

			for i := range opts.Iterations {
				if err := ctx.Err(); err != nil {
					return err
				}

				wk.watcher.RegisterObservable(shared, opts.Blocking)
				added.Add(1)
				if i%2 == 1 {
					wk.watcher.UnregisterObservable(shared, opts.Blocking)
					removed.Add(1)
				}

				if mgr != nil {
					obj := refobj.NewNamedObject(registry.GenerateUniqueName(fmt.Sprintf("w%d", w)), objOpts...)
					if err := mgr.RegisterObject(obj); err != nil {
						return fmt.Errorf("worker %d: %w", w, err)
					}
					registered.Add(1)
					if i%2 == 1 {
						if err := mgr.UnregisterObject(obj); err != nil {
							return fmt.Errorf("worker %d: %w", w, err)
						}
						continue
					}
					wk.kept = append(wk.kept, obj)
					keptNamed.Add(1)
				}
			}
			return nil
		})
	}
	runErr := p.Wait()
	report.Duration = time.Since(start)

	report.EdgesAdded = added.Load()
	report.EdgesRemoved = removed.Load()
	report.ExpectedObservers = 1 + int(report.EdgesAdded-report.EdgesRemoved)
	report.ObservedObservers = shared.ObserverCount()
	report.Registered = registered.Load()

	if mgr != nil {
		report.ExpectedRegistryObjs = int(keptNamed.Load())
		report.ObservedRegistryObjs = mgr.Count()
	}

	// Tear the workers down concurrently as well: each Destroy releases the
	// worker's remaining edges and the kept objects drop out of the registry.
	teardown := pool.New().WithMaxGoroutines(opts.Workers)
	for _, wk := range workers {
		if wk == nil {
			continue
		}
		teardown.Go(func() {
			wk.watcher.Destroy()
			for _, obj := range wk.kept {
				if err := obj.Destroy(); err != nil {
					logger.Warn("kept object not destroyed", "worker", wk.index, "object_id", obj.ID(), "error", err)
				}
			}
		})
	}
	teardown.Wait()

	report.ObserversAfterRelease = shared.ObserverCount()
	anchor.Destroy()
	report.SharedDestroyed = shared.IsDestroyed()

	if mgr != nil {
		report.RegistryAfterDestroy = mgr.Count()
		if err := mgr.Destroy(); err != nil {
			logger.Warn("registry not destroyed", "error", err)
		}
	}

	logger.Info("stress run finished",
		"duration", report.Duration, "edges_added", report.EdgesAdded,
		"edges_removed", report.EdgesRemoved, "ok", report.OK())

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			return report, errors.Join(errors.ErrCanceled, runErr)
		}
		return report, runErr
	}
	return report, nil
}
