package scenario

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mgx3d/tkutil/internal/errors"
	"github.com/mgx3d/tkutil/internal/event"
	"github.com/mgx3d/tkutil/internal/logging"
	"github.com/mgx3d/tkutil/internal/refobj"
	"github.com/mgx3d/tkutil/internal/registry"
)

// StepResult is the outcome of one step.
type StepResult struct {
	Index  int
	Step   Step
	Detail string
	// Err is the error returned by the operation, expected or not.
	Err error
	// Failure explains why the step failed; empty when it passed.
	Failure string
}

// Passed reports whether the step met its expectations.
func (r StepResult) Passed() bool {
	return r.Failure == ""
}

// Result is the outcome of a run.
type Result struct {
	Scenario string
	Steps    []StepResult
	Duration time.Duration
}

// Failed returns the number of failed steps.
func (r *Result) Failed() int {
	n := 0
	for _, s := range r.Steps {
		if !s.Passed() {
			n++
		}
	}
	return n
}

// OK reports whether every step passed.
func (r *Result) OK() bool {
	return r.Failed() == 0
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger for the runner and the objects it creates.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithBus sets the bus receiving lifecycle and registry events.
func WithBus(bus *event.Bus) Option {
	return func(r *Runner) {
		r.bus = bus
	}
}

// WithStopOnError stops a run at the first failed step.
func WithStopOnError(stop bool) Option {
	return func(r *Runner) {
		r.stopOnError = stop
	}
}

// WithObjectMutex controls whether the objects and watchers a scenario
// creates own a mutex. It defaults to true.
func WithObjectMutex(on bool) Option {
	return func(r *Runner) {
		r.noMutex = !on
	}
}

// Runner executes scenarios. Each run gets its own Manager, so a Runner may
// be reused and used concurrently.
type Runner struct {
	logger      *logging.Logger
	bus         *event.Bus
	stopOnError bool
	noMutex     bool
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.NopLogger()
	}
	return r
}

// watcher counts the callbacks it receives.
type watcher struct {
	refobj.ObjectBase
	notified atomic.Int64
	deleted  atomic.Int64
}

func (r *Runner) objectOptions() []refobj.Option {
	opts := []refobj.Option{refobj.WithLogger(r.logger), refobj.WithBus(r.bus)}
	if !r.noMutex {
		opts = append(opts, refobj.WithMutex())
	}
	return opts
}

func (r *Runner) newWatcher() *watcher {
	w := &watcher{}
	w.Init(w, r.objectOptions()...)
	return w
}

func (w *watcher) ObservableModified(refobj.Observable, refobj.Event) {
	w.notified.Add(1)
}

func (w *watcher) ObservableDeleted(src refobj.Observable) {
	w.ObjectBase.ObservableDeleted(src)
	w.deleted.Add(1)
}

// run holds the state of one scenario execution.
type run struct {
	r        *Runner
	logger   *logging.Logger
	mgr      *registry.Manager
	objects  map[string]*refobj.NamedObject
	watchers map[string]*watcher
}

// Run executes s against a fresh Manager and tears every object down
// afterwards. The returned error is non-nil only when ctx is done; step
// failures are reported in the Result.
func (r *Runner) Run(ctx context.Context, s *Scenario) (*Result, error) {
	logger := r.logger.WithComponent("scenario").With("scenario", s.Name)
	st := &run{
		r:        r,
		logger:   logger,
		mgr:      registry.NewManager(registry.WithLogger(r.logger), registry.WithBus(r.bus)),
		objects:  make(map[string]*refobj.NamedObject),
		watchers: make(map[string]*watcher),
	}
	defer st.teardown()

	result := &Result{Scenario: s.Name}
	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	logger.Info("scenario started", "steps", len(s.Steps))
	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return result, errors.Join(errors.ErrCanceled, err)
		}

		sr := st.step(i+1, step)
		result.Steps = append(result.Steps, sr)
		if sr.Passed() {
			logger.Debug("step passed", "index", sr.Index, "op", string(step.Op), "detail", sr.Detail)
			continue
		}

		logger.Warn("step failed", "index", sr.Index, "op", string(step.Op), "failure", sr.Failure)
		if r.stopOnError {
			break
		}
	}
	logger.Info("scenario finished", "steps", len(result.Steps), "failed", result.Failed())
	return result, nil
}

func (st *run) step(index int, step Step) StepResult {
	sr := StepResult{Index: index, Step: step}
	sr.Detail, sr.Err = st.exec(step)

	switch {
	case step.ExpectError != "" && sr.Err == nil:
		sr.Failure = fmt.Sprintf("expected error containing %q, got none", step.ExpectError)
		return sr
	case step.ExpectError != "" && !strings.Contains(sr.Err.Error(), step.ExpectError):
		sr.Failure = fmt.Sprintf("expected error containing %q, got %q", step.ExpectError, sr.Err)
		return sr
	case step.ExpectError == "" && sr.Err != nil:
		sr.Failure = sr.Err.Error()
		return sr
	}

	sr.Failure = st.check(step)
	return sr
}

func (st *run) exec(step Step) (string, error) {
	switch step.Op {
	case OpCreate:
		return st.create(step)
	case OpObserve, OpRelease:
		return st.edge(step)
	case OpRegister:
		obj, err := st.object(step.Object)
		if err != nil {
			return "", err
		}
		if err := st.mgr.RegisterObject(obj); err != nil {
			return "", err
		}
		return fmt.Sprintf("registered %s as %q", step.Object, obj.UniqueName()), nil
	case OpUnregister:
		obj, err := st.object(step.Object)
		if err != nil {
			return "", err
		}
		if err := st.mgr.UnregisterObject(obj); err != nil {
			return "", err
		}
		return fmt.Sprintf("unregistered %s", step.Object), nil
	case OpLookup:
		return st.lookup(step)
	case OpFind:
		return st.find(step)
	case OpRename:
		obj, err := st.object(step.Object)
		if err != nil {
			return "", err
		}
		if step.Name != "" {
			obj.SetName(step.Name)
		}
		if step.UniqueName != "" {
			obj.SetUniqueName(step.UniqueName)
		}
		return fmt.Sprintf("%s is now %q (%q)", step.Object, obj.Name(), obj.UniqueName()), nil
	case OpNotify:
		obj, err := st.object(step.Object)
		if err != nil {
			return "", err
		}
		mask, err := ParseMask(step.Mask)
		if err != nil {
			return "", err
		}
		obj.NotifyObserversForModification(mask)
		return fmt.Sprintf("notified observers of %s with %s", step.Object, mask), nil
	case OpDestroy:
		return st.destroy(step)
	}
	return "", fmt.Errorf("unknown operation %q: %w", step.Op, errors.ErrInvalidInput)
}

func (st *run) create(step Step) (string, error) {
	if _, ok := st.objects[step.Object]; ok {
		return "", errors.NewAlreadyExistsError("object", step.Object)
	}

	name := step.Name
	if name == "" {
		name = step.Object
	}
	obj := refobj.NewNamedObject(name, st.r.objectOptions()...)
	if step.UniqueName != "" {
		obj.SetUniqueName(step.UniqueName)
	}
	st.objects[step.Object] = obj
	return fmt.Sprintf("created %s (id %d, unique name %q)", step.Object, obj.ID(), obj.UniqueName()), nil
}

func (st *run) edge(step Step) (string, error) {
	obj, err := st.object(step.Object)
	if err != nil {
		return "", err
	}
	w, ok := st.watchers[step.Watcher]
	if !ok {
		if step.Op == OpRelease {
			return "", errors.NewNotFoundError("watcher", step.Watcher)
		}
		w = st.r.newWatcher()
		st.watchers[step.Watcher] = w
	}

	kind := "non-blocking"
	if step.Blocking {
		kind = "blocking"
	}
	if step.Op == OpObserve {
		w.RegisterObservable(obj, step.Blocking)
		return fmt.Sprintf("%s observes %s (%s)", step.Watcher, step.Object, kind), nil
	}
	if !w.IsObservableRegistered(obj, step.Blocking) {
		return "", fmt.Errorf("%s does not observe %s (%s): %w", step.Watcher, step.Object, kind, errors.ErrInvalidInput)
	}
	w.UnregisterObservable(obj, step.Blocking)
	return fmt.Sprintf("%s released %s (%s)", step.Watcher, step.Object, kind), nil
}

func (st *run) lookup(step Step) (string, error) {
	key := step.UniqueName
	if key == "" {
		key = step.Name
	}
	obj, err := st.mgr.GetInstance(key)
	if err != nil {
		return "", err
	}
	handle := st.handleOf(obj)
	if step.ExpectObject != "" && handle != step.ExpectObject {
		return "", fmt.Errorf("%q resolved to %s, expected %s", key, handle, step.ExpectObject)
	}
	return fmt.Sprintf("%q -> %s", key, handle), nil
}

func (st *run) find(step Step) (string, error) {
	found, err := st.mgr.FindInstances(step.Pattern)
	if err != nil {
		return "", err
	}
	handles := make([]string, len(found))
	for i, obj := range found {
		handles[i] = st.handleOf(obj)
	}
	if step.ExpectMatches != nil && len(found) != *step.ExpectMatches {
		return "", fmt.Errorf("%q matched %d objects, expected %d", step.Pattern, len(found), *step.ExpectMatches)
	}
	return fmt.Sprintf("%q matched %d: %s", step.Pattern, len(found), strings.Join(handles, ", ")), nil
}

func (st *run) destroy(step Step) (string, error) {
	switch {
	case step.Object != "":
		obj, err := st.object(step.Object)
		if err != nil {
			return "", err
		}
		if err := obj.Destroy(); err != nil {
			return "", err
		}
		return fmt.Sprintf("destroyed %s", step.Object), nil
	case step.Watcher != "":
		w, ok := st.watchers[step.Watcher]
		if !ok {
			return "", errors.NewNotFoundError("watcher", step.Watcher)
		}
		w.Destroy()
		delete(st.watchers, step.Watcher)
		return fmt.Sprintf("destroyed watcher %s", step.Watcher), nil
	default:
		if err := st.mgr.Destroy(); err != nil {
			return "", err
		}
		return "destroyed the manager", nil
	}
}

// check evaluates the count and state expectations of a step.
func (st *run) check(step Step) string {
	var failures []string
	if step.ExpectObservers != nil || step.ExpectDestroyed != nil {
		obj, err := st.object(step.Object)
		if err != nil {
			return err.Error()
		}
		if n := step.ExpectObservers; n != nil && obj.ObserverCount() != *n {
			failures = append(failures, fmt.Sprintf("%s has %d observers, expected %d", step.Object, obj.ObserverCount(), *n))
		}
		if d := step.ExpectDestroyed; d != nil && obj.IsDestroyed() != *d {
			failures = append(failures, fmt.Sprintf("%s destroyed = %t, expected %t", step.Object, obj.IsDestroyed(), *d))
		}
	}
	if n := step.ExpectRegistered; n != nil && st.mgr.Count() != *n {
		failures = append(failures, fmt.Sprintf("registry holds %d objects, expected %d", st.mgr.Count(), *n))
	}
	if n := step.ExpectNotified; n != nil {
		w, ok := st.watchers[step.Watcher]
		if !ok {
			failures = append(failures, fmt.Sprintf("unknown watcher %q", step.Watcher))
		} else if got := int(w.notified.Load()); got != *n {
			failures = append(failures, fmt.Sprintf("%s was notified %d times, expected %d", step.Watcher, got, *n))
		}
	}
	return strings.Join(failures, "; ")
}

func (st *run) object(handle string) (*refobj.NamedObject, error) {
	obj, ok := st.objects[handle]
	if !ok {
		return nil, errors.NewNotFoundError("object", handle)
	}
	return obj, nil
}

func (st *run) handleOf(obj registry.Named) string {
	for handle, o := range st.objects {
		if registry.Named(o) == obj {
			return handle
		}
	}
	return obj.UniqueName()
}

// teardown destroys the watchers first so that no object is left blocked.
func (st *run) teardown() {
	for _, handle := range slices.Sorted(maps.Keys(st.watchers)) {
		st.watchers[handle].Destroy()
	}
	for _, handle := range slices.Sorted(maps.Keys(st.objects)) {
		if err := st.objects[handle].Destroy(); err != nil {
			st.logger.Warn("object left alive", "object", handle, "error", err)
		}
	}
	if !st.mgr.IsDestroyed() {
		if err := st.mgr.Destroy(); err != nil {
			st.logger.Warn("manager left alive", "error", err)
		}
	}
}
