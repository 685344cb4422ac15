package scenario

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

const watchOne = `
name: watched
version: "1"
steps:
  - op: create
    object: a
`

const watchTwo = `
name: watched
version: "1"
steps:
  - op: create
    object: a
  - op: register
    object: a
`

type watchOutcome struct {
	res *Result
	err error
}

func TestRunner_Watch(t *testing.T) {
	path := writeScenario(t, t.TempDir(), watchOne)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	outcomes := make(chan watchOutcome, 64)
	done := make(chan error, 1)
	go func() {
		done <- NewRunner().Watch(ctx, path, 20*time.Millisecond, func(res *Result, err error) {
			outcomes <- watchOutcome{res, err}
		})
	}()

	next := func() watchOutcome {
		t.Helper()
		select {
		case o := <-outcomes:
			return o
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for a run")
			return watchOutcome{}
		}
	}

	first := next()
	if first.err != nil || len(first.res.Steps) != 1 {
		t.Fatalf("first run = %+v, want one step", first)
	}

	writeScenario(t, t.TempDir(), watchOne) // unrelated file, ignored
	writeScenario(t, filepath.Dir(path), watchTwo)

	second := next()
	for second.err == nil && len(second.res.Steps) != 2 {
		// Editors and the OS may report the write in several events.
		second = next()
	}
	if second.err != nil {
		t.Fatalf("second run error = %v", second.err)
	}
	if !second.res.OK() {
		t.Errorf("second run failed %d steps", second.res.Failed())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch() did not return after cancel")
	}
}

func TestRunner_WatchReportsLoadErrors(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "name: [")

	ctx, cancel := context.WithCancel(context.Background())
	outcomes := make(chan watchOutcome, 1)
	go func() {
		_ = NewRunner().Watch(ctx, path, 0, func(res *Result, err error) {
			select {
			case outcomes <- watchOutcome{res, err}:
			default:
			}
		})
	}()
	defer cancel()

	select {
	case o := <-outcomes:
		if o.err == nil || o.res != nil {
			t.Errorf("outcome = %+v, want a load error", o)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a run")
	}
}

func TestRunner_WatchMissingDir(t *testing.T) {
	err := NewRunner().Watch(context.Background(), "/nonexistent/dir/scenario.yaml", 0, func(*Result, error) {})
	if err == nil {
		t.Error("Watch() error = nil, want an error for a missing directory")
	}
}
