package scenario

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mgx3d/tkutil/internal/errors"
	"github.com/mgx3d/tkutil/internal/refobj"
)

// Op names a step operation.
type Op string

const (
	OpCreate     Op = "create"
	OpObserve    Op = "observe"
	OpRelease    Op = "release"
	OpRegister   Op = "register"
	OpUnregister Op = "unregister"
	OpLookup     Op = "lookup"
	OpFind       Op = "find"
	OpRename     Op = "rename"
	OpNotify     Op = "notify"
	OpDestroy    Op = "destroy"
)

// ValidOps returns the operations a step may use.
func ValidOps() []Op {
	return []Op{
		OpCreate, OpObserve, OpRelease, OpRegister, OpUnregister,
		OpLookup, OpFind, OpRename, OpNotify, OpDestroy,
	}
}

// Scenario is a scripted sequence of steps.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	// Version is the file format version (currently "1").
	Version string `yaml:"version"`
	Steps   []Step `yaml:"steps"`
}

// Step is one operation plus the expectations checked after it ran.
type Step struct {
	Op Op `yaml:"op"`

	// Object is the handle of the object the step acts on. For destroy an
	// empty handle means the manager itself.
	Object string `yaml:"object,omitempty"`
	// Watcher is the handle of the watching side for observe and release.
	Watcher    string `yaml:"watcher,omitempty"`
	Name       string `yaml:"name,omitempty"`
	UniqueName string `yaml:"unique_name,omitempty"`
	Blocking   bool   `yaml:"blocking,omitempty"`
	Pattern    string `yaml:"pattern,omitempty"`
	// Mask is a modification mask: a number or flag names joined with "|".
	Mask string `yaml:"mask,omitempty"`

	ExpectError      string `yaml:"expect_error,omitempty"`
	ExpectObject     string `yaml:"expect_object,omitempty"`
	ExpectMatches    *int   `yaml:"expect_matches,omitempty"`
	ExpectObservers  *int   `yaml:"expect_observers,omitempty"`
	ExpectDestroyed  *bool  `yaml:"expect_destroyed,omitempty"`
	ExpectRegistered *int   `yaml:"expect_registered,omitempty"`
	// ExpectNotified is the number of modification callbacks Watcher has
	// received so far.
	ExpectNotified *int `yaml:"expect_notified,omitempty"`
}

// String describes the step for reports.
func (s Step) String() string {
	var parts []string
	for _, kv := range [][2]string{
		{"object", s.Object}, {"watcher", s.Watcher}, {"name", s.Name},
		{"unique_name", s.UniqueName}, {"pattern", s.Pattern}, {"mask", s.Mask},
	} {
		if kv[1] != "" {
			parts = append(parts, kv[0]+"="+kv[1])
		}
	}
	if s.Blocking {
		parts = append(parts, "blocking")
	}
	if len(parts) == 0 {
		return string(s.Op)
	}
	return string(s.Op) + " " + strings.Join(parts, " ")
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("scenario", path).WithCause(err)
		}
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a scenario. Unknown keys are rejected.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing scenario file: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// Validate checks the header and that every step names what its operation
// needs.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required: %w", errors.ErrInvalidInput)
	}
	if s.Version != "1" {
		return fmt.Errorf("unsupported scenario version: %q (supported: 1): %w", s.Version, errors.ErrInvalidInput)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario has no steps: %w", errors.ErrInvalidInput)
	}

	for i, step := range s.Steps {
		if err := step.validate(); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
		}
	}
	return nil
}

func (s Step) validate() error {
	if !slices.Contains(ValidOps(), s.Op) {
		return fmt.Errorf("unknown operation %q: %w", s.Op, errors.ErrInvalidInput)
	}

	require := func(field, value string) error {
		if value == "" {
			return fmt.Errorf("%s is required: %w", field, errors.ErrInvalidInput)
		}
		return nil
	}

	var err error
	switch s.Op {
	case OpCreate, OpRegister, OpUnregister, OpNotify:
		err = require("object", s.Object)
	case OpObserve, OpRelease:
		err = errors.Join(require("object", s.Object), require("watcher", s.Watcher))
	case OpLookup:
		if s.Name == "" && s.UniqueName == "" && s.ExpectError == "" {
			err = fmt.Errorf("unique_name is required: %w", errors.ErrInvalidInput)
		}
	case OpFind:
		err = require("pattern", s.Pattern)
	case OpRename:
		err = require("object", s.Object)
		if err == nil && s.Name == "" && s.UniqueName == "" {
			err = fmt.Errorf("name or unique_name is required: %w", errors.ErrInvalidInput)
		}
	}
	if err != nil {
		return err
	}

	if s.Mask != "" {
		if _, err := ParseMask(s.Mask); err != nil {
			return err
		}
	}
	if s.ExpectNotified != nil && s.Watcher == "" {
		return fmt.Errorf("expect_notified needs a watcher: %w", errors.ErrInvalidInput)
	}
	return nil
}

// ParseMask parses "name_modified", "unavailable|name_modified", "undefined"
// or a decimal or 0x-prefixed number.
func ParseMask(s string) (refobj.Event, error) {
	var mask refobj.Event
	for _, part := range strings.Split(s, "|") {
		part = strings.TrimSpace(part)
		switch part {
		case "undefined":
		case "unavailable":
			mask |= refobj.EventUnavailable
		case "name_modified":
			mask |= refobj.EventNameModified
		default:
			n, err := strconv.ParseUint(part, 0, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid mask %q: %w", part, errors.ErrInvalidInput)
			}
			mask |= refobj.Event(n)
		}
	}
	return mask, nil
}
