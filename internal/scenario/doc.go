// Package scenario loads and runs scripted object-graph scenarios.
//
// A scenario is a YAML file listing steps executed in order against a fresh
// registry Manager. Objects and watchers are referred to by local handles:
//
//	name: duplicate unique name
//	version: "1"
//	steps:
//	  - op: create
//	    object: a
//	    name: geo1
//	  - op: create
//	    object: b
//	    name: geo1
//	  - op: register
//	    object: a
//	  - op: register
//	    object: b
//	    expect_error: already referenced
//
// A step passes when it succeeds and every expectation it declares holds, or,
// when expect_error is set, when it fails with a message containing that
// text. Watch re-runs a scenario file each time it is saved.
package scenario
