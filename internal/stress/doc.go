// Package stress exercises the observer graph from many goroutines at once.
//
// Run starts a pool of workers that register and release edges on a shared
// object guarded by its own mutex, and optionally register uniquely named
// objects in a Manager. Each worker keeps a known share of its edges, so the
// final incoming-edge count of the shared object is predictable:
//
//	report, err := stress.Run(ctx, stress.Options{Workers: 8, Iterations: 1000})
//	if err != nil {
//		return err
//	}
//	if !report.OK() {
//		fmt.Println(report.Mismatches())
//	}
//
// The shared object is pinned by a blocking anchor edge for the whole run so
// that workers releasing blocking edges never destroy it.
package stress
