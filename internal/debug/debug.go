// Package debug prints opt-in diagnostics for the batch stages (reference
// loading, record processing, saving). Every helper takes the caller's
// localDebug flag so a single stage can be traced without a global switch.
package debug

import (
	"fmt"
	"log"
	"time"
)

// DebugHeader marks where a stage's trace begins, e.g. "process"
func DebugHeader(enabled bool, stage string) {
	if enabled {
		log.Printf("--- [%s] trace begin ---", stage)
	}
}

// DebugFooter closes the trace opened by DebugHeader
func DebugFooter(enabled bool, stage string) {
	if enabled {
		log.Printf("--- [%s] trace end ---", stage)
	}
}

// DebugOutput prints one trace line with millisecond wall time, which is
// what makes per-record timings readable in a long batch.
func DebugOutput(enabled bool, format string, args ...interface{}) {
	if !enabled {
		return
	}
	log.Printf("[%s] %s", time.Now().Format("15:04:05.000"), fmt.Sprintf(format, args...))
}

// DebugTiming traces the duration of a stage. Defer the returned func:
//
//	defer debug.DebugTiming(localDebug, "load reference sets")()
func DebugTiming(enabled bool, stage string) func() {
	if !enabled {
		return func() {}
	}

	start := time.Now()
	DebugOutput(true, "%s ...", stage)
	return func() {
		DebugOutput(true, "%s done in %v", stage, time.Since(start).Round(time.Microsecond))
	}
}

// Progress prints "<label>: done/total" every `every` records and once
// when the batch completes. It is always on; every <= 0 silences it.
func Progress(label string, done, total, every int, start time.Time) {
	if every <= 0 || done == 0 {
		return
	}
	if done%every != 0 && done != total {
		return
	}
	rate := float64(done) / time.Since(start).Seconds()
	log.Printf("%s: %d/%d records (%.1f%%) %.0f rec/s", label, done, total, 100*float64(done)/float64(total), rate)
}
