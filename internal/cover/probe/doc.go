// Package probe implements adaptive coverage probes.
//
// A probe (Tracker) watches one coverage Location. Instrumented code enters
// it through Engine.Signal every time control reaches the location. The
// first signal records the location into the session's coverage sink. Later
// signals are D misses: the location is already covered, so the call is pure
// overhead. The probe counts them and, once the count reaches the session's
// miss threshold, asks the session to deinstrument (DeinstrumentSeen). The
// session later calls Engine.Deinstrument for every location it removes in
// that batched pass.
//
// # States
//
//	instrumented, !signalled   first Signal records and counts D miss 0
//	instrumented,  signalled   Signal counts a D miss (and records again
//	                           when statistics are collected)
//	!instrumented              Signal counts a U miss, never records
//	call site removed          the host calls Hit instead of Signal
//
// A probe bound to a live instruction buffer (Engine.SetImmediate) skips the
// batched pass: the next Signal overwrites its own call site with a skip
// opcode and deinstruments itself on the spot.
//
// # Thresholds
//
//	>= 0                 ask the session to deinstrument when the D miss
//	                     count reaches the threshold
//	ThresholdLocalOnly   never ask the session (immediate patching still
//	                     applies)
//	ThresholdNever       never deinstrument, not even immediately
//
// # Handles
//
// Trackers live in an arena owned by an Engine and are addressed by Handle.
// Handles carry a generation, so a handle kept after Release is rejected with
// ErrStaleHandle instead of reaching a recycled slot.
//
// # Concurrency
//
// An Engine assumes a single logical executor: one goroutine enters all of
// its probes, in any nesting order. Nothing on the Signal/Hit path takes a
// lock. Options.Strict makes the engine verify the assumption on every call
// (see package executor); it does not make concurrent use safe.
package probe
