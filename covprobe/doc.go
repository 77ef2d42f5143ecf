// Copyright 2026 The covprobe Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package covprobe provides self-deinstrumenting coverage probes.
//
// A probe sits at one coverage point (a source line or a branch edge) of
// instrumented code. The first time control reaches it, the point is
// recorded as executed. After that the probe is pure overhead, so it asks to
// be removed: either immediately, by patching a jump over its own call site,
// or in batches, once it has been reached a threshold number of times after
// recording.
//
// # Quick Start
//
//	s, err := covprobe.NewSession(covprobe.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// A host registers each compiled unit and its coverage points...
//	u, err := s.Instrument("app.py", []covprobe.Point{1, 2, 3}, nil, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// ...and its rewritten code calls Reach at each point.
//	_ = u.Reach(0)
//
//	_ = covprobe.WriteText(os.Stdout, s.Coverage(), covprobe.TextOptions{})
//
// # Probe States
//
// Each probe counts how it is entered:
//   - D misses: signals after the first, while the recording call is wired in
//   - U misses: signals after the probe was deinstrumented but before its
//     call site was removed
//   - hits: entries through the cheap call that replaces a removed site
//     when statistics are collected
//
// The totals are reported by [Session.Stats] as (file, point, d_misses,
// u_misses, total) snapshots, summarized by [WriteStats] and exported as a
// pprof profile by [WritePprof].
//
// # Immediate Mode
//
// With [Config.Immediate], a probe bound to live instruction memory writes a
// skip opcode over its own call site on its first signal. On unix hosts
// [NewMappedBuffer] provides such memory; a buffer sealed after binding
// makes the signal fail and leaves the probe instrumented.
//
// # Thresholds
//
// [Config.Threshold] sets how many D misses a probe tolerates before it asks
// the session for a batched pass. [ThresholdLocalOnly] never asks (the probe
// is only removed by someone else's pass or an immediate patch);
// [ThresholdNever] never deinstruments at all.
//
// # Concurrency
//
// Probes are lock-free and assume a single executor: all Reach calls come
// from one goroutine. [Config.Strict] turns that assumption into a checked
// error.
//
// # Reports
//
// [Session.Coverage] returns a JSON-serializable document that can be
// merged with others, rendered as text, markdown, HTML or LCOV, or
// converted to and from Go cover profiles. The covprobe command wraps
// these for files on disk.
package covprobe
