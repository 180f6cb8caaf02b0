// Package vision provides template matching for screenshot classification.
//
// # Architecture
//
//	┌───────────┐   Get    ┌────────┐
//	│  Store    │◀─────────│ caller │
//	│ (cache +  │          └───┬────┘
//	│  watcher) │              │ FindBestMatch
//	└───────────┘              ▼
//	                   ┌───────────────┐   Match   ┌────────────┐
//	                   │ multi-scale   │──────────▶│  Matcher   │
//	                   │ search        │  per scale│ (NCC)      │
//	                   └───────────────┘           └────────────┘
//
// The Matcher interface scores one template against one screen; the
// default NCCMatcher is a pure-Go zero-mean normalized cross-correlation
// over grayscale pixels. FindBestMatch layers the multi-scale policy on
// top: scale factors are tried in configured order, near-1.0 factors skip
// the resize, oversize factors are skipped, and the best score that
// strictly exceeds the threshold wins.
//
// Scores are raw correlation values in [-1, 1]. Thresholds are positive,
// so anything a caller sees as a match has confidence in (threshold, 1].
//
// WriteArtifact produces annotated screenshots (detection box overlay)
// for run audits when a debug directory is configured.
package vision
