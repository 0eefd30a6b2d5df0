// Package cues selects ad insertion points from shot changes.
//
// Refine moves each cut to the quietest nearby instant of a loudness trace
// without crossing into a neighbouring shot, and Schedule walks the refined
// candidates once, keeping those that respect the earliest-start, spacing and
// loudness constraints of a SelectionConfig. Both are pure functions; callers
// may run them for many assets in parallel.
package cues
