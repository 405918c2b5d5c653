// Package executor runs a validated pipeline graph to completion.
//
// A single scheduler goroutine owns the stage status table and the resource
// budget; stage subprocesses run in worker goroutines that report back over
// a completion channel. Admission is greedy in topological order: the
// earliest ready stage whose memory hint fits the remaining budget is
// launched next. A failed stage marks its transitive dependents skipped;
// independent branches keep running.
package executor
