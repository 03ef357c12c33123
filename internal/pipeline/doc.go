// Package pipeline drives the capture, transcription and classification
// stages as a polled detection loop.
//
// A ticker fires at the poll interval, but at most one detection cycle runs
// at a time: a tick that lands while a cycle is in flight is dropped, not
// queued. Capture blocks for the full chunk duration and transcription can
// take longer than the interval, so skipped ticks are the normal flow
// control mechanism rather than an error.
//
// Cycles run on a worker goroutine; results come back over a channel and
// are handled on the loop goroutine, which keeps alerting and statistics
// single-threaded.
package pipeline
