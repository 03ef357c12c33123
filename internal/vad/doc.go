// Package vad provides voice activity detection over windows of PCM samples.
// It implements an RMS energy gate with hysteresis so that brief dips below
// the threshold do not flicker a speech segment off mid-word.
package vad
