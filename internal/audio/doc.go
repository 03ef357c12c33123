// Package audio handles microphone capture, PCM chunk handling, WAV
// encoding/decoding, and voice-activity segmentation. A Chunk is the unit of
// work for the whole pipeline: a fixed-duration mono PCM-16 buffer produced
// either by a local Source or received over the relay protocol.
package audio
