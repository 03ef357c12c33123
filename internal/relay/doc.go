// Package relay implements the sensor relay protocol: remote sensor nodes
// stream fixed-duration WAV chunks to a central detection server over TCP
// and receive a one-byte verdict per chunk.
//
// Each frame is a 4-byte big-endian payload length followed by the payload.
// The verdict is a single ASCII byte, '1' for flagged and '0' for clean, so
// it is readable in a packet capture.
//
// The server keeps a rolling buffer of the most recent chunks and persists
// its contents when a chunk flags, preserving the audio leading up to a
// detection. The buffer is shared across all connections: with more than
// one sensor attached, persisted evidence can interleave chunks from
// different sensors. Deployments that need per-sensor evidence should run
// one server per sensor.
package relay
