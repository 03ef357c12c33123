// Package transcribe converts PCM audio chunks into text. It provides a
// local whisper.cpp engine with lazy one-shot model loading, a remote HTTP
// transcription engine, a Vosk engine used by the relay detection server,
// and a VAD-filtered Transcriber front end that never propagates failures:
// a chunk that cannot be transcribed is indistinguishable from silence.
package transcribe
