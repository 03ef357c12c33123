package relay

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// lengthHeaderSize is the size of the frame length prefix
	lengthHeaderSize = 4

	// MaxPayloadSize bounds a single frame. A 5 second mono PCM-16 chunk at
	// 16 kHz is about 160 KB, so 16 MB leaves two orders of magnitude of
	// headroom while still rejecting a garbage length prefix before the
	// server tries to allocate it.
	MaxPayloadSize = 16 << 20

	// VerdictFlagged is the verdict byte for a chunk containing flagged speech
	VerdictFlagged byte = '1'

	// VerdictClean is the verdict byte for a chunk with no flagged speech
	VerdictClean byte = '0'
)

// WriteFrame writes one length-prefixed frame
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize)
	}

	var header [lengthHeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("failed to write frame header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("failed to write frame payload: %w", err)
		}
	}
	return nil
}

// ReadFrame reads one length-prefixed frame. A clean connection close before
// the header returns io.EOF unchanged; a close mid-frame is an error because
// a partial chunk must never be inspected as if it were complete.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [lengthHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to read frame header: %w", err)
	}

	size := binary.BigEndian.Uint32(header[:])
	if size > MaxPayloadSize {
		return nil, fmt.Errorf("frame size %d exceeds maximum %d", size, MaxPayloadSize)
	}
	if size == 0 {
		return []byte{}, nil
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("failed to read frame payload of %d bytes: %w", size, err)
	}
	return payload, nil
}

// WriteVerdict sends the one-byte verdict for a chunk
func WriteVerdict(w io.Writer, flagged bool) error {
	verdict := VerdictClean
	if flagged {
		verdict = VerdictFlagged
	}

	if _, err := w.Write([]byte{verdict}); err != nil {
		return fmt.Errorf("failed to write verdict: %w", err)
	}
	return nil
}

// ReadVerdict reads the one-byte verdict for a chunk
func ReadVerdict(r io.Reader) (bool, error) {
	var verdict [1]byte
	if _, err := io.ReadFull(r, verdict[:]); err != nil {
		return false, fmt.Errorf("failed to read verdict: %w", err)
	}

	switch verdict[0] {
	case VerdictFlagged:
		return true, nil
	case VerdictClean:
		return false, nil
	default:
		return false, fmt.Errorf("invalid verdict byte 0x%02x", verdict[0])
	}
}
