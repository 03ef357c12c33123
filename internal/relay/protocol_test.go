package relay

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "small payload", payload: []byte("audio bytes")},
		{name: "empty payload", payload: []byte{}},
		{name: "binary payload", payload: []byte{0x00, 0xff, 0x7f, 0x80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteFrame(&buf, tt.payload); err != nil {
				t.Fatalf("WriteFrame() error = %v", err)
			}

			got, err := ReadFrame(&buf)
			if err != nil {
				t.Fatalf("ReadFrame() error = %v", err)
			}
			if !bytes.Equal(got, tt.payload) {
				t.Errorf("payload = %v, want %v", got, tt.payload)
			}
		})
	}
}

func TestFrameHeaderIsBigEndian(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte("abc")); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}

	header := buf.Bytes()[:lengthHeaderSize]
	if size := binary.BigEndian.Uint32(header); size != 3 {
		t.Errorf("header size = %d, want 3", size)
	}
}

func TestReadFrameCleanEOF(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil))
	if err != io.EOF {
		t.Errorf("err = %v, want io.EOF", err)
	}
}

func TestReadFrameTruncatedHeader(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0x00, 0x00}))
	if err == nil || err == io.EOF {
		t.Errorf("err = %v, want framing error", err)
	}
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(100))
	buf.WriteString("short")

	if _, err := ReadFrame(&buf); err == nil {
		t.Error("expected error for truncated payload")
	}
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(MaxPayloadSize+1))

	if _, err := ReadFrame(&buf); err == nil {
		t.Error("expected error for oversized frame")
	}
}

func TestVerdictRoundTrip(t *testing.T) {
	for _, flagged := range []bool{true, false} {
		var buf bytes.Buffer
		if err := WriteVerdict(&buf, flagged); err != nil {
			t.Fatalf("WriteVerdict(%v) error = %v", flagged, err)
		}

		got, err := ReadVerdict(&buf)
		if err != nil {
			t.Fatalf("ReadVerdict() error = %v", err)
		}
		if got != flagged {
			t.Errorf("verdict = %v, want %v", got, flagged)
		}
	}
}

func TestVerdictWireBytes(t *testing.T) {
	var buf bytes.Buffer
	WriteVerdict(&buf, true)
	WriteVerdict(&buf, false)

	if got := buf.String(); got != "10" {
		t.Errorf("wire bytes = %q, want \"10\"", got)
	}
}

func TestReadVerdictRejectsUnknownByte(t *testing.T) {
	if _, err := ReadVerdict(bytes.NewReader([]byte{'x'})); err == nil {
		t.Error("expected error for unknown verdict byte")
	}
}
