package packet

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeHeaderRoundTrip(t *testing.T) {
	payload := []byte("hello")
	frame := Encode(CmdHELO, payload)

	f, err := ReadFrame(bytes.NewReader(frame), 1536)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if f.Command != CmdHELO {
		t.Fatalf("command mismatch: got %v", f.Command)
	}
	if !bytes.Equal(f.Payload, payload) {
		t.Fatalf("payload mismatch: got %q", f.Payload)
	}
}

func TestReadFrameBufferExceeded(t *testing.T) {
	var lenBuf [2]byte
	lenBuf[0], lenBuf[1] = 0xFF, 0xFF // declared size 0xFFFF

	const trailing = 16
	r := bytes.NewReader(append(lenBuf[:], make([]byte, trailing)...))
	_, err := ReadFrame(r, 1536)
	if err != ErrBufferExceeded {
		t.Fatalf("expected ErrBufferExceeded, got %v", err)
	}

	// No bytes beyond the length prefix should have been consumed.
	if r.Len() != trailing {
		t.Fatalf("expected only the length prefix consumed, %d of %d trailing bytes remain", r.Len(), trailing)
	}
}

func TestTELLHeaderOnly(t *testing.T) {
	frame := Encode(CmdTELL, nil)
	f, err := ReadFrame(bytes.NewReader(frame), 64)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if len(f.Payload) != 0 {
		t.Fatalf("expected empty TELL payload, got %d bytes", len(f.Payload))
	}
}
