package protocol

import (
	"bytes"
	"testing"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte(`{"cmd":"get_nodes"}`)
	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("ReadFrame = %q, want %q", got, payload)
	}
}

func TestReadFrameShortLengthPrefixIsMalformed(t *testing.T) {
	buf := bytes.NewReader([]byte{0x01, 0x02})
	if _, err := ReadFrame(buf); err == nil {
		t.Fatal("expected error for truncated length prefix")
	}
}

func TestReadFrameShortPayloadIsMalformed(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{10, 0, 0, 0})
	buf.Write([]byte("short"))
	if _, err := ReadFrame(&buf); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	if _, err := ReadFrame(&buf); err == nil {
		t.Fatal("expected error for oversized frame length")
	}
}
