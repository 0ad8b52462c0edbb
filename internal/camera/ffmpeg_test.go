package camera

import (
	"bufio"
	"bytes"
	"io"
	"testing"
)

func jpegFrame(payload ...byte) []byte {
	frame := []byte{0xFF, 0xD8}
	frame = append(frame, payload...)
	return append(frame, 0xFF, 0xD9)
}

func TestNextJPEG(t *testing.T) {
	first := jpegFrame(0x01, 0x02, 0x03)
	second := jpegFrame(0x04)

	var stream bytes.Buffer
	stream.Write([]byte{0x00, 0x11, 0xFF, 0x00}) // garbage before the first marker
	stream.Write(first)
	stream.Write(second)

	r := bufio.NewReader(&stream)

	got, err := nextJPEG(r)
	if err != nil {
		t.Fatalf("first frame: %v", err)
	}
	if !bytes.Equal(got, first) {
		t.Errorf("first frame = % X, want % X", got, first)
	}

	got, err = nextJPEG(r)
	if err != nil {
		t.Fatalf("second frame: %v", err)
	}
	if !bytes.Equal(got, second) {
		t.Errorf("second frame = % X, want % X", got, second)
	}
}

func TestNextJPEGTruncatedStream(t *testing.T) {
	// Start marker present, end marker never arrives.
	r := bufio.NewReader(bytes.NewReader([]byte{0xFF, 0xD8, 0x01, 0x02}))
	if _, err := nextJPEG(r); err != io.EOF {
		t.Fatalf("err = %v, want io.EOF", err)
	}
}

func TestNextJPEGNoFrame(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte{0x00, 0x01, 0x02}))
	if _, err := nextJPEG(r); err != io.EOF {
		t.Fatalf("err = %v, want io.EOF", err)
	}
}
