package protocol

import (
	"bytes"
	"io"
	"testing"

	"github.com/pkg/errors"
)

func TestEncodeDecode(t *testing.T) {
	body := []byte(`{"method":"Add","params":[2,3],"id":1}`)

	var buf bytes.Buffer
	if err := Encode(&buf, body); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if buf.Len() != HeaderSize+len(body) {
		t.Fatalf("expect %d bytes on the wire, got %d", HeaderSize+len(body), buf.Len())
	}
	if got := buf.Bytes()[0]; got != byte(len(body)) {
		t.Fatalf("expect little-endian length byte %d, got %d", len(body), got)
	}

	decoded, err := Decode(&buf, 0)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(decoded, body) {
		t.Errorf("Body mismatch: got %s, want %s", decoded, body)
	}
}

func TestDecodeConsecutiveFrames(t *testing.T) {
	var buf bytes.Buffer
	for _, msg := range []string{"first", "", "third"} {
		if err := Encode(&buf, []byte(msg)); err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
	}
	for _, want := range []string{"first", "", "third"} {
		got, err := Decode(&buf, 0)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if string(got) != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
	if _, err := Decode(&buf, 0); err != io.EOF {
		t.Fatalf("expect io.EOF after last frame, got %v", err)
	}
}

func TestDecodeTooLarge(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, make([]byte, 32)); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if _, err := Decode(&buf, 16); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expect ErrFrameTooLarge, got %v", err)
	}
}

func TestDecodeTruncatedBody(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, []byte("hello world")); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	truncated := bytes.NewReader(buf.Bytes()[:HeaderSize+3])
	if _, err := Decode(truncated, 0); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expect io.ErrUnexpectedEOF, got %v", err)
	}
}
