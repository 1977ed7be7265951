// Package protocol implements the length-prefixed framing used on the wire.
//
// Every message, in both directions, is one frame:
//
//	0        4
//	┌────────┬────────────────────┐
//	│ length │      body ...      │
//	│ uint32 │  length bytes UTF-8│
//	└────────┴────────────────────┘
//
// The length is little-endian, matching the controller side.
package protocol

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const (
	HeaderSize = 4
	// DefaultMaxFrameSize bounds a single body; screenshots dominate the size.
	DefaultMaxFrameSize = 64 * 1024 * 1024
)

var ErrFrameTooLarge = errors.New("frame too large")

// Encode writes a complete frame (header + body) to w in a single Write call.
// The caller must hold a write lock if multiple goroutines share the same writer.
func Encode(w io.Writer, body []byte) error {
	buf := make([]byte, HeaderSize+len(body))
	binary.LittleEndian.PutUint32(buf[:HeaderSize], uint32(len(body)))
	copy(buf[HeaderSize:], body)
	if _, err := w.Write(buf); err != nil {
		return errors.Wrap(err, "writing frame")
	}
	return nil
}

// Decode reads one complete frame from r. maxSize <= 0 means DefaultMaxFrameSize.
// A clean EOF before the header is returned as io.EOF.
func Decode(r io.Reader, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}

	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	bodyLen := binary.LittleEndian.Uint32(header)
	if uint64(bodyLen) > uint64(maxSize) {
		return nil, errors.Wrapf(ErrFrameTooLarge, "%d bytes, limit %d", bodyLen, maxSize)
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, errors.Wrap(err, "reading frame body")
	}
	return body, nil
}
