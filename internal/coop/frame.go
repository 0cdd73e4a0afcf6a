package coop

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/eventpass/eventpass-api/internal/domain"
)

// Each frame is a 4 byte big-endian body length followed by the JSON body.
const (
	frameHeaderLength = 4
	maxFrameLength    = 1 << 20
)

func writeFrame(w io.Writer, body []byte) error {
	if len(body) > maxFrameLength {
		return fmt.Errorf("%w: frame of %d bytes exceeds limit", domain.ErrSocket, len(body))
	}

	buf := make([]byte, frameHeaderLength+len(body))
	binary.BigEndian.PutUint32(buf[:frameHeaderLength], uint32(len(body)))
	copy(buf[frameHeaderLength:], body)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func readFrame(r io.Reader) ([]byte, error) {
	var header [frameHeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	n := binary.BigEndian.Uint32(header[:])
	if n > maxFrameLength {
		return nil, fmt.Errorf("%w: frame of %d bytes exceeds limit", domain.ErrSocket, n)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	return body, nil
}
