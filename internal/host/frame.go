// Package host runs the wallet core behind a native-messaging channel:
// little-endian length-prefixed JSON frames on stdin and stdout.
package host

import (
	"encoding/binary"
	"errors"
	"io"

	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// Frame size limits. The browser refuses host messages above 1 MiB and
// sends at most 64 MiB.
const (
	MaxOutgoingFrame = 1 << 20
	MaxIncomingFrame = 64 << 20
)

// ErrFrameTooLarge reports a frame above the channel limit.
var ErrFrameTooLarge = walleterr.New(walleterr.KindInvalidInput, "FRAME_TOO_LARGE", "message exceeds the native messaging limit")

// ReadFrame reads one frame. It returns io.EOF when the channel closed
// between frames.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, walleterr.Wrap(err, "truncated frame header")
		}
		return nil, err
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	if n > MaxIncomingFrame {
		return nil, ErrFrameTooLarge
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, walleterr.Wrap(err, "truncated frame body")
	}
	return buf, nil
}

// WriteFrame writes payload as one frame.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxOutgoingFrame {
		return ErrFrameTooLarge
	}
	buf := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint32(buf, uint32(len(payload))) //nolint:gosec // G115: bounded by MaxOutgoingFrame
	copy(buf[4:], payload)
	_, err := w.Write(buf)
	return err
}
