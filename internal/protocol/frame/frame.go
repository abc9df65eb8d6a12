package frame

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/kiroshi/internal/protocol"
)

// PrefixLen is the size of the big-endian length prefix.
const PrefixLen = 8

var (
	ErrShortPrefix     = fmt.Errorf("%w: short length prefix", protocol.ErrFrameIOFailed)
	ErrShortPayload    = fmt.Errorf("%w: short payload", protocol.ErrFrameIOFailed)
	ErrPayloadTooLarge = fmt.Errorf("%w: payload too large", protocol.ErrFrameIOFailed)
)

// Limits constrains frame decode memory use.
type Limits struct {
	MaxPayloadBytes uint64
}

func DefaultLimits() Limits {
	return Limits{
		// a 4096x4096 RGBA result is 64 MiB; leave generous headroom
		MaxPayloadBytes: 1 << 30,
	}
}

// WriteFrame writes the length prefix followed by payload.
func WriteFrame(w io.Writer, payload []byte) error {
	var prefix [PrefixLen]byte
	binary.BigEndian.PutUint64(prefix[:], uint64(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("%w: write prefix: %w", protocol.ErrFrameIOFailed, err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("%w: write payload: %w", protocol.ErrFrameIOFailed, err)
	}
	return nil
}

// WriteJSON encodes v as compact JSON and writes it as one frame.
func WriteJSON(w io.Writer, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %w", protocol.ErrSerializationFailed, err)
	}
	return WriteFrame(w, payload)
}

// Reader reads frames from r into one buffer that grows in place.
type Reader struct {
	r      io.Reader
	limits Limits
	buf    []byte
}

func NewReader(r io.Reader, limits Limits) *Reader {
	if limits.MaxPayloadBytes == 0 {
		limits = DefaultLimits()
	}
	return &Reader{r: r, limits: limits}
}

// Next blocks until one complete frame is read. The returned slice aliases
// the reader's buffer and is only valid until the following call.
func (fr *Reader) Next() ([]byte, error) {
	var prefix [PrefixLen]byte
	if _, err := io.ReadFull(fr.r, prefix[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrShortPrefix
		}
		return nil, fmt.Errorf("%w: read prefix: %w", protocol.ErrFrameIOFailed, err)
	}
	n := binary.BigEndian.Uint64(prefix[:])
	if n > fr.limits.MaxPayloadBytes {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, n, fr.limits.MaxPayloadBytes)
	}
	if uint64(cap(fr.buf)) < n {
		fr.buf = make([]byte, n)
	}
	fr.buf = fr.buf[:n]
	if n == 0 {
		return fr.buf, nil
	}
	if _, err := io.ReadFull(fr.r, fr.buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: want %d bytes", ErrShortPayload, n)
		}
		return nil, fmt.Errorf("%w: read payload: %w", protocol.ErrFrameIOFailed, err)
	}
	return fr.buf, nil
}

// ReadJSON reads one frame and decodes it as JSON into v.
func (fr *Reader) ReadJSON(v any) error {
	payload, err := fr.Next()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %w", protocol.ErrSerializationFailed, err)
	}
	return nil
}
