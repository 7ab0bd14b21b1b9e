// Package transport implements the native-messaging wire protocol: a
// sequence of 4-byte little-endian length-prefixed UTF-8 JSON frames
// exchanged with a browser extension over stdio.
package transport

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/siliconyouth/aigrabber-core/internal/model"
)

// MaxFrameSize is the browser-side limit on a single frame body.
const MaxFrameSize = 1 << 20 // 1 MiB

// ErrFrameTooLarge is passed to Run's onMalformed callback when an
// incoming frame declares a length over MaxFrameSize; the frame is
// discarded but the stream is not closed. It is not reported through the
// scheduler's sinks.
var ErrFrameTooLarge = fmt.Errorf("native-messaging frame exceeds %d bytes", MaxFrameSize)

// Codec reads and writes native-messaging frames over a byte stream. On
// the output side Send holds writeMu for each frame, so frames from
// concurrent callers never interleave; the input side has exactly one
// reader (Run's decode loop).
type Codec struct {
	r      *bufio.Reader
	w      io.Writer
	logger *slog.Logger

	writeMu sync.Mutex
}

// New wraps r/w as a native-messaging codec.
func New(r io.Reader, w io.Writer, logger *slog.Logger) *Codec {
	if logger == nil {
		logger = slog.Default()
	}
	return &Codec{r: bufio.NewReader(r), w: w, logger: logger}
}

// Send serializes msg to minified JSON, prepends its length, and writes
// header+body as a single combined write so concurrent senders never
// interleave.
func (c *Codec) Send(msg *model.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if len(body) > MaxFrameSize {
		return ErrFrameTooLarge
	}

	frame := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[4:], body)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err = c.w.Write(frame)
	return err
}

// Run reads frames until the stream ends, invoking handler for each
// well-formed message and onMalformed for frames that fail to parse or
// exceed the size cap. Malformed frames are logged and discarded; the
// stream is never closed on a parse error.
func (c *Codec) Run(handler func(*model.Message), onMalformed func(error)) error {
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(c.r, lenBuf[:]); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("failed to read frame length: %w", err)
		}
		length := binary.LittleEndian.Uint32(lenBuf[:])

		if length > MaxFrameSize {
			if err := discard(c.r, int64(length)); err != nil {
				return fmt.Errorf("failed to discard oversized frame: %w", err)
			}
			onMalformed(ErrFrameTooLarge)
			continue
		}

		body := make([]byte, length)
		if _, err := io.ReadFull(c.r, body); err != nil {
			return fmt.Errorf("failed to read frame body: %w", err)
		}

		var msg model.Message
		if err := json.Unmarshal(body, &msg); err != nil {
			c.logger.Warn("malformed native-messaging frame", "error", err)
			onMalformed(fmt.Errorf("malformed frame: %w", err))
			continue
		}
		handler(&msg)
	}
}

func discard(r io.Reader, n int64) error {
	_, err := io.CopyN(io.Discard, r, n)
	return err
}
