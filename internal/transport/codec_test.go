package transport

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siliconyouth/aigrabber-core/internal/model"
)

func TestCodec_SendRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, &buf, nil)

	msg := &model.Message{Type: model.MsgPing, Timestamp: 1}
	require.NoError(t, c.Send(msg))

	var received *model.Message
	err := c.Run(func(m *model.Message) { received = m }, func(error) {})
	require.NoError(t, err)
	require.NotNil(t, received)
	assert.Equal(t, model.MsgPing, received.Type)
	assert.EqualValues(t, 1, received.Timestamp)
}

func TestCodec_MalformedFrameDoesNotDesync(t *testing.T) {
	var buf bytes.Buffer

	// Frame 1: 5 bytes of "PING0" — not valid JSON.
	writeRawFrame(&buf, []byte("PING0"))

	// Frame 2: a well-formed PING message.
	wellFormed := []byte(`{"type":"PING","timestamp":1}`)
	writeRawFrame(&buf, wellFormed)

	c := New(&buf, &buf, nil)

	var malformedCount int
	var delivered *model.Message
	err := c.Run(func(m *model.Message) { delivered = m }, func(error) { malformedCount++ })
	require.NoError(t, err)

	assert.Equal(t, 1, malformedCount)
	require.NotNil(t, delivered)
	assert.Equal(t, model.MsgPing, delivered.Type)
}

func TestCodec_OversizedFrameDiscarded(t *testing.T) {
	var buf bytes.Buffer
	oversized := make([]byte, MaxFrameSize+10)
	writeRawFrame(&buf, oversized)
	wellFormed := []byte(`{"type":"PING","timestamp":2}`)
	writeRawFrame(&buf, wellFormed)

	c := New(&buf, &buf, nil)
	var malformedErr error
	var delivered *model.Message
	err := c.Run(func(m *model.Message) { delivered = m }, func(e error) { malformedErr = e })
	require.NoError(t, err)

	assert.ErrorIs(t, malformedErr, ErrFrameTooLarge)
	require.NotNil(t, delivered)
}

func writeRawFrame(buf *bytes.Buffer, body []byte) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(body)))
	buf.Write(lenBuf[:])
	buf.Write(body)
}
