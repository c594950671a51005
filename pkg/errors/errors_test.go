package errors

import (
	goerrs "errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsWouldBlock(t *testing.T) {
	assert.True(t, IsWouldBlock(ErrWouldBlock))
	assert.True(t, IsWouldBlock(fmt.Errorf("read: %w", ErrWouldBlock)))
	assert.False(t, IsWouldBlock(io.EOF))
	assert.False(t, IsWouldBlock(nil))
}

func TestWrappedErrorsUnwrap(t *testing.T) {
	malformed := &MalformedFrame{MessageName: "Envelope", FrameSize: 3, Reason: io.ErrUnexpectedEOF}
	assert.ErrorIs(t, malformed, io.ErrUnexpectedEOF)

	handshake := &HandshakeFailed{Url: "ws://example/ws", StatusCode: 403, Reason: io.EOF}
	assert.ErrorIs(t, handshake, io.EOF)
	assert.Contains(t, handshake.Error(), "403")

	var target *HandshakeFailed
	require.True(t, goerrs.As(fmt.Errorf("bootstrap: %w", handshake), &target))
	assert.Equal(t, "ws://example/ws", target.Url)
}

func TestMissingFieldErrorMessage(t *testing.T) {
	err := &MissingFieldError{MessageName: "you_got_crackers", FieldName: "new_player_score"}
	assert.Equal(t, "Missing field new_player_score in message type you_got_crackers", err.Error())
}
