package errors

import (
	goerrs "errors"
	"fmt"
)

// ErrWouldBlock is returned by non-blocking reads and writes when no frame is
// available (read) or the outbound buffer is full (write). It is not a failure.
var ErrWouldBlock = goerrs.New("operation would block")

// ErrConnectionClosed is returned by reads and writes on a connection that has been closed locally.
var ErrConnectionClosed = goerrs.New("connection closed")

func IsWouldBlock(err error) bool {
	return goerrs.Is(err, ErrWouldBlock)
}

func Is(err, target error) bool {
	return goerrs.Is(err, target)
}

func As(err error, target any) bool {
	return goerrs.As(err, target)
}

type MalformedFrame struct {
	MessageName string
	FrameSize   int
	Reason      error
}

func (e *MalformedFrame) Error() string {
	return fmt.Sprintf("Malformed frame (type=%s, size=%d): %v", e.MessageName, e.FrameSize, e.Reason)
}

func (e *MalformedFrame) Unwrap() error {
	return e.Reason
}

type UnknownActionType struct {
	EnumName string
	Tag      string
}

func (e *UnknownActionType) Error() string {
	return fmt.Sprintf("Unknown action_type tag='%s' (enum: %s)", e.Tag, e.EnumName)
}

type MissingFieldError struct {
	MessageName string
	FieldName   string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("Missing field %s in message type %s", e.FieldName, e.MessageName)
}

type PayloadTypeError struct {
	MessageName string
	FieldName   string
	Reason      error
}

func (e *PayloadTypeError) Error() string {
	return fmt.Sprintf("Field %s in message type %s has the wrong type: %v", e.FieldName, e.MessageName, e.Reason)
}

func (e *PayloadTypeError) Unwrap() error {
	return e.Reason
}

type BootstrapInFlight struct {
	State string
}

func (e *BootstrapInFlight) Error() string {
	return fmt.Sprintf("Connection bootstrap already started (state=%s)", e.State)
}

type HandshakeFailed struct {
	Url        string
	StatusCode int
	Reason     error
}

func (e *HandshakeFailed) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("WebSocket handshake to %s failed with HTTP status %d: %v", e.Url, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("WebSocket handshake to %s failed: %v", e.Url, e.Reason)
}

func (e *HandshakeFailed) Unwrap() error {
	return e.Reason
}

type NameCollision struct {
	CollisionContext string
	Name             string
}

func (e *NameCollision) Error() string {
	return fmt.Sprintf("Name collision for name '%s' in context '%s'", e.Name, e.CollisionContext)
}

type InvalidConfigValue struct {
	Key    string
	Value  any
	Reason string
}

func (e *InvalidConfigValue) Error() string {
	return fmt.Sprintf("Invalid config value %s=%v: %s", e.Key, e.Value, e.Reason)
}
