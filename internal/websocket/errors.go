package websocket

import "errors"

var (
	ErrClientQueueFull     = errors.New("client message queue is full")
	ErrClientClosed        = errors.New("client is closed")
	ErrClientNotRegistered = errors.New("client is not registered")
	ErrInvalidMessage      = errors.New("invalid message format")
	ErrRoomFull            = errors.New("room already has two participants")
)
