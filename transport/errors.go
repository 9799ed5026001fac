package transport

import "errors"

var (
	// ErrContextTerminated is returned by every operation on a socket whose
	// context has been closed.
	ErrContextTerminated = errors.New("context terminated")

	// ErrSocketClosed is returned by operations on a socket after Close.
	ErrSocketClosed = errors.New("socket closed")

	ErrEndpointNotFound    = errors.New("endpoint not found")
	ErrAddressInUse        = errors.New("address already in use")
	ErrInvalidAddress      = errors.New("invalid address")
	ErrIncompatibleSockets = errors.New("incompatible socket types")
	ErrUnknownSocketType   = errors.New("unknown socket type")

	// ErrNoPeers is returned by load balancing sockets when nothing is
	// connected to receive the message.
	ErrNoPeers = errors.New("no peers connected")

	// ErrNotSupported is returned when an operation does not apply to the
	// socket type, e.g. Send on a Pull socket.
	ErrNotSupported = errors.New("operation not supported by socket type")

	// ErrInvalidState is returned when a Req or Rep socket is used out of
	// its send/receive order.
	ErrInvalidState = errors.New("operation invalid in current socket state")

	ErrEmptyMessage = errors.New("message has no frames")
)
