package utcp

import "context"

// SendFunc delivers one outbound datagram (header plus payload,
// already packed) to the substrate. It is invoked synchronously and
// its outcome is not consulted; a transport that can fail does so
// invisibly to the core. Reentering the Host from inside SendFunc is
// forbidden.
type SendFunc func(ctx context.Context, h *Host, datagram []byte)

// PreAcceptFunc is a cheap filter consulted for an inbound SYN that
// doesn't match any existing connection. Returning false causes a RST
// reply and no connection is created.
type PreAcceptFunc func(ctx context.Context, h *Host, localPort uint16) bool

// AcceptFunc is called once per established inbound connection, after
// the peer's ACK of our SYN+ACK lands. The handler is expected to call
// Connection.SetRecvFunc to take delivery of payload bytes; if it
// doesn't, the connection is reset.
type AcceptFunc func(ctx context.Context, c *Connection, localPort uint16)

// RecvFunc delivers payload bytes, in order, to the application.
//
//   - data non-empty, err nil: ordinary payload delivery. The callback
//     must consume all bytes before returning.
//   - data nil, err nil: the peer half-closed (FIN); no more data
//     will arrive, but the connection may still be written to.
//   - data nil, err non-nil: the connection failed; err is a *Error
//     with Kind one of ConnectionRefused, ConnectionReset, TimedOut.
type RecvFunc func(c *Connection, data []byte, err error)

// PollFunc is invoked from Host.Timeout when a connection's send
// buffer has headroom past half of its configured maximum, giving the
// application a chance to enqueue more data.
type PollFunc func(c *Connection, writable int)
