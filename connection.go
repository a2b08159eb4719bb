package utcp

import "time"

// sendSpace is the send-side control block: the sequence variables
// tracking what has been queued, sent, and acknowledged.
type sendSpace struct {
	iss  seq    // initial sequence number
	una  seq    // oldest unacknowledged sequence number
	nxt  seq    // next sequence number to send
	last seq    // one past the last byte enqueued (including a queued FIN)
	wnd  uint32 // peer's most recently advertised receive window
	cwnd uint32 // self-imposed congestion window, in bytes
}

// recvSpace is the receive-side control block.
type recvSpace struct {
	irs seq    // peer's initial sequence number
	nxt seq    // next expected sequence number
	wnd uint32 // advertised window; constant, equal to the host MTU
}

const (
	defaultMTU                = 1000
	defaultUserTimeoutSeconds = 60
	defaultSendBufSize        = 4096
	defaultMaxSendBuf         = 1 << 20
	timeWaitDuration          = 60 * time.Second
	retransmitTimerEvery      = time.Second
)

// connKey is the (src, dst) endpoint pair that uniquely identifies a
// connection within a Host.
type connKey struct {
	src uint16
	dst uint16
}

// Connection is one flow's full state: endpoints, lifecycle state,
// send/receive control blocks, send buffer, timers and callbacks.
//
// A Connection is only ever touched from within a Host method call.
// The calling convention is single-threaded and cooperative (callers
// must not reenter the same host concurrently), so no internal
// locking is used here.
type Connection struct {
	host *Host
	key  connKey

	state State

	snd sendSpace
	rcv recvSpace

	sndbuf        []byte
	maxSndBufSize int

	connTimeout time.Time // user timeout / TIME_WAIT deadline; zero = unarmed
	rtrxTimeout time.Time // retransmission deadline; zero = unarmed

	dupAck uint32

	reapable  bool
	nodelay   bool
	keepalive bool

	recvFn RecvFunc
	pollFn PollFunc

	// finalSeq is the sequence number one past our queued FIN. The
	// egress and retransmit paths compare it with snd.last to decide
	// whether the segment ending at snd.last carries the FIN flag.
	finalSeq seq

	userData any
}

// LocalPort returns this connection's local endpoint identifier.
func (c *Connection) LocalPort() uint16 { return c.key.src }

// RemotePort returns this connection's remote endpoint identifier.
func (c *Connection) RemotePort() uint16 { return c.key.dst }

// State returns the connection's current lifecycle state.
func (c *Connection) State() State { return c.state }

// UserData returns the opaque value last set with SetUserData.
func (c *Connection) UserData() any { return c.userData }

// SetUserData attaches an opaque value to the connection for the
// application's own use; the core never inspects it.
func (c *Connection) SetUserData(v any) { c.userData = v }

// SetRecvFunc installs the callback that receives payload bytes,
// half-close notifications, and error notifications. It must be
// called from inside an AcceptFunc for an inbound connection to be
// considered accepted.
func (c *Connection) SetRecvFunc(fn RecvFunc) { c.recvFn = fn }

// SetPollFunc installs the callback invoked from Host.Timeout when
// send-buffer headroom crosses half of MaxSendBufferSize.
func (c *Connection) SetPollFunc(fn PollFunc) { c.pollFn = fn }

// Nodelay reports whether the Nagle-style coalescing hint is disabled.
func (c *Connection) Nodelay() bool { return c.nodelay }

// SetNodelay sets the Nagle-style coalescing hint. The core performs
// no batching delay of its own, so this is advisory metadata a
// caller-supplied egress policy may consult; it does not alter this
// package's own behavior.
func (c *Connection) SetNodelay(v bool) { c.nodelay = v }

// Keepalive reports whether periodic keepalive probing is requested.
func (c *Connection) Keepalive() bool { return c.keepalive }

// SetKeepalive sets the keepalive flag. The core sends no probes of
// its own; the flag is stored for the caller/poll callback to act on.
func (c *Connection) SetKeepalive(v bool) { c.keepalive = v }

// DupAckCount returns the number of consecutive duplicate ACKs
// observed. Tracked for observability only; reaching 3 does not
// trigger a fast retransmit.
func (c *Connection) DupAckCount() uint32 { return c.dupAck }

// SendBufferSize returns the current capacity of the send buffer.
func (c *Connection) SendBufferSize() int { return len(c.sndbuf) }

// SetSendBufferSize grows the send buffer's capacity to at least size,
// up to MaxSendBufferSize, doubling from the current capacity as
// needed. It never shrinks the buffer.
func (c *Connection) SetSendBufferSize(size int) {
	if size > c.maxSndBufSize {
		size = c.maxSndBufSize
	}
	cap := len(c.sndbuf)
	if size <= cap {
		return
	}
	for cap < size {
		if cap == 0 {
			cap = defaultSendBufSize
		} else {
			cap *= 2
		}
	}
	if cap > c.maxSndBufSize {
		cap = c.maxSndBufSize
	}
	grown := make([]byte, cap)
	copy(grown, c.sndbuf)
	c.sndbuf = grown
}

// MaxSendBufferSize returns the configured upper bound on the send
// buffer's capacity.
func (c *Connection) MaxSendBufferSize() int { return c.maxSndBufSize }

// SetMaxSendBufferSize changes the upper bound on send buffer growth
// and reports whether the value actually changed.
func (c *Connection) SetMaxSendBufferSize(size int) (changed bool) {
	changed = c.maxSndBufSize != size
	c.maxSndBufSize = size
	if len(c.sndbuf) > size {
		c.sndbuf = c.sndbuf[:size]
	}
	return changed
}

// bufUsed is the number of live bytes currently held in the send
// buffer: the span [snd.una, snd.last).
func (c *Connection) bufUsed() int {
	return int(seqDiff(c.snd.last, c.snd.una))
}

// SendBufferFree returns the number of free bytes in the send buffer
// at its current capacity. Send grows the buffer on demand up to
// MaxSendBufferSize, so it can accept more than this before returning
// WouldBlock.
func (c *Connection) SendBufferFree() int {
	return len(c.sndbuf) - c.bufUsed()
}

// OutQ returns the number of bytes queued for the peer that have not
// yet been acknowledged.
func (c *Connection) OutQ() int {
	return int(seqDiff(c.snd.last, c.snd.una))
}

// Reapable reports whether Host.Timeout is free to destroy this
// connection the next time it is CLOSED.
func (c *Connection) Reapable() bool { return c.reapable }
