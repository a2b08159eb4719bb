package utcp

import "context"

// Send enqueues up to len(data) bytes for delivery and returns how
// many were actually accepted into the send buffer.
// Fewer bytes than requested (including zero, reported as WouldBlock)
// means the buffer is full; the caller is expected to retry later or
// wait for a PollFunc callback.
func (h *Host) Send(ctx context.Context, c *Connection, data []byte) (n int, err error) {
	defer guard(&err)

	if c.host == nil {
		return 0, newError(BadFileDescriptor, "connection has been reaped")
	}
	switch c.state {
	case StateEstablished, StateCloseWait:
	case StateListen, StateSynSent, StateSynReceived:
		return 0, newError(NotConnected, "handshake not complete")
	default:
		return 0, newError(BrokenPipe, "connection is closing or closed")
	}

	if len(data) == 0 {
		return 0, nil
	}

	c.SetSendBufferSize(c.bufUsed() + len(data))
	free := c.SendBufferFree()
	if free == 0 {
		return 0, newError(WouldBlock, "send buffer full")
	}
	accepted := len(data)
	if accepted > free {
		accepted = free
	}

	offset := c.bufUsed()
	copy(c.sndbuf[offset:], data[:accepted])
	c.snd.last += seq(accepted)

	h.ack(ctx, c, false)
	return accepted, nil
}

// ShutdownDir names which half of a connection Shutdown closes. Only
// write-side shutdown exists; there is no read-side equivalent.
type ShutdownDir int

const (
	// ShutdownWrite queues a FIN: no more bytes will be sent.
	ShutdownWrite ShutdownDir = iota
)

// Shutdown queues a FIN and moves the connection into the matching
// closing state. It is idempotent: calling it again once a FIN is
// already queued (or the connection is closed) emits nothing further.
func (h *Host) Shutdown(ctx context.Context, c *Connection, _ ShutdownDir) (err error) {
	defer guard(&err)

	if c.host == nil {
		return newError(BadFileDescriptor, "connection has been reaped")
	}
	switch c.state {
	case StateSynReceived, StateEstablished:
		h.setState(ctx, c, StateFinWait1)
	case StateCloseWait:
		h.setState(ctx, c, StateClosing)
	case StateListen, StateSynSent:
		h.setState(ctx, c, StateClosed)
		clearConnTimeout(c)
		clearRtrxTimeout(c)
		return nil
	default:
		return nil
	}

	c.snd.last++
	c.finalSeq = c.snd.last
	h.ack(ctx, c, false)
	return nil
}

// Close queues a FIN (if one hasn't been already) and marks the
// connection reapable: once its lifecycle completes, Host.Timeout will
// destroy it without the application needing to hold a reference.
func (h *Host) Close(ctx context.Context, c *Connection) (err error) {
	defer guard(&err)
	if c.host == nil {
		return newError(BadFileDescriptor, "connection has been reaped")
	}
	if serr := h.Shutdown(ctx, c, ShutdownWrite); serr != nil {
		return serr
	}
	c.reapable = true
	if c.state == StateClosed {
		h.destroy(c)
	}
	return nil
}

// Abort is the synchronous cancellation primitive: it is always safe
// to call on a live connection. It transitions straight to CLOSED and
// emits a single RST.
func (h *Host) Abort(ctx context.Context, c *Connection) (err error) {
	defer guard(&err)

	if c.host == nil {
		return newError(BadFileDescriptor, "connection has been reaped")
	}
	rstSeq := c.snd.nxt
	h.setState(ctx, c, StateClosed)
	clearConnTimeout(c)
	clearRtrxTimeout(c)
	c.reapable = true
	h.sendSegment(ctx, c, Header{Ctl: FlagRST, Seq: rstSeq}, nil)
	return nil
}
