package utcp

import (
	"context"
	"time"

	"github.com/datawire/dlib/dlog"
	"github.com/datawire/dlib/dtime"
)

// setState validates and performs a state transition. An edge outside
// the lifecycle graph is an invariant violation, not a loggable
// oddity, so it panics and is converted to an error at the public
// entry point.
func (h *Host) setState(ctx context.Context, c *Connection, s State) {
	if !canTransition(c.state, s) {
		panicInvariant("illegal state transition %s -> %s for connection %d/%d", c.state, s, c.key.src, c.key.dst)
	}
	if c.state != s {
		dlog.Debugf(ctx, "utcp: conn %d/%d %s -> %s", c.key.src, c.key.dst, c.state, s)
	}
	c.state = s
}

// sendSegment fills in the endpoint fields and hands the packed
// datagram to the host's SendFunc.
func (h *Host) sendSegment(ctx context.Context, c *Connection, hdr Header, payload []byte) {
	hdr.Src = c.key.src
	hdr.Dst = c.key.dst
	dlog.Tracef(ctx, "utcp: -> conn %d/%d seq=%d ack=%d ctl=%s len=%d", c.key.src, c.key.dst, hdr.Seq, hdr.Ack, hdr.Ctl, len(payload))
	h.sendFn(ctx, h, buildSegment(hdr, payload))
}

// now is the host's time source: dtime.Now unless a test swapped the
// clock out via dtime.SetNow.
func (h *Host) now() time.Time {
	return dtime.Now()
}

func (h *Host) armUserTimeout(c *Connection) {
	c.connTimeout = h.now().Add(time.Duration(h.userTimeout) * time.Second)
}

func (h *Host) armTimeWait(c *Connection) {
	c.connTimeout = h.now().Add(timeWaitDuration)
}

func clearConnTimeout(c *Connection) {
	c.connTimeout = time.Time{}
}

func (h *Host) armRtrxTimeout(c *Connection) {
	c.rtrxTimeout = h.now().Add(retransmitTimerEvery)
}

func clearRtrxTimeout(c *Connection) {
	c.rtrxTimeout = time.Time{}
}

// destroy unconditionally removes c from its host's container,
// releasing its send buffer. The nil host
// back-reference is what marks the record dead: any later public
// operation on it reports BadFileDescriptor.
func (h *Host) destroy(c *Connection) {
	h.remove(c)
	c.sndbuf = nil
	c.host = nil
}

// failConnection transitions c to CLOSED and notifies the application
// of the given error via the recv callback.
func (h *Host) failConnection(ctx context.Context, c *Connection, kind Kind, msg string) {
	h.setState(ctx, c, StateClosed)
	clearConnTimeout(c)
	clearRtrxTimeout(c)
	if c.recvFn != nil {
		c.recvFn(c, nil, newError(kind, msg))
	}
}
