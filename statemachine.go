package utcp

import (
	"context"

	"github.com/datawire/dlib/dlog"
)

// Recv ingests one inbound datagram. It demultiplexes the
// segment to a connection (or handles it as a new-connection SYN /
// unmatched segment) and drives that connection's state machine.
func (h *Host) Recv(ctx context.Context, datagram []byte) (err error) {
	defer guard(&err)

	if datagram == nil {
		return newError(InvalidArgument, "nil datagram")
	}
	hdr, perr := parseHeader(datagram)
	if perr != nil {
		return perr
	}
	seg := segment{Header: hdr, payload: datagram[HeaderLen:]}

	// Demultiplex: inbound (src=S, dst=D) matches the connection whose
	// local/remote pair is (D, S).
	c := h.lookup(seg.Dst, seg.Src)
	if c == nil {
		h.handleUnmatched(ctx, seg)
		return nil
	}
	if c.state == StateClosed {
		dlog.Tracef(ctx, "utcp: dropping segment for closed connection %d/%d", c.key.src, c.key.dst)
		return nil
	}
	h.processSegment(ctx, c, seg)
	return nil
}

// handleUnmatched handles a segment that matches no existing
// connection.
func (h *Host) handleUnmatched(ctx context.Context, seg segment) {
	if seg.Ctl.has(FlagRST) {
		return // drop RSTs
	}
	if seg.Ctl.has(FlagSYN) && !seg.Ctl.has(FlagACK) {
		allowed := true
		if h.preAcceptFn != nil {
			allowed = h.preAcceptFn(ctx, h, seg.Dst)
		}
		if allowed {
			h.acceptNewConnection(ctx, seg)
			return
		}
	}
	h.sendRSTReply(ctx, seg)
}

// acceptNewConnection creates a connection for an inbound SYN that
// passed the pre-accept filter, emits a SYN+ACK, and enters
// SYN_RECEIVED. The accept callback itself does not fire until the
// peer's ACK of the SYN+ACK lands; see processSegment.
func (h *Host) acceptNewConnection(ctx context.Context, seg segment) {
	c := h.newConnection(seg.Dst, seg.Src)
	c.rcv.irs = seg.Seq
	c.rcv.nxt = seg.Seq + 1
	c.rcv.wnd = h.mtu
	c.snd.wnd = uint32(seg.Wnd)
	c.snd.iss = seq(h.rnd.Uint32())
	c.snd.una = c.snd.iss
	c.snd.nxt = c.snd.iss
	c.snd.last = c.snd.iss
	c.snd.cwnd = h.mtu

	h.insert(c)
	h.setState(ctx, c, StateSynReceived)
	h.armUserTimeout(c)

	h.sendSegment(ctx, c, Header{Ctl: FlagSYN | FlagACK, Seq: c.snd.iss, Ack: c.rcv.nxt, Wnd: uint16(c.rcv.wnd)}, nil)
	// The SYN occupies one sequence number.
	c.snd.nxt = c.snd.iss + 1
	c.snd.last = c.snd.nxt
	h.armRtrxTimeout(c)
}

// processSegment runs a matched inbound segment through the
// per-connection pipeline: acceptability, ACK validity, RST handling,
// send-window advance, SYN, new data, FIN, and finally egress.
func (h *Host) processSegment(ctx context.Context, c *Connection, seg segment) {
	// Acceptability: in SYN_SENT every segment is considered; in any
	// other state only the exact next expected sequence number is. An
	// out-of-order segment just provokes a reminder ACK.
	if c.state != StateSynSent && seg.Seq != c.rcv.nxt {
		if seg.Ctl.has(FlagRST) {
			return
		}
		h.sendBareACK(ctx, c)
		return
	}

	if seg.Ctl.has(FlagACK) {
		c.snd.wnd = uint32(seg.Wnd)
	}

	// An ACK outside [snd.una, snd.nxt] is invalid.
	if seg.Ctl.has(FlagACK) && !seqInClosed(seg.Ack, c.snd.una, c.snd.nxt) {
		if seg.Ctl.has(FlagRST) {
			return
		}
		h.sendRSTReply(ctx, seg)
		return
	}

	// RST handling.
	if seg.Ctl.has(FlagRST) {
		h.handleRST(ctx, c, seg)
		return
	}

	// Advance snd.una.
	advanced := h.advanceSndUna(ctx, c, seg)

	rcvAdvanced := false

	// SYN processing: only the SYN-ACK completing our active open is
	// legal here; anything else is a duplicate SYN.
	if seg.Ctl.has(FlagSYN) {
		if c.state == StateSynSent && advanced > 0 {
			c.rcv.irs = seg.Seq
			c.rcv.nxt = seg.Seq
			h.setState(ctx, c, StateEstablished)
			c.rcv.nxt++
			rcvAdvanced = true
		} else {
			h.sendRSTReply(ctx, seg)
			return
		}
	}

	// Handshake completion for a passive open.
	if c.state == StateSynReceived && advanced > 0 {
		if h.acceptFn != nil {
			h.acceptFn(ctx, c, c.key.src)
		}
		// The accept handler takes delivery by installing a recv
		// callback; a connection left without one was declined.
		if c.recvFn == nil {
			h.setState(ctx, c, StateClosed)
			c.reapable = true
			h.sendRSTReply(ctx, seg)
			return
		}
		h.setState(ctx, c, StateEstablished)
	}

	if payloadLen := seg.payloadLen(); payloadLen > 0 {
		switch c.state {
		case StateEstablished, StateFinWait1, StateFinWait2:
			if c.recvFn != nil {
				c.recvFn(c, seg.payload, nil)
			}
			c.rcv.nxt += seq(payloadLen)
			rcvAdvanced = true
		default:
			h.sendRSTReply(ctx, seg)
			return
		}
	}

	// FIN processing.
	if seg.Ctl.has(FlagFIN) {
		switch c.state {
		case StateEstablished:
			h.setState(ctx, c, StateCloseWait)
		case StateFinWait1:
			h.setState(ctx, c, StateClosing)
		case StateFinWait2:
			h.setState(ctx, c, StateTimeWait)
			h.armTimeWait(c)
		default:
			h.sendRSTReply(ctx, seg)
			return
		}
		c.rcv.nxt++
		rcvAdvanced = true
		if c.recvFn != nil {
			c.recvFn(c, nil, nil)
		}
	}

	// Emit: acknowledge anything that advanced rcv.nxt, or flush
	// buffered data that now fits the window.
	h.ack(ctx, c, rcvAdvanced)
}

// advanceSndUna applies an inbound segment's ACK to the send-side
// control block: compacting the send buffer, growing the congestion
// window, counting duplicate ACKs, and driving the FIN-acked state
// transitions.
func (h *Host) advanceSndUna(ctx context.Context, c *Connection, seg segment) int32 {
	if !seg.Ctl.has(FlagACK) {
		return 0
	}
	advanced := seqDiff(seg.Ack, c.snd.una)
	if advanced <= 0 {
		if advanced == 0 && seg.payloadLen() == 0 {
			c.dupAck++
		}
		return advanced
	}

	dataAcked := advanced
	if c.state == StateSynSent || c.state == StateSynReceived {
		dataAcked-- // the SYN consumes one sequence number
	}
	if dataAcked > 0 {
		// A queued FIN occupies a sequence number but no buffer byte, so
		// the live span can run one past the stored bytes.
		used := c.bufUsed()
		if used > len(c.sndbuf) {
			used = len(c.sndbuf)
		}
		if int(dataAcked) < used {
			copy(c.sndbuf, c.sndbuf[dataAcked:used])
		}
	}
	c.snd.una = seg.Ack
	c.dupAck = 0
	c.snd.cwnd += h.mtu
	if c.snd.cwnd > uint32(c.maxSndBufSize) {
		c.snd.cwnd = uint32(c.maxSndBufSize)
	}

	clearConnTimeout(c)
	if c.snd.una == c.snd.nxt {
		clearRtrxTimeout(c)
	}

	if c.state == StateFinWait1 && c.snd.una == c.snd.last {
		h.setState(ctx, c, StateFinWait2)
	}
	if c.state == StateClosing && c.snd.una == c.snd.last {
		h.setState(ctx, c, StateTimeWait)
		h.armTimeWait(c)
	}
	return advanced
}

// handleRST applies an inbound RST according to the connection state.
func (h *Host) handleRST(ctx context.Context, c *Connection, seg segment) {
	switch c.state {
	case StateSynSent:
		if seg.Ctl.has(FlagACK) {
			h.failConnection(ctx, c, ConnectionRefused, "connection refused")
		}
	case StateSynReceived:
		if !seg.Ctl.has(FlagACK) {
			h.destroy(c) // the app never saw this connection
		}
	case StateEstablished, StateFinWait1, StateFinWait2, StateCloseWait:
		if !seg.Ctl.has(FlagACK) {
			h.failConnection(ctx, c, ConnectionReset, "connection reset")
		}
	case StateClosing, StateLastAck, StateTimeWait:
		if !seg.Ctl.has(FlagACK) {
			if c.reapable {
				h.destroy(c)
			} else {
				h.setState(ctx, c, StateClosed)
				clearConnTimeout(c)
				clearRtrxTimeout(c)
			}
		}
	}
}

// sendBareACK replies to an unacceptable (out-of-order) segment with
// an ACK carrying the current rcv.nxt.
func (h *Host) sendBareACK(ctx context.Context, c *Connection) {
	h.sendSegment(ctx, c, Header{Ctl: FlagACK, Seq: c.snd.nxt, Ack: c.rcv.nxt, Wnd: uint16(c.rcv.wnd)}, nil)
}

// rstReplyHeader builds a RST reply to an offending segment: ports
// swapped, window zeroed, and the sequence/ack numbers chosen
// depending on whether the offender carried an ACK.
func rstReplyHeader(seg segment) Header {
	h := Header{Src: seg.Dst, Dst: seg.Src, Wnd: 0}
	if seg.Ctl.has(FlagACK) {
		h.Ctl = FlagRST
		h.Seq = seg.Ack
	} else {
		h.Ctl = FlagRST | FlagACK
		h.Seq = 0
		h.Ack = seg.Seq + seq(seg.payloadLen())
	}
	return h
}

// sendRSTReply sends the RST reply computed by rstReplyHeader
// directly to the substrate; no connection object is required or
// consulted.
func (h *Host) sendRSTReply(ctx context.Context, seg segment) {
	hdr := rstReplyHeader(seg)
	dlog.Tracef(ctx, "utcp: -> RST %d/%d seq=%d ack=%d", hdr.Src, hdr.Dst, hdr.Seq, hdr.Ack)
	h.sendFn(ctx, h, buildSegment(hdr, nil))
}
