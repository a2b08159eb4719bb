package utcp

import "context"

// retransmit rebuilds and re-emits the earliest unacknowledged segment
// appropriate to the connection's state. It advances no
// sequence variable and does not re-arm the retransmission timer; the
// sweep in Timeout recomputes that on its next pass.
//
// The close-sequence states (CLOSING, CLOSE_WAIT, LAST_ACK, TIME_WAIT)
// have no rebuild logic. That gap is inherited deliberately rather than
// filled in: reaching retransmit in one of them is treated as the fatal
// category of error and surfaced through the invariant guard.
func (h *Host) retransmit(ctx context.Context, c *Connection) {
	switch c.state {
	case StateSynSent:
		h.sendSegment(ctx, c, Header{Ctl: FlagSYN, Seq: c.snd.iss, Wnd: uint16(c.rcv.wnd)}, nil)
	case StateSynReceived:
		h.sendSegment(ctx, c, Header{Ctl: FlagSYN | FlagACK, Seq: c.snd.iss, Ack: c.rcv.nxt, Wnd: uint16(c.rcv.wnd)}, nil)
	case StateEstablished, StateFinWait1:
		pending := seqDiff(c.snd.last, c.snd.una)
		segLen := pending
		if segLen > int32(h.mtu) {
			segLen = int32(h.mtu)
		}
		ctl := FlagACK
		realLen := segLen
		if c.state == StateFinWait1 && pending <= int32(h.mtu) && c.snd.last == c.finalSeq {
			ctl |= FlagFIN
			realLen--
		}
		var payload []byte
		if realLen > 0 {
			payload = append([]byte(nil), c.sndbuf[:realLen]...)
		}
		h.sendSegment(ctx, c, Header{Ctl: ctl, Seq: c.snd.una, Ack: c.rcv.nxt, Wnd: uint16(c.rcv.wnd)}, payload)
	case StateClosing, StateCloseWait, StateLastAck, StateTimeWait:
		panicInvariant("retransmit not implemented for state %s", c.state)
	default:
		panicInvariant("retransmit fired for connection %d/%d in unexpected state %s", c.key.src, c.key.dst, c.state)
	}
}
