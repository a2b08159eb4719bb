package utcp

import "context"

// ack is the egress/fragmentation engine. It emits as much
// buffered-but-unsent data as the congestion window allows,
// fragmented to MTU-sized segments, folding a queued FIN onto the
// final fragment when one is pending. sendAtLeastOne forces a bare ACK
// when there is nothing new to send but the caller still owes the peer
// an acknowledgment.
func (h *Host) ack(ctx context.Context, c *Connection, sendAtLeastOne bool) {
	left := seqDiff(c.snd.last, c.snd.nxt)
	if left < 0 {
		left = 0
	}
	cwndLeft := int32(c.snd.cwnd) - seqDiff(c.snd.nxt, c.snd.una)
	if cwndLeft < 0 {
		cwndLeft = 0
	}
	if left > cwndLeft {
		left = cwndLeft
	}

	if left <= 0 {
		if sendAtLeastOne {
			h.sendSegment(ctx, c, Header{Ctl: FlagACK, Seq: c.snd.nxt, Ack: c.rcv.nxt, Wnd: uint16(c.rcv.wnd)}, nil)
		}
		return
	}

	finPending := (c.state == StateFinWait1 || c.state == StateClosing) && c.snd.last == c.finalSeq

	for left > 0 {
		segLen := left
		if segLen > int32(h.mtu) {
			segLen = int32(h.mtu)
		}

		ctl := FlagACK
		realLen := segLen
		if finPending && c.snd.nxt+seq(segLen) == c.snd.last {
			ctl |= FlagFIN
			realLen--
		}

		offset := seqDiff(c.snd.nxt, c.snd.una)
		var payload []byte
		if realLen > 0 {
			payload = append([]byte(nil), c.sndbuf[offset:offset+realLen]...)
		}

		h.sendSegment(ctx, c, Header{Ctl: ctl, Seq: c.snd.nxt, Ack: c.rcv.nxt, Wnd: uint16(c.rcv.wnd)}, payload)
		c.snd.nxt += seq(segLen)
		left -= segLen
	}

	h.armRtrxTimeout(c)
}
