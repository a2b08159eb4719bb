package utcp

import (
	"context"
	"time"

	"github.com/google/btree"
)

// noTimerMillis is returned by Timeout when no connection has a
// pending deadline; callers should wait up to this long before calling
// Timeout again speculatively.
const noTimerMillis = 3600 * 1000

// Timeout sweeps every connection once: it reaps CLOSED+reapable
// connections, fires expired user/TIME_WAIT timeouts, fires expired
// retransmission timers, invokes poll callbacks for connections whose
// send buffer has headroom past half of its maximum, and recomputes
// each connection's retransmission deadline. It returns the number of
// milliseconds until the next deadline across all connections, or
// noTimerMillis if none is armed.
//
// No internal goroutines or timers exist anywhere in the package, so
// the caller is expected to invoke Timeout periodically, scheduling
// its next call using the returned delay.
func (h *Host) Timeout(ctx context.Context) (ms int64, err error) {
	defer guard(&err)

	now := h.now()

	var reap []*Connection
	var earliest time.Time
	track := func(d time.Time) {
		if d.IsZero() {
			return
		}
		if earliest.IsZero() || d.Before(earliest) {
			earliest = d
		}
	}

	h.conns.Ascend(func(it btree.Item) bool {
		c := it.(connItem).conn
		if c.state == StateClosed && c.reapable {
			reap = append(reap, c)
			return true
		}
		if !c.connTimeout.IsZero() && !c.connTimeout.After(now) {
			h.fireConnTimeout(ctx, c)
			return true // the connection is CLOSED now; nothing left to drive
		}
		if !c.rtrxTimeout.IsZero() && !c.rtrxTimeout.After(now) {
			h.retransmit(ctx, c)
		}
		if c.pollFn != nil && (c.state == StateEstablished || c.state == StateCloseWait) {
			// Headroom counts against the configured maximum, not the
			// buffer's current capacity, since Send grows on demand.
			if free := c.maxSndBufSize - c.bufUsed(); free*2 >= c.maxSndBufSize {
				c.pollFn(c, free)
			}
		}
		if c.snd.nxt != c.snd.una {
			c.rtrxTimeout = now.Add(retransmitTimerEvery)
		} else {
			clearRtrxTimeout(c)
		}
		track(c.connTimeout)
		track(c.rtrxTimeout)
		return true
	})

	for _, c := range reap {
		h.destroy(c)
	}

	if earliest.IsZero() {
		return noTimerMillis, nil
	}
	ms = earliest.Sub(now).Milliseconds()
	if ms < 0 {
		ms = 0
	}
	return ms, nil
}

// fireConnTimeout handles conn_timeout expiry: TIME_WAIT's deadline is
// a graceful, error-free close; every other state's deadline means the
// peer stopped answering, surfaced to the application as TimedOut.
func (h *Host) fireConnTimeout(ctx context.Context, c *Connection) {
	if c.state == StateTimeWait {
		h.setState(ctx, c, StateClosed)
		c.reapable = true
		clearConnTimeout(c)
		clearRtrxTimeout(c)
		return
	}
	h.failConnection(ctx, c, TimedOut, "user timeout expired")
}
