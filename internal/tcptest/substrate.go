// Package tcptest provides a deterministic, in-memory datagram
// substrate for exercising a pair of utcp Hosts against each other
// without a real network.
package tcptest

import (
	"context"
	"math/rand"

	"github.com/a-krebs/utcp"
)

// Wire connects two Hosts' SendFunc callbacks through an in-memory
// queue, optionally dropping or duplicating datagrams so retransmit
// and reset paths can be exercised deterministically. Nothing here
// runs a goroutine: datagrams are queued by Send and only delivered
// when the test calls Deliver, matching the single-threaded, externally
// driven calling convention the core itself requires.
type Wire struct {
	DropRate     float64 // [0,1): probability a datagram is silently dropped
	DuplicateOne bool    // if true, the next delivered datagram is sent twice
	rnd          *rand.Rand

	outbound map[string][][]byte // keyed by destination name
}

// NewWire creates a Wire seeded for reproducible test runs.
func NewWire(seed int64) *Wire {
	return &Wire{rnd: rand.New(rand.NewSource(seed)), outbound: map[string][][]byte{}}
}

// SendTo returns a SendFunc that enqueues datagrams addressed to the
// named peer, subject to DropRate.
func (w *Wire) SendTo(peer string) utcp.SendFunc {
	return func(ctx context.Context, h *utcp.Host, datagram []byte) {
		if w.DropRate > 0 && w.rnd.Float64() < w.DropRate {
			return
		}
		cp := append([]byte(nil), datagram...)
		w.outbound[peer] = append(w.outbound[peer], cp)
		if w.DuplicateOne {
			w.DuplicateOne = false
			w.outbound[peer] = append(w.outbound[peer], append([]byte(nil), cp...))
		}
	}
}

// Drain removes and returns every datagram currently queued for peer.
func (w *Wire) Drain(peer string) [][]byte {
	got := w.outbound[peer]
	w.outbound[peer] = nil
	return got
}

// Pending reports how many datagrams are queued for peer.
func (w *Wire) Pending(peer string) int {
	return len(w.outbound[peer])
}

// Deliver drains every datagram queued for peer and feeds each one
// into dst.Recv, in order. It is the test-driven stand-in for a real
// substrate's delivery loop: nothing here happens unless a test calls
// it, keeping the whole exchange single-threaded and deterministic.
func Deliver(ctx context.Context, dst *utcp.Host, w *Wire, peer string) error {
	for _, dg := range w.Drain(peer) {
		if err := dst.Recv(ctx, dg); err != nil {
			return err
		}
	}
	return nil
}
