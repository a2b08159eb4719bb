package utcp

import (
	"context"
	"math/rand"
	"time"

	"github.com/datawire/dlib/dlog"
	"github.com/google/btree"
)

// connItem is the btree.Item stored in Host's ordered connection
// container, keyed by (src, dst) so demultiplexing an inbound segment
// is a single ordered lookup.
type connItem struct {
	key  connKey
	conn *Connection
}

func (a connItem) Less(than btree.Item) bool {
	b := than.(connItem)
	if a.key.src != b.key.src {
		return a.key.src < b.key.src
	}
	return a.key.dst < b.key.dst
}

// Host demultiplexes inbound datagrams to connections and drives
// their timers. It owns every Connection created through it; a
// Connection carries only a non-owning back-reference.
type Host struct {
	conns *btree.BTree

	mtu         uint32
	userTimeout uint32 // seconds

	sendFn      SendFunc
	preAcceptFn PreAcceptFunc
	acceptFn    AcceptFunc

	rnd *rand.Rand

	userData any
}

// HostOption configures a Host at construction time.
type HostOption func(*Host)

// WithMTU overrides the default 1000-byte MTU.
func WithMTU(mtu uint32) HostOption {
	return func(h *Host) { h.mtu = mtu }
}

// WithUserTimeout overrides the default 60s user timeout.
func WithUserTimeout(seconds uint32) HostOption {
	return func(h *Host) { h.userTimeout = seconds }
}

// WithPreAccept installs the cheap accept filter consulted for
// unmatched inbound SYNs.
func WithPreAccept(fn PreAcceptFunc) HostOption {
	return func(h *Host) { h.preAcceptFn = fn }
}

// WithRandSource overrides the source used to pick initial sequence
// numbers and local ports, primarily for deterministic tests.
func WithRandSource(src rand.Source) HostOption {
	return func(h *Host) { h.rnd = rand.New(src) }
}

// WithUserData attaches an opaque value retrievable via Host.UserData.
func WithUserData(v any) HostOption {
	return func(h *Host) { h.userData = v }
}

// Init creates a Host. send is required and delivers every outbound
// datagram to the substrate. accept is called once per successfully
// established inbound connection.
func Init(send SendFunc, accept AcceptFunc, opts ...HostOption) (*Host, error) {
	if send == nil {
		return nil, newError(InvalidArgument, "send callback is required")
	}
	h := &Host{
		conns:       btree.New(32),
		mtu:         defaultMTU,
		userTimeout: defaultUserTimeoutSeconds,
		sendFn:      send,
		acceptFn:    accept,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Exit destroys every connection owned by h. It logs a warning (via
// dlog, through ctx) for any connection that was not reapable, since
// the application presumably still held a live reference to it.
func (h *Host) Exit(ctx context.Context) {
	var live []*Connection
	h.conns.Ascend(func(it btree.Item) bool {
		live = append(live, it.(connItem).conn)
		return true
	})
	for _, c := range live {
		if !c.reapable {
			dlog.Warnf(ctx, "utcp: exit with non-reapable connection %d/%d in state %s", c.key.src, c.key.dst, c.state)
		}
		h.destroy(c)
	}
}

// MTU returns the host's maximum segment payload size.
func (h *Host) MTU() uint32 { return h.mtu }

// SetMTU changes the host's maximum segment payload size.
func (h *Host) SetMTU(mtu uint32) { h.mtu = mtu }

// UserTimeout returns the user-timeout, in seconds.
func (h *Host) UserTimeout() uint32 { return h.userTimeout }

// SetUserTimeout changes the user-timeout, in seconds.
func (h *Host) SetUserTimeout(seconds uint32) { h.userTimeout = seconds }

// UserData returns the opaque value supplied via WithUserData.
func (h *Host) UserData() any { return h.userData }

// lookup finds the connection whose (src, dst) equals (localPort, remotePort).
func (h *Host) lookup(localPort, remotePort uint16) *Connection {
	item := h.conns.Get(connItem{key: connKey{src: localPort, dst: remotePort}})
	if item == nil {
		return nil
	}
	return item.(connItem).conn
}

func (h *Host) insert(c *Connection) {
	h.conns.ReplaceOrInsert(connItem{key: c.key, conn: c})
}

func (h *Host) remove(c *Connection) {
	h.conns.Delete(connItem{key: c.key})
}

// randomLocalPort picks a local port with the high bit set that does
// not collide with any (port, dst) pair already in use.
func (h *Host) randomLocalPort(dst uint16) uint16 {
	for {
		p := uint16(h.rnd.Uint32()) | 0x8000
		if h.lookup(p, dst) == nil {
			return p
		}
	}
}

// Connect allocates a connection with a random local port, sends a
// SYN, and enters SYN_SENT.
func (h *Host) Connect(ctx context.Context, dst uint16, recv RecvFunc, opts ...func(*Connection)) (*Connection, error) {
	return h.ConnectFrom(ctx, h.randomLocalPort(dst), dst, recv, opts...)
}

// ConnectFrom is Connect with a caller-chosen local port. The port
// must be nonzero and the (src, dst) pair must not already be in use
// by another connection on this host.
func (h *Host) ConnectFrom(ctx context.Context, src, dst uint16, recv RecvFunc, opts ...func(*Connection)) (c *Connection, err error) {
	defer guard(&err)

	if src == 0 {
		return nil, newError(InvalidArgument, "local port must be nonzero")
	}
	if h.lookup(src, dst) != nil {
		return nil, newError(AddressInUse, "connection pair already in use")
	}
	c = h.newConnection(src, dst)
	c.recvFn = recv
	for _, opt := range opts {
		opt(c)
	}

	c.snd.iss = seq(h.rnd.Uint32())
	c.snd.una = c.snd.iss
	c.snd.nxt = c.snd.iss
	c.snd.last = c.snd.iss
	c.snd.cwnd = h.mtu
	c.rcv.wnd = h.mtu

	h.insert(c)
	h.setState(ctx, c, StateSynSent)
	h.armUserTimeout(c)

	h.sendSegment(ctx, c, Header{Ctl: FlagSYN, Seq: c.snd.iss, Wnd: uint16(c.rcv.wnd)}, nil)
	// The SYN occupies one sequence number.
	c.snd.nxt = c.snd.iss + 1
	c.snd.last = c.snd.nxt
	h.armRtrxTimeout(c)

	return c, nil
}

func (h *Host) newConnection(src, dst uint16) *Connection {
	return &Connection{
		host:          h,
		key:           connKey{src: src, dst: dst},
		maxSndBufSize: defaultMaxSendBuf,
		sndbuf:        make([]byte, defaultSendBufSize),
	}
}
