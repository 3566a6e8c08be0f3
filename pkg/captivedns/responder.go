// Package captivedns implements the minimal DNS responder behind the setup
// portal. While the access point is active, every address query from a
// joined client resolves to the portal's gateway, which is what makes OS
// captive-portal detection kick in.
package captivedns

import (
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
)

// DefaultAddr is the standard DNS listen address.
const DefaultAddr = ":53"

// maxDatagram bounds inbound queries; anything larger than a classic UDP
// DNS message is not worth parsing here.
const maxDatagram = 512

// Responder answers every type-A query with the portal gateway address.
//
// Start and Stop are idempotent and safe to call concurrently: starting a
// running responder and stopping a stopped one are no-ops.
type Responder struct {
	// Addr is the UDP listen address. Defaults to DefaultAddr.
	Addr string

	// Gateway is the IPv4 address all names resolve to. Required.
	Gateway netip.Addr

	mu      sync.Mutex
	running atomic.Bool
	conn    net.PacketConn
}

// Start binds the UDP socket and launches the receive loop.
// Returns nil without side effects if already running.
func (r *Responder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running.Load() {
		return nil
	}

	addr := r.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return err
	}
	r.conn = conn
	r.running.Store(true)

	slog.Info("captivedns: listening", "addr", conn.LocalAddr().String(), "gateway", r.Gateway.String())
	go r.serve(conn)
	return nil
}

// Stop closes the socket and ends the receive loop.
// Returns nil without side effects if not running.
func (r *Responder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running.Swap(false) {
		return
	}
	r.conn.Close()
	r.conn = nil
	slog.Info("captivedns: stopped")
}

// LocalAddr returns the bound address, useful when Addr requested port 0.
// Returns nil when not running.
func (r *Responder) LocalAddr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	return r.conn.LocalAddr()
}

func (r *Responder) serve(conn net.PacketConn) {
	buf := make([]byte, maxDatagram)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			// Closed by Stop, or a fatal socket error; either way
			// the loop ends here. A watchdog restart re-arms it.
			if r.running.Load() {
				slog.Warn("captivedns: read failed", "error", err)
			}
			return
		}

		q, err := parseQuery(buf[:n])
		if err != nil {
			// Malformed packets are dropped without a reply.
			continue
		}

		if _, err := conn.WriteTo(buildReply(q, r.Gateway), from); err != nil {
			slog.Debug("captivedns: write failed", "error", err)
		}
	}
}
