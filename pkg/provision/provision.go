// Package provision brings the device onto a network. With saved
// credentials it attempts a station connection; without them (or after a
// disconnect) it raises an open access point with a captive DNS responder
// and an HTTP setup portal, and a watchdog keeps re-arming that portal
// until a connection succeeds.
package provision

import (
	"context"
	"log/slog"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/littleai/facegear/pkg/creds"
)

// DefaultWatchdogInterval is how often the watchdog verifies that an
// unconnected device has its setup portal up.
const DefaultWatchdogInterval = 12 * time.Second

// Backend abstracts the radio and network interface control. Connection
// results and link changes arrive asynchronously on Events.
type Backend interface {
	// StartAP raises the open setup access point. Idempotent.
	StartAP(ssid string) error

	// StopAP tears the access point down. Idempotent.
	StopAP() error

	// ConnectStation begins a non-blocking station connection attempt;
	// the outcome is delivered as an Event.
	ConnectStation(c creds.Credentials) error

	// Events delivers network notifications until the backend closes.
	Events() <-chan Event
}

// service is a network listener with idempotent lifecycle, satisfied by
// both the captive DNS responder and the HTTP portal.
type service interface {
	Start() error
	Stop()
}

// Provisioner is the network provisioning state machine.
type Provisioner struct {
	// Backend controls the radio. Required.
	Backend Backend

	// Creds is the persistent credential store. Required.
	Creds *creds.Store

	// DNS and Portal are the captive-portal listeners, activated
	// together with the access point. Required.
	DNS    service
	Portal service

	// APSSID is the setup network name. Required; see APSSID().
	APSSID string

	// WatchdogInterval overrides DefaultWatchdogInterval.
	WatchdogInterval time.Duration

	mu    sync.Mutex
	state ConnState

	connected atomic.Bool
	ip        atomic.Value // netip.Addr

	started atomic.Bool
	stop    chan struct{}
	done    sync.WaitGroup
}

// Start begins provisioning: it tries the saved credentials and arms the
// event loop and watchdog. Idempotent; the second call is a no-op.
func (p *Provisioner) Start(ctx context.Context) error {
	if p.started.Swap(true) {
		return nil
	}
	p.stop = make(chan struct{})

	p.done.Add(2)
	go p.eventLoop()
	go p.watchdog()

	p.connectFromSaved(ctx)
	return nil
}

// Stop halts the loops and tears down the portal infrastructure.
func (p *Provisioner) Stop() {
	if !p.started.Swap(false) {
		return
	}
	close(p.stop)
	p.done.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.deactivatePortalLocked()
}

// IsConnected reports whether the station link is up. Safe from any
// goroutine; reads a cached flag, not the state machine.
func (p *Provisioner) IsConnected() bool {
	return p.connected.Load()
}

// CurrentIP returns the cached station address, or the zero Addr when not
// connected.
func (p *Provisioner) CurrentIP() netip.Addr {
	if !p.connected.Load() {
		return netip.Addr{}
	}
	ip, _ := p.ip.Load().(netip.Addr)
	return ip
}

// State returns the current connection state.
func (p *Provisioner) State() ConnState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// connectFromSaved loads credentials and either starts a station attempt or
// raises the portal. Store failures are not fatal: the portal is the
// recovery path for every provisioning error.
func (p *Provisioner) connectFromSaved(ctx context.Context) {
	c, err := p.Creds.Load(ctx)
	if err != nil {
		slog.Warn("provision: credential load failed", "error", err)
	}
	if c == nil {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.activatePortalLocked()
		return
	}
	p.ConnectWith(*c)
}

// ConnectWith begins a station connection attempt with the given
// credentials. Used directly by the portal after a successful save.
func (p *Provisioner) ConnectWith(c creds.Credentials) {
	p.mu.Lock()
	defer p.mu.Unlock()

	slog.Info("provision: connecting station", "ssid", c.SSID)
	if err := p.Backend.ConnectStation(c); err != nil {
		slog.Warn("provision: station connect failed", "error", err)
		p.activatePortalLocked()
		return
	}
	p.state = ConnectingSta
}

func (p *Provisioner) eventLoop() {
	defer p.done.Done()
	for {
		select {
		case <-p.stop:
			return
		case ev, ok := <-p.Backend.Events():
			if !ok {
				return
			}
			p.handleEvent(ev)
		}
	}
}

func (p *Provisioner) handleEvent(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next, eff := step(p.state, ev)
	p.state = next

	switch ev.Kind {
	case EventConnected:
		slog.Info("provision: station connected", "ip", ev.IP.String())
		p.ip.Store(ev.IP)
		p.connected.Store(true)
	case EventDisconnected, EventConnectFailed:
		slog.Warn("provision: station down", "event", ev.Kind)
		p.connected.Store(false)
	}

	// Effects run before the lock is released so a concurrent watchdog
	// tick observes a consistent portal state.
	if eff.deactivatePortal {
		p.deactivatePortalLocked()
	}
	if eff.activatePortal {
		p.activatePortalLocked()
	}
}

// watchdog periodically re-arms the portal while unconnected. It is the
// self-healing path for missed or duplicate disconnect events.
func (p *Provisioner) watchdog() {
	defer p.done.Done()

	interval := p.WatchdogInterval
	if interval <= 0 {
		interval = DefaultWatchdogInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-t.C:
			p.mu.Lock()
			if p.state != StaConnected {
				slog.Warn("provision: not connected; ensuring setup portal is up")
				p.activatePortalLocked()
			}
			p.mu.Unlock()
		}
	}
}

// activatePortalLocked raises AP + DNS + portal. Each piece is idempotent,
// so re-activation while already active is a no-op.
func (p *Provisioner) activatePortalLocked() {
	if err := p.Backend.StartAP(p.APSSID); err != nil {
		slog.Error("provision: access point start failed", "error", err)
		return
	}
	if err := p.DNS.Start(); err != nil {
		slog.Error("provision: dns responder start failed", "error", err)
	}
	if err := p.Portal.Start(); err != nil {
		slog.Error("provision: portal start failed", "error", err)
	}
}

// deactivatePortalLocked tears down the access point before its dependent
// listeners: a beaconing AP without DNS or portal behind it would strand
// clients.
func (p *Provisioner) deactivatePortalLocked() {
	if err := p.Backend.StopAP(); err != nil {
		slog.Warn("provision: access point stop failed", "error", err)
	}
	p.DNS.Stop()
	p.Portal.Stop()
}
