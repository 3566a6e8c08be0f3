package provision

import (
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/littleai/facegear/pkg/creds"
)

// SimBackend is a Backend for development and tests. It "connects" to a
// configurable set of known networks after a short latency and reports
// everything else as a failed attempt.
type SimBackend struct {
	// Networks maps SSID to required passphrase ("" for open networks).
	Networks map[string]string

	// StationIP is the address reported on a successful connection.
	StationIP netip.Addr

	// ConnectLatency delays the connection outcome. Defaults to 10ms.
	ConnectLatency time.Duration

	mu       sync.Mutex
	apActive bool
	apSSID   string
	events   chan Event
	initOnce sync.Once
}

func (b *SimBackend) init() {
	b.initOnce.Do(func() {
		b.events = make(chan Event, 8)
	})
}

// StartAP marks the setup access point active. Idempotent.
func (b *SimBackend) StartAP(ssid string) error {
	b.init()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.apActive {
		return nil
	}
	b.apActive = true
	b.apSSID = ssid
	slog.Info("sim: access point up", "ssid", ssid)
	return nil
}

// StopAP marks the access point inactive. Idempotent.
func (b *SimBackend) StopAP() error {
	b.init()
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.apActive {
		return nil
	}
	b.apActive = false
	slog.Info("sim: access point down", "ssid", b.apSSID)
	return nil
}

// APActive reports whether the simulated access point is up.
func (b *SimBackend) APActive() bool {
	b.init()
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.apActive
}

// ConnectStation resolves the attempt against Networks after the configured
// latency and emits the outcome as an event.
func (b *SimBackend) ConnectStation(c creds.Credentials) error {
	b.init()
	latency := b.ConnectLatency
	if latency <= 0 {
		latency = 10 * time.Millisecond
	}
	go func() {
		time.Sleep(latency)
		pass, ok := b.Networks[c.SSID]
		if !ok || pass != c.Passphrase {
			b.events <- Event{Kind: EventConnectFailed}
			return
		}
		ip := b.StationIP
		if !ip.IsValid() {
			ip = netip.AddrFrom4([4]byte{192, 168, 1, 50})
		}
		b.events <- Event{Kind: EventConnected, IP: ip}
	}()
	return nil
}

// Drop simulates losing the station link.
func (b *SimBackend) Drop() {
	b.init()
	b.events <- Event{Kind: EventDisconnected}
}

// Events returns the event stream.
func (b *SimBackend) Events() <-chan Event {
	b.init()
	return b.events
}
