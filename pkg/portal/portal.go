// Package portal serves the captive setup page that collects network
// credentials from the user's phone or laptop.
//
// Any non-root GET bounces to the form: OS captive-portal probes hit varied
// well-known paths, and redirecting all of them is what makes the system
// portal UI pop up.
package portal

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/littleai/facegear/pkg/creds"
)

// DefaultAddr is the standard captive-portal listen address.
const DefaultAddr = ":80"

const formHTML = `<!doctype html><html><head><meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>facegear Wi-Fi Setup</title>
<style>body{font-family:system-ui;margin:24px}input{font-size:16px;padding:10px;width:100%;max-width:420px;margin:6px 0}button{font-size:16px;padding:10px 14px}</style>
</head><body>
<h2>Connect facegear to Wi-Fi</h2>
<form method="POST" action="/save">
<label>SSID</label><br><input name="ssid" placeholder="Wi-Fi name" required><br>
<label>Password</label><br><input name="pass" type="password" placeholder="Wi-Fi password"><br>
<button type="submit">Save &amp; Connect</button>
</form>
</body></html>`

const savedHTML = `<html><body><h3>Saved. Connecting...</h3><p>You can close this page.</p></body></html>`

// CredentialSaver persists submitted credentials.
type CredentialSaver interface {
	Save(ctx context.Context, c creds.Credentials) error
}

// Portal is the provisioning HTTP server.
//
// Start and Stop are idempotent: starting a running portal and stopping a
// stopped one are no-ops.
type Portal struct {
	// Addr is the listen address. Defaults to DefaultAddr.
	Addr string

	// Creds persists submitted credentials. Required.
	Creds CredentialSaver

	// Connect is invoked with freshly saved credentials to trigger a
	// station connection attempt. Optional.
	Connect func(creds.Credentials)

	mu      sync.Mutex
	running atomic.Bool
	srv     *http.Server
	ln      net.Listener
}

// Start binds the listener and begins serving.
// Returns nil without side effects if already running.
func (p *Portal) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running.Load() {
		return nil
	}

	addr := p.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", p.handleRoot)
	mux.HandleFunc("POST /save", p.handleSave)
	mux.HandleFunc("/", p.handleProbe)

	p.ln = ln
	p.srv = &http.Server{Handler: mux}
	p.running.Store(true)

	slog.Info("portal: listening", "addr", ln.Addr().String())
	go func() {
		if err := p.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Warn("portal: serve failed", "error", err)
		}
	}()
	return nil
}

// Stop closes the server. Returns nil without side effects if not running.
func (p *Portal) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running.Swap(false) {
		return
	}
	p.srv.Close()
	p.srv = nil
	p.ln = nil
	slog.Info("portal: stopped")
}

// LocalAddr returns the bound address, or nil when not running.
func (p *Portal) LocalAddr() net.Addr {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ln == nil {
		return nil
	}
	return p.ln.Addr()
}

func (p *Portal) handleRoot(w http.ResponseWriter, r *http.Request) {
	slog.Info("portal: GET /", "from", r.RemoteAddr)
	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	h.Set("Pragma", "no-cache")
	w.Write([]byte(formHTML))
}

// handleProbe catches captive-portal probes like /generate_204 and
// /hotspot-detect.html and bounces everything to the form.
func (p *Portal) handleProbe(w http.ResponseWriter, r *http.Request) {
	slog.Info("portal: redirect", "path", r.URL.Path, "from", r.RemoteAddr)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (p *Portal) handleSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	c := creds.Credentials{
		SSID:       r.PostForm.Get("ssid"),
		Passphrase: r.PostForm.Get("pass"),
	}
	if c.SSID == "" {
		http.Error(w, "SSID required", http.StatusBadRequest)
		return
	}

	slog.Info("portal: saving credentials", "ssid", c.SSID)
	if err := p.Creds.Save(r.Context(), c); err != nil {
		slog.Error("portal: save failed", "error", err)
		http.Error(w, "Save failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(savedHTML))

	if p.Connect != nil {
		p.Connect(c)
	}
}
