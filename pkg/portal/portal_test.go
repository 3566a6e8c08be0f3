package portal_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/littleai/facegear/pkg/creds"
	"github.com/littleai/facegear/pkg/kv"
	"github.com/littleai/facegear/pkg/portal"
)

func startTestPortal(t *testing.T, connect func(creds.Credentials)) (*portal.Portal, *creds.Store, string) {
	t.Helper()
	store := creds.NewStore(kv.NewMemory())
	p := &portal.Portal{
		Addr:    "127.0.0.1:0",
		Creds:   store,
		Connect: connect,
	}
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(p.Stop)
	return p, store, "http://" + p.LocalAddr().String()
}

// noRedirectClient lets tests observe 302 responses directly.
var noRedirectClient = &http.Client{
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	},
	Timeout: 5 * time.Second,
}

func TestServesForm(t *testing.T) {
	_, _, base := startTestPortal(t, nil)

	resp, err := noRedirectClient.Get(base + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if cc := resp.Header.Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Errorf("Cache-Control = %q, want no-store", cc)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `action="/save"`) {
		t.Error("form page does not post to /save")
	}
}

func TestProbesRedirectToForm(t *testing.T) {
	_, _, base := startTestPortal(t, nil)

	for _, path := range []string{"/generate_204", "/hotspot-detect.html", "/ncsi.txt", "/anything/else"} {
		resp, err := noRedirectClient.Get(base + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusFound {
			t.Errorf("GET %s status = %d, want 302", path, resp.StatusCode)
		}
		if loc := resp.Header.Get("Location"); loc != "/" {
			t.Errorf("GET %s Location = %q, want /", path, loc)
		}
	}
}

func TestSavePersistsAndConnects(t *testing.T) {
	connected := make(chan creds.Credentials, 1)
	_, store, base := startTestPortal(t, func(c creds.Credentials) {
		connected <- c
	})

	form := url.Values{"ssid": {"HomeNet"}, "pass": {"secret 123&more"}}
	resp, err := noRedirectClient.PostForm(base+"/save", form)
	if err != nil {
		t.Fatalf("POST /save: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil || got.SSID != "HomeNet" || got.Passphrase != "secret 123&more" {
		t.Fatalf("stored = %+v, want HomeNet / decoded passphrase", got)
	}

	select {
	case c := <-connected:
		if c.SSID != "HomeNet" {
			t.Errorf("connect got ssid %q, want HomeNet", c.SSID)
		}
	case <-time.After(time.Second):
		t.Error("connection attempt not triggered")
	}
}

func TestSaveRequiresSSID(t *testing.T) {
	_, store, base := startTestPortal(t, nil)

	resp, err := noRedirectClient.PostForm(base+"/save", url.Values{"pass": {"p"}})
	if err != nil {
		t.Fatalf("POST /save: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if got, _ := store.Load(context.Background()); got != nil {
		t.Fatalf("stored = %+v, want nothing saved", got)
	}
}

// failingSaver simulates persistence failure.
type failingSaver struct{}

func (failingSaver) Save(context.Context, creds.Credentials) error {
	return errors.New("flash gone")
}

func TestSaveFailureIs500(t *testing.T) {
	p := &portal.Portal{Addr: "127.0.0.1:0", Creds: failingSaver{}}
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(p.Stop)

	base := "http://" + p.LocalAddr().String()
	resp, err := noRedirectClient.PostForm(base+"/save", url.Values{"ssid": {"HomeNet"}})
	if err != nil {
		t.Fatalf("POST /save: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	p, _, base := startTestPortal(t, nil)

	if err := p.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if got := "http://" + p.LocalAddr().String(); got != base {
		t.Errorf("address changed on redundant Start: %s -> %s", base, got)
	}

	p.Stop()
	p.Stop()
	if p.LocalAddr() != nil {
		t.Error("LocalAddr != nil after Stop")
	}

	if err := p.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	resp, err := noRedirectClient.Get("http://" + p.LocalAddr().String() + "/")
	if err != nil {
		t.Fatalf("GET after restart: %v", err)
	}
	resp.Body.Close()
}
