package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "facegear.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") = %v", err)
	}
	if cfg.Product != "facegear" || cfg.CommandAddr != ":8080" {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.WatchdogInterval != 12*time.Second {
		t.Fatalf("watchdog interval = %v, want 12s", cfg.WatchdogInterval)
	}
	gw, err := cfg.GatewayAddr()
	if err != nil || gw.String() != "192.168.4.1" {
		t.Fatalf("gateway = %v, %v", gw, err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
product: kiosk
command_addr: ":9090"
gateway: "10.0.0.1"
watchdog_interval: 3s
networks:
  HomeNet: secret123
audio:
  output: stdout
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load = %v", err)
	}
	if cfg.Product != "kiosk" || cfg.CommandAddr != ":9090" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.WatchdogInterval != 3*time.Second {
		t.Fatalf("watchdog interval = %v, want 3s", cfg.WatchdogInterval)
	}
	if cfg.Networks["HomeNet"] != "secret123" {
		t.Fatalf("networks = %v", cfg.Networks)
	}
	// Untouched fields keep their defaults.
	if cfg.PortalAddr != ":80" || cfg.DNSAddr != ":53" {
		t.Fatalf("cfg = %+v, want default portal/dns addrs", cfg)
	}
}

func TestLoadRejectsBadGateway(t *testing.T) {
	path := writeConfig(t, "gateway: not-an-ip\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load with bad gateway succeeded, want error")
	}

	path = writeConfig(t, "gateway: \"::1\"\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load with IPv6 gateway succeeded, want error")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "product: [unclosed\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load with malformed YAML succeeded, want error")
	}
}

func TestStationAddr(t *testing.T) {
	cfg := Default()
	addr, err := cfg.StationAddr()
	if err != nil || addr.IsValid() {
		t.Fatalf("unset station = %v, %v, want zero", addr, err)
	}

	cfg.StationIP = "10.0.0.7"
	addr, err = cfg.StationAddr()
	if err != nil || addr.String() != "10.0.0.7" {
		t.Fatalf("station = %v, %v", addr, err)
	}
}
