package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/littleai/facegear/cmd/facegear/internal/config"
	"github.com/littleai/facegear/pkg/audio"
	"github.com/littleai/facegear/pkg/captivedns"
	"github.com/littleai/facegear/pkg/creds"
	"github.com/littleai/facegear/pkg/face"
	"github.com/littleai/facegear/pkg/faceproto"
	"github.com/littleai/facegear/pkg/kv"
	"github.com/littleai/facegear/pkg/portal"
	"github.com/littleai/facegear/pkg/provision"
)

var flagConfig string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the device control plane",
	Long: `Run the device control plane.

Starts the face command channel, then the provisioning service. When no
working Wi-Fi credentials exist, a setup access point comes up with a
captive portal; once credentials are saved the device joins the network
and the portal is torn down.`,
	RunE: runDevice,
}

func init() {
	runCmd.Flags().StringVarP(&flagConfig, "config", "f", "", "config file (YAML)")
	rootCmd.AddCommand(runCmd)
}

func runDevice(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if IsVerbose() {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
	logger := slog.Default()

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Shutting down...")
		cancel()
	}()

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	deviceID, err := provision.DeviceID(ctx, store)
	if err != nil {
		return fmt.Errorf("device identity: %w", err)
	}
	logger.Info("Device identity", "id", deviceID)

	player, closer, err := openAudio(cfg)
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	// The command channel comes up first; a bind failure here is fatal.
	srv := &faceproto.Server{
		Addr: cfg.CommandAddr,
		Dispatcher: &faceproto.Dispatcher{
			Face:  face.New(face.NewBootClock()),
			Audio: player,
		},
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("command channel: %w", err)
	}
	defer srv.Stop()

	gateway, err := cfg.GatewayAddr()
	if err != nil {
		return err
	}
	stationIP, err := cfg.StationAddr()
	if err != nil {
		return err
	}

	credStore := creds.NewStore(store)
	backend := &provision.SimBackend{
		Networks:  cfg.Networks,
		StationIP: stationIP,
	}
	dns := &captivedns.Responder{Addr: cfg.DNSAddr, Gateway: gateway}
	captive := &portal.Portal{Addr: cfg.PortalAddr, Creds: credStore}

	prov := &provision.Provisioner{
		Backend:          backend,
		Creds:            credStore,
		DNS:              dns,
		Portal:           captive,
		APSSID:           provision.APSSID(cfg.Product, deviceID),
		WatchdogInterval: cfg.WatchdogInterval,
	}
	captive.Connect = prov.ConnectWith

	if err := prov.Start(ctx); err != nil {
		return fmt.Errorf("provisioning: %w", err)
	}
	defer prov.Stop()

	logger.Info("Device ready",
		"command_addr", cfg.CommandAddr,
		"ap_ssid", prov.APSSID)

	<-ctx.Done()
	return nil
}

func openStore(cfg *config.Config) (kv.Store, error) {
	if cfg.DataDir == "" {
		slog.Warn("run: no data_dir configured, credentials will not survive restarts")
		return kv.NewBadger(kv.BadgerOptions{InMemory: true})
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, err
	}
	return kv.NewBadger(kv.BadgerOptions{Dir: cfg.DataDir})
}

// openAudio builds the PCM player from config. The returned closer is nil
// unless a file was opened.
func openAudio(cfg *config.Config) (audio.Player, io.Closer, error) {
	switch cfg.Audio.Output {
	case "", "none":
		return audio.Nop{}, nil, nil
	case "stdout":
		return &audio.Sink{W: os.Stdout, SampleRate: cfg.Audio.SampleRate}, nil, nil
	default:
		f, err := os.OpenFile(cfg.Audio.Output, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		return &audio.Sink{W: f, SampleRate: cfg.Audio.SampleRate}, f, nil
	}
}
