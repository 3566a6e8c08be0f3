package creds_test

import (
	"context"
	"errors"
	"testing"

	"github.com/littleai/facegear/pkg/creds"
	"github.com/littleai/facegear/pkg/kv"
)

func newTestStore(t *testing.T) *creds.Store {
	t.Helper()
	mem := kv.NewMemory()
	t.Cleanup(func() { mem.Close() })
	return creds.NewStore(mem)
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Unprovisioned device: no identity, no error.
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != nil {
		t.Fatalf("Load = %+v, want nil before first save", got)
	}

	want := creds.Credentials{SSID: "HomeNet", Passphrase: "secret123"}
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("Load after save: %v", err)
	}
	if got == nil || *got != want {
		t.Fatalf("Load = %+v, want %+v", got, want)
	}

	// Saving again replaces the identity.
	next := creds.Credentials{SSID: "OfficeNet"}
	if err := s.Save(ctx, next); err != nil {
		t.Fatalf("Save replacement: %v", err)
	}
	got, _ = s.Load(ctx)
	if got == nil || *got != next {
		t.Fatalf("Load = %+v, want %+v", got, next)
	}
}

func TestSaveEmptySSID(t *testing.T) {
	s := newTestStore(t)
	err := s.Save(context.Background(), creds.Credentials{Passphrase: "p"})
	if !errors.Is(err, creds.ErrEmptySSID) {
		t.Fatalf("expected ErrEmptySSID, got %v", err)
	}
}

func TestEmptyPassphraseAllowed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Open networks have no passphrase.
	if err := s.Save(ctx, creds.Credentials{SSID: "CafeOpen"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.SSID != "CafeOpen" || got.Passphrase != "" {
		t.Fatalf("Load = %+v", got)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear on empty store: %v", err)
	}

	s.Save(ctx, creds.Credentials{SSID: "HomeNet"})
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load after clear: %v", err)
	}
	if got != nil {
		t.Fatalf("Load = %+v, want nil after clear", got)
	}
}

// failingStore simulates a flash failure.
type failingStore struct {
	kv.Store
	err error
}

func (f *failingStore) Get(ctx context.Context, key kv.Key) ([]byte, error) {
	return nil, f.err
}

func (f *failingStore) Set(ctx context.Context, key kv.Key, value []byte) error {
	return f.err
}

func TestStoreFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("flash gone")
	s := creds.NewStore(&failingStore{err: boom})

	if err := s.Save(ctx, creds.Credentials{SSID: "x"}); !errors.Is(err, boom) {
		t.Fatalf("Save error = %v, want wrapped %v", err, boom)
	}
	if _, err := s.Load(ctx); !errors.Is(err, boom) {
		t.Fatalf("Load error = %v, want wrapped %v", err, boom)
	}
}
