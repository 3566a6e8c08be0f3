// Package creds persists the device's single saved network identity.
//
// At most one identity exists at a time; absence means the device is not
// provisioned yet.
package creds

import (
	"context"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/littleai/facegear/pkg/kv"
)

// Sentinel errors.
var (
	// ErrEmptySSID is returned by Save when the SSID is empty.
	ErrEmptySSID = errors.New("creds: empty ssid")
)

// storageKey is the namespaced record holding the saved identity.
var storageKey = kv.Key{"wifi", "creds"}

// Credentials is a saved network identity.
type Credentials struct {
	SSID       string `msgpack:"ssid"`
	Passphrase string `msgpack:"pass"`
}

// Store reads and writes the saved identity on top of the device kv store.
type Store struct {
	kv kv.Store
}

// NewStore creates a credential store backed by the given kv store.
func NewStore(s kv.Store) *Store {
	return &Store{kv: s}
}

// Save persists the identity, replacing any previous one.
func (s *Store) Save(ctx context.Context, c Credentials) error {
	if c.SSID == "" {
		return ErrEmptySSID
	}
	b, err := msgpack.Marshal(&c)
	if err != nil {
		return fmt.Errorf("creds: encode: %w", err)
	}
	if err := s.kv.Set(ctx, storageKey, b); err != nil {
		return fmt.Errorf("creds: save: %w", err)
	}
	return nil
}

// Load returns the saved identity, or (nil, nil) when none is saved.
// Store failures are surfaced as errors; absence is not an error.
func (s *Store) Load(ctx context.Context) (*Credentials, error) {
	b, err := s.kv.Get(ctx, storageKey)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("creds: load: %w", err)
	}
	var c Credentials
	if err := msgpack.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("creds: decode: %w", err)
	}
	return &c, nil
}

// Clear removes the saved identity. No error if none is saved.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, storageKey); err != nil {
		return fmt.Errorf("creds: clear: %w", err)
	}
	return nil
}
