// Package kv provides the device's small persistent key-value store with
// hierarchical path-based keys (e.g. ["wifi", "creds"], encoded "wifi:creds").
//
// A BadgerDB-backed implementation persists across reboots; an in-memory
// implementation serves tests.
package kv

import (
	"context"
	"errors"
	"strings"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a key does not exist in the store.
	ErrNotFound = errors.New("kv: not found")
)

// Separator joins key segments in the encoded form. Segments must not
// contain it.
const Separator = ':'

// Key is a hierarchical path represented as a slice of string segments.
type Key []string

// String returns the encoded key, which is also its storage encoding.
func (k Key) String() string {
	return strings.Join(k, string(Separator))
}

func (k Key) encode() []byte {
	return []byte(k.String())
}

// Store is the interface for the device key-value store.
type Store interface {
	// Get retrieves the value for a key. Returns ErrNotFound if not present.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores a key-value pair. Overwrites any existing value.
	Set(ctx context.Context, key Key, value []byte) error

	// Delete removes a key. No error if the key does not exist.
	Delete(ctx context.Context, key Key) error

	// Close releases any resources held by the store.
	Close() error
}
