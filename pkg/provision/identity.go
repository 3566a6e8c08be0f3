package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/littleai/facegear/pkg/kv"
)

// identityKey holds the device's generated identity.
var identityKey = kv.Key{"device", "id"}

// DeviceID returns the device's stable identity, generating and persisting
// one on first boot. It stands in for a hardware MAC on platforms where one
// is not exposed.
func DeviceID(ctx context.Context, store kv.Store) (uuid.UUID, error) {
	b, err := store.Get(ctx, identityKey)
	if err == nil {
		if id, perr := uuid.FromBytes(b); perr == nil {
			return id, nil
		}
		// Corrupt record; fall through and regenerate.
	} else if !errors.Is(err, kv.ErrNotFound) {
		return uuid.Nil, fmt.Errorf("provision: read device id: %w", err)
	}

	id := uuid.New()
	if err := store.Set(ctx, identityKey, id[:]); err != nil {
		return uuid.Nil, fmt.Errorf("provision: persist device id: %w", err)
	}
	return id, nil
}

// APSSID derives the setup network name: "<product>-setup-<4 hex chars>",
// with the suffix taken from the device identity so every physical unit
// advertises a distinguishable name.
func APSSID(product string, id uuid.UUID) string {
	return fmt.Sprintf("%s-setup-%s", product, strings.ToUpper(id.String()[32:36]))
}
