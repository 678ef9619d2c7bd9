package access

import (
	"context"

	"github.com/boxbuddy/boxbuddy-core/internal/device"
)

// RegistryDirectory adapts *device.Registry to the DeviceDirectory
// interface the ledger depends on.
type RegistryDirectory struct {
	Registry *device.Registry
}

// Info implements DeviceDirectory.
func (d RegistryDirectory) Info(ctx context.Context, id string) (DeviceInfo, error) {
	dev, err := d.Registry.Get(ctx, id)
	if err != nil {
		return DeviceInfo{}, err
	}
	return DeviceInfo{ID: dev.ID, Name: dev.Name}, nil
}

// SetLocked implements DeviceDirectory. The write is unconditional: the
// redemption flow owns its own guard semantics.
func (d RegistryDirectory) SetLocked(ctx context.Context, id string, locked bool) error {
	_, err := d.Registry.SetLocked(ctx, id, locked)
	return err
}
