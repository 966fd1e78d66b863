package device

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nerrad567/sentry-core/internal/infrastructure/config"
)

// Seed provisions the configured devices on first boot if no devices
// exist. Devices start active and armed, unclaimed by any account.
// Returns the number of devices created (0 if seeding was skipped).
func Seed(ctx context.Context, repo Repository, seeds []config.SeedDeviceConfig, logger *slog.Logger) (int, error) {
	count, err := repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("checking device count: %w", err)
	}

	if count > 0 {
		logger.Info("devices exist, skipping device seed")
		return 0, nil
	}

	created := 0
	for _, s := range seeds {
		name := s.Name
		if name == "" {
			name = "Device " + s.Key
		}

		d := &Device{
			Key:       s.Key,
			Name:      name,
			PIN:       s.PIN,
			ChangeKey: s.ChangeKey,
			Active:    true,
			Armed:     true,
		}
		if err := repo.Create(ctx, d); err != nil {
			return created, fmt.Errorf("seeding device %q: %w", s.Key, err)
		}
		created++

		logger.Info("seed device provisioned", "device_key", s.Key, "device_id", d.ID)
	}

	return created, nil
}
