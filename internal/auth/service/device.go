package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/internal/auth/store"
	"github.com/aussiebroadwan/lockbox/pkg/idx"
)

var devicePlatforms = map[string]bool{"ios": true, "android": true}

type DeviceService struct {
	Store store.Store
}

// Register adds a device for push delivery. Registering a token the user
// already has refreshes that device.
func (s *DeviceService) Register(ctx context.Context, userID, pushToken, platform, name string) (domain.Device, error) {
	pushToken = strings.TrimSpace(pushToken)
	platform = strings.ToLower(strings.TrimSpace(platform))
	if pushToken == "" || !devicePlatforms[platform] {
		return domain.Device{}, ErrInvalidDevice
	}

	now := time.Now().UTC()
	d, err := s.Store.Devices().UpsertDevice(ctx, domain.Device{
		ID:         idx.New().String(),
		UserID:     userID,
		PushToken:  pushToken,
		Platform:   platform,
		Name:       strings.TrimSpace(name),
		CreatedAt:  now,
		LastSeenAt: now,
	})
	if err != nil {
		return domain.Device{}, fmt.Errorf("register device: %w", err)
	}
	return d, nil
}

func (s *DeviceService) List(ctx context.Context, userID string) ([]domain.Device, error) {
	return s.Store.Devices().ListUserDevices(ctx, userID)
}

// Delete removes one of the user's devices. The last device going away also
// turns Face ID off, since no push could reach the user anymore.
func (s *DeviceService) Delete(ctx context.Context, userID, deviceID string) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Devices().DeleteDevice(ctx, userID, deviceID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}

		remaining, err := tx.Devices().ListUserDevices(ctx, userID)
		if err != nil {
			return err
		}
		if len(remaining) == 0 {
			return tx.Users().SetFaceEnabled(ctx, userID, false)
		}
		return nil
	})
}
