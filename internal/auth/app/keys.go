package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/lockbox/pkg/cryptox"
	"github.com/aussiebroadwan/lockbox/pkg/jwtx"
)

// InitAuthKeys loads the Ed25519 signing key and builds the KeyManager.
//
// Every instance behind the same load balancer must share SigningKeyFile so a
// credential issued by one instance verifies on the others. Without a file the
// key lives only in memory and all credentials die with the process.
func InitAuthKeys(cfg Config, logger *slog.Logger) (*jwtx.KeyManager, error) {
	pemKey, generated, err := cryptox.LoadOrGenerateEd25519Key(cfg.SigningKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}

	keyManager, err := jwtx.NewKeyManager(pemKey, jwtx.KeyManagerOptions{Issuer: cfg.Issuer})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize key manager: %w", err)
	}

	switch {
	case cfg.SigningKeyFile == "":
		logger.Warn("no signing key file configured, credentials will not survive a restart")
	case generated:
		logger.Info("generated signing key", "path", cfg.SigningKeyFile)
	default:
		logger.Info("signing key loaded", "path", cfg.SigningKeyFile)
	}

	return keyManager, nil
}

// InitSecretBox derives the box that seals TOTP secrets from the master key.
func InitSecretBox(cfg Config, logger *slog.Logger) (*cryptox.SecretBox, error) {
	master, ephemeral, err := cryptox.LoadMasterKey(cfg.MasterKeyPath)
	if err != nil {
		return nil, err
	}
	if ephemeral {
		logger.Warn("no master key configured, enrolled TOTP secrets will be unreadable after a restart")
	}

	box, err := cryptox.NewSecretBox(master, "totp")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secret box: %w", err)
	}
	return box, nil
}
