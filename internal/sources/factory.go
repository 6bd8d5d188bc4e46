// ABOUTME: Factory for creating manifest, scan, and verify sources.
// ABOUTME: Centralizes the choice between production and mock implementations.

package sources

import (
	"github.com/sirupsen/logrus"

	"github.com/imageintel/imageintel/internal/sources/mock"
)

// Config holds configuration for creating sources.
type Config struct {
	MockMode         bool // use in-memory sources, no network or subprocesses
	RegistryUsername string
	RegistryPassword string
}

// NewManifestSource creates the registry manifest source.
func NewManifestSource(cfg *Config, logger *logrus.Logger) ManifestSource {
	if cfg.MockMode {
		logger.Info("Using mock manifest source")
		return mock.NewMockManifestSource(logger)
	}
	return NewRegistrySource(cfg.RegistryUsername, cfg.RegistryPassword, logger)
}

// NewScanSource creates the vulnerability scan source.
func NewScanSource(cfg *Config, logger *logrus.Logger) ScanSource {
	if cfg.MockMode {
		logger.Info("Using mock scan source")
		return mock.NewMockScanSource(logger)
	}
	return NewTrivyScanner(logger)
}

// NewVerifySource creates the signature verification source.
func NewVerifySource(cfg *Config, logger *logrus.Logger) VerifySource {
	if cfg.MockMode {
		logger.Info("Using mock verify source")
		return mock.NewMockVerifySource(logger)
	}
	return NewCosignVerifier(logger)
}
