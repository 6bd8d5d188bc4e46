// ABOUTME: Mock manifest source for local testing and development.
// ABOUTME: Fabricates deterministic manifests and signature manifests.

package mock

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/imageintel/imageintel/internal/errdefs"
	"github.com/imageintel/imageintel/internal/types"
)

const (
	mockIssuer   = "https://token.actions.githubusercontent.com"
	mockIdentity = "https://github.com/imageintel/imageintel/.github/workflows/release.yaml@refs/tags/v1.0.0"
)

// MockManifestSource implements ManifestSource with fabricated data. Image
// manifests get a digest derived from the reference itself, so repeated
// lookups are stable; signature manifests carry a freshly generated signing
// certificate with the usual OIDC claim extensions.
type MockManifestSource struct {
	logger *logrus.Logger

	mu      sync.Mutex
	fetches map[string]int

	certPEM string
}

// NewMockManifestSource creates a mock manifest source. Certificate
// generation happens once, at construction.
func NewMockManifestSource(logger *logrus.Logger) *MockManifestSource {
	certPEM, err := generateSigningCertificate()
	if err != nil {
		// Key generation from crypto/rand does not fail in practice.
		logger.WithError(err).Error("Failed to generate mock signing certificate")
	}
	return &MockManifestSource{
		logger:  logger,
		fetches: make(map[string]int),
		certPEM: certPEM,
	}
}

// GetManifest fabricates a manifest for ref. References whose tag ends in
// ".sig" are treated as signature lookups: images whose name contains
// "unsigned" get a not-found response, everything else gets a single-layer
// signature manifest.
func (m *MockManifestSource) GetManifest(ctx context.Context, ref types.ImageReference) (*types.ManifestResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.fetches[ref.String()]++
	m.mu.Unlock()

	m.logger.WithField("image", ref.String()).Debug("Serving mock manifest")

	if strings.HasSuffix(ref.Tag, ".sig") {
		return m.signatureManifest(ref)
	}

	sum := sha256.Sum256([]byte(ref.String()))
	dgst := types.ContentDigest("sha256:" + hex.EncodeToString(sum[:]))

	return &types.ManifestResult{
		Manifest: types.RegistryManifest{
			SchemaVersion: 2,
			MediaType:     "application/vnd.oci.image.index.v1+json",
			Manifests: []types.PlatformManifest{
				{
					MediaType: "application/vnd.oci.image.manifest.v1+json",
					Size:      1159,
					Digest:    dgst.String(),
					Platform:  &types.Platform{Architecture: "amd64", OS: "linux"},
				},
			},
		},
		Digest: dgst,
	}, nil
}

// Fetches reports how often one canonical reference was requested.
func (m *MockManifestSource) Fetches(ref string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches[ref]
}

func (m *MockManifestSource) signatureManifest(ref types.ImageReference) (*types.ManifestResult, error) {
	if strings.Contains(ref.Name, "unsigned") {
		return nil, errdefs.NotFound(fmt.Sprintf("manifest for %s not found", ref.String()), nil)
	}

	sum := sha256.Sum256([]byte(ref.String() + "+sig"))
	dgst := types.ContentDigest("sha256:" + hex.EncodeToString(sum[:]))

	return &types.ManifestResult{
		Manifest: types.RegistryManifest{
			SchemaVersion: 2,
			MediaType:     "application/vnd.oci.image.manifest.v1+json",
			Layers: []types.Layer{
				{
					MediaType: "application/vnd.dev.cosign.simplesigning.v1+json",
					Size:      256,
					Digest:    dgst.String(),
					Annotations: map[string]string{
						types.SignatureCertificateAnnotation: m.certPEM,
					},
				},
			},
		},
		Digest: dgst,
	}, nil
}

// generateSigningCertificate self-signs a short-lived certificate carrying
// the OIDC issuer and identity claim extensions.
func generateSigningCertificate() (string, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "imageintel mock signer"},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(24 * time.Hour),
		ExtraExtensions: []pkix.Extension{
			{
				Id:    asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 57264, 1, 1},
				Value: []byte(mockIssuer),
			},
			{
				Id:    asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 57264, 1, 9},
				Value: []byte(mockIdentity),
			},
		},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return "", err
	}

	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})), nil
}
