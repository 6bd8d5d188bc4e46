// ABOUTME: Unit tests for signature claim derivation from signature manifest
// ABOUTME: layers, including the SAN fallback and identity URL trimming.

package cosign

import (
	"crypto/x509/pkix"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imageintel/imageintel/internal/types"
)

func certLayer(t *testing.T, spec testCertSpec) types.Layer {
	t.Helper()
	return types.Layer{
		MediaType: "application/vnd.dev.cosign.simplesigning.v1+json",
		Digest:    "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Annotations: map[string]string{
			types.SignatureCertificateAnnotation: string(generateCertificatePEM(t, spec)),
		},
	}
}

func fulcioSpec(issuer, identity string) testCertSpec {
	return testCertSpec{
		commonName: "sigstore-intermediate",
		notBefore:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		notAfter:   time.Date(2025, 3, 1, 0, 10, 0, 0, time.UTC),
		extensions: []pkix.Extension{
			{Id: testOIDIssuer, Value: []byte(issuer)},
			{Id: testOIDIdentity, Value: []byte(identity)},
		},
	}
}

func TestSignaturesFromLayers(t *testing.T) {
	issuer := "https://token.actions.githubusercontent.com"
	identityV1 := "https://github.com/org/repo/.github/workflows/release.yaml@refs/tags/v1.0.0"
	identityV2 := "https://github.com/org/repo/.github/workflows/release.yaml@refs/tags/v2.0.0"

	t.Run("extracts claims from annotated layers", func(t *testing.T) {
		layers := []types.Layer{
			certLayer(t, fulcioSpec(issuer, identityV2)),
			certLayer(t, fulcioSpec(issuer, identityV1)),
		}

		signatures, err := SignaturesFromLayers(layers)
		require.NoError(t, err)
		require.Len(t, signatures, 2)

		// Sorted by (issuer, identity).
		assert.Equal(t, types.Signature{Issuer: issuer, Identity: identityV1}, signatures[0])
		assert.Equal(t, types.Signature{Issuer: issuer, Identity: identityV2}, signatures[1])
	})

	t.Run("deduplicates identical claims across platforms", func(t *testing.T) {
		layers := []types.Layer{
			certLayer(t, fulcioSpec(issuer, identityV1)),
			certLayer(t, fulcioSpec(issuer, identityV1)),
			certLayer(t, fulcioSpec(issuer, identityV1)),
		}

		signatures, err := SignaturesFromLayers(layers)
		require.NoError(t, err)
		assert.Equal(t, []types.Signature{{Issuer: issuer, Identity: identityV1}}, signatures)
	})

	t.Run("layers without the annotation are skipped", func(t *testing.T) {
		layers := []types.Layer{
			{Digest: "sha256:aaa", Annotations: map[string]string{"other": "value"}},
			{Digest: "sha256:bbb"},
		}

		signatures, err := SignaturesFromLayers(layers)
		require.NoError(t, err)
		require.NotNil(t, signatures)
		assert.Empty(t, signatures)
	})

	t.Run("one malformed certificate fails the derivation", func(t *testing.T) {
		layers := []types.Layer{
			certLayer(t, fulcioSpec(issuer, identityV1)),
			{
				Digest: "sha256:broken",
				Annotations: map[string]string{
					types.SignatureCertificateAnnotation: "garbage",
				},
			},
		}

		_, err := SignaturesFromLayers(layers)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sha256:broken")
	})

	t.Run("falls back to the SAN extension for the identity", func(t *testing.T) {
		layers := []types.Layer{
			certLayer(t, testCertSpec{
				commonName: "sigstore-intermediate",
				notBefore:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
				notAfter:   time.Date(2025, 3, 1, 0, 10, 0, 0, time.UTC),
				sanURI:     identityV1,
				extensions: []pkix.Extension{
					{Id: testOIDIssuer, Value: []byte(issuer)},
				},
			}),
		}

		signatures, err := SignaturesFromLayers(layers)
		require.NoError(t, err)
		require.Len(t, signatures, 1)

		// The SAN value carries DER framing ahead of the URI; the claim is
		// trimmed back to the URL itself.
		assert.Equal(t, issuer, signatures[0].Issuer)
		assert.Equal(t, identityV1, signatures[0].Identity)
	})
}

func TestClaimFromCertificateTrimsIdentity(t *testing.T) {
	t.Run("leading junk before the URL is removed", func(t *testing.T) {
		cert := &Certificate{Extensions: map[string]string{
			oidIssuer:   "https://accounts.google.com",
			oidIdentity: "+*https://example.com/identity",
		}}
		claim := claimFromCertificate(cert)
		assert.Equal(t, "https://example.com/identity", claim.Identity)
	})

	t.Run("identity already starting with the URL is unchanged", func(t *testing.T) {
		cert := &Certificate{Extensions: map[string]string{
			oidIssuer:   "https://accounts.google.com",
			oidIdentity: "https://example.com/identity",
		}}
		claim := claimFromCertificate(cert)
		assert.Equal(t, "https://example.com/identity", claim.Identity)
	})

	t.Run("non-URL identity is kept verbatim", func(t *testing.T) {
		cert := &Certificate{Extensions: map[string]string{
			oidIssuer:   "https://accounts.google.com",
			oidIdentity: "builder@example.iam.gserviceaccount.com",
		}}
		claim := claimFromCertificate(cert)
		assert.Equal(t, "builder@example.iam.gserviceaccount.com", claim.Identity)
	})

	t.Run("identity extension wins over SAN", func(t *testing.T) {
		cert := &Certificate{Extensions: map[string]string{
			oidIssuer:         "https://accounts.google.com",
			oidIdentity:       "https://example.com/identity",
			oidSubjectAltName: "https://example.com/other",
		}}
		claim := claimFromCertificate(cert)
		assert.Equal(t, "https://example.com/identity", claim.Identity)
	})

	t.Run("missing claims yield empty strings", func(t *testing.T) {
		cert := &Certificate{Extensions: map[string]string{}}
		claim := claimFromCertificate(cert)
		assert.Equal(t, types.Signature{}, claim)
	})
}
