// ABOUTME: Unit tests for signature claim ordering and the cosign
// ABOUTME: provenance result type.

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortSignatures(t *testing.T) {
	t.Run("orders by issuer then identity", func(t *testing.T) {
		signatures := []Signature{
			{Issuer: "https://token.actions.githubusercontent.com", Identity: "https://github.com/org/repo/.github/workflows/release.yaml@refs/tags/v2.0.0"},
			{Issuer: "https://accounts.google.com", Identity: "builder@example.iam.gserviceaccount.com"},
			{Issuer: "https://token.actions.githubusercontent.com", Identity: "https://github.com/org/repo/.github/workflows/release.yaml@refs/tags/v1.0.0"},
		}

		sorted := SortSignatures(signatures)
		require.Len(t, sorted, 3)
		assert.Equal(t, "https://accounts.google.com", sorted[0].Issuer)
		assert.Contains(t, sorted[1].Identity, "v1.0.0")
		assert.Contains(t, sorted[2].Identity, "v2.0.0")
	})

	t.Run("deduplicates identical claims", func(t *testing.T) {
		sig := Signature{Issuer: "https://accounts.google.com", Identity: "builder@example.com"}
		sorted := SortSignatures([]Signature{sig, sig})
		assert.Len(t, sorted, 1)
	})

	t.Run("nil input yields empty slice", func(t *testing.T) {
		sorted := SortSignatures(nil)
		require.NotNil(t, sorted)
		assert.Empty(t, sorted)
	})
}

func TestCosignInformationSigned(t *testing.T) {
	unsigned := CosignInformation{
		ManifestLocation: "ghcr.io/example/app:sha256-abc.sig",
		Signatures:       []Signature{},
	}
	assert.False(t, unsigned.Signed())

	signed := CosignInformation{
		ManifestLocation: "ghcr.io/example/app:sha256-abc.sig",
		Signatures: []Signature{
			{Issuer: "https://accounts.google.com", Identity: "builder@example.com"},
		},
	}
	assert.True(t, signed.Signed())
}
