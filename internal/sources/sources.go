// ABOUTME: Capability interfaces for the external systems the aggregator
// ABOUTME: consults: registry manifests, vulnerability scans, verification.

package sources

import (
	"context"

	"github.com/imageintel/imageintel/internal/types"
)

// ManifestSource fetches registry manifests. Implementations report an
// absent manifest as an errdefs NotFound so callers can distinguish
// "unsigned"/"no such image" from a fault.
type ManifestSource interface {
	GetManifest(ctx context.Context, ref types.ImageReference) (*types.ManifestResult, error)
}

// ScanSource produces a vulnerability scan for an image.
type ScanSource interface {
	Scan(ctx context.Context, ref types.ImageReference, opts types.ScanOptions) (*types.TrivyOutput, error)
}

// VerifySource checks an image's signature against a caller-supplied key.
type VerifySource interface {
	Verify(ctx context.Context, key string, ref types.ImageReference) (*types.VerificationOutcome, error)
}
