// ABOUTME: Fetches and derives the cosign signature provenance of an image
// ABOUTME: from its triangulated detached signature manifest.

package cosign

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/imageintel/imageintel/internal/errdefs"
	"github.com/imageintel/imageintel/internal/types"
)

// ManifestSource is the registry capability the provenance fetcher consumes.
type ManifestSource interface {
	GetManifest(ctx context.Context, ref types.ImageReference) (*types.ManifestResult, error)
}

// ProvenanceFetcher composes triangulation, the manifest source, and
// signature derivation into one source of cosign information for an image.
type ProvenanceFetcher struct {
	source ManifestSource
	logger *logrus.Logger
}

// NewProvenanceFetcher creates a provenance fetcher over the given manifest
// source.
func NewProvenanceFetcher(source ManifestSource, logger *logrus.Logger) *ProvenanceFetcher {
	return &ProvenanceFetcher{
		source: source,
		logger: logger,
	}
}

// Fetch resolves the signature provenance of ref, whose manifest resolved to
// dgst. Three outcomes are distinguished: an absent signature manifest is a
// successful result with zero signatures (unsigned is not an error), a
// manifest that fails to parse or derive is an error, and any other source
// failure is an error.
func (f *ProvenanceFetcher) Fetch(ctx context.Context, ref types.ImageReference, dgst types.ContentDigest) (*types.CosignInformation, error) {
	sigRef, err := Triangulate(ref, dgst)
	if err != nil {
		return nil, fmt.Errorf("triangulating signature location: %w", err)
	}

	result, err := f.source.GetManifest(ctx, sigRef)
	if errdefs.IsNotFound(err) {
		f.logger.WithFields(logrus.Fields{
			"image":              ref.String(),
			"signature_manifest": sigRef.String(),
		}).Debug("No signature manifest found, image is unsigned")

		return &types.CosignInformation{
			ManifestLocation: sigRef.String(),
			Signatures:       []types.Signature{},
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching signature manifest %s: %w", sigRef.String(), err)
	}

	signatures, err := SignaturesFromLayers(result.Manifest.Layers)
	if err != nil {
		return nil, fmt.Errorf("deriving signatures from %s: %w", sigRef.String(), err)
	}

	return &types.CosignInformation{
		ManifestLocation: sigRef.String(),
		Signatures:       signatures,
	}, nil
}
