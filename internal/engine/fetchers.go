// ABOUTME: Cache source adapters binding each capability to its cache key.
// ABOUTME: Keys take the form <source>:<canonical-image-reference>.

package engine

import (
	"context"

	"github.com/imageintel/imageintel/internal/cosign"
	"github.com/imageintel/imageintel/internal/sources"
	"github.com/imageintel/imageintel/internal/types"
)

type manifestFetcher struct {
	source sources.ManifestSource
	image  types.ImageReference
}

func (f *manifestFetcher) Key() string {
	return "docker_manifest:" + f.image.String()
}

func (f *manifestFetcher) Fetch(ctx context.Context) (types.ManifestResult, error) {
	result, err := f.source.GetManifest(ctx, f.image)
	if err != nil {
		return types.ManifestResult{}, err
	}
	return *result, nil
}

type provenanceFetcher struct {
	fetcher *cosign.ProvenanceFetcher
	image   types.ImageReference
	digest  types.ContentDigest
}

func (f *provenanceFetcher) Key() string {
	return "cosign:" + f.image.String()
}

func (f *provenanceFetcher) Fetch(ctx context.Context) (types.CosignInformation, error) {
	info, err := f.fetcher.Fetch(ctx, f.image, f.digest)
	if err != nil {
		return types.CosignInformation{}, err
	}
	return *info, nil
}

type scanFetcher struct {
	scanner sources.ScanSource
	image   types.ImageReference
	opts    types.ScanOptions
}

func (f *scanFetcher) Key() string {
	return "trivy:" + f.image.String()
}

func (f *scanFetcher) Fetch(ctx context.Context) (types.ScanReport, error) {
	output, err := f.scanner.Scan(ctx, f.image, f.opts)
	if err != nil {
		return types.ScanReport{}, err
	}

	findings := output.Findings()
	return types.ScanReport{
		ArtifactName:  output.ArtifactName,
		Findings:      findings,
		SeverityCount: types.CountSeverities(findings),
	}, nil
}
