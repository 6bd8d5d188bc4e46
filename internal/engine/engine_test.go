// ABOUTME: Tests for the aggregation engine: branch isolation, the manifest
// ABOUTME: to provenance dependency edge, and cache key layout.

package engine

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imageintel/imageintel/internal/cache"
	"github.com/imageintel/imageintel/internal/errdefs"
	"github.com/imageintel/imageintel/internal/types"
)

const testDigestHex = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// fakeManifestSource answers the image reference itself and its triangulated
// signature location separately, the way a real registry would.
type fakeManifestSource struct {
	manifest    *types.ManifestResult
	manifestErr error
	sigManifest *types.ManifestResult
	sigErr      error
}

func (f *fakeManifestSource) GetManifest(ctx context.Context, ref types.ImageReference) (*types.ManifestResult, error) {
	if strings.HasSuffix(ref.Tag, ".sig") {
		if f.sigErr != nil {
			return nil, f.sigErr
		}
		return f.sigManifest, nil
	}
	if f.manifestErr != nil {
		return nil, f.manifestErr
	}
	return f.manifest, nil
}

type fakeScanSource struct {
	output *types.TrivyOutput
	err    error
	opts   types.ScanOptions
}

func (f *fakeScanSource) Scan(ctx context.Context, ref types.ImageReference, opts types.ScanOptions) (*types.TrivyOutput, error) {
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.output, nil
}

type fakeVerifySource struct {
	outcome *types.VerificationOutcome
	err     error
	key     string
	calls   int
}

func (f *fakeVerifySource) Verify(ctx context.Context, key string, ref types.ImageReference) (*types.VerificationOutcome, error) {
	f.calls++
	f.key = key
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome, nil
}

// memoryBackend is a minimal in-memory cache.Backend for key layout checks.
type memoryBackend struct {
	data map[string]string
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{data: make(map[string]string)}
}

func (b *memoryBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := b.data[key]
	return ok, nil
}

func (b *memoryBackend) Get(ctx context.Context, key string) (string, error) {
	return b.data[key], nil
}

func (b *memoryBackend) Set(ctx context.Context, key, value string) error {
	b.data[key] = value
	return nil
}

func (b *memoryBackend) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testImage(t *testing.T) types.ImageReference {
	t.Helper()
	ref, err := types.ParseImageReference("ghcr.io/example/app:1.0.0")
	require.NoError(t, err)
	return ref
}

func healthyManifestSource() *fakeManifestSource {
	return &fakeManifestSource{
		manifest: &types.ManifestResult{
			Manifest: types.RegistryManifest{SchemaVersion: 2, MediaType: "application/vnd.oci.image.manifest.v1+json"},
			Digest:   types.ContentDigest("sha256:" + testDigestHex),
		},
		sigErr: errdefs.NotFound("manifest not found", nil),
	}
}

func healthyScanSource() *fakeScanSource {
	return &fakeScanSource{
		output: &types.TrivyOutput{
			ArtifactName: "ghcr.io/example/app:1.0.0",
			Results: []types.TrivyResult{{
				Vulnerabilities: []types.TrivyVulnerability{
					{ID: "CVE-2023-38545", PkgName: "curl", InstalledVersion: "8.3.0-r0", Severity: types.SeverityCritical},
					{ID: "CVE-2023-44487", PkgName: "nghttp2", InstalledVersion: "1.55.1-r0", Severity: types.SeverityHigh},
				},
			}},
		},
	}
}

func newTestEngine(manifests *fakeManifestSource, scanner *fakeScanSource, verifier *fakeVerifySource, backend cache.Backend) *Engine {
	logger := testLogger()
	c := cache.New(backend, "imageintel", time.Hour, logger)
	return NewEngine(manifests, scanner, verifier, c, logger)
}

func TestAggregateAllBranchesSucceed(t *testing.T) {
	engine := newTestEngine(healthyManifestSource(), healthyScanSource(), &fakeVerifySource{}, nil)

	report := engine.Aggregate(context.Background(), Request{Image: testImage(t)})

	require.True(t, report.Manifest.Ok())
	assert.Equal(t, types.ContentDigest("sha256:"+testDigestHex), report.Manifest.Value.Value.Digest)

	// No signature manifest exists: the image is unsigned, which is a
	// successful provenance result with zero claims.
	require.True(t, report.Cosign.Ok())
	assert.False(t, report.Cosign.Value.Value.Signed())
	assert.Equal(t, "ghcr.io/example/app:sha256-"+testDigestHex+".sig", report.Cosign.Value.Value.ManifestLocation)

	require.True(t, report.Scan.Ok())
	scan := report.Scan.Value.Value
	assert.Equal(t, 2, scan.SeverityCount.Total())
	assert.Equal(t, 1, scan.SeverityCount.Critical)
	assert.Equal(t, 1, scan.SeverityCount.High)
	require.Len(t, scan.Findings, 2)
	assert.Equal(t, "CVE-2023-38545", scan.Findings[0].ID)

	// No key supplied: verification was skipped, not attempted.
	assert.Nil(t, report.Verify)
}

func TestAggregateManifestFailureGatesProvenance(t *testing.T) {
	manifests := &fakeManifestSource{
		manifestErr: errdefs.SourceFailure("registry unreachable", errors.New("dial tcp")),
	}
	engine := newTestEngine(manifests, healthyScanSource(), &fakeVerifySource{}, nil)

	report := engine.Aggregate(context.Background(), Request{Image: testImage(t)})

	require.False(t, report.Manifest.Ok())
	assert.True(t, errdefs.IsSourceFailure(report.Manifest.Err))

	// Provenance cannot triangulate without a digest; its error names the
	// manifest as the cause.
	require.False(t, report.Cosign.Ok())
	assert.Contains(t, report.Cosign.Err.Error(), "docker manifest unavailable")

	// The scan branch is independent and still populated.
	require.True(t, report.Scan.Ok())
	assert.Equal(t, 2, report.Scan.Value.Value.SeverityCount.Total())
}

func TestAggregateScanFailureIsIsolated(t *testing.T) {
	scanner := &fakeScanSource{err: errdefs.SourceFailure("trivy exited non-zero", nil)}
	engine := newTestEngine(healthyManifestSource(), scanner, &fakeVerifySource{}, nil)

	report := engine.Aggregate(context.Background(), Request{Image: testImage(t)})

	assert.True(t, report.Manifest.Ok())
	assert.True(t, report.Cosign.Ok())
	require.False(t, report.Scan.Ok())
	assert.True(t, errdefs.IsSourceFailure(report.Scan.Err))
}

func TestAggregateVerification(t *testing.T) {
	t.Run("runs only when a key is supplied", func(t *testing.T) {
		verifier := &fakeVerifySource{outcome: &types.VerificationOutcome{Message: "Verified OK"}}
		engine := newTestEngine(healthyManifestSource(), healthyScanSource(), verifier, nil)

		report := engine.Aggregate(context.Background(), Request{
			Image:     testImage(t),
			CosignKey: "/keys/release.pub",
		})

		require.NotNil(t, report.Verify)
		require.True(t, report.Verify.Ok())
		assert.Equal(t, "Verified OK", report.Verify.Value.Message)
		assert.Equal(t, "/keys/release.pub", verifier.key)
		assert.Equal(t, 1, verifier.calls)
	})

	t.Run("failure is reported on the verify branch only", func(t *testing.T) {
		verifier := &fakeVerifySource{err: errdefs.SourceFailure("signature mismatch", nil)}
		engine := newTestEngine(healthyManifestSource(), healthyScanSource(), verifier, nil)

		report := engine.Aggregate(context.Background(), Request{
			Image:     testImage(t),
			CosignKey: "/keys/release.pub",
		})

		require.NotNil(t, report.Verify)
		assert.False(t, report.Verify.Ok())
		assert.True(t, report.Manifest.Ok())
		assert.True(t, report.Scan.Ok())
	})
}

func TestAggregateCacheKeyLayout(t *testing.T) {
	backend := newMemoryBackend()
	engine := newTestEngine(healthyManifestSource(), healthyScanSource(), &fakeVerifySource{}, backend)

	engine.Aggregate(context.Background(), Request{Image: testImage(t)})

	image := "ghcr.io/example/app:1.0.0"
	assert.Contains(t, backend.data, "imageintel:docker_manifest:"+image)
	assert.Contains(t, backend.data, "imageintel:cosign:"+image)
	assert.Contains(t, backend.data, "imageintel:trivy:"+image)
	assert.Len(t, backend.data, 3)
}

func TestAggregateSecondCallServedFromCache(t *testing.T) {
	backend := newMemoryBackend()
	manifests := healthyManifestSource()
	scanner := healthyScanSource()
	engine := newTestEngine(manifests, scanner, &fakeVerifySource{}, backend)

	first := engine.Aggregate(context.Background(), Request{Image: testImage(t)})
	require.True(t, first.Manifest.Ok())

	// Break every source. Cached branches must still resolve.
	manifests.manifestErr = errors.New("registry gone")
	scanner.err = errors.New("trivy gone")

	second := engine.Aggregate(context.Background(), Request{Image: testImage(t)})
	require.True(t, second.Manifest.Ok())
	require.True(t, second.Cosign.Ok())
	require.True(t, second.Scan.Ok())
	assert.True(t, first.Manifest.Value.FetchTime.Equal(second.Manifest.Value.FetchTime))
}

func TestAggregatePassesScanOptions(t *testing.T) {
	scanner := healthyScanSource()
	engine := newTestEngine(healthyManifestSource(), scanner, &fakeVerifySource{}, nil)

	engine.Aggregate(context.Background(), Request{
		Image:       testImage(t),
		TrivyServer: "http://trivy.internal:4954",
		TrivyUser:   "scanner",
		TrivyPass:   "secret",
	})

	assert.Equal(t, types.ScanOptions{
		Server:   "http://trivy.internal:4954",
		Username: "scanner",
		Password: "secret",
	}, scanner.opts)
}

func TestEngineTTL(t *testing.T) {
	engine := newTestEngine(healthyManifestSource(), healthyScanSource(), &fakeVerifySource{}, nil)
	assert.Equal(t, time.Hour, engine.TTL())
}
