// ABOUTME: Aggregation orchestrator that fetches everything known about
// ABOUTME: one image concurrently, with per-branch failure isolation.

package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/imageintel/imageintel/internal/cache"
	"github.com/imageintel/imageintel/internal/cosign"
	"github.com/imageintel/imageintel/internal/metrics"
	"github.com/imageintel/imageintel/internal/sources"
	"github.com/imageintel/imageintel/internal/types"
)

// Request names one image to aggregate plus the optional verification key
// and scanner parameters.
type Request struct {
	Image       types.ImageReference
	CosignKey   string
	TrivyServer string
	TrivyUser   string
	TrivyPass   string
}

// Outcome is one branch's result: a value or a typed error, never both.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Ok reports whether the branch succeeded.
func (o Outcome[T]) Ok() bool {
	return o.Err == nil
}

// Report is the aggregate of the four independent branch outcomes. There is
// no transaction semantics across them; partial success is the expected
// steady state.
type Report struct {
	Image types.ImageReference

	Manifest Outcome[types.CachedEntry[types.ManifestResult]]
	Cosign   Outcome[types.CachedEntry[types.CosignInformation]]
	Scan     Outcome[types.CachedEntry[types.ScanReport]]

	// Verify is nil when no key was supplied: verification was skipped,
	// not attempted-and-failed.
	Verify *Outcome[types.VerificationOutcome]
}

// Engine aggregates image information from its sources through the cache.
type Engine struct {
	manifests  sources.ManifestSource
	scanner    sources.ScanSource
	verifier   sources.VerifySource
	provenance *cosign.ProvenanceFetcher
	cache      *cache.Cache
	logger     *logrus.Logger
}

// NewEngine creates an aggregation engine over the given sources and cache.
func NewEngine(manifests sources.ManifestSource, scanner sources.ScanSource, verifier sources.VerifySource, c *cache.Cache, logger *logrus.Logger) *Engine {
	return &Engine{
		manifests:  manifests,
		scanner:    scanner,
		verifier:   verifier,
		provenance: cosign.NewProvenanceFetcher(manifests, logger),
		cache:      c,
		logger:     logger,
	}
}

// TTL exposes the cache TTL for result rendering.
func (e *Engine) TTL() time.Duration {
	return e.cache.TTL()
}

// Aggregate runs the four branches concurrently and returns once every one
// of them has resolved. The provenance branch depends on the manifest
// branch's digest and runs after it in the same goroutine; if the manifest
// fetch failed, provenance fails immediately with that cause rather than
// triangulating without a digest. Cancellation of ctx is observed by every
// branch at its next I/O boundary.
func (e *Engine) Aggregate(ctx context.Context, req Request) *Report {
	start := time.Now()
	report := &Report{Image: req.Image}

	log := e.logger.WithField("image", req.Image.String())
	log.Info("Aggregating image information")

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.fetchManifestAndProvenance(ctx, req.Image, report)
	}()

	if req.CosignKey != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome := e.fetchVerification(ctx, req)
			report.Verify = &outcome
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		report.Scan = e.fetchScan(ctx, req)
	}()

	wg.Wait()

	for branch, err := range map[string]error{
		"docker_manifest": report.Manifest.Err,
		"cosign":          report.Cosign.Err,
		"trivy":           report.Scan.Err,
	} {
		if err != nil {
			metrics.FetchErrors.WithLabelValues(branch).Inc()
			log.WithError(err).WithField("branch", branch).Error("Fetch branch failed")
		}
	}
	if report.Verify != nil && report.Verify.Err != nil {
		metrics.FetchErrors.WithLabelValues("cosign_verify").Inc()
		log.WithError(report.Verify.Err).WithField("branch", "cosign_verify").Error("Fetch branch failed")
	}

	metrics.AggregateDuration.Observe(time.Since(start).Seconds())
	return report
}

// fetchManifestAndProvenance is the manifest branch with the dependent
// provenance fetch behind it: an explicit dependency edge, not a lock.
func (e *Engine) fetchManifestAndProvenance(ctx context.Context, image types.ImageReference, report *Report) {
	manifestEntry, err := cache.FetchThrough(ctx, e.cache, &manifestFetcher{source: e.manifests, image: image})
	report.Manifest = Outcome[types.CachedEntry[types.ManifestResult]]{Value: manifestEntry, Err: err}

	if err != nil {
		report.Cosign = Outcome[types.CachedEntry[types.CosignInformation]]{
			Err: fmt.Errorf("docker manifest unavailable: %w", err),
		}
		return
	}

	cosignEntry, err := cache.FetchThrough(ctx, e.cache, &provenanceFetcher{
		fetcher: e.provenance,
		image:   image,
		digest:  manifestEntry.Value.Digest,
	})
	report.Cosign = Outcome[types.CachedEntry[types.CosignInformation]]{Value: cosignEntry, Err: err}
}

// fetchVerification is uncached: verification is a point-in-time, key-
// specific operation.
func (e *Engine) fetchVerification(ctx context.Context, req Request) Outcome[types.VerificationOutcome] {
	result, err := e.verifier.Verify(ctx, req.CosignKey, req.Image)
	if err != nil {
		return Outcome[types.VerificationOutcome]{Err: err}
	}
	return Outcome[types.VerificationOutcome]{Value: *result}
}

func (e *Engine) fetchScan(ctx context.Context, req Request) Outcome[types.CachedEntry[types.ScanReport]] {
	entry, err := cache.FetchThrough(ctx, e.cache, &scanFetcher{
		scanner: e.scanner,
		image:   req.Image,
		opts: types.ScanOptions{
			Server:   req.TrivyServer,
			Username: req.TrivyUser,
			Password: req.TrivyPass,
		},
	})
	return Outcome[types.CachedEntry[types.ScanReport]]{Value: entry, Err: err}
}
