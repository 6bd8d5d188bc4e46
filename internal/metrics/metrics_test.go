// ABOUTME: Tests for metric registration and the exposition handler.
// ABOUTME: Uses the client_golang testutil helpers against the registry.

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(CacheHits.WithLabelValues("docker_manifest"))
	CacheHits.WithLabelValues("docker_manifest").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(CacheHits.WithLabelValues("docker_manifest")))

	before = testutil.ToFloat64(CacheMisses.WithLabelValues("trivy"))
	CacheMisses.WithLabelValues("trivy").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(CacheMisses.WithLabelValues("trivy")))

	before = testutil.ToFloat64(FetchErrors.WithLabelValues("cosign"))
	FetchErrors.WithLabelValues("cosign").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(FetchErrors.WithLabelValues("cosign")))
}

func TestHandlerServesExposition(t *testing.T) {
	// Touch every collector so each appears in the scrape output.
	CacheHits.WithLabelValues("docker_manifest").Inc()
	CacheMisses.WithLabelValues("docker_manifest").Inc()
	FetchErrors.WithLabelValues("trivy").Inc()
	AggregateDuration.Observe(0.42)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	resp := rec.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	output := string(body)
	for _, metric := range []string{
		"imageintel_cache_hits_total",
		"imageintel_cache_misses_total",
		"imageintel_fetch_errors_total",
		"imageintel_aggregate_duration_seconds",
	} {
		assert.True(t, strings.Contains(output, metric), "missing metric %s", metric)
	}
}
