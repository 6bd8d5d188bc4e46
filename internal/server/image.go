// ABOUTME: HTTP handler for the image information endpoint: one request in,
// ABOUTME: four independently rendered outcomes out.

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/imageintel/imageintel/internal/engine"
	"github.com/imageintel/imageintel/internal/errdefs"
	"github.com/imageintel/imageintel/internal/types"
)

// Aggregator is what the handler needs from the engine.
type Aggregator interface {
	Aggregate(ctx context.Context, req engine.Request) *engine.Report
	TTL() time.Duration
}

// ImageHandler serves aggregated image information as JSON.
type ImageHandler struct {
	engine Aggregator
	logger *logrus.Logger
}

// NewImageHandler creates a handler over the given aggregator.
func NewImageHandler(engine Aggregator, logger *logrus.Logger) *ImageHandler {
	return &ImageHandler{
		engine: engine,
		logger: logger,
	}
}

// ImageResponse is the wire shape of one aggregation. Every branch renders
// independently so partial information stays visible when a sibling branch
// failed.
type ImageResponse struct {
	Image        string      `json:"image"`
	Manifest     *BranchJSON `json:"manifest"`
	Cosign       *BranchJSON `json:"cosign"`
	CosignVerify *BranchJSON `json:"cosign_verify,omitempty"`
	Scan         *BranchJSON `json:"vulnerabilities"`
}

// BranchJSON renders one branch outcome: either data with cache timing, or
// an error with its classification.
type BranchJSON struct {
	Data      any        `json:"data,omitempty"`
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Error     string     `json:"error,omitempty"`
	ErrorKind string     `json:"error_kind,omitempty"`
}

func (h *ImageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.WithField("endpoint", "/image")

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Malformed request", http.StatusBadRequest)
		return
	}

	rawImage := strings.TrimSpace(r.Form.Get("image"))
	if rawImage == "" {
		http.Error(w, "Missing image parameter", http.StatusBadRequest)
		return
	}

	image, err := types.ParseImageReference(rawImage)
	if err != nil {
		logger.WithError(err).WithField("image", rawImage).Debug("Rejected image reference")
		http.Error(w, "Invalid image reference", http.StatusBadRequest)
		return
	}

	report := h.engine.Aggregate(r.Context(), engine.Request{
		Image:       image,
		CosignKey:   strings.TrimSpace(r.Form.Get("cosign_key")),
		TrivyServer: strings.TrimSpace(r.Form.Get("trivy_server")),
		TrivyUser:   r.Form.Get("username"),
		TrivyPass:   r.Form.Get("password"),
	})

	response := h.renderReport(report)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.WithError(err).Error("Failed to encode JSON response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	logger.WithFields(logrus.Fields{
		"image":       image.String(),
		"manifest_ok": report.Manifest.Ok(),
		"cosign_ok":   report.Cosign.Ok(),
		"scan_ok":     report.Scan.Ok(),
		"verify_ran":  report.Verify != nil,
	}).Info("Served image information")
}

func (h *ImageHandler) renderReport(report *engine.Report) ImageResponse {
	ttl := h.engine.TTL()

	response := ImageResponse{
		Image:    report.Image.String(),
		Manifest: renderEntry(report.Manifest, ttl),
		Cosign:   renderEntry(report.Cosign, ttl),
		Scan:     renderEntry(report.Scan, ttl),
	}

	if report.Verify != nil {
		if report.Verify.Err != nil {
			response.CosignVerify = renderError(report.Verify.Err)
		} else {
			response.CosignVerify = &BranchJSON{Data: report.Verify.Value}
		}
	}

	return response
}

// renderEntry renders a cached-entry outcome with its fetch and expiry
// timestamps.
func renderEntry[T any](outcome engine.Outcome[types.CachedEntry[T]], ttl time.Duration) *BranchJSON {
	if outcome.Err != nil {
		return renderError(outcome.Err)
	}

	fetched := outcome.Value.FetchTime
	expires := outcome.Value.ExpiresAt(ttl)
	return &BranchJSON{
		Data:      outcome.Value.Value,
		FetchedAt: &fetched,
		ExpiresAt: &expires,
	}
}

func renderError(err error) *BranchJSON {
	branch := &BranchJSON{Error: err.Error()}
	if kind, ok := errdefs.KindOf(err); ok {
		branch.ErrorKind = kind.String()
	}
	return branch
}

// CreateImageHandler creates a standard HTTP handler.
func CreateImageHandler(engine Aggregator, logger *logrus.Logger) http.HandlerFunc {
	handler := NewImageHandler(engine, logger)
	return handler.ServeHTTP
}
