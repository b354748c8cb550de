package server

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"sort"

	"github.com/zsiec/facelens/internal/detection"
	"github.com/zsiec/facelens/internal/errors"
	"github.com/zsiec/facelens/internal/geometry"
	"github.com/zsiec/facelens/internal/overlay"
	"github.com/zsiec/facelens/pkg/version"
)

// DetectionsResponse is the latest DetectionSet plus its display placement.
type DetectionsResponse struct {
	*detection.DetectionSet
	LatencyMS  float64             `json:"latency_ms"`
	Placements []overlay.Placement `json:"placements,omitempty"`
}

// StatsResponse is served by /api/v1/stats.
type StatsResponse struct {
	Pipeline   detection.Stats        `json:"pipeline"`
	Overlay    *OverlayStats          `json:"overlay,omitempty"`
	Components map[string]interface{} `json:"components,omitempty"`
}

// OverlayStats reports renderer and surface activity.
type OverlayStats struct {
	Publishes       uint64 `json:"publishes"`
	RepaintRequests uint64 `json:"repaint_requests"`
	Paints          uint64 `json:"paints"`
}

// TransformResponse is served by /api/v1/transform.
type TransformResponse struct {
	geometry.Transform
	Placements []overlay.Placement `json:"placements"`
}

// handleVersion handles the /version endpoint
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if err := s.writeJSON(w, http.StatusOK, version.GetInfo()); err != nil {
		s.logger.WithError(err).Error("Failed to encode version response")
	}
}

// handleDetections reports the most recent DetectionSet. Before the first
// publish it answers 404 NO_DETECTIONS.
func (s *Server) handleDetections(w http.ResponseWriter, r *http.Request) {
	set := s.pipeline.Latest()
	if set == nil {
		s.writeError(w, r, errors.NewNoDetectionsError())
		return
	}

	resp := DetectionsResponse{
		DetectionSet: set,
		LatencyMS:    float64(set.Latency().Microseconds()) / 1000,
	}
	if s.renderer != nil && s.renderer.Current() == set {
		resp.Placements = s.renderer.Placements()
	}

	w.Header().Set("Cache-Control", "no-cache")
	if err := s.writeJSON(w, http.StatusOK, resp); err != nil {
		s.logger.WithError(err).Error("Failed to encode detections response")
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{Pipeline: s.pipeline.Stats()}

	if s.renderer != nil {
		resp.Overlay = &OverlayStats{Publishes: s.renderer.Publishes()}
		if s.surface != nil {
			resp.Overlay.RepaintRequests = s.surface.Requests()
			resp.Overlay.Paints = s.surface.Paints()
		}
	}

	s.statsMu.RLock()
	names := make([]string, 0, len(s.stats))
	for name := range s.stats {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > 0 {
		resp.Components = make(map[string]interface{}, len(names))
		for _, name := range names {
			resp.Components[name] = s.stats[name]()
		}
	}
	s.statsMu.RUnlock()

	w.Header().Set("Cache-Control", "no-cache")
	if err := s.writeJSON(w, http.StatusOK, resp); err != nil {
		s.logger.WithError(err).Error("Failed to encode stats response")
	}
}

func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	if s.renderer == nil {
		s.writeError(w, r, errors.NewServiceDownError("overlay"))
		return
	}

	resp := TransformResponse{
		Transform:  s.renderer.Transform(),
		Placements: s.renderer.Placements(),
	}
	if resp.Placements == nil {
		resp.Placements = []overlay.Placement{}
	}
	if err := s.writeJSON(w, http.StatusOK, resp); err != nil {
		s.logger.WithError(err).Error("Failed to encode transform response")
	}
}

// handleOverlay serves the last raster painted by the headless surface,
// painting one on demand when none exists yet.
func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	if s.renderer == nil || s.surface == nil {
		s.writeError(w, r, errors.NewServiceDownError("overlay"))
		return
	}

	img := s.surface.Latest()
	if img == nil {
		img = s.surface.Paint(s.renderer)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		s.writeError(w, r, errors.WrapInternalError(err, "Failed to encode overlay"))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// writeJSON is a helper to write JSON responses
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// writeError is a helper to write error responses
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.errorHandler.HandleError(w, r, err)
}
