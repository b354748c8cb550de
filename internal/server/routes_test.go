package server

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/facelens/internal/admission"
	"github.com/zsiec/facelens/internal/config"
	"github.com/zsiec/facelens/internal/detection"
	"github.com/zsiec/facelens/internal/errors"
	"github.com/zsiec/facelens/internal/geometry"
	"github.com/zsiec/facelens/pkg/version"
)

func testSet() *detection.DetectionSet {
	captured := time.Now().Add(-40 * time.Millisecond)
	return &detection.DetectionSet{
		ID:          uuid.New(),
		FrameSeq:    7,
		CapturedAt:  captured,
		CompletedAt: captured.Add(40 * time.Millisecond),
		Predictions: []detection.Prediction{
			{Box: geometry.BoundingBox{Left: 0, Top: 0, Right: 240, Bottom: 320}, Label: "Unknown", Confidence: 8.5},
		},
	}
}

func TestHandleVersion(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, "GET", "/version")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var info version.Info
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &info))
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestHandleDetections_NoneYet(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, "GET", "/api/v1/detections")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	var resp errors.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, errors.ErrorTypeNoDetections, resp.Error.Type)
	assert.NotEmpty(t, resp.TraceID)
}

func TestHandleDetections(t *testing.T) {
	ts := newTestServer(t, nil)
	set := testSet()
	ts.pipeline.publish(set)
	ts.renderer.Publish(set)

	rr := ts.do(t, "GET", "/api/v1/detections")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		ID          string  `json:"id"`
		FrameSeq    uint64  `json:"frame_seq"`
		LatencyMS   float64 `json:"latency_ms"`
		Predictions []detection.Prediction
		Placements  []struct {
			Rect  geometry.DisplayRect `json:"rect"`
			Label string               `json:"label"`
		} `json:"placements"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	assert.Equal(t, set.ID.String(), resp.ID)
	assert.Equal(t, uint64(7), resp.FrameSeq)
	assert.InDelta(t, 40, resp.LatencyMS, 0.001)
	require.Len(t, resp.Predictions, 1)
	assert.Equal(t, set.Predictions[0].Box, resp.Predictions[0].Box)

	// 240x320 display over 480x640 analysis halves every edge.
	require.Len(t, resp.Placements, 1)
	assert.Equal(t, geometry.DisplayRect{Left: 0, Top: 0, Right: 120, Bottom: 160}, resp.Placements[0].Rect)
	assert.Equal(t, "Unknown", resp.Placements[0].Label)
}

func TestHandleDetections_StaleRendererOmitsPlacements(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.renderer.Publish(testSet())
	ts.pipeline.publish(testSet())

	rr := ts.do(t, "GET", "/api/v1/detections")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotContains(t, resp, "placements")
}

func TestHandleStats(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.pipeline.stats = detection.Stats{
		Admission: admission.Stats{State: "idle", Admitted: 3, Dropped: 12, Completed: 3},
		Analyzed:  3,
		Published: 2,
	}
	ts.renderer.Publish(testSet())
	ts.AddStats("sink", func() interface{} { return map[string]int{"written": 2} })

	rr := ts.do(t, "GET", "/api/v1/stats")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp StatsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, uint64(3), resp.Pipeline.Admission.Admitted)
	assert.Equal(t, uint64(12), resp.Pipeline.Admission.Dropped)
	assert.Equal(t, uint64(2), resp.Pipeline.Published)
	require.NotNil(t, resp.Overlay)
	assert.Equal(t, uint64(1), resp.Overlay.Publishes)
	assert.Equal(t, uint64(1), resp.Overlay.RepaintRequests)
	assert.Contains(t, resp.Components, "sink")
}

func TestHandleTransform(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, "GET", "/api/v1/transform")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp TransformResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.InDelta(t, 0.5, resp.ScaleX, 1e-9)
	assert.InDelta(t, 0.5, resp.ScaleY, 1e-9)
	assert.Equal(t, geometry.Size{Width: 240, Height: 320}, resp.Display)
	assert.Empty(t, resp.Placements)
}

func TestHandleOverlay(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.renderer.Publish(testSet())

	rr := ts.do(t, "GET", "/api/v1/overlay.png")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))

	img, err := png.Decode(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 240, img.Bounds().Dx())
	assert.Equal(t, 320, img.Bounds().Dy())

	// The box covers the top-left quadrant; its centre is painted.
	_, _, _, a := img.At(60, 80).RGBA()
	assert.NotZero(t, a)
	_, _, _, a = img.At(200, 300).RGBA()
	assert.Zero(t, a)

	assert.Equal(t, uint64(1), ts.surface.Paints())
}

func TestOverlayRoutes_WithoutRenderer(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	s := New(&config.ServerConfig{}, logger, &fakePipeline{}, nil, nil)

	for _, path := range []string{"/api/v1/transform", "/api/v1/overlay.png"} {
		rr := httptest.NewRecorder()
		s.Handler().ServeHTTP(rr, httptest.NewRequest("GET", path, nil))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code, path)
	}
}
