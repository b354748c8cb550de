package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Capture metrics
	captureFramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "facelens_capture_frames_total",
		Help: "Frames delivered by the capture source",
	}, []string{"source"})

	// Admission metrics
	framesAdmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "facelens_frames_admitted_total",
		Help: "Frames accepted for analysis",
	})

	framesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "facelens_frames_dropped_total",
		Help: "Frames dropped because an analysis was already in flight",
	})

	admissionBusy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "facelens_admission_busy",
		Help: "1 while a frame is being analyzed",
	})

	// Analysis metrics
	analysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "facelens_analysis_duration_seconds",
		Help:    "Time from admission to completion of a frame analysis",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	}, []string{"outcome"})

	decodeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "facelens_decode_duration_seconds",
		Help:    "Time spent converting native frames to RGBA",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 100µs to ~800ms
	})

	frameFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "facelens_frame_failures_total",
		Help: "Frames whose analysis was abandoned, by stage",
	}, []string{"stage"})

	faceFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "facelens_face_failures_total",
		Help: "Faces skipped during per-face processing, by reason",
	}, []string{"reason"})

	facesDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "facelens_faces_detected_total",
		Help: "Faces returned by the detector",
	})

	detectionSetsPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "facelens_detection_sets_published_total",
		Help: "Detection sets handed to the renderer",
	})

	facesLastSet = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "facelens_faces_last_set",
		Help: "Number of predictions in the most recently published detection set",
	})

	// Output metrics
	overlayRepaintsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "facelens_overlay_repaints_total",
		Help: "Repaint requests issued to the display surface",
	})

	cropsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "facelens_crops_total",
		Help: "Face crops handled by the crop store, by result",
	}, []string{"result"})

	sinkPublishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "facelens_sink_publish_total",
		Help: "Detection sets written to external sinks, by sink and result",
	}, []string{"sink", "result"})
)

// IncrementCaptureFrames counts a frame delivered by a capture source
func IncrementCaptureFrames(source string) {
	captureFramesTotal.WithLabelValues(source).Inc()
}

// RecordAdmitted records an accepted frame and marks the gate busy
func RecordAdmitted() {
	framesAdmittedTotal.Inc()
	admissionBusy.Set(1)
}

// RecordDropped records a frame dropped at the admission gate
func RecordDropped() {
	framesDroppedTotal.Inc()
}

// RecordReleased marks the admission gate idle
func RecordReleased() {
	admissionBusy.Set(0)
}

// ObserveAnalysis records the duration of one frame analysis
func ObserveAnalysis(outcome string, d time.Duration) {
	analysisDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveDecode records the duration of a native frame decode
func ObserveDecode(d time.Duration) {
	decodeDuration.Observe(d.Seconds())
}

// IncrementFrameFailure counts an abandoned frame
func IncrementFrameFailure(stage string) {
	frameFailuresTotal.WithLabelValues(stage).Inc()
}

// IncrementFaceFailure counts a skipped face
func IncrementFaceFailure(reason string) {
	faceFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordPublished records a published detection set
func RecordPublished(detected, predictions int) {
	facesDetectedTotal.Add(float64(detected))
	detectionSetsPublishedTotal.Inc()
	facesLastSet.Set(float64(predictions))
}

// IncrementRepaints counts a repaint request
func IncrementRepaints() {
	overlayRepaintsTotal.Inc()
}

// IncrementCrops counts a crop store outcome ("saved", "failed", "throttled")
func IncrementCrops(result string) {
	cropsTotal.WithLabelValues(result).Inc()
}

// IncrementSinkPublish counts a sink write outcome
func IncrementSinkPublish(sink, result string) {
	sinkPublishTotal.WithLabelValues(sink, result).Inc()
}
