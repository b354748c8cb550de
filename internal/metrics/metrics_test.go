package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmissionMetrics(t *testing.T) {
	admitted := testutil.ToFloat64(framesAdmittedTotal)
	dropped := testutil.ToFloat64(framesDroppedTotal)

	RecordAdmitted()
	assert.Equal(t, admitted+1, testutil.ToFloat64(framesAdmittedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(admissionBusy))

	RecordDropped()
	RecordDropped()
	assert.Equal(t, dropped+2, testutil.ToFloat64(framesDroppedTotal))

	RecordReleased()
	assert.Equal(t, 0.0, testutil.ToFloat64(admissionBusy))
}

func TestRecordPublished(t *testing.T) {
	detected := testutil.ToFloat64(facesDetectedTotal)
	published := testutil.ToFloat64(detectionSetsPublishedTotal)

	RecordPublished(3, 2)

	assert.Equal(t, detected+3, testutil.ToFloat64(facesDetectedTotal))
	assert.Equal(t, published+1, testutil.ToFloat64(detectionSetsPublishedTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(facesLastSet))
}

func TestFailureCounters(t *testing.T) {
	initialFrame := testutil.ToFloat64(frameFailuresTotal.WithLabelValues("detector"))
	initialFace := testutil.ToFloat64(faceFailuresTotal.WithLabelValues("out_of_bounds"))

	IncrementFrameFailure("detector")
	IncrementFaceFailure("out_of_bounds")
	IncrementFaceFailure("out_of_bounds")

	assert.Equal(t, initialFrame+1, testutil.ToFloat64(frameFailuresTotal.WithLabelValues("detector")))
	assert.Equal(t, initialFace+2, testutil.ToFloat64(faceFailuresTotal.WithLabelValues("out_of_bounds")))
}

func TestObserveAnalysis(t *testing.T) {
	durations := []time.Duration{5 * time.Millisecond, 40 * time.Millisecond, 300 * time.Millisecond}
	for _, d := range durations {
		ObserveAnalysis("published", d)
	}

	histogram := analysisDuration.WithLabelValues("published").(prometheus.Histogram)

	var m dto.Metric
	require.NoError(t, histogram.Write(&m))
	assert.GreaterOrEqual(t, m.Histogram.GetSampleCount(), uint64(len(durations)))
}

func TestOutputCounters(t *testing.T) {
	repaints := testutil.ToFloat64(overlayRepaintsTotal)
	saved := testutil.ToFloat64(cropsTotal.WithLabelValues("saved"))
	sinkOK := testutil.ToFloat64(sinkPublishTotal.WithLabelValues("redis", "ok"))
	captured := testutil.ToFloat64(captureFramesTotal.WithLabelValues("synthetic"))

	IncrementRepaints()
	IncrementCrops("saved")
	IncrementSinkPublish("redis", "ok")
	IncrementCaptureFrames("synthetic")
	ObserveDecode(2 * time.Millisecond)

	assert.Equal(t, repaints+1, testutil.ToFloat64(overlayRepaintsTotal))
	assert.Equal(t, saved+1, testutil.ToFloat64(cropsTotal.WithLabelValues("saved")))
	assert.Equal(t, sinkOK+1, testutil.ToFloat64(sinkPublishTotal.WithLabelValues("redis", "ok")))
	assert.Equal(t, captured+1, testutil.ToFloat64(captureFramesTotal.WithLabelValues("synthetic")))
}
