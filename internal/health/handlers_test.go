package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/facelens/pkg/version"
)

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name     string
		checkers []Checker
		wantCode int
		want     Status
	}{
		{
			name:     "healthy",
			checkers: []Checker{&mockChecker{name: "test"}},
			wantCode: http.StatusOK,
			want:     StatusOK,
		},
		{
			name:     "degraded still serves",
			checkers: []Checker{&mockChecker{name: "redis", err: Degraded(errors.New("ping failed"))}},
			wantCode: http.StatusOK,
			want:     StatusDegraded,
		},
		{
			name:     "down",
			checkers: []Checker{&mockChecker{name: "failing", err: assert.AnError}},
			wantCode: http.StatusServiceUnavailable,
			want:     StatusDown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := NewManager(logrus.New())
			for _, c := range tt.checkers {
				manager.Register(c)
			}
			handler := NewHandler(manager)

			req := httptest.NewRequest("GET", "/health", nil)
			rr := httptest.NewRecorder()
			handler.HandleHealth(rr, req)

			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			assert.Contains(t, rr.Header().Get("Cache-Control"), "no-cache")

			var response Response
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
			assert.Equal(t, tt.want, response.Status)
			assert.Equal(t, version.Version, response.Version)
			assert.NotEmpty(t, response.Uptime)
			assert.Len(t, response.Checks, len(tt.checkers))
		})
	}
}

func TestHandleReady(t *testing.T) {
	manager := NewManager(logrus.New())
	manager.Register(&mockChecker{name: "test"})
	handler := NewHandler(manager)

	// Nothing has run yet.
	rr := httptest.NewRecorder()
	handler.HandleReady(rr, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	manager.RunChecks(context.Background())

	rr = httptest.NewRecorder()
	handler.HandleReady(rr, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	var response struct {
		Status    Status    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, StatusOK, response.Status)
	assert.NotZero(t, response.Timestamp)
}

func TestHandleLive(t *testing.T) {
	handler := NewHandler(NewManager(logrus.New()))

	rr := httptest.NewRecorder()
	handler.HandleLive(rr, httptest.NewRequest("GET", "/live", nil))

	assert.Equal(t, http.StatusOK, rr.Code)

	var response struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "alive", response.Status)
	assert.NotZero(t, response.Timestamp)
}

func TestUptime(t *testing.T) {
	handler := &Handler{
		manager:   NewManager(logrus.New()),
		startTime: time.Now().Add(-(2*time.Minute + 30*time.Second)),
	}
	assert.Equal(t, "2m30s", handler.uptime().String())
}
