package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockChecker is a mock implementation of Checker for testing
type mockChecker struct {
	name    string
	err     error
	delay   time.Duration
	details map[string]interface{}
}

func (m *mockChecker) Name() string {
	return m.name
}

func (m *mockChecker) Check(ctx context.Context) error {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.err
}

type detailedChecker struct {
	mockChecker
}

func (d *detailedChecker) Details() map[string]interface{} {
	return d.details
}

func TestManager(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	t.Run("Register and RunChecks", func(t *testing.T) {
		manager := NewManager(logger)

		manager.Register(&mockChecker{name: "checker1"})
		manager.Register(&mockChecker{name: "checker2", err: errors.New("checker2 failed")})
		manager.Register(&mockChecker{name: "checker3", err: Degraded(errors.New("slow disk"))})

		results := manager.RunChecks(context.Background())
		require.Len(t, results, 3)

		assert.Equal(t, StatusOK, results["checker1"].Status)
		assert.Empty(t, results["checker1"].Message)

		assert.Equal(t, StatusDown, results["checker2"].Status)
		assert.Contains(t, results["checker2"].Message, "checker2 failed")

		assert.Equal(t, StatusDegraded, results["checker3"].Status)
		assert.Equal(t, "slow disk", results["checker3"].Message)
	})

	t.Run("GetResults returns copies", func(t *testing.T) {
		manager := NewManager(logger)
		manager.Register(&mockChecker{name: "test"})
		manager.RunChecks(context.Background())

		results := manager.GetResults()
		require.Contains(t, results, "test")
		results["test"].Status = StatusDown

		assert.Equal(t, StatusOK, manager.GetResults()["test"].Status)
	})

	t.Run("GetOverallStatus", func(t *testing.T) {
		tests := []struct {
			name     string
			checkers []Checker
			want     Status
		}{
			{
				name: "all healthy",
				checkers: []Checker{
					&mockChecker{name: "c1"},
					&mockChecker{name: "c2"},
				},
				want: StatusOK,
			},
			{
				name: "one degraded",
				checkers: []Checker{
					&mockChecker{name: "c1"},
					&mockChecker{name: "c2", err: Degraded(errors.New("meh"))},
				},
				want: StatusDegraded,
			},
			{
				name: "down wins over degraded",
				checkers: []Checker{
					&mockChecker{name: "c1", err: Degraded(errors.New("meh"))},
					&mockChecker{name: "c2", err: errors.New("error")},
				},
				want: StatusDown,
			},
			{
				name:     "no checkers",
				checkers: []Checker{},
				want:     StatusDown,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				manager := NewManager(logger)
				for _, checker := range tt.checkers {
					manager.Register(checker)
				}
				if len(tt.checkers) > 0 {
					manager.RunChecks(context.Background())
				}
				assert.Equal(t, tt.want, manager.GetOverallStatus())
			})
		}
	})

	t.Run("Timeout handling", func(t *testing.T) {
		manager := NewManager(logger)
		manager.SetCheckTimeout(50 * time.Millisecond)
		manager.Register(&mockChecker{name: "slow-checker", delay: 10 * time.Second})

		start := time.Now()
		results := manager.RunChecks(context.Background())
		assert.Less(t, time.Since(start), 2*time.Second)

		check := results["slow-checker"]
		require.NotNil(t, check)
		assert.Equal(t, StatusDown, check.Status)
		assert.Contains(t, check.Message, "timed out")
	})

	t.Run("Details", func(t *testing.T) {
		manager := NewManager(logger)
		manager.Register(&detailedChecker{mockChecker{name: "d", details: map[string]interface{}{"k": 1}}})

		results := manager.RunChecks(context.Background())
		assert.Equal(t, map[string]interface{}{"k": 1}, results["d"].Details)
	})
}

func TestManager_LogsByOutcome(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	manager := NewManager(logger)
	manager.Register(&mockChecker{name: "bad", err: errors.New("boom")})
	manager.Register(&mockChecker{name: "meh", err: Degraded(errors.New("slow"))})

	manager.RunChecks(context.Background())

	levels := map[string]logrus.Level{}
	for _, e := range hook.AllEntries() {
		if name, ok := e.Data["checker"].(string); ok {
			levels[name] = e.Level
		}
	}
	assert.Equal(t, logrus.ErrorLevel, levels["bad"])
	assert.Equal(t, logrus.WarnLevel, levels["meh"])
}

func TestDegraded(t *testing.T) {
	assert.Nil(t, Degraded(nil))

	base := errors.New("base")
	err := Degraded(base)
	assert.True(t, IsDegraded(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsDegraded(base))
}

func TestStartPeriodicChecks(t *testing.T) {
	logger := logrus.New()
	manager := NewManager(logger)
	manager.Register(&mockChecker{name: "counter"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		manager.StartPeriodicChecks(ctx, 20*time.Millisecond)
		close(done)
	}()

	// The first run happens immediately.
	require.Eventually(t, func() bool {
		return manager.GetOverallStatus() == StatusOK
	}, time.Second, 5*time.Millisecond)

	first := manager.GetResults()["counter"].LastChecked
	require.Eventually(t, func() bool {
		return manager.GetResults()["counter"].LastChecked.After(first)
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("periodic checks did not stop")
	}
}

func TestCheckDurationTracking(t *testing.T) {
	manager := NewManager(logrus.New())
	manager.Register(&mockChecker{name: "delayed", delay: 50 * time.Millisecond})

	results := manager.RunChecks(context.Background())

	check := results["delayed"]
	require.NotNil(t, check)
	assert.GreaterOrEqual(t, check.Duration, 50*time.Millisecond)
	assert.GreaterOrEqual(t, check.DurationMS, float64(50))
}
