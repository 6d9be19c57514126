package observability_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/interlude/pkg/domain"
	"github.com/aretw0/interlude/pkg/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	m := observability.NewMetrics()
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnDrive(ctx, &domain.DriveEvent{SessionID: "s1", Phase: domain.PhaseResume, Outcome: domain.OutcomePaused, Duration: time.Second})
	hooks.OnDrive(ctx, &domain.DriveEvent{SessionID: "s1", Phase: domain.PhaseAck, Outcome: domain.OutcomeExhausted})
	hooks.OnPause(ctx, &domain.PauseEvent{SessionID: "s1", Phase: domain.PhaseAck, Surfaced: false})
	hooks.OnTransition(ctx, &domain.TransitionEvent{SessionID: "s1", From: domain.StatusDraining, To: domain.StatusCompleted})
	hooks.OnBusy(ctx, "s1")
	hooks.OnBusy(ctx, "s1")

	body := scrape(t, m)
	assert.Contains(t, body, `interlude_drives_total{outcome="paused",phase="resume"} 1`)
	assert.Contains(t, body, `interlude_drives_total{outcome="exhausted",phase="ack"} 1`)
	assert.Contains(t, body, `interlude_pauses_total{phase="ack",surfaced="false"} 1`)
	assert.Contains(t, body, `interlude_session_transitions_total{to="completed"} 1`)
	assert.Contains(t, body, `interlude_session_busy_total 2`)
	assert.Contains(t, body, `interlude_drive_duration_seconds_count{phase="resume"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestCombine(t *testing.T) {
	m := observability.NewMetrics()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	var order []string
	first := domain.LifecycleHooks{
		OnBusy: func(ctx context.Context, id string) { order = append(order, "first") },
	}
	last := domain.LifecycleHooks{
		OnBusy: func(ctx context.Context, id string) { order = append(order, "last") },
	}

	hooks := observability.Combine(first, m.Hooks(), observability.AuditHooks(logger), last)
	hooks.OnBusy(context.Background(), "s1")
	hooks.OnDrive(context.Background(), &domain.DriveEvent{SessionID: "s1", Phase: domain.PhaseStart, Outcome: domain.OutcomePaused})

	assert.Equal(t, []string{"first", "last"}, order)
	assert.Contains(t, buf.String(), "session busy")
	assert.Contains(t, buf.String(), "outcome=paused")
	require.NotNil(t, hooks.OnTransition, "metrics hooks provide a transition hook")
}

func TestCombine_Empty(t *testing.T) {
	hooks := observability.Combine()
	assert.Nil(t, hooks.OnDrive)
	assert.Nil(t, hooks.OnBusy)

	m := observability.NewMetrics()
	hooks = observability.Combine(domain.LifecycleHooks{}, m.Hooks())
	hooks.OnBusy(context.Background(), "s1")
}

func scrape(t *testing.T, m *observability.Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_Counters(t *testing.T) {
	m := observability.NewMetrics()
	m.Hooks().OnBusy(context.Background(), "s1")

	n, err := testutil.GatherAndCount(m.Registry(), "interlude_session_busy_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
