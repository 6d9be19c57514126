package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/interlude"
	"github.com/aretw0/interlude/pkg/adapters/script"
	"github.com/aretw0/interlude/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) *interlude.Engine {
	t.Helper()
	eng, err := interlude.New(script.New(nil))
	require.NoError(t, err)
	return eng
}

func run(t *testing.T, r *Runner, conv Conversation) (*domain.Reply, error) {
	t.Helper()
	type result struct {
		reply *domain.Reply
		err   error
	}
	done := make(chan result, 1)
	go func() {
		reply, err := r.Run(t.Context(), conv)
		done <- result{reply, err}
	}()

	select {
	case res := <-done:
		return res.reply, res.err
	case <-time.After(2 * time.Second):
		t.Fatal("Runner timed out")
		return nil, nil
	}
}

func TestRunner_Run_AsksForTopic(t *testing.T) {
	out := &bytes.Buffer{}
	r := NewRunner(
		WithSessionID("s1"),
		WithInputHandler(NewTextHandler(strings.NewReader("quantum annealing\nlooks good\n"), out)),
	)

	reply, err := run(t, r, newEngine(t))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, reply.Status)

	output := out.String()
	assert.Contains(t, output, "What should the report be about?")
	assert.Contains(t, output, "Please provide feedback on the following report plan.")
	assert.Contains(t, output, "# quantum annealing")
}

func TestRunner_Run_ExitKeepsSessionResumable(t *testing.T) {
	eng := newEngine(t)

	out := &bytes.Buffer{}
	r := NewRunner(
		WithSessionID("s1"),
		WithTopic("tides"),
		WithInputHandler(NewTextHandler(strings.NewReader("exit\n"), out)),
	)
	reply, err := run(t, r, eng)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingInput, reply.Status)
	assert.Contains(t, out.String(), "Session s1 is paused")

	out.Reset()
	r = NewRunner(
		WithSessionID("s1"),
		WithInputHandler(NewTextHandler(strings.NewReader("ship it\n"), out)),
	)
	reply, err = run(t, r, eng)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, reply.Status)
	assert.Contains(t, out.String(), "Resuming session s1.")
	assert.Contains(t, out.String(), "# tides")
}

func TestRunner_Run_CompletedSessionShowsReport(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	_, err := eng.Initiate(ctx, "s1", "tides")
	require.NoError(t, err)
	_, err = eng.Continue(ctx, "s1", "ok")
	require.NoError(t, err)

	out := &bytes.Buffer{}
	r := NewRunner(WithSessionID("s1"), WithInputHandler(NewTextHandler(strings.NewReader(""), out)))
	reply, err := run(t, r, eng)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, reply.Status)
	assert.Contains(t, out.String(), "# tides")
}

func TestRunner_Run_JSON(t *testing.T) {
	out := &bytes.Buffer{}
	r := NewRunner(
		WithSessionID("s1"),
		WithTopic("fusion"),
		WithInputHandler(NewJSONHandler(strings.NewReader(`{"message":"approved"}`+"\n"), out)),
	)

	reply, err := run(t, r, newEngine(t))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, reply.Status)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	var first, last map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &last))
	assert.Equal(t, "reply", first["type"])
	assert.Equal(t, "awaiting_input", first["status"])
	assert.Equal(t, "completed", last["status"])
	assert.Contains(t, last["ai_message"], "approved")
}

func TestRunner_Run_Interrupt(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	interrupt := make(chan struct{})
	r := NewRunner(
		WithSessionID("s1"),
		WithTopic("tides"),
		WithInterruptSource(interrupt),
		WithInputHandler(NewTextHandler(pr, io.Discard)),
	)

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(interrupt)
	}()

	reply, err := run(t, r, newEngine(t))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingInput, reply.Status)
}

func TestRunner_Run_DegradedSession(t *testing.T) {
	conv := &stubConversation{session: &domain.Session{ID: "s1", Status: domain.StatusDegraded, Error: "boom"}}

	r := NewRunner(WithSessionID("s1"), WithInputHandler(NewTextHandler(strings.NewReader(""), io.Discard)))
	_, err := run(t, r, conv)
	assert.ErrorIs(t, err, domain.ErrSessionDegraded)
}

type stubConversation struct {
	session *domain.Session
}

func (s *stubConversation) Initiate(ctx context.Context, id, content string) (*domain.Reply, error) {
	return nil, domain.ErrEngineFailure
}

func (s *stubConversation) Continue(ctx context.Context, id, content string) (*domain.Reply, error) {
	return nil, domain.ErrEngineFailure
}

func (s *stubConversation) Session(ctx context.Context, id string) (*domain.Session, error) {
	return s.session, nil
}
