package langgraph_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/interlude/pkg/adapters/langgraph"
	"github.com/aretw0/interlude/pkg/domain"
	"github.com/aretw0/interlude/pkg/ports"
	"github.com/aretw0/interlude/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeThread struct {
	values map[string]any
	next   []string
}

// fakeServer emulates the LangGraph threads API for a one-gate research graph.
type fakeServer struct {
	mu      sync.Mutex
	threads map[string]*fakeThread
	runs    []map[string]any
	apiKeys []string

	failRuns bool // emit an error event instead of running
	hang     bool // keep the stream open until the client goes away
	closed   chan struct{}
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	f := &fakeServer{threads: make(map[string]*fakeThread), closed: make(chan struct{}, 1)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /threads", f.createThread)
	mux.HandleFunc("GET /threads/{id}/state", f.state)
	mux.HandleFunc("POST /threads/{id}/runs/stream", f.stream)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeServer) createThread(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ThreadID string `json:"thread_id"`
		IfExists string `json:"if_exists"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("X-Api-Key"))
	if _, ok := f.threads[body.ThreadID]; !ok || body.IfExists != "do_nothing" {
		f.threads[body.ThreadID] = &fakeThread{values: map[string]any{}}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"thread_id": body.ThreadID})
}

func (f *fakeServer) state(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	th, ok := f.threads[r.PathValue("id")]
	if !ok {
		http.Error(w, `{"detail":"Thread not found"}`, http.StatusNotFound)
		return
	}
	next := th.next
	if next == nil {
		next = []string{}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"values": th.values, "next": next})
}

func (f *fakeServer) stream(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	f.mu.Lock()
	f.runs = append(f.runs, body)
	th, ok := f.threads[r.PathValue("id")]
	fail, hang := f.failRuns, f.hang
	f.mu.Unlock()
	if !ok {
		http.Error(w, "thread not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	flusher := w.(http.Flusher)
	send := func(event string, data any) {
		b, _ := json.Marshal(data)
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b)
		flusher.Flush()
	}

	send("metadata", map[string]any{"run_id": "run-1"})
	if fail {
		send("error", map[string]any{"error": "GraphRecursionError", "message": "boom"})
		return
	}
	if hang {
		<-r.Context().Done()
		f.closed <- struct{}{}
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if input, ok := body["input"].(map[string]any); ok {
		th.values = map[string]any{"topic": input["topic"]}
		send("updates", map[string]any{"generate_report_plan": map[string]any{"sections": 3}})
		th.next = []string{"human_feedback"}
		send("updates", map[string]any{"__interrupt__": []any{map[string]any{
			"value":     fmt.Sprintf("Plan for %v. Approve?", input["topic"]),
			"resumable": true,
		}}})
		return
	}

	resume := body["command"].(map[string]any)["resume"]
	send("updates", map[string]any{"human_feedback": nil})
	if approved, _ := resume.(bool); approved {
		send("updates", map[string]any{"compile_final_report": map[string]any{}})
		th.values["final_report"] = fmt.Sprintf("# %v", th.values["topic"])
		th.next = nil
		return
	}
	th.next = []string{"human_feedback"}
	send("updates", map[string]any{"__interrupt__": []any{map[string]any{"value": fmt.Sprintf("Revised plan (%v). Approve?", resume)}}})
}

func drain(t *testing.T, s ports.EventStream) ([]domain.Event, error) {
	t.Helper()
	defer s.Close()
	var events []domain.Event
	for {
		ev, err := s.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

func TestClient_Contract(t *testing.T) {
	_, srv := newFakeServer(t)
	tests.WorkflowEngineContractTest(t, langgraph.New(srv.URL), "contract-thread")
}

func TestClient_ProtocolRoundTrip(t *testing.T) {
	f, srv := newFakeServer(t)
	c := langgraph.New(srv.URL, langgraph.WithAssistantID("open_deep_research"), langgraph.WithAPIKey("secret"))
	ctx := context.Background()

	s, err := c.Start(ctx, "thread-1", domain.Content("quantum annealing"))
	require.NoError(t, err)
	events, err := drain(t, s)
	require.NoError(t, err)
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	assert.True(t, last.IsPause())
	assert.Equal(t, "Plan for quantum annealing. Approve?", last.Payload)
	assert.Equal(t, "metadata", events[0].Name)

	s, err = c.Resume(ctx, "thread-1", domain.Content("add hardware"))
	require.NoError(t, err)
	events, err = drain(t, s)
	require.NoError(t, err)
	assert.Equal(t, "Revised plan (add hardware). Approve?", events[len(events)-1].Payload)

	s, err = c.Resume(ctx, "thread-1", domain.Ack())
	require.NoError(t, err)
	_, err = drain(t, s)
	require.NoError(t, err)

	artifact, err := c.InspectFinalState(ctx, "thread-1")
	require.NoError(t, err)
	require.NotNil(t, artifact)
	assert.Equal(t, "# quantum annealing", artifact.Content)

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.runs, 3)
	assert.Equal(t, "open_deep_research", f.runs[0]["assistant_id"])
	assert.Equal(t, "updates", f.runs[0]["stream_mode"])
	assert.Equal(t, map[string]any{"resume": "add hardware"}, f.runs[1]["command"])
	assert.Equal(t, map[string]any{"resume": true}, f.runs[2]["command"])
	assert.Equal(t, []string{"secret"}, f.apiKeys)
}

func TestClient_ErrorEvent(t *testing.T) {
	f, srv := newFakeServer(t)
	c := langgraph.New(srv.URL)

	f.mu.Lock()
	f.failRuns = true
	f.mu.Unlock()
	s, err := c.Start(context.Background(), "thread-1", domain.Content("topic"))
	require.NoError(t, err)

	_, err = drain(t, s)
	assert.ErrorIs(t, err, domain.ErrEngineFailure)
	assert.Contains(t, err.Error(), "GraphRecursionError")
}

func TestClient_ResumeUnknownThread(t *testing.T) {
	_, srv := newFakeServer(t)
	c := langgraph.New(srv.URL)

	_, err := c.Resume(context.Background(), "nope", domain.Content("hello"))
	assert.ErrorIs(t, err, domain.ErrUnknownCheckpoint)
}

func TestClient_CloseAbortsStream(t *testing.T) {
	f, srv := newFakeServer(t)
	c := langgraph.New(srv.URL)
	ctx := context.Background()

	f.mu.Lock()
	f.hang = true
	f.mu.Unlock()
	s, err := c.Start(ctx, "thread-1", domain.Content("topic"))
	require.NoError(t, err)

	ev, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "metadata", ev.Name)

	require.NoError(t, s.Close())

	select {
	case <-f.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the client disconnect")
	}
}

func TestClient_ServerDown(t *testing.T) {
	_, srv := newFakeServer(t)
	url := srv.URL
	srv.Close()

	c := langgraph.New(url)
	_, err := c.Start(context.Background(), "thread-1", domain.Content("topic"))
	assert.ErrorIs(t, err, domain.ErrEngineFailure)

	_, err = c.InspectFinalState(context.Background(), "thread-1")
	assert.ErrorIs(t, err, domain.ErrEngineFailure)
}
