package langgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/interlude/internal/logging"
	"github.com/aretw0/interlude/pkg/domain"
	"github.com/aretw0/interlude/pkg/ports"
	"github.com/aretw0/interlude/pkg/stream"
)

const (
	// DefaultAssistantID is the graph name LangGraph servers register by default.
	DefaultAssistantID = "agent"
	// DefaultReportKey is the state key holding the final report.
	DefaultReportKey = "final_report"
	// DefaultInputKey is the state key the initial content is sent under.
	DefaultInputKey = "topic"

	interruptKey = "__interrupt__"
)

// errThreadNotFound is returned by state when the server does not know the thread.
var errThreadNotFound = errors.New("thread not found")

// Client talks to a LangGraph server. It implements ports.WorkflowEngine.
type Client struct {
	baseURL     string
	assistantID string
	apiKey      string
	reportKey   string
	inputKey    string
	http        *http.Client
	logger      *slog.Logger
}

var _ ports.WorkflowEngine = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithAssistantID selects the graph to run.
func WithAssistantID(id string) Option {
	return func(c *Client) {
		if id != "" {
			c.assistantID = id
		}
	}
}

// WithAPIKey sends the key in the X-Api-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithReportKey sets the state key read by InspectFinalState.
func WithReportKey(key string) Option {
	return func(c *Client) {
		if key != "" {
			c.reportKey = key
		}
	}
}

// WithInputKey sets the state key the initial content is sent under.
func WithInputKey(key string) Option {
	return func(c *Client) {
		if key != "" {
			c.inputKey = key
		}
	}
}

// WithHTTPClient replaces the HTTP client. Streaming requests must not be cut by
// a client-wide timeout; use drive deadlines instead.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout is a shortcut for an HTTP client without a body deadline but with
// a bounded connection and response-header phase.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			return
		}
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.ResponseHeaderTimeout = d
		c.http = &http.Client{Transport: tr}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		assistantID: DefaultAssistantID,
		reportKey:   DefaultReportKey,
		inputKey:    DefaultInputKey,
		http:        &http.Client{},
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// threadState is the subset of GET /threads/{id}/state we rely on.
type threadState struct {
	Values map[string]any `json:"values"`
	Next   []string       `json:"next"`
}

// Start creates the thread if needed and streams a new run with the content as input.
func (c *Client) Start(ctx context.Context, coord string, input domain.Input) (ports.EventStream, error) {
	if input.IsAck() {
		return nil, fmt.Errorf("cannot start %q with an acknowledgement", coord)
	}

	create := map[string]any{"thread_id": coord, "if_exists": "do_nothing"}
	if err := c.do(ctx, http.MethodPost, "/threads", create, nil); err != nil {
		return nil, fmt.Errorf("%w: create thread: %w", domain.ErrEngineFailure, err)
	}

	run := map[string]any{
		"assistant_id": c.assistantID,
		"input":        map[string]any{c.inputKey: input.Content},
		"stream_mode":  "updates",
	}
	return c.stream(ctx, coord, run), nil
}

// Resume delivers input to the run interrupted at coord.
func (c *Client) Resume(ctx context.Context, coord string, input domain.Input) (ports.EventStream, error) {
	st, err := c.state(ctx, coord)
	if errors.Is(err, errThreadNotFound) {
		return nil, fmt.Errorf("%w: thread %q does not exist", domain.ErrUnknownCheckpoint, coord)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEngineFailure, err)
	}
	if len(st.Next) == 0 {
		return nil, fmt.Errorf("%w: thread %q is not interrupted", domain.ErrUnknownCheckpoint, coord)
	}

	run := map[string]any{
		"assistant_id": c.assistantID,
		"command":      map[string]any{"resume": input.Value()},
		"stream_mode":  "updates",
	}
	return c.stream(ctx, coord, run), nil
}

// InspectFinalState reads the report key from the thread state.
func (c *Client) InspectFinalState(ctx context.Context, coord string) (*domain.Artifact, error) {
	st, err := c.state(ctx, coord)
	if errors.Is(err, errThreadNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEngineFailure, err)
	}

	report, _ := st.Values[c.reportKey].(string)
	if report == "" {
		return nil, nil
	}
	return &domain.Artifact{Content: report, Values: st.Values}, nil
}

func (c *Client) state(ctx context.Context, coord string) (*threadState, error) {
	var st threadState
	if err := c.do(ctx, http.MethodGet, "/threads/"+url.PathEscape(coord)+"/state", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// stream opens the run inside the producer so that Close aborts the request
// and releases the response body.
func (c *Client) stream(ctx context.Context, coord string, body any) ports.EventStream {
	path := "/threads/" + url.PathEscape(coord) + "/runs/stream"
	return stream.New(ctx, func(ctx context.Context, emit stream.Emit) error {
		req, err := c.request(ctx, http.MethodPost, path, body)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "text/event-stream")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %w", domain.ErrEngineFailure, err)
		}
		defer resp.Body.Close()
		if err := checkStatus(resp); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrEngineFailure, err)
		}

		sse := newSSEReader(resp.Body)
		for {
			msg, err := sse.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("%w: read stream: %w", domain.ErrEngineFailure, err)
			}

			events, err := c.decode(msg)
			if err != nil {
				return err
			}
			for _, ev := range events {
				if err := emit(ev); err != nil {
					return err
				}
			}
			if msg.Event == "end" {
				return nil
			}
		}
	})
}

// decode maps one SSE message onto workflow events.
func (c *Client) decode(msg sseEvent) ([]domain.Event, error) {
	switch msg.Event {
	case "error":
		return nil, fmt.Errorf("%w: %s", domain.ErrEngineFailure, msg.Data)
	case "updates":
	default:
		return []domain.Event{domain.Progress(msg.Event, json.RawMessage(msg.Data))}, nil
	}

	var update map[string]json.RawMessage
	if err := json.Unmarshal([]byte(msg.Data), &update); err != nil {
		return nil, fmt.Errorf("%w: malformed update: %w", domain.ErrEngineFailure, err)
	}

	if raw, ok := update[interruptKey]; ok {
		var interrupts []struct {
			Value any `json:"value"`
		}
		if err := json.Unmarshal(raw, &interrupts); err != nil {
			return nil, fmt.Errorf("%w: malformed interrupt: %w", domain.ErrEngineFailure, err)
		}
		if len(interrupts) == 0 {
			return nil, fmt.Errorf("%w: empty interrupt", domain.ErrEngineFailure)
		}
		return []domain.Event{domain.Paused(interrupts[0].Value)}, nil
	}

	events := make([]domain.Event, 0, len(update))
	for node, data := range update {
		events = append(events, domain.Progress(node, data))
	}
	return events, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.request(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errThreadNotFound
	}
	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) request(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	c.logger.Debug("LangGraph request", "method", method, "path", path)
	return req, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s %s: %s: %s",
		resp.Request.Method, resp.Request.URL.Path, resp.Status, strings.TrimSpace(string(snippet)))
}
