package script

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/interlude/internal/logging"
	"github.com/aretw0/interlude/pkg/domain"
	"github.com/aretw0/interlude/pkg/ports"
	"github.com/aretw0/interlude/pkg/stream"
)

// checkpoint is the persisted position of one run.
type checkpoint struct {
	Topic    string
	Step     int  // index of the current step
	Waiting  bool // paused at the gate of Step
	Revision int
	Feedback []string
	Values   map[string]any
	Artifact *domain.Artifact
}

func (c checkpoint) clone() checkpoint {
	c.Feedback = slices.Clone(c.Feedback)
	c.Values = maps.Clone(c.Values)
	if c.Values == nil {
		c.Values = make(map[string]any)
	}
	return c
}

func (c checkpoint) view(step string) View {
	return View{
		Topic:    c.Topic,
		Step:     step,
		Revision: c.Revision,
		Feedback: c.Feedback,
		Values:   c.Values,
	}
}

// Engine runs a Workflow in-process. It implements ports.WorkflowEngine.
type Engine struct {
	workflow *Workflow
	delay    time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	runs map[string]*checkpoint
}

var _ ports.WorkflowEngine = (*Engine)(nil)

// Option configures the Engine.
type Option func(*Engine)

// WithStepDelay pauses before each progress event, simulating a slow engine.
func WithStepDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.delay = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an engine for wf. A nil workflow selects DefaultWorkflow.
func New(wf *Workflow, opts ...Option) *Engine {
	if wf == nil {
		wf = DefaultWorkflow()
	}
	e := &Engine{
		workflow: wf,
		logger:   logging.NewNop(),
		runs:     make(map[string]*checkpoint),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins a new run at coord with the input content as topic. A previous
// run at coord is replaced once the new one reaches its first gate or completes.
func (e *Engine) Start(ctx context.Context, coord string, input domain.Input) (ports.EventStream, error) {
	if input.IsAck() {
		return nil, fmt.Errorf("cannot start %q with an acknowledgement", coord)
	}
	cp := checkpoint{Topic: input.Content}.clone()
	e.logger.Debug("Run started", "coordinate", coord, "workflow", e.workflow.Name)
	return stream.New(ctx, e.run(coord, cp)), nil
}

// Resume continues the run paused at coord. Content is recorded as feedback and
// the gated step runs again; an acknowledgement approves the step.
func (e *Engine) Resume(ctx context.Context, coord string, input domain.Input) (ports.EventStream, error) {
	e.mu.Lock()
	saved, ok := e.runs[coord]
	if !ok || !saved.Waiting {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: no run paused at %q", domain.ErrUnknownCheckpoint, coord)
	}
	cp := saved.clone()
	e.mu.Unlock()

	cp.Waiting = false
	if input.IsAck() {
		cp.Step++
	} else {
		cp.Feedback = append(cp.Feedback, input.Content)
		cp.Revision++
	}
	e.logger.Debug("Run resumed",
		"coordinate", coord,
		"step", e.workflow.Steps[saved.Step].ID,
		"ack", input.IsAck(),
	)
	return stream.New(ctx, e.run(coord, cp)), nil
}

// InspectFinalState returns the report of a completed run, or nil.
func (e *Engine) InspectFinalState(ctx context.Context, coord string) (*domain.Artifact, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp, ok := e.runs[coord]
	if !ok || cp.Artifact == nil {
		return nil, nil
	}
	a := *cp.Artifact
	a.Values = maps.Clone(a.Values)
	return &a, nil
}

// run works on its own copy of the checkpoint and commits it only at a gate or
// at completion, so an interrupted drive leaves the previous checkpoint intact.
func (e *Engine) run(coord string, cp checkpoint) stream.Producer {
	return func(ctx context.Context, emit stream.Emit) error {
		for ; cp.Step < len(e.workflow.Steps); cp.Step++ {
			step := e.workflow.Steps[cp.Step]
			for _, name := range step.Progress {
				if err := e.wait(ctx); err != nil {
					return err
				}
				if err := emit(domain.Progress(name, map[string]any{"step": step.ID})); err != nil {
					return err
				}
			}

			if step.outputTmpl != nil {
				out, err := render(step.outputTmpl, cp.view(step.ID))
				if err != nil {
					return err
				}
				cp.Values[step.ID] = out
			}

			if step.gateTmpl != nil {
				prompt, err := render(step.gateTmpl, cp.view(step.ID))
				if err != nil {
					return err
				}
				cp.Waiting = true
				e.commit(coord, cp)
				return emit(domain.Paused(prompt))
			}
		}

		report, err := render(e.workflow.reportTmpl, cp.view(""))
		if err != nil {
			return err
		}
		values := maps.Clone(cp.Values)
		values["topic"] = cp.Topic
		values["feedback"] = slices.Clone(cp.Feedback)
		cp.Artifact = &domain.Artifact{Content: report, Values: values}
		e.commit(coord, cp)
		e.logger.Debug("Run completed", "coordinate", coord)
		return nil
	}
}

func (e *Engine) commit(coord string, cp checkpoint) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runs[coord] = &cp
}

func (e *Engine) wait(ctx context.Context) error {
	if e.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(e.delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
