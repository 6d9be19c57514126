package cli

import (
	"context"
	"io"
	"os"

	"github.com/aretw0/interlude"
	"github.com/aretw0/interlude/internal/presentation/tui"
	"github.com/aretw0/interlude/pkg/domain"
	"github.com/aretw0/interlude/pkg/runner"
)

// ChatOptions configures an interactive session.
type ChatOptions struct {
	SessionID string
	Topic     string
	JSON      bool
	Quiet     bool
}

// RunChat drives one conversation on the terminal (or NDJSON when JSON is set)
// until the session completes or the user leaves it paused.
func RunChat(ctx context.Context, app *App, opts ChatOptions, in io.Reader, out io.Writer) error {
	var handler runner.IOHandler
	if opts.JSON {
		handler = runner.NewJSONHandler(in, out)
	} else {
		var hopts []runner.TextHandlerOption
		if f, ok := out.(*os.File); ok && tui.IsTerminal(f) {
			if !opts.Quiet {
				tui.PrintBanner(out, interlude.Version)
			}
			render, err := tui.NewRenderer(tui.Width(f))
			if err != nil {
				app.Logger.Warn("Markdown renderer unavailable", "err", err)
			} else {
				hopts = append(hopts, runner.WithTextHandlerRenderer(render))
			}
		}
		handler = runner.NewTextHandler(in, out, hopts...)
	}

	r := runner.NewRunner(
		runner.WithLogger(app.Logger),
		runner.WithInputHandler(handler),
		runner.WithSessionID(opts.SessionID),
		runner.WithTopic(opts.Topic),
	)

	reply, err := r.Run(ctx, app.Engine)
	if err != nil {
		return handleExecutionError(err)
	}

	if reply != nil && reply.Status == domain.StatusCompleted && !opts.JSON && !opts.Quiet {
		printSystemMessage(out, "Session %s completed.", reply.SessionID)
	}
	return nil
}
