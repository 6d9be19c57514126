package runner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/interlude/pkg/domain"
)

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Output presents a reply: the pending prompt or the final report.
	Output(ctx context.Context, reply *domain.Reply) error

	// Input reads a response from the user.
	Input(ctx context.Context) (string, error)

	// SystemOutput presents a meta-message to the user (e.g. status updates).
	// This is distinct from content rendering.
	SystemOutput(ctx context.Context, msg string) error
}

// ContentRenderer transforms content before it is written, e.g. markdown to ANSI.
type ContentRenderer func(string) (string, error)

// FormatPayload turns a pause payload into text. Strings are returned as is,
// anything else is shown as indented JSON.
func FormatPayload(payload any) string {
	switch v := payload.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Sprint(payload)
	}
	return string(data)
}
