package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/aretw0/interlude/pkg/ports"
)

// ListSessions prints a table of stored sessions.
func ListSessions(ctx context.Context, store ports.SessionStore, w io.Writer) error {
	ids, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(w, "No sessions found.")
		return nil
	}
	slices.Sort(ids)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tDRIVES\tUPDATED")
	for _, id := range ids {
		sess, err := store.Load(ctx, id)
		if err != nil {
			fmt.Fprintf(tw, "%s\t<unreadable>\t-\t-\n", id)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", id, sess.Status, sess.Drives, sess.UpdatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

// InspectSession prints the stored record as indented JSON.
func InspectSession(ctx context.Context, store ports.SessionStore, id string, w io.Writer) error {
	sess, err := store.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load session %q: %w", id, err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(sess)
}

// RemoveSessions deletes the given sessions, reporting each one.
func RemoveSessions(ctx context.Context, store ports.SessionStore, ids []string, w io.Writer) error {
	var errs []error
	for _, id := range ids {
		if err := store.Delete(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
			continue
		}
		fmt.Fprintf(w, "Deleted session %s\n", id)
	}
	return errors.Join(errs...)
}
