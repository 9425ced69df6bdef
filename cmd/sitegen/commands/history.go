package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/sitegen/internal/eventstore"
	ferrors "git.home.luguber.info/inful/sitegen/internal/foundation/errors"
)

// HistoryCmd prints the most recent builds recorded in the journal.
type HistoryCmd struct {
	Limit int `short:"n" help:"Number of builds to show (defaults to journal.history)"`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.Journal.Path == "" {
		return ferrors.ConfigError("no build journal configured (set journal.path)").Build()
	}
	limit := h.Limit
	if limit <= 0 {
		limit = cfg.Journal.History
	}
	return RunHistory(context.Background(), os.Stdout, cfg.Journal.Path, limit)
}

// RunHistory replays the journal at path and writes one line per finished build,
// newest first.
func RunHistory(ctx context.Context, w io.Writer, path string, limit int) error {
	store, err := eventstore.NewSQLiteStore(path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	projection := eventstore.NewBuildHistoryProjection(store, limit)
	if err := projection.Rebuild(ctx); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tKIND\tSTATUS\tCHANGE\tTRIGGER\tDOCS\tDURATION\tRELOADS")
	for _, b := range projection.History() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%d\n",
			b.StartedAt.Local().Format(time.DateTime), b.Kind, b.Status, dash(b.Change),
			dash(b.Trigger), b.Documents, b.Duration.Round(time.Millisecond), b.Reloads)
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
