package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reviewpatch/engine/internal/diff"
	"github.com/reviewpatch/engine/internal/domain"
	"github.com/reviewpatch/engine/internal/usecase/session"
)

// errReviewAborted signals the user quit the session before resolving
// every suggestion. Nothing is published.
var errReviewAborted = errors.New("review aborted")

// runInteractive walks every pending suggestion in review order,
// rendering its diff and prompting for a decision.
func runInteractive(cmd *cobra.Command, sess *session.Session, collapseThreshold int) error {
	in := bufio.NewScanner(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	for _, path := range sess.Files() {
		fs, err := sess.File(path)
		if err != nil {
			return err
		}

		suggestions := fs.Suggestions()
		if len(suggestions) == 0 {
			continue
		}
		_, _ = fmt.Fprintf(out, "\n== %s (%d suggestion(s)) ==\n", path, len(suggestions))

		for _, sug := range suggestions {
			if sug.State.IsTerminal() {
				continue
			}
			if err := promptSuggestion(cmd.Context(), in, out, sess, sug, collapseThreshold); err != nil {
				return err
			}
		}
	}

	_, _ = fmt.Fprintf(out, "\nReview complete: %.0f%% resolved.\n", sess.Progress()*100)
	return nil
}

// promptSuggestion renders one suggestion and loops until the user makes
// a terminal decision, skips, or quits.
func promptSuggestion(ctx context.Context, in *bufio.Scanner, out io.Writer, sess *session.Session, sug domain.Suggestion, collapseThreshold int) error {
	expanded := false
	for {
		renderSuggestion(out, sug, collapseThreshold, expanded)
		_, _ = fmt.Fprint(out, "[a]pprove  [r]eject  [s]kip  [e]xpand  [q]uit > ")

		if !in.Scan() {
			if err := in.Err(); err != nil {
				return fmt.Errorf("read decision: %w", err)
			}
			return errReviewAborted
		}

		switch strings.ToLower(strings.TrimSpace(in.Text())) {
		case "a", "approve":
			err := sess.Approve(ctx, sug.Key)
			if err == nil {
				_, _ = fmt.Fprintln(out, "Approved.")
				return nil
			}
			var staleErr *domain.StaleBaseError
			var conflictErr *domain.ConflictError
			if errors.As(err, &staleErr) || errors.As(err, &conflictErr) {
				// Suggestion stays pending; the user can reject or skip it.
				_, _ = fmt.Fprintf(out, "Cannot apply: %v\n", err)
				continue
			}
			return err
		case "r", "reject":
			if err := sess.Reject(sug.Key); err != nil {
				return err
			}
			return nil
		case "s", "skip":
			_, _ = fmt.Fprintln(out, "Skipped; suggestion stays pending.")
			return nil
		case "e", "expand":
			expanded = true
		case "q", "quit":
			return errReviewAborted
		default:
			_, _ = fmt.Fprintln(out, "Unrecognized choice.")
		}
	}
}

// renderSuggestion prints the suggestion header and its diff, collapsing
// long context runs unless expanded.
func renderSuggestion(out io.Writer, sug domain.Suggestion, collapseThreshold int, expanded bool) {
	start, end := sug.LineRange()
	severity := string(sug.Severity)
	if severity == "" {
		severity = "UNSPECIFIED"
	}
	_, _ = fmt.Fprintf(out, "\n[%s] %s lines %d-%d\n", severity, sug.Key.File, start, end)
	if sug.Comment != "" {
		_, _ = fmt.Fprintf(out, "  %s\n", sug.Comment)
	}

	if sug.Diff == nil || sug.Diff.IsEmpty() {
		_, _ = fmt.Fprintln(out, "  (no diff supplied; approving applies the rationale verbatim)")
		return
	}

	fragments := diff.Group(sug.Diff.Lines, collapseThreshold)
	if expanded {
		for _, line := range diff.Flatten(fragments) {
			renderLine(out, line)
		}
		return
	}
	for _, f := range fragments {
		if f.Group != nil {
			_, _ = fmt.Fprintf(out, "      ... %d unchanged line(s) ...\n", f.Group.Count)
			continue
		}
		renderLine(out, *f.Line)
	}
}

func renderLine(out io.Writer, line domain.DiffLine) {
	switch line.Kind {
	case domain.LineAddition:
		_, _ = fmt.Fprintf(out, "  %4s %4s + %s\n", "", numberOrBlank(line.NewLine), line.Content)
	case domain.LineDeletion:
		_, _ = fmt.Fprintf(out, "  %4s %4s - %s\n", numberOrBlank(line.OldLine), "", line.Content)
	case domain.LineHunk:
		_, _ = fmt.Fprintf(out, "  %s\n", line.Content)
	default:
		_, _ = fmt.Fprintf(out, "  %4s %4s   %s\n", numberOrBlank(line.OldLine), numberOrBlank(line.NewLine), line.Content)
	}
}

func numberOrBlank(n *int) string {
	if n == nil {
		return ""
	}
	return fmt.Sprintf("%d", *n)
}
