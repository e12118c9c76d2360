// Package cli wires the review session engine into a Cobra command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/reviewpatch/engine/internal/domain"
	"github.com/reviewpatch/engine/internal/store"
	"github.com/reviewpatch/engine/internal/usecase/session"
	"github.com/reviewpatch/engine/internal/usecase/validate"
)

// ErrVersionRequested indicates the user requested the CLI version and no further work should be done.
var ErrVersionRequested = errors.New("version requested")

// SessionFactory creates a review session from an inbound review result.
type SessionFactory func(ctx context.Context, result domain.ReviewResult) (*session.Session, error)

// Arguments encapsulates IO streams injected from the host process.
type Arguments struct {
	InReader  io.Reader
	OutWriter io.Writer
	ErrWriter io.Writer
}

// Dependencies captures the collaborators for the CLI.
type Dependencies struct {
	LoadResult        func(path string) (domain.ReviewResult, error)
	NewSession        SessionFactory
	CurrentBranch     func(ctx context.Context) (string, error)
	WriteChangeSet    func(ctx context.Context, cs domain.ChangeSet) ([]string, error)
	ApplyChanges      func(ctx context.Context, cs domain.ChangeSet) error
	SaveHistory       func(ctx context.Context, cs domain.ChangeSet) (string, error)
	History           store.Store
	Limits            validate.Limits
	CollapseThreshold int
	IsInteractive     func() bool
	Args              Arguments
	Version           string
}

// NewRootCommand constructs the root Cobra command.
func NewRootCommand(deps Dependencies) *cobra.Command {
	versionString := deps.Version
	if versionString == "" {
		versionString = "v0.0.0"
	}

	root := &cobra.Command{
		Use:   "rp",
		Short: "Interactive review patch engine",
	}
	root.SilenceUsage = true
	root.SilenceErrors = true

	inReader := deps.Args.InReader
	if inReader == nil {
		inReader = os.Stdin
	}
	outWriter := deps.Args.OutWriter
	if outWriter == nil {
		outWriter = os.Stdout
	}
	errWriter := deps.Args.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	root.SetIn(inReader)
	root.SetOut(outWriter)
	root.SetErr(errWriter)

	root.AddCommand(reviewCommand(deps))
	root.AddCommand(historyCommand(deps.History))

	var showVersion bool
	root.PersistentFlags().BoolVarP(&showVersion, "version", "v", false, "Show version and exit")
	versionHandler := func(cmd *cobra.Command, args []string) error {
		if showVersion {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), versionString)
			return ErrVersionRequested
		}
		return nil
	}
	root.PersistentPreRunE = versionHandler
	root.PreRunE = versionHandler
	root.RunE = func(cmd *cobra.Command, args []string) error {
		if err := versionHandler(cmd, args); err != nil {
			return err
		}
		return cmd.Help()
	}

	return root
}

func reviewCommand(deps Dependencies) *cobra.Command {
	var branchName string
	var approveAll bool
	var rejectAll bool
	var applyToWorktree bool

	cmd := &cobra.Command{
		Use:   "review <result.json>",
		Short: "Walk through a review result, applying approved suggestions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if approveAll && rejectAll {
				return fmt.Errorf("--approve-all and --reject-all are mutually exclusive")
			}

			result, err := deps.LoadResult(args[0])
			if err != nil {
				return err
			}

			if problems := validate.ReviewResult(result, deps.Limits); len(problems) > 0 {
				for _, p := range problems {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "invalid input: %s\n", p)
				}
				return fmt.Errorf("review result failed validation with %d problem(s)", len(problems))
			}

			sess, err := deps.NewSession(ctx, result)
			if err != nil {
				return fmt.Errorf("create session: %w", err)
			}

			switch {
			case approveAll:
				if err := resolveAll(ctx, sess, true, cmd.ErrOrStderr()); err != nil {
					return err
				}
			case rejectAll:
				if err := resolveAll(ctx, sess, false, cmd.ErrOrStderr()); err != nil {
					return err
				}
			default:
				if deps.IsInteractive != nil && !deps.IsInteractive() {
					return fmt.Errorf("stdin is not a terminal; use --approve-all or --reject-all")
				}
				if err := runInteractive(cmd, sess, deps.CollapseThreshold); err != nil {
					if errors.Is(err, errReviewAborted) {
						_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Review aborted; nothing published.")
						return nil
					}
					return err
				}
			}

			resolvedBranch, err := resolveBranchName(ctx, branchName, deps.CurrentBranch)
			if err != nil {
				return err
			}

			changeSet, err := sess.Finalize(resolvedBranch)
			if err != nil {
				if errors.Is(err, domain.ErrNothingToPublish) {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No suggestions approved; nothing to publish.")
					return nil
				}
				if errors.Is(err, domain.ErrNotReady) {
					return fmt.Errorf("unresolved suggestions remain; nothing published: %w", err)
				}
				return fmt.Errorf("finalize: %w", err)
			}

			if applyToWorktree {
				if deps.ApplyChanges == nil {
					return fmt.Errorf("--apply is not supported in this configuration")
				}
				if err := deps.ApplyChanges(ctx, changeSet); err != nil {
					return fmt.Errorf("apply changes: %w", err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Applied %d change(s) to the worktree\n",
					len(changeSet.Changes))
			}

			if deps.WriteChangeSet != nil {
				paths, err := deps.WriteChangeSet(ctx, changeSet)
				if err != nil {
					return fmt.Errorf("write change set: %w", err)
				}
				for _, path := range paths {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
				}
			}

			if deps.SaveHistory != nil {
				id, err := deps.SaveHistory(ctx, changeSet)
				if err != nil {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to record history: %v\n", err)
				} else if id != "" {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Recorded change set %s\n", id)
				}
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Approved %d change(s) for branch %s\n",
				len(changeSet.Changes), changeSet.BranchName)
			return nil
		},
	}

	cmd.Flags().StringVar(&branchName, "branch", "", "Branch name for the published change set")
	cmd.Flags().BoolVar(&approveAll, "approve-all", false, "Approve every suggestion without prompting")
	cmd.Flags().BoolVar(&rejectAll, "reject-all", false, "Reject every suggestion without prompting")
	cmd.Flags().BoolVar(&applyToWorktree, "apply", false, "Write approved changes back to the repository worktree")

	return cmd
}

// resolveAll approves or rejects every pending suggestion. Files are
// processed concurrently; suggestions within a file stay sequential so
// each approval applies against the previous one's output.
func resolveAll(ctx context.Context, sess *session.Session, approve bool, errWriter io.Writer) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, path := range sess.Files() {
		fs, err := sess.File(path)
		if err != nil {
			return err
		}
		g.Go(func() error {
			for _, sug := range fs.Suggestions() {
				if sug.State.IsTerminal() {
					continue
				}
				if !approve {
					if err := sess.Reject(sug.Key); err != nil {
						return err
					}
					continue
				}
				if err := sess.Approve(ctx, sug.Key); err != nil {
					var conflictErr *domain.ConflictError
					var staleErr *domain.StaleBaseError
					if errors.As(err, &conflictErr) || errors.As(err, &staleErr) {
						// Unapplicable suggestions are rejected rather than
						// aborting the batch.
						_, _ = fmt.Fprintf(errWriter, "skipping %s: %v\n", sug.Key, err)
						if err := sess.Reject(sug.Key); err != nil {
							return err
						}
						continue
					}
					return err
				}
			}
			return nil
		})
	}

	return g.Wait()
}

func resolveBranchName(ctx context.Context, flagValue string, currentBranch func(context.Context) (string, error)) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if currentBranch != nil {
		if current, err := currentBranch(ctx); err == nil && current != "" {
			return current + "-reviewed", nil
		}
	}
	return "review/changes", nil
}

func historyCommand(history store.Store) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List previously finalized change sets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if history == nil {
				return fmt.Errorf("history store is disabled; enable store in configuration")
			}

			records, err := history.ListChangeSets(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list change sets: %w", err)
			}
			if len(records) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No change sets recorded.")
				return nil
			}

			for _, record := range records {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s  %d change(s) in %d file(s)\n",
					record.ChangeSetID,
					record.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
					record.BranchName,
					record.ChangeCount,
					record.FileCount,
				)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of change sets to list")

	return cmd
}
