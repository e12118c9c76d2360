package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/reviewpatch/engine/internal/adapter/cli"
	"github.com/reviewpatch/engine/internal/adapter/input"
	"github.com/reviewpatch/engine/internal/adapter/observability"
	jsonwriter "github.com/reviewpatch/engine/internal/adapter/output/json"
	"github.com/reviewpatch/engine/internal/adapter/output/markdown"
	"github.com/reviewpatch/engine/internal/adapter/patcher/local"
	"github.com/reviewpatch/engine/internal/adapter/patcher/remotehttp"
	"github.com/reviewpatch/engine/internal/adapter/repository"
	"github.com/reviewpatch/engine/internal/adapter/store/sqlite"
	"github.com/reviewpatch/engine/internal/config"
	"github.com/reviewpatch/engine/internal/domain"
	"github.com/reviewpatch/engine/internal/redaction"
	"github.com/reviewpatch/engine/internal/store"
	"github.com/reviewpatch/engine/internal/usecase/apply"
	"github.com/reviewpatch/engine/internal/usecase/session"
	"github.com/reviewpatch/engine/internal/usecase/validate"
	"github.com/reviewpatch/engine/internal/version"
)

func main() {
	if err := run(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func run() error {
	// Cancellable context with signal handling for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPaths: defaultConfigPaths(),
		FileName:    "rp",
		EnvPrefix:   "RP",
	})
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	repoDir := cfg.Git.RepositoryDir
	if repoDir == "" {
		repoDir = "."
	}
	repoName := repositoryName(repoDir)

	// Timestamp function for deterministic output file naming.
	nowFunc := func() string {
		return time.Now().UTC().Format("20060102T150405Z")
	}

	markdownWriter := markdown.NewWriter(nowFunc)
	jsonWriter := jsonwriter.NewWriter(nowFunc)

	applier := buildApplier(cfg)
	worktree := repository.NewWorktreeProvider(repoDir)
	provider, branchLookup := buildProviders(worktree, repoDir, cfg.Git.Ref)
	sessionLogger := buildLogger(cfg.Observability)

	// Secrets are scrubbed from everything that leaves the process.
	var redactor *redaction.Engine
	if cfg.Output.RedactSecrets {
		redactor = redaction.NewEngine()
	}

	// Initialize history store if enabled.
	var historyStore store.Store
	if cfg.Store.Enabled {
		storeDir := filepath.Dir(cfg.Store.Path)
		if err := os.MkdirAll(storeDir, 0o755); err != nil {
			log.Printf("warning: failed to create store directory: %v", err)
		} else {
			sqliteStore, err := sqlite.NewStore(cfg.Store.Path)
			if err != nil {
				log.Printf("warning: failed to initialize store: %v", err)
			} else {
				historyStore = sqliteStore
				defer historyStore.Close()
			}
		}
	}

	limits := validate.DefaultLimits()
	if cfg.Limits.MaxFileBytes > 0 {
		limits.MaxFileBytes = cfg.Limits.MaxFileBytes
	}
	if cfg.Limits.MaxSuggestionsPerFile > 0 {
		limits.MaxSuggestionsPerFile = cfg.Limits.MaxSuggestionsPerFile
	}

	root := cli.NewRootCommand(cli.Dependencies{
		LoadResult: input.Load,
		NewSession: func(ctx context.Context, result domain.ReviewResult) (*session.Session, error) {
			var opts []session.Option
			if sessionLogger != nil {
				opts = append(opts, session.WithLogger(sessionLogger))
			}
			return session.New(ctx, result, applier, provider, opts...)
		},
		CurrentBranch: branchLookup,
		WriteChangeSet: func(ctx context.Context, cs domain.ChangeSet) ([]string, error) {
			if redactor != nil {
				cs = redactor.RedactChangeSet(cs)
			}
			return writeChangeSet(ctx, cfg.Output, repoName, cs, markdownWriter, jsonWriter)
		},
		ApplyChanges: func(ctx context.Context, cs domain.ChangeSet) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return applyChanges(worktree, cs)
		},
		SaveHistory: func(ctx context.Context, cs domain.ChangeSet) (string, error) {
			if redactor != nil {
				cs = redactor.RedactChangeSet(cs)
			}
			return saveHistory(ctx, historyStore, repoName, cs)
		},
		History:           historyStore,
		Limits:            limits,
		CollapseThreshold: cfg.Display.CollapseThreshold,
		IsInteractive:     cli.IsInteractive,
		Version:           version.Value(),
	})

	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, cli.ErrVersionRequested) {
			return nil
		}
		return fmt.Errorf("command failed: %w", err)
	}
	return nil
}

// buildApplier selects the patch collaborator from configuration.
func buildApplier(cfg config.Config) *apply.Applier {
	var patcher apply.Patcher
	if cfg.Patcher.Mode == "remote" {
		initial, max := cfg.PatcherBackoff()
		retryCfg := remotehttp.DefaultRetryConfig()
		retryCfg.InitialBackoff = initial
		retryCfg.MaxBackoff = max
		if cfg.Patcher.MaxRetries > 0 {
			retryCfg.MaxRetries = cfg.Patcher.MaxRetries
		}
		if cfg.Patcher.BackoffMultiplier > 1 {
			retryCfg.Multiplier = cfg.Patcher.BackoffMultiplier
		}
		opts := []remotehttp.Option{
			remotehttp.WithTimeout(cfg.PatcherTimeout()),
			remotehttp.WithRetryConfig(retryCfg),
		}
		if cfg.Observability.Logging.Enabled {
			opts = append(opts, remotehttp.WithLogger(remotehttp.NewDefaultLogger(
				patcherLogLevel(cfg.Observability.Logging.Level),
				patcherLogFormat(cfg.Observability.Logging.Format),
			)))
		}
		patcher = remotehttp.NewClient(cfg.Patcher.Endpoint, opts...)
	} else {
		patcher = local.New()
	}

	applier := apply.New(patcher)
	if cfg.Patcher.ContextLines > 0 {
		applier = applier.WithContextLines(cfg.Patcher.ContextLines)
	}
	return applier
}

// buildProviders returns the base-content provider and the branch lookup.
// A pinned ref reads file content from that commit; otherwise content comes
// from the worktree.
func buildProviders(worktree *repository.WorktreeProvider, repoDir, ref string) (session.ContentProvider, func(context.Context) (string, error)) {
	gitProvider := repository.NewGitProvider(repoDir, ref)
	if ref != "" {
		return gitProvider, gitProvider.CurrentBranch
	}
	return worktree, gitProvider.CurrentBranch
}

// applyChanges writes each approved change's modified content back into the
// worktree. Files must already exist; the engine only rewrites content it
// reviewed.
func applyChanges(worktree *repository.WorktreeProvider, cs domain.ChangeSet) error {
	for _, change := range cs.Changes {
		if !worktree.FileExists(change.File) {
			return fmt.Errorf("%s: not a file in the worktree", change.File)
		}
		if err := worktree.WriteFile(change.File, change.ModifiedContent); err != nil {
			return err
		}
	}
	return nil
}

func patcherLogLevel(level string) remotehttp.LogLevel {
	switch level {
	case "debug":
		return remotehttp.LogLevelDebug
	case "error":
		return remotehttp.LogLevelError
	default:
		return remotehttp.LogLevelInfo
	}
}

func patcherLogFormat(format string) remotehttp.LogFormat {
	if format == "json" {
		return remotehttp.LogFormatJSON
	}
	return remotehttp.LogFormatHuman
}

func buildLogger(cfg config.ObservabilityConfig) session.Logger {
	if !cfg.Logging.Enabled {
		return nil
	}
	return observability.NewStructuredLogger(
		observability.ParseLevel(cfg.Logging.Level),
		observability.ParseFormat(cfg.Logging.Format),
	)
}

// writeChangeSet renders the finalized change set with every configured
// writer and returns the written paths.
func writeChangeSet(ctx context.Context, cfg config.OutputConfig, repoName string, cs domain.ChangeSet, md *markdown.Writer, js *jsonwriter.Writer) ([]string, error) {
	outputDir := cfg.Directory
	if outputDir == "" {
		outputDir = "build"
	}
	artifact := domain.ChangeSetArtifact{
		OutputDir:  outputDir,
		Repository: repoName,
		ChangeSet:  cs,
	}

	format := cfg.Format
	if format == "" {
		format = "markdown"
	}

	var paths []string
	if format == "markdown" || format == "both" {
		path, err := md.Write(ctx, artifact)
		if err != nil {
			return nil, fmt.Errorf("write markdown: %w", err)
		}
		paths = append(paths, path)
	}
	if format == "json" || format == "both" {
		path, err := js.Write(ctx, artifact)
		if err != nil {
			return nil, fmt.Errorf("write json: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// saveHistory records the change set in the history store. A nil store is
// a no-op so history stays optional.
func saveHistory(ctx context.Context, historyStore store.Store, repoName string, cs domain.ChangeSet) (string, error) {
	if historyStore == nil {
		return "", nil
	}

	now := time.Now().UTC()
	changeSetID := store.GenerateChangeSetID(now, cs.BranchName)

	files := map[string]struct{}{}
	records := make([]store.ChangeRecord, 0, len(cs.Changes))
	for i, change := range cs.Changes {
		files[change.File] = struct{}{}
		records = append(records, store.ChangeRecord{
			ChangeID:    store.GenerateChangeID(changeSetID, i),
			ChangeSetID: changeSetID,
			File:        change.File,
			LineStart:   change.LineStart,
			LineEnd:     change.LineEnd,
			Diff:        change.Diff,
			Rationale:   change.Rationale,
			Severity:    string(change.Severity),
		})
	}

	record := store.ChangeSetRecord{
		ChangeSetID: changeSetID,
		BranchName:  cs.BranchName,
		Repository:  repoName,
		CreatedAt:   now,
		FileCount:   len(files),
		ChangeCount: len(cs.Changes),
	}
	if err := historyStore.SaveChangeSet(ctx, record, records); err != nil {
		return "", err
	}
	return changeSetID, nil
}

func repositoryName(repoDir string) string {
	abs, err := filepath.Abs(repoDir)
	if err != nil {
		return "unknown"
	}
	return filepath.Base(abs)
}

func defaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "rp"))
	}
	return paths
}
