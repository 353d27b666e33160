package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"dupetag/internal/annotate"
	"dupetag/internal/catalog"
	"dupetag/internal/compare"
	"dupetag/internal/config"
	"dupetag/internal/logging"
	"dupetag/internal/scene"
)

// Runner coordinates duplicate runs against one catalog.
type Runner struct {
	cfg     *config.Config
	svc     catalog.Service
	logger  *slog.Logger
	chain   *compare.Chain
	builder *scene.Builder
	lock    *runLock
}

// Option configures optional Runner behavior.
type Option func(*runnerOptions)

type runnerOptions struct {
	rules map[string]compare.Rule
}

// WithRules registers extra comparator rules, or overrides built-in ones, by name.
func WithRules(rules map[string]compare.Rule) Option {
	return func(o *runnerOptions) {
		o.rules = rules
	}
}

// New constructs a Runner. An invalid comparator order is reported as a
// *compare.ConfigError before anything touches the catalog.
func New(cfg *config.Config, svc catalog.Service, logger *slog.Logger, opts ...Option) (*Runner, error) {
	if cfg == nil || svc == nil {
		return nil, errors.New("workflow requires config and catalog")
	}
	options := &runnerOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	chain, err := compare.NewChain(cfg.Duplicates.Priority, compare.Options{Logger: logger, Rules: options.rules})
	if err != nil {
		return nil, err
	}
	return &Runner{
		cfg:     cfg,
		svc:     svc,
		logger:  logging.NewComponentLogger(logger, "workflow"),
		chain:   chain,
		builder: scene.NewBuilder(cfg.Duplicates.CodecPriority, logger),
		lock:    newRunLock(cfg.LockPath()),
	}, nil
}

// Chain returns the comparator chain built from the configured priority.
func (r *Runner) Chain() *compare.Chain { return r.chain }

func (r *Runner) writer() *annotate.Writer {
	d := r.cfg.Duplicates
	return annotate.New(r.svc, annotate.Options{
		Prefix:     d.TitlePrefix,
		Template:   d.TitleTemplate,
		KeepTag:    d.KeepTag,
		RemoveTag:  d.RemoveTag,
		UnknownTag: d.UnknownTag,
		Logger:     r.logger,
	})
}

// startRun attaches a fresh run id to ctx.
func (r *Runner) startRun(ctx context.Context, operation string) (context.Context, string, *slog.Logger) {
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, r.logger)
	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("operation", operation),
	)
	return ctx, runID, logger
}

// withLock runs fn while holding the run lock.
func (r *Runner) withLock(logger *slog.Logger, fn func() error) error {
	if err := r.lock.Acquire(); err != nil {
		return err
	}
	defer func() {
		if err := r.lock.Release(); err != nil {
			logging.WarnWithContext(logger, "failed to release run lock", "lock_release_failed",
				logging.Error(err),
				logging.String("lock", r.lock.Path()),
				logging.String(logging.FieldImpact, "a stale lock file may remain"),
				logging.String(logging.FieldErrorHint, "remove the lock file if no run is active"),
			)
		}
	}()
	return fn()
}

// ignoreTagID looks up the configured ignore tag without creating it. A tag
// that does not exist cannot be attached to any scene.
func (r *Runner) ignoreTagID(ctx context.Context) (string, error) {
	name := strings.TrimSpace(r.cfg.Duplicates.IgnoreTag)
	if name == "" {
		return "", nil
	}
	tag, ok, err := r.svc.FindTag(ctx, name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return tag.ID, nil
}

// SceneForPath returns the scenes that own a file at path.
func (r *Runner) SceneForPath(ctx context.Context, path string) ([]catalog.RawScene, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("path required")
	}
	return r.svc.FindScenes(ctx, catalog.SceneFilter{Path: path})
}
