package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"dupetag/internal/annotate"
	"dupetag/internal/logging"
	"dupetag/internal/split"
)

// Clean strips decision prefixes from titles and detaches managed tags.
func (r *Runner) Clean(ctx context.Context) (annotate.CleanupSummary, error) {
	return r.cleanup(ctx, "clean", (*annotate.Writer).Cleanup)
}

// Teardown cleans like Clean and then destroys the managed tags.
func (r *Runner) Teardown(ctx context.Context) (annotate.CleanupSummary, error) {
	return r.cleanup(ctx, "remove", (*annotate.Writer).Teardown)
}

func (r *Runner) cleanup(ctx context.Context, operation string, fn func(*annotate.Writer, context.Context) (annotate.CleanupSummary, error)) (annotate.CleanupSummary, error) {
	ctx, _, logger := r.startRun(ctx, operation)
	var summary annotate.CleanupSummary
	err := r.withLock(logger, func() error {
		var err error
		summary, err = fn(r.writer(), ctx)
		return err
	})
	r.logCleanup(logger, operation, summary, err)
	return summary, err
}

func (r *Runner) logCleanup(logger *slog.Logger, operation string, s annotate.CleanupSummary, err error) {
	attrs := []logging.Attr{
		logging.String("operation", operation),
		logging.Int("titles_cleaned", s.TitlesCleaned),
		logging.Int("tags_detached", s.TagsDetached),
		logging.Int("scenes_untagged", s.ScenesUntagged),
		logging.Int("tags_destroyed", s.TagsDestroyed),
	}
	if err != nil {
		logging.ErrorWithContext(logger, "cleanup ended early", "cleanup_aborted",
			append(attrs, logging.Error(err), logging.String(logging.FieldErrorHint, "rerun once the catalog is reachable"))...,
		)
		return
	}
	attrs = append(attrs, logging.String(logging.FieldEventType, "cleanup_complete"))
	logger.Info("cleanup completed", logging.Args(attrs...)...)
}

// Split moves files that share an oshash out of multi-file scenes.
func (r *Runner) Split(ctx context.Context) (split.Summary, error) {
	ctx, _, logger := r.startRun(ctx, "split")
	var summary split.Summary
	err := r.withLock(logger, func() error {
		ignoreTagID, err := r.ignoreTagID(ctx)
		if err != nil {
			return fmt.Errorf("look up ignore tag: %w", err)
		}
		summary, err = split.New(r.svc, split.Options{IgnoreTagID: ignoreTagID, Logger: r.logger}).Run(ctx)
		return err
	})
	return summary, err
}
