package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dupetag/internal/catalog"
	"dupetag/internal/logging"
	"dupetag/internal/resolve"
)

// Tag removes earlier annotations, then resolves and annotates every
// duplicate group at the given distance.
func (r *Runner) Tag(ctx context.Context, distance catalog.Distance) (Summary, error) {
	ctx, runID, logger := r.startRun(ctx, "tag")
	summary := Summary{RunID: runID, Distance: distance}
	start := time.Now()

	err := r.withLock(logger, func() error {
		writer := r.writer()
		cleanup, err := writer.Cleanup(ctx)
		summary.Cleanup = cleanup
		if err != nil {
			return fmt.Errorf("clean previous annotations: %w", err)
		}
		_, err = r.processGroups(ctx, logger, distance, &summary, writer.Apply)
		return err
	})
	summary.Duration = time.Since(start)
	r.logSummary(logger, summary, err)
	return summary, err
}

// Plan resolves every group without writing to the catalog.
func (r *Runner) Plan(ctx context.Context, distance catalog.Distance) (Plan, error) {
	ctx, runID, logger := r.startRun(ctx, "plan")
	plan := Plan{Summary: Summary{RunID: runID, Distance: distance, DryRun: true}}
	start := time.Now()

	decisions, err := r.processGroups(ctx, logger, distance, &plan.Summary, nil)
	plan.Decisions = decisions
	plan.Summary.Duration = time.Since(start)
	r.logSummary(logger, plan.Summary, err)
	return plan, err
}

// processGroups resolves each group and hands decisions to apply when set.
// Only fetching the groups and cancellation end the batch early.
func (r *Runner) processGroups(ctx context.Context, logger *slog.Logger, distance catalog.Distance, summary *Summary, apply func(context.Context, resolve.Decision) error) ([]resolve.Decision, error) {
	ignoreTagID, err := r.ignoreTagID(ctx)
	if err != nil {
		return nil, fmt.Errorf("look up ignore tag: %w", err)
	}
	groups, err := r.svc.FindDuplicateGroups(ctx, distance)
	if err != nil {
		return nil, fmt.Errorf("fetch duplicate groups: %w", err)
	}
	summary.Groups = len(groups)
	logger.Info("duplicate groups fetched",
		logging.String("distance", distance.String()),
		logging.Int("groups", len(groups)),
	)

	resolver := resolve.New(r.chain, r.builder, resolve.Options{
		IgnoreTagID: ignoreTagID,
		IgnorePaths: r.cfg.Duplicates.IgnorePaths,
		Logger:      r.logger,
	})

	var decisions []resolve.Decision
	for i, group := range groups {
		if err := ctx.Err(); err != nil {
			return decisions, err
		}
		groupCtx := logging.WithGroup(ctx, i+1)
		decision, ok, err := r.processGroup(groupCtx, resolver, group, apply)
		switch {
		case err != nil:
			r.handleGroupFailure(groupCtx, group, decision, err)
			summary.Failed++
		case !ok:
			summary.Skipped++
		default:
			summary.record(decision)
			decisions = append(decisions, decision)
		}
	}
	return decisions, nil
}

// processGroup resolves one group and applies the decision. A panic is
// returned as an error so it fails this group only.
func (r *Runner) processGroup(ctx context.Context, resolver *resolve.Resolver, group []catalog.RawScene, apply func(context.Context, resolve.Decision) error) (decision resolve.Decision, ok bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", errGroupPanic, rec)
		}
	}()
	decision, ok = resolver.Resolve(ctx, group)
	if !ok || apply == nil {
		return decision, ok, nil
	}
	return decision, true, apply(ctx, decision)
}

func (r *Runner) logSummary(logger *slog.Logger, s Summary, err error) {
	attrs := []logging.Attr{
		logging.Bool("dry_run", s.DryRun),
		logging.Int("groups", s.Groups),
		logging.Int("kept", s.Kept),
		logging.Int("unknown", s.Unknown),
		logging.Int("skipped", s.Skipped),
		logging.Int("failed", s.Failed),
		logging.Int("remove_count", s.RemoveCount),
		logging.Int64("reclaimable_bytes", s.ReclaimableBytes),
		logging.Duration("duration", s.Duration),
	}
	if err != nil {
		logging.ErrorWithContext(logger, "run ended early", "run_aborted",
			append(attrs, logging.Error(err), logging.String(logging.FieldErrorHint, "check catalog connectivity and rerun"))...,
		)
		return
	}
	attrs = append(attrs, logging.String(logging.FieldEventType, "run_complete"))
	logger.Info("run completed", logging.Args(attrs...)...)
}
