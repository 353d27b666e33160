// Package resolve turns a raw duplicate group into a keep, remove or unknown
// decision by folding the comparator chain across its members.
package resolve

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"

	"dupetag/internal/catalog"
	"dupetag/internal/compare"
	"dupetag/internal/logging"
	"dupetag/internal/scene"
)

// Evaluator compares two records.
type Evaluator interface {
	Evaluate(a, b *scene.Record) compare.Verdict
}

// Options configures member filtering.
type Options struct {
	// IgnoreTagID excludes members carrying the tag. Empty disables the check.
	IgnoreTagID string
	// IgnorePaths excludes members stored below any of these directories.
	IgnorePaths []string
	Logger      *slog.Logger
}

// Resolver resolves duplicate groups. It keeps no state between groups.
type Resolver struct {
	chain       Evaluator
	builder     *scene.Builder
	ignoreTagID string
	ignorePaths []string
	logger      *slog.Logger
}

// New constructs a Resolver.
func New(chain Evaluator, builder *scene.Builder, opts Options) *Resolver {
	paths := make([]string, 0, len(opts.IgnorePaths))
	for _, p := range opts.IgnorePaths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		paths = append(paths, filepath.Clean(p))
	}
	return &Resolver{
		chain:       chain,
		builder:     builder,
		ignoreTagID: strings.TrimSpace(opts.IgnoreTagID),
		ignorePaths: paths,
		logger:      logging.NewComponentLogger(opts.Logger, "resolver"),
	}
}

// Resolve decides the group. The boolean is false when fewer than two usable
// members remain and the group must be skipped.
func (r *Resolver) Resolve(ctx context.Context, group []catalog.RawScene) (Decision, bool) {
	logger := logging.WithContext(ctx, r.logger)

	members := r.filter(logger, r.build(logger, group))
	if len(members) < 2 {
		logger.Debug("group skipped",
			logging.Int("members", len(group)),
			logging.Int("usable", len(members)),
		)
		return Decision{}, false
	}

	decision := fold(logger, r.chain, members)
	r.logDecision(logger, decision)
	return decision, true
}

func (r *Resolver) build(logger *slog.Logger, group []catalog.RawScene) []*scene.Record {
	records := make([]*scene.Record, 0, len(group))
	seen := make(map[int64]struct{}, len(group))
	for _, raw := range group {
		rec, err := r.builder.Build(raw)
		if err != nil {
			attrs := []logging.Attr{
				logging.String(logging.FieldSceneID, raw.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "scene excluded from this duplicate group"),
			}
			var malformed *scene.MalformedRecordError
			if errors.As(err, &malformed) {
				attrs = append(attrs, logging.String("reason", malformed.Reason))
			}
			logging.WarnWithContext(logger, "issue parsing scene", "malformed_record", attrs...)
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			logger.Debug("duplicate group member ignored", logging.Int64(logging.FieldSceneID, rec.ID))
			continue
		}
		seen[rec.ID] = struct{}{}
		records = append(records, rec)
	}
	return records
}

func (r *Resolver) filter(logger *slog.Logger, records []*scene.Record) []*scene.Record {
	kept := records[:0]
	for _, rec := range records {
		if rec.HasTag(r.ignoreTagID) {
			logger.Debug("ignored by tag",
				logging.Int64(logging.FieldSceneID, rec.ID),
				logging.String("title", rec.Title),
			)
			continue
		}
		if dir, ok := r.ignoredDir(rec.Path); ok {
			logger.Info("ignored by path",
				logging.Int64(logging.FieldSceneID, rec.ID),
				logging.String("path", rec.Path),
				logging.String("ignore_path", dir),
			)
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}

// ignoredDir reports the configured directory that contains path. Matching is
// by whole path components, so /media/a does not cover /media/ab.
func (r *Resolver) ignoredDir(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	clean := filepath.Clean(path)
	for _, dir := range r.ignorePaths {
		prefix := dir
		if !strings.HasSuffix(prefix, string(filepath.Separator)) {
			prefix += string(filepath.Separator)
		}
		if strings.HasPrefix(clean, prefix) {
			return dir, true
		}
	}
	return "", false
}

// fold walks the members once, comparing each candidate with the running
// best only. A deadlock marks the running best as contested until a candidate
// beats it.
func fold(logger *slog.Logger, chain Evaluator, members []*scene.Record) Decision {
	best := members[0]
	contested := false
	labels := make(map[int64]string, len(members))
	order := make([]int64, 0, len(members))
	assign := func(loser *scene.Record, label string) {
		if _, ok := labels[loser.ID]; !ok {
			order = append(order, loser.ID)
		}
		labels[loser.ID] = label
	}

	var total int64
	for _, m := range members {
		total += m.Size
	}

	for _, candidate := range members[1:] {
		verdict := chain.Evaluate(best, candidate)
		switch verdict.Preferred {
		case candidate:
			logger.Debug("candidate preferred",
				logging.Int64("better_id", candidate.ID),
				logging.Int64("worse_id", best.ID),
				logging.String("rule", verdict.Rule),
				logging.String("reason", verdict.Reason),
			)
			assign(best, verdict.Label)
			best = candidate
			contested = false
		case best:
			logger.Debug("best retained",
				logging.Int64("better_id", best.ID),
				logging.Int64("worse_id", candidate.ID),
				logging.String("rule", verdict.Rule),
				logging.String("reason", verdict.Reason),
			)
			assign(candidate, verdict.Label)
		default:
			logger.Debug("comparison deadlocked",
				logging.Int64("best_id", best.ID),
				logging.Int64("candidate_id", candidate.ID),
				logging.String("reason", verdict.Reason),
			)
			contested = true
		}
	}

	if contested {
		return Decision{
			Outcome:   OutcomeUnknown,
			Members:   members,
			TotalSize: total,
		}
	}

	decision := Decision{
		Outcome:       OutcomeKeep,
		Keep:          best,
		Members:       members,
		TotalSize:     total,
		removeReasons: make(map[int64]string),
	}
	seenReason := make(map[string]struct{})
	for _, m := range members {
		if m != best {
			decision.Remove = append(decision.Remove, m)
		}
	}
	for _, id := range order {
		label := labels[id]
		if id == best.ID || label == "" {
			continue
		}
		decision.removeReasons[id] = label
		if _, ok := seenReason[label]; ok {
			continue
		}
		seenReason[label] = struct{}{}
		decision.Reasons = append(decision.Reasons, label)
	}
	return decision
}

func (r *Resolver) logDecision(logger *slog.Logger, d Decision) {
	switch d.Outcome {
	case OutcomeKeep:
		attrs := logging.DecisionAttrs("duplicate_group", "keep", strings.Join(d.Reasons, ","))
		attrs = append(attrs,
			logging.Int64("keep_id", d.Keep.ID),
			logging.Int64s("members", d.IDs()),
			logging.Int64("total_size", d.TotalSize),
		)
		logger.Info("best scene selected", logging.Args(attrs...)...)
	case OutcomeUnknown:
		attrs := logging.DecisionAttrs("duplicate_group", "unknown", "no member dominates the group")
		attrs = append(attrs,
			logging.Int64s("members", d.IDs()),
			logging.Int64("total_size", d.TotalSize),
		)
		logger.Info("could not determine better scene", logging.Args(attrs...)...)
	}
}
