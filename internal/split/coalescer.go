// Package split separates files that the catalog merged into one scene
// because they share an exact oshash.
package split

import (
	"context"
	"fmt"
	"log/slog"

	"dupetag/internal/catalog"
	"dupetag/internal/logging"
)

// DuplicateOshashQuery lists oshash fingerprints shared by more than one file.
const DuplicateOshashQuery = `SELECT fingerprint, COUNT(*) c FROM files_fingerprints WHERE type = 'oshash' GROUP BY fingerprint HAVING c > 1`

// Options configures a Coalescer.
type Options struct {
	// IgnoreTagID excludes scenes carrying the tag. Empty disables the check.
	IgnoreTagID string
	Logger      *slog.Logger
}

// Summary reports a split pass.
type Summary struct {
	Fingerprints  int
	ScenesChecked int
	ScenesCreated int
	Failed        int
	CreatedIDs    []string
}

// Coalescer runs the split pass.
type Coalescer struct {
	svc         catalog.Service
	ignoreTagID string
	logger      *slog.Logger
}

// New constructs a Coalescer.
func New(svc catalog.Service, opts Options) *Coalescer {
	return &Coalescer{
		svc:         svc,
		ignoreTagID: opts.IgnoreTagID,
		logger:      logging.NewComponentLogger(opts.Logger, "splitter"),
	}
}

// Run splits every extra file sharing a duplicated oshash into its own scene.
// A failure on one fingerprint is logged and counted and the pass continues;
// only the initial report query is fatal.
func (c *Coalescer) Run(ctx context.Context) (Summary, error) {
	logger := logging.WithContext(ctx, c.logger)
	var summary Summary

	rows, err := c.svc.RawQuery(ctx, DuplicateOshashQuery)
	if err != nil {
		return summary, fmt.Errorf("list duplicate oshash fingerprints: %w", err)
	}
	fingerprints := make([]string, 0, len(rows))
	for _, row := range rows {
		fp, ok := fingerprintFromRow(row)
		if !ok {
			logging.WarnWithContext(logger, "skipping unreadable report row", "split_row_invalid",
				logging.Any("row", row),
				logging.String(logging.FieldImpact, "fingerprint not checked"),
			)
			continue
		}
		fingerprints = append(fingerprints, fp)
	}
	summary.Fingerprints = len(fingerprints)
	logger.Info("duplicate oshash fingerprints found", logging.Int("count", len(fingerprints)))

	for i, fp := range fingerprints {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		checked, created, err := c.splitFingerprint(ctx, fp)
		summary.ScenesChecked += checked
		summary.ScenesCreated += len(created)
		summary.CreatedIDs = append(summary.CreatedIDs, created...)
		if err != nil {
			summary.Failed++
			logging.ErrorWithContext(logger, "split failed for fingerprint", "split_failed",
				logging.String("oshash", fp),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "rerun split once the catalog is reachable"),
			)
			continue
		}
		logger.Debug("fingerprint processed",
			logging.String("oshash", fp),
			logging.Int("progress", i+1),
			logging.Int("total", len(fingerprints)),
		)
	}
	return summary, nil
}

func (c *Coalescer) splitFingerprint(ctx context.Context, fp string) (int, []string, error) {
	filter := catalog.SceneFilter{Oshash: fp, MinFileCount: 1}
	if c.ignoreTagID != "" {
		filter.ExcludeTagIDs = []string{c.ignoreTagID}
	}
	scenes, err := c.svc.FindScenes(ctx, filter)
	if err != nil {
		return 0, nil, err
	}
	var created []string
	for _, s := range scenes {
		if len(s.Files) < 2 {
			continue
		}
		for _, file := range s.Files[1:] {
			value, ok := file.Fingerprint("oshash")
			if !ok || value != fp {
				continue
			}
			id, err := c.svc.CreateScene(ctx, s.Title, []string{file.ID})
			if err != nil {
				return len(scenes), created, fmt.Errorf("split file %s out of scene %s: %w", file.ID, s.ID, err)
			}
			created = append(created, id)
			logging.WithContext(ctx, c.logger).Info("file split into new scene",
				logging.String(logging.FieldSceneID, s.ID),
				logging.String("file_id", file.ID),
				logging.String("new_scene_id", id),
			)
		}
	}
	return len(scenes), created, nil
}

func fingerprintFromRow(row []any) (string, bool) {
	if len(row) == 0 {
		return "", false
	}
	switch v := row[0].(type) {
	case string:
		return v, v != ""
	case []byte:
		return string(v), len(v) > 0
	default:
		return "", false
	}
}
