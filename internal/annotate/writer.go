// Package annotate writes duplicate decisions back to the catalog as title
// prefixes and tags, and removes them again.
package annotate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"dupetag/internal/catalog"
	"dupetag/internal/logging"
	"dupetag/internal/resolve"
	"dupetag/internal/scene"
)

// Options configures a Writer.
type Options struct {
	Prefix     string
	Template   string
	KeepTag    string
	RemoveTag  string
	UnknownTag string
	Logger     *slog.Logger
}

// Writer applies decisions through the catalog. Build one per run; it
// memoizes tag ids.
type Writer struct {
	svc        catalog.Service
	tags       *TagCache
	titles     *Titler
	keepTag    string
	removeTag  string
	unknownTag string
	logger     *slog.Logger
}

// CleanupSummary reports what Cleanup and Teardown changed.
type CleanupSummary struct {
	TitlesCleaned  int
	TagsDetached   int
	TagsDestroyed  int
	ScenesUntagged int
}

// New constructs a Writer. An invalid template falls back to DefaultTemplate.
func New(svc catalog.Service, opts Options) *Writer {
	logger := logging.NewComponentLogger(opts.Logger, "annotator")
	tmpl, err := ParseTemplate(opts.Template)
	if err != nil {
		logging.WarnWithContext(logger, "issue using title template, using default template instead", "template_invalid",
			logging.String("template", opts.Template),
			logging.Error(err),
			logging.String(logging.FieldImpact, "titles use the built-in annotation format"),
			logging.String(logging.FieldErrorHint, "fix duplicates.title_template"),
		)
		tmpl, _ = ParseTemplate(DefaultTemplate)
	}
	return &Writer{
		svc:        svc,
		tags:       NewTagCache(svc),
		titles:     NewTitler(opts.Prefix, tmpl),
		keepTag:    opts.KeepTag,
		removeTag:  opts.RemoveTag,
		unknownTag: strings.TrimSpace(opts.UnknownTag),
		logger:     logger,
	}
}

// Titles exposes the title formatter used by the writer.
func (w *Writer) Titles() *Titler { return w.titles }

// Apply annotates every member of the decision according to its outcome.
func (w *Writer) Apply(ctx context.Context, d resolve.Decision) error {
	switch d.Outcome {
	case resolve.OutcomeKeep:
		if err := w.AnnotateKeep(ctx, d); err != nil {
			return err
		}
		for _, member := range d.Remove {
			if err := w.AnnotateRemove(ctx, d, member); err != nil {
				return err
			}
		}
		return nil
	case resolve.OutcomeUnknown:
		return w.AnnotateUnknown(ctx, d)
	default:
		return fmt.Errorf("annotate: unsupported outcome %v", d.Outcome)
	}
}

// AnnotateKeep marks the kept member and attaches every reason tag of the group.
func (w *Writer) AnnotateKeep(ctx context.Context, d resolve.Decision) error {
	if d.Keep == nil {
		return fmt.Errorf("annotate keep: decision has no kept scene")
	}
	tagIDs := make([]string, 0, 1+len(d.Reasons))
	id, err := w.tags.Ensure(ctx, w.keepTag)
	if err != nil {
		return err
	}
	tagIDs = append(tagIDs, id)
	for _, label := range d.Reasons {
		id, err := w.tags.Ensure(ctx, ReasonTagName(label))
		if err != nil {
			return err
		}
		tagIDs = append(tagIDs, id)
	}
	return w.update(ctx, d.Keep, d, FlagKeep, tagIDs)
}

// AnnotateRemove marks member for removal and attaches its reason tag if any.
func (w *Writer) AnnotateRemove(ctx context.Context, d resolve.Decision, member *scene.Record) error {
	id, err := w.tags.Ensure(ctx, w.removeTag)
	if err != nil {
		return err
	}
	tagIDs := []string{id}
	if label := d.RemoveReason(member.ID); label != "" {
		reasonID, err := w.tags.Ensure(ctx, ReasonTagName(label))
		if err != nil {
			return err
		}
		tagIDs = append(tagIDs, reasonID)
	}
	return w.update(ctx, member, d, FlagRemove, tagIDs)
}

// AnnotateUnknown marks every member as undecided. It does nothing when the
// unknown tag is disabled.
func (w *Writer) AnnotateUnknown(ctx context.Context, d resolve.Decision) error {
	if w.unknownTag == "" {
		w.logger.Debug("unknown annotation disabled", logging.Int64s("members", d.IDs()))
		return nil
	}
	id, err := w.tags.Ensure(ctx, w.unknownTag)
	if err != nil {
		return err
	}
	for _, member := range d.Members {
		if err := w.update(ctx, member, d, FlagUnknown, []string{id}); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) update(ctx context.Context, member *scene.Record, d resolve.Decision, flag string, tagIDs []string) error {
	title := w.titles.FormatTitle(FormatSize(d.TotalSize), d.Representative(), flag, member.Title)
	err := w.svc.UpdateScenes(ctx, catalog.SceneUpdate{
		IDs:   []string{member.IDString()},
		Title: &title,
		Tags:  &catalog.TagMutation{Mode: catalog.TagModeAdd, TagIDs: tagIDs},
	})
	if err != nil {
		return fmt.Errorf("annotate scene %d: %w", member.ID, err)
	}
	logging.WithContext(ctx, w.logger).Debug("scene annotated",
		logging.Int64(logging.FieldSceneID, member.ID),
		logging.String("flag", flag),
		logging.String("title", title),
	)
	return nil
}

// Cleanup strips decision prefixes from titles and detaches every managed tag.
// Managed tags are never created here, so running it twice is a no-op.
func (w *Writer) Cleanup(ctx context.Context) (CleanupSummary, error) {
	logger := logging.WithContext(ctx, w.logger)
	var summary CleanupSummary

	scenes, err := w.svc.FindScenes(ctx, catalog.SceneFilter{TitleRegex: w.titles.MatchPattern()})
	if err != nil {
		return summary, fmt.Errorf("find annotated scenes: %w", err)
	}
	logger.Info("cleaning titles of annotated scenes", logging.Int("scene_count", len(scenes)))
	for _, s := range scenes {
		title := w.titles.StripTitle(s.Title)
		if err := w.svc.UpdateScenes(ctx, catalog.SceneUpdate{IDs: []string{s.ID}, Title: &title}); err != nil {
			return summary, fmt.Errorf("clean title of scene %s: %w", s.ID, err)
		}
		summary.TitlesCleaned++
	}

	tags, err := w.managedTags(ctx)
	if err != nil {
		return summary, err
	}
	for _, tag := range tags {
		tagged, err := w.svc.FindScenes(ctx, catalog.SceneFilter{TagIDs: []string{tag.ID}})
		if err != nil {
			return summary, fmt.Errorf("find scenes tagged %q: %w", tag.Name, err)
		}
		if len(tagged) == 0 {
			continue
		}
		ids := make([]string, len(tagged))
		for i, s := range tagged {
			ids[i] = s.ID
		}
		logger.Info("removing tag from scenes",
			logging.String("tag", tag.Name),
			logging.Int("scene_count", len(ids)),
		)
		err = w.svc.UpdateScenes(ctx, catalog.SceneUpdate{
			IDs:  ids,
			Tags: &catalog.TagMutation{Mode: catalog.TagModeRemove, TagIDs: []string{tag.ID}},
		})
		if err != nil {
			return summary, fmt.Errorf("detach tag %q: %w", tag.Name, err)
		}
		summary.TagsDetached++
		summary.ScenesUntagged += len(ids)
	}
	return summary, nil
}

// Teardown runs Cleanup and then destroys every managed tag.
func (w *Writer) Teardown(ctx context.Context) (CleanupSummary, error) {
	summary, err := w.Cleanup(ctx)
	if err != nil {
		return summary, err
	}
	tags, err := w.managedTags(ctx)
	if err != nil {
		return summary, err
	}
	logger := logging.WithContext(ctx, w.logger)
	for _, tag := range tags {
		if err := w.svc.DestroyTag(ctx, tag.ID); err != nil {
			return summary, fmt.Errorf("destroy tag %q: %w", tag.Name, err)
		}
		w.tags.Forget(tag.Name)
		summary.TagsDestroyed++
		logger.Info("tag destroyed", logging.String("tag", tag.Name))
	}
	return summary, nil
}

// managedTags returns the reason tags plus whichever decision tags exist.
func (w *Writer) managedTags(ctx context.Context) ([]catalog.Tag, error) {
	reasons, err := w.svc.FindTags(ctx, ReasonTagPattern)
	if err != nil {
		return nil, fmt.Errorf("find reason tags: %w", err)
	}
	seen := make(map[string]struct{}, len(reasons)+3)
	tags := make([]catalog.Tag, 0, len(reasons)+3)
	for _, tag := range reasons {
		if _, ok := seen[tag.ID]; ok {
			continue
		}
		seen[tag.ID] = struct{}{}
		tags = append(tags, tag)
	}
	for _, name := range []string{w.removeTag, w.keepTag, w.unknownTag} {
		if strings.TrimSpace(name) == "" {
			continue
		}
		id, found, err := w.tags.Lookup(ctx, name)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		tags = append(tags, catalog.Tag{ID: id, Name: name})
	}
	return tags, nil
}
