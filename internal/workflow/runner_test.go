package workflow_test

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"testing"

	"github.com/gofrs/flock"

	"dupetag/internal/catalog"
	"dupetag/internal/catalog/sqlitecat"
	"dupetag/internal/compare"
	"dupetag/internal/config"
	"dupetag/internal/logging"
	"dupetag/internal/resolve"
	"dupetag/internal/scene"
	"dupetag/internal/testsupport"
	"dupetag/internal/workflow"
)

// seedCatalog registers three groups: one decided by size, one identical pair
// and one pair where a member carries the ignore tag.
func seedCatalog(t *testing.T) *testsupport.Catalog {
	t.Helper()
	cat := testsupport.NewCatalog()
	ignoreID := cat.AddTag("[Dupe: Ignore]")
	cat.AddScenes(
		testsupport.RawScene(1, testsupport.WithTitle("One"), testsupport.WithSize(100*testsupport.MiB)),
		testsupport.RawScene(2, testsupport.WithTitle("Two"), testsupport.WithSize(200*testsupport.MiB)),
		testsupport.RawScene(3, testsupport.WithTitle("Three")),
		testsupport.RawScene(4, testsupport.WithTitle("Four")),
		testsupport.RawScene(5, testsupport.WithTitle("Five"), testsupport.WithTags(ignoreID)),
		testsupport.RawScene(6, testsupport.WithTitle("Six")),
	)
	cat.AddGroup("1", "2")
	cat.AddGroup("3", "4")
	cat.AddGroup("5", "6")
	return cat
}

func newRunner(t *testing.T, cfg *config.Config, svc catalog.Service, opts ...workflow.Option) *workflow.Runner {
	t.Helper()
	runner, err := workflow.New(cfg, svc, logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("workflow.New: %v", err)
	}
	return runner
}

func sceneTitle(t *testing.T, cat *testsupport.Catalog, id string) string {
	t.Helper()
	s, ok := cat.Scene(id)
	if !ok {
		t.Fatalf("scene %s missing", id)
	}
	return s.Title
}

func TestTagAnnotatesGroupsAndCountsOutcomes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cat := seedCatalog(t)
	runner := newRunner(t, cfg, cat)

	summary, err := runner.Tag(context.Background(), catalog.DistanceExact)
	if err != nil {
		t.Fatalf("Tag: %v", err)
	}
	if summary.RunID == "" {
		t.Fatal("expected run id")
	}
	got := [6]int{summary.Groups, summary.Kept, summary.Unknown, summary.Skipped, summary.Failed, summary.RemoveCount}
	if want := [6]int{3, 1, 1, 1, 0, 1}; got != want {
		t.Fatalf("summary counts = %v, want %v", got, want)
	}
	if summary.ReclaimableBytes != 100*testsupport.MiB {
		t.Fatalf("reclaimable = %d", summary.ReclaimableBytes)
	}

	if title := sceneTitle(t, cat, "2"); title != "[PDT: 0.29G|2K] Two" {
		t.Fatalf("keep title = %q", title)
	}
	if title := sceneTitle(t, cat, "1"); title != "[PDT: 0.29G|2R] One" {
		t.Fatalf("remove title = %q", title)
	}
	if tags := cat.SceneTagNames("2"); !reflect.DeepEqual(tags, []string{"[Dupe: Keep]"}) {
		t.Fatalf("keep tags = %v", tags)
	}
	if tags := cat.SceneTagNames("1"); !reflect.DeepEqual(tags, []string{"[Dupe: Remove]"}) {
		t.Fatalf("remove tags = %v", tags)
	}
	for _, id := range []string{"3", "4"} {
		if tags := cat.SceneTagNames(id); !reflect.DeepEqual(tags, []string{"[Dupe: Unknown]"}) {
			t.Fatalf("scene %s tags = %v", id, tags)
		}
	}
	for _, id := range []string{"5", "6"} {
		if s, _ := cat.Scene(id); s.Title == "" || s.Title[0] == '[' {
			t.Fatalf("skipped group scene %s was annotated: %q", id, s.Title)
		}
	}
}

func TestTagRerunProducesSameAnnotations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cat := seedCatalog(t)
	runner := newRunner(t, cfg, cat)
	ctx := context.Background()

	if _, err := runner.Tag(ctx, catalog.DistanceExact); err != nil {
		t.Fatalf("first Tag: %v", err)
	}
	first := map[string]string{}
	for _, id := range []string{"1", "2", "3", "4"} {
		first[id] = sceneTitle(t, cat, id)
	}

	summary, err := runner.Tag(ctx, catalog.DistanceExact)
	if err != nil {
		t.Fatalf("second Tag: %v", err)
	}
	if summary.Cleanup.TitlesCleaned != 4 {
		t.Fatalf("expected 4 titles cleaned before retagging, got %#v", summary.Cleanup)
	}
	for id, title := range first {
		if got := sceneTitle(t, cat, id); got != title {
			t.Fatalf("scene %s title changed across runs: %q -> %q", id, title, got)
		}
	}
	if tags := cat.SceneTagNames("1"); !reflect.DeepEqual(tags, []string{"[Dupe: Remove]"}) {
		t.Fatalf("remove tags after rerun = %v", tags)
	}
}

func TestTagIsolatesFailingGroup(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cat := seedCatalog(t)
	cat.Fail = func(op string, ids []string) error {
		if op == "updateScenes" && slices.Contains(ids, "1") {
			return errors.New("connection reset")
		}
		return nil
	}
	runner := newRunner(t, cfg, cat)

	summary, err := runner.Tag(context.Background(), catalog.DistanceExact)
	if err != nil {
		t.Fatalf("Tag: %v", err)
	}
	if summary.Failed != 1 || summary.Kept != 0 || summary.Unknown != 1 {
		t.Fatalf("unexpected summary: %#v", summary)
	}
	if tags := cat.SceneTagNames("3"); !reflect.DeepEqual(tags, []string{"[Dupe: Unknown]"}) {
		t.Fatalf("group after the failure was not annotated: %v", tags)
	}
}

func TestTagRecoversFromPanickingGroup(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cat := seedCatalog(t)
	cat.Fail = func(op string, ids []string) error {
		if op == "updateScenes" && slices.Contains(ids, "1") {
			panic("backend exploded")
		}
		return nil
	}
	runner := newRunner(t, cfg, cat)

	summary, err := runner.Tag(context.Background(), catalog.DistanceExact)
	if err != nil {
		t.Fatalf("Tag: %v", err)
	}
	if summary.Failed != 1 || summary.Kept != 0 || summary.Unknown != 1 {
		t.Fatalf("unexpected summary: %#v", summary)
	}
	if tags := cat.SceneTagNames("3"); !reflect.DeepEqual(tags, []string{"[Dupe: Unknown]"}) {
		t.Fatalf("group after the panic was not annotated: %v", tags)
	}
}

func TestTagFailsWhenGroupsUnavailable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cat := seedCatalog(t)
	cat.Fail = func(op string, _ []string) error {
		if op == "findDuplicateGroups" {
			return errors.New("503")
		}
		return nil
	}
	runner := newRunner(t, cfg, cat)

	_, err := runner.Tag(context.Background(), catalog.DistanceHigh)
	if !errors.Is(err, catalog.ErrCatalog) {
		t.Fatalf("expected catalog error, got %v", err)
	}
	if len(cat.Updates) != 0 {
		t.Fatalf("expected no updates, got %d", len(cat.Updates))
	}
}

func TestPlanDoesNotWrite(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cat := seedCatalog(t)
	runner := newRunner(t, cfg, cat)

	plan, err := runner.Plan(context.Background(), catalog.DistanceExact)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if !plan.Summary.DryRun || len(plan.Decisions) != 2 {
		t.Fatalf("unexpected plan: %#v", plan.Summary)
	}
	if plan.Decisions[0].Outcome != resolve.OutcomeKeep || plan.Decisions[0].Keep.ID != 2 {
		t.Fatalf("unexpected first decision: %#v", plan.Decisions[0])
	}
	if plan.Decisions[1].Outcome != resolve.OutcomeUnknown {
		t.Fatalf("unexpected second decision: %#v", plan.Decisions[1])
	}
	if len(cat.Updates) != 0 || cat.Calls["findOrCreateTag"] != 0 {
		t.Fatalf("plan wrote to the catalog: updates=%d creates=%d", len(cat.Updates), cat.Calls["findOrCreateTag"])
	}
}

func TestPlanStopsWhenCanceled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner := newRunner(t, cfg, seedCatalog(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	plan, err := runner.Plan(ctx, catalog.DistanceExact)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(plan.Decisions) != 0 {
		t.Fatalf("expected no decisions, got %d", len(plan.Decisions))
	}
}

func TestRunLockExcludesConcurrentRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	cat := seedCatalog(t)
	runner := newRunner(t, cfg, cat)
	ctx := context.Background()

	held := flock.New(cfg.LockPath())
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock = %v, %v", ok, err)
	}

	if _, err := runner.Tag(ctx, catalog.DistanceExact); !errors.Is(err, workflow.ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress from Tag, got %v", err)
	}
	if _, err := runner.Clean(ctx); !errors.Is(err, workflow.ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress from Clean, got %v", err)
	}
	if len(cat.Updates) != 0 {
		t.Fatalf("locked run wrote %d updates", len(cat.Updates))
	}
	if _, err := runner.Plan(ctx, catalog.DistanceExact); err != nil {
		t.Fatalf("Plan should not need the lock: %v", err)
	}

	if err := held.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if _, err := runner.Tag(ctx, catalog.DistanceExact); err != nil {
		t.Fatalf("Tag after unlock: %v", err)
	}
}

func TestNewRejectsUnknownComparator(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPriority("resolution", "sharpness"))
	_, err := workflow.New(cfg, testsupport.NewCatalog(), logging.NewNop())
	var cfgErr *compare.ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Rule != "sharpness" {
		t.Fatalf("expected ConfigError for sharpness, got %v", err)
	}
}

func TestWithRulesAddsComparator(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPriority("lowest_id"))
	lowestID := compare.RuleFunc(func(a, b *scene.Record) (compare.Verdict, error) {
		if a.ID < b.ID {
			return compare.Verdict{Preferred: a, Reason: "lower id"}, nil
		}
		return compare.Verdict{Preferred: b, Reason: "lower id"}, nil
	})
	runner := newRunner(t, cfg, seedCatalog(t), workflow.WithRules(map[string]compare.Rule{"lowest_id": lowestID}))

	plan, err := runner.Plan(context.Background(), catalog.DistanceExact)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.Summary.Kept != 2 || plan.Decisions[0].Keep.ID != 1 || plan.Decisions[1].Keep.ID != 3 {
		t.Fatalf("unexpected plan: %#v", plan.Summary)
	}
}

func TestTeardownDestroysManagedTags(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cat := seedCatalog(t)
	runner := newRunner(t, cfg, cat)
	ctx := context.Background()

	if _, err := runner.Tag(ctx, catalog.DistanceExact); err != nil {
		t.Fatalf("Tag: %v", err)
	}
	summary, err := runner.Teardown(ctx)
	if err != nil {
		t.Fatalf("Teardown: %v", err)
	}
	if summary.TagsDestroyed != 3 || summary.TitlesCleaned != 4 {
		t.Fatalf("unexpected teardown summary: %#v", summary)
	}
	if title := sceneTitle(t, cat, "2"); title != "Two" {
		t.Fatalf("title not restored: %q", title)
	}
	if _, ok := cat.TagID("[Dupe: Ignore]"); !ok {
		t.Fatal("ignore tag must survive teardown")
	}
}

func TestSplitAndSceneForPath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cat := testsupport.NewCatalog()
	shared := catalog.Fingerprint{Type: "oshash", Value: "abcd"}
	cat.AddScenes(testsupport.RawScene(1,
		testsupport.WithTitle("Combined"),
		testsupport.WithFingerprint("oshash", "abcd"),
		testsupport.WithExtraFile(testsupport.RawFile("f9", shared)),
	))
	runner := newRunner(t, cfg, cat)
	ctx := context.Background()

	summary, err := runner.Split(ctx)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if summary.ScenesCreated != 1 {
		t.Fatalf("unexpected split summary: %#v", summary)
	}

	scenes, err := runner.SceneForPath(ctx, "/media/library/scene-1.mp4")
	if err != nil {
		t.Fatalf("SceneForPath: %v", err)
	}
	if len(scenes) != 1 || scenes[0].ID != "1" {
		t.Fatalf("unexpected scenes: %#v", scenes)
	}
	if _, err := runner.SceneForPath(ctx, " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestOpenCatalogSelectsBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	svc, closeFn, err := workflow.OpenCatalog(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("OpenCatalog sqlite: %v", err)
	}
	if _, ok := svc.(*sqlitecat.Store); !ok {
		t.Fatalf("expected sqlite store, got %T", svc)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	cfg.Catalog.Backend = config.BackendStash
	cfg.Catalog.URL = "http://127.0.0.1:1/graphql"
	svc, closeFn, err = workflow.OpenCatalog(cfg, logging.NewNop())
	if err != nil || svc == nil {
		t.Fatalf("OpenCatalog stash: %v", err)
	}
	_ = closeFn()

	cfg.Catalog.Backend = "ftp"
	if _, _, err := workflow.OpenCatalog(cfg, logging.NewNop()); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
