package resolve_test

import (
	"context"
	"testing"

	"dupetag/internal/catalog"
	"dupetag/internal/compare"
	"dupetag/internal/logging"
	"dupetag/internal/resolve"
	"dupetag/internal/scene"
	"dupetag/internal/testsupport"
)

const mb = 1_000_000

func newResolver(t *testing.T, rules []string, opts resolve.Options) *resolve.Resolver {
	t.Helper()
	chain, err := compare.NewChain(rules, compare.Options{Logger: logging.NewNop()})
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	builder := scene.NewBuilder(map[string]int{"HEVC": 1, "H264": 2}, logging.NewNop())
	opts.Logger = logging.NewNop()
	return resolve.New(chain, builder, opts)
}

func TestResolveKeepsLargestBySizeWithoutLabels(t *testing.T) {
	r := newResolver(t, []string{"size"}, resolve.Options{})
	group := []catalog.RawScene{
		testsupport.RawScene(1, testsupport.WithSize(100*mb)),
		testsupport.RawScene(2, testsupport.WithSize(200*mb)),
		testsupport.RawScene(3, testsupport.WithSize(150*mb)),
	}

	d, ok := r.Resolve(context.Background(), group)
	if !ok {
		t.Fatal("expected a decision")
	}
	if d.Outcome != resolve.OutcomeKeep || d.Keep.ID != 2 {
		t.Fatalf("unexpected decision: outcome=%v keep=%v", d.Outcome, d.Keep)
	}
	if got := d.RemoveIDs(); len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("remove ids = %v", got)
	}
	if len(d.Reasons) != 0 {
		t.Fatalf("expected no reasons, got %v", d.Reasons)
	}
	if d.TotalSize != 450*mb {
		t.Fatalf("total size = %d", d.TotalSize)
	}
	if d.ReclaimableBytes() != 250*mb {
		t.Fatalf("reclaimable = %d", d.ReclaimableBytes())
	}
	if d.Representative() != 2 {
		t.Fatalf("representative = %d", d.Representative())
	}
}

func TestResolveTwoRecordDeadlockIsUnknown(t *testing.T) {
	r := newResolver(t, []string{"resolution", "bitrate", "codec", "size", "age"}, resolve.Options{})
	group := []catalog.RawScene{testsupport.RawScene(10), testsupport.RawScene(11)}

	d, ok := r.Resolve(context.Background(), group)
	if !ok {
		t.Fatal("expected a decision")
	}
	if d.Outcome != resolve.OutcomeUnknown || d.Keep != nil {
		t.Fatalf("expected unknown, got %v", d.Outcome)
	}
	if ids := d.IDs(); len(ids) != 2 || ids[0] != 10 || ids[1] != 11 {
		t.Fatalf("ids = %v", ids)
	}
	if len(d.Remove) != 0 {
		t.Fatalf("unknown outcome must not remove anything: %v", d.RemoveIDs())
	}
	if d.Representative() != 10 {
		t.Fatalf("representative = %d", d.Representative())
	}
}

func TestResolveDeadlockClearedByLaterWinner(t *testing.T) {
	r := newResolver(t, []string{"size"}, resolve.Options{})
	group := []catalog.RawScene{
		testsupport.RawScene(1, testsupport.WithSize(100)),
		testsupport.RawScene(2, testsupport.WithSize(100)),
		testsupport.RawScene(3, testsupport.WithSize(300)),
	}
	d, ok := r.Resolve(context.Background(), group)
	if !ok || d.Outcome != resolve.OutcomeKeep || d.Keep.ID != 3 {
		t.Fatalf("expected keep 3, got ok=%v %v %v", ok, d.Outcome, d.Keep)
	}
}

func TestResolveDeadlockAfterWinnerIsUnknown(t *testing.T) {
	r := newResolver(t, []string{"size"}, resolve.Options{})
	group := []catalog.RawScene{
		testsupport.RawScene(1, testsupport.WithSize(300)),
		testsupport.RawScene(2, testsupport.WithSize(100)),
		testsupport.RawScene(3, testsupport.WithSize(300)),
	}
	d, ok := r.Resolve(context.Background(), group)
	if !ok || d.Outcome != resolve.OutcomeUnknown {
		t.Fatalf("expected unknown, got ok=%v %v", ok, d.Outcome)
	}
	if len(d.Members) != 3 {
		t.Fatalf("members = %v", d.IDs())
	}
}

func TestResolveExcludesMultiFileEntry(t *testing.T) {
	r := newResolver(t, []string{"size"}, resolve.Options{})
	group := []catalog.RawScene{
		testsupport.RawScene(1, testsupport.WithExtraFile(testsupport.RawFile("x"))),
		testsupport.RawScene(2),
	}
	if _, ok := r.Resolve(context.Background(), group); ok {
		t.Fatal("expected group to be skipped")
	}

	group = append(group, testsupport.RawScene(3, testsupport.WithSize(1)))
	d, ok := r.Resolve(context.Background(), group)
	if !ok {
		t.Fatal("expected a decision once two valid members remain")
	}
	if ids := d.IDs(); len(ids) != 2 || ids[0] != 2 || ids[1] != 3 {
		t.Fatalf("ids = %v", ids)
	}
}

func TestResolveSkipsIgnorableMembers(t *testing.T) {
	r := newResolver(t, []string{"size"}, resolve.Options{
		IgnoreTagID: "t9",
		IgnorePaths: []string{"/media/keep/"},
	})
	group := []catalog.RawScene{
		testsupport.RawScene(1, testsupport.WithTags("t9")),
		testsupport.RawScene(2, testsupport.WithPath("/media/keep/a.mp4")),
		testsupport.RawScene(3, testsupport.WithTags("t1", "t9")),
	}
	if _, ok := r.Resolve(context.Background(), group); ok {
		t.Fatal("expected all-ignorable group to be skipped")
	}
}

func TestResolveIgnorePathMatchesWholeComponents(t *testing.T) {
	r := newResolver(t, []string{"size"}, resolve.Options{IgnorePaths: []string{"/media/keep"}})
	group := []catalog.RawScene{
		testsupport.RawScene(1, testsupport.WithPath("/media/keeper/a.mp4"), testsupport.WithSize(5)),
		testsupport.RawScene(2, testsupport.WithPath("/media/keep/sub/b.mp4"), testsupport.WithSize(9)),
		testsupport.RawScene(3, testsupport.WithPath("/media/other/c.mp4"), testsupport.WithSize(7)),
	}
	d, ok := r.Resolve(context.Background(), group)
	if !ok {
		t.Fatal("expected a decision")
	}
	if ids := d.IDs(); len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Fatalf("ids = %v", ids)
	}
	if d.Keep.ID != 3 {
		t.Fatalf("keep = %d", d.Keep.ID)
	}
}

func TestResolveCollectsDistinctReasons(t *testing.T) {
	r := newResolver(t, []string{"resolution", "codec", "size"}, resolve.Options{})
	group := []catalog.RawScene{
		testsupport.RawScene(1, testsupport.WithResolution(1280, 720)),
		testsupport.RawScene(2, testsupport.WithResolution(1920, 1080), testsupport.WithCodec("hevc")),
		testsupport.RawScene(3, testsupport.WithResolution(1280, 720)),
		testsupport.RawScene(4, testsupport.WithResolution(1920, 1080)),
		testsupport.RawScene(5, testsupport.WithResolution(1920, 1080), testsupport.WithCodec("hevc"), testsupport.WithSize(1)),
	}
	d, ok := r.Resolve(context.Background(), group)
	if !ok || d.Outcome != resolve.OutcomeKeep {
		t.Fatalf("expected keep, got ok=%v %v", ok, d.Outcome)
	}
	if d.Keep.ID != 2 {
		t.Fatalf("keep = %d", d.Keep.ID)
	}
	want := []string{"resolution", "codec"}
	if len(d.Reasons) != len(want) || d.Reasons[0] != want[0] || d.Reasons[1] != want[1] {
		t.Fatalf("reasons = %v", d.Reasons)
	}
	expect := map[int64]string{1: "resolution", 3: "resolution", 4: "codec", 5: ""}
	for id, label := range expect {
		if got := d.RemoveReason(id); got != label {
			t.Fatalf("remove reason for %d = %q, want %q", id, got, label)
		}
	}
	if d.RemoveReason(2) != "" {
		t.Fatal("kept record must not carry a remove reason")
	}
}

// recordingEvaluator prefers the higher id and records every loser.
type recordingEvaluator struct {
	losers map[int64]bool
	pairs  [][2]int64
}

func (e *recordingEvaluator) Evaluate(a, b *scene.Record) compare.Verdict {
	e.pairs = append(e.pairs, [2]int64{a.ID, b.ID})
	winner, loser := a, b
	if b.ID > a.ID {
		winner, loser = b, a
	}
	e.losers[loser.ID] = true
	return compare.Verdict{Preferred: winner, Label: "id"}
}

func TestResolveFoldNeverKeepsAnEarlierLoser(t *testing.T) {
	eval := &recordingEvaluator{losers: map[int64]bool{}}
	builder := scene.NewBuilder(nil, logging.NewNop())
	r := resolve.New(eval, builder, resolve.Options{})
	group := []catalog.RawScene{
		testsupport.RawScene(4), testsupport.RawScene(9), testsupport.RawScene(2), testsupport.RawScene(7),
	}
	d, ok := r.Resolve(context.Background(), group)
	if !ok || d.Keep == nil {
		t.Fatal("expected keep decision")
	}
	if d.Keep.ID != 9 || eval.losers[d.Keep.ID] {
		t.Fatalf("keep = %d, losers = %v", d.Keep.ID, eval.losers)
	}
	// The fold compares against the running best only: N-1 comparisons.
	if len(eval.pairs) != 3 {
		t.Fatalf("pairs = %v", eval.pairs)
	}
	for _, p := range eval.pairs[1:] {
		if p[0] != 9 {
			t.Fatalf("expected running best 9 on the left, got %v", eval.pairs)
		}
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	r := newResolver(t, []string{"resolution", "bitrate", "codec", "size", "age"}, resolve.Options{})
	group := []catalog.RawScene{
		testsupport.RawScene(1, testsupport.WithBitRate(3_000_000)),
		testsupport.RawScene(2, testsupport.WithCodec("hevc")),
		testsupport.RawScene(3, testsupport.WithBitRate(9_000_000)),
	}
	first, _ := r.Resolve(context.Background(), group)
	for i := 0; i < 20; i++ {
		again, _ := r.Resolve(context.Background(), group)
		if again.Keep.ID != first.Keep.ID || len(again.Reasons) != len(first.Reasons) {
			t.Fatalf("run %d diverged: %d vs %d", i, again.Keep.ID, first.Keep.ID)
		}
	}
}
