package compare_test

import (
	"errors"
	"testing"

	"dupetag/internal/compare"
	"dupetag/internal/logging"
	"dupetag/internal/scene"
	"dupetag/internal/testsupport"
)

var ranks = map[string]int{"AV1": 0, "HEVC": 1, "H264": 2}

func record(t *testing.T, id int, opts ...testsupport.SceneOption) *scene.Record {
	t.Helper()
	rec, err := scene.NewBuilder(ranks, logging.NewNop()).Build(testsupport.RawScene(id, opts...))
	if err != nil {
		t.Fatalf("build record %d: %v", id, err)
	}
	return rec
}

func defaultChain(t *testing.T) *compare.Chain {
	t.Helper()
	chain, err := compare.NewChain([]string{"resolution", "bitrate", "codec", "size", "age"}, compare.Options{Logger: logging.NewNop()})
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	return chain
}

func TestEvaluateSameIDHasNoOpinion(t *testing.T) {
	chain := defaultChain(t)
	a := record(t, 5, testsupport.WithResolution(1920, 1080))
	b := record(t, 5, testsupport.WithResolution(3840, 2160))

	v := chain.Evaluate(a, b)
	if v.Decided() {
		t.Fatalf("expected no opinion, got %d", v.Preferred.ID)
	}
	if v.Reason != compare.ReasonMatchingIDs {
		t.Fatalf("reason = %q", v.Reason)
	}
}

func TestEvaluateFirstDecidingRuleWins(t *testing.T) {
	chain := defaultChain(t)
	// b has the higher resolution but a has the higher bitrate; resolution runs first.
	a := record(t, 1, testsupport.WithResolution(1280, 720), testsupport.WithBitRate(20_000_000))
	b := record(t, 2, testsupport.WithResolution(1920, 1080), testsupport.WithBitRate(4_000_000))

	v := chain.Evaluate(a, b)
	if v.Preferred != b {
		t.Fatalf("expected record 2, got %+v", v)
	}
	if v.Label != "resolution" || v.Rule != "resolution" {
		t.Fatalf("label=%q rule=%q", v.Label, v.Rule)
	}
}

func TestEvaluateWidthBreaksHeightTie(t *testing.T) {
	chain := defaultChain(t)
	a := record(t, 1, testsupport.WithResolution(1440, 1080))
	b := record(t, 2, testsupport.WithResolution(1920, 1080))
	if v := chain.Evaluate(a, b); v.Preferred != b {
		t.Fatalf("expected wider record, got %+v", v)
	}
}

func TestEvaluateSizeHasNoLabel(t *testing.T) {
	chain := defaultChain(t)
	a := record(t, 1, testsupport.WithSize(100*testsupport.MiB))
	b := record(t, 2, testsupport.WithSize(200*testsupport.MiB))

	v := chain.Evaluate(a, b)
	if v.Preferred != b {
		t.Fatalf("expected larger record, got %+v", v)
	}
	if v.Rule != "size" || v.Label != "" {
		t.Fatalf("rule=%q label=%q", v.Rule, v.Label)
	}
}

func TestEvaluateDeadlock(t *testing.T) {
	chain := defaultChain(t)
	a := record(t, 3)
	b := record(t, 4)

	v := chain.Evaluate(a, b)
	if v.Decided() {
		t.Fatalf("expected deadlock, got %d", v.Preferred.ID)
	}
	if v.Reason != "3 not worse than 4" {
		t.Fatalf("reason = %q", v.Reason)
	}
}

func TestEvaluateIsSymmetric(t *testing.T) {
	chain := defaultChain(t)
	pairs := [][2]*scene.Record{
		{record(t, 1, testsupport.WithBitRate(2_000)), record(t, 2, testsupport.WithBitRate(1_000))},
		{record(t, 3, testsupport.WithCodec("hevc")), record(t, 4, testsupport.WithCodec("h264"))},
		{record(t, 5, testsupport.WithCreatedAt("2020-01-01T00:00:00Z")), record(t, 6, testsupport.WithCreatedAt("2021-01-01T00:00:00Z"))},
	}
	for _, p := range pairs {
		forward := chain.Evaluate(p[0], p[1])
		backward := chain.Evaluate(p[1], p[0])
		if forward.Preferred == nil || forward.Preferred != backward.Preferred {
			t.Fatalf("asymmetric verdict for %d/%d: %+v vs %+v", p[0].ID, p[1].ID, forward, backward)
		}
		if forward.Preferred != p[0] {
			t.Fatalf("expected %d to win, got %d", p[0].ID, forward.Preferred.ID)
		}
	}
}

func TestBitRateIgnoresMissingValues(t *testing.T) {
	chain, err := compare.NewChain([]string{"bitrate"}, compare.Options{})
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	a := record(t, 1, testsupport.WithBitRate(0))
	b := record(t, 2, testsupport.WithBitRate(9_000_000))
	if v := chain.Evaluate(a, b); v.Decided() {
		t.Fatalf("expected no opinion, got %+v", v)
	}
}

func TestCodecUnrankedLoses(t *testing.T) {
	chain, err := compare.NewChain([]string{"codec"}, compare.Options{})
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	ranked := record(t, 1, testsupport.WithCodec("h264"))
	unranked := record(t, 2, testsupport.WithCodec("prores"))
	other := record(t, 3, testsupport.WithCodec("dnxhd"))

	if v := chain.Evaluate(unranked, ranked); v.Preferred != ranked || v.Label != "codec" {
		t.Fatalf("expected ranked codec to win, got %+v", v)
	}
	if v := chain.Evaluate(unranked, other); v.Decided() {
		t.Fatalf("expected no opinion between unranked codecs, got %+v", v)
	}
}

func TestDurationNeedsOneSecondGap(t *testing.T) {
	chain, err := compare.NewChain([]string{"duration"}, compare.Options{})
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	a := record(t, 1, testsupport.WithDuration(600))
	b := record(t, 2, testsupport.WithDuration(600.5))
	c := record(t, 3, testsupport.WithDuration(602))
	if v := chain.Evaluate(a, b); v.Decided() {
		t.Fatalf("expected no opinion, got %+v", v)
	}
	if v := chain.Evaluate(a, c); v.Preferred != c || v.Label != "duration" {
		t.Fatalf("expected longer record, got %+v", v)
	}
}

func TestFailingRuleFallsThrough(t *testing.T) {
	rules := map[string]compare.Rule{
		"broken": compare.RuleFunc(func(a, b *scene.Record) (compare.Verdict, error) {
			return compare.Verdict{}, errors.New("boom")
		}),
		"panicky": compare.RuleFunc(func(a, b *scene.Record) (compare.Verdict, error) {
			panic("unexpected")
		}),
	}
	chain, err := compare.NewChain([]string{"broken", "panicky", "size"}, compare.Options{Rules: rules})
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	a := record(t, 1, testsupport.WithSize(10))
	b := record(t, 2, testsupport.WithSize(20))
	v := chain.Evaluate(a, b)
	if v.Preferred != b || v.Rule != "size" {
		t.Fatalf("expected size to decide, got %+v", v)
	}
}

func TestRuleOutsidePairIsIgnored(t *testing.T) {
	stranger := record(t, 99)
	rules := map[string]compare.Rule{
		"rogue": compare.RuleFunc(func(a, b *scene.Record) (compare.Verdict, error) {
			return compare.Verdict{Preferred: stranger}, nil
		}),
	}
	chain, err := compare.NewChain([]string{"rogue"}, compare.Options{Rules: rules})
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	if v := chain.Evaluate(record(t, 1), record(t, 2)); v.Decided() {
		t.Fatalf("expected rogue verdict to be dropped, got %+v", v)
	}
}

func TestNewChainConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		names []string
	}{
		{"empty", nil},
		{"unknown", []string{"resolution", "sharpness"}},
		{"duplicate", []string{"size", "Size"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compare.NewChain(tt.names, compare.Options{})
			var cfgErr *compare.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
		})
	}
}

func TestNewChainNormalizesNames(t *testing.T) {
	chain, err := compare.NewChain([]string{" Resolution ", "AGE"}, compare.Options{})
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	got := chain.Names()
	if len(got) != 2 || got[0] != "resolution" || got[1] != "age" {
		t.Fatalf("names = %v", got)
	}
}
