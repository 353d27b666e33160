package compare

import (
	"fmt"
	"math"
	"sort"

	"dupetag/internal/scene"
)

// Verdict is the outcome of comparing two records. A nil Preferred means the
// comparison had no opinion.
type Verdict struct {
	Preferred *scene.Record
	// Reason is a human readable explanation.
	Reason string
	// Label names why the losing record should go; empty when the rule does
	// not assign one.
	Label string
	// Rule is set by the chain to the name of the deciding rule.
	Rule string
}

// Decided reports whether the verdict prefers one of the records.
func (v Verdict) Decided() bool { return v.Preferred != nil }

// Rule compares two records.
type Rule interface {
	Compare(a, b *scene.Record) (Verdict, error)
}

// RuleFunc adapts a function to Rule.
type RuleFunc func(a, b *scene.Record) (Verdict, error)

func (f RuleFunc) Compare(a, b *scene.Record) (Verdict, error) { return f(a, b) }

var registry = map[string]Rule{
	"resolution": RuleFunc(compareResolution),
	"bitrate":    RuleFunc(compareBitRate),
	"codec":      RuleFunc(compareCodec),
	"size":       RuleFunc(compareSize),
	"age":        RuleFunc(compareAge),
	"framerate":  RuleFunc(compareFrameRate),
	"duration":   RuleFunc(compareDuration),
}

// RuleNames lists every registered rule name in sorted order.
func RuleNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// minDurationGap is the smallest duration difference the duration rule acts on.
const minDurationGap = 1.0

func compareResolution(a, b *scene.Record) (Verdict, error) {
	if a.Height == b.Height && a.Width == b.Width {
		return Verdict{}, nil
	}
	better, worse := a, b
	if b.Height > a.Height || (b.Height == a.Height && b.Width > a.Width) {
		better, worse = b, a
	}
	return Verdict{
		Preferred: better,
		Reason:    fmt.Sprintf("better resolution %d:%dx%d > %d:%dx%d", better.ID, better.Width, better.Height, worse.ID, worse.Width, worse.Height),
		Label:     "resolution",
	}, nil
}

func compareBitRate(a, b *scene.Record) (Verdict, error) {
	if a.BitRate <= 0 || b.BitRate <= 0 || a.BitRate == b.BitRate {
		return Verdict{}, nil
	}
	better, worse := a, b
	if b.BitRate > a.BitRate {
		better, worse = b, a
	}
	return Verdict{
		Preferred: better,
		Reason:    fmt.Sprintf("higher bitrate %d:%dbps > %d:%dbps", better.ID, better.BitRate, worse.ID, worse.BitRate),
		Label:     "bitrate",
	}, nil
}

// compareCodec prefers the lower rank. An unranked codec always loses to a
// ranked one.
func compareCodec(a, b *scene.Record) (Verdict, error) {
	rankA, okA := a.CodecRank()
	rankB, okB := b.CodecRank()
	var better, worse *scene.Record
	switch {
	case !okA && !okB:
		return Verdict{}, nil
	case !okA:
		better, worse = b, a
	case !okB:
		better, worse = a, b
	case rankA == rankB:
		return Verdict{}, nil
	case rankA < rankB:
		better, worse = a, b
	default:
		better, worse = b, a
	}
	return Verdict{
		Preferred: better,
		Reason:    fmt.Sprintf("preferred codec %d:%s over %d:%s", better.ID, better.Codec, worse.ID, worse.Codec),
		Label:     "codec",
	}, nil
}

func compareSize(a, b *scene.Record) (Verdict, error) {
	if a.Size == b.Size {
		return Verdict{}, nil
	}
	better, worse := a, b
	if b.Size > a.Size {
		better, worse = b, a
	}
	return Verdict{
		Preferred: better,
		Reason:    fmt.Sprintf("larger file %d:%d > %d:%d bytes", better.ID, better.Size, worse.ID, worse.Size),
	}, nil
}

// compareAge keeps the file that was registered first.
func compareAge(a, b *scene.Record) (Verdict, error) {
	if a.CreatedAt.IsZero() || b.CreatedAt.IsZero() || a.CreatedAt.Equal(b.CreatedAt) {
		return Verdict{}, nil
	}
	better, worse := a, b
	if b.CreatedAt.Before(a.CreatedAt) {
		better, worse = b, a
	}
	return Verdict{
		Preferred: better,
		Reason:    fmt.Sprintf("older file %d:%s < %d:%s", better.ID, better.CreatedAt.Format("2006-01-02"), worse.ID, worse.CreatedAt.Format("2006-01-02")),
		Label:     "age",
	}, nil
}

func compareFrameRate(a, b *scene.Record) (Verdict, error) {
	if a.FrameRate == b.FrameRate {
		return Verdict{}, nil
	}
	better, worse := a, b
	if b.FrameRate > a.FrameRate {
		better, worse = b, a
	}
	return Verdict{
		Preferred: better,
		Reason:    fmt.Sprintf("higher frame rate %d:%dfps > %d:%dfps", better.ID, better.FrameRate, worse.ID, worse.FrameRate),
		Label:     "framerate",
	}, nil
}

func compareDuration(a, b *scene.Record) (Verdict, error) {
	if math.IsNaN(a.Duration) || math.IsNaN(b.Duration) {
		return Verdict{}, fmt.Errorf("duration is not a number")
	}
	if math.Abs(a.Duration-b.Duration) < minDurationGap {
		return Verdict{}, nil
	}
	better, worse := a, b
	if b.Duration > a.Duration {
		better, worse = b, a
	}
	return Verdict{
		Preferred: better,
		Reason:    fmt.Sprintf("longer duration %d:%.0fs > %d:%.0fs", better.ID, better.Duration, worse.ID, worse.Duration),
		Label:     "duration",
	}, nil
}
