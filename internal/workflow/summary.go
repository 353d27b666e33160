package workflow

import (
	"time"

	"dupetag/internal/annotate"
	"dupetag/internal/catalog"
	"dupetag/internal/resolve"
)

// Summary reports the outcome of a tag or plan run.
type Summary struct {
	RunID    string
	Distance catalog.Distance
	DryRun   bool
	// Groups counts the groups returned by the catalog.
	Groups  int
	Kept    int
	Unknown int
	// Skipped counts groups left with fewer than two usable members.
	Skipped int
	// Failed counts groups whose annotation hit a catalog error.
	Failed           int
	RemoveCount      int
	ReclaimableBytes int64
	// Cleanup holds what the pre-run cleanup removed. Zero for dry runs.
	Cleanup  annotate.CleanupSummary
	Duration time.Duration
}

func (s *Summary) record(d resolve.Decision) {
	switch d.Outcome {
	case resolve.OutcomeKeep:
		s.Kept++
		s.RemoveCount += len(d.Remove)
		s.ReclaimableBytes += d.ReclaimableBytes()
	case resolve.OutcomeUnknown:
		s.Unknown++
	}
}

// Plan is the result of a dry run.
type Plan struct {
	Summary   Summary
	Decisions []resolve.Decision
}
