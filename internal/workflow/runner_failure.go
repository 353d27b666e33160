package workflow

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"dupetag/internal/catalog"
	"dupetag/internal/logging"
	"dupetag/internal/resolve"
)

var errGroupPanic = errors.New("group processing panicked")

type kindedError interface {
	ErrorKind() string
}

// errorKind classifies err for logs; unclassified errors report "unknown".
func errorKind(err error) string {
	var kinded kindedError
	if errors.As(err, &kinded) {
		if kind := strings.TrimSpace(kinded.ErrorKind()); kind != "" {
			return kind
		}
	}
	if errors.Is(err, errGroupPanic) {
		return "panic"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "unknown"
}

// handleGroupFailure logs a group that could not be processed. d is zero
// when resolving itself failed, so members come from the raw group.
func (r *Runner) handleGroupFailure(ctx context.Context, group []catalog.RawScene, d resolve.Decision, err error) {
	logger := logging.WithContext(ctx, r.logger)
	members := make([]string, 0, len(group))
	if ids := d.IDs(); len(ids) > 0 {
		for _, id := range ids {
			members = append(members, strconv.FormatInt(id, 10))
		}
	} else {
		for _, s := range group {
			members = append(members, s.ID)
		}
	}
	logging.ErrorWithContext(logger, "group annotation failed; continuing with next group", "group_failed",
		logging.Error(err),
		logging.String("error_kind", errorKind(err)),
		logging.String("outcome", d.Outcome.String()),
		logging.Strings("members", members),
		logging.String(logging.FieldImpact, "group may be partially annotated until the next run"),
		logging.String(logging.FieldErrorHint, "check catalog connectivity; the next tag run cleans and retries"),
	)
}
