package resolve

import "dupetag/internal/scene"

// Outcome classifies a resolved group.
type Outcome int

const (
	// OutcomeKeep means one member was kept and the rest marked for removal.
	OutcomeKeep Outcome = iota + 1
	// OutcomeUnknown means no member could be shown to dominate.
	OutcomeUnknown
)

func (o Outcome) String() string {
	switch o {
	case OutcomeKeep:
		return "keep"
	case OutcomeUnknown:
		return "unknown"
	default:
		return "none"
	}
}

// Decision is the result of resolving one duplicate group. It is built fresh
// for every group and never shared.
type Decision struct {
	Outcome Outcome
	// Keep is nil for unknown outcomes.
	Keep   *scene.Record
	Remove []*scene.Record
	// Members holds every filtered member in catalog order.
	Members []*scene.Record
	// Reasons lists the distinct remove labels of the removed members in the
	// order they were first assigned.
	Reasons   []string
	TotalSize int64

	removeReasons map[int64]string
}

// RemoveReason returns the label assigned to the member by the rule that
// eliminated it, or "" when none was assigned.
func (d Decision) RemoveReason(id int64) string {
	return d.removeReasons[id]
}

// Representative returns the id used in annotations for the whole group.
func (d Decision) Representative() int64 {
	if d.Keep != nil {
		return d.Keep.ID
	}
	if len(d.Members) > 0 {
		return d.Members[0].ID
	}
	return 0
}

// IDs returns the ids of every member.
func (d Decision) IDs() []int64 {
	ids := make([]int64, len(d.Members))
	for i, m := range d.Members {
		ids[i] = m.ID
	}
	return ids
}

// RemoveIDs returns the ids of the members marked for removal.
func (d Decision) RemoveIDs() []int64 {
	ids := make([]int64, len(d.Remove))
	for i, m := range d.Remove {
		ids[i] = m.ID
	}
	return ids
}

// ReclaimableBytes sums the size of the members marked for removal.
func (d Decision) ReclaimableBytes() int64 {
	var total int64
	for _, m := range d.Remove {
		total += m.Size
	}
	return total
}
