// Package filter classifies historical event records for compaction. Each
// filter answers Accept, Reject, or Undecided per event; the compaction
// driver combines the answers of all registered filters.
package filter

// Decision is the three-valued outcome of classifying one event. The zero
// value is Undecided, the abstention: it is the identity of the composition
// rule and can never be mistaken for a negative answer.
type Decision int

const (
	// Undecided means the filter has no authority over this event.
	Undecided Decision = iota
	// Accept means the event must be kept.
	Accept
	// Reject means the event is known to be no longer needed.
	Reject
)

func (d Decision) String() string {
	switch d {
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	default:
		return "undecided"
	}
}

// Or combines two decisions: any Accept wins, a Reject beats abstention,
// and two abstentions stay Undecided.
func (d Decision) Or(other Decision) Decision {
	switch {
	case d == Accept || other == Accept:
		return Accept
	case d == Reject || other == Reject:
		return Reject
	default:
		return Undecided
	}
}

// Combine folds decisions with Or. An empty input is Undecided.
func Combine(ds ...Decision) Decision {
	out := Undecided
	for _, d := range ds {
		out = out.Or(d)
	}
	return out
}
