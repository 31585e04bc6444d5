// Package verdict defines the guardrail outcome type. A blocking verdict is a
// structured result, not an error: handlers return it with HTTP 200.
package verdict

// Status is the finite state of a guardrail decision.
type Status string

const (
	// StatusOK admits the query to the pipeline.
	StatusOK Status = "ok"
	// StatusAmbiguous blocks a query whose intent cannot be resolved.
	// Never overridable by force.
	StatusAmbiguous Status = "ambiguous"
	// StatusOffTopic blocks a query outside the fashion domain.
	// Downgraded to ok by force; the reason is retained.
	StatusOffTopic Status = "off_topic"
)

// Verdict is the guardrail gate's decision for one query.
type Verdict struct {
	status          Status
	reason          string
	interpretations []string
	overridden      bool
}

// OK returns an admitting verdict.
func OK() Verdict {
	return Verdict{status: StatusOK}
}

// Ambiguous returns a blocking verdict with candidate interpretations,
// ordered most likely first.
func Ambiguous(reason string, interpretations []string) Verdict {
	return Verdict{
		status:          StatusAmbiguous,
		reason:          reason,
		interpretations: append([]string(nil), interpretations...),
	}
}

// OffTopic returns a blocking off-topic verdict.
func OffTopic(reason string) Verdict {
	return Verdict{status: StatusOffTopic, reason: reason}
}

// Override downgrades an off-topic verdict to ok, retaining the reason.
// Any other verdict is returned unchanged: ambiguity is not overridable.
func (v Verdict) Override() Verdict {
	if v.status != StatusOffTopic {
		return v
	}
	return Verdict{status: StatusOK, reason: v.reason, overridden: true}
}

// Status returns the decision state.
func (v Verdict) Status() Status { return v.status }

// Reason returns the human-readable ground for a block (or a retained
// off-topic reason after an override).
func (v Verdict) Reason() string { return v.reason }

// Interpretations returns candidate readings of an ambiguous query.
func (v Verdict) Interpretations() []string {
	return append([]string(nil), v.interpretations...)
}

// Overridden reports whether force downgraded an off-topic block.
func (v Verdict) Overridden() bool { return v.overridden }

// Blocking reports whether the pipeline must stop before retrieval.
func (v Verdict) Blocking() bool { return v.status != StatusOK }
