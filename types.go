package prethrift

import "time"

// Garment is a listing handed to IngestGarment. Attributes are never
// supplied by the caller: the ingest pipeline extracts them from the title,
// description, and image.
type Garment struct {
	ID          string
	Title       string
	Brand       string
	Price       float64
	Currency    string
	ImagePath   string
	Description string
	Extras      map[string]string
}

// Attribute is one extracted taxonomy assignment.
type Attribute struct {
	Family     string
	Value      string
	Confidence float64
	Source     string
}

// GarmentInfo is a stored garment together with its extracted attributes.
type GarmentInfo struct {
	Garment
	Attributes []Attribute
}

// SearchRequest describes one discovery query. At least one of Query and
// ImageRef must be set; Limit defaults to 20. Force overrides an off-topic
// block, never an ambiguity block.
type SearchRequest struct {
	Query    string
	ImageRef string
	UserID   string
	Limit    int
	Force    bool
}

// VerdictStatus classifies the guardrail outcome.
type VerdictStatus string

// Verdict status values.
const (
	VerdictOK        VerdictStatus = "ok"
	VerdictAmbiguous VerdictStatus = "ambiguous"
	VerdictOffTopic  VerdictStatus = "off_topic"
)

// Verdict is the guardrail's structured answer. A blocked query is a valid
// response, not an error.
type Verdict struct {
	Status VerdictStatus
	// Reason explains a block. It survives a force override.
	Reason string
	// Interpretations lists candidate readings of an ambiguous query.
	Interpretations []string
	// Overridden reports that the caller forced past an off-topic block.
	Overridden bool
}

// ScoreBreakdown itemizes the blended ranking terms.
type ScoreBreakdown struct {
	Similarity       float64
	AttributeOverlap float64
	Preference       float64
}

// SearchResult is a single ranked hit.
type SearchResult struct {
	Garment   GarmentInfo
	Score     float64
	Breakdown ScoreBreakdown
}

// SearchResponse carries the verdict, the ranked results, and any degraded
// pipeline stages (see the degraded flag constants).
type SearchResponse struct {
	Verdict  Verdict
	Results  []SearchResult
	Degraded []string
}

// Blocked reports whether the guardrail stopped the query before retrieval.
func (r *SearchResponse) Blocked() bool {
	return r.Verdict.Status != VerdictOK
}

// Action is a feedback event kind.
type Action string

// Feedback actions, strongest signal first.
const (
	ActionLike    Action = "like"
	ActionDislike Action = "dislike"
	ActionClick   Action = "click"
	ActionIgnore  Action = "ignore"
)

// FeedbackEvent records one user interaction with a garment. EventID is
// the caller's delivery id for deduplication; when empty a fresh one is
// generated and the event is never deduplicated.
type FeedbackEvent struct {
	EventID   string
	UserID    string
	GarmentID string
	Action    Action
}

// SimilarGarment is one more-like-this hit.
type SimilarGarment struct {
	Garment    GarmentInfo
	Similarity float64
}

// Preferences is a user's decayed taste snapshot. Weights are keyed by
// "family:value" and lie in [-max, max] as configured on the server side.
type Preferences struct {
	UserID    string
	Weights   map[string]float64
	UpdatedAt time.Time
}
