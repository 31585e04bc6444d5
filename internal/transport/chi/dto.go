package chi

import (
	"fmt"
	"time"

	"github.com/wabenzi/prethrift/internal/domain/garment"
	"github.com/wabenzi/prethrift/internal/domain/preference"
	"github.com/wabenzi/prethrift/internal/domain/result"
	"github.com/wabenzi/prethrift/internal/domain/verdict"
	discoveryuc "github.com/wabenzi/prethrift/internal/usecase/discovery"
)

// ErrorCode identifies an API error class.
type ErrorCode string

// API error codes.
const (
	ErrorCodeBadRequest             ErrorCode = "bad_request"
	ErrorCodeUnauthorized           ErrorCode = "unauthorized"
	ErrorCodeValidationFailed       ErrorCode = "validation_failed"
	ErrorCodeGarmentNotFound        ErrorCode = "garment_not_found"
	ErrorCodeUserNotFound           ErrorCode = "user_not_found"
	ErrorCodeIndexUnavailable       ErrorCode = "index_unavailable"
	ErrorCodePreferenceUnavailable  ErrorCode = "preference_unavailable"
	ErrorCodeEmbeddingQuotaExceeded ErrorCode = "embedding_quota_exceeded"
	ErrorCodeEmbeddingUnavailable   ErrorCode = "embedding_unavailable"
	ErrorCodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

type searchRequest struct {
	Query    string `json:"query"`
	ImageRef string `json:"image_ref,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	Limit    *int   `json:"limit,omitempty"`
	Force    bool   `json:"force,omitempty"`
}

// searchResponse is always 200 for an answered query: a blocked query
// carries a non-ok verdict and empty results rather than an error.
type searchResponse struct {
	Verdict  verdictResponse `json:"verdict"`
	Results  []searchResult  `json:"results"`
	Degraded []string        `json:"degraded,omitempty"`
	Limit    int             `json:"limit"`
	Total    int             `json:"total"`
}

type verdictResponse struct {
	Status          string   `json:"status"`
	Reason          string   `json:"reason,omitempty"`
	Interpretations []string `json:"interpretations,omitempty"`
	Overridden      bool     `json:"overridden,omitempty"`
}

type searchResult struct {
	Garment   garmentResponse `json:"garment"`
	Score     float64         `json:"score"`
	Breakdown scoreBreakdown  `json:"breakdown"`
}

type scoreBreakdown struct {
	Similarity       float64 `json:"similarity"`
	AttributeOverlap float64 `json:"attribute_overlap"`
	Preference       float64 `json:"preference"`
}

// garmentPayload is the ingest body. Attributes are never accepted from
// clients; extraction recomputes them on every upsert.
type garmentPayload struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Brand       string            `json:"brand,omitempty"`
	Price       float64           `json:"price,omitempty"`
	Currency    string            `json:"currency,omitempty"`
	ImagePath   string            `json:"image_path,omitempty"`
	Description string            `json:"description,omitempty"`
	Extras      map[string]string `json:"extras,omitempty"`
}

type garmentResponse struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Brand       string              `json:"brand,omitempty"`
	Price       float64             `json:"price"`
	Currency    string              `json:"currency,omitempty"`
	ImagePath   string              `json:"image_path,omitempty"`
	Description string              `json:"description,omitempty"`
	Attributes  []attributeResponse `json:"attributes,omitempty"`
	Extras      map[string]string   `json:"extras,omitempty"`
}

type attributeResponse struct {
	Family     string  `json:"family"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

type ingestResponse struct {
	ID      string `json:"id"`
	Created bool   `json:"created"`
}

type batchItemResult struct {
	ID     string         `json:"id"`
	Status string         `json:"status"`
	Error  *ErrorResponse `json:"error,omitempty"`
}

type batchResponse struct {
	Items     []batchItemResult `json:"items"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

type similarItem struct {
	Garment    garmentResponse `json:"garment"`
	Similarity float64         `json:"similarity"`
}

type similarResponse struct {
	Items []similarItem `json:"items"`
	Total int           `json:"total"`
}

type feedbackRequest struct {
	EventID   string `json:"event_id,omitempty"`
	UserID    string `json:"user_id"`
	GarmentID string `json:"garment_id"`
	Action    string `json:"action"`
}

type feedbackResponse struct {
	EventID string `json:"event_id"`
	Applied bool   `json:"applied"`
}

type preferencesResponse struct {
	UserID    string             `json:"user_id"`
	Weights   map[string]float64 `json:"weights"`
	UpdatedAt *time.Time         `json:"updated_at,omitempty"`
}

type usageResponse struct {
	Period        string       `json:"period"`
	PeriodStartAt *time.Time   `json:"period_start_at,omitempty"`
	PeriodEndAt   *time.Time   `json:"period_end_at,omitempty"`
	Budget        budgetStatus `json:"budget"`
}

type budgetStatus struct {
	TokensLimit     int64 `json:"tokens_limit"`
	TokensUsed      int64 `json:"tokens_used"`
	TokensRemaining int64 `json:"tokens_remaining"`
	IsExhausted     bool  `json:"is_exhausted"`
	// EstimatedCostUSD is present only when a token price is configured.
	EstimatedCostUSD *float64 `json:"estimated_cost_usd,omitempty"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func garmentFromPayload(p garmentPayload) (garment.Garment, error) {
	g, err := garment.New(
		p.ID, p.Title, p.Brand, p.Price, p.Currency,
		p.ImagePath, p.Description, nil, p.Extras,
	)
	if err != nil {
		return garment.Garment{}, fmt.Errorf("build garment: %w", err)
	}
	return g, nil
}

func garmentToResponse(g *garment.Garment) garmentResponse {
	resp := garmentResponse{
		ID:          g.ID(),
		Title:       g.Title(),
		Brand:       g.Brand(),
		Price:       g.Price(),
		Currency:    g.Currency(),
		ImagePath:   g.ImagePath(),
		Description: g.Description(),
	}

	if attrs := g.Attributes(); len(attrs) > 0 {
		out := make([]attributeResponse, len(attrs))
		for i, a := range attrs {
			out[i] = attributeResponse{
				Family:     string(a.Family()),
				Value:      a.Value(),
				Confidence: a.Confidence(),
				Source:     string(a.Source()),
			}
		}
		resp.Attributes = out
	}

	if extras := g.Extras(); len(extras) > 0 {
		resp.Extras = extras
	}

	return resp
}

func verdictToResponse(v verdict.Verdict) verdictResponse {
	return verdictResponse{
		Status:          string(v.Status()),
		Reason:          v.Reason(),
		Interpretations: v.Interpretations(),
		Overridden:      v.Overridden(),
	}
}

func searchToResponse(resp discoveryuc.Response, limit int) searchResponse {
	items := make([]searchResult, len(resp.Results))
	for i := range resp.Results {
		items[i] = rankedToResult(&resp.Results[i])
	}

	return searchResponse{
		Verdict:  verdictToResponse(resp.Verdict),
		Results:  items,
		Degraded: resp.Degraded,
		Limit:    limit,
		Total:    len(items),
	}
}

func rankedToResult(r *result.Ranked) searchResult {
	g := r.Garment()
	b := r.Breakdown()
	return searchResult{
		Garment: garmentToResponse(&g),
		Score:   r.Score(),
		Breakdown: scoreBreakdown{
			Similarity:       b.Similarity,
			AttributeOverlap: b.AttributeOverlap,
			Preference:       b.Preference,
		},
	}
}

func similarToResponse(hits []result.Similar) similarResponse {
	items := make([]similarItem, len(hits))
	for i := range hits {
		g := hits[i].Garment
		items[i] = similarItem{
			Garment:    garmentToResponse(&g),
			Similarity: hits[i].Similarity,
		}
	}
	return similarResponse{Items: items, Total: len(items)}
}

func preferencesToResponse(v *preference.Vector) preferencesResponse {
	resp := preferencesResponse{
		UserID:  v.UserID(),
		Weights: v.Weights(),
	}
	if !v.UpdatedAt().IsZero() {
		t := v.UpdatedAt().UTC()
		resp.UpdatedAt = &t
	}
	return resp
}
