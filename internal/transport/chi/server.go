package chi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	gochi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wabenzi/prethrift/internal/domain"
	dombatch "github.com/wabenzi/prethrift/internal/domain/batch"
	"github.com/wabenzi/prethrift/internal/domain/event"
	"github.com/wabenzi/prethrift/internal/domain/garment"
	"github.com/wabenzi/prethrift/internal/domain/query"
	domusage "github.com/wabenzi/prethrift/internal/domain/usage"
	logpkg "github.com/wabenzi/prethrift/internal/logger"
	batchuc "github.com/wabenzi/prethrift/internal/usecase/batch"
	cataloguc "github.com/wabenzi/prethrift/internal/usecase/catalog"
	discoveryuc "github.com/wabenzi/prethrift/internal/usecase/discovery"
	feedbackuc "github.com/wabenzi/prethrift/internal/usecase/feedback"
	healthuc "github.com/wabenzi/prethrift/internal/usecase/health"
	usageuc "github.com/wabenzi/prethrift/internal/usecase/usage"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the HTTP API for the discovery pipeline.
type Server struct {
	discovery     *discoveryuc.Service
	catalog       *cataloguc.Service
	batch         *batchuc.Service
	feedback      *feedbackuc.Service
	usage         *usageuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	discovery *discoveryuc.Service,
	catalog *cataloguc.Service,
	batch *batchuc.Service,
	feedback *feedbackuc.Service,
	usage *usageuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		discovery: discovery,
		catalog:   catalog,
		batch:     batch,
		feedback:  feedback,
		usage:     usage,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrGarmentNotFound, http.StatusNotFound, ErrorCodeGarmentNotFound),
		sentinelHandler(domain.ErrUserNotFound, http.StatusNotFound, ErrorCodeUserNotFound),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrInvalidEvent, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrInvalidGarment, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, ErrorCodeIndexUnavailable),
		sentinelHandler(domain.ErrPreferenceUnavailable,
			http.StatusServiceUnavailable, ErrorCodePreferenceUnavailable),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded,
			http.StatusPaymentRequired, ErrorCodeEmbeddingQuotaExceeded),
		sentinelHandler(domain.ErrEmbeddingUnavailable,
			http.StatusBadGateway, ErrorCodeEmbeddingUnavailable),
	}
	return s
}

// Register mounts all API routes on the router.
func (s *Server) Register(r gochi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1", func(r gochi.Router) {
		r.Post("/search", s.Search)
		r.Post("/feedback", s.Feedback)
		r.Post("/garments", s.IngestGarments)
		r.Get("/garments/{garmentID}", s.GetGarment)
		r.Delete("/garments/{garmentID}", s.DeleteGarment)
		r.Get("/garments/{garmentID}/similar", s.SimilarGarments)
		r.Get("/users/{userID}/preferences", s.GetPreferences)
		r.Get("/usage", s.GetUsage)
	})
}

// Search handles POST /v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	q, err := query.New(req.Query, req.ImageRef, req.UserID, derefInt(req.Limit), req.Force)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	resp, err := s.discovery.Search(ctx, &q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, searchToResponse(resp, q.Limit()))
}

// Feedback handles POST /v1/feedback.
func (s *Server) Feedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	// Clients without their own delivery ids get a fresh one; such events
	// are never deduplicated against earlier submissions.
	eventID := req.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}

	f, err := event.New(eventID, req.UserID, req.GarmentID, event.Action(req.Action), time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	applied, err := s.feedback.Process(r.Context(), &f)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, feedbackResponse{EventID: f.ID(), Applied: applied})
}

// IngestGarments handles POST /v1/garments. The body is either a single
// garment object or an array of garments; arrays get per-item results.
func (s *Server) IngestGarments(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "read request body: "+err.Error())
		return
	}

	if isJSONArray(body) {
		s.ingestBatch(w, r, body)
		return
	}
	s.ingestOne(w, r, body)
}

func (s *Server) ingestOne(w http.ResponseWriter, r *http.Request, body []byte) {
	var p garmentPayload
	if err := json.Unmarshal(body, &p); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	g, err := garmentFromPayload(p)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	created, err := s.catalog.Upsert(ctx, &g)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		w.Header().Set("Location", "/v1/garments/"+g.ID())
	}
	setEmbeddingHeaders(w, usage)

	writeJSON(w, status, ingestResponse{ID: g.ID(), Created: created})
}

func (s *Server) ingestBatch(w http.ResponseWriter, r *http.Request, body []byte) {
	var payloads []garmentPayload
	if err := json.Unmarshal(body, &payloads); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if len(payloads) == 0 || len(payloads) > batchuc.MaxBatchSize {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed,
			fmt.Sprintf("garments count must be between 1 and %d", batchuc.MaxBatchSize))
		return
	}

	items := make([]garment.Garment, 0, len(payloads))
	for _, p := range payloads {
		g, err := garmentFromPayload(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
			return
		}
		items = append(items, g)
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	results := s.batch.Upsert(ctx, items)

	out := make([]batchItemResult, len(results))
	for i, res := range results {
		out[i] = batchResultToItem(res)
	}
	succeeded, failed := dombatch.Tally(results)

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, batchResponse{
		Items:     out,
		Succeeded: succeeded,
		Failed:    failed,
	})
}

// GetGarment handles GET /v1/garments/{garmentID}.
func (s *Server) GetGarment(w http.ResponseWriter, r *http.Request) {
	g, err := s.catalog.Get(r.Context(), gochi.URLParam(r, "garmentID"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, garmentToResponse(&g))
}

// DeleteGarment handles DELETE /v1/garments/{garmentID}.
func (s *Server) DeleteGarment(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Delete(r.Context(), gochi.URLParam(r, "garmentID")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SimilarGarments handles GET /v1/garments/{garmentID}/similar.
func (s *Server) SimilarGarments(w http.ResponseWriter, r *http.Request) {
	var limit int
	if err := runtime.BindQueryParameter(
		"form", true, false, "limit", r.URL.Query(), &limit,
	); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "limit must be an integer")
		return
	}

	hits, err := s.catalog.Similar(r.Context(), gochi.URLParam(r, "garmentID"), limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, similarToResponse(hits))
}

// GetPreferences handles GET /v1/users/{userID}/preferences.
func (s *Server) GetPreferences(w http.ResponseWriter, r *http.Request) {
	vec, err := s.feedback.Snapshot(r.Context(), gochi.URLParam(r, "userID"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, preferencesToResponse(&vec))
}

// GetUsage handles GET /v1/usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	var rawPeriod string
	if err := runtime.BindQueryParameter(
		"form", true, false, "period", r.URL.Query(), &rawPeriod,
	); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "invalid period parameter")
		return
	}

	period, ok := domusage.ParsePeriod(rawPeriod)
	if !ok {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed,
			fmt.Sprintf("period must be %q or %q", domusage.PeriodDay, domusage.PeriodMonth))
		return
	}

	report := s.usage.GetReport(r.Context(), period)

	resp := usageResponse{
		Period: string(report.Period()),
		Budget: budgetStatus{
			TokensLimit:     report.TokensLimit(),
			TokensUsed:      report.TokensUsed(),
			TokensRemaining: report.TokensRemaining(),
			IsExhausted:     report.Exhausted(),
		},
	}
	if report.PeriodStart() > 0 {
		start := time.UnixMilli(report.PeriodStart()).UTC()
		end := time.UnixMilli(report.PeriodEnd()).UTC()
		resp.PeriodStartAt = &start
		resp.PeriodEndAt = &end
	}
	if cost := report.EstimatedCostUSD(); cost >= 0 {
		resp.Budget.EstimatedCostUSD = &cost
	}

	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health. Degraded still serves traffic, so only
// an unhealthy store reports 503.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage == nil || !usage.Used {
		return
	}
	w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	if usage.Fallback {
		w.Header().Set("X-Embedding-Fallback", "true")
	}
}

func isJSONArray(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrGarmentNotFound,
		domain.ErrUserNotFound,
		domain.ErrInvalidQuery,
		domain.ErrInvalidEvent,
		domain.ErrInvalidGarment,
		domain.ErrIndexUnavailable,
		domain.ErrPreferenceUnavailable,
		domain.ErrEmbeddingQuotaExceeded,
		domain.ErrEmbeddingUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContextOr(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}

func batchResultToItem(r dombatch.Result) batchItemResult {
	item := batchItemResult{
		ID:     r.ID(),
		Status: string(r.Status()),
	}
	if r.Err() != nil {
		item.Error = &ErrorResponse{
			Code:    batchErrorCode(r.Err()),
			Message: safeDomainMessage(r.Err()),
		}
	}
	return item
}

func batchErrorCode(err error) ErrorCode {
	switch {
	case errors.Is(err, domain.ErrGarmentNotFound):
		return ErrorCodeGarmentNotFound
	case errors.Is(err, domain.ErrInvalidGarment):
		return ErrorCodeValidationFailed
	case errors.Is(err, domain.ErrIndexUnavailable):
		return ErrorCodeIndexUnavailable
	case errors.Is(err, domain.ErrEmbeddingQuotaExceeded):
		return ErrorCodeEmbeddingQuotaExceeded
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		return ErrorCodeEmbeddingUnavailable
	default:
		return ErrorCodeInternalError
	}
}
