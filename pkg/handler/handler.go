// Package handler exposes the dashboard services over HTTP.
//
// @title Flow Efficiency API
// @version 1.0
// @description Lead-time KPIs, stage mappings and deal timelines for the sales pipeline dashboard.
// @BasePath /
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"flow-efficiency/pkg/catalog"
	_ "flow-efficiency/pkg/docs"
	"flow-efficiency/pkg/models"
	"flow-efficiency/pkg/service"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
)

// KPIQuerier serves the home and metric detail pages
type KPIQuerier interface {
	Summaries(ctx context.Context, period models.Period) ([]models.MetricSummary, error)
	Detail(ctx context.Context, metric models.MetricName, period models.Period) (*models.MetricDetail, error)
}

// RecordIngester accepts new deal records
type RecordIngester interface {
	Ingest(ctx context.Context, req models.IngestDealRecordRequest) (*models.DealRecord, error)
}

// MappingRegistry manages stage mappings and their versions
type MappingRegistry interface {
	List(ctx context.Context) ([]models.CanonicalMapping, error)
	Add(ctx context.Context, req models.AddMappingRequest) (*models.CanonicalMapping, error)
	Remove(ctx context.Context, id string) error
	CreateVersion(ctx context.Context, req models.CreateVersionRequest) (*models.MappingVersion, error)
	ListVersions(ctx context.Context) ([]models.MappingVersion, error)
	ActivateVersion(ctx context.Context, id string) (*models.MappingVersion, error)
	ActiveVersion(ctx context.Context) (*models.MappingVersion, error)
}

// TimelineProjector serves the deal timeline page
type TimelineProjector interface {
	ListDeals(ctx context.Context) ([]models.Deal, error)
	Timeline(ctx context.Context, dealID string) (*models.Timeline, error)
}

// Services groups the dependencies of the HTTP layer
type Services struct {
	KPIs      KPIQuerier
	Records   RecordIngester
	Mappings  MappingRegistry
	Timelines TimelineProjector
}

// Handler holds HTTP handlers for every dashboard endpoint
type Handler struct {
	svc    Services
	logger *slog.Logger
}

func New(svc Services, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Router builds the route table
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogger(h.logger))

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/periods", h.ListPeriods).Methods(http.MethodGet)
	api.HandleFunc("/kpis", h.GetKPIs).Methods(http.MethodGet)
	api.HandleFunc("/metrics/detail", h.GetMetricDetail).Methods(http.MethodGet)
	api.HandleFunc("/deal-records", h.IngestDealRecord).Methods(http.MethodPost)
	api.HandleFunc("/stages", h.GetStageCatalog).Methods(http.MethodGet)

	api.HandleFunc("/mappings", h.ListMappings).Methods(http.MethodGet)
	api.HandleFunc("/mappings", h.AddMapping).Methods(http.MethodPost)
	api.HandleFunc("/mappings/{id}", h.RemoveMapping).Methods(http.MethodDelete)

	api.HandleFunc("/mapping-versions", h.ListVersions).Methods(http.MethodGet)
	api.HandleFunc("/mapping-versions", h.CreateVersion).Methods(http.MethodPost)
	api.HandleFunc("/mapping-versions/active", h.GetActiveVersion).Methods(http.MethodGet)
	api.HandleFunc("/mapping-versions/{id}/activate", h.ActivateVersion).Methods(http.MethodPost)

	api.HandleFunc("/deals", h.ListDeals).Methods(http.MethodGet)
	api.HandleFunc("/deals/{id}/timeline", h.GetTimeline).Methods(http.MethodGet)

	return r
}

// Health reports liveness
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// ListPeriods returns the selectable reporting periods
// @Summary List periods
// @Tags kpis
// @Produce json
// @Success 200 {array} models.PeriodOption
// @Router /api/v1/periods [get]
func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	var out []models.PeriodOption
	for _, p := range models.Periods() {
		out = append(out, models.PeriodOption{Code: p, Label: p.Label()})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetKPIs returns one KPI card per metric
// @Summary KPI cards
// @Description Average, best and worst lead time per metric for a period. Unknown periods fall back to 7d.
// @Tags kpis
// @Produce json
// @Param period query string false "Period code" default(7d)
// @Success 200 {array} models.MetricSummary
// @Failure 500 {string} string "Internal server error"
// @Router /api/v1/kpis [get]
func (h *Handler) GetKPIs(w http.ResponseWriter, r *http.Request) {
	period := service.ResolvePeriod(r.URL.Query().Get("period"))

	summaries, err := h.svc.KPIs.Summaries(r.Context(), period)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

// GetMetricDetail returns the per-deal breakdown of a metric
// @Summary Metric detail
// @Description Per-deal rows for one metric. Absent or unknown periods open the 1m bucket.
// @Tags kpis
// @Produce json
// @Param metric query string false "Metric name" default(Lead Conversion Time)
// @Param period query string false "Period code" default(1m)
// @Success 200 {object} models.MetricDetail
// @Failure 500 {string} string "Internal server error"
// @Router /api/v1/metrics/detail [get]
func (h *Handler) GetMetricDetail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	metric := service.ResolveMetric(q.Get("metric"))
	period := service.ResolveDetailPeriod(q.Get("period"))

	detail, err := h.svc.KPIs.Detail(r.Context(), metric, period)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// IngestDealRecord stores a validated deal record
// @Summary Ingest deal record
// @Tags kpis
// @Accept json
// @Produce json
// @Param record body models.IngestDealRecordRequest true "Deal record"
// @Success 201 {object} models.DealRecord
// @Failure 400 {string} string "Malformed record"
// @Failure 409 {string} string "Duplicate record"
// @Router /api/v1/deal-records [post]
func (h *Handler) IngestDealRecord(w http.ResponseWriter, r *http.Request) {
	var req models.IngestDealRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	record, err := h.svc.Records.Ingest(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

type stageCatalog struct {
	CanonicalStages []models.CanonicalStage `json:"canonical_stages"`
	Pipelines       []catalog.Pipeline      `json:"pipelines"`
}

// GetStageCatalog returns the canonical stages and pipeline stage lists
// @Summary Stage catalog
// @Tags mappings
// @Produce json
// @Success 200 {object} handler.stageCatalog
// @Router /api/v1/stages [get]
func (h *Handler) GetStageCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stageCatalog{
		CanonicalStages: catalog.CanonicalStages(),
		Pipelines:       catalog.Pipelines(),
	})
}

// ListMappings returns the current mappings
// @Summary List mappings
// @Tags mappings
// @Produce json
// @Success 200 {array} models.CanonicalMapping
// @Router /api/v1/mappings [get]
func (h *Handler) ListMappings(w http.ResponseWriter, r *http.Request) {
	mappings, err := h.svc.Mappings.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(mappings))
}

// AddMapping appends a canonical stage mapping
// @Summary Add mapping
// @Tags mappings
// @Accept json
// @Produce json
// @Param mapping body models.AddMappingRequest true "Mapping"
// @Success 201 {object} models.CanonicalMapping
// @Failure 400 {string} string "Stage does not belong to pipeline"
// @Failure 409 {string} string "Stage already mapped"
// @Router /api/v1/mappings [post]
func (h *Handler) AddMapping(w http.ResponseWriter, r *http.Request) {
	var req models.AddMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	mapping, err := h.svc.Mappings.Add(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapping)
}

// RemoveMapping deletes a mapping
// @Summary Remove mapping
// @Tags mappings
// @Param id path string true "Mapping ID"
// @Success 204
// @Failure 404 {string} string "Mapping not found"
// @Router /api/v1/mappings/{id} [delete]
func (h *Handler) RemoveMapping(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Mappings.Remove(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListVersions returns mapping versions by effective date
// @Summary List mapping versions
// @Tags mappings
// @Produce json
// @Success 200 {array} models.MappingVersion
// @Router /api/v1/mapping-versions [get]
func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.svc.Mappings.ListVersions(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(versions))
}

// CreateVersion snapshots the current mappings
// @Summary Create mapping version
// @Tags mappings
// @Accept json
// @Produce json
// @Param version body models.CreateVersionRequest true "Version"
// @Success 201 {object} models.MappingVersion
// @Failure 400 {string} string "Invalid version"
// @Failure 409 {string} string "Version label already used"
// @Router /api/v1/mapping-versions [post]
func (h *Handler) CreateVersion(w http.ResponseWriter, r *http.Request) {
	var req models.CreateVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	version, err := h.svc.Mappings.CreateVersion(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, version)
}

// ActivateVersion makes a version the only Active one
// @Summary Activate mapping version
// @Tags mappings
// @Produce json
// @Param id path string true "Version ID"
// @Success 200 {object} models.MappingVersion
// @Failure 404 {string} string "Version not found"
// @Router /api/v1/mapping-versions/{id}/activate [post]
func (h *Handler) ActivateVersion(w http.ResponseWriter, r *http.Request) {
	version, err := h.svc.Mappings.ActivateVersion(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, version)
}

// GetActiveVersion returns the version currently in effect
// @Summary Active mapping version
// @Tags mappings
// @Produce json
// @Success 200 {object} models.MappingVersion
// @Failure 404 {string} string "No active version"
// @Router /api/v1/mapping-versions/active [get]
func (h *Handler) GetActiveVersion(w http.ResponseWriter, r *http.Request) {
	version, err := h.svc.Mappings.ActiveVersion(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, version)
}

// ListDeals returns the deals available on the timeline page
// @Summary List deals
// @Tags timeline
// @Produce json
// @Success 200 {array} models.Deal
// @Router /api/v1/deals [get]
func (h *Handler) ListDeals(w http.ResponseWriter, r *http.Request) {
	deals, err := h.svc.Timelines.ListDeals(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(deals))
}

// GetTimeline projects the stage timeline of a deal
// @Summary Deal timeline
// @Tags timeline
// @Produce json
// @Param id path string true "Deal ID"
// @Success 200 {object} models.Timeline
// @Failure 404 {string} string "Deal not found"
// @Failure 422 {string} string "Recorded transitions are inconsistent"
// @Router /api/v1/deals/{id}/timeline [get]
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	timeline, err := h.svc.Timelines.Timeline(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, timeline)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidRecord),
		errors.Is(err, service.ErrInvalidMapping),
		errors.Is(err, service.ErrInvalidVersion):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrMappingNotFound),
		errors.Is(err, service.ErrVersionNotFound),
		errors.Is(err, service.ErrDealNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrDuplicateRecord),
		errors.Is(err, service.ErrDuplicateMapping),
		errors.Is(err, service.ErrDuplicateVersion):
		return http.StatusConflict
	case errors.Is(err, service.ErrInconsistentTimeline):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
		http.Error(w, "Internal server error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// nonNil keeps empty lists encoded as [] rather than null
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
