package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"traffic-dashboard/internal/models"
	"traffic-dashboard/internal/pipeline"
	"traffic-dashboard/internal/services"
	"traffic-dashboard/pkg/logging"
	"traffic-dashboard/pkg/metrics"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 1000
	dateLayout       = "2006-01-02"
)

// DashboardHandler handles dashboard API endpoints
type DashboardHandler struct {
	dashboard *services.DashboardService
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(
	dashboard *services.DashboardService,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *DashboardHandler {
	return &DashboardHandler{
		dashboard: dashboard,
		logger:    logger,
		metrics:   metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// ViewListResponse is the view catalog plus the ad-hoc query vocabulary
type ViewListResponse struct {
	Views      []pipeline.ViewSpec      `json:"views"`
	Partitions []pipeline.PartitionName `json:"partitions"`
	Dimensions []pipeline.Dimension     `json:"dimensions"`
	Orders     []pipeline.Order         `json:"orders"`
}

// AggregateResponse echoes the normalized query with its groups
type AggregateResponse struct {
	Query  pipeline.AggregateQuery `json:"query"`
	Groups []pipeline.GroupPoint   `json:"groups"`
}

// RegisterRoutes registers all dashboard API routes
func (h *DashboardHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/api/dataset", h.GetDataset).Methods("GET")
	router.HandleFunc("/api/views", h.ListViews).Methods("GET")
	router.HandleFunc("/api/views/{view}", h.GetView).Methods("GET")
	router.HandleFunc("/api/aggregate", h.GetAggregate).Methods("GET")
	router.HandleFunc("/api/observations", h.GetObservations).Methods("GET")
	router.HandleFunc("/api/docs", h.SwaggerUI).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods("GET")
}

// HealthCheck handles GET /health
func (h *DashboardHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	summary, err := h.dashboard.Summary(ctx)
	if err != nil {
		status["status"] = "unavailable"
		status["reason"] = err.Error()
		h.sendJSON(w, status, http.StatusServiceUnavailable)
		return
	}
	status["dataset_rows"] = summary.Rows

	attached, rows, err := h.dashboard.StoreStatus(ctx)
	if attached {
		if err != nil {
			h.logger.Error(ctx, "[HEALTH_CHECK_FAILED] Database health check failed", logging.Fields{}, err)
			status["status"] = "unhealthy"
			status["database"] = "disconnected"
			status["reason"] = err.Error()
			h.sendJSON(w, status, http.StatusServiceUnavailable)
			return
		}
		status["database"] = "connected"
		status["database_rows"] = rows
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, http.StatusOK)
}

// GetDataset handles GET /api/dataset
func (h *DashboardHandler) GetDataset(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/dataset"
	defer h.observe(endpoint, time.Now())

	summary, err := h.dashboard.Summary(r.Context())
	if err != nil {
		h.sendServiceError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, summary, http.StatusOK)
}

// ListViews handles GET /api/views
func (h *DashboardHandler) ListViews(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/views"
	defer h.observe(endpoint, time.Now())

	response := ViewListResponse{
		Views:      h.dashboard.ListViews(),
		Partitions: pipeline.PartitionNames(),
		Dimensions: pipeline.Dimensions(),
		Orders:     []pipeline.Order{pipeline.OrderAscending, pipeline.OrderByValue, pipeline.OrderNone},
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, response, http.StatusOK)
}

// GetView handles GET /api/views/{view}
func (h *DashboardHandler) GetView(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/views/{view}"
	defer h.observe(endpoint, time.Now())

	id := pipeline.ViewID(mux.Vars(r)["view"])

	result, err := h.dashboard.RenderView(r.Context(), id)
	if err != nil {
		h.sendServiceError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, result, http.StatusOK)
}

// GetAggregate handles GET /api/aggregate
func (h *DashboardHandler) GetAggregate(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/aggregate"
	defer h.observe(endpoint, time.Now())

	params := r.URL.Query()
	if params.Get("key") == "" {
		h.sendError(w, r, endpoint, "key is required", http.StatusBadRequest)
		return
	}

	query := pipeline.AggregateQuery{
		Partition: pipeline.PartitionName(params.Get("partition")),
		Key:       pipeline.Dimension(params.Get("key")),
		SecondKey: pipeline.Dimension(params.Get("key2")),
		Order:     pipeline.Order(params.Get("order")),
	}
	if query.Partition == "" {
		query.Partition = pipeline.PartitionAll
	}
	if query.Order == "" {
		query.Order = pipeline.OrderAscending
	}

	groups, err := h.dashboard.Aggregate(r.Context(), query)
	if err != nil {
		h.sendServiceError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, AggregateResponse{Query: query, Groups: groups}, http.StatusOK)
}

// GetObservations handles GET /api/observations
func (h *DashboardHandler) GetObservations(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/observations"
	defer h.observe(endpoint, time.Now())

	params := r.URL.Query()

	page := 1
	limit := defaultPageLimit

	if p, err := strconv.Atoi(params.Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(params.Get("limit")); err == nil && l > 0 && l <= maxPageLimit {
		limit = l
	}

	start, err := parseBound(params.Get("start_date"), false)
	if err != nil {
		h.sendError(w, r, endpoint, "invalid start_date format, expected YYYY-MM-DD or YYYY-MM-DD HH:MM:SS", http.StatusBadRequest)
		return
	}
	end, err := parseBound(params.Get("end_date"), true)
	if err != nil {
		h.sendError(w, r, endpoint, "invalid end_date format, expected YYYY-MM-DD or YYYY-MM-DD HH:MM:SS", http.StatusBadRequest)
		return
	}

	items, total, err := h.dashboard.Observations(r.Context(), start, end, page, limit)
	if err != nil {
		h.sendServiceError(w, r, endpoint, err)
		return
	}

	response := PaginatedResponse{
		Data:       items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, response, http.StatusOK)
}

// parseBound parses a date or timestamp bound. A bare end date covers the whole day.
func parseBound(value string, endOfDay bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if d, err := time.Parse(dateLayout, value); err == nil {
		if endOfDay {
			d = d.Add(24*time.Hour - time.Nanosecond)
		}
		return &d, nil
	}
	ts, err := models.ParseTimestamp(value)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

func (h *DashboardHandler) observe(endpoint string, start time.Time) {
	h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// sendServiceError maps service errors to HTTP status codes
func (h *DashboardHandler) sendServiceError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	var unsupported *models.UnsupportedViewError
	var empty *models.EmptyGroupError

	switch {
	case errors.As(err, &unsupported):
		h.metrics.RecordAPIError("unsupported_"+unsupported.Kind, endpoint)
		status := http.StatusBadRequest
		if unsupported.Kind == "view" {
			status = http.StatusNotFound
		}
		h.sendError(w, r, endpoint, err.Error(), status)
	case errors.Is(err, services.ErrInvalidPage):
		h.metrics.RecordAPIError("invalid_page", endpoint)
		h.sendError(w, r, endpoint, err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrDatasetNotLoaded):
		h.metrics.RecordAPIError("dataset_not_loaded", endpoint)
		h.sendError(w, r, endpoint, err.Error(), http.StatusServiceUnavailable)
	case errors.As(err, &empty):
		h.metrics.RecordAPIError("empty_group", endpoint)
		h.logger.Error(r.Context(), "[API_EMPTY_GROUP] Aggregation produced an empty group", logging.Fields{
			"endpoint": endpoint,
			"key":      empty.Key,
		}, err)
		h.sendError(w, r, endpoint, "aggregation failed", http.StatusInternalServerError)
	default:
		h.metrics.RecordAPIError("internal_error", endpoint)
		h.logger.Error(r.Context(), "[API_ERROR] Request failed", logging.Fields{
			"endpoint": endpoint,
		}, err)
		h.sendError(w, r, endpoint, "internal server error", http.StatusInternalServerError)
	}
}

// sendJSON sends a JSON response
func (h *DashboardHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn(context.Background(), "[API_ENCODE_ERROR] Failed to write response", logging.Fields{
			"error": err.Error(),
		})
	}
}

// sendError sends an error response
func (h *DashboardHandler) sendError(w http.ResponseWriter, r *http.Request, endpoint, message string, statusCode int) {
	h.metrics.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}
