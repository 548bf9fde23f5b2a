package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cheongimun/kpi-dashboard/internal/config"
	"github.com/cheongimun/kpi-dashboard/internal/database"
	"github.com/cheongimun/kpi-dashboard/internal/kpi"
	"github.com/cheongimun/kpi-dashboard/internal/metrics"
	"github.com/cheongimun/kpi-dashboard/internal/source"
	"go.uber.org/zap"
)

// Dependencies holds all external dependencies for the server.
// Events, Commerce, and Costs override the adapters built from
// Warehouse/DB when set; tests use them to plug in in-memory sources.
type Dependencies struct {
	Warehouse *database.WarehouseDB
	DB        *database.PostgresDB
	Redis     *database.RedisDB
	Config    *config.Config
	Logger    *zap.Logger
	Metrics   *metrics.Metrics

	Events   kpi.EventAnalytics
	Commerce kpi.Commerce
	Costs    kpi.Costs
}

// Server wraps the HTTP handlers around the KPI service.
type Server struct {
	service *kpi.Service
	deps    *Dependencies
	logger  *zap.Logger
	config  *config.Config
	metrics *metrics.Metrics
}

// NewServer constructs a new http.Handler with all routes registered.
func NewServer(deps *Dependencies) http.Handler {
	events := deps.Events
	if events == nil {
		events = source.NewEventWarehouse(deps.Warehouse.Conn, deps.Config.Warehouse.EventsTable)
	}
	commerce := deps.Commerce
	if commerce == nil {
		commerce = source.NewCommerceStore(deps.DB.Pool)
	}
	costs := deps.Costs
	if costs == nil {
		costs = source.NewCostStore(deps.DB.Pool)
	}

	svc := kpi.NewService(events, commerce, costs, deps.Config.Report, deps.Logger, deps.Metrics)
	if deps.Redis != nil {
		svc = svc.WithCache(deps.Redis.Client)
	}

	s := &Server{
		service: svc,
		deps:    deps,
		logger:  deps.Logger,
		config:  deps.Config,
		metrics: deps.Metrics,
	}

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	// Prometheus metrics
	if deps.Config.Metrics.Enabled {
		mux.Handle(deps.Config.Metrics.Path, metrics.Handler())
	}

	// KPI reports
	mux.HandleFunc("/kpi", s.handleKPI)
	mux.HandleFunc("/kpi-history", s.handleKPIHistory)

	return mux
}

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok"}
	if s.deps.Warehouse != nil {
		status["warehouse"] = healthString(s.deps.Warehouse.Health(ctx))
	}
	if s.deps.DB != nil {
		status["database"] = healthString(s.deps.DB.Health(ctx))
	}
	if s.deps.Redis != nil {
		status["redis"] = healthString(s.deps.Redis.Health(ctx))
	}
	s.jsonResponse(w, status)
}

func healthString(err error) string {
	if err != nil {
		return "unreachable"
	}
	return "ok"
}

// ---- KPI Snapshot ----

type snapshotResponse struct {
	Success   bool         `json:"success"`
	Data      kpi.Snapshot `json:"data"`
	Degraded  bool         `json:"degraded,omitempty"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

func (s *Server) handleKPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	report, err := s.service.Snapshot(r.Context())
	if err != nil {
		s.metrics.RecordReport("kpi", "error", time.Since(start))
		s.reportError(w, "kpi snapshot", err)
		return
	}
	s.metrics.RecordReport("kpi", "ok", time.Since(start))

	s.jsonResponse(w, snapshotResponse{
		Success:   true,
		Data:      report.Data,
		Degraded:  report.Degraded,
		UpdatedAt: report.GeneratedAt,
	})
}

// ---- KPI History ----

type historyResponse struct {
	Success   bool                `json:"success"`
	Data      []kpi.PeriodMetrics `json:"data"`
	Count     int                 `json:"count"`
	Degraded  bool                `json:"degraded,omitempty"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

func (s *Server) handleKPIHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Lenient parse: absent or malformed month counts fall back to
	// the configured default, out-of-range counts get clamped.
	months, _ := strconv.Atoi(r.URL.Query().Get("months"))

	start := time.Now()
	report, err := s.service.History(r.Context(), months)
	if err != nil {
		s.metrics.RecordReport("kpi-history", "error", time.Since(start))
		s.reportError(w, "kpi history", err)
		return
	}
	s.metrics.RecordReport("kpi-history", "ok", time.Since(start))

	s.jsonResponse(w, historyResponse{
		Success:   true,
		Data:      report.Periods,
		Count:     len(report.Periods),
		Degraded:  report.Degraded,
		UpdatedAt: report.GeneratedAt,
	})
}

// ---- Helpers ----

func (s *Server) reportError(w http.ResponseWriter, what string, err error) {
	s.logger.Error(what+" failed", zap.Error(err))
	if errors.Is(err, kpi.ErrSourceUnavailable) {
		s.errorResponse(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.errorResponse(w, "internal error", http.StatusInternalServerError)
}

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
