package kpi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cheongimun/kpi-dashboard/internal/config"
	"github.com/cheongimun/kpi-dashboard/internal/metrics"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Source names used in errors, logs, and metric labels.
const (
	sourceEvents   = "events"
	sourceCommerce = "commerce"
	sourceCosts    = "costs"
)

// Service orchestrates one aggregation request: fan-out to the
// independent source fetches, join, merge, derive, assemble. All
// state is request-scoped; calls are independent and repeatable.
type Service struct {
	events   EventAnalytics
	commerce Commerce
	costs    Costs
	cache    *redis.Client
	cfg      config.ReportConfig
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewService constructs a Service. The cost source may degrade; the
// event and commerce sources are required.
func NewService(events EventAnalytics, commerce Commerce, costs Costs, cfg config.ReportConfig, logger *zap.Logger, m *metrics.Metrics) *Service {
	return &Service{
		events:   events,
		commerce: commerce,
		costs:    costs,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// WithCache enables read-through report caching on Redis. Cache
// failures are never fatal; they just force recomputation.
func (s *Service) WithCache(client *redis.Client) *Service {
	s.cache = client
	return s
}

// Snapshot computes the single-period report over the trailing 30
// days.
func (s *Service) Snapshot(ctx context.Context) (SnapshotReport, error) {
	const cacheKey = "kpi:report:snapshot"
	var cached SnapshotReport
	if s.cacheGet(ctx, cacheKey, "kpi", &cached) {
		return cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	w := Trailing30Days(s.now())

	var (
		activeUsers map[PeriodKey]int64
		avgDaily    map[PeriodKey]int64
		d1          float64
		orders      map[PeriodKey]OrderAggregate
		repurchase  float64
	)

	costCh := make(chan costResult, 1)
	go func() { costCh <- s.fetchCosts(ctx, w) }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		activeUsers, err = s.timeQuery(gctx, sourceEvents, "active_users", w, s.events.ActiveUsers)
		return err
	})
	g.Go(func() error {
		var err error
		avgDaily, err = s.timeQuery(gctx, sourceEvents, "avg_daily_active", w, s.events.AvgDailyActive)
		return err
	})
	g.Go(func() error {
		var err error
		d1, err = s.timeRateQuery(gctx, sourceEvents, "d1_retention", w, s.events.D1Retention)
		return err
	})
	g.Go(func() error {
		start := time.Now()
		var err error
		orders, err = s.commerce.PaidOrders(gctx, w)
		s.metrics.ObserveSourceQuery(sourceCommerce, "paid_orders", time.Since(start))
		if err != nil {
			return s.requiredFailure(sourceCommerce, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		repurchase, err = s.timeRateQuery(gctx, sourceCommerce, "repurchase_rate", w, s.commerce.RepurchaseRate)
		return err
	})

	if err := g.Wait(); err != nil {
		return SnapshotReport{}, fmt.Errorf("snapshot aggregation: %w", err)
	}
	costs := <-costCh

	key := w.Periods[0].Key
	order := orders[key]
	raw := RawPeriodMetrics{
		ActiveUsers:    activeUsers[key],
		AvgDailyActive: avgDaily[key],
		PaidRevenue:    order.Revenue,
		PayingUsers:    order.PayingUsers,
		AdSpend:        costs.adSpend[key],
		AICost:         costs.aiCost[key],
	}

	report := AssembleSnapshot(w, raw, d1, repurchase, costs.degraded, s.now())
	s.cacheSet(ctx, cacheKey, report)
	return report, nil
}

// History computes the per-month report over the trailing months
// window. The month count is clamped, never rejected.
func (s *Service) History(ctx context.Context, months int) (Report, error) {
	months = s.clampMonths(months)
	cacheKey := fmt.Sprintf("kpi:report:history:%d", months)
	var cached Report
	if s.cacheGet(ctx, cacheKey, "kpi-history", &cached) {
		return cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	w := TrailingMonths(s.now(), months)

	var in AggregateInput

	costCh := make(chan costResult, 1)
	go func() { costCh <- s.fetchCosts(ctx, w) }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		in.ActiveUsers, err = s.timeQuery(gctx, sourceEvents, "active_users", w, s.events.ActiveUsers)
		return err
	})
	g.Go(func() error {
		var err error
		in.AvgDailyActive, err = s.timeQuery(gctx, sourceEvents, "avg_daily_active", w, s.events.AvgDailyActive)
		return err
	})
	g.Go(func() error {
		start := time.Now()
		var err error
		in.Orders, err = s.commerce.PaidOrders(gctx, w)
		s.metrics.ObserveSourceQuery(sourceCommerce, "paid_orders", time.Since(start))
		if err != nil {
			return s.requiredFailure(sourceCommerce, err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return Report{}, fmt.Errorf("history aggregation: %w", err)
	}
	costs := <-costCh
	in.AdSpend = costs.adSpend
	in.AICost = costs.aiCost

	report := AssembleReport(w, Aggregate(w, in), costs.degraded, s.now())
	s.cacheSet(ctx, cacheKey, report)
	return report, nil
}

type costResult struct {
	adSpend  map[PeriodKey]float64
	aiCost   map[PeriodKey]float64
	degraded bool
}

// fetchCosts runs both cost queries. Any failure degrades to the
// configured defaults for every period instead of failing the
// request; degradation is logged and counted so operators see it.
func (s *Service) fetchCosts(ctx context.Context, w Window) costResult {
	var res costResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		var err error
		res.adSpend, err = s.costs.AdSpend(gctx, w)
		s.metrics.ObserveSourceQuery(sourceCosts, "ad_spend", time.Since(start))
		if err != nil {
			s.metrics.RecordSourceFailure(sourceCosts)
		}
		return err
	})
	g.Go(func() error {
		start := time.Now()
		var err error
		res.aiCost, err = s.costs.AICost(gctx, w)
		s.metrics.ObserveSourceQuery(sourceCosts, "ai_cost", time.Since(start))
		if err != nil {
			s.metrics.RecordSourceFailure(sourceCosts)
		}
		return err
	})

	if err := g.Wait(); err != nil {
		s.logger.Warn("cost source unavailable, using default costs",
			zap.Error(err),
			zap.Float64("default_ad_spend", s.cfg.DefaultAdSpend),
			zap.Float64("default_ai_cost", s.cfg.DefaultAICost),
		)
		s.metrics.RecordCostDegradation()
		return s.defaultCosts(w)
	}
	return res
}

func (s *Service) defaultCosts(w Window) costResult {
	res := costResult{
		adSpend:  make(map[PeriodKey]float64, len(w.Periods)),
		aiCost:   make(map[PeriodKey]float64, len(w.Periods)),
		degraded: true,
	}
	for _, p := range w.Periods {
		res.adSpend[p.Key] = s.cfg.DefaultAdSpend
		res.aiCost[p.Key] = s.cfg.DefaultAICost
	}
	return res
}

// timeQuery runs one grouped required-source query with latency and
// failure accounting; failures are wrapped so the caller can match
// ErrSourceUnavailable. The cost legs keep their own degradable path.
func (s *Service) timeQuery(ctx context.Context, source, query string, w Window, fn func(context.Context, Window) (map[PeriodKey]int64, error)) (map[PeriodKey]int64, error) {
	start := time.Now()
	out, err := fn(ctx, w)
	s.metrics.ObserveSourceQuery(source, query, time.Since(start))
	if err != nil {
		return nil, s.requiredFailure(source, err)
	}
	return out, nil
}

func (s *Service) timeRateQuery(ctx context.Context, source, query string, w Window, fn func(context.Context, Window) (float64, error)) (float64, error) {
	start := time.Now()
	out, err := fn(ctx, w)
	s.metrics.ObserveSourceQuery(source, query, time.Since(start))
	if err != nil {
		return 0, s.requiredFailure(source, err)
	}
	return out, nil
}

func (s *Service) requiredFailure(source string, err error) error {
	s.metrics.RecordSourceFailure(source)
	return &SourceUnavailableError{Source: source, Err: err}
}

func (s *Service) clampMonths(n int) int {
	if n <= 0 {
		n = s.cfg.DefaultMonths
	}
	if n > s.cfg.MaxMonths {
		n = s.cfg.MaxMonths
	}
	return ClampMonths(n)
}

func (s *Service) cacheGet(ctx context.Context, key, endpoint string, dst any) bool {
	if s.cache == nil {
		return false
	}
	b, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Debug("report cache get failed", zap.String("key", key), zap.Error(err))
		}
		s.metrics.RecordCacheLookup(endpoint, "miss")
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		s.logger.Debug("report cache decode failed", zap.String("key", key), zap.Error(err))
		s.metrics.RecordCacheLookup(endpoint, "miss")
		return false
	}
	s.metrics.RecordCacheLookup(endpoint, "hit")
	return true
}

func (s *Service) cacheSet(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, b, s.cfg.CacheTTL).Err(); err != nil {
		s.logger.Debug("report cache set failed", zap.String("key", key), zap.Error(err))
	}
}
