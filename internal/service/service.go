package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"mobilehouse/backend/internal/cache"
	"mobilehouse/backend/internal/domain"
	"mobilehouse/backend/internal/events"
	"mobilehouse/backend/internal/metrics"
	"mobilehouse/backend/internal/salesagg"
	"mobilehouse/backend/internal/store"
	"mobilehouse/backend/internal/xid"
)

var ErrInvalidInput = errors.New("invalid input")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	Cache    cache.DashboardCache
	CacheTTL time.Duration
	Events   events.Publisher
	Shops    []string
	Location *time.Location
}

type Service struct {
	repo       store.Repository
	dashboards cache.DashboardCache
	cacheTTL   time.Duration
	events     events.Publisher
	shops      []string
	location   *time.Location
	now        func() time.Time
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Cache == nil {
		opts.Cache = cache.NoopDashboardCache{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.Events == nil {
		opts.Events = events.NoopPublisher{}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	return &Service{
		repo:       repo,
		dashboards: opts.Cache,
		cacheTTL:   opts.CacheTTL,
		events:     opts.Events,
		shops:      slices.Clone(opts.Shops),
		location:   opts.Location,
		now:        time.Now,
	}
}

func (s *Service) Catalog() domain.Catalog {
	return domain.Catalog{
		Shops:            slices.Clone(s.shops),
		KeypadModels:     slices.Clone(KeypadModels),
		SmartphoneModels: slices.Clone(SmartphoneModels),
	}
}

// SubmitSale validates and appends one sale. Cache invalidation, event
// publishing and auditing are best-effort once the record is stored.
func (s *Service) SubmitSale(ctx context.Context, input domain.SaleRecordInput) (domain.SaleRecord, error) {
	input, err := s.normalizeSale(input)
	if err != nil {
		return domain.SaleRecord{}, err
	}

	created, err := s.repo.AppendSale(ctx, input)
	if err != nil {
		return domain.SaleRecord{}, err
	}
	metrics.SalesRecorded.WithLabelValues(created.Shop).Inc()

	if err := s.dashboards.Invalidate(ctx); err != nil {
		slog.WarnContext(ctx, "dashboard cache invalidation failed", "sale_id", created.ID, "error", err)
	}
	s.publishRecorded(ctx, *created)

	revenue := salesagg.ReduceTotals(salesagg.Aggregate([]domain.SaleRecord{*created})).TotalRevenue
	s.logAudit(ctx, "sale.create", "sale", created.ID, fmt.Sprintf("shop=%s date=%s revenue=%s", created.Shop, created.SaleDate, revenue))
	slog.InfoContext(ctx, "sale recorded", "id", created.ID, "shop", created.Shop, "sale_date", created.SaleDate)

	return *created, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.SaleRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.SaleRecord{}, fmt.Errorf("%w: sale id is required", ErrInvalidInput)
	}
	record, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.SaleRecord{}, err
	}
	return *record, nil
}

// ListSales returns the sale history, newest first.
func (s *Service) ListSales(ctx context.Context, filter domain.SaleListFilter) (domain.SaleListResponse, error) {
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	if filter.Limit > 500 {
		filter.Limit = 500
	}
	filter.Shop = strings.TrimSpace(filter.Shop)
	if filter.Date != "" {
		day, ok := salesagg.ParseDate(filter.Date)
		if !ok {
			return domain.SaleListResponse{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
		}
		filter.Date = day.Format(domain.DateLayout)
	}

	records, err := s.repo.ListSales(ctx)
	if err != nil {
		return domain.SaleListResponse{}, err
	}

	result := make([]domain.SaleRecord, 0, min(len(records), filter.Limit))
	for _, record := range records {
		if filter.Shop != "" && !strings.EqualFold(record.Shop, filter.Shop) {
			continue
		}
		if filter.Date != "" && record.SaleDate != filter.Date {
			continue
		}
		result = append(result, record)
	}

	slices.SortFunc(result, func(a, b domain.SaleRecord) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(result) > filter.Limit {
		result = result[:filter.Limit]
	}

	return domain.SaleListResponse{Sales: result, Count: len(result)}, nil
}

// Dashboard returns the aggregated view for the window of the given
// granularity around date. Empty values mean the weekly view for today.
func (s *Service) Dashboard(ctx context.Context, granularity string, date string) (domain.DashboardView, error) {
	g, err := salesagg.ParseGranularity(granularity)
	if err != nil {
		return domain.DashboardView{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	anchor, err := s.resolveDate(date)
	if err != nil {
		return domain.DashboardView{}, err
	}

	key := dashboardKey(g, anchor)
	cached, ok, err := s.dashboards.Get(ctx, key)
	switch {
	case err != nil:
		metrics.DashboardCache.WithLabelValues("error").Inc()
		slog.WarnContext(ctx, "dashboard cache read failed", "key", key, "error", err)
	case ok:
		metrics.DashboardCache.WithLabelValues("hit").Inc()
		return *cached, nil
	default:
		metrics.DashboardCache.WithLabelValues("miss").Inc()
	}

	return s.RefreshDashboard(ctx, g, anchor)
}

// RefreshDashboard recomputes a dashboard from a fresh snapshot and stores
// it in the cache, replacing any cached copy. The cache generation is read
// before the snapshot so a sale appended meanwhile discards the stored view.
func (s *Service) RefreshDashboard(ctx context.Context, g salesagg.Granularity, anchor time.Time) (domain.DashboardView, error) {
	key := dashboardKey(g, anchor)
	generation, genErr := s.dashboards.Generation(ctx)
	if genErr != nil {
		slog.WarnContext(ctx, "dashboard cache generation read failed", "key", key, "error", genErr)
	}

	records, err := s.repo.ListSales(ctx)
	if err != nil {
		return domain.DashboardView{}, err
	}

	view := salesagg.ComputeDashboard(records, g, anchor).View(anchor)
	view.GeneratedAt = s.now().UTC()

	if genErr == nil {
		if err := s.dashboards.Set(ctx, key, generation, &view, s.cacheTTL); err != nil {
			slog.WarnContext(ctx, "dashboard cache write failed", "key", key, "error", err)
		}
	}
	slog.DebugContext(ctx, "dashboard computed", "key", key, "records", view.RecordCount, "shops", len(view.Shops))
	return view, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = s.now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, ok := salesagg.ParseDate(date)
		if !ok {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
		}
		from = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, s.location)
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

// Today is the current business date in the configured location.
func (s *Service) Today() time.Time {
	now := s.now().In(s.location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Service) resolveDate(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return s.Today(), nil
	}
	parsed, ok := salesagg.ParseDate(raw)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}
	return parsed, nil
}

func (s *Service) publishRecorded(ctx context.Context, record domain.SaleRecord) {
	if err := s.events.PublishSaleRecorded(ctx, events.NewSaleRecorded(record)); err != nil {
		metrics.EventsPublished.WithLabelValues("failed").Inc()
		slog.WarnContext(ctx, "sale event publish failed", "sale_id", record.ID, "error", err)
		return
	}
	metrics.EventsPublished.WithLabelValues("ok").Inc()
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now().UTC(),
	}); err != nil {
		slog.WarnContext(ctx, "failed to write audit log", "action", action, "entity", entityType+"/"+entityID, "error", err)
	}
}

func dashboardKey(g salesagg.Granularity, anchor time.Time) string {
	return string(g) + ":" + anchor.Format(domain.DateLayout)
}
