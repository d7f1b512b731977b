package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"mobilehouse/backend/internal/cache"
	"mobilehouse/backend/internal/config"
	"mobilehouse/backend/internal/domain"
	"mobilehouse/backend/internal/events"
	"mobilehouse/backend/internal/salesagg"
	"mobilehouse/backend/internal/store"
	"mobilehouse/backend/internal/store/memory"
)

type publisherStub struct {
	mu   sync.Mutex
	sent []events.SaleRecorded
	err  error
}

func (p *publisherStub) PublishSaleRecorded(_ context.Context, msg events.SaleRecorded) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msg)
	return nil
}

type unavailableRepo struct {
	*memory.Store
}

func (unavailableRepo) ListSales(context.Context) ([]domain.SaleRecord, error) {
	return nil, store.ErrStoreUnavailable
}

// racingRepo runs afterSnapshot once, after ListSales has read its records.
type racingRepo struct {
	*memory.Store
	once          sync.Once
	afterSnapshot func()
}

func (r *racingRepo) ListSales(ctx context.Context) ([]domain.SaleRecord, error) {
	records, err := r.Store.ListSales(ctx)
	if r.afterSnapshot != nil {
		r.once.Do(r.afterSnapshot)
	}
	return records, err
}

var fixedNow = time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *memory.Store, *cache.MemoryDashboardCache, *publisherStub) {
	t.Helper()
	repo := memory.New()
	dashboards := cache.NewMemoryDashboardCache()
	publisher := &publisherStub{}
	svc := New(repo, Options{
		Cache:    dashboards,
		CacheTTL: time.Minute,
		Events:   publisher,
		Shops:    config.DefaultShops,
		Location: time.UTC,
	})
	svc.now = func() time.Time { return fixedNow }
	return svc, repo, dashboards, publisher
}

func validInput() domain.SaleRecordInput {
	return domain.SaleRecordInput{
		Shop:            "Mobile House 1(shed)",
		SalesTotal:      decimal.NewFromInt(1000),
		ServiceTotal:    decimal.NewFromInt(150),
		KeypadCount:     1,
		SmartphoneCount: 1,
		KeypadLines:     []domain.PhoneModelLine{{Name: "Nokia", UnitPrice: decimal.NewFromInt(1400), Quantity: 1}},
		SmartphoneLines: []domain.PhoneModelLine{{Name: "vivo", UnitPrice: decimal.NewFromInt(15000), Quantity: 2}},
		SaleDate:        "2024-03-12",
	}
}

func TestSubmitSaleNormalizesAndRecords(t *testing.T) {
	svc, repo, _, publisher := newTestService(t)
	ctx := WithActor(context.Background(), domain.Actor{Username: "staff", Role: domain.RoleStaff})

	input := validInput()
	input.Shop = "  mobile house 1(SHED) "
	input.SaleDate = ""
	input.KeypadLines[0].Quantity = 0
	input.KeypadLines[0].Name = " Nokia "

	created, err := svc.SubmitSale(ctx, input)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if created.Shop != "Mobile House 1(shed)" {
		t.Fatalf("expected canonical shop name, got %q", created.Shop)
	}
	if created.SaleDate != "2024-03-13" {
		t.Fatalf("expected sale date to default to today, got %q", created.SaleDate)
	}
	if created.KeypadLines[0].Quantity != 1 || created.KeypadLines[0].Name != "Nokia" {
		t.Fatalf("expected normalized keypad line, got %+v", created.KeypadLines[0])
	}

	if len(publisher.sent) != 1 || publisher.sent[0].SaleID != created.ID {
		t.Fatalf("expected one sale event for %s, got %+v", created.ID, publisher.sent)
	}

	logs, err := repo.ListAuditLogs(ctx, fixedNow.Add(-time.Hour), fixedNow.Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Action != "sale.create" || logs[0].ActorUsername != "staff" {
		t.Fatalf("expected sale.create audit entry by staff, got %+v", logs)
	}
}

func TestSubmitSaleRejectsInvalidInput(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	tests := map[string]func(*domain.SaleRecordInput){
		"missing shop":             func(in *domain.SaleRecordInput) { in.Shop = " " },
		"unknown shop":             func(in *domain.SaleRecordInput) { in.Shop = "Mobile House 9" },
		"negative sales":           func(in *domain.SaleRecordInput) { in.SalesTotal = decimal.NewFromInt(-1) },
		"negative service":         func(in *domain.SaleRecordInput) { in.ServiceTotal = decimal.NewFromInt(-1) },
		"keypad count mismatch":    func(in *domain.SaleRecordInput) { in.KeypadCount = 2 },
		"smartphone count too low": func(in *domain.SaleRecordInput) { in.SmartphoneCount = 0 },
		"negative count":           func(in *domain.SaleRecordInput) { in.KeypadCount = -1 },
		"negative unit price":      func(in *domain.SaleRecordInput) { in.SmartphoneLines[0].UnitPrice = decimal.NewFromInt(-5) },
		"huge exponent sales":      func(in *domain.SaleRecordInput) { in.SalesTotal = decimal.New(1, 20000000) },
		"sales above cap":          func(in *domain.SaleRecordInput) { in.SalesTotal = decimal.New(1, 12).Add(decimal.NewFromInt(1)) },
		"service with 3 places":    func(in *domain.SaleRecordInput) { in.ServiceTotal = decimal.RequireFromString("10.125") },
		"huge unit price":          func(in *domain.SaleRecordInput) { in.KeypadLines[0].UnitPrice = decimal.New(5, 400) },
		"bad date":                 func(in *domain.SaleRecordInput) { in.SaleDate = "12/03/2024" },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			input := validInput()
			mutate(&input)
			if _, err := svc.SubmitSale(context.Background(), input); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestSubmitSaleSucceedsWhenPublishFails(t *testing.T) {
	svc, repo, _, publisher := newTestService(t)
	publisher.err = errors.New("broker down")

	if _, err := svc.SubmitSale(context.Background(), validInput()); err != nil {
		t.Fatalf("expected submit to succeed despite publish failure, got %v", err)
	}
	sales, _ := repo.ListSales(context.Background())
	if len(sales) != 1 {
		t.Fatalf("expected sale to be stored, got %d", len(sales))
	}
}

func TestDashboardAggregatesAndCaches(t *testing.T) {
	svc, _, dashboards, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.SubmitSale(ctx, validInput()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	second := validInput()
	second.Shop = "Mobile House 2(3way)"
	second.SaleDate = "2024-03-10"
	if _, err := svc.SubmitSale(ctx, second); err != nil {
		t.Fatalf("submit: %v", err)
	}
	outside := validInput()
	outside.SaleDate = "2024-03-09"
	if _, err := svc.SubmitSale(ctx, outside); err != nil {
		t.Fatalf("submit: %v", err)
	}

	view, err := svc.Dashboard(ctx, "week", "2024-03-13")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if view.RecordCount != 2 || len(view.Shops) != 2 {
		t.Fatalf("expected 2 records across 2 shops, got %d records %d shops", view.RecordCount, len(view.Shops))
	}
	// each record: 1000 + 150 + 1400 + 2*15000
	if !view.Totals.TotalRevenue.Equal(decimal.NewFromInt(2 * 32550)) {
		t.Fatalf("expected total revenue 65100, got %s", view.Totals.TotalRevenue)
	}
	if view.Shops[0].Shop != "Mobile House 1(shed)" || view.Shops[0].SmartphoneModels[0].Units != 2 {
		t.Fatalf("unexpected first shop summary %+v", view.Shops[0])
	}

	cached, ok, _ := dashboards.Get(ctx, "week:2024-03-13")
	if !ok || cached.RecordCount != 2 {
		t.Fatalf("expected computed dashboard to be cached, got ok=%v", ok)
	}

	third := validInput()
	third.SaleDate = "2024-03-14"
	if _, err := svc.SubmitSale(ctx, third); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, ok, _ := dashboards.Get(ctx, "week:2024-03-13"); ok {
		t.Fatalf("expected submit to invalidate cached dashboards")
	}

	view, err = svc.Dashboard(ctx, "", "2024-03-13")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if view.RecordCount != 3 {
		t.Fatalf("expected refreshed dashboard with 3 records, got %d", view.RecordCount)
	}
}

func TestDashboardRecomputesAfterWriteDuringRefresh(t *testing.T) {
	ctx := context.Background()
	repo := &racingRepo{Store: memory.New()}
	svc := New(repo, Options{
		Cache:    cache.NewMemoryDashboardCache(),
		CacheTTL: time.Hour,
		Shops:    config.DefaultShops,
		Location: time.UTC,
	})
	svc.now = func() time.Time { return fixedNow }
	repo.afterSnapshot = func() {
		if _, err := svc.SubmitSale(ctx, validInput()); err != nil {
			t.Errorf("submit during refresh: %v", err)
		}
	}

	first, err := svc.Dashboard(ctx, "week", "2024-03-12")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if first.RecordCount != 0 {
		t.Fatalf("expected snapshot taken before the write, got %d records", first.RecordCount)
	}

	second, err := svc.Dashboard(ctx, "week", "2024-03-12")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if second.RecordCount != 1 {
		t.Fatalf("expected dashboard to include the completed write, got %d records", second.RecordCount)
	}
}

func TestDashboardDefaultsToToday(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	view, err := svc.Dashboard(context.Background(), "day", "")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if view.Anchor != "2024-03-13" || view.From != "2024-03-13" || view.To != "2024-03-13" {
		t.Fatalf("expected today's window, got %+v", view)
	}
	if len(view.Shops) != 0 || !view.Totals.TotalRevenue.IsZero() {
		t.Fatalf("expected empty dashboard, got %+v", view)
	}
}

func TestDashboardRejectsBadParameters(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Dashboard(context.Background(), "year", "")
	if !errors.Is(err, ErrInvalidInput) || !errors.Is(err, salesagg.ErrUnknownGranularity) {
		t.Fatalf("expected unknown granularity input error, got %v", err)
	}
	if _, err := svc.Dashboard(context.Background(), "day", "2024-13-01"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid date error, got %v", err)
	}
}

func TestDashboardPropagatesStoreUnavailable(t *testing.T) {
	svc := New(unavailableRepo{memory.New()}, Options{Shops: config.DefaultShops})

	if _, err := svc.Dashboard(context.Background(), "week", "2024-03-13"); !errors.Is(err, store.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestListSalesNewestFirstWithFilters(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	ids := make([]string, 0, 3)
	for _, shop := range []string{"Mobile House 1(shed)", "Mobile House 2(3way)", "Mobile House 1(shed)"} {
		input := validInput()
		input.Shop = shop
		created, err := svc.SubmitSale(ctx, input)
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		ids = append(ids, created.ID)
		time.Sleep(time.Millisecond)
	}

	all, err := svc.ListSales(ctx, domain.SaleListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if all.Count != 3 || all.Sales[0].ID != ids[2] || all.Sales[2].ID != ids[0] {
		t.Fatalf("expected newest first, got %+v", all.Sales)
	}

	filtered, err := svc.ListSales(ctx, domain.SaleListFilter{Shop: "mobile house 1(shed)", Limit: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if filtered.Count != 1 || filtered.Sales[0].ID != ids[2] {
		t.Fatalf("expected latest shed sale only, got %+v", filtered.Sales)
	}

	if _, err := svc.ListSales(ctx, domain.SaleListFilter{Date: "yesterday"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid date error, got %v", err)
	}
}

func TestGetSale(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	created, err := svc.SubmitSale(context.Background(), validInput())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	loaded, err := svc.GetSale(context.Background(), created.ID)
	if err != nil || loaded.ID != created.ID {
		t.Fatalf("expected to load %s, got %+v err=%v", created.ID, loaded, err)
	}
	if _, err := svc.GetSale(context.Background(), "sale-missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCatalogReturnsCopies(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	catalog := svc.Catalog()
	if len(catalog.Shops) != 2 || len(catalog.KeypadModels) != 6 || len(catalog.SmartphoneModels) != 11 {
		t.Fatalf("unexpected catalog %+v", catalog)
	}
	catalog.KeypadModels[0] = "changed"
	if svc.Catalog().KeypadModels[0] != "Nokia" {
		t.Fatalf("expected catalog to be copied")
	}
}
