package warmer

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mobilehouse/backend/internal/domain"
	"mobilehouse/backend/internal/events"
	"mobilehouse/backend/internal/salesagg"
)

type refresherStub struct {
	mu    sync.Mutex
	today time.Time
	calls []string
	fail  salesagg.Granularity
}

func (r *refresherStub) RefreshDashboard(_ context.Context, g salesagg.Granularity, anchor time.Time) (domain.DashboardView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, string(g)+":"+anchor.Format(domain.DateLayout))
	if g == r.fail {
		return domain.DashboardView{}, errors.New("store down")
	}
	return domain.DashboardView{Granularity: string(g), Anchor: anchor.Format(domain.DateLayout)}, nil
}

func (r *refresherStub) Today() time.Time {
	return r.today
}

func (r *refresherStub) sortedCalls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	calls := append([]string(nil), r.calls...)
	sort.Strings(calls)
	return calls
}

func TestHandleSaleRecordedWarmsSaleDateAndToday(t *testing.T) {
	stub := &refresherStub{today: time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC)}
	w := New(stub)

	err := w.HandleSaleRecorded(context.Background(), events.SaleRecorded{SaleID: "sale-1", SaleDate: "2024-02-28"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"day:2024-02-28", "day:2024-03-13",
		"month:2024-02-28", "month:2024-03-13",
		"week:2024-02-28", "week:2024-03-13",
	}, stub.sortedCalls())
}

func TestHandleSaleRecordedForTodayWarmsOnce(t *testing.T) {
	stub := &refresherStub{today: time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC)}

	require.NoError(t, New(stub).HandleSaleRecorded(context.Background(), events.SaleRecorded{SaleID: "sale-1", SaleDate: "2024-03-13"}))
	assert.Len(t, stub.sortedCalls(), 3)

	stub.calls = nil
	require.NoError(t, New(stub).HandleSaleRecorded(context.Background(), events.SaleRecorded{SaleID: "sale-2", SaleDate: "not-a-date"}))
	assert.Equal(t, []string{"day:2024-03-13", "month:2024-03-13", "week:2024-03-13"}, stub.sortedCalls())
}

func TestWarmReportsRefreshFailure(t *testing.T) {
	stub := &refresherStub{today: time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC), fail: salesagg.Week}

	err := New(stub).Warm(context.Background(), stub.today)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh week dashboard for 2024-03-13")
}

func TestRunStopsWithContext(t *testing.T) {
	stub := &refresherStub{today: time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC)}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		New(stub).Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(stub.sortedCalls()) >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected Run to return after cancel")
	}
}
