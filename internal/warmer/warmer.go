// Package warmer precomputes cached dashboards when sales are recorded.
package warmer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"mobilehouse/backend/internal/domain"
	"mobilehouse/backend/internal/events"
	"mobilehouse/backend/internal/salesagg"
)

// Refresher recomputes one dashboard and stores it in the shared cache.
type Refresher interface {
	RefreshDashboard(ctx context.Context, g salesagg.Granularity, anchor time.Time) (domain.DashboardView, error)
	Today() time.Time
}

type Warmer struct {
	dashboards    Refresher
	granularities []salesagg.Granularity
}

func New(dashboards Refresher) *Warmer {
	return &Warmer{
		dashboards:    dashboards,
		granularities: []salesagg.Granularity{salesagg.Day, salesagg.Week, salesagg.Month},
	}
}

// HandleSaleRecorded warms the views anchored on the sale date and on today.
func (w *Warmer) HandleSaleRecorded(ctx context.Context, msg events.SaleRecorded) error {
	anchors := []time.Time{w.dashboards.Today()}
	if saleDate, ok := salesagg.ParseDate(msg.SaleDate); ok && !saleDate.Equal(anchors[0]) {
		anchors = append(anchors, saleDate)
	} else if !ok {
		slog.WarnContext(ctx, "sale event has no usable date", "sale_id", msg.SaleID, "sale_date", msg.SaleDate)
	}

	slog.InfoContext(ctx, "warming dashboards", "sale_id", msg.SaleID, "shop", msg.Shop, "anchors", len(anchors))
	return w.Warm(ctx, anchors...)
}

// Warm refreshes every granularity for each anchor concurrently.
func (w *Warmer) Warm(ctx context.Context, anchors ...time.Time) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(w.granularities))

	for _, anchor := range anchors {
		for _, granularity := range w.granularities {
			g.Go(func() error {
				view, err := w.dashboards.RefreshDashboard(gctx, granularity, anchor)
				if err != nil {
					return fmt.Errorf("refresh %s dashboard for %s: %w", granularity, anchor.Format(domain.DateLayout), err)
				}
				slog.DebugContext(gctx, "dashboard warmed", "granularity", granularity, "anchor", view.Anchor, "records", view.RecordCount)
				return nil
			})
		}
	}
	return g.Wait()
}

// Run warms today's dashboards every interval until ctx is done.
func (w *Warmer) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Warm(ctx, w.dashboards.Today()); err != nil {
				slog.ErrorContext(ctx, "periodic dashboard warm failed", "error", err)
			}
		}
	}
}
