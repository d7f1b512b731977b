package salesagg

import (
	"time"

	"github.com/shopspring/decimal"

	"mobilehouse/backend/internal/domain"
)

type GlobalTotals struct {
	TotalRevenue         decimal.Decimal
	TotalSales           decimal.Decimal
	TotalService         decimal.Decimal
	TotalKeypadUnits     int
	TotalSmartphoneUnits int
	TotalKeypadValue     decimal.Decimal
	TotalSmartphoneValue decimal.Decimal
	TotalPhoneValue      decimal.Decimal
}

func ReduceTotals(rollups map[string]*ShopRollup) GlobalTotals {
	var totals GlobalTotals
	for _, rollup := range rollups {
		if rollup == nil {
			continue
		}
		totals.TotalRevenue = totals.TotalRevenue.Add(rollup.TotalRevenue)
		totals.TotalSales = totals.TotalSales.Add(rollup.TotalSales)
		totals.TotalService = totals.TotalService.Add(rollup.TotalService)
		totals.TotalKeypadUnits += rollup.KeypadUnits
		totals.TotalSmartphoneUnits += rollup.SmartphoneUnits
		totals.TotalKeypadValue = totals.TotalKeypadValue.Add(rollup.KeypadValue)
		totals.TotalSmartphoneValue = totals.TotalSmartphoneValue.Add(rollup.SmartphoneValue)
	}
	totals.TotalPhoneValue = totals.TotalKeypadValue.Add(totals.TotalSmartphoneValue)
	return totals
}

type Dashboard struct {
	Window      Window
	RecordCount int
	Rollups     map[string]*ShopRollup
	Totals      GlobalTotals
}

// ComputeDashboard filters records to the window around anchor, aggregates
// them per shop and reduces the rollups to global totals.
func ComputeDashboard(records []domain.SaleRecord, granularity Granularity, anchor time.Time) Dashboard {
	window, err := WindowFor(granularity, anchor)
	selected := []domain.SaleRecord{}
	if err == nil {
		selected = window.Select(records)
	}

	rollups := Aggregate(selected)
	return Dashboard{
		Window:      window,
		RecordCount: len(selected),
		Rollups:     rollups,
		Totals:      ReduceTotals(rollups),
	}
}

var hundred = decimal.NewFromInt(100)

// View converts the dashboard into its sorted presentation shape. Each
// day's revenue share is relative to the shop's total revenue, capped at 100.
func (d Dashboard) View(anchor time.Time) domain.DashboardView {
	view := domain.DashboardView{
		Granularity: string(d.Window.Granularity),
		Anchor:      truncateDate(anchor).Format(domain.DateLayout),
		RecordCount: d.RecordCount,
		Shops:       make([]domain.ShopSummary, 0, len(d.Rollups)),
		Totals: domain.DashboardTotals{
			TotalRevenue:         d.Totals.TotalRevenue,
			TotalSales:           d.Totals.TotalSales,
			TotalService:         d.Totals.TotalService,
			TotalKeypadUnits:     d.Totals.TotalKeypadUnits,
			TotalSmartphoneUnits: d.Totals.TotalSmartphoneUnits,
			TotalKeypadValue:     d.Totals.TotalKeypadValue,
			TotalSmartphoneValue: d.Totals.TotalSmartphoneValue,
			TotalPhoneValue:      d.Totals.TotalPhoneValue,
		},
	}
	if !d.Window.From.IsZero() {
		view.From = d.Window.From.Format(domain.DateLayout)
		view.To = d.Window.To.Format(domain.DateLayout)
	}

	for _, shop := range Shops(d.Rollups) {
		rollup := d.Rollups[shop]
		summary := domain.ShopSummary{
			Shop:             shop,
			TotalSales:       rollup.TotalSales,
			TotalService:     rollup.TotalService,
			TotalRevenue:     rollup.TotalRevenue,
			KeypadUnits:      rollup.KeypadUnits,
			SmartphoneUnits:  rollup.SmartphoneUnits,
			KeypadValue:      rollup.KeypadValue,
			SmartphoneValue:  rollup.SmartphoneValue,
			KeypadModels:     RankModels(rollup.KeypadModels),
			SmartphoneModels: RankModels(rollup.SmartphoneModels),
		}
		for _, day := range rollup.Days() {
			summary.Daily = append(summary.Daily, domain.DayPoint{
				Date:            day.Date,
				Sales:           day.Sales,
				Service:         day.Service,
				Revenue:         day.Revenue,
				KeypadUnits:     day.KeypadUnits,
				SmartphoneUnits: day.SmartphoneUnits,
				RevenueSharePct: revenueShare(day.Revenue, rollup.TotalRevenue),
			})
		}
		view.Shops = append(view.Shops, summary)
	}
	return view
}

func revenueShare(part, total decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() {
		return decimal.Zero
	}
	share := part.Mul(hundred).DivRound(total, 2)
	if share.GreaterThan(hundred) {
		return hundred
	}
	return share
}
