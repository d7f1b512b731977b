package salesagg

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"mobilehouse/backend/internal/domain"
)

type DailyMetrics struct {
	Sales           decimal.Decimal
	Service         decimal.Decimal
	Revenue         decimal.Decimal
	KeypadUnits     int
	SmartphoneUnits int
}

type ShopRollup struct {
	TotalSales       decimal.Decimal
	TotalService     decimal.Decimal
	TotalRevenue     decimal.Decimal
	KeypadUnits      int
	SmartphoneUnits  int
	KeypadValue      decimal.Decimal
	SmartphoneValue  decimal.Decimal
	KeypadModels     map[string]int
	SmartphoneModels map[string]int
	Daily            map[string]DailyMetrics
}

func newShopRollup() *ShopRollup {
	return &ShopRollup{
		KeypadModels:     map[string]int{},
		SmartphoneModels: map[string]int{},
		Daily:            map[string]DailyMetrics{},
	}
}

// Aggregate folds records into one rollup per shop. Numeric anomalies are
// defaulted instead of rejected so a partially broken record still counts.
func Aggregate(records []domain.SaleRecord) map[string]*ShopRollup {
	rollups := make(map[string]*ShopRollup)
	for _, record := range records {
		keypadValue := linesValue(record.KeypadLines)
		smartphoneValue := linesValue(record.SmartphoneLines)
		sales := nonNegative(record.SalesTotal)
		service := nonNegative(record.ServiceTotal)
		revenue := sales.Add(service).Add(keypadValue).Add(smartphoneValue)
		keypadCount := max(record.KeypadCount, 0)
		smartphoneCount := max(record.SmartphoneCount, 0)

		rollup, ok := rollups[record.Shop]
		if !ok {
			rollup = newShopRollup()
			rollups[record.Shop] = rollup
		}

		rollup.TotalSales = rollup.TotalSales.Add(sales)
		rollup.TotalService = rollup.TotalService.Add(service)
		rollup.TotalRevenue = rollup.TotalRevenue.Add(revenue)
		rollup.KeypadUnits += keypadCount
		rollup.SmartphoneUnits += smartphoneCount
		rollup.KeypadValue = rollup.KeypadValue.Add(keypadValue)
		rollup.SmartphoneValue = rollup.SmartphoneValue.Add(smartphoneValue)
		countModels(rollup.KeypadModels, record.KeypadLines)
		countModels(rollup.SmartphoneModels, record.SmartphoneLines)

		key := dayKey(record.SaleDate)
		bucket := rollup.Daily[key]
		bucket.Sales = bucket.Sales.Add(sales)
		bucket.Service = bucket.Service.Add(service)
		bucket.Revenue = bucket.Revenue.Add(revenue)
		bucket.KeypadUnits += keypadCount
		bucket.SmartphoneUnits += smartphoneCount
		rollup.Daily[key] = bucket
	}
	return rollups
}

// Merge combines two rollup maps pointwise into a new map. Neither input is
// modified.
func Merge(a, b map[string]*ShopRollup) map[string]*ShopRollup {
	merged := make(map[string]*ShopRollup, len(a)+len(b))
	for _, source := range []map[string]*ShopRollup{a, b} {
		for shop, rollup := range source {
			target, ok := merged[shop]
			if !ok {
				target = newShopRollup()
				merged[shop] = target
			}
			target.add(rollup)
		}
	}
	return merged
}

func (r *ShopRollup) add(other *ShopRollup) {
	if other == nil {
		return
	}
	r.TotalSales = r.TotalSales.Add(other.TotalSales)
	r.TotalService = r.TotalService.Add(other.TotalService)
	r.TotalRevenue = r.TotalRevenue.Add(other.TotalRevenue)
	r.KeypadUnits += other.KeypadUnits
	r.SmartphoneUnits += other.SmartphoneUnits
	r.KeypadValue = r.KeypadValue.Add(other.KeypadValue)
	r.SmartphoneValue = r.SmartphoneValue.Add(other.SmartphoneValue)
	for name, units := range other.KeypadModels {
		r.KeypadModels[name] += units
	}
	for name, units := range other.SmartphoneModels {
		r.SmartphoneModels[name] += units
	}
	for date, metrics := range other.Daily {
		bucket := r.Daily[date]
		bucket.Sales = bucket.Sales.Add(metrics.Sales)
		bucket.Service = bucket.Service.Add(metrics.Service)
		bucket.Revenue = bucket.Revenue.Add(metrics.Revenue)
		bucket.KeypadUnits += metrics.KeypadUnits
		bucket.SmartphoneUnits += metrics.SmartphoneUnits
		r.Daily[date] = bucket
	}
}

type DailyEntry struct {
	Date string
	DailyMetrics
}

// Days returns the daily series sorted by date ascending.
func (r *ShopRollup) Days() []DailyEntry {
	days := make([]DailyEntry, 0, len(r.Daily))
	for date, metrics := range r.Daily {
		days = append(days, DailyEntry{Date: date, DailyMetrics: metrics})
	}
	slices.SortFunc(days, func(a, b DailyEntry) int {
		return strings.Compare(a.Date, b.Date)
	})
	return days
}

// RankModels orders model counts by units descending, then by name.
func RankModels(models map[string]int) []domain.ModelCount {
	ranked := make([]domain.ModelCount, 0, len(models))
	for name, units := range models {
		ranked = append(ranked, domain.ModelCount{Name: name, Units: units})
	}
	slices.SortFunc(ranked, func(a, b domain.ModelCount) int {
		if a.Units != b.Units {
			return b.Units - a.Units
		}
		return strings.Compare(a.Name, b.Name)
	})
	return ranked
}

// Shops lists the rollup keys in ascending order.
func Shops(rollups map[string]*ShopRollup) []string {
	shops := make([]string, 0, len(rollups))
	for shop := range rollups {
		shops = append(shops, shop)
	}
	slices.Sort(shops)
	return shops
}

func linesValue(lines []domain.PhoneModelLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Value())
	}
	return total
}

func countModels(target map[string]int, lines []domain.PhoneModelLine) {
	for _, line := range lines {
		if line.Name == "" {
			continue
		}
		target[line.Name] += line.Units()
	}
}

func nonNegative(value decimal.Decimal) decimal.Decimal {
	if value.IsNegative() {
		return decimal.Zero
	}
	return value
}

func dayKey(raw string) string {
	if parsed, ok := ParseDate(raw); ok {
		return parsed.Format(domain.DateLayout)
	}
	return strings.TrimSpace(raw)
}
