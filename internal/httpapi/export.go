package httpapi

import (
	"encoding/csv"
	"io"
	"strconv"

	"mobilehouse/backend/internal/domain"
)

// writeDashboardCSV flattens a dashboard into section,shop,key,value rows.
func writeDashboardCSV(w io.Writer, view domain.DashboardView) error {
	out := csv.NewWriter(w)
	rows := [][]string{
		{"section", "shop", "key", "value"},
		{"summary", "", "granularity", view.Granularity},
		{"summary", "", "anchor", view.Anchor},
		{"summary", "", "from", view.From},
		{"summary", "", "to", view.To},
		{"summary", "", "records", strconv.Itoa(view.RecordCount)},
		{"totals", "", "total_revenue", view.Totals.TotalRevenue.StringFixed(2)},
		{"totals", "", "total_sales", view.Totals.TotalSales.StringFixed(2)},
		{"totals", "", "total_service", view.Totals.TotalService.StringFixed(2)},
		{"totals", "", "keypad_units", strconv.Itoa(view.Totals.TotalKeypadUnits)},
		{"totals", "", "smartphone_units", strconv.Itoa(view.Totals.TotalSmartphoneUnits)},
		{"totals", "", "keypad_value", view.Totals.TotalKeypadValue.StringFixed(2)},
		{"totals", "", "smartphone_value", view.Totals.TotalSmartphoneValue.StringFixed(2)},
		{"totals", "", "phone_value", view.Totals.TotalPhoneValue.StringFixed(2)},
	}

	for _, shop := range view.Shops {
		rows = append(rows,
			[]string{"shop", shop.Shop, "total_revenue", shop.TotalRevenue.StringFixed(2)},
			[]string{"shop", shop.Shop, "total_sales", shop.TotalSales.StringFixed(2)},
			[]string{"shop", shop.Shop, "total_service", shop.TotalService.StringFixed(2)},
			[]string{"shop", shop.Shop, "keypad_units", strconv.Itoa(shop.KeypadUnits)},
			[]string{"shop", shop.Shop, "smartphone_units", strconv.Itoa(shop.SmartphoneUnits)},
		)
		for _, day := range shop.Daily {
			rows = append(rows, []string{"day", shop.Shop, day.Date + "_revenue", day.Revenue.StringFixed(2)})
		}
		for _, model := range shop.KeypadModels {
			rows = append(rows, []string{"keypad_model", shop.Shop, model.Name, strconv.Itoa(model.Units)})
		}
		for _, model := range shop.SmartphoneModels {
			rows = append(rows, []string{"smartphone_model", shop.Shop, model.Name, strconv.Itoa(model.Units)})
		}
	}

	if err := out.WriteAll(rows); err != nil {
		return err
	}
	return out.Error()
}
