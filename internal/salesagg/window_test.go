package salesagg

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"mobilehouse/backend/internal/domain"
)

func date(t *testing.T, raw string) time.Time {
	t.Helper()
	parsed, ok := ParseDate(raw)
	if !ok {
		t.Fatalf("invalid test date %q", raw)
	}
	return parsed
}

func datesOf(records []domain.SaleRecord) []string {
	dates := make([]string, 0, len(records))
	for _, record := range records {
		dates = append(dates, record.SaleDate)
	}
	return dates
}

func recordsOn(dates ...string) []domain.SaleRecord {
	records := make([]domain.SaleRecord, 0, len(dates))
	for _, d := range dates {
		records = append(records, domain.SaleRecord{Shop: "A", SaleDate: d})
	}
	return records
}

func TestSelect(t *testing.T) {
	records := recordsOn(
		"2024-02-29",
		"2024-03-01",
		"2024-03-09",
		"2024-03-10",
		"2024-03-13",
		"2024-03-16",
		"2024-03-17",
		"2024-03-31",
		"2023-03-10",
		"10/03/2024",
		"",
	)

	tests := []struct {
		name        string
		granularity Granularity
		anchor      string
		want        []string
	}{
		{name: "day exact match", granularity: Day, anchor: "2024-03-10", want: []string{"2024-03-10"}},
		{name: "day without records", granularity: Day, anchor: "2024-03-11", want: []string{}},
		{name: "week from midweek anchor", granularity: Week, anchor: "2024-03-13", want: []string{"2024-03-10", "2024-03-13", "2024-03-16"}},
		{name: "week anchored on sunday", granularity: Week, anchor: "2024-03-10", want: []string{"2024-03-10", "2024-03-13", "2024-03-16"}},
		{name: "week anchored on saturday", granularity: Week, anchor: "2024-03-16", want: []string{"2024-03-10", "2024-03-13", "2024-03-16"}},
		{name: "week crossing month start", granularity: Week, anchor: "2024-03-01", want: []string{"2024-02-29", "2024-03-01"}},
		{name: "month", granularity: Month, anchor: "2024-03-20", want: []string{"2024-03-01", "2024-03-09", "2024-03-10", "2024-03-13", "2024-03-16", "2024-03-17", "2024-03-31"}},
		{name: "leap february", granularity: Month, anchor: "2024-02-01", want: []string{"2024-02-29"}},
		{name: "unknown granularity", granularity: Granularity("quarter"), anchor: "2024-03-10", want: []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Select(records, tc.granularity, date(t, tc.anchor))
			assert.Equal(t, tc.want, datesOf(got))
		})
	}
}

func TestSelectEmptyInput(t *testing.T) {
	assert.Empty(t, Select(nil, Week, date(t, "2024-03-10")))
}

func TestWeekBoundaries(t *testing.T) {
	window, err := WindowFor(Week, date(t, "2024-03-14"))
	assert.NoError(t, err)
	assert.Equal(t, "2024-03-10", window.From.Format(domain.DateLayout))
	assert.Equal(t, "2024-03-16", window.To.Format(domain.DateLayout))

	assert.True(t, window.Contains(date(t, "2024-03-10")))
	assert.True(t, window.Contains(date(t, "2024-03-16")))
	assert.False(t, window.Contains(date(t, "2024-03-09")))
	assert.False(t, window.Contains(date(t, "2024-03-17")))
}

func TestWindowIgnoresAnchorClock(t *testing.T) {
	late := time.Date(2024, 3, 10, 23, 59, 0, 0, time.FixedZone("WIB", 7*3600))
	got := Select(recordsOn("2024-03-10", "2024-03-11"), Day, late)
	assert.Equal(t, []string{"2024-03-10"}, datesOf(got))
}

func TestParseGranularity(t *testing.T) {
	tests := []struct {
		raw     string
		want    Granularity
		wantErr error
	}{
		{raw: "day", want: Day},
		{raw: " WEEK ", want: Week},
		{raw: "Month", want: Month},
		{raw: "", want: Week},
		{raw: "year", wantErr: ErrUnknownGranularity},
	}

	for _, tc := range tests {
		got, err := ParseGranularity(tc.raw)
		if tc.wantErr != nil {
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v for %q, got %v", tc.wantErr, tc.raw, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("expected %q for %q, got %q", tc.want, tc.raw, got)
		}
	}
}
