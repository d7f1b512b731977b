package salesagg

import (
	"errors"
	"strings"
	"time"

	"mobilehouse/backend/internal/domain"
)

type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
)

var ErrUnknownGranularity = errors.New("unknown granularity")

// ParseGranularity accepts day, week or month case-insensitively. An empty
// value selects the weekly view.
func ParseGranularity(raw string) (Granularity, error) {
	switch Granularity(strings.ToLower(strings.TrimSpace(raw))) {
	case "", Week:
		return Week, nil
	case Day:
		return Day, nil
	case Month:
		return Month, nil
	default:
		return "", ErrUnknownGranularity
	}
}

// ParseDate reads a YYYY-MM-DD business date.
func ParseDate(raw string) (time.Time, bool) {
	parsed, err := time.Parse(domain.DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// Window is an inclusive range of business dates.
type Window struct {
	Granularity Granularity
	From        time.Time
	To          time.Time
}

// WindowFor computes the window containing anchor. Weeks start on Sunday.
func WindowFor(granularity Granularity, anchor time.Time) (Window, error) {
	day := truncateDate(anchor)

	switch granularity {
	case Day:
		return Window{Granularity: Day, From: day, To: day}, nil
	case Week:
		start := day.AddDate(0, 0, -int(day.Weekday()))
		return Window{Granularity: Week, From: start, To: start.AddDate(0, 0, 6)}, nil
	case Month:
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Window{Granularity: Month, From: start, To: start.AddDate(0, 1, -1)}, nil
	default:
		return Window{}, ErrUnknownGranularity
	}
}

func (w Window) Contains(date time.Time) bool {
	date = truncateDate(date)
	return !date.Before(w.From) && !date.After(w.To)
}

// Select keeps the records whose sale date falls inside the window around
// anchor. Records with malformed dates never match.
func Select(records []domain.SaleRecord, granularity Granularity, anchor time.Time) []domain.SaleRecord {
	window, err := WindowFor(granularity, anchor)
	if err != nil {
		return []domain.SaleRecord{}
	}
	return window.Select(records)
}

func (w Window) Select(records []domain.SaleRecord) []domain.SaleRecord {
	selected := make([]domain.SaleRecord, 0, len(records))
	for _, record := range records {
		date, ok := ParseDate(record.SaleDate)
		if !ok || !w.Contains(date) {
			continue
		}
		selected = append(selected, record)
	}
	return selected
}

func truncateDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
