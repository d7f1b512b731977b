package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"mobilehouse/backend/internal/domain"
)

const SaleRecordedType = "sale.recorded"

// SaleRecorded announces a newly appended sale so dashboards covering its
// sale date can be refreshed.
type SaleRecorded struct {
	Type       string    `json:"type"`
	SaleID     string    `json:"sale_id"`
	Shop       string    `json:"shop"`
	SaleDate   string    `json:"sale_date"`
	RecordedAt time.Time `json:"recorded_at"`
}

func NewSaleRecorded(record domain.SaleRecord) SaleRecorded {
	return SaleRecorded{
		Type:       SaleRecordedType,
		SaleID:     record.ID,
		Shop:       record.Shop,
		SaleDate:   record.SaleDate,
		RecordedAt: record.CreatedAt,
	}
}

func (m SaleRecorded) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SaleRecordedFromJSON(data []byte) (SaleRecorded, error) {
	var msg SaleRecorded
	if err := json.Unmarshal(data, &msg); err != nil {
		return SaleRecorded{}, fmt.Errorf("unmarshal sale event: %w", err)
	}
	if msg.Type != SaleRecordedType {
		return SaleRecorded{}, fmt.Errorf("unexpected event type %q", msg.Type)
	}
	if strings.TrimSpace(msg.SaleID) == "" {
		return SaleRecorded{}, fmt.Errorf("sale event without sale id")
	}
	return msg, nil
}
