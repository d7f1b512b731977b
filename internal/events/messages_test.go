package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mobilehouse/backend/internal/domain"
)

func TestSaleRecordedRoundTrip(t *testing.T) {
	recordedAt := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	msg := NewSaleRecorded(domain.SaleRecord{ID: "sale-1", Shop: "Mobile House 1(shed)", SaleDate: "2024-03-10", CreatedAt: recordedAt})

	body, err := msg.ToJSON()
	require.NoError(t, err)

	decoded, err := SaleRecordedFromJSON(body)
	require.NoError(t, err)
	assert.Equal(t, SaleRecordedType, decoded.Type)
	assert.Equal(t, "sale-1", decoded.SaleID)
	assert.Equal(t, "2024-03-10", decoded.SaleDate)
	assert.True(t, decoded.RecordedAt.Equal(recordedAt))
}

func TestSaleRecordedFromJSONRejectsForeignMessages(t *testing.T) {
	for name, body := range map[string]string{
		"not json":   `{`,
		"wrong type": `{"type":"expense.sync","sale_id":"x"}`,
		"no id":      `{"type":"sale.recorded","sale_date":"2024-03-10"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := SaleRecordedFromJSON([]byte(body))
			assert.Error(t, err)
		})
	}
}
