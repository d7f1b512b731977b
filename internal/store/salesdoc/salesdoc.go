// Package salesdoc converts sale records to and from the JSON documents the
// stores persist. Decoding is lenient: numbers may arrive as JSON numbers or
// numeric strings, and anything unreadable falls back to a default. Only
// documents without a usable shop are rejected.
package salesdoc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"mobilehouse/backend/internal/domain"
	"mobilehouse/backend/internal/metrics"
	"mobilehouse/backend/internal/store"
)

type document struct {
	Shop             string     `json:"shop"`
	SalesTotal       number     `json:"salesTotal"`
	ServiceTotal     number     `json:"serviceTotal"`
	KeypadPhones     number     `json:"keypadPhones"`
	Smartphones      number     `json:"smartphones"`
	KeypadModels     []modelDoc `json:"keypadModels"`
	SmartphoneModels []modelDoc `json:"smartphoneModels"`
	Timestamp        string     `json:"timestamp"`
	Date             string     `json:"date"`
}

type modelDoc struct {
	Name  string `json:"name"`
	Price number `json:"price"`
	Count number `json:"count"`
}

var maxCount = decimal.NewFromInt(1_000_000)

type number struct {
	value decimal.Decimal
	valid bool
}

func (n *number) UnmarshalJSON(data []byte) error {
	*n = number{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	raw := string(trimmed)
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return nil
		}
		raw = strings.TrimSpace(text)
	}

	value, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}
	*n = number{value: value, valid: true}
	return nil
}

func (n number) MarshalJSON() ([]byte, error) {
	return []byte(n.value.String()), nil
}

func (n number) money() decimal.Decimal {
	if !n.valid || !domain.ValidMoney(n.value) {
		return decimal.Zero
	}
	return n.value
}

func (n number) count() int {
	if !n.valid || n.value.IsNegative() || n.value.Exponent() > 9 || n.value.GreaterThan(maxCount) {
		return 0
	}
	return int(n.value.IntPart())
}

func (n number) quantity() int {
	return max(n.count(), 1)
}

// Raw is a stored document as read from a backend.
type Raw struct {
	ID        string
	Data      []byte
	CreatedAt time.Time
}

// NewRecord builds the record a store persists for input.
func NewRecord(id string, input domain.SaleRecordInput, createdAt time.Time) domain.SaleRecord {
	return domain.SaleRecord{
		ID:              id,
		Shop:            strings.TrimSpace(input.Shop),
		SalesTotal:      input.SalesTotal,
		ServiceTotal:    input.ServiceTotal,
		KeypadCount:     input.KeypadCount,
		SmartphoneCount: input.SmartphoneCount,
		KeypadLines:     normalizeLines(input.KeypadLines),
		SmartphoneLines: normalizeLines(input.SmartphoneLines),
		SaleDate:        strings.TrimSpace(input.SaleDate),
		CreatedAt:       createdAt.UTC(),
	}
}

func Encode(record domain.SaleRecord) ([]byte, error) {
	doc := document{
		Shop:             record.Shop,
		SalesTotal:       number{value: record.SalesTotal, valid: true},
		ServiceTotal:     number{value: record.ServiceTotal, valid: true},
		KeypadPhones:     number{value: decimal.NewFromInt(int64(record.KeypadCount)), valid: true},
		Smartphones:      number{value: decimal.NewFromInt(int64(record.SmartphoneCount)), valid: true},
		KeypadModels:     encodeLines(record.KeypadLines),
		SmartphoneModels: encodeLines(record.SmartphoneLines),
		Date:             record.SaleDate,
	}
	if !record.CreatedAt.IsZero() {
		doc.Timestamp = record.CreatedAt.UTC().Format(time.RFC3339Nano)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode sale %s: %w", record.ID, err)
	}
	return data, nil
}

// Decode reads one stored document. Errors wrap store.ErrStoreDecode.
func Decode(id string, data []byte) (domain.SaleRecord, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.SaleRecord{}, fmt.Errorf("%w: sale %s: %v", store.ErrStoreDecode, id, err)
	}

	shop := strings.TrimSpace(doc.Shop)
	if shop == "" {
		return domain.SaleRecord{}, fmt.Errorf("%w: sale %s: missing shop", store.ErrStoreDecode, id)
	}

	record := domain.SaleRecord{
		ID:              id,
		Shop:            shop,
		SalesTotal:      doc.SalesTotal.money(),
		ServiceTotal:    doc.ServiceTotal.money(),
		KeypadCount:     doc.KeypadPhones.count(),
		SmartphoneCount: doc.Smartphones.count(),
		KeypadLines:     decodeLines(doc.KeypadModels),
		SmartphoneLines: decodeLines(doc.SmartphoneModels),
		SaleDate:        strings.TrimSpace(doc.Date),
	}
	if ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(doc.Timestamp)); err == nil {
		record.CreatedAt = ts.UTC()
	}
	if record.SaleDate == "" && !record.CreatedAt.IsZero() {
		record.SaleDate = record.CreatedAt.Format(domain.DateLayout)
	}
	return record, nil
}

// DecodeAll decodes a snapshot, skipping and logging every document that
// cannot be read.
func DecodeAll(ctx context.Context, backend string, raws []Raw) []domain.SaleRecord {
	records := make([]domain.SaleRecord, 0, len(raws))
	for _, raw := range raws {
		record, err := Decode(raw.ID, raw.Data)
		if err != nil {
			metrics.UndecodableDocuments.WithLabelValues(backend).Inc()
			slog.WarnContext(ctx, "skipping undecodable sale document", "backend", backend, "id", raw.ID, "error", err)
			continue
		}
		if record.CreatedAt.IsZero() {
			record.CreatedAt = raw.CreatedAt.UTC()
		}
		records = append(records, record)
	}
	return records
}

func normalizeLines(lines []domain.PhoneModelLine) []domain.PhoneModelLine {
	normalized := make([]domain.PhoneModelLine, 0, len(lines))
	for _, line := range lines {
		line.Name = strings.TrimSpace(line.Name)
		line.Quantity = line.Units()
		normalized = append(normalized, line)
	}
	return normalized
}

func encodeLines(lines []domain.PhoneModelLine) []modelDoc {
	docs := make([]modelDoc, 0, len(lines))
	for _, line := range lines {
		docs = append(docs, modelDoc{
			Name:  line.Name,
			Price: number{value: line.UnitPrice, valid: true},
			Count: number{value: decimal.NewFromInt(int64(line.Units())), valid: true},
		})
	}
	return docs
}

func decodeLines(docs []modelDoc) []domain.PhoneModelLine {
	lines := make([]domain.PhoneModelLine, 0, len(docs))
	for _, doc := range docs {
		lines = append(lines, domain.PhoneModelLine{
			Name:      strings.TrimSpace(doc.Name),
			UnitPrice: doc.Price.money(),
			Quantity:  doc.Count.quantity(),
		})
	}
	return lines
}
