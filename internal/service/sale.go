package service

import (
	"fmt"
	"strings"

	"mobilehouse/backend/internal/domain"
)

var KeypadModels = []string{"Nokia", "itel", "lava", "samsung", "jio phone", "Karbonn"}

var SmartphoneModels = []string{
	"Samsung", "oppo", "vivo", "realme", "redmi", "tecno",
	"iphone", "iqoo", "moto", "infinix", "nothing",
}

// normalizeSale trims and defaults the entry form payload and enforces the
// invariants the aggregation relies on: known shop, non-negative amounts and
// unit counts that match the submitted model lines.
func (s *Service) normalizeSale(input domain.SaleRecordInput) (domain.SaleRecordInput, error) {
	shop, ok := s.canonicalShop(input.Shop)
	if !ok {
		if strings.TrimSpace(input.Shop) == "" {
			return input, fmt.Errorf("%w: shop is required", ErrInvalidInput)
		}
		return input, fmt.Errorf("%w: unknown shop %q", ErrInvalidInput, strings.TrimSpace(input.Shop))
	}
	input.Shop = shop

	if input.SalesTotal.IsNegative() || input.ServiceTotal.IsNegative() {
		return input, fmt.Errorf("%w: sales and service totals must not be negative", ErrInvalidInput)
	}
	if !domain.ValidMoney(input.SalesTotal) || !domain.ValidMoney(input.ServiceTotal) {
		return input, fmt.Errorf("%w: sales and service totals must be at most %s with two decimal places", ErrInvalidInput, domain.MaxMoney)
	}
	if input.KeypadCount < 0 || input.SmartphoneCount < 0 {
		return input, fmt.Errorf("%w: phone counts must not be negative", ErrInvalidInput)
	}
	if input.KeypadCount != len(input.KeypadLines) {
		return input, fmt.Errorf("%w: keypad_count %d does not match %d keypad lines", ErrInvalidInput, input.KeypadCount, len(input.KeypadLines))
	}
	if input.SmartphoneCount != len(input.SmartphoneLines) {
		return input, fmt.Errorf("%w: smartphone_count %d does not match %d smartphone lines", ErrInvalidInput, input.SmartphoneCount, len(input.SmartphoneLines))
	}

	var err error
	if input.KeypadLines, err = normalizeLines("keypad", input.KeypadLines); err != nil {
		return input, err
	}
	if input.SmartphoneLines, err = normalizeLines("smartphone", input.SmartphoneLines); err != nil {
		return input, err
	}

	saleDate, err := s.resolveDate(input.SaleDate)
	if err != nil {
		return input, fmt.Errorf("%w: sale_date must be YYYY-MM-DD", ErrInvalidInput)
	}
	input.SaleDate = saleDate.Format(domain.DateLayout)

	return input, nil
}

func normalizeLines(category string, lines []domain.PhoneModelLine) ([]domain.PhoneModelLine, error) {
	normalized := make([]domain.PhoneModelLine, 0, len(lines))
	for i, line := range lines {
		if line.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: %s line %d has a negative unit price", ErrInvalidInput, category, i+1)
		}
		if !domain.ValidMoney(line.UnitPrice) {
			return nil, fmt.Errorf("%w: %s line %d unit price must be at most %s with two decimal places", ErrInvalidInput, category, i+1, domain.MaxMoney)
		}
		line.Name = strings.TrimSpace(line.Name)
		line.Quantity = line.Units()
		normalized = append(normalized, line)
	}
	return normalized, nil
}

// canonicalShop matches raw against the configured shops, ignoring case and
// surrounding whitespace. With no configured shops any non-empty name is
// accepted.
func (s *Service) canonicalShop(raw string) (string, bool) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", false
	}
	if len(s.shops) == 0 {
		return name, true
	}
	for _, shop := range s.shops {
		if strings.EqualFold(shop, name) {
			return shop, true
		}
	}
	return "", false
}
