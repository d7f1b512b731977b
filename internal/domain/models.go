package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// DateLayout is the business-date format used for sale dates and anchors.
const DateLayout = "2006-01-02"

type PhoneModelLine struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Units is the quantity a line contributes. Missing or invalid quantities count as one.
func (l PhoneModelLine) Units() int {
	if l.Quantity < 1 {
		return 1
	}
	return l.Quantity
}

func (l PhoneModelLine) Value() decimal.Decimal {
	price := l.UnitPrice
	if price.IsNegative() {
		price = decimal.Zero
	}
	return price.Mul(decimal.NewFromInt(int64(l.Units())))
}

type SaleRecord struct {
	ID              string           `json:"id"`
	Shop            string           `json:"shop"`
	SalesTotal      decimal.Decimal  `json:"sales_total"`
	ServiceTotal    decimal.Decimal  `json:"service_total"`
	KeypadCount     int              `json:"keypad_count"`
	SmartphoneCount int              `json:"smartphone_count"`
	KeypadLines     []PhoneModelLine `json:"keypad_lines"`
	SmartphoneLines []PhoneModelLine `json:"smartphone_lines"`
	SaleDate        string           `json:"sale_date"`
	CreatedAt       time.Time        `json:"created_at"`
}

type SaleRecordInput struct {
	Shop            string           `json:"shop"`
	SalesTotal      decimal.Decimal  `json:"sales_total"`
	ServiceTotal    decimal.Decimal  `json:"service_total"`
	KeypadCount     int              `json:"keypad_count"`
	SmartphoneCount int              `json:"smartphone_count"`
	KeypadLines     []PhoneModelLine `json:"keypad_lines"`
	SmartphoneLines []PhoneModelLine `json:"smartphone_lines"`
	SaleDate        string           `json:"sale_date"`
}

type SaleListFilter struct {
	Shop  string
	Date  string
	Limit int
}

type SaleListResponse struct {
	Sales []SaleRecord `json:"sales"`
	Count int          `json:"count"`
}

type Catalog struct {
	Shops            []string `json:"shops"`
	KeypadModels     []string `json:"keypad_models"`
	SmartphoneModels []string `json:"smartphone_models"`
}

type ModelCount struct {
	Name  string `json:"name"`
	Units int    `json:"units"`
}

type DayPoint struct {
	Date            string          `json:"date"`
	Sales           decimal.Decimal `json:"sales"`
	Service         decimal.Decimal `json:"service"`
	Revenue         decimal.Decimal `json:"revenue"`
	KeypadUnits     int             `json:"keypad_units"`
	SmartphoneUnits int             `json:"smartphone_units"`
	RevenueSharePct decimal.Decimal `json:"revenue_share_pct"`
}

type ShopSummary struct {
	Shop             string          `json:"shop"`
	TotalSales       decimal.Decimal `json:"total_sales"`
	TotalService     decimal.Decimal `json:"total_service"`
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	KeypadUnits      int             `json:"keypad_units"`
	SmartphoneUnits  int             `json:"smartphone_units"`
	KeypadValue      decimal.Decimal `json:"keypad_value"`
	SmartphoneValue  decimal.Decimal `json:"smartphone_value"`
	KeypadModels     []ModelCount    `json:"keypad_models"`
	SmartphoneModels []ModelCount    `json:"smartphone_models"`
	Daily            []DayPoint      `json:"daily"`
}

type DashboardTotals struct {
	TotalRevenue         decimal.Decimal `json:"total_revenue"`
	TotalSales           decimal.Decimal `json:"total_sales"`
	TotalService         decimal.Decimal `json:"total_service"`
	TotalKeypadUnits     int             `json:"total_keypad_units"`
	TotalSmartphoneUnits int             `json:"total_smartphone_units"`
	TotalKeypadValue     decimal.Decimal `json:"total_keypad_value"`
	TotalSmartphoneValue decimal.Decimal `json:"total_smartphone_value"`
	TotalPhoneValue      decimal.Decimal `json:"total_phone_value"`
}

// DashboardView is the presentation shape of an aggregation pass. All
// collections are sorted so the view can be cached and compared.
type DashboardView struct {
	Granularity string          `json:"granularity"`
	Anchor      string          `json:"anchor"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	RecordCount int             `json:"record_count"`
	Shops       []ShopSummary   `json:"shops"`
	Totals      DashboardTotals `json:"totals"`
	GeneratedAt time.Time       `json:"generated_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type StaffCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type StaffUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
