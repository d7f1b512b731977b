package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mobilehouse/backend/internal/domain"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("already exists")
	ErrStoreUnavailable = errors.New("record store unavailable")
	ErrStoreDecode      = errors.New("stored record cannot be decoded")
	ErrStoreValidation  = errors.New("record rejected by store")
)

type SaleStore interface {
	// ListSales returns a full snapshot. Documents that cannot be decoded
	// are skipped and logged, never returned as an error.
	ListSales(ctx context.Context) ([]domain.SaleRecord, error)
	AppendSale(ctx context.Context, input domain.SaleRecordInput) (*domain.SaleRecord, error)
	GetSale(ctx context.Context, id string) (*domain.SaleRecord, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

type AuditStore interface {
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}

type Repository interface {
	SaleStore
	UserStore
	AuditStore
}

// CheckAppend is the structural validation every backend applies before
// persisting a sale.
func CheckAppend(input domain.SaleRecordInput) error {
	if strings.TrimSpace(input.Shop) == "" {
		return fmt.Errorf("%w: shop is required", ErrStoreValidation)
	}
	if strings.TrimSpace(input.SaleDate) == "" {
		return fmt.Errorf("%w: sale date is required", ErrStoreValidation)
	}
	return nil
}

// CheckUser validates and normalizes an account before it is persisted.
func CheckUser(user domain.UserAccount) (domain.UserAccount, error) {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return user, fmt.Errorf("%w: username and password are required", ErrStoreValidation)
	}
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	return user, nil
}
