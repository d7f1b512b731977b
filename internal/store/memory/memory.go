package memory

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"mobilehouse/backend/internal/domain"
	"mobilehouse/backend/internal/store"
	"mobilehouse/backend/internal/store/salesdoc"
	"mobilehouse/backend/internal/xid"
)

const backendName = "memory"

// Store keeps sale records as encoded documents, the same shape the
// database backends persist, so reads go through the same lenient decoder.
type Store struct {
	mu              sync.RWMutex
	documents       []salesdoc.Raw
	documentIndex   map[string]int
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
	now             func() time.Time
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD.
// If unset, hardcoded dev defaults are used and a warning is logged.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		slog.Warn("memory store using default dev credentials, set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"staff", staffPwd, domain.RoleStaff},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			panic(fmt.Sprintf("memory store: hash seed password for %s: %v", u.username, err))
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// New returns an empty store with the seed accounts.
func New() *Store {
	return &Store{
		documentIndex:   make(map[string]int),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
		now:             time.Now,
	}
}

// NewSeeded returns a store with the seed accounts and a week of demo sales
// for the two default shops.
func NewSeeded(shops []string) *Store {
	s := New()
	if len(shops) == 0 {
		return s
	}

	today := time.Now().UTC()
	price := decimal.NewFromInt
	for day := range 7 {
		saleDate := today.AddDate(0, 0, -day).Format(domain.DateLayout)
		for i, shop := range shops {
			input := domain.SaleRecordInput{
				Shop:            shop,
				SalesTotal:      price(int64(4200 + 350*day + 900*i)),
				ServiceTotal:    price(int64(600 + 40*day)),
				KeypadCount:     1,
				SmartphoneCount: 1 + (day+i)%2,
				KeypadLines:     []domain.PhoneModelLine{{Name: "Nokia", UnitPrice: price(1400), Quantity: 1}},
				SmartphoneLines: []domain.PhoneModelLine{{Name: "Samsung", UnitPrice: price(12999), Quantity: 1}},
				SaleDate:        saleDate,
			}
			if input.SmartphoneCount == 2 {
				input.SmartphoneLines = append(input.SmartphoneLines, domain.PhoneModelLine{Name: "redmi", UnitPrice: price(9499), Quantity: 1})
			}
			if _, err := s.AppendSale(context.Background(), input); err != nil {
				panic(fmt.Sprintf("memory store: seed sale: %v", err))
			}
		}
	}
	return s
}

func (s *Store) ListSales(ctx context.Context) ([]domain.SaleRecord, error) {
	s.mu.RLock()
	snapshot := slices.Clone(s.documents)
	s.mu.RUnlock()

	return salesdoc.DecodeAll(ctx, backendName, snapshot), nil
}

func (s *Store) AppendSale(_ context.Context, input domain.SaleRecordInput) (*domain.SaleRecord, error) {
	if err := store.CheckAppend(input); err != nil {
		return nil, err
	}

	record := salesdoc.NewRecord(xid.New("sale"), input, s.now())
	data, err := salesdoc.Encode(record)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrStoreValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.documentIndex[record.ID] = len(s.documents)
	s.documents = append(s.documents, salesdoc.Raw{ID: record.ID, Data: data, CreatedAt: record.CreatedAt})
	return &record, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.SaleRecord, error) {
	s.mu.RLock()
	idx, ok := s.documentIndex[id]
	var raw salesdoc.Raw
	if ok {
		raw = s.documents[idx]
	}
	s.mu.RUnlock()

	if !ok {
		return nil, store.ErrNotFound
	}
	record, err := salesdoc.Decode(raw.ID, raw.Data)
	if err != nil {
		return nil, err
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = raw.CreatedAt
	}
	return &record, nil
}

// PutDocument stores a raw document as-is, bypassing validation. It is used
// to import legacy exports.
func (s *Store) PutDocument(id string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw := salesdoc.Raw{ID: id, Data: slices.Clone(data), CreatedAt: s.now().UTC()}
	if idx, ok := s.documentIndex[id]; ok {
		s.documents[idx] = raw
		return
	}
	s.documentIndex[id] = len(s.documents)
	s.documents = append(s.documents, raw)
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	user, err := store.CheckUser(user)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrConflict
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrStoreValidation
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}
