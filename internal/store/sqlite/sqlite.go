package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"mobilehouse/backend/internal/domain"
	"mobilehouse/backend/internal/store"
	"mobilehouse/backend/internal/store/salesdoc"
	"mobilehouse/backend/internal/xid"
)

const backendName = "sqlite"

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Store struct {
	db *sql.DB
}

// New opens (or creates) the database file at dbPath and applies pending
// migrations.
func New(ctx context.Context, dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}

	if err := RunMigrations(dsn); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListSales(ctx context.Context) ([]domain.SaleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document, created_at
		FROM sales
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	raws := make([]salesdoc.Raw, 0, 256)
	for rows.Next() {
		var (
			raw       salesdoc.Raw
			document  string
			createdAt string
		)
		if err := rows.Scan(&raw.ID, &document, &createdAt); err != nil {
			return nil, classify(err)
		}
		raw.Data = []byte(document)
		raw.CreatedAt = parseTime(createdAt)
		raws = append(raws, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}

	return salesdoc.DecodeAll(ctx, backendName, raws), nil
}

func (s *Store) AppendSale(ctx context.Context, input domain.SaleRecordInput) (*domain.SaleRecord, error) {
	if err := store.CheckAppend(input); err != nil {
		return nil, err
	}

	record := salesdoc.NewRecord(xid.New("sale"), input, time.Now())
	document, err := salesdoc.Encode(record)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrStoreValidation, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sales (id, shop, sale_date, document, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, record.ID, record.Shop, record.SaleDate, string(document), formatTime(record.CreatedAt))
	if err != nil {
		if isConstraintViolation(err) {
			return nil, fmt.Errorf("%w: %v", store.ErrStoreValidation, err)
		}
		return nil, classify(err)
	}
	return &record, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.SaleRecord, error) {
	var document, createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT document, created_at
		FROM sales
		WHERE id = ?
	`, id).Scan(&document, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, classify(err)
	}

	record, err := salesdoc.Decode(id, []byte(document))
	if err != nil {
		return nil, err
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = parseTime(createdAt)
	}
	return &record, nil
}

// importDocument inserts a raw document without validation.
func (s *Store) importDocument(ctx context.Context, id string, document string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sales (id, shop, sale_date, document, created_at)
		VALUES (?, '', '', ?, ?)
	`, id, document, formatTime(time.Now()))
	return classify(err)
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, formatTime(entry.CreatedAt))
	return classify(err)
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= ?
			AND created_at < ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, formatTime(from), formatTime(to), limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var (
			entry     domain.AuditLog
			createdAt string
		)
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &createdAt); err != nil {
			return nil, classify(err)
		}
		entry.CreatedAt = parseTime(createdAt)
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user, err := store.CheckUser(user)
	if err != nil {
		return err
	}

	now := formatTime(time.Now())
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, user.Username, user.Password, user.Role, user.Active, formatTime(user.CreatedAt), now)
	if err != nil {
		if isConstraintViolation(err) {
			return store.ErrConflict
		}
		return classify(err)
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username
	`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var (
			user      domain.UserAccount
			createdAt string
		)
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &createdAt); err != nil {
			return nil, classify(err)
		}
		user.CreatedAt = parseTime(createdAt)
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrStoreValidation
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = ?, updated_at = ?
		WHERE username = ?
	`, password, formatTime(time.Now()), username)
	if err != nil {
		return classify(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	parsed, err := time.Parse(timeLayout, raw)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return time.Time{}
		}
	}
	return parsed.UTC()
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if isUnavailable(err) {
		return fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}
	return err
}

func isUnavailable(err error) bool {
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch primaryCode(err) {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_IOERR:
		return true
	}
	return false
}

func isConstraintViolation(err error) bool {
	return primaryCode(err) == sqlite3.SQLITE_CONSTRAINT
}

// primaryCode strips the extended bits from a sqlite result code.
func primaryCode(err error) int {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() & 0xff
	}
	return -1
}
