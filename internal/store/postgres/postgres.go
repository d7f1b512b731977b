package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"mobilehouse/backend/internal/domain"
	"mobilehouse/backend/internal/store"
	"mobilehouse/backend/internal/store/salesdoc"
	"mobilehouse/backend/internal/xid"
)

const backendName = "postgres"

type Store struct {
	db *sql.DB
}

// New connects to databaseURL and applies pending migrations.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}

	if err := RunMigrations(databaseURL); err != nil {
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
		var raw salesdoc.Raw
		if err := rows.Scan(&raw.ID, &raw.Data, &raw.CreatedAt); err != nil {
			return nil, classify(err)
		}
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
		VALUES ($1, $2, $3, $4::jsonb, $5)
	`, record.ID, record.Shop, record.SaleDate, string(document), record.CreatedAt)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, fmt.Errorf("%w: %v", store.ErrStoreValidation, err)
		}
		return nil, classify(err)
	}
	return &record, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.SaleRecord, error) {
	var raw salesdoc.Raw
	err := s.db.QueryRowContext(ctx, `
		SELECT id, document, created_at
		FROM sales
		WHERE id = $1
	`, id).Scan(&raw.ID, &raw.Data, &raw.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, classify(err)
	}

	record, err := salesdoc.Decode(raw.ID, raw.Data)
	if err != nil {
		return nil, err
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = raw.CreatedAt.UTC()
	}
	return &record, nil
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
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return classify(err)
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1
			AND created_at < $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, classify(err)
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
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

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
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
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, classify(err)
		}
		user.CreatedAt = user.CreatedAt.UTC()
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
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
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

// classify marks connectivity failures with store.ErrStoreUnavailable and
// returns every other error unchanged.
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
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// isConstraintViolation matches integrity constraint errors (SQLSTATE class 23).
func isConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "23")
	}
	return false
}
