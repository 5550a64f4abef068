package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 8
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 2
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	// Every connection to :memory: is a separate database.
	if isMemory(cfg.Path) {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// Init opens the database and applies connection pragmas.
func (s *SQLiteStore) Init(ctx context.Context) error {
	sep := "?"
	if strings.Contains(s.cfg.Path, "?") {
		sep = "&"
	}
	dsn := s.cfg.Path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
	if !isMemory(s.cfg.Path) {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs the embedded schema migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// CreatePlanRequest archives a new plan request
func (s *SQLiteStore) CreatePlanRequest(ctx context.Context, req *PlanRequest) error {
	query := `
		INSERT INTO plan_requests (id, destination, start_date, days, budget, status, request, error, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	if req.UpdatedAt.IsZero() {
		req.UpdatedAt = req.CreatedAt
	}
	if req.Status == "" {
		req.Status = RequestStatusPending
	}

	_, err := s.db.ExecContext(ctx, query,
		req.ID,
		req.Destination,
		req.StartDate,
		req.Days,
		req.Budget,
		req.Status,
		req.Request,
		req.Error,
		req.CreatedAt,
		req.UpdatedAt,
		req.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create plan request: %w", err)
	}

	return nil
}

// GetPlanRequest retrieves a plan request by ID
func (s *SQLiteStore) GetPlanRequest(ctx context.Context, id string) (*PlanRequest, error) {
	query := `
		SELECT id, destination, start_date, days, budget, status, request, error, created_at, updated_at, completed_at
		FROM plan_requests
		WHERE id = ?
	`

	req, err := scanPlanRequest(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("plan request %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan request: %w", err)
	}

	return req, nil
}

// UpdatePlanRequestStatus records the final status of a plan request
func (s *SQLiteStore) UpdatePlanRequestStatus(ctx context.Context, id string, status RequestStatus, errMsg *string) error {
	query := `
		UPDATE plan_requests
		SET status = ?, error = ?, updated_at = ?, completed_at = ?
		WHERE id = ?
	`

	now := time.Now().UTC()
	var completedAt *time.Time
	if status != RequestStatusPending {
		completedAt = &now
	}

	result, err := s.db.ExecContext(ctx, query, status, errMsg, now, completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update plan request status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("plan request %s: %w", id, ErrNotFound)
	}

	return nil
}

// ListPlanRequests lists archived plan requests, newest first
func (s *SQLiteStore) ListPlanRequests(ctx context.Context, limit, offset int) ([]*PlanRequest, error) {
	query := `
		SELECT id, destination, start_date, days, budget, status, request, error, created_at, updated_at, completed_at
		FROM plan_requests
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list plan requests: %w", err)
	}
	defer rows.Close()

	reqs := []*PlanRequest{}
	for rows.Next() {
		req, err := scanPlanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan request: %w", err)
		}
		reqs = append(reqs, req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plan requests: %w", err)
	}

	return reqs, nil
}

// DeletePlanRequest deletes a plan request and, by cascade, its variants
func (s *SQLiteStore) DeletePlanRequest(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM plan_requests WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete plan request: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("plan request %s: %w", id, ErrNotFound)
	}

	return nil
}

// SaveVariants stores the variants of one or more requests in a single transaction.
// Saving a variant again for the same request and name replaces it.
func (s *SQLiteStore) SaveVariants(ctx context.Context, variants []*PlanVariant) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO plan_variants (id, request_id, name, status, total_cost, reason, violations, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(request_id, name) DO UPDATE SET
			id = excluded.id,
			status = excluded.status,
			total_cost = excluded.total_cost,
			reason = excluded.reason,
			violations = excluded.violations,
			result = excluded.result,
			created_at = excluded.created_at
	`

	now := time.Now().UTC()
	for _, v := range variants {
		if v.CreatedAt.IsZero() {
			v.CreatedAt = now
		}
		_, err := tx.ExecContext(ctx, query,
			v.ID,
			v.RequestID,
			v.Name,
			v.Status,
			v.TotalCost,
			v.Reason,
			v.Violations,
			v.Result,
			v.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save variant %s: %w", v.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit variants: %w", err)
	}
	return nil
}

// ListVariants lists the variants of a request in name order
func (s *SQLiteStore) ListVariants(ctx context.Context, requestID string) ([]*PlanVariant, error) {
	query := `
		SELECT id, request_id, name, status, total_cost, reason, violations, result, created_at
		FROM plan_variants
		WHERE request_id = ?
		ORDER BY name
	`

	rows, err := s.db.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list variants: %w", err)
	}
	defer rows.Close()

	variants := []*PlanVariant{}
	for rows.Next() {
		v := &PlanVariant{}
		err := rows.Scan(
			&v.ID,
			&v.RequestID,
			&v.Name,
			&v.Status,
			&v.TotalCost,
			&v.Reason,
			&v.Violations,
			&v.Result,
			&v.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		variants = append(variants, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating variants: %w", err)
	}

	return variants, nil
}

// AppendEvent appends an event. Events with an event_id already stored are ignored.
func (s *SQLiteStore) AppendEvent(ctx context.Context, event *Event) error {
	query := `
		INSERT INTO generation_events (event_id, request_id, variant, module, type, level, message, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING
	`

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, query,
		event.EventID,
		event.RequestID,
		event.Variant,
		event.Module,
		event.Type,
		event.Level,
		event.Message,
		event.Details,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get event ID: %w", err)
	}

	event.ID = id
	return nil
}

// GetEvents returns events matching q, oldest first
func (s *SQLiteStore) GetEvents(ctx context.Context, q EventQuery) ([]*Event, error) {
	query := `
		SELECT id, event_id, request_id, variant, module, type, level, message, details, timestamp
		FROM generation_events
		WHERE (? IS NULL OR request_id = ?)
		  AND (? IS NULL OR type = ?)
		  AND (? IS NULL OR level = ?)
		ORDER BY id
		LIMIT ? OFFSET ?
	`

	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, query,
		q.RequestID, q.RequestID,
		q.Type, q.Type,
		q.Level, q.Level,
		limit, q.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		event := &Event{}
		err := rows.Scan(
			&event.ID,
			&event.EventID,
			&event.RequestID,
			&event.Variant,
			&event.Module,
			&event.Type,
			&event.Level,
			&event.Message,
			&event.Details,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// HealthCheck verifies the database is reachable
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlanRequest(row rowScanner) (*PlanRequest, error) {
	req := &PlanRequest{}
	err := row.Scan(
		&req.ID,
		&req.Destination,
		&req.StartDate,
		&req.Days,
		&req.Budget,
		&req.Status,
		&req.Request,
		&req.Error,
		&req.CreatedAt,
		&req.UpdatedAt,
		&req.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return req, nil
}
