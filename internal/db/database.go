// Package db provides persistence for netsweep: the network segments the
// engine sweeps and the host records each sweep or detail probe produces.
// Two Store implementations exist, a JSON file store and PostgreSQL.
package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/anstrom/netsweep/internal/errors"
	"github.com/anstrom/netsweep/internal/logging"
)

// sanitizeDBError converts raw database errors into errors that don't expose
// SQL details or credentials to API clients. The original error is kept as
// the Cause for logs.
func sanitizeDBError(operation string, err error) error {
	if err == nil {
		return nil
	}

	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.NewDatabaseError(errors.CodeNotFound, "Resource not found")
	}

	var dbErr *errors.DatabaseError
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			dbErr = errors.NewDatabaseError(errors.CodeConflict, "Resource already exists")
		case "23503": // foreign_key_violation
			dbErr = errors.NewDatabaseError(errors.CodeNotFound, "Referenced resource does not exist")
		case "23502", "23514", "22P02":
			dbErr = errors.NewDatabaseError(errors.CodeValidation, "Data validation failed")
		case "57014":
			dbErr = errors.NewDatabaseError(errors.CodeCanceled, "Database operation was canceled")
		case "08000", "08003", "08006", "57P01":
			dbErr = errors.NewDatabaseError(errors.CodeDatabaseConnection, "Database connection error")
		}
	}
	if dbErr == nil {
		dbErr = errors.NewDatabaseError(errors.CodeDatabaseQuery,
			fmt.Sprintf("Database operation failed: %s", operation))
	}
	dbErr.Operation = operation
	dbErr.Cause = err
	return dbErr
}

const (
	defaultPostgresPort    = 5432
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 2
	defaultConnMaxLifetime = 5 * time.Minute
)

// Config holds PostgreSQL connection settings.
type Config struct {
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	Database        string        `yaml:"database" json:"database"`
	Username        string        `yaml:"username" json:"username"`
	Password        string        `yaml:"password" json:"password"`
	SSLMode         string        `yaml:"ssl_mode" json:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

// DefaultConfig returns the default database configuration.
// Database name, username, and password must be explicitly configured.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            defaultPostgresPort,
		SSLMode:         "disable",
		MaxOpenConns:    defaultMaxOpenConns,
		MaxIdleConns:    defaultMaxIdleConns,
		ConnMaxLifetime: defaultConnMaxLifetime,
	}
}

// DSN renders the lib/pq key=value connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.Username, c.Password, c.SSLMode,
	)
}

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an existing connection. Tests pass a sqlmock handle.
func NewPostgresStore(conn *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: conn}
}

// Connect opens a PostgreSQL connection, applies pending migrations and
// returns the store. Errors never include the DSN.
func Connect(ctx context.Context, cfg *Config) (*PostgresStore, error) {
	conn, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		return nil, errors.ErrDatabaseConnection(err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := NewMigrator(conn).Up(ctx); err != nil {
		_ = conn.Close()
		return nil, errors.WrapDatabaseError(errors.CodeDatabaseMigration, "Failed to migrate database", err)
	}

	logging.Default().WithComponent("database").Info("Connected to database",
		"host", cfg.Host, "port", cfg.Port, "database", cfg.Database)
	return &PostgresStore{db: conn}, nil
}

// Ping verifies the connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return sanitizeDBError("ping", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// LoadSegments returns all segments, oldest first.
func (s *PostgresStore) LoadSegments(ctx context.Context) ([]NetworkSegment, error) {
	segments := []NetworkSegment{}
	query := `SELECT id, name, cidr, description, created_at FROM segments ORDER BY created_at, id`
	if err := s.db.SelectContext(ctx, &segments, query); err != nil {
		return nil, sanitizeDBError("load segments", err)
	}
	return segments, nil
}

// GetSegment returns one segment by id.
func (s *PostgresStore) GetSegment(ctx context.Context, id string) (*NetworkSegment, error) {
	var segment NetworkSegment
	query := `SELECT id, name, cidr, description, created_at FROM segments WHERE id = $1`
	if err := s.db.GetContext(ctx, &segment, query, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrNotFound("segment", id)
		}
		return nil, sanitizeDBError("get segment", err)
	}
	return &segment, nil
}

// CreateSegment inserts a segment. A duplicate CIDR is a conflict.
func (s *PostgresStore) CreateSegment(ctx context.Context, segment *NetworkSegment) error {
	query := `
		INSERT INTO segments (id, name, cidr, description, created_at)
		VALUES (:id, :name, :cidr, :description, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, query, segment); err != nil {
		return sanitizeDBError("create segment", err)
	}
	return nil
}

// DeleteSegment removes a segment; its host records go with it through
// the foreign key cascade.
func (s *PostgresStore) DeleteSegment(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM segments WHERE id = $1`, id)
	if err != nil {
		return sanitizeDBError("delete segment", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return sanitizeDBError("delete segment", err)
	}
	if affected == 0 {
		return errors.ErrNotFound("segment", id)
	}
	return nil
}

// LoadHostRecords returns the stored records of a segment ordered by address.
func (s *PostgresStore) LoadHostRecords(ctx context.Context, segmentID string) ([]HostRecord, error) {
	records := []HostRecord{}
	query := `
		SELECT host(ip) AS ip, is_active, last_checked, hostname, mac_address, vendor,
		       os, os_accuracy, open_ports, services, ports_scanned
		FROM host_records
		WHERE segment_id = $1
		ORDER BY host_records.ip`

	if err := s.db.SelectContext(ctx, &records, query, segmentID); err != nil {
		return nil, sanitizeDBError("load host records", err)
	}
	return records, nil
}

type hostRow struct {
	SegmentID string `db:"segment_id"`
	HostRecord
}

// SaveHostRecords replaces the records of a segment in one transaction.
func (s *PostgresStore) SaveHostRecords(ctx context.Context, segmentID string, records []HostRecord) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return sanitizeDBError("begin save host records", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM host_records WHERE segment_id = $1`, segmentID); err != nil {
		return sanitizeDBError("clear host records", err)
	}

	insert := `
		INSERT INTO host_records (segment_id, ip, is_active, last_checked, hostname, mac_address,
		                          vendor, os, os_accuracy, open_ports, services, ports_scanned)
		VALUES (:segment_id, :ip, :is_active, :last_checked, :hostname, :mac_address,
		        :vendor, :os, :os_accuracy, :open_ports, :services, :ports_scanned)`

	for i := range records {
		row := hostRow{SegmentID: segmentID, HostRecord: records[i]}
		row.Normalize()
		if _, err := tx.NamedExecContext(ctx, insert, row); err != nil {
			return sanitizeDBError("insert host record", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return sanitizeDBError("commit host records", err)
	}
	return nil
}
