package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/go-sql-driver/mysql"

	"gocut/internal/domain"
	"gocut/internal/logging"
)

// DefaultHistoryDatabase is used when the DSN names no database.
const DefaultHistoryDatabase = "gocut"

// RunRecord is one row of the run history.
type RunRecord struct {
	RunID     string
	Suite     string
	StartedAt time.Time
	Crashed   bool
	Success   bool
	Summary   domain.Summary
}

// MySQLStorage keeps every run in MySQL.
type MySQLStorage struct {
	db *sql.DB
}

// ParseDSN parses a go-sql-driver DSN, enables time parsing and fills in
// the default database.
func ParseDSN(dsn string) (*mysql.Config, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid history DSN: %w", err)
	}
	cfg.ParseTime = true
	if cfg.DBName == "" {
		cfg.DBName = DefaultHistoryDatabase
	}
	if !isValidDatabaseName(cfg.DBName) {
		return nil, fmt.Errorf("invalid database name: %s", cfg.DBName)
	}
	return cfg, nil
}

// OpenMySQL connects to the history database, creating it and its tables
// when they do not exist.
func OpenMySQL(ctx context.Context, dsn string) (*MySQLStorage, error) {
	cfg, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	if err := ensureDatabase(ctx, cfg); err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := NewMySQLStorage(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewMySQLStorage wraps an open connection pool.
func NewMySQLStorage(db *sql.DB) *MySQLStorage {
	return &MySQLStorage{db: db}
}

// ensureDatabase connects to the server without a database and creates
// cfg.DBName if needed.
func ensureDatabase(ctx context.Context, cfg *mysql.Config) error {
	server := cfg.Clone()
	server.DBName = ""
	db, err := sql.Open("mysql", server.FormatDSN())
	if err != nil {
		return fmt.Errorf("failed to connect to database server: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database server: %w", err)
	}

	var exists bool
	query := "SELECT EXISTS(SELECT SCHEMA_NAME FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?)"
	if err := db.QueryRowContext(ctx, query, cfg.DBName).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check database %s: %w", cfg.DBName, err)
	}
	if exists {
		return nil
	}
	logging.Info("History", "creating database %s", cfg.DBName)
	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", cfg.DBName)); err != nil {
		return fmt.Errorf("failed to create database %s: %w", cfg.DBName, err)
	}
	return nil
}

var databaseName = regexp.MustCompile(`^[A-Za-z0-9_$]{1,64}$`)

// isValidDatabaseName accepts unquoted MySQL identifiers only, since the
// name is interpolated into CREATE DATABASE.
func isValidDatabaseName(name string) bool {
	return databaseName.MatchString(name)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS gocut_runs (
		run_id     CHAR(36)     NOT NULL PRIMARY KEY,
		suite      VARCHAR(255) NOT NULL,
		directory  TEXT         NOT NULL,
		started_at DATETIME(6)  NOT NULL,
		crashed    BOOLEAN      NOT NULL,
		success    BOOLEAN      NOT NULL,
		summary    JSON         NOT NULL,
		INDEX idx_started_at (started_at)
	)`,
	`CREATE TABLE IF NOT EXISTS gocut_results (
		id        BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
		run_id    CHAR(36)     NOT NULL,
		position  INT          NOT NULL,
		status    VARCHAR(16)  NOT NULL,
		case_name VARCHAR(255) NOT NULL,
		test_name VARCHAR(255) NOT NULL,
		data_name VARCHAR(255) NOT NULL,
		result    JSON         NOT NULL,
		INDEX idx_run (run_id, position)
	)`,
}

// Migrate creates the history tables.
func (s *MySQLStorage) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrating history schema: %w", err)
		}
	}
	return nil
}

func (s *MySQLStorage) Save(report domain.RunReport) error {
	return s.SaveContext(context.Background(), report)
}

// SaveContext stores the run and its results in one transaction.
func (s *MySQLStorage) SaveContext(ctx context.Context, report domain.RunReport) error {
	report = clean(report)
	summary, err := json.Marshal(report.Summary)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO gocut_runs (run_id, suite, directory, started_at, crashed, success, summary) VALUES (?, ?, ?, ?, ?, ?, ?)",
		report.RunID, report.Suite, report.Directory, report.StartedAt.UTC(), report.Crashed,
		!report.Crashed && report.Summary.Success(), summary)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", report.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO gocut_results (run_id, position, status, case_name, test_name, data_name, result) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, r := range report.Results {
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, report.RunID, i, r.Status().String(), r.CaseName(), r.TestName(), r.DataName(), data); err != nil {
			return fmt.Errorf("saving result %d of run %s: %w", i, report.RunID, err)
		}
	}
	return tx.Commit()
}

func (s *MySQLStorage) Load() (*domain.RunReport, error) {
	return s.LoadContext(context.Background())
}

// LoadContext returns the most recent run with its results.
func (s *MySQLStorage) LoadContext(ctx context.Context) (*domain.RunReport, error) {
	var report domain.RunReport
	var summary []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT run_id, suite, directory, started_at, crashed, summary FROM gocut_runs ORDER BY started_at DESC LIMIT 1").
		Scan(&report.RunID, &report.Suite, &report.Directory, &report.StartedAt, &report.Crashed, &summary)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(summary, &report.Summary); err != nil {
		return nil, fmt.Errorf("decoding summary of run %s: %w", report.RunID, err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT result FROM gocut_results WHERE run_id = ? ORDER BY position", report.RunID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r domain.TestResult
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("decoding result of run %s: %w", report.RunID, err)
		}
		report.Results = append(report.Results, r)
	}
	return &report, rows.Err()
}

// Recent lists the latest runs, newest first.
func (s *MySQLStorage) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT run_id, suite, started_at, crashed, success, summary FROM gocut_runs ORDER BY started_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var summary []byte
		if err := rows.Scan(&rec.RunID, &rec.Suite, &rec.StartedAt, &rec.Crashed, &rec.Success, &summary); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(summary, &rec.Summary); err != nil {
			return nil, fmt.Errorf("decoding summary of run %s: %w", rec.RunID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *MySQLStorage) Close() error {
	return s.db.Close()
}
