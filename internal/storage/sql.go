package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/edigiacomo/archive-maildir/pkg/models"
	"github.com/edigiacomo/archive-maildir/pkg/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLStore implements storage.Store on top of a SQL journal database. The
// DSN selects the engine: postgres:// URLs use PostgreSQL, everything else
// is treated as a sqlite database path, optionally prefixed with sqlite:.
type SQLStore struct {
	db         *sqlx.DB
	driver     string
	migrateURL string
}

func NewSQLStore(dsn string) (*SQLStore, error) {
	driver, connStr, migrateURL := parseDSN(dsn)
	db, err := sqlx.Open(driver, connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLStore{db: db, driver: driver, migrateURL: migrateURL}, nil
}

func parseDSN(dsn string) (driver, connStr, migrateURL string) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", dsn, dsn
	case strings.HasPrefix(dsn, "sqlite://"):
		path := strings.TrimPrefix(dsn, "sqlite://")
		return "sqlite", path, "sqlite://" + path
	case strings.HasPrefix(dsn, "sqlite:"):
		path := strings.TrimPrefix(dsn, "sqlite:")
		return "sqlite", path, "sqlite://" + path
	default:
		return "sqlite", dsn, "sqlite://" + dsn
	}
}

// q rewrites ? placeholders into the bindvar format of the engine.
func (s *SQLStore) q(query string) string {
	if s.driver == "postgres" {
		return sqlx.Rebind(sqlx.DOLLAR, query)
	}
	return query
}

// Migrate applies the embedded schema migrations.
func (s *SQLStore) Migrate() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, s.migrateURL)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	upErr := m.Up()
	srcErr, dbErr := m.Close()
	if upErr != nil && upErr != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	if srcErr != nil {
		return srcErr
	}
	return dbErr
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// SaveRun journals a new run with its parameters and initial counters.
func (s *SQLStore) SaveRun(r models.Run) error {
	row := newRunRow(r)
	_, err := s.db.Exec(s.q(`INSERT INTO archive_runs
		(id, maildir, output_dir, mode, split_by, before_unix, status, scanned, matched, archived, skipped, failed, error_msg, started_unix, finished_unix)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		row.ID, row.Maildir, row.OutputDir, row.Mode, row.SplitBy, row.BeforeUnix, row.Status,
		row.Scanned, row.Matched, row.Archived, row.Skipped, row.Failed, row.ErrorMsg,
		row.StartedUnix, row.FinishedUnix)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// FinishRun updates the status, counters and finish time of a run.
func (s *SQLStore) FinishRun(r models.Run) error {
	row := newRunRow(r)
	res, err := s.db.Exec(s.q(`UPDATE archive_runs
		SET status = ?, scanned = ?, matched = ?, archived = ?, skipped = ?, failed = ?, error_msg = ?, finished_unix = ?
		WHERE id = ?`),
		row.Status, row.Scanned, row.Matched, row.Archived, row.Skipped, row.Failed,
		row.ErrorMsg, row.FinishedUnix, row.ID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", r.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %s: %w", r.ID, err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetRun retrieves a run by ID, including its records.
func (s *SQLStore) GetRun(id string) (models.Run, error) {
	var row runRow
	err := s.db.Get(&row, s.q("SELECT * FROM archive_runs WHERE id = ?"), id)
	if err == sql.ErrNoRows {
		return models.Run{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	r := row.model()
	records, err := s.ListRecords(id)
	if err != nil {
		return models.Run{}, err
	}
	r.Records = records
	return r, nil
}

func (s *SQLStore) ListRuns() ([]models.Run, error) {
	rows := []runRow{}
	err := s.db.Select(&rows, "SELECT * FROM archive_runs ORDER BY started_unix DESC, id")
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	runs := make([]models.Run, 0, len(rows))
	for _, row := range rows {
		runs = append(runs, row.model())
	}
	return runs, nil
}

// SaveRecord journals one archived message.
func (s *SQLStore) SaveRecord(rec models.Record) error {
	row := newRecordRow(rec)
	_, err := s.db.Exec(s.q(`INSERT INTO archive_records
		(run_id, message_key, source_dir, target_dir, message_unix, archived_unix)
		VALUES (?, ?, ?, ?, ?, ?)`),
		row.RunID, row.MessageKey, row.SourceDir, row.TargetDir, row.MessageUnix, row.ArchivedUnix)
	if err != nil {
		return fmt.Errorf("save record %s: %w", rec.MessageKey, err)
	}
	return nil
}

func (s *SQLStore) ListRecords(runID string) ([]models.Record, error) {
	rows := []recordRow{}
	err := s.db.Select(&rows, s.q("SELECT * FROM archive_records WHERE run_id = ? ORDER BY archived_unix, message_key"), runID)
	if err != nil {
		return nil, fmt.Errorf("list records of run %s: %w", runID, err)
	}
	records := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.model())
	}
	return records, nil
}

// runRow mirrors the archive_runs table. Times are stored as unix seconds to
// stay portable between sqlite and PostgreSQL.
type runRow struct {
	ID           string        `db:"id"`
	Maildir      string        `db:"maildir"`
	OutputDir    string        `db:"output_dir"`
	Mode         string        `db:"mode"`
	SplitBy      string        `db:"split_by"`
	BeforeUnix   int64         `db:"before_unix"`
	Status       string        `db:"status"`
	Scanned      int           `db:"scanned"`
	Matched      int           `db:"matched"`
	Archived     int           `db:"archived"`
	Skipped      int           `db:"skipped"`
	Failed       int           `db:"failed"`
	ErrorMsg     string        `db:"error_msg"`
	StartedUnix  int64         `db:"started_unix"`
	FinishedUnix sql.NullInt64 `db:"finished_unix"`
}

func newRunRow(r models.Run) runRow {
	row := runRow{
		ID:          r.ID,
		Maildir:     r.Maildir,
		OutputDir:   r.OutputDir,
		Mode:        string(r.Mode),
		SplitBy:     string(r.SplitBy),
		BeforeUnix:  r.Before.Unix(),
		Status:      string(r.Status),
		Scanned:     r.Scanned,
		Matched:     r.Matched,
		Archived:    r.Archived,
		Skipped:     r.Skipped,
		Failed:      r.Failed,
		ErrorMsg:    r.ErrorMsg,
		StartedUnix: r.StartedAt.Unix(),
	}
	if r.FinishedAt != nil {
		row.FinishedUnix = sql.NullInt64{Int64: r.FinishedAt.Unix(), Valid: true}
	}
	return row
}

func (row runRow) model() models.Run {
	r := models.Run{
		ID:        row.ID,
		Maildir:   row.Maildir,
		OutputDir: row.OutputDir,
		Mode:      models.Mode(row.Mode),
		SplitBy:   models.Split(row.SplitBy),
		Before:    time.Unix(row.BeforeUnix, 0).UTC(),
		Status:    models.RunStatus(row.Status),
		Scanned:   row.Scanned,
		Matched:   row.Matched,
		Archived:  row.Archived,
		Skipped:   row.Skipped,
		Failed:    row.Failed,
		ErrorMsg:  row.ErrorMsg,
		StartedAt: time.Unix(row.StartedUnix, 0).UTC(),
	}
	if row.FinishedUnix.Valid {
		t := time.Unix(row.FinishedUnix.Int64, 0).UTC()
		r.FinishedAt = &t
	}
	return r
}

// recordRow mirrors the archive_records table.
type recordRow struct {
	RunID        string `db:"run_id"`
	MessageKey   string `db:"message_key"`
	SourceDir    string `db:"source_dir"`
	TargetDir    string `db:"target_dir"`
	MessageUnix  int64  `db:"message_unix"`
	ArchivedUnix int64  `db:"archived_unix"`
}

func newRecordRow(rec models.Record) recordRow {
	return recordRow{
		RunID:        rec.RunID,
		MessageKey:   rec.MessageKey,
		SourceDir:    rec.SourceDir,
		TargetDir:    rec.TargetDir,
		MessageUnix:  rec.MessageDate.Unix(),
		ArchivedUnix: rec.ArchivedAt.Unix(),
	}
}

func (row recordRow) model() models.Record {
	return models.Record{
		RunID:       row.RunID,
		MessageKey:  row.MessageKey,
		SourceDir:   row.SourceDir,
		TargetDir:   row.TargetDir,
		MessageDate: time.Unix(row.MessageUnix, 0).UTC(),
		ArchivedAt:  time.Unix(row.ArchivedUnix, 0).UTC(),
	}
}
