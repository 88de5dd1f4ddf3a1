package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"flow-efficiency/pkg/config"
	"flow-efficiency/pkg/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps a database connection together with its placeholder dialect.
// Queries are written with ? placeholders and rebound for Postgres.
type DB struct {
	*sql.DB
	driver string
}

// NewDB opens a Postgres (lib/pq) or SQLite (modernc) connection
func NewDB(driver, dsn string) (*DB, error) {
	var driverName string
	switch driver {
	case config.DriverPostgres:
		driverName = "postgres"
	case config.DriverSQLite:
		driverName = "sqlite"
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == config.DriverSQLite {
		// a single connection keeps :memory: databases alive and avoids SQLITE_BUSY
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db, driver: driver}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS deal_records (
    id TEXT NOT NULL,
    period TEXT NOT NULL,
    metric TEXT NOT NULL,
    start_date DATE NOT NULL,
    end_date DATE NOT NULL,
    duration_days INTEGER NOT NULL CHECK (duration_days >= 0),
    position INTEGER NOT NULL UNIQUE,
    PRIMARY KEY (period, id)
);
CREATE INDEX IF NOT EXISTS idx_deal_records_metric ON deal_records(period, metric);

CREATE TABLE IF NOT EXISTS canonical_mappings (
    id TEXT PRIMARY KEY,
    canonical_stage TEXT NOT NULL UNIQUE,
    start_pipeline TEXT NOT NULL,
    start_stage TEXT NOT NULL,
    end_pipeline TEXT NOT NULL,
    end_stage TEXT NOT NULL,
    position INTEGER NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS mapping_versions (
    id TEXT PRIMARY KEY,
    version TEXT NOT NULL UNIQUE,
    effective_date DATE NOT NULL,
    created_by TEXT NOT NULL,
    status TEXT NOT NULL CHECK (status IN ('Active', 'Draft')),
    created_at TIMESTAMP NOT NULL,
    position INTEGER NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS mapping_version_entries (
    version_id TEXT NOT NULL REFERENCES mapping_versions(id),
    mapping_id TEXT NOT NULL,
    canonical_stage TEXT NOT NULL,
    start_pipeline TEXT NOT NULL,
    start_stage TEXT NOT NULL,
    end_pipeline TEXT NOT NULL,
    end_stage TEXT NOT NULL,
    position INTEGER NOT NULL,
    PRIMARY KEY (version_id, mapping_id)
);

CREATE TABLE IF NOT EXISTS deals (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    value TEXT NOT NULL,
    position INTEGER NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS deal_stage_transitions (
    deal_id TEXT NOT NULL REFERENCES deals(id),
    stage TEXT NOT NULL,
    started_at TIMESTAMP,
    ended_at TIMESTAMP,
    PRIMARY KEY (deal_id, stage)
);
`

// Migrate creates the schema if it does not exist yet
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres
func (db *DB) rebind(query string) string {
	if db.driver != config.DriverPostgres {
		return query
	}
	return sqlx.Rebind(sqlx.DOLLAR, query)
}

func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// positionLock returns the statement that serializes position allocation on
// table for the rest of the transaction. SQLite runs on a single connection
// and needs none.
func (db *DB) positionLock(table string) string {
	if db.driver != config.DriverPostgres {
		return ""
	}
	return "LOCK TABLE " + table + " IN SHARE ROW EXCLUSIVE MODE"
}

func (db *DB) nextPosition(ctx context.Context, tx *sql.Tx, table string) (int, error) {
	if lock := db.positionLock(table); lock != "" {
		if _, err := tx.ExecContext(ctx, lock); err != nil {
			return 0, fmt.Errorf("failed to lock %s: %w", table, err)
		}
	}

	var pos int
	err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(position), 0) + 1 FROM "+table).Scan(&pos)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate position in %s: %w", table, err)
	}
	return pos, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Name() == "unique_violation"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
		return strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
	}
	return false
}

// NewSQLStore returns a store backed by db
func NewSQLStore(db *DB) *Store {
	return &Store{
		Records:  NewSQLDealRecordRepository(db),
		Mappings: NewSQLMappingRepository(db),
		Versions: NewSQLVersionRepository(db),
		Deals:    NewSQLDealRepository(db),
		close:    db.Close,
	}
}

// SQLDealRecordRepository implements DealRecordRepository
type SQLDealRecordRepository struct {
	db *DB
}

func NewSQLDealRecordRepository(db *DB) *SQLDealRecordRepository {
	return &SQLDealRecordRepository{db: db}
}

func (r *SQLDealRecordRepository) ListByPeriod(ctx context.Context, period models.Period) ([]models.DealRecord, error) {
	query := `
		SELECT id, metric, period, start_date, end_date, duration_days
		FROM deal_records
		WHERE period = ?
		ORDER BY position
	`
	return r.query(ctx, query, string(period))
}

func (r *SQLDealRecordRepository) ListByMetricAndPeriod(ctx context.Context, metric models.MetricName, period models.Period) ([]models.DealRecord, error) {
	query := `
		SELECT id, metric, period, start_date, end_date, duration_days
		FROM deal_records
		WHERE period = ? AND metric = ?
		ORDER BY position
	`
	return r.query(ctx, query, string(period), string(metric))
}

func (r *SQLDealRecordRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.DealRecord, error) {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query deal records: %w", err)
	}
	defer rows.Close()

	var records []models.DealRecord
	for rows.Next() {
		var rec models.DealRecord
		err := rows.Scan(
			&rec.ID,
			&rec.Metric,
			&rec.Period,
			&rec.StartDate.Time,
			&rec.EndDate.Time,
			&rec.DurationDays,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deal record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *SQLDealRecordRepository) Create(ctx context.Context, record *models.DealRecord) error {
	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		pos, err := r.db.nextPosition(ctx, tx, "deal_records")
		if err != nil {
			return err
		}

		query := `
			INSERT INTO deal_records (
				id, period, metric, start_date, end_date, duration_days, position
			) VALUES (?, ?, ?, ?, ?, ?, ?)
		`
		_, err = tx.ExecContext(ctx, r.db.rebind(query),
			record.ID,
			string(record.Period),
			string(record.Metric),
			record.StartDate.Time,
			record.EndDate.Time,
			record.DurationDays,
			pos,
		)
		if isUniqueViolation(err) {
			return ErrConflict
		}
		if err != nil {
			return fmt.Errorf("failed to create deal record: %w", err)
		}
		return nil
	})
}

// SQLMappingRepository implements MappingRepository
type SQLMappingRepository struct {
	db *DB
}

func NewSQLMappingRepository(db *DB) *SQLMappingRepository {
	return &SQLMappingRepository{db: db}
}

func (r *SQLMappingRepository) List(ctx context.Context) ([]models.CanonicalMapping, error) {
	query := `
		SELECT id, canonical_stage, start_pipeline, start_stage,
		       end_pipeline, end_stage, position
		FROM canonical_mappings
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query mappings: %w", err)
	}
	defer rows.Close()

	var mappings []models.CanonicalMapping
	for rows.Next() {
		var m models.CanonicalMapping
		err := rows.Scan(
			&m.ID,
			&m.CanonicalStage,
			&m.StartPipeline,
			&m.StartStage,
			&m.EndPipeline,
			&m.EndStage,
			&m.Position,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

func (r *SQLMappingRepository) Create(ctx context.Context, mapping *models.CanonicalMapping) error {
	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		pos, err := r.db.nextPosition(ctx, tx, "canonical_mappings")
		if err != nil {
			return err
		}

		query := `
			INSERT INTO canonical_mappings (
				id, canonical_stage, start_pipeline, start_stage,
				end_pipeline, end_stage, position
			) VALUES (?, ?, ?, ?, ?, ?, ?)
		`
		_, err = tx.ExecContext(ctx, r.db.rebind(query),
			mapping.ID,
			string(mapping.CanonicalStage),
			mapping.StartPipeline,
			mapping.StartStage,
			mapping.EndPipeline,
			mapping.EndStage,
			pos,
		)
		if isUniqueViolation(err) {
			return ErrConflict
		}
		if err != nil {
			return fmt.Errorf("failed to create mapping: %w", err)
		}
		mapping.Position = pos
		return nil
	})
}

func (r *SQLMappingRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.rebind(`DELETE FROM canonical_mappings WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete mapping: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete mapping: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SQLVersionRepository implements VersionRepository
type SQLVersionRepository struct {
	db *DB
}

func NewSQLVersionRepository(db *DB) *SQLVersionRepository {
	return &SQLVersionRepository{db: db}
}

func (r *SQLVersionRepository) List(ctx context.Context) ([]models.MappingVersion, error) {
	query := `
		SELECT id, version, effective_date, created_by, status, created_at
		FROM mapping_versions
		ORDER BY effective_date, position
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query versions: %w", err)
	}
	defer rows.Close()

	var versions []models.MappingVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	entries, err := r.entries(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range versions {
		versions[i].Mappings = entries[versions[i].ID]
	}
	return versions, nil
}

func (r *SQLVersionRepository) GetByID(ctx context.Context, id string) (*models.MappingVersion, error) {
	query := `
		SELECT id, version, effective_date, created_by, status, created_at
		FROM mapping_versions
		WHERE id = ?
	`

	v, err := scanVersion(r.db.QueryRowContext(ctx, r.db.rebind(query), id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	entries, err := r.entries(ctx, id)
	if err != nil {
		return nil, err
	}
	v.Mappings = entries[id]
	return v, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVersion(row rowScanner) (*models.MappingVersion, error) {
	var v models.MappingVersion
	err := row.Scan(
		&v.ID,
		&v.Version,
		&v.EffectiveDate.Time,
		&v.CreatedBy,
		&v.Status,
		&v.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan version: %w", err)
	}
	return &v, nil
}

// entries loads snapshot rows grouped by version, for one version or all
// when versionID is empty.
func (r *SQLVersionRepository) entries(ctx context.Context, versionID string) (map[string][]models.CanonicalMapping, error) {
	query := `
		SELECT version_id, mapping_id, canonical_stage, start_pipeline,
		       start_stage, end_pipeline, end_stage, position
		FROM mapping_version_entries
	`
	var args []interface{}
	if versionID != "" {
		query += " WHERE version_id = ?"
		args = append(args, versionID)
	}
	query += " ORDER BY version_id, position"

	rows, err := r.db.QueryContext(ctx, r.db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query version entries: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]models.CanonicalMapping)
	for rows.Next() {
		var vid string
		var m models.CanonicalMapping
		err := rows.Scan(
			&vid,
			&m.ID,
			&m.CanonicalStage,
			&m.StartPipeline,
			&m.StartStage,
			&m.EndPipeline,
			&m.EndStage,
			&m.Position,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version entry: %w", err)
		}
		out[vid] = append(out[vid], m)
	}
	return out, rows.Err()
}

func (r *SQLVersionRepository) Create(ctx context.Context, version *models.MappingVersion) error {
	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		pos, err := r.db.nextPosition(ctx, tx, "mapping_versions")
		if err != nil {
			return err
		}

		query := `
			INSERT INTO mapping_versions (
				id, version, effective_date, created_by, status, created_at, position
			) VALUES (?, ?, ?, ?, ?, ?, ?)
		`
		_, err = tx.ExecContext(ctx, r.db.rebind(query),
			version.ID,
			version.Version,
			version.EffectiveDate.Time,
			version.CreatedBy,
			string(version.Status),
			version.CreatedAt.UTC(),
			pos,
		)
		if isUniqueViolation(err) {
			return ErrConflict
		}
		if err != nil {
			return fmt.Errorf("failed to create version: %w", err)
		}

		entryQuery := r.db.rebind(`
			INSERT INTO mapping_version_entries (
				version_id, mapping_id, canonical_stage, start_pipeline,
				start_stage, end_pipeline, end_stage, position
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		for _, m := range version.Mappings {
			_, err := tx.ExecContext(ctx, entryQuery,
				version.ID,
				m.ID,
				string(m.CanonicalStage),
				m.StartPipeline,
				m.StartStage,
				m.EndPipeline,
				m.EndStage,
				m.Position,
			)
			if err != nil {
				return fmt.Errorf("failed to snapshot mapping %s: %w", m.ID, err)
			}
		}
		return nil
	})
}

// SetActive flips every version to Draft except id, in one statement
func (r *SQLVersionRepository) SetActive(ctx context.Context, id string) error {
	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, r.db.rebind(`SELECT COUNT(*) FROM mapping_versions WHERE id = ?`), id).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to look up version: %w", err)
		}
		if exists == 0 {
			return ErrNotFound
		}

		query := `
			UPDATE mapping_versions
			SET status = CASE WHEN id = ? THEN 'Active' ELSE 'Draft' END
		`
		if _, err := tx.ExecContext(ctx, r.db.rebind(query), id); err != nil {
			return fmt.Errorf("failed to activate version: %w", err)
		}
		return nil
	})
}

// SQLDealRepository implements DealRepository
type SQLDealRepository struct {
	db *DB
}

func NewSQLDealRepository(db *DB) *SQLDealRepository {
	return &SQLDealRepository{db: db}
}

func (r *SQLDealRepository) List(ctx context.Context) ([]models.Deal, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, value FROM deals ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query deals: %w", err)
	}
	defer rows.Close()

	var deals []models.Deal
	for rows.Next() {
		var d models.Deal
		if err := rows.Scan(&d.ID, &d.Name, &d.Value); err != nil {
			return nil, fmt.Errorf("failed to scan deal: %w", err)
		}
		deals = append(deals, d)
	}
	return deals, rows.Err()
}

func (r *SQLDealRepository) GetByID(ctx context.Context, dealID string) (*models.Deal, error) {
	var d models.Deal
	err := r.db.QueryRowContext(ctx, r.db.rebind(`SELECT id, name, value FROM deals WHERE id = ?`), dealID).
		Scan(&d.ID, &d.Name, &d.Value)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deal: %w", err)
	}
	return &d, nil
}

func (r *SQLDealRepository) Create(ctx context.Context, deal *models.Deal) error {
	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		pos, err := r.db.nextPosition(ctx, tx, "deals")
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, r.db.rebind(`INSERT INTO deals (id, name, value, position) VALUES (?, ?, ?, ?)`),
			deal.ID,
			deal.Name,
			deal.Value.String(),
			pos,
		)
		if isUniqueViolation(err) {
			return ErrConflict
		}
		if err != nil {
			return fmt.Errorf("failed to create deal: %w", err)
		}
		return nil
	})
}

func (r *SQLDealRepository) GetTransitions(ctx context.Context, dealID string) ([]models.StageTransition, error) {
	if _, err := r.GetByID(ctx, dealID); err != nil {
		return nil, err
	}

	query := `
		SELECT stage, started_at, ended_at
		FROM deal_stage_transitions
		WHERE deal_id = ?
	`
	rows, err := r.db.QueryContext(ctx, r.db.rebind(query), dealID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	var transitions []models.StageTransition
	for rows.Next() {
		var t models.StageTransition
		var start, end sql.NullTime
		if err := rows.Scan(&t.Stage, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		t.Start = nullTimePtr(start)
		t.End = nullTimePtr(end)
		transitions = append(transitions, t)
	}
	return transitions, rows.Err()
}

// SaveTransition inserts or replaces the transition for its stage
func (r *SQLDealRepository) SaveTransition(ctx context.Context, dealID string, transition models.StageTransition) error {
	if _, err := r.GetByID(ctx, dealID); err != nil {
		return err
	}

	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, r.db.rebind(`DELETE FROM deal_stage_transitions WHERE deal_id = ? AND stage = ?`),
			dealID, string(transition.Stage))
		if err != nil {
			return fmt.Errorf("failed to replace transition: %w", err)
		}

		query := `
			INSERT INTO deal_stage_transitions (deal_id, stage, started_at, ended_at)
			VALUES (?, ?, ?, ?)
		`
		_, err = tx.ExecContext(ctx, r.db.rebind(query),
			dealID,
			string(transition.Stage),
			timePtrArg(transition.Start),
			timePtrArg(transition.End),
		)
		if err != nil {
			return fmt.Errorf("failed to save transition: %w", err)
		}
		return nil
	})
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func timePtrArg(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
