package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".
)

// walJournalSizeLimit caps the WAL journal at 64 MiB.
const walJournalSizeLimit = 67108864

// SQLiteStore implements the Store interface using an embedded SQLite
// database with WAL mode. All sync state (records, category mappings, audit
// log) is persisted here. Single-writer: concurrent sync runs against the
// same database are not supported.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger

	// Prepared statements for repeated queries, grouped by domain.
	recordStmts  recordStatements
	mappingStmts mappingStatements
	logStmts     logStatements
}

type recordStatements struct {
	get, getByHost, getByDevice, upsert, delete, all *sql.Stmt
}

type mappingStatements struct {
	getByDevice, getByHost, upsert, delete, all *sql.Stmt
}

type logStatements struct {
	insert, recent *sql.Stmt
}

// NewStore creates a SQLiteStore, opening the database at dbPath, applying
// migrations, and preparing all repeated statements. Use ":memory:" for tests.
func NewStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	logger.Info("opening sync state database", "path", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sync: open sqlite: %w", err)
	}

	// Single connection: the store is single-writer, and it keeps ":memory:"
	// databases coherent (each pooled connection would otherwise get its own).
	db.SetMaxOpenConns(1)

	if err := setPragmas(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db, logger: logger}

	if err := s.prepareAllStatements(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("sync: prepare statements: %w", err)
	}

	logger.Info("sync state database ready", "path", dbPath)

	return s, nil
}

// setPragmas configures SQLite for WAL mode and safety.
func setPragmas(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	pragmas := []struct {
		sql  string
		desc string
	}{
		{"PRAGMA journal_mode = WAL", "WAL mode"},
		{"PRAGMA synchronous = FULL", "synchronous FULL"},
		{"PRAGMA foreign_keys = ON", "foreign keys"},
		{fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit), "journal size limit"},
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p.sql); err != nil {
			return fmt.Errorf("sync: set pragma %s: %w", p.desc, err)
		}

		logger.Debug("pragma set", "pragma", p.desc)
	}

	return nil
}

// --- SQL query constants ---

const (
	sqlRecordColumns = `sync_id, host_id, device_id, last_synced_hash,
		last_sync_time, source_system`

	sqlGetRecord = `SELECT ` + sqlRecordColumns +
		` FROM sync_records WHERE sync_id = ?`

	sqlGetByHostID = `SELECT ` + sqlRecordColumns +
		` FROM sync_records WHERE host_id = ?`

	sqlGetByDeviceID = `SELECT ` + sqlRecordColumns +
		` FROM sync_records WHERE device_id = ?`

	sqlUpsertRecord = `INSERT INTO sync_records (` + sqlRecordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(sync_id) DO UPDATE SET
			host_id          = excluded.host_id,
			device_id        = excluded.device_id,
			last_synced_hash = excluded.last_synced_hash,
			last_sync_time   = excluded.last_sync_time,
			source_system    = excluded.source_system`

	sqlDeleteRecord = `DELETE FROM sync_records WHERE sync_id = ?`

	sqlAllRecords = `SELECT ` + sqlRecordColumns + ` FROM sync_records`
)

const (
	sqlMappingColumns = `device_id, host_id, name`

	sqlGetMappingByDevice = `SELECT ` + sqlMappingColumns +
		` FROM category_mappings WHERE device_id = ?`

	sqlGetMappingByHost = `SELECT ` + sqlMappingColumns +
		` FROM category_mappings WHERE host_id = ?`

	sqlUpsertMapping = `INSERT INTO category_mappings (` + sqlMappingColumns + `)
		VALUES (?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			host_id = excluded.host_id,
			name    = excluded.name`

	sqlDeleteMapping = `DELETE FROM category_mappings WHERE device_id = ?`

	sqlAllMappings = `SELECT ` + sqlMappingColumns + ` FROM category_mappings`
)

const (
	sqlInsertLog = `INSERT INTO sync_log (timestamp, action, sync_id, details)
		VALUES (?, ?, ?, ?)`

	sqlRecentLogs = `SELECT id, timestamp, action, sync_id, details
		FROM sync_log ORDER BY id DESC LIMIT ?`
)

// stmtDef maps a SQL string to the prepared statement pointer it should
// populate. Used by the generic prepare helper to eliminate repetitive
// error handling.
type stmtDef struct {
	dest **sql.Stmt
	sql  string
	name string
}

// prepareAll prepares a batch of statements, returning on first error.
func prepareAll(ctx context.Context, db *sql.DB, defs []stmtDef) error {
	for i := range defs {
		stmt, err := db.PrepareContext(ctx, defs[i].sql)
		if err != nil {
			return fmt.Errorf("prepare %s: %w", defs[i].name, err)
		}

		*defs[i].dest = stmt
	}

	return nil
}

func (s *SQLiteStore) prepareAllStatements(ctx context.Context) error {
	if err := prepareAll(ctx, s.db, []stmtDef{
		{&s.recordStmts.get, sqlGetRecord, "getRecord"},
		{&s.recordStmts.getByHost, sqlGetByHostID, "getByHostID"},
		{&s.recordStmts.getByDevice, sqlGetByDeviceID, "getByDeviceID"},
		{&s.recordStmts.upsert, sqlUpsertRecord, "upsertRecord"},
		{&s.recordStmts.delete, sqlDeleteRecord, "deleteRecord"},
		{&s.recordStmts.all, sqlAllRecords, "allRecords"},
	}); err != nil {
		return err
	}

	if err := prepareAll(ctx, s.db, []stmtDef{
		{&s.mappingStmts.getByDevice, sqlGetMappingByDevice, "getMappingByDevice"},
		{&s.mappingStmts.getByHost, sqlGetMappingByHost, "getMappingByHost"},
		{&s.mappingStmts.upsert, sqlUpsertMapping, "upsertMapping"},
		{&s.mappingStmts.delete, sqlDeleteMapping, "deleteMapping"},
		{&s.mappingStmts.all, sqlAllMappings, "allMappings"},
	}); err != nil {
		return err
	}

	return prepareAll(ctx, s.db, []stmtDef{
		{&s.logStmts.insert, sqlInsertLog, "insertLog"},
		{&s.logStmts.recent, sqlRecentLogs, "recentLogs"},
	})
}

// --- Scanning helpers ---

// scanRecord scans a full sync_records row. NULL host_id/device_id map to
// empty strings.
func scanRecord(row interface{ Scan(...any) error }) (*SyncRecord, error) {
	r := &SyncRecord{}

	var hostID, deviceID sql.NullString
	var source string

	err := row.Scan(&r.SyncID, &hostID, &deviceID,
		&r.LastSyncedHash, &r.LastSyncTime, &source)
	if err != nil {
		return nil, err
	}

	r.HostID = hostID.String
	r.DeviceID = deviceID.String
	r.SourceSystem = SourceSystem(source)

	return r, nil
}

// scanRecordRows iterates over sql.Rows and collects SyncRecords.
func scanRecordRows(rows *sql.Rows) ([]*SyncRecord, error) {
	var records []*SyncRecord

	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record row: %w", err)
		}

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate record rows: %w", err)
	}

	return records, nil
}

// nullable converts an empty string to a NULL column value so the partial
// indices on host_id/device_id distinguish "side gone" from a real ID.
func nullable(v string) any {
	if v == "" {
		return nil
	}

	return v
}

// --- Sync record methods ---

// GetRecord retrieves a sync record by sync ID.
// Returns (nil, nil) if no record exists — callers use the nil record to
// distinguish "never paired" from "known pairing".
func (s *SQLiteStore) GetRecord(ctx context.Context, syncID string) (*SyncRecord, error) {
	s.logger.Debug("getting sync record", "sync_id", syncID)

	r, err := scanRecord(s.recordStmts.get.QueryRowContext(ctx, syncID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", syncID, err)
	}

	return r, nil
}

// GetByHostID finds a sync record by Host reminder ID. Returns (nil, nil)
// when no record references the ID.
func (s *SQLiteStore) GetByHostID(ctx context.Context, hostID string) (*SyncRecord, error) {
	s.logger.Debug("getting sync record by host id", "host_id", hostID)

	r, err := scanRecord(s.recordStmts.getByHost.QueryRowContext(ctx, hostID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("get record by host id %s: %w", hostID, err)
	}

	return r, nil
}

// GetByDeviceID finds a sync record by Device task ID. Returns (nil, nil)
// when no record references the ID.
func (s *SQLiteStore) GetByDeviceID(ctx context.Context, deviceID string) (*SyncRecord, error) {
	s.logger.Debug("getting sync record by device id", "device_id", deviceID)

	r, err := scanRecord(s.recordStmts.getByDevice.QueryRowContext(ctx, deviceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("get record by device id %s: %w", deviceID, err)
	}

	return r, nil
}

// UpsertRecord inserts or replaces a sync record keyed by sync_id.
func (s *SQLiteStore) UpsertRecord(ctx context.Context, record *SyncRecord) error {
	s.logger.Debug("upserting sync record",
		"sync_id", record.SyncID,
		"host_id", record.HostID,
		"device_id", record.DeviceID,
	)

	_, err := s.recordStmts.upsert.ExecContext(ctx,
		record.SyncID, nullable(record.HostID), nullable(record.DeviceID),
		record.LastSyncedHash, record.LastSyncTime, string(record.SourceSystem),
	)
	if err != nil {
		return fmt.Errorf("upsert record %s: %w", record.SyncID, err)
	}

	return nil
}

// DeleteRecord removes a sync record. Deleting a nonexistent record is not
// an error.
func (s *SQLiteStore) DeleteRecord(ctx context.Context, syncID string) error {
	s.logger.Debug("deleting sync record", "sync_id", syncID)

	_, err := s.recordStmts.delete.ExecContext(ctx, syncID)
	if err != nil {
		return fmt.Errorf("delete record %s: %w", syncID, err)
	}

	return nil
}

// AllRecords returns every sync record.
func (s *SQLiteStore) AllRecords(ctx context.Context) ([]*SyncRecord, error) {
	s.logger.Debug("listing all sync records")

	rows, err := s.recordStmts.all.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	return scanRecordRows(rows)
}

// Stats returns counts of sync records partitioned by which sides they
// reference.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	s.logger.Debug("computing sync record stats")

	const query = `SELECT
		COUNT(*),
		COUNT(CASE WHEN host_id IS NOT NULL AND device_id IS NULL THEN 1 END),
		COUNT(CASE WHEN device_id IS NOT NULL AND host_id IS NULL THEN 1 END),
		COUNT(CASE WHEN host_id IS NOT NULL AND device_id IS NOT NULL THEN 1 END)
		FROM sync_records`

	st := &Stats{}

	err := s.db.QueryRowContext(ctx, query).
		Scan(&st.Total, &st.HostOnly, &st.DeviceOnly, &st.Both)
	if err != nil {
		return nil, fmt.Errorf("record stats: %w", err)
	}

	return st, nil
}

// --- Category mapping methods ---

// scanMapping scans a category_mappings row.
func scanMapping(row interface{ Scan(...any) error }) (*CategoryMapping, error) {
	m := &CategoryMapping{}

	if err := row.Scan(&m.DeviceID, &m.HostID, &m.Name); err != nil {
		return nil, err
	}

	return m, nil
}

// GetMappingByDeviceID finds a category mapping by Device category ID.
// Returns (nil, nil) when unmapped.
func (s *SQLiteStore) GetMappingByDeviceID(ctx context.Context, deviceID string) (*CategoryMapping, error) {
	s.logger.Debug("getting category mapping", "device_id", deviceID)

	m, err := scanMapping(s.mappingStmts.getByDevice.QueryRowContext(ctx, deviceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("get mapping by device id %s: %w", deviceID, err)
	}

	return m, nil
}

// GetMappingByHostID finds a category mapping by Host list ID.
// Returns (nil, nil) when unmapped.
func (s *SQLiteStore) GetMappingByHostID(ctx context.Context, hostID string) (*CategoryMapping, error) {
	s.logger.Debug("getting category mapping", "host_id", hostID)

	m, err := scanMapping(s.mappingStmts.getByHost.QueryRowContext(ctx, hostID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("get mapping by host id %s: %w", hostID, err)
	}

	return m, nil
}

// UpsertMapping inserts or replaces a category mapping keyed by device_id.
func (s *SQLiteStore) UpsertMapping(ctx context.Context, mapping *CategoryMapping) error {
	s.logger.Debug("upserting category mapping",
		"device_id", mapping.DeviceID,
		"host_id", mapping.HostID,
		"name", mapping.Name,
	)

	_, err := s.mappingStmts.upsert.ExecContext(ctx,
		mapping.DeviceID, mapping.HostID, mapping.Name)
	if err != nil {
		return fmt.Errorf("upsert mapping %s: %w", mapping.DeviceID, err)
	}

	return nil
}

// DeleteMapping removes a category mapping by Device category ID.
func (s *SQLiteStore) DeleteMapping(ctx context.Context, deviceID string) error {
	s.logger.Debug("deleting category mapping", "device_id", deviceID)

	_, err := s.mappingStmts.delete.ExecContext(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("delete mapping %s: %w", deviceID, err)
	}

	return nil
}

// AllMappings returns every category mapping.
func (s *SQLiteStore) AllMappings(ctx context.Context) ([]*CategoryMapping, error) {
	s.logger.Debug("listing all category mappings")

	rows, err := s.mappingStmts.all.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*CategoryMapping

	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mapping row: %w", err)
		}

		mappings = append(mappings, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mapping rows: %w", err)
	}

	return mappings, nil
}

// --- Audit log methods ---

// LogAction appends one entry to the audit log. syncID and details may be
// empty; empty values are stored as NULL.
func (s *SQLiteStore) LogAction(ctx context.Context, action, syncID, details string) error {
	s.logger.Debug("logging action", "action", action, "sync_id", syncID)

	_, err := s.logStmts.insert.ExecContext(ctx,
		NowUnix(), action, nullable(syncID), nullable(details))
	if err != nil {
		return fmt.Errorf("log action %s: %w", action, err)
	}

	return nil
}

// RecentLogs returns the most recent audit log entries, newest first.
func (s *SQLiteStore) RecentLogs(ctx context.Context, limit int) ([]*LogEntry, error) {
	s.logger.Debug("listing recent logs", "limit", limit)

	rows, err := s.logStmts.recent.QueryContext(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("recent logs: %w", err)
	}
	defer rows.Close()

	var entries []*LogEntry

	for rows.Next() {
		e := &LogEntry{}

		var syncID, details sql.NullString

		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Action, &syncID, &details); err != nil {
			return nil, fmt.Errorf("scan log row: %w", err)
		}

		e.SyncID = syncID.String
		e.Details = details.String

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log rows: %w", err)
	}

	return entries, nil
}

// --- Maintenance methods ---

// ClearAll removes all sync records and category mappings. The audit log is
// kept — clearing state is itself an auditable event.
func (s *SQLiteStore) ClearAll(ctx context.Context) error {
	s.logger.Info("clearing all sync state")

	if _, err := s.db.ExecContext(ctx, `DELETE FROM sync_records`); err != nil {
		return fmt.Errorf("clear sync records: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM category_mappings`); err != nil {
		return fmt.Errorf("clear category mappings: %w", err)
	}

	return nil
}

// Close closes all prepared statements and the database connection.
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing sync state database")

	if err := s.closeStatements(); err != nil {
		s.logger.Error("error closing statements", "error", err)
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}

	return nil
}

// closeStatements closes all prepared statements, collecting errors.
func (s *SQLiteStore) closeStatements() error {
	stmts := []*sql.Stmt{
		s.recordStmts.get, s.recordStmts.getByHost, s.recordStmts.getByDevice,
		s.recordStmts.upsert, s.recordStmts.delete, s.recordStmts.all,
		s.mappingStmts.getByDevice, s.mappingStmts.getByHost,
		s.mappingStmts.upsert, s.mappingStmts.delete, s.mappingStmts.all,
		s.logStmts.insert, s.logStmts.recent,
	}

	var errs []string

	for _, stmt := range stmts {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				errs = append(errs, err.Error())
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close statements: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)
