// Package store is the SQLite-backed catalog: the catalog, checks, and
// resources_exceptions tables, plus creation of per-resource mirror tables.
// Every value is bound as a statement parameter. The mirror-table statements
// are the one place identifiers enter the query text: the table name (checked
// to be 32 lowercase hex characters) and the column names taken from the CSV
// header are formatted into the statement.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/opendata-ops/hydracrawl/internal/model"
)

// Store wraps a SQLite handle with the crawler's schema and access methods.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and applies
// the schema. Mirrors internal/plex/dvr.go's database/sql + modernc.org/sqlite
// wiring; unreachable database at startup is a fatal condition for the caller.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

const schema = `
CREATE TABLE IF NOT EXISTS catalog (
	resource_id TEXT PRIMARY KEY,
	dataset_id TEXT NOT NULL,
	url TEXT NOT NULL,
	domain TEXT NOT NULL,
	deleted INTEGER NOT NULL DEFAULT 0,
	priority INTEGER NOT NULL DEFAULT 0,
	initialization INTEGER NOT NULL DEFAULT 1,
	last_check INTEGER,
	next_check_at TEXT,
	harvest_modified_at TEXT,
	status TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_catalog_next_check ON catalog(deleted, priority, initialization, next_check_at);

CREATE TABLE IF NOT EXISTS checks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	resource_id TEXT NOT NULL,
	dataset_id TEXT NOT NULL,
	url TEXT NOT NULL,
	domain TEXT NOT NULL,
	created_at TEXT NOT NULL,
	status INTEGER,
	timeout INTEGER NOT NULL DEFAULT 0,
	response_time REAL NOT NULL DEFAULT 0,
	error TEXT,
	headers TEXT,
	checksum TEXT,
	filesize INTEGER,
	mime_type TEXT,
	detected_last_modified_at TEXT,
	next_check_at TEXT,
	parsing_started_at TEXT,
	parsing_finished_at TEXT,
	parsing_error TEXT,
	parsing_table TEXT
);
CREATE INDEX IF NOT EXISTS idx_checks_resource_created ON checks(resource_id, created_at DESC);

CREATE TABLE IF NOT EXISTS resources_exceptions (
	resource_id TEXT PRIMARY KEY,
	table_indexes TEXT NOT NULL DEFAULT '{}',
	comment TEXT NOT NULL DEFAULT ''
);
`

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const timeLayout = time.RFC3339Nano

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

// InsertFromUpstream creates a new catalog row for an upstream create event.
// The row is always marked priority so the scheduler's select_batch picks it
// up on the very next pass, mirroring the behaviour of the original
// resources_legacy POST /api/resources/ route.
func (s *Store) InsertFromUpstream(ctx context.Context, datasetID, url, domain string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO catalog (resource_id, dataset_id, url, domain, deleted, priority, initialization, status)
		VALUES (?, ?, ?, ?, 0, 1, 1, ?)`,
		id.String(), datasetID, url, domain, string(model.StatusNone))
	if err != nil {
		return uuid.Nil, fmt.Errorf("store: insert resource: %w", err)
	}
	return id, nil
}

// UpdateURL changes a resource's URL in place (upstream update event), never
// inserting a duplicate row, per the catalog's identity invariant.
func (s *Store) UpdateURL(ctx context.Context, id uuid.UUID, newURL, newDomain string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE catalog SET url = ?, domain = ? WHERE resource_id = ?`,
		newURL, newDomain, id.String())
	if err != nil {
		return fmt.Errorf("store: update url: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SoftDelete tombstones a resource: excluded from scheduling, checks history retained.
func (s *Store) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `UPDATE catalog SET deleted = 1 WHERE resource_id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("store: soft delete: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetResource fetches a catalog row by resource_id.
func (s *Store) GetResource(ctx context.Context, id uuid.UUID) (*model.Resource, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT resource_id, dataset_id, url, domain, deleted, priority, initialization,
		       last_check, next_check_at, harvest_modified_at, status
		FROM catalog WHERE resource_id = ?`, id.String())
	return scanResource(row)
}

// GetResourceByURL fetches a catalog row by its current URL.
func (s *Store) GetResourceByURL(ctx context.Context, url string) (*model.Resource, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT resource_id, dataset_id, url, domain, deleted, priority, initialization,
		       last_check, next_check_at, harvest_modified_at, status
		FROM catalog WHERE url = ?`, url)
	return scanResource(row)
}

// CountByStatusBucket returns the three-bucket breakdown used by /api/stats:
// each resource is counted once, by its latest check's classification.
func (s *Store) CountByStatusBucket(ctx context.Context) (ok, timeout, errored int, err error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.status, c.timeout, c.error
		FROM checks c
		JOIN catalog r ON r.last_check = c.id`)
	if err != nil {
		return 0, 0, 0, err
	}
	defer rows.Close()
	for rows.Next() {
		var status sql.NullInt64
		var isTimeout bool
		var errStr sql.NullString
		if err := rows.Scan(&status, &isTimeout, &errStr); err != nil {
			return 0, 0, 0, err
		}
		switch {
		case isTimeout:
			timeout++
		case errStr.Valid || (status.Valid && status.Int64 >= 500):
			errored++
		default:
			ok++
		}
	}
	return ok, timeout, errored, rows.Err()
}

// StatusCodeCounts returns a count per distinct HTTP status among the latest
// check of every resource, for /api/stats's status_codes breakdown.
func (s *Store) StatusCodeCounts(ctx context.Context) (map[int]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.status
		FROM checks c
		JOIN catalog r ON r.last_check = c.id
		WHERE c.status IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[int]int{}
	for rows.Next() {
		var status int
		if err := rows.Scan(&status); err != nil {
			return nil, err
		}
		out[status]++
	}
	return out, rows.Err()
}

// CrawlerStatus returns the counts backing /api/status/crawler.
func (s *Store) CrawlerStatus(ctx context.Context) (total, pending, fresh int, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM catalog WHERE deleted = 0`).Scan(&total); err != nil {
		return
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM catalog WHERE deleted = 0 AND last_check IS NULL`).Scan(&pending); err != nil {
		return
	}
	fresh = total - pending
	return
}

func scanResource(row *sql.Row) (*model.Resource, error) {
	var (
		idStr                                 string
		lastCheck                             sql.NullInt64
		nextCheckAt, harvestModifiedAt, status sql.NullString
		r                                      model.Resource
	)
	if err := row.Scan(&idStr, &r.DatasetID, &r.URL, &r.Domain, &r.Deleted, &r.Priority,
		&r.Initialization, &lastCheck, &nextCheckAt, &harvestModifiedAt, &status); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("store: bad resource_id %q: %w", idStr, err)
	}
	r.ResourceID = id
	if lastCheck.Valid {
		v := lastCheck.Int64
		r.LastCheck = &v
	}
	if nextCheckAt.Valid {
		r.NextCheckAt = parseTime(nextCheckAt.String)
	}
	if harvestModifiedAt.Valid {
		r.HarvestModifiedAt = parseTime(harvestModifiedAt.String)
	}
	r.Status = model.Status(status.String)
	return &r, nil
}

// SelectBatch returns up to limit eligible resources, ordered by the
// three-tier priority scheme of spec §4.1.
func (s *Store) SelectBatch(ctx context.Context, limit int) ([]*model.Resource, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT resource_id, dataset_id, url, domain, deleted, priority, initialization,
		       last_check, next_check_at, harvest_modified_at, status
		FROM catalog
		WHERE deleted = 0 AND (
			priority = 1
			OR initialization = 1
			OR next_check_at IS NULL OR next_check_at <= ?
		)
		ORDER BY
			CASE WHEN priority = 1 THEN 0
			     WHEN initialization = 1 THEN 1
			     ELSE 2 END ASC,
			CASE WHEN next_check_at IS NULL THEN 0 ELSE 1 END ASC,
			next_check_at ASC,
			resource_id ASC
		LIMIT ?`, time.Now().UTC().Format(timeLayout), limit)
	if err != nil {
		return nil, fmt.Errorf("store: select batch: %w", err)
	}
	defer rows.Close()

	var out []*model.Resource
	var ids []string
	for rows.Next() {
		var (
			idStr                                 string
			r                                      model.Resource
			lastCheck                              sql.NullInt64
			nextCheckAt, harvestModifiedAt, status sql.NullString
		)
		if err := rows.Scan(&idStr, &r.DatasetID, &r.URL, &r.Domain, &r.Deleted, &r.Priority,
			&r.Initialization, &lastCheck, &nextCheckAt, &harvestModifiedAt, &status); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		r.ResourceID = id
		if lastCheck.Valid {
			v := lastCheck.Int64
			r.LastCheck = &v
		}
		if nextCheckAt.Valid {
			r.NextCheckAt = parseTime(nextCheckAt.String)
		}
		if harvestModifiedAt.Valid {
			r.HarvestModifiedAt = parseTime(harvestModifiedAt.String)
		}
		r.Status = model.Status(status.String)
		out = append(out, &r)
		ids = append(ids, idStr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}
	// Mark selected rows ineligible for re-selection atomically, per §4.1.
	if err := s.markSelected(ctx, ids); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) markSelected(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `UPDATE catalog SET priority = 0, initialization = 0 WHERE resource_id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SetNextCheck sets the resource's next_check_at (sole writer: the scheduler).
func (s *Store) SetNextCheck(ctx context.Context, id uuid.UUID, next time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE catalog SET next_check_at = ? WHERE resource_id = ?`,
		formatTime(&next), id.String())
	return err
}

// SetStatus writes the resource status-machine column (sole writer: prober/analysis).
func (s *Store) SetStatus(ctx context.Context, id uuid.UUID, status model.Status) error {
	_, err := s.db.ExecContext(ctx, `UPDATE catalog SET status = ? WHERE resource_id = ?`,
		string(status), id.String())
	return err
}

// SetLastCheck links the resource to its most recent checks row.
func (s *Store) SetLastCheck(ctx context.Context, id uuid.UUID, checkID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE catalog SET last_check = ? WHERE resource_id = ?`,
		checkID, id.String())
	return err
}

// InsertCheck appends a new checks row (sole writer: the prober).
func (s *Store) InsertCheck(ctx context.Context, c *model.Check) (int64, error) {
	headers := encodeHeaders(c.Headers)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO checks (resource_id, dataset_id, url, domain, created_at, status, timeout,
		                     response_time, error, headers, next_check_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ResourceID.String(), c.DatasetID, c.URL, c.Domain, formatTime(&c.CreatedAt),
		nullableInt(c.Status), c.Timeout, c.ResponseTime, nullableStr(c.Error), headers,
		formatTime(c.NextCheckAt))
	if err != nil {
		return 0, fmt.Errorf("store: insert check: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateAnalysis writes the fields owned by the analysis pipeline onto an
// existing checks row: checksum, filesize, mime type, and detected
// last-modified timestamp. Parsing bookkeeping is written by UpdateParsing.
// Never touches the immutable columns.
func (s *Store) UpdateAnalysis(ctx context.Context, checkID int64, checksum *string, filesize *int64,
	mimeType *string, detectedLastModifiedAt *time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE checks SET checksum = ?, filesize = ?, mime_type = ?, detected_last_modified_at = ?
		WHERE id = ?`,
		nullableStr(checksum), nullableInt64(filesize), nullableStr(mimeType),
		formatTime(detectedLastModifiedAt), checkID)
	return err
}

// UpdateParsing writes CSV-ingest bookkeeping fields onto a checks row.
func (s *Store) UpdateParsing(ctx context.Context, checkID int64, startedAt, finishedAt *time.Time,
	parsingError *string, parsingTable *string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE checks SET parsing_started_at = ?, parsing_finished_at = ?, parsing_error = ?, parsing_table = ?
		WHERE id = ?`,
		formatTime(startedAt), formatTime(finishedAt), nullableStr(parsingError), nullableStr(parsingTable), checkID)
	return err
}

// LatestCheck returns the most recent checks row for a resource, or nil if none.
func (s *Store) LatestCheck(ctx context.Context, id uuid.UUID) (*model.Check, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, resource_id, dataset_id, url, domain, created_at, status, timeout,
		       response_time, error, headers, checksum, filesize, mime_type,
		       detected_last_modified_at, next_check_at, parsing_started_at,
		       parsing_finished_at, parsing_error, parsing_table
		FROM checks WHERE resource_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, id.String())
	c, err := scanCheck(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// RecentChecks returns up to n most recent checks for a resource, newest first.
func (s *Store) RecentChecks(ctx context.Context, id uuid.UUID, n int) ([]*model.Check, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, resource_id, dataset_id, url, domain, created_at, status, timeout,
		       response_time, error, headers, checksum, filesize, mime_type,
		       detected_last_modified_at, next_check_at, parsing_started_at,
		       parsing_finished_at, parsing_error, parsing_table
		FROM checks WHERE resource_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, id.String(), n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Check
	for rows.Next() {
		c, err := scanCheckRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AllChecks returns every check for a resource, newest first.
func (s *Store) AllChecks(ctx context.Context, id uuid.UUID) ([]*model.Check, error) {
	return s.RecentChecks(ctx, id, -1)
}

func scanCheck(row *sql.Row) (*model.Check, error) {
	var (
		idStr                                                                      string
		checkID                                                                    int64
		status                                                                     sql.NullInt64
		errStr, headers, checksum, mimeType, parsingError, parsingTable            sql.NullString
		filesize                                                                   sql.NullInt64
		createdAt, detectedLM, nextCheckAt, parsingStarted, parsingFinished        sql.NullString
		c                                                                          model.Check
	)
	if err := row.Scan(&checkID, &idStr, &c.DatasetID, &c.URL, &c.Domain, &createdAt, &status,
		&c.Timeout, &c.ResponseTime, &errStr, &headers, &checksum, &filesize, &mimeType,
		&detectedLM, &nextCheckAt, &parsingStarted, &parsingFinished, &parsingError, &parsingTable); err != nil {
		return nil, err
	}
	return finishCheckScan(checkID, idStr, createdAt, status, errStr, headers, checksum, filesize,
		mimeType, detectedLM, nextCheckAt, parsingStarted, parsingFinished, parsingError, parsingTable, c)
}

func scanCheckRows(rows *sql.Rows) (*model.Check, error) {
	var (
		idStr                                                                string
		checkID                                                              int64
		status                                                               sql.NullInt64
		errStr, headers, checksum, mimeType, parsingError, parsingTable      sql.NullString
		filesize                                                             sql.NullInt64
		createdAt, detectedLM, nextCheckAt, parsingStarted, parsingFinished  sql.NullString
		c                                                                    model.Check
	)
	if err := rows.Scan(&checkID, &idStr, &c.DatasetID, &c.URL, &c.Domain, &createdAt, &status,
		&c.Timeout, &c.ResponseTime, &errStr, &headers, &checksum, &filesize, &mimeType,
		&detectedLM, &nextCheckAt, &parsingStarted, &parsingFinished, &parsingError, &parsingTable); err != nil {
		return nil, err
	}
	return finishCheckScan(checkID, idStr, createdAt, status, errStr, headers, checksum, filesize,
		mimeType, detectedLM, nextCheckAt, parsingStarted, parsingFinished, parsingError, parsingTable, c)
}

func finishCheckScan(checkID int64, idStr string, createdAt sql.NullString, status sql.NullInt64,
	errStr, headers, checksum sql.NullString, filesize sql.NullInt64, mimeType sql.NullString,
	detectedLM, nextCheckAt, parsingStarted, parsingFinished sql.NullString,
	parsingError, parsingTable sql.NullString, c model.Check) (*model.Check, error) {
	c.ID = checkID
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("store: bad resource_id %q on check %d: %w", idStr, checkID, err)
	}
	c.ResourceID = id
	if t := parseTime(createdAt.String); t != nil {
		c.CreatedAt = *t
	}
	if status.Valid {
		v := int(status.Int64)
		c.Status = &v
	}
	if errStr.Valid {
		c.Error = &errStr.String
	}
	c.Headers = decodeHeaders(headers.String)
	if checksum.Valid {
		c.Checksum = &checksum.String
	}
	if filesize.Valid {
		c.Filesize = &filesize.Int64
	}
	if mimeType.Valid {
		c.MimeType = &mimeType.String
	}
	c.DetectedLastModifiedAt = parseTime(detectedLM.String)
	c.NextCheckAt = parseTime(nextCheckAt.String)
	c.ParsingStartedAt = parseTime(parsingStarted.String)
	c.ParsingFinishedAt = parseTime(parsingFinished.String)
	if parsingError.Valid {
		c.ParsingError = &parsingError.String
	}
	if parsingTable.Valid {
		c.ParsingTable = &parsingTable.String
	}
	return &c, nil
}

// GetException returns the resource exception for a resource, if any.
func (s *Store) GetException(ctx context.Context, id uuid.UUID) (*model.ResourceException, error) {
	row := s.db.QueryRowContext(ctx, `SELECT table_indexes, comment FROM resources_exceptions WHERE resource_id = ?`, id.String())
	var tableIndexes, comment string
	if err := row.Scan(&tableIndexes, &comment); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &model.ResourceException{
		ResourceID:   id,
		TableIndexes: decodeIndexes(tableIndexes),
		Comment:      comment,
	}, nil
}

// PutException inserts or replaces a resource exception. Parameterized in
// full: this is the write path that, in the original implementation,
// interpolated table_indexes directly into SQL text.
func (s *Store) PutException(ctx context.Context, e *model.ResourceException) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resources_exceptions (resource_id, table_indexes, comment) VALUES (?, ?, ?)
		ON CONFLICT(resource_id) DO UPDATE SET table_indexes = excluded.table_indexes, comment = excluded.comment`,
		e.ResourceID.String(), encodeIndexes(e.TableIndexes), e.Comment)
	return err
}

// sqliteAffinities is the closed set of column types CreateMirrorTable will
// declare; anything else falls back to TEXT. Keeps column types, like mirror
// table names, out of raw request-body-controlled SQL text.
var sqliteAffinities = map[string]struct{}{
	"INTEGER": {},
	"REAL":    {},
	"TEXT":    {},
}

// CreateMirrorTable creates (if absent) the per-resource table named by the
// md5 of its URL, with columns typed per columnTypes (inferred during CSV
// ingest; unrecognized types fall back to TEXT) and any requested indexes
// from a ResourceException's table_indexes, per spec §4.4. Column names and
// types are never taken verbatim from request bodies: types are restricted
// to a fixed SQLite affinity set, index kinds are validated by the caller
// against Config.SQLIndexTypes before reaching here, and names are quoted
// identifiers built from the sniffed CSV header, not raw SQL fragments.
func (s *Store) CreateMirrorTable(ctx context.Context, tableName string, columns, columnTypes []string, indexes map[string]string) error {
	if !isHexMD5(tableName) {
		return fmt.Errorf("store: refusing non-md5 mirror table name %q", tableName)
	}
	var b strings.Builder
	fmt.Fprintf(&b, `CREATE TABLE IF NOT EXISTS %q (__id INTEGER PRIMARY KEY AUTOINCREMENT`, tableName)
	colSet := make(map[string]struct{}, len(columns))
	for i, col := range columns {
		colSet[col] = struct{}{}
		affinity := "TEXT"
		if i < len(columnTypes) {
			if _, ok := sqliteAffinities[columnTypes[i]]; ok {
				affinity = columnTypes[i]
			}
		}
		fmt.Fprintf(&b, `, %q %s`, col, affinity)
	}
	b.WriteString(")")
	if _, err := s.db.ExecContext(ctx, b.String()); err != nil {
		return err
	}

	for col, kind := range indexes {
		if _, ok := colSet[col]; !ok {
			continue // table_indexes named a column this file doesn't have
		}
		var stmt string
		switch kind {
		case "unique":
			stmt = fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %q ON %q (%q)`, "idx_"+tableName+"_"+col, tableName, col)
		case "btree":
			stmt = fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %q ON %q (%q)`, "idx_"+tableName+"_"+col, tableName, col)
		default:
			continue // not in the validated set; skip rather than fail the whole ingest
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: create index on %s.%s: %w", tableName, col, err)
		}
	}
	return nil
}

// InsertMirrorRow inserts one ingested CSV row into the named mirror table.
func (s *Store) InsertMirrorRow(ctx context.Context, tableName string, columns []string, values []string) error {
	if !isHexMD5(tableName) {
		return fmt.Errorf("store: refusing non-md5 mirror table name %q", tableName)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")
	var cols strings.Builder
	for i, col := range columns {
		if i > 0 {
			cols.WriteString(", ")
		}
		fmt.Fprintf(&cols, "%q", col)
	}
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	q := fmt.Sprintf(`INSERT INTO %q (%s) VALUES (%s)`, tableName, cols.String(), placeholders)
	_, err := s.db.ExecContext(ctx, q, args...)
	return err
}

func isHexMD5(s string) bool {
	if len(s) != 32 {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9') && !(r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableStr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
