// CSV ingest: infer a mirror table from a downloaded file and load its rows.
// Grounded on original_source/udata_hydra/utils/csv.py's inspect-then-load
// shape: a bounded lookahead sample decides each column's type before the
// mirror table is created, per spec §4.4.
package analysis

import (
	"compress/gzip"
	"context"
	"crypto/md5"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/andybalholm/brotli"

	"github.com/opendata-ops/hydracrawl/internal/model"
)

// MirrorStore is the subset of store.Store the CSV ingest step needs.
type MirrorStore interface {
	CreateMirrorTable(ctx context.Context, tableName string, columns, columnTypes []string, indexes map[string]string) error
	InsertMirrorRow(ctx context.Context, tableName string, columns []string, values []string) error
}

// typeLookaheadRows bounds how many data rows are sampled to infer column
// types before the mirror table is created, per spec §4.4's "bounded
// lookahead".
const typeLookaheadRows = 100

// MirrorTableName returns the stable md5(url) mirror table name for a resource URL.
func MirrorTableName(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

// IngestCSV streams path (decoding gzip/brotli if tab.LooksBinary and the
// sniffed content-encoding calls for it) into the resource's mirror table,
// applying any column indexes requested by the resource's exception record.
// Failures are returned, never panicked: per spec §4.4, CSV ingest failures
// are captured in parsing_error and never crash the pipeline.
func IngestCSV(ctx context.Context, store MirrorStore, url, path, contentEncoding string, tab model.Tabular, tableIndexes map[string]string) (table string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("analysis: open for csv ingest: %w", err)
	}
	defer f.Close()

	r, err := decodeReader(f, contentEncoding, tab)
	if err != nil {
		return "", err
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return "", fmt.Errorf("analysis: read csv header: %w", err)
	}
	columns := sanitizeColumns(header)

	var sample [][]string
	for len(sample) < typeLookaheadRows {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("analysis: read csv row: %w", err)
		}
		if len(record) != len(columns) {
			continue
		}
		sample = append(sample, record)
	}
	columnTypes := inferColumnTypes(columns, sample)

	table = MirrorTableName(url)
	if err := store.CreateMirrorTable(ctx, table, columns, columnTypes, tableIndexes); err != nil {
		return "", fmt.Errorf("analysis: create mirror table: %w", err)
	}

	for _, record := range sample {
		if err := store.InsertMirrorRow(ctx, table, columns, record); err != nil {
			return table, fmt.Errorf("analysis: insert csv row: %w", err)
		}
	}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return table, fmt.Errorf("analysis: read csv row: %w", err)
		}
		if len(record) != len(columns) {
			continue // malformed row; skip rather than abort the whole ingest
		}
		if err := store.InsertMirrorRow(ctx, table, columns, record); err != nil {
			return table, fmt.Errorf("analysis: insert csv row: %w", err)
		}
	}
	return table, nil
}

// inferColumnTypes decides a SQLite affinity per column from a bounded
// sample of data rows: INTEGER if every sampled value parses as one, REAL if
// every value parses as a number (with at least one non-integer), TEXT
// otherwise or when a column has no sampled values at all.
func inferColumnTypes(columns []string, sample [][]string) []string {
	types := make([]string, len(columns))
	for i := range columns {
		allInt := true
		allFloat := true
		seen := false
		for _, row := range sample {
			v := row[i]
			if v == "" {
				continue
			}
			seen = true
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				allInt = false
			}
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				allFloat = false
			}
		}
		switch {
		case !seen:
			types[i] = "TEXT"
		case allInt:
			types[i] = "INTEGER"
		case allFloat:
			types[i] = "REAL"
		default:
			types[i] = "TEXT"
		}
	}
	return types
}

func decodeReader(f *os.File, contentEncoding string, tab model.Tabular) (io.Reader, error) {
	if !tab.LooksBinary {
		return f, nil
	}
	switch contentEncoding {
	case "gzip":
		gr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("analysis: gzip decode: %w", err)
		}
		return gr, nil
	case "br":
		return brotli.NewReader(f), nil
	default:
		return f, nil
	}
}

func sanitizeColumns(header []string) []string {
	seen := make(map[string]int, len(header))
	out := make([]string, len(header))
	for i, h := range header {
		name := h
		if name == "" {
			name = fmt.Sprintf("col_%d", i)
		}
		if n, ok := seen[name]; ok {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		} else {
			seen[name] = 0
		}
		out[i] = name
	}
	return out
}
