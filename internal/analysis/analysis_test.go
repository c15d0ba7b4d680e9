package analysis

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/opendata-ops/hydracrawl/internal/config"
	"github.com/opendata-ops/hydracrawl/internal/model"
)

func TestDetectTabular(t *testing.T) {
	cases := []struct {
		contentType string
		want        model.Tabular
	}{
		{"text/csv", model.Tabular{Looks: true}},
		{"text/csv; charset=utf-8", model.Tabular{Looks: true}},
		{"application/octet-stream", model.Tabular{LooksBinary: true}},
		{"application/json", model.Tabular{}},
		{"", model.Tabular{}},
	}
	for _, c := range cases {
		got := DetectTabular(c.contentType)
		if got != c.want {
			t.Errorf("DetectTabular(%q) = %+v, want %+v", c.contentType, got, c.want)
		}
	}
}

func TestTabular_IsTabular(t *testing.T) {
	if (model.Tabular{}).IsTabular() {
		t.Fatal("zero value should not be tabular")
	}
	if !(model.Tabular{LooksBinary: true}).IsTabular() {
		t.Fatal("LooksBinary alone should count as tabular")
	}
	if !(model.Tabular{Looks: true}).IsTabular() {
		t.Fatal("Looks alone should count as tabular")
	}
}

// fakeStore is a minimal in-memory Store for pipeline tests.
type fakeStore struct {
	exception    *model.ResourceException
	statuses     []model.Status
	checksum     *string
	filesize     *int64
	mimeType     *string
	tables       map[string][]string
	tableTypes   map[string][]string
	tableIndexes map[string]map[string]string
	rows         map[string][][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tables:       map[string][]string{},
		tableTypes:   map[string][]string{},
		tableIndexes: map[string]map[string]string{},
		rows:         map[string][][]string{},
	}
}

func (f *fakeStore) GetException(ctx context.Context, id uuid.UUID) (*model.ResourceException, error) {
	return f.exception, nil
}
func (f *fakeStore) SetStatus(ctx context.Context, id uuid.UUID, status model.Status) error {
	f.statuses = append(f.statuses, status)
	return nil
}
func (f *fakeStore) UpdateAnalysis(ctx context.Context, checkID int64, checksum *string, filesize *int64,
	mimeType *string, detectedLastModifiedAt *time.Time) error {
	f.checksum, f.filesize, f.mimeType = checksum, filesize, mimeType
	return nil
}
func (f *fakeStore) UpdateParsing(ctx context.Context, checkID int64, startedAt, finishedAt *time.Time,
	parsingError *string, parsingTable *string) error {
	return nil
}
func (f *fakeStore) CreateMirrorTable(ctx context.Context, tableName string, columns, columnTypes []string, indexes map[string]string) error {
	f.tables[tableName] = columns
	f.tableTypes[tableName] = columnTypes
	f.tableIndexes[tableName] = indexes
	return nil
}
func (f *fakeStore) InsertMirrorRow(ctx context.Context, tableName string, columns []string, values []string) error {
	f.rows[tableName] = append(f.rows[tableName], values)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		MaxFilesizeAllowed: map[string]int64{"default": 10, "csv": 10, "gzip": 10},
	}
}

func TestPipeline_tooLargeAborts(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer origin.Close()

	fs := newFakeStore()
	p := New(fs, testConfig(), origin.Client())
	res := &model.Resource{ResourceID: uuid.New()}
	result, err := p.Run(context.Background(), res, 1, origin.URL, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.AnalysisError == "" {
		t.Fatal("expected AnalysisError for oversized download")
	}
}

func TestPipeline_smallDownloadComputesChecksum(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("a,b\n1,2\n"))
	}))
	defer origin.Close()

	fs := newFakeStore()
	cfg := testConfig()
	cfg.MaxFilesizeAllowed["csv"] = 1 << 20
	cfg.MaxFilesizeAllowed["default"] = 1 << 20
	p := New(fs, cfg, origin.Client())
	res := &model.Resource{ResourceID: uuid.New()}
	result, err := p.Run(context.Background(), res, 1, origin.URL, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.AnalysisError != "" {
		t.Fatalf("unexpected analysis error: %s", result.AnalysisError)
	}
	if result.Checksum == "" {
		t.Fatal("expected a checksum")
	}
	if !result.Tabular.Looks {
		t.Fatal("expected tabular content-type to be detected")
	}
	if result.KeptFile == "" {
		t.Fatal("expected tabular download to be kept for ingest")
	}
}

func TestPipeline_checksumMatchYieldsNoUpgrade(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("same-content"))
	}))
	defer origin.Close()

	fs := newFakeStore()
	cfg := testConfig()
	cfg.MaxFilesizeAllowed["default"] = 1 << 20
	p := New(fs, cfg, origin.Client())
	res := &model.Resource{ResourceID: uuid.New()}

	first, err := p.Run(context.Background(), res, 1, origin.URL, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	second, err := p.Run(context.Background(), res, 2, origin.URL, &first.Checksum)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if second.ChangeUpgrade != nil {
		t.Fatalf("expected no change-upgrade verdict for identical content, got %+v", second.ChangeUpgrade)
	}
}

func TestPipeline_checksumDiffUpgradesToChanged(t *testing.T) {
	calls := 0
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(strings.Repeat("v", calls)))
	}))
	defer origin.Close()

	fs := newFakeStore()
	cfg := testConfig()
	cfg.MaxFilesizeAllowed["default"] = 1 << 20
	p := New(fs, cfg, origin.Client())
	res := &model.Resource{ResourceID: uuid.New()}

	first, err := p.Run(context.Background(), res, 1, origin.URL, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	second, err := p.Run(context.Background(), res, 2, origin.URL, &first.Checksum)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if second.ChangeUpgrade == nil || second.ChangeUpgrade.Change != model.HasChanged {
		t.Fatalf("expected HAS_CHANGED upgrade for differing content, got %+v", second.ChangeUpgrade)
	}
}

func TestIngestCSV(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/data.csv"
	if err := os.WriteFile(path, []byte("name,value\nfoo,1\nbar,2\n"), 0o600); err != nil {
		t.Fatalf("os.WriteFile: %v", err)
	}
	fs := newFakeStore()
	table, err := IngestCSV(context.Background(), fs, "https://example.org/data.csv", path, "", model.Tabular{Looks: true}, nil)
	if err != nil {
		t.Fatalf("IngestCSV: %v", err)
	}
	if len(fs.rows[table]) != 2 {
		t.Fatalf("expected 2 rows ingested, got %d", len(fs.rows[table]))
	}
	if cols := fs.tables[table]; len(cols) != 2 || cols[0] != "name" || cols[1] != "value" {
		t.Fatalf("unexpected columns: %+v", cols)
	}
	if types := fs.tableTypes[table]; len(types) != 2 || types[0] != "TEXT" || types[1] != "INTEGER" {
		t.Fatalf("unexpected inferred types: %+v", types)
	}
}

func TestIngestCSV_appliesRequestedIndexes(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/data.csv"
	if err := os.WriteFile(path, []byte("id,amount\n1,9.5\n2,1.25\n"), 0o600); err != nil {
		t.Fatalf("os.WriteFile: %v", err)
	}
	fs := newFakeStore()
	indexes := map[string]string{"id": "unique"}
	table, err := IngestCSV(context.Background(), fs, "https://example.org/amounts.csv", path, "", model.Tabular{Looks: true}, indexes)
	if err != nil {
		t.Fatalf("IngestCSV: %v", err)
	}
	if got := fs.tableIndexes[table]; got["id"] != "unique" {
		t.Fatalf("expected id index to be passed through, got %+v", got)
	}
	if types := fs.tableTypes[table]; types[0] != "INTEGER" || types[1] != "REAL" {
		t.Fatalf("unexpected inferred types: %+v", types)
	}
}

func TestAllowedIndexes_filtersUnsupportedKinds(t *testing.T) {
	cfg := testConfig()
	cfg.SQLIndexTypes = map[string]struct{}{"unique": {}}
	exc := &model.ResourceException{TableIndexes: map[string]string{"id": "unique", "amount": "hash"}}
	got := allowedIndexes(exc, cfg)
	if len(got) != 1 || got["id"] != "unique" {
		t.Fatalf("expected only the supported kind to survive, got %+v", got)
	}
	if allowedIndexes(nil, cfg) != nil {
		t.Fatal("expected nil for a resource with no exception")
	}
}
