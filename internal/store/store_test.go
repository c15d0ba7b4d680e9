package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/opendata-ops/hydracrawl/internal/model"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	s, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertFromUpstream_roundTrip(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	id, err := s.InsertFromUpstream(ctx, "dataset-1", "https://example.org/a.csv", "example.org")
	if err != nil {
		t.Fatalf("InsertFromUpstream: %v", err)
	}

	r, err := s.GetResource(ctx, id)
	if err != nil {
		t.Fatalf("GetResource: %v", err)
	}
	if r.URL != "https://example.org/a.csv" || r.Domain != "example.org" {
		t.Fatalf("unexpected resource: %+v", r)
	}
	if !r.Priority || !r.Initialization {
		t.Fatalf("expected priority+initialization on upstream create, got %+v", r)
	}

	byURL, err := s.GetResourceByURL(ctx, "https://example.org/a.csv")
	if err != nil {
		t.Fatalf("GetResourceByURL: %v", err)
	}
	if byURL.ResourceID != id {
		t.Fatalf("GetResourceByURL returned wrong resource: %v != %v", byURL.ResourceID, id)
	}
}

func TestUpdateURL_changesURLInPlace(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	id, _ := s.InsertFromUpstream(ctx, "d", "https://x.test/a", "x.test")
	if err := s.UpdateURL(ctx, id, "https://x.test/b", "x.test"); err != nil {
		t.Fatalf("UpdateURL: %v", err)
	}
	r, err := s.GetResource(ctx, id)
	if err != nil {
		t.Fatalf("GetResource: %v", err)
	}
	if r.URL != "https://x.test/b" {
		t.Fatalf("url not updated: %+v", r)
	}
}

func TestSelectBatch_eligibility(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	// Two freshly-created resources: both priority+initialization.
	idA, _ := s.InsertFromUpstream(ctx, "d", "https://a.test/1", "a.test")
	idB, _ := s.InsertFromUpstream(ctx, "d", "https://b.test/1", "b.test")

	batch, err := s.SelectBatch(ctx, 10)
	if err != nil {
		t.Fatalf("SelectBatch: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected 2 eligible resources, got %d", len(batch))
	}

	// Having been selected once, both rows are no longer priority/initialization
	// and have no next_check_at yet, so a due-for-recheck batch still surfaces them.
	again, err := s.SelectBatch(ctx, 10)
	if err != nil {
		t.Fatalf("SelectBatch (2nd): %v", err)
	}
	if len(again) != 2 {
		t.Fatalf("expected rows with null next_check_at to remain eligible, got %d", len(again))
	}

	// Push one resource's next check into the future; it should drop out.
	future := time.Now().UTC().Add(24 * time.Hour)
	if err := s.SetNextCheck(ctx, idA, future); err != nil {
		t.Fatalf("SetNextCheck: %v", err)
	}
	if err := s.SetNextCheck(ctx, idB, time.Now().UTC().Add(-time.Minute)); err != nil {
		t.Fatalf("SetNextCheck: %v", err)
	}
	later, err := s.SelectBatch(ctx, 10)
	if err != nil {
		t.Fatalf("SelectBatch (3rd): %v", err)
	}
	if len(later) != 1 || later[0].ResourceID != idB {
		t.Fatalf("expected only overdue resource B selected, got %+v", later)
	}
}

func TestInsertCheck_latestCheckRoundTrip(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	id, _ := s.InsertFromUpstream(ctx, "d", "https://c.test/1", "c.test")

	status := 200
	checksum := "deadbeef"
	check := &model.Check{
		ResourceID:   id,
		DatasetID:    "d",
		URL:          "https://c.test/1",
		Domain:       "c.test",
		CreatedAt:    time.Now().UTC(),
		Status:       &status,
		ResponseTime: 0.25,
		Headers:      map[string]string{"content-type": "text/csv"},
	}
	checkID, err := s.InsertCheck(ctx, check)
	if err != nil {
		t.Fatalf("InsertCheck: %v", err)
	}
	if err := s.SetLastCheck(ctx, id, checkID); err != nil {
		t.Fatalf("SetLastCheck: %v", err)
	}
	if err := s.UpdateAnalysis(ctx, checkID, &checksum, nil, nil, nil); err != nil {
		t.Fatalf("UpdateAnalysis: %v", err)
	}

	latest, err := s.LatestCheck(ctx, id)
	if err != nil {
		t.Fatalf("LatestCheck: %v", err)
	}
	if latest == nil {
		t.Fatal("expected a check row, got nil")
	}
	if latest.Checksum == nil || *latest.Checksum != checksum {
		t.Fatalf("checksum not persisted: %+v", latest)
	}
	if latest.Headers["content-type"] != "text/csv" {
		t.Fatalf("headers not round-tripped: %+v", latest.Headers)
	}
}

func TestGetException_none(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	id, _ := s.InsertFromUpstream(ctx, "d", "https://e.test/1", "e.test")
	e, err := s.GetException(ctx, id)
	if err != nil {
		t.Fatalf("GetException: %v", err)
	}
	if e != nil {
		t.Fatalf("expected no exception, got %+v", e)
	}
}

func TestPutException_roundTrip(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	id, _ := s.InsertFromUpstream(ctx, "d", "https://f.test/1", "f.test")

	// Deliberately use values that would have broken an f-string-interpolated
	// query: quotes and a semicolon.
	err := s.PutException(ctx, &model.ResourceException{
		ResourceID:   id,
		TableIndexes: map[string]string{`col"; DROP TABLE catalog;--`: "btree"},
		Comment:      "quoted \"comment\"",
	})
	if err != nil {
		t.Fatalf("PutException: %v", err)
	}

	e, err := s.GetException(ctx, id)
	if err != nil {
		t.Fatalf("GetException: %v", err)
	}
	if e == nil {
		t.Fatal("expected exception to round-trip")
	}
	if e.Comment != `quoted "comment"` {
		t.Fatalf("comment mismatch: %q", e.Comment)
	}
	if e.TableIndexes[`col"; DROP TABLE catalog;--`] != "btree" {
		t.Fatalf("table indexes mismatch: %+v", e.TableIndexes)
	}

	// The catalog table must still exist: confirms the value was bound, not interpolated.
	if _, err := s.GetResource(ctx, id); err != nil {
		t.Fatalf("catalog row missing after PutException, injection may have executed: %v", err)
	}
}

func TestMirrorTable_roundTrip(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	name := "0123456789abcdef0123456789abcdef"
	if err := s.CreateMirrorTable(ctx, name, []string{"name", "value"}, []string{"TEXT", "INTEGER"}, nil); err != nil {
		t.Fatalf("CreateMirrorTable: %v", err)
	}
	if err := s.InsertMirrorRow(ctx, name, []string{"name", "value"}, []string{"a", "1"}); err != nil {
		t.Fatalf("InsertMirrorRow: %v", err)
	}
}

func TestMirrorTable_rejectsNonMD5Name(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	if err := s.CreateMirrorTable(ctx, "not-an-md5; DROP TABLE catalog", []string{"a"}, []string{"TEXT"}, nil); err == nil {
		t.Fatal("expected rejection of non-md5 table name")
	}
}

func TestMirrorTable_appliesUniqueIndex(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	name := "fedcba9876543210fedcba9876543210"
	indexes := map[string]string{"name": "unique"}
	if err := s.CreateMirrorTable(ctx, name, []string{"name", "value"}, []string{"TEXT", "INTEGER"}, indexes); err != nil {
		t.Fatalf("CreateMirrorTable: %v", err)
	}
	if err := s.InsertMirrorRow(ctx, name, []string{"name", "value"}, []string{"a", "1"}); err != nil {
		t.Fatalf("InsertMirrorRow: %v", err)
	}
	if err := s.InsertMirrorRow(ctx, name, []string{"name", "value"}, []string{"a", "2"}); err == nil {
		t.Fatal("expected unique index violation on duplicate name")
	}
}

func TestCrawlerStatus(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	s.InsertFromUpstream(ctx, "d", "https://g.test/1", "g.test")
	id2, _ := s.InsertFromUpstream(ctx, "d", "https://g.test/2", "g.test")

	status := 200
	checkID, err := s.InsertCheck(ctx, &model.Check{
		ResourceID: id2, DatasetID: "d", URL: "https://g.test/2", Domain: "g.test",
		CreatedAt: time.Now().UTC(), Status: &status,
	})
	if err != nil {
		t.Fatalf("InsertCheck: %v", err)
	}
	if err := s.SetLastCheck(ctx, id2, checkID); err != nil {
		t.Fatalf("SetLastCheck: %v", err)
	}

	total, pending, fresh, err := s.CrawlerStatus(ctx)
	if err != nil {
		t.Fatalf("CrawlerStatus: %v", err)
	}
	if total != 2 || pending != 1 || fresh != 1 {
		t.Fatalf("unexpected crawler status: total=%d pending=%d fresh=%d", total, pending, fresh)
	}
}
