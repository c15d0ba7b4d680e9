// Package analysis implements the deferred analysis pipeline of spec §4.4:
// download under a size cap, checksum/MIME, optional CSV ingest into a
// mirror table, and the resulting webhook-worthy change upgrade. Grounded
// on original_source/udata_hydra/analysis/resource.py's analyse_resource.
package analysis

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/opendata-ops/hydracrawl/internal/config"
	"github.com/opendata-ops/hydracrawl/internal/detector"
	"github.com/opendata-ops/hydracrawl/internal/model"
)

// Store is the subset of store.Store the pipeline depends on.
type Store interface {
	MirrorStore
	GetException(ctx context.Context, id uuid.UUID) (*model.ResourceException, error)
	SetStatus(ctx context.Context, id uuid.UUID, status model.Status) error
	UpdateAnalysis(ctx context.Context, checkID int64, checksum *string, filesize *int64,
		mimeType *string, detectedLastModifiedAt *time.Time) error
	UpdateParsing(ctx context.Context, checkID int64, startedAt, finishedAt *time.Time,
		parsingError *string, parsingTable *string) error
}

// Result carries what the analysis step learned, so the caller can decide
// whether to enqueue a webhook and what change verdict to report.
type Result struct {
	Checksum      string
	Filesize      int64
	MimeType      string
	ChangeUpgrade *model.ChangeResult // non-nil if the checksum tier upgraded the verdict
	AnalysisError string              // non-empty on abort (e.g. too-large)
	Tabular       model.Tabular
	KeptFile      string // temp file path, set only when tabular and kept for ingest
}

// Pipeline runs the download/checksum/sniff/ingest sequence for one resource.
type Pipeline struct {
	store  Store
	cfg    *config.Config
	client *http.Client
}

func New(store Store, cfg *config.Config, client *http.Client) *Pipeline {
	if client == nil {
		client = http.DefaultClient
	}
	return &Pipeline{store: store, cfg: cfg, client: client}
}

// Run downloads and analyses resource's URL for the given check row, per the
// nine steps of spec §4.4. previousChecksum is the prior check's checksum,
// if any, used to detect change via tier 4 of the cascade.
func (p *Pipeline) Run(ctx context.Context, res *model.Resource, checkID int64, url string, previousChecksum *string) (*Result, error) {
	if err := p.store.SetStatus(ctx, res.ResourceID, model.StatusAnalysing); err != nil {
		return nil, fmt.Errorf("analysis: set status analysing: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("analysis: build request: %w", err)
	}
	req.Header.Set("User-Agent", "hydracrawl/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return &Result{AnalysisError: err.Error()}, nil
	}
	defer resp.Body.Close()

	tab := DetectTabular(resp.Header.Get("Content-Type"))

	exc, err := p.store.GetException(ctx, res.ResourceID)
	if err != nil {
		return nil, fmt.Errorf("analysis: load resource exception: %w", err)
	}
	maxSize := p.cfg.MaxFilesizeFor(inferFormat(tab))
	unlimited := exc != nil

	tmp, err := os.CreateTemp("", "hydracrawl-analysis-*")
	if err != nil {
		return nil, fmt.Errorf("analysis: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	hw := newHashingWriter(tmp)

	var n int64
	if unlimited {
		n, err = io.Copy(hw, resp.Body)
	} else {
		limited := io.LimitReader(resp.Body, maxSize+1)
		n, err = io.Copy(hw, limited)
	}
	tmp.Close()
	if err != nil {
		os.Remove(tmpPath)
		return &Result{AnalysisError: fmt.Sprintf("download failed: %v", err)}, nil
	}
	if !unlimited && n > maxSize {
		os.Remove(tmpPath)
		return &Result{AnalysisError: "File too large to download"}, nil
	}

	checksum := hw.Hex()
	mimeType := sniffMime(tmpPath, resp.Header.Get("Content-Type"))

	result := &Result{
		Checksum: checksum,
		Filesize: n,
		MimeType: mimeType,
		Tabular:  tab,
	}

	if up, ok := detector.DetectByChecksum(previousChecksum, checksum, time.Now().UTC()); ok {
		result.ChangeUpgrade = &up
	}

	lastModified := parseHTTPDate(resp.Header.Get("Last-Modified"))
	if err := p.store.UpdateAnalysis(ctx, checkID, &checksum, &n, &mimeType, lastModified); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("analysis: update check: %w", err)
	}

	if tab.IsTabular() {
		result.KeptFile = tmpPath
		if err := p.store.SetStatus(ctx, res.ResourceID, model.StatusToAnalyseCSV); err != nil {
			return nil, fmt.Errorf("analysis: set status to-analyse-csv: %w", err)
		}
	} else {
		os.Remove(tmpPath)
		if err := p.store.SetStatus(ctx, res.ResourceID, model.StatusNone); err != nil {
			return nil, fmt.Errorf("analysis: clear status: %w", err)
		}
	}

	return result, nil
}

// RunCSVIngest performs the CSV ingest stage (step "CSV ingest" of §4.4),
// recording parsing bookkeeping on the check row regardless of outcome.
func (p *Pipeline) RunCSVIngest(ctx context.Context, res *model.Resource, checkID int64, url, filePath, contentEncoding string, tab model.Tabular) error {
	started := time.Now().UTC()
	defer os.Remove(filePath)

	exc, err := p.store.GetException(ctx, res.ResourceID)
	if err != nil {
		return fmt.Errorf("analysis: load resource exception: %w", err)
	}
	tableIndexes := allowedIndexes(exc, p.cfg)

	table, err := IngestCSV(ctx, p.store, url, filePath, contentEncoding, tab, tableIndexes)
	finished := time.Now().UTC()

	var parsingErr *string
	var parsingTable *string
	if err != nil {
		s := err.Error()
		parsingErr = &s
	} else {
		parsingTable = &table
	}

	if uerr := p.store.UpdateParsing(ctx, checkID, &started, &finished, parsingErr, parsingTable); uerr != nil {
		return fmt.Errorf("analysis: record parsing result: %w", uerr)
	}
	status := model.StatusAnalysed
	return p.store.SetStatus(ctx, res.ResourceID, status)
}

// allowedIndexes filters a resource exception's table_indexes down to the
// kinds Config.SQLIndexTypes actually supports, per spec §3/§4.4 — an
// exception naming an unsupported kind silently loses that one index rather
// than aborting the whole ingest.
func allowedIndexes(exc *model.ResourceException, cfg *config.Config) map[string]string {
	if exc == nil || len(exc.TableIndexes) == 0 {
		return nil
	}
	out := make(map[string]string, len(exc.TableIndexes))
	for col, kind := range exc.TableIndexes {
		if cfg.AllowsIndexType(kind) {
			out[col] = kind
		}
	}
	return out
}

func inferFormat(tab model.Tabular) string {
	if tab.LooksBinary {
		return "gzip"
	}
	if tab.Looks {
		return "csv"
	}
	return "default"
}

func sniffMime(path, fallback string) string {
	f, err := os.Open(path)
	if err != nil {
		return fallback
	}
	defer f.Close()
	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	if n == 0 {
		return fallback
	}
	return http.DetectContentType(buf[:n])
}

func parseHTTPDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(http.TimeFormat, s)
	if err != nil {
		return nil
	}
	return &t
}
