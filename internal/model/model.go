// Package model defines the persistent entities of the crawler: catalog
// resources, probe checks, and resource exceptions.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Status is the resource lifecycle state, written only by the component
// that owns a given transition (see package store).
type Status string

const (
	StatusNone            Status = ""
	StatusCrawling        Status = "CRAWLING"
	StatusToAnalyse       Status = "TO_ANALYSE_RESOURCE"
	StatusAnalysing       Status = "ANALYSING_RESOURCE"
	StatusToAnalyseCSV    Status = "TO_ANALYSE_CSV"
	StatusAnalysingCSV    Status = "ANALYSING_CSV"
	StatusAnalysed        Status = "ANALYSED"
)

// Resource is one row of the catalog: an external URL tracked on behalf of
// a dataset in the upstream catalog service.
type Resource struct {
	ResourceID        uuid.UUID
	DatasetID         string
	URL               string
	Domain            string
	Deleted           bool
	Priority          bool
	Initialization    bool
	LastCheck         *int64 // FK to checks.id, or nil
	NextCheckAt       *time.Time
	HarvestModifiedAt *time.Time
	Status            Status
}

// Check is a single append-only probe log row.
type Check struct {
	ID                    int64
	CatalogID             int64 // redundant FK mirror of ResourceID's row id, kept for parity with the original schema
	ResourceID            uuid.UUID
	DatasetID             string
	URL                   string
	Domain                string
	CreatedAt             time.Time
	Status                *int // HTTP status, nil on transport failure
	Timeout               bool
	ResponseTime          float64 // seconds
	Error                 *string
	Headers               map[string]string // lowercased keys
	Checksum              *string
	Filesize              *int64
	MimeType              *string
	DetectedLastModifiedAt *time.Time
	NextCheckAt           *time.Time
	ParsingStartedAt      *time.Time
	ParsingFinishedAt     *time.Time
	ParsingError          *string
	ParsingTable          *string // md5(url), set only on successful parse
}

// ResourceException overrides the per-format size ceiling and customizes
// mirror-table index creation for one resource.
type ResourceException struct {
	ResourceID   uuid.UUID
	TableIndexes map[string]string // column name -> index kind, kind must be in Config.SQLIndexTypes
	Comment      string
}

// Tabular is the (looks_tabular, looks_binary_tabular) pair computed from
// Content-Type sniffing. A resource is treated as tabular if either field
// is true; LooksBinary selects the gzip/brotli decode path during ingest.
type Tabular struct {
	Looks       bool
	LooksBinary bool
}

// IsTabular reports whether the payload should be treated as tabular at all.
func (t Tabular) IsTabular() bool { return t.Looks || t.LooksBinary }

// Change is the tagged outcome of the change-detection cascade.
type Change string

const (
	HasChanged    Change = "HAS_CHANGED"
	HasNotChanged Change = "HAS_NOT_CHANGED"
	NoGuess       Change = "NO_GUESS"
)

// DetectionMethod labels which cascade tier produced a Change verdict.
type DetectionMethod string

const (
	DetectionHarvestMetadata  DetectionMethod = "harvest-resource-metadata"
	DetectionLastModified     DetectionMethod = "last-modified-header"
	DetectionContentLength    DetectionMethod = "content-length-header"
	DetectionComputedChecksum DetectionMethod = "computed-checksum"
)

// ChangeResult is the output of the change detector.
type ChangeResult struct {
	Change           Change
	LastModifiedAt   *time.Time
	DetectionMethod  DetectionMethod
}
