package analysis

import (
	"strings"

	"github.com/opendata-ops/hydracrawl/internal/model"
)

// DetectTabular computes the (looks_tabular, looks_binary_tabular) pair from
// a Content-Type header, per spec §4.4 step 2 / §9's open-question note.
func DetectTabular(contentType string) model.Tabular {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if semi := strings.Index(ct, ";"); semi >= 0 {
		ct = ct[:semi]
	}
	switch ct {
	case "application/csv", "text/plain", "text/csv":
		return model.Tabular{Looks: true}
	case "application/octet-stream", "application/x-gzip":
		return model.Tabular{LooksBinary: true}
	default:
		return model.Tabular{}
	}
}
