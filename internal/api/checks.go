package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/opendata-ops/hydracrawl/internal/model"
)

// checkJSON is the wire shape of a checks row, field names carried over from
// the original CheckSchema's aliases (check_id -> "id", check_status -> "status").
type checkJSON struct {
	ID                     int64             `json:"id"`
	ResourceID             string            `json:"resource_id"`
	DatasetID              string            `json:"dataset_id"`
	URL                    string            `json:"url"`
	Domain                 string            `json:"domain"`
	CreatedAt              string            `json:"created_at"`
	Status                 *int              `json:"status"`
	Timeout                bool              `json:"timeout"`
	ResponseTime           float64           `json:"response_time"`
	Error                  *string           `json:"error"`
	Headers                map[string]string `json:"headers"`
	Checksum               *string           `json:"checksum"`
	Filesize               *int64            `json:"filesize"`
	MimeType               *string           `json:"mime_type"`
	DetectedLastModifiedAt *string           `json:"detected_last_modified_at,omitempty"`
	NextCheckAt            *string           `json:"next_check_at,omitempty"`
	ParsingStartedAt       *string           `json:"parsing_started_at,omitempty"`
	ParsingFinishedAt      *string           `json:"parsing_finished_at,omitempty"`
	ParsingError           *string           `json:"parsing_error,omitempty"`
	ParsingTable           *string           `json:"parsing_table,omitempty"`
}

func checkToJSON(c *model.Check) checkJSON {
	return checkJSON{
		ID:                     c.ID,
		ResourceID:             c.ResourceID.String(),
		DatasetID:              c.DatasetID,
		URL:                    c.URL,
		Domain:                 c.Domain,
		CreatedAt:              c.CreatedAt.UTC().Format(time.RFC3339),
		Status:                 c.Status,
		Timeout:                c.Timeout,
		ResponseTime:           c.ResponseTime,
		Error:                  c.Error,
		Headers:                c.Headers,
		Checksum:               c.Checksum,
		Filesize:               c.Filesize,
		MimeType:               c.MimeType,
		DetectedLastModifiedAt: formatTimePtr(c.DetectedLastModifiedAt),
		NextCheckAt:            formatTimePtr(c.NextCheckAt),
		ParsingStartedAt:       formatTimePtr(c.ParsingStartedAt),
		ParsingFinishedAt:      formatTimePtr(c.ParsingFinishedAt),
		ParsingError:           c.ParsingError,
		ParsingTable:           c.ParsingTable,
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

// resolveResource resolves the url or resource_id query parameter into a
// catalog row, per spec §6's "?url=…|resource_id=…" endpoints. Exactly one
// of the two must be present; any other query parameter is rejected.
func (s *Server) resolveResource(w http.ResponseWriter, r *http.Request) *model.Resource {
	q := r.URL.Query()
	for key := range q {
		if key != "url" && key != "resource_id" {
			writeError(w, http.StatusBadRequest, "unknown query parameter: "+key)
			return nil
		}
	}
	url := q.Get("url")
	resourceID := q.Get("resource_id")
	if (url == "") == (resourceID == "") {
		writeError(w, http.StatusBadRequest, "exactly one of url or resource_id is required")
		return nil
	}

	var res *model.Resource
	var err error
	if resourceID != "" {
		id, perr := uuid.Parse(resourceID)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "invalid resource_id")
			return nil
		}
		res, err = s.store.GetResource(r.Context(), id)
	} else {
		res, err = s.store.GetResourceByURL(r.Context(), url)
	}
	if err != nil || res == nil {
		writeError(w, http.StatusNotFound, "resource not found")
		return nil
	}
	return res
}

func (s *Server) handleChecksLatest(w http.ResponseWriter, r *http.Request) {
	res := s.resolveResource(w, r)
	if res == nil {
		return
	}
	if res.Deleted {
		writeError(w, http.StatusGone, "resource is deleted")
		return
	}
	check, err := s.store.LatestCheck(r.Context(), res.ResourceID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if check == nil {
		writeError(w, http.StatusNotFound, "no checks yet for this resource")
		return
	}
	writeJSON(w, http.StatusOK, checkToJSON(check))
}

func (s *Server) handleChecksAll(w http.ResponseWriter, r *http.Request) {
	res := s.resolveResource(w, r)
	if res == nil {
		return
	}
	checks, err := s.store.AllChecks(r.Context(), res.ResourceID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if len(checks) == 0 {
		writeError(w, http.StatusNotFound, "no checks yet for this resource")
		return
	}
	out := make([]checkJSON, len(checks))
	for i, c := range checks {
		out[i] = checkToJSON(c)
	}
	writeJSON(w, http.StatusOK, out)
}

type createCheckRequest struct {
	ResourceID string `json:"resource_id"`
}

// handleChecksCreate forces a one-off probe, per spec §6 and §8 scenario 4:
// a successful POST always returns 201 with the resulting check, even when
// the origin itself returned an error status.
func (s *Server) handleChecksCreate(w http.ResponseWriter, r *http.Request) {
	var req createCheckRequest
	if err := decodeStrict(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := uuid.Parse(req.ResourceID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid resource_id")
		return
	}
	res, err := s.store.GetResource(r.Context(), id)
	if err != nil || res == nil {
		writeError(w, http.StatusNotFound, "unknown resource")
		return
	}
	check, err := s.crawler.Probe(r.Context(), res, true)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "probe failed")
		return
	}
	writeJSON(w, http.StatusCreated, checkToJSON(check))
}
