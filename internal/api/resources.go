package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/opendata-ops/hydracrawl/internal/model"
)

type resourceJSON struct {
	ResourceID string  `json:"resource_id"`
	DatasetID  string  `json:"dataset_id"`
	URL        string  `json:"url"`
	Domain     string  `json:"domain"`
	Deleted    bool    `json:"deleted"`
	Priority   bool    `json:"priority"`
	Status     *string `json:"status,omitempty"`
}

func resourceToJSON(r *model.Resource) resourceJSON {
	out := resourceJSON{
		ResourceID: r.ResourceID.String(),
		DatasetID:  r.DatasetID,
		URL:        r.URL,
		Domain:     r.Domain,
		Deleted:    r.Deleted,
		Priority:   r.Priority,
	}
	if r.Status != model.StatusNone {
		s := string(r.Status)
		out.Status = &s
	}
	return out
}

func (s *Server) handleResourceGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid resource id")
		return
	}
	res, err := s.store.GetResource(r.Context(), id)
	if err != nil || res == nil {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	writeJSON(w, http.StatusOK, resourceToJSON(res))
}

// statusVerbose maps the internal status enum to the human-readable string
// surfaced at /api/resources/{id}/status/.
var statusVerbose = map[model.Status]string{
	model.StatusNone:         "not yet checked",
	model.StatusCrawling:     "crawling",
	model.StatusToAnalyse:    "queued for analysis",
	model.StatusAnalysing:    "analysing",
	model.StatusToAnalyseCSV: "queued for tabular parsing",
	model.StatusAnalysingCSV: "parsing tabular data",
	model.StatusAnalysed:     "analysed",
}

type resourceStatusJSON struct {
	ResourceID     string `json:"resource_id"`
	Status         string `json:"status"`
	StatusVerbose  string `json:"status_verbose"`
	LatestCheckURL string `json:"latest_check_url"`
}

func (s *Server) handleResourceStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid resource id")
		return
	}
	res, err := s.store.GetResource(r.Context(), id)
	if err != nil || res == nil {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	verbose, ok := statusVerbose[res.Status]
	if !ok {
		verbose = string(res.Status)
	}
	writeJSON(w, http.StatusOK, resourceStatusJSON{
		ResourceID:     res.ResourceID.String(),
		Status:         string(res.Status),
		StatusVerbose:  verbose,
		LatestCheckURL: s.checkURLBase + "?resource_id=" + res.ResourceID.String(),
	})
}

// upstreamDocument mirrors the original ResourceDocumentSchema's bare
// essentials: only url is load-bearing for crawling, the rest of the
// upstream document is accepted but not persisted.
type upstreamDocument struct {
	ID          string         `json:"id"`
	URL         string         `json:"url"`
	Format      *string        `json:"format"`
	Title       string         `json:"title"`
	Schema      *string        `json:"schema"`
	Description *string        `json:"description"`
	Filetype    string         `json:"filetype"`
	Type        string         `json:"type"`
	Mime        *string        `json:"mime"`
	Filesize    *int64         `json:"filesize"`
	CreatedAt   *string        `json:"created_at"`
	LastMod     *string        `json:"last_modified"`
	Extras      map[string]any `json:"extras"`
	Harvest     map[string]any `json:"harvest"`
}

type upstreamResourceRequest struct {
	DatasetID  string             `json:"dataset_id"`
	ResourceID string             `json:"resource_id"`
	Status     *string            `json:"status"`
	Document   *upstreamDocument  `json:"document"`
}

type idResponse struct {
	ID string `json:"id"`
}

// handleResourceCreate ingests an upstream create event. Always marks the
// new row priority, per spec §5's "POST /api/resources/ always sets
// priority=true" supplement.
func (s *Server) handleResourceCreate(w http.ResponseWriter, r *http.Request) {
	var req upstreamResourceRequest
	if err := decodeStrict(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Document == nil || req.Document.URL == "" {
		writeError(w, http.StatusBadRequest, "missing document body")
		return
	}
	domain, err := domainOf(req.Document.URL)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document url")
		return
	}
	id, err := s.store.InsertFromUpstream(r.Context(), req.DatasetID, req.Document.URL, domain)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, idResponse{ID: id.String()})
}

// handleResourceUpdate ingests an upstream update event: the url may change
// in place, never inserting a duplicate row, per spec §4's catalog invariant.
func (s *Server) handleResourceUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid resource id")
		return
	}
	var req upstreamResourceRequest
	if err := decodeStrict(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Document == nil || req.Document.URL == "" {
		writeError(w, http.StatusBadRequest, "missing document body")
		return
	}
	domain, err := domainOf(req.Document.URL)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document url")
		return
	}
	if err := s.store.UpdateURL(r.Context(), id, req.Document.URL, domain); err != nil {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	writeJSON(w, http.StatusOK, idResponse{ID: id.String()})
}

func (s *Server) handleResourceDelete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid resource id")
		return
	}
	if err := s.store.SoftDelete(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

func domainOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", &ValidationError{Message: "url has no host"}
	}
	return strings.ToLower(u.Hostname()), nil
}
