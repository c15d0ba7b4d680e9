package api

import (
	"net/http"
)

type crawlerStatusJSON struct {
	Total                 int     `json:"total"`
	PendingChecks         int     `json:"pending_checks"`
	FreshChecks           int     `json:"fresh_checks"`
	ChecksPercentage      float64 `json:"checks_percentage"`
	FreshChecksPercentage float64 `json:"fresh_checks_percentage"`
}

func (s *Server) handleCrawlerStatus(w http.ResponseWriter, r *http.Request) {
	total, pending, fresh, err := s.store.CrawlerStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	checked := total - pending
	writeJSON(w, http.StatusOK, crawlerStatusJSON{
		Total:                 total,
		PendingChecks:         pending,
		FreshChecks:           fresh,
		ChecksPercentage:      percentage(checked, total),
		FreshChecksPercentage: percentage(fresh, total),
	})
}

type statusBucketJSON struct {
	Label      string  `json:"label"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type statusCodeJSON struct {
	Code       int     `json:"code"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type statsJSON struct {
	Status      []statusBucketJSON `json:"status"`
	StatusCodes []statusCodeJSON   `json:"status_codes"`
}

// handleStats reports the three-bucket breakdown (error/timeout/ok) of each
// resource's latest check, plus a per-status-code histogram, per spec §8
// scenario 7: only the most recent check of a resource counts.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ok, timeout, errored, err := s.store.CountByStatusBucket(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	total := ok + timeout + errored

	codeCounts, err := s.store.StatusCodeCounts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	codeTotal := 0
	for _, n := range codeCounts {
		codeTotal += n
	}

	resp := statsJSON{
		Status: []statusBucketJSON{
			{Label: "error", Count: errored, Percentage: percentage(errored, total)},
			{Label: "timeout", Count: timeout, Percentage: percentage(timeout, total)},
			{Label: "ok", Count: ok, Percentage: percentage(ok, total)},
		},
	}
	for code, n := range codeCounts {
		resp.StatusCodes = append(resp.StatusCodes, statusCodeJSON{
			Code: code, Count: n, Percentage: percentage(n, codeTotal),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	v := float64(part) / float64(total) * 100
	return roundTo1Decimal(v)
}

func roundTo1Decimal(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
