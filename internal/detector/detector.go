// Package detector implements the four-tier change-detection cascade,
// grounded on original_source/udata_hydra/analysis/resource.py's
// check_if_changed/is_hash_in_table logic: each tier either decides
// HAS_CHANGED/HAS_NOT_CHANGED or abstains (NO_GUESS) and defers to the next.
package detector

import (
	"net/http"
	"time"

	"github.com/opendata-ops/hydracrawl/internal/model"
)

// Detect runs the cascade against the just-written check, up to two prior
// checks (newest first, current excluded), and the resource's harvest
// metadata timestamp, per spec §4.3.
func Detect(current *model.Check, prior []*model.Check, harvestModifiedAt *time.Time) model.ChangeResult {
	if r, ok := byHarvestMetadata(current, prior, harvestModifiedAt); ok {
		return r
	}
	if r, ok := byLastModified(current, prior); ok {
		return r
	}
	if r, ok := byContentLength(current, prior); ok {
		return r
	}
	return model.ChangeResult{Change: model.NoGuess}
}

func byHarvestMetadata(current *model.Check, prior []*model.Check, harvestModifiedAt *time.Time) (model.ChangeResult, bool) {
	if harvestModifiedAt == nil || len(prior) == 0 {
		return model.ChangeResult{}, false
	}
	prev := prior[0]
	if prev.DetectedLastModifiedAt != nil && prev.DetectedLastModifiedAt.Equal(*harvestModifiedAt) {
		return model.ChangeResult{Change: model.HasNotChanged}, true
	}
	return model.ChangeResult{
		Change:          model.HasChanged,
		LastModifiedAt:  harvestModifiedAt,
		DetectionMethod: model.DetectionHarvestMetadata,
	}, true
}

func byLastModified(current *model.Check, prior []*model.Check) (model.ChangeResult, bool) {
	curLM, curOK := headerTime(current.Headers, "last-modified")
	if !curOK {
		return model.ChangeResult{}, false
	}
	if len(prior) == 0 {
		return model.ChangeResult{
			Change:          model.HasChanged,
			LastModifiedAt:  &curLM,
			DetectionMethod: model.DetectionLastModified,
		}, true
	}
	prevLM, prevOK := headerTime(prior[0].Headers, "last-modified")
	if !prevOK {
		return model.ChangeResult{}, false
	}
	if !curLM.Equal(prevLM) {
		return model.ChangeResult{
			Change:          model.HasChanged,
			LastModifiedAt:  &curLM,
			DetectionMethod: model.DetectionLastModified,
		}, true
	}
	return model.ChangeResult{Change: model.HasNotChanged}, true
}

func byContentLength(current *model.Check, prior []*model.Check) (model.ChangeResult, bool) {
	curCL, curOK := current.Headers["content-length"]
	if !curOK || len(prior) == 0 {
		return model.ChangeResult{}, false
	}
	prevCL, prevOK := prior[0].Headers["content-length"]
	if !prevOK {
		return model.ChangeResult{}, false
	}
	if curCL != prevCL {
		return model.ChangeResult{
			Change:          model.HasChanged,
			LastModifiedAt:  &current.CreatedAt,
			DetectionMethod: model.DetectionContentLength,
		}, true
	}
	return model.ChangeResult{Change: model.HasNotChanged}, true
}

// DetectByChecksum is called after analysis computes a fresh checksum; it
// implements cascade tier 4 in isolation since it runs later in the
// pipeline than the other three tiers. Per spec §4.3 tier 4, only a
// differing checksum yields a verdict: a matching checksum abstains
// (NO_GUESS, ok=false) rather than asserting HAS_NOT_CHANGED, since a
// resource reachable only via tier 4 has no verdict to upgrade from by
// construction.
func DetectByChecksum(previousChecksum *string, newChecksum string, now time.Time) (model.ChangeResult, bool) {
	if previousChecksum == nil || *previousChecksum == newChecksum {
		return model.ChangeResult{}, false
	}
	return model.ChangeResult{
		Change:          model.HasChanged,
		LastModifiedAt:  &now,
		DetectionMethod: model.DetectionComputedChecksum,
	}, true
}

func headerTime(headers map[string]string, key string) (time.Time, bool) {
	v, ok := headers[key]
	if !ok || v == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(http.TimeFormat, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
