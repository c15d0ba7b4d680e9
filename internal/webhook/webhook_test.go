package webhook

import (
	"net/http"
	"testing"

	"github.com/opendata-ops/hydracrawl/internal/model"
)

func TestAvailable_429IsNull(t *testing.T) {
	status := http.StatusTooManyRequests
	if got := Available(&status, false); got != nil {
		t.Fatalf("expected nil for 429, got %v", *got)
	}
}

func TestAvailable_transportFailureIsFalse(t *testing.T) {
	got := Available(nil, true)
	if got == nil || *got != false {
		t.Fatalf("expected false for transport failure, got %v", got)
	}
}

func TestAvailable_5xxIsFalse(t *testing.T) {
	status := 500
	got := Available(&status, false)
	if got == nil || *got != false {
		t.Fatalf("expected false for 5xx, got %v", got)
	}
}

func TestAvailable_okIsTrue(t *testing.T) {
	status := 200
	got := Available(&status, false)
	if got == nil || *got != true {
		t.Fatalf("expected true for 200, got %v", got)
	}
}

func TestEventFromCheck_headers(t *testing.T) {
	status := 200
	c := &model.Check{
		Status:  &status,
		Headers: map[string]string{"content-type": "application/json", "content-length": "10"},
	}
	ev := EventFromCheck(c, false, nil, nil)
	if ev.CheckHeadersContentType == nil || *ev.CheckHeadersContentType != "application/json" {
		t.Fatalf("content-type: %v", ev.CheckHeadersContentType)
	}
	if ev.CheckHeadersContentLength == nil || *ev.CheckHeadersContentLength != 10 {
		t.Fatalf("content-length: %v", ev.CheckHeadersContentLength)
	}
	if ev.CheckAvailable == nil || *ev.CheckAvailable != true {
		t.Fatalf("available: %v", ev.CheckAvailable)
	}
}

func TestEventFromCheck_probeErrorNotSurfacedAsAnalysisError(t *testing.T) {
	status := 500
	probeErr := "Internal Server Error"
	c := &model.Check{Status: &status, Error: &probeErr}
	ev := EventFromCheck(c, false, nil, nil)
	if ev.AnalysisError != nil {
		t.Fatalf("expected no analysis:error from a probe-level error, got %q", *ev.AnalysisError)
	}
}

func TestEventFromCheck_analysisErrorSurfaced(t *testing.T) {
	c := &model.Check{}
	analysisErr := "File too large to download"
	ev := EventFromCheck(c, false, nil, &analysisErr)
	if ev.AnalysisError == nil || *ev.AnalysisError != analysisErr {
		t.Fatalf("expected analysis:error to carry the analysis failure, got %v", ev.AnalysisError)
	}
}
