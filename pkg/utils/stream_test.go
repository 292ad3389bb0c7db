package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteChunkFlushes(t *testing.T) {
	rec := httptest.NewRecorder()
	SetupTextStreamHeaders(rec)

	if err := WriteChunk(rec, rec, "Hi "); err != nil {
		t.Fatalf("WriteChunk err: %v", err)
	}
	if err := WriteChunk(rec, rec, ""); err != nil {
		t.Fatalf("WriteChunk empty err: %v", err)
	}
	if err := WriteChunk(rec, rec, "there"); err != nil {
		t.Fatalf("WriteChunk err: %v", err)
	}

	if !rec.Flushed {
		t.Fatal("expected recorder to be flushed")
	}
	if got := rec.Body.String(); got != "Hi there" {
		t.Fatalf("unexpected body %q", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestRespondFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondFailure(rec, http.StatusInternalServerError, "boom", "upstream said no")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if body["success"] != false || body["error"] != "boom" || body["details"] != "upstream said no" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestRespondFailureAlwaysCarriesDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondFailure(rec, http.StatusBadRequest, "Message is required", "")

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	details, ok := body["details"]
	if !ok || details != "" {
		t.Fatalf("expected empty details field to be present, got %v", body)
	}
}
