package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/fluxreader/internal/model"
)

// TestWriteErrorResponse_WritesUnifiedFormat は統一エラーフォーマットで書き込まれることを検証する。
func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusNotFound, model.NewEndOfListOnlineError())

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != model.ErrCodeEndOfListOnline {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeEndOfListOnline)
	}
	if body.Category != model.CategoryExhausted {
		t.Errorf("category = %q, want %q", body.Category, model.CategoryExhausted)
	}
	if body.Message == "" || body.Action == "" {
		t.Errorf("message/action が空: %+v", body)
	}
}

func TestWriteInternalServerError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalServerError(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != "INTERNAL_ERROR" || body.Category != model.CategorySystem {
		t.Errorf("body = %+v", body)
	}
}
