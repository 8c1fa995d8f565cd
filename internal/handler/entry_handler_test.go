package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEntryHandler_ServeRender(t *testing.T) {
	ts := newTestServer(t)
	if err := ts.store.WriteRender(5, []byte("<html><body>保存済み</body></html>")); err != nil {
		t.Fatalf("WriteRender: %v", err)
	}

	w := ts.do(http.MethodGet, "/entries/5/")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "保存済み") {
		t.Errorf("body = %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if csp := w.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "default-src 'none'") {
		t.Errorf("Content-Security-Policy = %q", csp)
	}
}

func TestEntryHandler_RedirectsToDirectory(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/entries/5")
	if w.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d, want 301", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/entries/5/" {
		t.Errorf("Location = %q, want /entries/5/", loc)
	}
}

func TestEntryHandler_NotDownloaded(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/entries/5/")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if body := decodeError(t, w); body.Code != "ENTRY_NOT_FOUND" {
		t.Errorf("code = %q", body.Code)
	}
}

func TestEntryHandler_ServeAsset(t *testing.T) {
	ts := newTestServer(t)
	if err := ts.store.WriteRender(5, []byte("<html></html>")); err != nil {
		t.Fatalf("WriteRender: %v", err)
	}
	if _, err := ts.store.WriteAsset(5, "image-001.png", []byte("\x89PNG\r\n\x1a\n")); err != nil {
		t.Fatalf("WriteAsset: %v", err)
	}
	if err := os.WriteFile(filepath.Join(ts.store.DirOf(5), ".hidden"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if w := ts.do(http.MethodGet, "/entries/5/image-001.png"); w.Code != http.StatusOK {
		t.Errorf("image: status = %d, want 200", w.Code)
	}
	for _, name := range []string{"metadata.json", "entry.html", ".hidden", "missing.png"} {
		if w := ts.do(http.MethodGet, "/entries/5/"+name); w.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", name, w.Code)
		}
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/health")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("health = %d %q", w.Code, w.Body.String())
	}
	if w := ts.do(http.MethodGet, "/metrics"); w.Code != http.StatusOK {
		t.Errorf("metrics: status = %d, want 200", w.Code)
	}
}
