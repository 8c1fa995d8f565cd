package handler

import (
	"log/slog"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/fluxreader/internal/model"
	"github.com/hitoshi/fluxreader/internal/store"
)

// RenderStoreInterface は保存済み記事の配信に必要なローカル保存領域の操作。
type RenderStoreInterface interface {
	DirOf(entryID int64) string
	RenderPathOf(entryID int64) string
	HasCompletedRender(entryID int64) bool
}

// EntryHandler は保存済み記事のHTMLと画像を配信するハンドラー。
type EntryHandler struct {
	store  RenderStoreInterface
	logger *slog.Logger
}

// NewEntryHandler はEntryHandlerを生成する。
func NewEntryHandler(store RenderStoreInterface, logger *slog.Logger) *EntryHandler {
	return &EntryHandler{store: store, logger: logger}
}

// Redirect は画像の相対パスが解決できるよう末尾にスラッシュを付けたURLへリダイレクトする。
// GET /entries/{id}
func (h *EntryHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	entryID, ok := entryIDParam(w, r)
	if !ok {
		return
	}
	http.Redirect(w, r, entryURL(entryID), http.StatusMovedPermanently)
}

// ServeRender は保存済み記事のHTMLを返す。
// GET /entries/{id}/
func (h *EntryHandler) ServeRender(w http.ResponseWriter, r *http.Request) {
	entryID, ok := entryIDParam(w, r)
	if !ok {
		return
	}
	if !h.store.HasCompletedRender(entryID) {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewEntryNotFoundError(entryID))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeFile(w, r, h.store.RenderPathOf(entryID))
}

// ServeAsset は保存済み記事の画像を返す。メタデータなどの内部ファイルは返さない。
// GET /entries/{id}/{name}
func (h *EntryHandler) ServeAsset(w http.ResponseWriter, r *http.Request) {
	entryID, ok := entryIDParam(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")
	if !isAssetName(name) || !h.store.HasCompletedRender(entryID) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(h.store.DirOf(entryID), name))
}

func isAssetName(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") || path.Base(name) != name {
		return false
	}
	return name != store.RenderFileName && name != store.MetadataFileName
}
