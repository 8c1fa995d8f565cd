package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/fluxreader/internal/catalog"
	"github.com/hitoshi/fluxreader/internal/model"
)

// CatalogServiceInterface はフィード・記事一覧のハンドラーが必要とするサービスインターフェース。
type CatalogServiceInterface interface {
	Feeds(ctx context.Context) ([]*model.Feed, error)
	Categories(ctx context.Context) ([]*model.Category, error)
	Counters(ctx context.Context) (*model.FeedCounters, error)
	Browse(ctx context.Context, scope catalog.Scope, scopeID int64) (*catalog.BrowseResult, error)
	MarkAsRead(ctx context.Context, entryIDs ...int64) error
	ClearCache()
}

// CatalogHandler はフィード・カテゴリ・記事一覧のHTTPハンドラー。
type CatalogHandler struct {
	service CatalogServiceInterface
	logger  *slog.Logger
}

// NewCatalogHandler はCatalogHandlerを生成する。
func NewCatalogHandler(service CatalogServiceInterface, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{service: service, logger: logger}
}

// feedResponse はフィード情報のAPIレスポンス。
type feedResponse struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	FeedURL    string `json:"feed_url"`
	SiteURL    string `json:"site_url"`
	CategoryID int64  `json:"category_id,omitempty"`
	Disabled   bool   `json:"disabled"`
}

type categoryResponse struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

type countersResponse struct {
	Unreads     map[int64]int `json:"unreads"`
	Reads       map[int64]int `json:"reads"`
	TotalUnread int           `json:"total_unread"`
}

// entrySummaryResponse は記事一覧の1件分。本文は含めない。
type entrySummaryResponse struct {
	ID          int64     `json:"id"`
	FeedID      int64     `json:"feed_id"`
	FeedTitle   string    `json:"feed_title,omitempty"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Author      string    `json:"author,omitempty"`
	Status      string    `json:"status"`
	PublishedAt time.Time `json:"published_at"`
}

// browseResponse は記事一覧のAPIレスポンス。
// contextは一覧から記事を開く際に引き継ぐ閲覧コンテキスト。
type browseResponse struct {
	Context      model.BrowsingContext  `json:"context"`
	Total        int                    `json:"total"`
	Entries      []entrySummaryResponse `json:"entries"`
	LocalEntries []model.LocalEntryRef  `json:"local_entries,omitempty"`
}

// ListFeeds はフィード一覧を返す。
// GET /api/feeds
func (h *CatalogHandler) ListFeeds(w http.ResponseWriter, r *http.Request) {
	feeds, err := h.service.Feeds(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	resp := make([]feedResponse, 0, len(feeds))
	for _, f := range feeds {
		resp = append(resp, feedResponse{
			ID:         f.ID,
			Title:      f.Title,
			FeedURL:    f.FeedURL,
			SiteURL:    f.SiteURL,
			CategoryID: f.CategoryID(),
			Disabled:   f.Disabled,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListCategories はカテゴリ一覧を返す。
// GET /api/categories
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	resp := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		resp = append(resp, categoryResponse{ID: c.ID, Title: c.Title})
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetCounters はフィードごとの未読数を返す。
// GET /api/counters
func (h *CatalogHandler) GetCounters(w http.ResponseWriter, r *http.Request) {
	counters, err := h.service.Counters(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, countersResponse{
		Unreads:     counters.Unreads,
		Reads:       counters.Reads,
		TotalUnread: counters.TotalUnread(),
	})
}

// ListEntries は範囲を指定して記事一覧を返す。
// GET /api/entries?scope=unread|feed|category|local&id=N
func (h *CatalogHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	scope, err := catalog.ParseScope(r.URL.Query().Get("scope"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	var scopeID int64
	if raw := r.URL.Query().Get("id"); raw != "" {
		scopeID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestError("idは整数で指定してください。"))
			return
		}
	}

	res, err := h.service.Browse(r.Context(), scope, scopeID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	resp := browseResponse{
		Context:      res.Context,
		Total:        res.Total,
		Entries:      make([]entrySummaryResponse, 0, len(res.Entries)),
		LocalEntries: res.LocalEntries,
	}
	for _, e := range res.Entries {
		summary := entrySummaryResponse{
			ID:          e.ID,
			FeedID:      e.FeedID,
			Title:       e.Title,
			URL:         e.URL,
			Author:      e.Author,
			Status:      string(e.Status),
			PublishedAt: e.PublishedAt,
		}
		if e.Feed != nil {
			summary.FeedTitle = e.Feed.Title
		}
		resp.Entries = append(resp.Entries, summary)
	}
	writeJSON(w, http.StatusOK, resp)
}

// MarkAsRead は記事を既読にする。
// PUT /api/entries/{id}/read
func (h *CatalogHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	entryID, ok := entryIDParam(w, r)
	if !ok {
		return
	}
	if err := h.service.MarkAsRead(r.Context(), entryID); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearCache はフィード一覧などのキャッシュを無効化する。
// POST /api/cache/clear
func (h *CatalogHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.service.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}

// entryIDParam はURLパスの{id}を記事IDとして取り出す。不正な場合は400を書き込みfalseを返す。
func entryIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestError("記事IDが正しくありません。"))
		return 0, false
	}
	return id, true
}
