package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/fluxreader/internal/middleware"
	"github.com/hitoshi/fluxreader/internal/model"
	"github.com/hitoshi/fluxreader/internal/navigation"
)

// NavigatorInterface は記事移動のハンドラーが必要とするインターフェース。
// navigation.Sessionが実装する。
type NavigatorInterface interface {
	Navigate(ctx context.Context, ref navigation.EntryRef, intent navigation.Intent) (*navigation.Outcome, error)
}

// NavigationHandler は記事移動のHTTPハンドラー。
type NavigationHandler struct {
	navigator NavigatorInterface
	logger    *slog.Logger
}

// NewNavigationHandler はNavigationHandlerを生成する。
func NewNavigationHandler(navigator NavigatorInterface, logger *slog.Logger) *NavigationHandler {
	return &NavigationHandler{navigator: navigator, logger: logger}
}

// navigateResponse は記事移動のAPIレスポンス。
// 移動先は解決できたが開けなかった場合、open_errorに原因が入りurlは空になる。
type navigateResponse struct {
	EntryID   int64                         `json:"entry_id"`
	Source    string                        `json:"source"`
	Context   model.BrowsingContext         `json:"context"`
	URL       string                        `json:"url,omitempty"`
	Path      string                        `json:"path,omitempty"`
	OpenError *middleware.ErrorResponseBody `json:"open_error,omitempty"`
}

// Navigate は現在の記事から前後の記事に移動する。
// POST /api/entries/{id}/navigate?intent=next|previous
// クライアントが切断した場合はリクエストのコンテキストを通じて移動を取り消す。
func (h *NavigationHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	entryID, ok := entryIDParam(w, r)
	if !ok {
		return
	}
	intent, err := navigation.ParseIntent(r.URL.Query().Get("intent"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	out, err := h.navigator.Navigate(r.Context(), navigation.EntryRef{ID: entryID}, intent)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	res := out.Resolution
	resp := navigateResponse{
		EntryID: res.EntryID,
		Source:  string(res.Source),
		Context: res.Context,
		Path:    out.Path,
	}
	if out.Path != "" {
		resp.URL = entryURL(res.EntryID)
	}
	if out.OpenErr != nil {
		resp.OpenError = openErrorBody(out.OpenErr)
	}
	writeJSON(w, http.StatusOK, resp)
}

func openErrorBody(err error) *middleware.ErrorResponseBody {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		apiErr = model.NewDownloadFailedError(0, err.Error())
	}
	body := middleware.NewErrorResponseBody(apiErr)
	return &body
}

// entryURL は保存済み記事を配信するURLパスを返す。
func entryURL(entryID int64) string {
	return fmt.Sprintf("/entries/%d/", entryID)
}
