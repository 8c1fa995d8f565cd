package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/fluxreader/internal/model"
)

// NewOriginGuardMiddleware は状態を変更するリクエストのうち、
// 別オリジンのページから送信されたものを拒否するミドルウェアを返す。
//
// ローカルのリーダーサーバーはブラウザから到達できるため、
// 閲覧中の外部サイトが既読化や記事移動を勝手に要求できないようにする。
// 判定はSec-Fetch-Site、Origin、Refererの順に行い、
// いずれも無いリクエスト（CLIやcurlなど）は許可する。
func NewOriginGuardMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) || isSameOrigin(r) {
				next.ServeHTTP(w, r)
				return
			}

			logger.Warn("cross-origin request rejected",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("origin", r.Header.Get("Origin")),
			)
			WriteErrorResponse(w, http.StatusForbidden, &model.APIError{
				Code:     "CROSS_ORIGIN_REQUEST",
				Message:  "別のサイトからの操作は受け付けません。",
				Category: model.CategoryValidation,
				Action:   "リーダーの画面から操作してください。",
			})
		})
	}
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// isSameOrigin はリクエストが同一オリジンから送信されたかを判定する。
func isSameOrigin(r *http.Request) bool {
	switch strings.ToLower(r.Header.Get("Sec-Fetch-Site")) {
	case "same-origin", "none":
		return true
	case "same-site", "cross-site":
		return false
	}

	if origin := r.Header.Get("Origin"); origin != "" {
		return origin != "null" && hostOf(origin) == strings.ToLower(r.Host)
	}
	if referer := r.Header.Get("Referer"); referer != "" {
		return hostOf(referer) == strings.ToLower(r.Host)
	}
	return true
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
