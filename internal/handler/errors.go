package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/fluxreader/internal/middleware"
	"github.com/hitoshi/fluxreader/internal/miniflux"
	"github.com/hitoshi/fluxreader/internal/model"
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// invalidRequestError はリクエストパラメータの不備を表すAPIErrorを返す。
func invalidRequestError(message string) *model.APIError {
	return &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  message,
		Category: model.CategoryValidation,
		Action:   "リクエストの内容を確認してください。",
	}
}

// remoteAPIError はリモートサーバーの失敗をAPIErrorに変換する。
func remoteAPIError(kind miniflux.ErrorKind) *model.APIError {
	switch kind {
	case miniflux.KindUnauthorized:
		return &model.APIError{
			Code:     "REMOTE_UNAUTHORIZED",
			Message:  "RSSサーバーに認証されませんでした。",
			Category: model.CategoryRemote,
			Action:   "APIトークンを確認してください。",
		}
	case miniflux.KindUnreachable:
		return &model.APIError{
			Code:     "REMOTE_UNREACHABLE",
			Message:  "RSSサーバーに接続できません。",
			Category: model.CategoryRemote,
			Action:   "ネットワーク接続とサーバーURLを確認してください。",
		}
	default:
		return &model.APIError{
			Code:     "REMOTE_ERROR",
			Message:  "RSSサーバーがエラーを返しました。",
			Category: model.CategoryRemote,
			Action:   "しばらく待ってから再度お試しください。",
		}
	}
}

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	var remoteErr *miniflux.RemoteError
	if errors.As(err, &remoteErr) {
		logger.Warn("remote request failed", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusBadGateway, remoteAPIError(remoteErr.Kind))
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	logger.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeMissingIdentity, model.ErrCodeInvalidIntent, model.ErrCodeInvalidContext, "INVALID_REQUEST":
		return http.StatusBadRequest
	case model.ErrCodeMissingTimestamp:
		return http.StatusUnprocessableEntity
	case model.ErrCodeNoAdjacentEntry, model.ErrCodeEndOfListOnline, model.ErrCodeEndOfLocalFiles, model.ErrCodeEntryNotFound:
		return http.StatusNotFound
	case model.ErrCodeNavigationInFlight:
		return http.StatusConflict
	case model.ErrCodeNavigationCancelled:
		return http.StatusRequestTimeout
	case model.ErrCodeNoRemoteClient:
		return http.StatusServiceUnavailable
	case model.ErrCodeDownloadFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
