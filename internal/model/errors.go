// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: precondition, exhausted, remote, persistence, navigation, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMissingIdentity     = "MISSING_IDENTITY"
	ErrCodeNoRemoteClient      = "NO_REMOTE_CLIENT"
	ErrCodeMissingTimestamp    = "MISSING_TIMESTAMP"
	ErrCodeNoAdjacentEntry     = "NO_ADJACENT_ENTRY"
	ErrCodeEndOfListOnline     = "END_OF_LIST_ONLINE"
	ErrCodeEndOfLocalFiles     = "END_OF_LOCAL_FILES"
	ErrCodeNavigationInFlight  = "NAVIGATION_IN_FLIGHT"
	ErrCodeNavigationCancelled = "NAVIGATION_CANCELLED"
	ErrCodeEntryNotFound       = "ENTRY_NOT_FOUND"
	ErrCodeDownloadFailed      = "DOWNLOAD_FAILED"
	ErrCodeMetadataWriteFailed = "METADATA_WRITE_FAILED"
	ErrCodeInvalidContext      = "INVALID_CONTEXT"
	ErrCodeInvalidIntent       = "INVALID_INTENT"
)

// エラーカテゴリ
const (
	CategoryPrecondition = "precondition"
	CategoryExhausted    = "exhausted"
	CategoryRemote       = "remote"
	CategoryPersistence  = "persistence"
	CategoryNavigation   = "navigation"
	CategoryValidation   = "validation"
	CategorySystem       = "system"
)

// NewMissingIdentityError は記事IDが特定できない場合のエラーを生成する。
func NewMissingIdentityError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingIdentity,
		Message:  "現在の記事のIDを特定できません。",
		Category: CategoryPrecondition,
		Action:   "アグリゲータからダウンロードした記事を開いてから操作してください。",
	}
}

// NewNoRemoteClientError はコンテンツ問い合わせクライアントが未設定の場合のエラーを生成する。
func NewNoRemoteClientError() *APIError {
	return &APIError{
		Code:     ErrCodeNoRemoteClient,
		Message:  "サーバー接続が設定されていません。",
		Category: CategoryPrecondition,
		Action:   "サーバーURLとAPIトークンを設定してください。",
	}
}

// NewMissingTimestampError は記事の公開日時が取得できない場合のエラーを生成する。
func NewMissingTimestampError(entryID int64) *APIError {
	return &APIError{
		Code:     ErrCodeMissingTimestamp,
		Message:  fmt.Sprintf("記事の公開日時を取得できません: %d", entryID),
		Category: CategoryPrecondition,
		Action:   "記事を再ダウンロードしてから操作してください。",
	}
}

// NewLocalBoundaryError はローカル閲覧リストの端に到達した場合のエラーを生成する。
func NewLocalBoundaryError() *APIError {
	return &APIError{
		Code:     ErrCodeNoAdjacentEntry,
		Message:  "ローカル閲覧リストの端に到達しました。",
		Category: CategoryExhausted,
		Action:   "一覧に戻って別の記事を選択してください。",
	}
}

// NewEndOfListOnlineError はサーバーに到達できたが次の記事が存在しない場合のエラーを生成する。
func NewEndOfListOnlineError() *APIError {
	return &APIError{
		Code:     ErrCodeEndOfListOnline,
		Message:  "これ以上の記事はありません。",
		Category: CategoryExhausted,
		Action:   "一覧に戻るか、新しい記事の取得を待ってください。",
	}
}

// NewEndOfLocalFilesError はサーバーに到達できず、ローカルにも候補がない場合のエラーを生成する。
func NewEndOfLocalFilesError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeEndOfLocalFiles,
		Message:  fmt.Sprintf("サーバーに接続できず、ローカルにも該当する記事がありません: %s", reason),
		Category: CategoryExhausted,
		Action:   "ネットワーク接続を確認してから再度お試しください。",
	}
}

// NewEndOfLocalFilesUnauthorizedError はサーバーに認証を拒否され、ローカルにも候補がない場合のエラーを生成する。
func NewEndOfLocalFilesUnauthorizedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeEndOfLocalFiles,
		Message:  fmt.Sprintf("サーバーに認証を拒否され、ローカルにも該当する記事がありません: %s", reason),
		Category: CategoryExhausted,
		Action:   "MINIFLUX_API_TOKEN が有効なAPIトークンか確認してください。",
	}
}

// NewNavigationInFlightError は別の記事移動が処理中の場合のエラーを生成する。
func NewNavigationInFlightError() *APIError {
	return &APIError{
		Code:     ErrCodeNavigationInFlight,
		Message:  "記事の移動を処理中です。",
		Category: CategoryNavigation,
		Action:   "処理の完了を待ってから再度お試しください。",
	}
}

// NewNavigationCancelledError は記事移動がキャンセルされた場合のエラーを生成する。
func NewNavigationCancelledError() *APIError {
	return &APIError{
		Code:     ErrCodeNavigationCancelled,
		Message:  "記事の移動がキャンセルされました。",
		Category: CategoryNavigation,
		Action:   "必要であれば再度操作してください。",
	}
}

// NewEntryNotFoundError はローカルに記事が見つからない場合のエラーを生成する。
func NewEntryNotFoundError(entryID int64) *APIError {
	return &APIError{
		Code:     ErrCodeEntryNotFound,
		Message:  fmt.Sprintf("指定された記事が見つかりません: %d", entryID),
		Category: CategoryPersistence,
		Action:   "記事IDを確認するか、記事をダウンロードしてください。",
	}
}

// NewDownloadFailedError は記事のダウンロードに失敗した場合のエラーを生成する。
func NewDownloadFailedError(entryID int64, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeDownloadFailed,
		Message:  fmt.Sprintf("記事のダウンロードに失敗しました: %d: %s", entryID, reason),
		Category: CategoryRemote,
		Action:   "ネットワーク接続を確認してから再度お試しください。",
	}
}

// NewMetadataWriteFailedError はメタデータの書き込みに失敗した場合のエラーを生成する。
func NewMetadataWriteFailedError(entryID int64, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeMetadataWriteFailed,
		Message:  fmt.Sprintf("記事のメタデータを保存できませんでした: %d: %s", entryID, reason),
		Category: CategoryPersistence,
		Action:   "ダウンロード先ディレクトリの空き容量と権限を確認してください。",
	}
}

// NewInvalidContextError は閲覧コンテキストが不正な場合のエラーを生成する。
func NewInvalidContextError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidContext,
		Message:  fmt.Sprintf("無効な閲覧コンテキストです: %s", reason),
		Category: CategoryValidation,
		Action:   "scopeには unread、feed、category、local のいずれかを指定してください。",
	}
}

// NewInvalidIntentError は移動方向が不正な場合のエラーを生成する。
func NewInvalidIntentError(intent string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidIntent,
		Message:  fmt.Sprintf("無効な移動方向です: %s", intent),
		Category: CategoryValidation,
		Action:   "intentには next または previous を指定してください。",
	}
}

// HasCode はエラーが指定コードのAPIErrorかどうかを返す。
func HasCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// IsExhausted はエラーがリストの終端到達（不具合ではない終了状態）かどうかを返す。
func IsExhausted(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Category == CategoryExhausted
	}
	return false
}
