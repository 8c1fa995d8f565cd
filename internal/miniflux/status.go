package miniflux

import (
	"errors"
	"fmt"
)

// ErrorKind はリモート呼び出しの失敗分類を表す。
type ErrorKind string

const (
	// KindUnreachable はサーバーに到達できない（接続失敗・タイムアウト・DNS失敗など）。
	KindUnreachable ErrorKind = "unreachable"
	// KindUnauthorized は認証が拒否された（401/403）。
	KindUnauthorized ErrorKind = "unauthorized"
	// KindNotFound は対象が存在しない（404）。
	KindNotFound ErrorKind = "not_found"
	// KindRejected はリクエストが拒否された（その他の4xx）。
	KindRejected ErrorKind = "rejected"
	// KindServer はサーバー側の一時的な失敗（429/5xx）。
	KindServer ErrorKind = "server"
	// KindDecode はレスポンスの解析に失敗した。
	KindDecode ErrorKind = "decode"
)

// RemoteError はコンテンツ問い合わせAPIの失敗を表す。
type RemoteError struct {
	Kind       ErrorKind
	Op         string // 呼び出したAPI操作名
	StatusCode int    // HTTPステータス（到達できなかった場合は0）
	Err        error
}

// Error はerrorインターフェースを実装する。
func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("miniflux %s: %s (status %d): %v", e.Op, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("miniflux %s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *RemoteError) Unwrap() error {
	return e.Err
}

// KindOf はエラーの失敗分類を返す。RemoteErrorでない場合は空文字を返す。
func KindOf(err error) ErrorKind {
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr.Kind
	}
	return ""
}

// IsUnreachable はサーバーに到達できなかったエラーかどうかを返す。
func IsUnreachable(err error) bool {
	return KindOf(err) == KindUnreachable
}

// IsUnauthorized は認証拒否のエラーかどうかを返す。
func IsUnauthorized(err error) bool {
	return KindOf(err) == KindUnauthorized
}

// ClassifyHTTPStatus はHTTPステータスコードを失敗分類に変換する。
// 2xxの場合は空文字を返す。
func ClassifyHTTPStatus(statusCode int) ErrorKind {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return ""
	case statusCode == 401 || statusCode == 403:
		return KindUnauthorized
	case statusCode == 404:
		return KindNotFound
	case statusCode == 429:
		return KindServer
	case statusCode >= 500:
		return KindServer
	default:
		return KindRejected
	}
}

// classifyTransportError はHTTPクライアントのエラーをRemoteErrorに変換する。
// タイムアウトも呼び出し元のキャンセルも到達不能として扱い、
// キャンセルかどうかの判定はエンジン側でコンテキストを確認して行う。
func classifyTransportError(op string, err error) *RemoteError {
	return &RemoteError{Kind: KindUnreachable, Op: op, Err: err}
}
