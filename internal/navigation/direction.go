// Package navigation は閲覧コンテキストに沿って前後の記事を解決するナビゲーションエンジンを提供する。
// リモートの記事一覧APIで隣接記事を問い合わせ、失敗した場合はローカル保存領域を走査して代替候補を探す。
package navigation

import (
	"strings"

	"github.com/hitoshi/fluxreader/internal/model"
)

// Intent はリスト上の移動方向を表す。
// Previousはリストの上（先頭側）、Nextはリストの下（末尾側）への移動。
type Intent int

const (
	// IntentPrevious はリストを1つ上に移動する。
	IntentPrevious Intent = iota + 1
	// IntentNext はリストを1つ下に移動する。
	IntentNext
)

// ParseIntent は文字列からIntentを生成する。
func ParseIntent(s string) (Intent, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "previous", "prev":
		return IntentPrevious, nil
	case "next":
		return IntentNext, nil
	default:
		return 0, model.NewInvalidIntentError(s)
	}
}

// Valid は定義済みのIntentかどうかを返す。
func (i Intent) Valid() bool {
	return i == IntentPrevious || i == IntentNext
}

// Opposite は逆方向のIntentを返す。
func (i Intent) Opposite() Intent {
	if i == IntentPrevious {
		return IntentNext
	}
	return IntentPrevious
}

// String はIntentの文字列表現を返す。
func (i Intent) String() string {
	switch i {
	case IntentPrevious:
		return "previous"
	case IntentNext:
		return "next"
	default:
		return "unknown"
	}
}

// Step はリモート問い合わせで使う比較条件と、強制する並び順の方向の組。
type Step struct {
	Bound           model.BoundKind
	RemoteDirection model.SortDirection
}

var (
	stepNewer = Step{Bound: model.BoundPublishedAfter, RemoteDirection: model.SortAscending}
	stepOlder = Step{Bound: model.BoundPublishedBefore, RemoteDirection: model.SortDescending}
)

// Resolve はユーザーの並び順の方向と移動方向から問い合わせ条件を決定する。
//
//	降順（新しい順）: Previous=より新しい記事, Next=より古い記事
//	昇順（古い順）  : Previous=より古い記事,   Next=より新しい記事
//
// より新しい記事はpublished_afterと昇順、より古い記事はpublished_beforeと降順で
// limit=1の問い合わせを行うと、最も近い1件が得られる。
// 未知の方向は降順として扱う。
func Resolve(direction model.SortDirection, intent Intent) Step {
	switch {
	case direction == model.SortAscending && intent == IntentPrevious:
		return stepOlder
	case direction == model.SortAscending && intent == IntentNext:
		return stepNewer
	case intent == IntentPrevious:
		return stepNewer
	default:
		return stepOlder
	}
}
