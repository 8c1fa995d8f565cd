// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"time"
)

// ContextKind は閲覧コンテキストの種類を表す。
type ContextKind string

const (
	// ContextGlobal は全未読記事を対象とする閲覧コンテキスト。
	ContextGlobal ContextKind = "global"
	// ContextFeed は単一フィードを対象とする閲覧コンテキスト。
	ContextFeed ContextKind = "feed"
	// ContextCategory は単一カテゴリを対象とする閲覧コンテキスト。
	ContextCategory ContextKind = "category"
	// ContextLocal はダウンロード済み記事のみを対象とする閲覧コンテキスト。
	// このコンテキストではネットワーク通信を一切行わない。
	ContextLocal ContextKind = "local"
)

// LocalEntryRef はローカル閲覧リスト内の軽量な記事参照。
// 並び替えに必要な最小限のフィールドのみを持つ。
type LocalEntryRef struct {
	ID          int64     `json:"id"`
	PublishedAt time.Time `json:"published_at"`
	Title       string    `json:"title,omitempty"`
}

// BrowsingContext はユーザーが閲覧している範囲を表す。
// 値として扱い、更新時は新しい値を生成する。
type BrowsingContext struct {
	Kind ContextKind `json:"type"`
	// ScopeID はKindがfeed/categoryの場合のみ設定される。
	ScopeID int64 `json:"id,omitempty"`
	// LocalEntries はKindがlocalの場合のみ設定される、並び替え済みの記事参照列。
	LocalEntries []LocalEntryRef `json:"ordered_entries,omitempty"`
}

// GlobalContext は全未読記事の閲覧コンテキストを返す。
func GlobalContext() BrowsingContext {
	return BrowsingContext{Kind: ContextGlobal}
}

// FeedContext は指定フィードの閲覧コンテキストを返す。
func FeedContext(feedID int64) BrowsingContext {
	return BrowsingContext{Kind: ContextFeed, ScopeID: feedID}
}

// CategoryContext は指定カテゴリの閲覧コンテキストを返す。
func CategoryContext(categoryID int64) BrowsingContext {
	return BrowsingContext{Kind: ContextCategory, ScopeID: categoryID}
}

// LocalContext は並び替え済みのローカル記事列から閲覧コンテキストを返す。
func LocalContext(refs []LocalEntryRef) BrowsingContext {
	return BrowsingContext{Kind: ContextLocal, LocalEntries: refs}
}

// Validate はコンテキストの不変条件を検証する。
func (c BrowsingContext) Validate() error {
	switch c.Kind {
	case ContextGlobal:
		if c.ScopeID != 0 || len(c.LocalEntries) > 0 {
			return fmt.Errorf("global context must not carry scope or local entries")
		}
	case ContextFeed, ContextCategory:
		if c.ScopeID <= 0 {
			return fmt.Errorf("%s context requires a positive scope id", c.Kind)
		}
		if len(c.LocalEntries) > 0 {
			return fmt.Errorf("%s context must not carry local entries", c.Kind)
		}
	case ContextLocal:
		if c.ScopeID != 0 {
			return fmt.Errorf("local context must not carry a scope id")
		}
	default:
		return fmt.Errorf("unknown context kind: %q", c.Kind)
	}
	return nil
}

// IndexOf はローカル記事列内の記事の位置を返す。見つからない場合は-1を返す。
func (c BrowsingContext) IndexOf(entryID int64) int {
	for i, ref := range c.LocalEntries {
		if ref.ID == entryID {
			return i
		}
	}
	return -1
}

// String はログ出力用の表現を返す。
func (c BrowsingContext) String() string {
	switch c.Kind {
	case ContextFeed, ContextCategory:
		return fmt.Sprintf("%s:%d", c.Kind, c.ScopeID)
	case ContextLocal:
		return fmt.Sprintf("local(%d)", len(c.LocalEntries))
	default:
		return string(c.Kind)
	}
}
