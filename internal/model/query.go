// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"time"
)

// SortOrder は記事一覧の並び替えキーを表す。
type SortOrder string

const (
	// SortByPublishedAt は公開日時で並び替える。
	SortByPublishedAt SortOrder = "published_at"
	// SortByID は記事IDで並び替える。
	SortByID SortOrder = "id"
	// SortByStatus は既読状態で並び替える。
	SortByStatus SortOrder = "status"
	// SortByCategoryTitle はカテゴリ名で並び替える。
	SortByCategoryTitle SortOrder = "category_title"
	// SortByCategoryID はカテゴリIDで並び替える。
	SortByCategoryID SortOrder = "category_id"
)

// SortDirection は並び替えの方向を表す。
type SortDirection string

const (
	// SortAscending は昇順（古い順）。
	SortAscending SortDirection = "asc"
	// SortDescending は降順（新しい順）。
	SortDescending SortDirection = "desc"
)

// Settings は閲覧設定を表す。呼び出しのたびに最新値を読み込む。
type Settings struct {
	Order           SortOrder
	Direction       SortDirection
	HideReadEntries bool
	Limit           int
}

// DefaultSettings はデフォルトの閲覧設定を返す。
func DefaultSettings() Settings {
	return Settings{
		Order:           SortByPublishedAt,
		Direction:       SortDescending,
		HideReadEntries: true,
		Limit:           100,
	}
}

// Statuses は既読記事を隠す設定から問い合わせ対象の状態集合を導出する。
func (s Settings) Statuses() []EntryStatus {
	if s.HideReadEntries {
		return []EntryStatus{EntryStatusUnread}
	}
	return []EntryStatus{EntryStatusUnread, EntryStatusRead}
}

// BoundKind は公開日時による絞り込みの向きを表す。
type BoundKind int

const (
	// BoundNone は公開日時による絞り込みを行わない。
	BoundNone BoundKind = iota
	// BoundPublishedAfter は指定時刻より後に公開された記事に絞り込む。
	BoundPublishedAfter
	// BoundPublishedBefore は指定時刻より前に公開された記事に絞り込む。
	BoundPublishedBefore
)

// String はクエリパラメータ名を返す。
func (b BoundKind) String() string {
	switch b {
	case BoundPublishedAfter:
		return "published_after"
	case BoundPublishedBefore:
		return "published_before"
	default:
		return "none"
	}
}

// PublishedBound は公開日時による片側の絞り込み条件。
// 1つの値で表現するため、published_afterとpublished_beforeが同時に指定されることはない。
type PublishedBound struct {
	Kind      BoundKind
	Timestamp int64 // Unix秒
}

// NewPublishedBound は公開日時からUnix秒の絞り込み条件を作る。
// APIは秒単位の境界と秒未満を含む公開日時を比較するため、published_afterは切り上げ、
// published_beforeは切り捨てて、基準時刻の記事自身が一致しないようにする。
func NewPublishedBound(kind BoundKind, publishedAt time.Time) PublishedBound {
	ts := publishedAt.Unix()
	if kind == BoundPublishedAfter && publishedAt.Nanosecond() > 0 {
		ts++
	}
	return PublishedBound{Kind: kind, Timestamp: ts}
}

// EntryFilter はコンテンツ問い合わせAPIに渡す絞り込み条件。
type EntryFilter struct {
	FeedID     int64 // 0の場合は絞り込まない
	CategoryID int64 // 0の場合は絞り込まない
	Statuses   []EntryStatus
	Order      SortOrder
	Direction  SortDirection
	Bound      PublishedBound
	Limit      int
	Offset     int
}

// Validate は絞り込み条件の不変条件を検証する。
func (f EntryFilter) Validate() error {
	if f.FeedID != 0 && f.CategoryID != 0 {
		return fmt.Errorf("feed and category filters are mutually exclusive")
	}
	if f.Limit < 0 || f.Offset < 0 {
		return fmt.Errorf("limit and offset must not be negative")
	}
	if f.Bound.Kind != BoundNone && f.Bound.Timestamp <= 0 {
		return fmt.Errorf("%s requires a positive timestamp", f.Bound.Kind)
	}
	return nil
}
