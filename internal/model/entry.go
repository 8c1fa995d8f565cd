// Package model はドメインモデルを定義する。
package model

import "time"

// EntryStatus は記事の既読状態を表す。
type EntryStatus string

const (
	// EntryStatusUnread は未読の記事。
	EntryStatusUnread EntryStatus = "unread"
	// EntryStatusRead は既読の記事。
	EntryStatusRead EntryStatus = "read"
	// EntryStatusRemoved は削除済みの記事。
	EntryStatusRemoved EntryStatus = "removed"
)

// Entry はアグリゲータから取得した記事を表す。
type Entry struct {
	ID          int64       `json:"id"`
	UserID      int64       `json:"user_id"`
	FeedID      int64       `json:"feed_id"`
	Status      EntryStatus `json:"status"`
	Title       string      `json:"title"`
	URL         string      `json:"url"`
	Content     string      `json:"content"` // 未サニタイズのHTML
	Author      string      `json:"author"`
	PublishedAt time.Time   `json:"published_at"`
	Starred     bool        `json:"starred"`
	ReadingTime int         `json:"reading_time"`
	Feed        *Feed       `json:"feed,omitempty"`
}

// CategoryID は記事が属するカテゴリIDを返す。
func (e *Entry) CategoryID() int64 {
	if e == nil {
		return 0
	}
	return e.Feed.CategoryID()
}

// EntryPage はコンテンツ問い合わせAPIの1ページ分の結果。
type EntryPage struct {
	Total   int      `json:"total"`
	Entries []*Entry `json:"entries"`
}

// EntryMetadata はダウンロード済み記事と同じディレクトリに保存されるメタデータ。
// 記事自身のフィード・カテゴリとは独立に、記事を開いた時点の閲覧コンテキストを保持する。
type EntryMetadata struct {
	EntryID         int64            `json:"id"`
	Title           string           `json:"title"`
	URL             string           `json:"url"`
	Author          string           `json:"author,omitempty"`
	Status          EntryStatus      `json:"status"`
	PublishedAt     time.Time        `json:"published_at"`
	FeedID          int64            `json:"feed_id"`
	FeedTitle       string           `json:"feed_title,omitempty"`
	CategoryID      int64            `json:"category_id,omitempty"`
	BrowsingContext *BrowsingContext `json:"browsing_context,omitempty"`
	DownloadedAt    time.Time        `json:"downloaded_at"`
	ImageCount      int              `json:"image_count"`
}

// Timestamp は比較可能な公開日時（Unix秒）を返す。
// 公開日時が記録されていない場合はfalseを返す。
func (m *EntryMetadata) Timestamp() (int64, bool) {
	if m == nil || m.PublishedAt.IsZero() {
		return 0, false
	}
	return m.PublishedAt.Unix(), true
}

// NewEntryMetadata は記事と閲覧コンテキストからメタデータを生成する。
func NewEntryMetadata(entry *Entry, bc BrowsingContext, downloadedAt time.Time) *EntryMetadata {
	meta := &EntryMetadata{
		EntryID:         entry.ID,
		Title:           entry.Title,
		URL:             entry.URL,
		Author:          entry.Author,
		Status:          entry.Status,
		PublishedAt:     entry.PublishedAt,
		FeedID:          entry.FeedID,
		CategoryID:      entry.CategoryID(),
		BrowsingContext: &bc,
		DownloadedAt:    downloadedAt,
	}
	if entry.Feed != nil {
		meta.FeedTitle = entry.Feed.Title
	}
	return meta
}
