// Package model はドメインモデルを定義する。
package model

// Feed はアグリゲータに登録されているフィードを表す。
type Feed struct {
	ID       int64     `json:"id"`
	UserID   int64     `json:"user_id"`
	FeedURL  string    `json:"feed_url"`
	SiteURL  string    `json:"site_url"`
	Title    string    `json:"title"`
	Disabled bool      `json:"disabled"`
	Category *Category `json:"category,omitempty"`
}

// CategoryID はフィードが属するカテゴリIDを返す。カテゴリ未設定の場合は0を返す。
func (f *Feed) CategoryID() int64 {
	if f == nil || f.Category == nil {
		return 0
	}
	return f.Category.ID
}

// Category はフィードのカテゴリを表す。
type Category struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"user_id"`
	Title  string `json:"title"`
}

// FeedCounters はフィードごとの既読数・未読数を表す。
// キーはフィードID。
type FeedCounters struct {
	Reads   map[int64]int `json:"reads"`
	Unreads map[int64]int `json:"unreads"`
}

// TotalUnread は全フィードの未読数の合計を返す。
func (c *FeedCounters) TotalUnread() int {
	if c == nil {
		return 0
	}
	total := 0
	for _, n := range c.Unreads {
		total += n
	}
	return total
}
