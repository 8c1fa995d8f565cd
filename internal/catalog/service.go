// Package catalog はフィード・カテゴリ・未読数の参照と、記事一覧の取得を提供する。
// フィード一覧などの変化の少ない情報はTTL付きキャッシュで保持し、
// 既読化などリモートの状態を変更した後はキャッシュ全体を無効化する。
// 記事移動（navigation）はこのパッケージを経由しない。
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/fluxreader/internal/cache"
	"github.com/hitoshi/fluxreader/internal/model"
)

// キャッシュキー。
const (
	keyFeeds      = "feeds"
	keyCategories = "categories"
	keyCounters   = "counters"
)

// Remote はアグリゲータへの問い合わせ。miniflux.Clientが実装する。
type Remote interface {
	Entries(ctx context.Context, filter model.EntryFilter) (*model.EntryPage, error)
	Feeds(ctx context.Context) ([]*model.Feed, error)
	Categories(ctx context.Context) ([]*model.Category, error)
	FeedCounters(ctx context.Context) (*model.FeedCounters, error)
	UpdateEntriesStatus(ctx context.Context, entryIDs []int64, status model.EntryStatus) error
}

// LocalLister はダウンロード済み記事の一覧。store.LocalStoreが実装する。
type LocalLister interface {
	OrderedRefs(settings model.Settings) ([]model.LocalEntryRef, error)
}

// SettingsSource は閲覧設定の取得元。
type SettingsSource interface {
	Current() model.Settings
}

// CacheRecorder はキャッシュのヒット率を記録する。metrics.MetricsCollectorが実装する。
type CacheRecorder interface {
	RecordCacheLookup(hit bool)
}

// Scope は記事一覧の範囲。
type Scope string

const (
	// ScopeUnread は全フィードの記事（既読を隠す設定では未読のみ）。
	ScopeUnread Scope = "unread"
	// ScopeFeed は単一フィードの記事。
	ScopeFeed Scope = "feed"
	// ScopeCategory は単一カテゴリの記事。
	ScopeCategory Scope = "category"
	// ScopeLocal はダウンロード済みの記事。
	ScopeLocal Scope = "local"
)

// ParseScope は文字列をScopeに変換する。空文字列はScopeUnreadとして扱う。
func ParseScope(s string) (Scope, error) {
	switch scope := Scope(strings.ToLower(strings.TrimSpace(s))); scope {
	case "":
		return ScopeUnread, nil
	case ScopeUnread, ScopeFeed, ScopeCategory, ScopeLocal:
		return scope, nil
	default:
		return "", model.NewInvalidContextError(fmt.Sprintf("unknown scope: %q", s))
	}
}

// BrowseResult は記事一覧の取得結果。
// Contextは一覧から開いた記事に引き継ぐ閲覧コンテキスト。
type BrowseResult struct {
	Context      model.BrowsingContext
	Total        int
	Entries      []*model.Entry
	LocalEntries []model.LocalEntryRef
}

// Service はフィード・カテゴリ・記事一覧の参照サービス。
type Service struct {
	remote     Remote
	local      LocalLister
	settings   SettingsSource
	feeds      *cache.TTLCache[[]*model.Feed]
	categories *cache.TTLCache[[]*model.Category]
	counters   *cache.TTLCache[*model.FeedCounters]
	recorder   CacheRecorder
	logger     *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
// remoteがnilの場合、リモートへの問い合わせはNO_REMOTE_CLIENTエラーになる。
func NewService(
	remote Remote,
	local LocalLister,
	settings SettingsSource,
	cacheSize int,
	cacheTTL time.Duration,
	recorder CacheRecorder,
	logger *slog.Logger,
) (*Service, error) {
	feeds, err := cache.New[[]*model.Feed](cacheSize, cacheTTL)
	if err != nil {
		return nil, err
	}
	categories, err := cache.New[[]*model.Category](cacheSize, cacheTTL)
	if err != nil {
		return nil, err
	}
	counters, err := cache.New[*model.FeedCounters](cacheSize, cacheTTL)
	if err != nil {
		return nil, err
	}

	return &Service{
		remote:     remote,
		local:      local,
		settings:   settings,
		feeds:      feeds,
		categories: categories,
		counters:   counters,
		recorder:   recorder,
		logger:     logger,
	}, nil
}

// Feeds はフィード一覧を返す。
func (s *Service) Feeds(ctx context.Context) ([]*model.Feed, error) {
	return cached(s, s.feeds, keyFeeds, func() ([]*model.Feed, error) {
		return s.remote.Feeds(ctx)
	})
}

// Categories はカテゴリ一覧を返す。
func (s *Service) Categories(ctx context.Context) ([]*model.Category, error) {
	return cached(s, s.categories, keyCategories, func() ([]*model.Category, error) {
		return s.remote.Categories(ctx)
	})
}

// Counters はフィードごとの未読数・既読数を返す。
func (s *Service) Counters(ctx context.Context) (*model.FeedCounters, error) {
	return cached(s, s.counters, keyCounters, func() (*model.FeedCounters, error) {
		return s.remote.FeedCounters(ctx)
	})
}

// cached はキャッシュにあればその値を返し、なければloadの結果をキャッシュして返す。
// loadが失敗した場合はキャッシュしない。
func cached[V any](s *Service, c *cache.TTLCache[V], key string, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		s.recordLookup(true)
		return v, nil
	}
	s.recordLookup(false)

	var zero V
	if s.remote == nil {
		return zero, model.NewNoRemoteClientError()
	}
	v, err := load()
	if err != nil {
		return zero, fmt.Errorf("failed to load %s: %w", key, err)
	}
	c.Set(key, v)
	return v, nil
}

// Browse は範囲を指定して記事一覧を取得する。
// 並び順と既読記事の扱いは呼び出し時点の閲覧設定に従う。
func (s *Service) Browse(ctx context.Context, scope Scope, scopeID int64) (*BrowseResult, error) {
	settings := s.settings.Current()

	switch scope {
	case ScopeLocal:
		refs, err := s.local.OrderedRefs(settings)
		if err != nil {
			return nil, fmt.Errorf("failed to list local entries: %w", err)
		}
		return &BrowseResult{
			Context:      model.LocalContext(refs),
			Total:        len(refs),
			LocalEntries: refs,
		}, nil
	case ScopeFeed, ScopeCategory:
		if scopeID <= 0 {
			return nil, model.NewInvalidContextError(fmt.Sprintf("%s scope requires a positive id", scope))
		}
	case ScopeUnread:
	default:
		return nil, model.NewInvalidContextError(fmt.Sprintf("unknown scope: %q", scope))
	}

	if s.remote == nil {
		return nil, model.NewNoRemoteClientError()
	}

	filter := model.EntryFilter{
		Statuses:  settings.Statuses(),
		Order:     settings.Order,
		Direction: settings.Direction,
		Limit:     settings.Limit,
	}
	bc := model.GlobalContext()
	switch scope {
	case ScopeFeed:
		filter.FeedID = scopeID
		bc = model.FeedContext(scopeID)
	case ScopeCategory:
		filter.CategoryID = scopeID
		bc = model.CategoryContext(scopeID)
	}

	page, err := s.remote.Entries(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	return &BrowseResult{
		Context: bc,
		Total:   page.Total,
		Entries: page.Entries,
	}, nil
}

// MarkAsRead は記事を既読にし、未読数が変わるためキャッシュを無効化する。
func (s *Service) MarkAsRead(ctx context.Context, entryIDs ...int64) error {
	if len(entryIDs) == 0 {
		return nil
	}
	if s.remote == nil {
		return model.NewNoRemoteClientError()
	}
	if err := s.remote.UpdateEntriesStatus(ctx, entryIDs, model.EntryStatusRead); err != nil {
		return fmt.Errorf("failed to mark entries as read: %w", err)
	}
	s.ClearCache()
	return nil
}

// ClearCache はキャッシュ全体を無効化する。
func (s *Service) ClearCache() {
	s.feeds.Clear()
	s.categories.Clear()
	s.counters.Clear()
	s.logger.Info("キャッシュを無効化しました")
}

func (s *Service) recordLookup(hit bool) {
	if s.recorder != nil {
		s.recorder.RecordCacheLookup(hit)
	}
}
