package navigation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/fluxreader/internal/miniflux"
	"github.com/hitoshi/fluxreader/internal/model"
)

// ContentQuerier はリモートの記事一覧APIを抽象化するインターフェース。
// miniflux.Clientが実装する。
type ContentQuerier interface {
	Entries(ctx context.Context, filter model.EntryFilter) (*model.EntryPage, error)
}

// EntryStore はローカル保存領域を抽象化するインターフェース。
// store.LocalStoreが実装する。
type EntryStore interface {
	IDOf(path string) (int64, error)
	ReadMetadata(entryID int64) (*model.EntryMetadata, error)
	WriteMetadata(entryID int64, meta *model.EntryMetadata) error
	ListDownloadedIDs() ([]int64, error)
	HasCompletedRender(entryID int64) bool
}

// SettingsSource は閲覧設定の読み込み元。呼び出しのたびに最新の値を返すこと。
type SettingsSource interface {
	Current() model.Settings
}

// Progress はリモート問い合わせ中の進捗表示を抽象化する。
// Beginは表示を開始し、表示を終了する関数を返す。
type Progress interface {
	Begin(message string) (done func())
}

// Recorder はナビゲーションのメトリクス記録先。metrics.Collectorが実装する。
type Recorder interface {
	RecordNavigation(source string, duration time.Duration)
	RecordRemoteFailure(kind string)
	RecordExhausted(code string)
}

// Source は隣接記事の解決元を表す。
type Source string

const (
	// SourceRemote はリモートの記事一覧APIで解決した。
	SourceRemote Source = "remote"
	// SourceOffline はリモート失敗後にローカル保存領域の走査で解決した。
	SourceOffline Source = "offline"
	// SourceLocal はローカル閲覧コンテキストの記事列で解決した。
	SourceLocal Source = "local"
)

// EntryRef は現在開いている記事への参照。
// IDが0の場合はPathからIDを特定する。
type EntryRef struct {
	ID   int64
	Path string
}

// Resolution は隣接記事の解決結果。
type Resolution struct {
	EntryID int64
	// Entry はリモートで解決した場合のみ設定される記事本体。
	Entry *model.Entry
	// Context は移動先の記事に引き継ぐ閲覧コンテキスト。
	Context model.BrowsingContext
	Source  Source
}

// Engine はナビゲーションエンジン。
// 閲覧設定は保持せず、解決のたびにSettingsSourceから読み込む。
type Engine struct {
	querier  ContentQuerier
	store    EntryStore
	settings SettingsSource
	progress Progress
	recorder Recorder
	logger   *slog.Logger
}

// NewEngine はEngineの新しいインスタンスを生成する。
// querierがnilの場合、リモートを使う解決はNO_REMOTE_CLIENTで失敗する。
// progressとrecorderはnilを許容する。
func NewEngine(
	querier ContentQuerier,
	store EntryStore,
	settings SettingsSource,
	progress Progress,
	recorder Recorder,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		querier:  querier,
		store:    store,
		settings: settings,
		progress: progress,
		recorder: recorder,
		logger:   logger,
	}
}

// ResolveAdjacent は現在の記事からintent方向に隣接する記事を解決する。
//
// 記事のメタデータから公開日時と保存済みの閲覧コンテキストを読み込み、
// ローカル閲覧コンテキストの場合は記事列のみで解決する。それ以外は
// リモートに1件だけ問い合わせ、失敗または0件の場合はダウンロード済み記事を
// ID順に走査して代替候補を探す。
//
// 呼び出し元がctxをキャンセルした場合、リモート問い合わせの結果は破棄され
// NAVIGATION_CANCELLEDを返す。
func (e *Engine) ResolveAdjacent(ctx context.Context, ref EntryRef, intent Intent) (*Resolution, error) {
	start := time.Now()

	if !intent.Valid() {
		return nil, model.NewInvalidIntentError(intent.String())
	}

	entryID, err := e.identify(ref)
	if err != nil {
		return nil, err
	}
	if e.querier == nil {
		return nil, model.NewNoRemoteClientError()
	}

	meta, err := e.store.ReadMetadata(entryID)
	if err != nil {
		e.logger.Warn("メタデータを読み込めません",
			slog.Int64("entry_id", entryID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewMissingTimestampError(entryID)
	}
	if _, ok := meta.Timestamp(); !ok {
		return nil, model.NewMissingTimestampError(entryID)
	}
	bc := e.savedContext(entryID, meta)

	var res *Resolution
	if bc.Kind == model.ContextLocal {
		res, err = e.resolveLocal(entryID, bc, intent)
	} else {
		res, err = e.resolveRemote(ctx, entryID, meta.PublishedAt, bc, intent)
	}
	if err != nil {
		if model.IsExhausted(err) {
			e.recordExhausted(err)
		}
		return nil, err
	}

	if e.recorder != nil {
		e.recorder.RecordNavigation(string(res.Source), time.Since(start))
	}
	e.logger.Info("隣接記事を解決しました",
		slog.Int64("entry_id", entryID),
		slog.Int64("target_entry_id", res.EntryID),
		slog.String("intent", intent.String()),
		slog.String("context", res.Context.String()),
		slog.String("source", string(res.Source)),
	)
	return res, nil
}

// identify は記事IDを特定する。
func (e *Engine) identify(ref EntryRef) (int64, error) {
	if ref.ID > 0 {
		return ref.ID, nil
	}
	if ref.Path == "" {
		return 0, model.NewMissingIdentityError()
	}
	id, err := e.store.IDOf(ref.Path)
	if err != nil {
		return 0, model.NewMissingIdentityError()
	}
	return id, nil
}

// savedContext はメタデータに保存された閲覧コンテキストを返す。
// 保存されていない場合や不正な場合は全未読記事のコンテキストとして扱う。
func (e *Engine) savedContext(entryID int64, meta *model.EntryMetadata) model.BrowsingContext {
	if meta.BrowsingContext == nil {
		return model.GlobalContext()
	}
	bc := *meta.BrowsingContext
	if err := bc.Validate(); err != nil {
		e.logger.Warn("保存された閲覧コンテキストが不正なため全未読記事として扱います",
			slog.Int64("entry_id", entryID),
			slog.String("error", err.Error()),
		)
		return model.GlobalContext()
	}
	return bc
}

// resolveLocal はローカル閲覧コンテキストの記事列だけで隣接記事を解決する。
// ネットワーク通信は行わない。
func (e *Engine) resolveLocal(entryID int64, bc model.BrowsingContext, intent Intent) (*Resolution, error) {
	target, ok := adjacentInContext(bc, entryID, intent)
	if !ok {
		return nil, model.NewLocalBoundaryError()
	}
	return &Resolution{
		EntryID: target.ID,
		Context: bc,
		Source:  SourceLocal,
	}, nil
}

// BuildFilter は閲覧コンテキストと閲覧設定から隣接記事1件を得る問い合わせ条件を組み立てる。
func BuildFilter(bc model.BrowsingContext, settings model.Settings, publishedAt time.Time, intent Intent) model.EntryFilter {
	step := Resolve(settings.Direction, intent)
	filter := model.EntryFilter{
		Statuses:  settings.Statuses(),
		Order:     settings.Order,
		Direction: step.RemoteDirection,
		Bound:     model.NewPublishedBound(step.Bound, publishedAt),
		Limit:     1,
	}
	switch bc.Kind {
	case model.ContextFeed:
		filter.FeedID = bc.ScopeID
	case model.ContextCategory:
		filter.CategoryID = bc.ScopeID
	}
	return filter
}

// resolveRemote はリモートに問い合わせ、失敗した場合はオフライン走査に切り替える。
func (e *Engine) resolveRemote(ctx context.Context, entryID int64, publishedAt time.Time, bc model.BrowsingContext, intent Intent) (*Resolution, error) {
	filter := BuildFilter(bc, e.settings.Current(), publishedAt, intent)

	done := e.beginProgress(intent)
	page, remoteErr := e.querier.Entries(ctx, filter)
	done()

	if ctx.Err() != nil {
		e.logger.Info("ナビゲーションがキャンセルされました",
			slog.Int64("entry_id", entryID),
			slog.String("intent", intent.String()),
		)
		return nil, model.NewNavigationCancelledError()
	}

	// 現在の記事自身が返された場合は一致なしとして扱う
	if remoteErr == nil && page != nil && len(page.Entries) > 0 && page.Entries[0].ID != entryID {
		target := page.Entries[0]
		return &Resolution{
			EntryID: target.ID,
			Entry:   target,
			Context: bc,
			Source:  SourceRemote,
		}, nil
	}

	failureKind := "empty"
	if remoteErr != nil {
		failureKind = string(miniflux.KindOf(remoteErr))
		if failureKind == "" {
			failureKind = "unknown"
		}
		e.logger.Warn("リモート問い合わせに失敗したためローカルの記事を探します",
			slog.Int64("entry_id", entryID),
			slog.String("intent", intent.String()),
			slog.String("error", remoteErr.Error()),
		)
	}
	if e.recorder != nil {
		e.recorder.RecordRemoteFailure(failureKind)
	}

	targetID, ok, scanErr := e.scanOffline(entryID, intent)
	if scanErr != nil {
		e.logger.Error("ローカル保存領域の走査に失敗しました",
			slog.Int64("entry_id", entryID),
			slog.String("error", scanErr.Error()),
		)
	}
	if ok {
		return &Resolution{
			EntryID: targetID,
			Context: bc,
			Source:  SourceOffline,
		}, nil
	}

	if remoteErr == nil {
		return nil, model.NewEndOfListOnlineError()
	}
	if miniflux.IsUnauthorized(remoteErr) {
		return nil, model.NewEndOfLocalFilesUnauthorizedError(remoteErr.Error())
	}
	return nil, model.NewEndOfLocalFilesError(remoteErr.Error())
}

// scanOffline は描画が完了しているダウンロード済み記事からID順で隣接する記事を探す。
func (e *Engine) scanOffline(entryID int64, intent Intent) (int64, bool, error) {
	ids, err := e.store.ListDownloadedIDs()
	if err != nil {
		return 0, false, fmt.Errorf("ダウンロード済み記事の一覧取得に失敗: %w", err)
	}
	completed := make([]int64, 0, len(ids))
	for _, id := range ids {
		if e.store.HasCompletedRender(id) {
			completed = append(completed, id)
		}
	}
	id, ok := AdjacentLocalID(completed, entryID, intent)
	return id, ok, nil
}

func (e *Engine) beginProgress(intent Intent) func() {
	if e.progress == nil {
		return func() {}
	}
	msg := "次の記事を探しています…"
	if intent == IntentPrevious {
		msg = "前の記事を探しています…"
	}
	return e.progress.Begin(msg)
}

func (e *Engine) recordExhausted(err error) {
	if e.recorder == nil {
		return
	}
	for _, code := range []string{model.ErrCodeNoAdjacentEntry, model.ErrCodeEndOfListOnline, model.ErrCodeEndOfLocalFiles} {
		if model.HasCode(err, code) {
			e.recorder.RecordExhausted(code)
			return
		}
	}
}
