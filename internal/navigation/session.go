package navigation

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/fluxreader/internal/model"
)

// Opener は解決した記事を開く処理を抽象化するインターフェース。
// download.Openerが実装する。戻り値は開いた記事ファイルのパス。
type Opener interface {
	OpenLocal(ctx context.Context, entryID int64, bc model.BrowsingContext) (string, error)
	DownloadAndOpen(ctx context.Context, entry *model.Entry, bc model.BrowsingContext) (string, error)
}

// EntryFetcher は記事本体をリモートから取得する。miniflux.Clientが実装する。
type EntryFetcher interface {
	Entry(ctx context.Context, entryID int64) (*model.Entry, error)
}

// Outcome はNavigateの結果。
// 解決に成功していれば、記事を開けなかった場合でもResolutionは設定される。
type Outcome struct {
	Resolution *Resolution
	// Path は開いた記事ファイルのパス。開けなかった場合は空。
	Path string
	// OpenErr は記事を開く処理で発生したエラー。ナビゲーションの解決自体は取り消さない。
	OpenErr error
}

// Session は1つの閲覧セッションにおける記事移動を管理する。
// 同時に処理する記事移動は1つだけで、処理中に要求された移動はNAVIGATION_IN_FLIGHTで拒否する。
type Session struct {
	id       string
	engine   *Engine
	store    EntryStore
	opener   Opener
	fetcher  EntryFetcher
	logger   *slog.Logger
	inFlight atomic.Bool
}

// NewSession はSessionの新しいインスタンスを生成する。
// fetcherがnilの場合、ID以外の情報を持たない記事はダウンロードできない。
func NewSession(engine *Engine, store EntryStore, opener Opener, fetcher EntryFetcher, logger *slog.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		id:      id,
		engine:  engine,
		store:   store,
		opener:  opener,
		fetcher: fetcher,
		logger:  logger.With(slog.String("session_id", id)),
	}
}

// ID はセッションIDを返す。
func (s *Session) ID() string {
	return s.id
}

// Navigate は隣接記事を解決し、閲覧コンテキストを引き継いで開く。
//
// 移動先がダウンロード済みであれば、そのメタデータの閲覧コンテキストを上書きしてから
// ローカルのファイルを開く。ダウンロードされていなければ、閲覧コンテキストを渡して
// ダウンロードして開く。これらの失敗はOutcome.OpenErrで報告し、エラーとしては返さない。
func (s *Session) Navigate(ctx context.Context, ref EntryRef, intent Intent) (*Outcome, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Info("記事移動の処理中に新しい要求を受けたため無視しました",
			slog.Int64("entry_id", ref.ID),
			slog.String("intent", intent.String()),
		)
		return nil, model.NewNavigationInFlightError()
	}
	defer s.inFlight.Store(false)

	res, err := s.engine.ResolveAdjacent(ctx, ref, intent)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{Resolution: res}
	outcome.Path, outcome.OpenErr = s.open(ctx, res)
	if outcome.OpenErr != nil {
		s.logger.Warn("移動先の記事を開けませんでした",
			slog.Int64("entry_id", res.EntryID),
			slog.String("error", outcome.OpenErr.Error()),
		)
	}
	return outcome, nil
}

// open は解決結果の閲覧コンテキストを移動先の記事に引き継いで開く。
func (s *Session) open(ctx context.Context, res *Resolution) (string, error) {
	if s.store.HasCompletedRender(res.EntryID) {
		var writeErr error
		if err := s.propagateContext(res); err != nil {
			writeErr = model.NewMetadataWriteFailedError(res.EntryID, err.Error())
		}
		path, err := s.opener.OpenLocal(ctx, res.EntryID, res.Context)
		if err != nil {
			return "", err
		}
		return path, writeErr
	}

	entry := res.Entry
	if entry == nil {
		if s.fetcher == nil {
			return "", model.NewDownloadFailedError(res.EntryID, "no remote client")
		}
		fetched, err := s.fetcher.Entry(ctx, res.EntryID)
		if err != nil {
			return "", model.NewDownloadFailedError(res.EntryID, err.Error())
		}
		entry = fetched
	}
	return s.opener.DownloadAndOpen(ctx, entry, res.Context)
}

// propagateContext はダウンロード済みの移動先の記事のメタデータに閲覧コンテキストを書き込む。
// メタデータが読めない場合は解決結果から作り直す。
func (s *Session) propagateContext(res *Resolution) error {
	meta, err := s.store.ReadMetadata(res.EntryID)
	if err != nil {
		s.logger.Warn("移動先のメタデータが読めないため作り直します",
			slog.Int64("entry_id", res.EntryID),
			slog.String("error", err.Error()),
		)
		meta = nil
	}
	if meta == nil {
		if res.Entry != nil {
			meta = model.NewEntryMetadata(res.Entry, res.Context, time.Now())
		} else {
			meta = &model.EntryMetadata{EntryID: res.EntryID, DownloadedAt: time.Now()}
		}
	}

	bc := res.Context
	meta.BrowsingContext = &bc
	return s.store.WriteMetadata(res.EntryID, meta)
}
