// Package download は記事をローカル保存領域に保存し、開く処理を提供する。
//
// DownloadAndOpen は記事本文をサニタイズし、必要に応じて画像を取得して
// ローカルのファイルに置き換えたうえで、メタデータ、最後にHTMLの順で書き込む。
// HTMLが存在しないディレクトリはダウンロード途中のものとして扱われる。
package download

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/fluxreader/internal/model"
	"github.com/hitoshi/fluxreader/internal/security"
)

// EntryStore はOpenerが使うローカル保存領域の操作。store.LocalStoreが実装する。
type EntryStore interface {
	RenderPathOf(entryID int64) string
	HasCompletedRender(entryID int64) bool
	WriteMetadata(entryID int64, meta *model.EntryMetadata) error
	WriteRender(entryID int64, html []byte) error
	WriteAsset(entryID int64, name string, data []byte) (string, error)
}

// Recorder はダウンロード結果のメトリクスを記録する。metrics.MetricsCollectorが実装する。
type Recorder interface {
	RecordDownload(success bool)
	RecordImagesDownloaded(count int)
}

// Opener は解決済みの記事を開く。
type Opener struct {
	store     EntryStore
	sanitizer security.Sanitizer
	images    *ImageFetcher
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewOpener はOpenerの新しいインスタンスを生成する。
// imagesがnilの場合は画像を取得せず、元のURLのまま保存する。
// recorderはnilでもよい。
func NewOpener(store EntryStore, sanitizer security.Sanitizer, images *ImageFetcher, recorder Recorder, logger *slog.Logger) *Opener {
	return &Opener{
		store:     store,
		sanitizer: sanitizer,
		images:    images,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
	}
}

// OpenLocal はダウンロード済みの記事のHTMLファイルのパスを返す。
// 閲覧コンテキストの保存は呼び出し側（navigation.Session）が行う。
func (o *Opener) OpenLocal(ctx context.Context, entryID int64, bc model.BrowsingContext) (string, error) {
	if !o.store.HasCompletedRender(entryID) {
		return "", model.NewEntryNotFoundError(entryID)
	}
	o.logger.Debug("ローカルの記事を開きます",
		slog.Int64("entry_id", entryID),
		slog.String("context", bc.String()),
	)
	return o.store.RenderPathOf(entryID), nil
}

// DownloadAndOpen は記事をダウンロードして保存し、HTMLファイルのパスを返す。
// メタデータには渡された閲覧コンテキストを保存する。
func (o *Opener) DownloadAndOpen(ctx context.Context, entry *model.Entry, bc model.BrowsingContext) (string, error) {
	if entry == nil || entry.ID <= 0 {
		return "", model.NewDownloadFailedError(0, "entry payload is missing")
	}

	path, images, err := o.download(ctx, entry, bc)
	o.recordDownload(err == nil, images)
	if err != nil {
		o.logger.Error("記事のダウンロードに失敗しました",
			slog.Int64("entry_id", entry.ID),
			slog.String("error", err.Error()),
		)
		return "", model.NewDownloadFailedError(entry.ID, err.Error())
	}

	o.logger.Info("記事をダウンロードしました",
		slog.Int64("entry_id", entry.ID),
		slog.Int("images", images),
		slog.String("context", bc.String()),
	)
	return path, nil
}

func (o *Opener) download(ctx context.Context, entry *model.Entry, bc model.BrowsingContext) (string, int, error) {
	content := o.sanitizer.Sanitize(entry.Content)

	images := 0
	if o.images != nil {
		content, images = o.localizeImages(ctx, entry.ID, content)
	}

	if err := ctx.Err(); err != nil {
		return "", images, err
	}

	meta := model.NewEntryMetadata(entry, bc, o.now())
	meta.ImageCount = images
	if err := o.store.WriteMetadata(entry.ID, meta); err != nil {
		return "", images, fmt.Errorf("failed to write metadata: %w", err)
	}

	page, err := renderPage(entry, content)
	if err != nil {
		return "", images, err
	}
	if err := o.store.WriteRender(entry.ID, page); err != nil {
		return "", images, fmt.Errorf("failed to write render: %w", err)
	}

	return o.store.RenderPathOf(entry.ID), images, nil
}

// localizeImages は画像を取得してローカル保存し、srcをローカルのファイル名に置き換える。
// 取得に失敗した画像は元のURLのまま残す。
func (o *Opener) localizeImages(ctx context.Context, entryID int64, content string) (string, int) {
	locals := make(map[string]string)

	for i, src := range imageSources(content) {
		if ctx.Err() != nil {
			break
		}
		data, mimeType, err := o.images.Fetch(ctx, src)
		if err != nil {
			o.logger.Warn("画像の取得に失敗しました",
				slog.Int64("entry_id", entryID),
				slog.String("url", src),
				slog.String("error", err.Error()),
			)
			continue
		}

		name := fmt.Sprintf("image-%03d%s", i+1, extensionFor(mimeType))
		if _, err := o.store.WriteAsset(entryID, name, data); err != nil {
			o.logger.Warn("画像の保存に失敗しました",
				slog.Int64("entry_id", entryID),
				slog.String("url", src),
				slog.String("error", err.Error()),
			)
			continue
		}
		locals[src] = name
	}

	rewritten := rewriteImages(content, func(src string) (string, bool) {
		name, ok := locals[src]
		return name, ok
	})
	return rewritten, len(locals)
}

func (o *Opener) recordDownload(success bool, images int) {
	if o.recorder == nil {
		return
	}
	o.recorder.RecordDownload(success)
	if images > 0 {
		o.recorder.RecordImagesDownloaded(images)
	}
}
