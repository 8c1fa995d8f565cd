// Package store はダウンロード済み記事のローカル保存領域を提供する。
// 記事IDごとのディレクトリに、描画済みHTML（entry.html）、メタデータ（metadata.json）、
// ダウンロードした画像を保存する。パスの組み立てと解析はすべてこのパッケージに集約する。
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/fluxreader/internal/model"
)

const (
	// RenderFileName は描画済み記事のファイル名。ダウンロード完了の目印を兼ねる。
	RenderFileName = "entry.html"
	// MetadataFileName はメタデータのファイル名。
	MetadataFileName = "metadata.json"

	dirPerm  = 0o755
	filePerm = 0o644
)

// ErrNotEntryPath はパスが記事ディレクトリ配下を指していない場合に返される。
var ErrNotEntryPath = errors.New("path is not inside an entry directory")

// LocalStore は記事IDをキーとしたローカル保存領域。
// メタデータと描画ファイルは一時ファイルへの書き込みとリネームで置き換え、
// 途中で中断しても壊れたファイルを残さない。
type LocalStore struct {
	root   string
	logger *slog.Logger
}

// New は指定ディレクトリをルートとするLocalStoreを生成する。
// ルートディレクトリが存在しない場合は作成する。
func New(root string, logger *slog.Logger) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("保存先パスの解決に失敗: %w", err)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, fmt.Errorf("保存先ディレクトリの作成に失敗: %w", err)
	}
	return &LocalStore{root: abs, logger: logger}, nil
}

// Root はルートディレクトリの絶対パスを返す。
func (s *LocalStore) Root() string {
	return s.root
}

// DirOf は記事ディレクトリのパスを返す。
func (s *LocalStore) DirOf(entryID int64) string {
	return filepath.Join(s.root, strconv.FormatInt(entryID, 10))
}

// MetadataPathOf はメタデータファイルのパスを返す。
func (s *LocalStore) MetadataPathOf(entryID int64) string {
	return filepath.Join(s.DirOf(entryID), MetadataFileName)
}

// RenderPathOf は描画済み記事ファイルのパスを返す。
func (s *LocalStore) RenderPathOf(entryID int64) string {
	return filepath.Join(s.DirOf(entryID), RenderFileName)
}

// IDOf は保存領域内のパスから記事IDを取り出す。
// 記事ディレクトリ自身とその配下のファイルのどちらも受け付ける。
func (s *LocalStore) IDOf(path string) (int64, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrNotEntryPath, path)
	}
	rel, err := filepath.Rel(s.root, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return 0, fmt.Errorf("%w: %s", ErrNotEntryPath, path)
	}

	first, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	id, err := strconv.ParseInt(first, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrNotEntryPath, path)
	}
	return id, nil
}

// ReadMetadata は記事のメタデータを読み込む。
// メタデータが存在しない場合は(nil, nil)を返す。
func (s *LocalStore) ReadMetadata(entryID int64) (*model.EntryMetadata, error) {
	data, err := os.ReadFile(s.MetadataPathOf(entryID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("メタデータの読み込みに失敗: %w", err)
	}

	var meta model.EntryMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("メタデータのパースに失敗 (entry %d): %w", entryID, err)
	}
	return &meta, nil
}

// WriteMetadata はメタデータを書き込む。記事ディレクトリがなければ作成する。
func (s *LocalStore) WriteMetadata(entryID int64, meta *model.EntryMetadata) error {
	if meta == nil {
		return fmt.Errorf("メタデータがnilです (entry %d)", entryID)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("メタデータのシリアライズに失敗: %w", err)
	}
	return s.writeAtomic(entryID, MetadataFileName, append(data, '\n'))
}

// WriteRender は描画済み記事を書き込む。
// このファイルの存在がダウンロード完了を表すため、画像とメタデータの後に書き込むこと。
func (s *LocalStore) WriteRender(entryID int64, html []byte) error {
	return s.writeAtomic(entryID, RenderFileName, html)
}

// WriteAsset は記事に付随するファイル（画像など）を書き込み、そのパスを返す。
func (s *LocalStore) WriteAsset(entryID int64, name string, data []byte) (string, error) {
	if name == "" || name != filepath.Base(name) || name == RenderFileName || name == MetadataFileName {
		return "", fmt.Errorf("不正なファイル名です: %q", name)
	}
	if err := s.writeAtomic(entryID, name, data); err != nil {
		return "", err
	}
	return filepath.Join(s.DirOf(entryID), name), nil
}

// writeAtomic は一時ファイルに書き込んでからリネームする。
func (s *LocalStore) writeAtomic(entryID int64, name string, data []byte) error {
	dir := s.DirOf(entryID)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("記事ディレクトリの作成に失敗: %w", err)
	}

	file, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("一時ファイルの作成に失敗: %w", err)
	}
	tempPath := file.Name()
	success := false
	defer func() {
		if !success {
			file.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("一時ファイルへの書き込みに失敗: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("一時ファイルの同期に失敗: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("一時ファイルのクローズに失敗: %w", err)
	}
	if err := os.Chmod(tempPath, filePerm); err != nil {
		return fmt.Errorf("パーミッションの設定に失敗: %w", err)
	}

	target := filepath.Join(dir, name)
	if info, err := os.Lstat(target); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("書き込み先がシンボリックリンクです: %s", target)
	}
	if err := os.Rename(tempPath, target); err != nil {
		return fmt.Errorf("ファイルの置き換えに失敗: %w", err)
	}
	success = true
	return nil
}

// HasCompletedRender は描画済み記事ファイルが存在するかどうかを返す。
func (s *LocalStore) HasCompletedRender(entryID int64) bool {
	info, err := os.Stat(s.RenderPathOf(entryID))
	return err == nil && info.Mode().IsRegular()
}

// ListDownloadedIDs は記事IDを名前に持つディレクトリのIDを昇順で返す。
// 描画が完了しているかどうかは判定しない。
func (s *LocalStore) ListDownloadedIDs() ([]int64, error) {
	dirEntries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("保存先ディレクトリの読み込みに失敗: %w", err)
	}

	ids := make([]int64, 0, len(dirEntries))
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		id, err := strconv.ParseInt(de.Name(), 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// CompletedIDs は描画が完了している記事IDを昇順で返す。
func (s *LocalStore) CompletedIDs() ([]int64, error) {
	ids, err := s.ListDownloadedIDs()
	if err != nil {
		return nil, err
	}
	completed := ids[:0]
	for _, id := range ids {
		if s.HasCompletedRender(id) {
			completed = append(completed, id)
		}
	}
	return completed, nil
}

// OrderedRefs は描画済みの記事を閲覧設定の並び順で返す。
// ローカル閲覧コンテキストの記事一覧として使う。
// メタデータを読めない記事は公開日時を持たない記事として並べる。
func (s *LocalStore) OrderedRefs(settings model.Settings) ([]model.LocalEntryRef, error) {
	ids, err := s.CompletedIDs()
	if err != nil {
		return nil, err
	}

	type item struct {
		ref  model.LocalEntryRef
		meta *model.EntryMetadata
	}
	items := make([]item, 0, len(ids))
	for _, id := range ids {
		meta, err := s.ReadMetadata(id)
		if err != nil {
			s.logger.Warn("メタデータを読み込めない記事があります",
				slog.Int64("entry_id", id),
				slog.String("error", err.Error()),
			)
			meta = nil
		}
		ref := model.LocalEntryRef{ID: id}
		if meta != nil {
			ref.PublishedAt = meta.PublishedAt
			ref.Title = meta.Title
		}
		items = append(items, item{ref: ref, meta: meta})
	}

	less := func(a, b item) bool {
		switch settings.Order {
		case model.SortByID:
			return a.ref.ID < b.ref.ID
		case model.SortByCategoryID:
			ca, cb := categoryOf(a.meta), categoryOf(b.meta)
			if ca != cb {
				return ca < cb
			}
		case model.SortByStatus:
			sa, sb := statusOf(a.meta), statusOf(b.meta)
			if sa != sb {
				return sa < sb
			}
		}
		if !a.ref.PublishedAt.Equal(b.ref.PublishedAt) {
			return a.ref.PublishedAt.Before(b.ref.PublishedAt)
		}
		return a.ref.ID < b.ref.ID
	}

	sort.SliceStable(items, func(i, j int) bool {
		if settings.Direction == model.SortDescending {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})

	refs := make([]model.LocalEntryRef, len(items))
	for i, it := range items {
		refs[i] = it.ref
	}
	return refs, nil
}

func categoryOf(meta *model.EntryMetadata) int64 {
	if meta == nil {
		return 0
	}
	return meta.CategoryID
}

func statusOf(meta *model.EntryMetadata) string {
	if meta == nil {
		return ""
	}
	return string(meta.Status)
}

// Delete は記事ディレクトリをメタデータごと削除する。存在しない場合は何もしない。
func (s *LocalStore) Delete(entryID int64) error {
	if err := os.RemoveAll(s.DirOf(entryID)); err != nil {
		return fmt.Errorf("記事ディレクトリの削除に失敗 (entry %d): %w", entryID, err)
	}
	return nil
}

// Prune はcutoffより前にダウンロードされた記事を削除し、削除件数を返す。
// ダウンロード日時はメタデータから取得し、メタデータがない場合はディレクトリの更新日時を使う。
func (s *LocalStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := s.ListDownloadedIDs()
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}

		downloadedAt, ok := s.downloadedAt(id)
		if !ok || !downloadedAt.Before(cutoff) {
			continue
		}
		if err := s.Delete(id); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func (s *LocalStore) downloadedAt(entryID int64) (time.Time, bool) {
	meta, err := s.ReadMetadata(entryID)
	if err == nil && meta != nil && !meta.DownloadedAt.IsZero() {
		return meta.DownloadedAt, true
	}
	info, err := os.Stat(s.DirOf(entryID))
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}
