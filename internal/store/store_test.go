package store

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hitoshi/fluxreader/internal/model"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	s, err := New(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("New がエラーを返した: %v", err)
	}
	return s
}

// writeEntry はメタデータと描画ファイルを持つ完了済みの記事を作成する。
func writeEntry(t *testing.T, s *LocalStore, id int64, published time.Time) {
	t.Helper()
	meta := &model.EntryMetadata{EntryID: id, PublishedAt: published, DownloadedAt: published}
	if err := s.WriteMetadata(id, meta); err != nil {
		t.Fatalf("WriteMetadata(%d): %v", id, err)
	}
	if err := s.WriteRender(id, []byte("<html></html>")); err != nil {
		t.Fatalf("WriteRender(%d): %v", id, err)
	}
}

// --- パス ---

func TestLocalStore_Paths(t *testing.T) {
	s := newTestStore(t)

	if got := s.DirOf(42); got != filepath.Join(s.Root(), "42") {
		t.Errorf("DirOf(42) = %s", got)
	}
	if got := s.MetadataPathOf(42); filepath.Base(got) != MetadataFileName {
		t.Errorf("MetadataPathOf(42) = %s", got)
	}
	if got := s.RenderPathOf(42); filepath.Base(got) != RenderFileName {
		t.Errorf("RenderPathOf(42) = %s", got)
	}
}

func TestLocalStore_IDOf(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name    string
		path    string
		want    int64
		wantErr bool
	}{
		{"render file", s.RenderPathOf(42), 42, false},
		{"entry dir", s.DirOf(7), 7, false},
		{"asset", filepath.Join(s.DirOf(9), "img-1.png"), 9, false},
		{"root itself", s.Root(), 0, true},
		{"outside root", filepath.Join(filepath.Dir(s.Root()), "42", RenderFileName), 0, true},
		{"non numeric", filepath.Join(s.Root(), "notes", RenderFileName), 0, true},
		{"zero id", filepath.Join(s.Root(), "0", RenderFileName), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.IDOf(tt.path)
			if tt.wantErr {
				if !errors.Is(err, ErrNotEntryPath) {
					t.Errorf("IDOf(%s) error = %v, want ErrNotEntryPath", tt.path, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("IDOf(%s) がエラーを返した: %v", tt.path, err)
			}
			if got != tt.want {
				t.Errorf("IDOf(%s) = %d, want %d", tt.path, got, tt.want)
			}
		})
	}
}

// --- メタデータ ---

func TestLocalStore_ReadMetadata_Absent(t *testing.T) {
	s := newTestStore(t)

	meta, err := s.ReadMetadata(1)
	if err != nil {
		t.Fatalf("ReadMetadata がエラーを返した: %v", err)
	}
	if meta != nil {
		t.Errorf("meta = %+v, want nil", meta)
	}
}

func TestLocalStore_WriteMetadata_ThenRead(t *testing.T) {
	s := newTestStore(t)
	published := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	bc := model.CategoryContext(3)
	meta := &model.EntryMetadata{EntryID: 5, Title: "記事", PublishedAt: published, BrowsingContext: &bc}
	if err := s.WriteMetadata(5, meta); err != nil {
		t.Fatalf("WriteMetadata がエラーを返した: %v", err)
	}

	got, err := s.ReadMetadata(5)
	if err != nil {
		t.Fatalf("ReadMetadata がエラーを返した: %v", err)
	}
	if got.Title != "記事" || !got.PublishedAt.Equal(published) {
		t.Errorf("meta = %+v", got)
	}
	if got.BrowsingContext == nil || got.BrowsingContext.Kind != model.ContextCategory || got.BrowsingContext.ScopeID != 3 {
		t.Errorf("BrowsingContext = %+v, want category 3", got.BrowsingContext)
	}
}

func TestLocalStore_ReadMetadata_Corrupted(t *testing.T) {
	s := newTestStore(t)
	if err := os.MkdirAll(s.DirOf(3), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.MetadataPathOf(3), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := s.ReadMetadata(3); err == nil {
		t.Error("壊れたメタデータでエラーにならなかった")
	}
}

// TestLocalStore_WriteMetadata_LeavesNoTempFiles は置き換え後に一時ファイルが残らないことを検証する。
func TestLocalStore_WriteMetadata_LeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		if err := s.WriteMetadata(8, &model.EntryMetadata{EntryID: 8}); err != nil {
			t.Fatalf("WriteMetadata がエラーを返した: %v", err)
		}
	}

	entries, err := os.ReadDir(s.DirOf(8))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != MetadataFileName {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("ディレクトリ内容 = %v, want [%s]", names, MetadataFileName)
	}
}

func TestLocalStore_WriteAsset_RejectsReservedNames(t *testing.T) {
	s := newTestStore(t)

	for _, name := range []string{"", RenderFileName, MetadataFileName, "../escape.png", "a/b.png"} {
		if _, err := s.WriteAsset(1, name, []byte("x")); err == nil {
			t.Errorf("WriteAsset(%q) はエラーを返すべき", name)
		}
	}

	path, err := s.WriteAsset(1, "img-1.png", []byte("png"))
	if err != nil {
		t.Fatalf("WriteAsset がエラーを返した: %v", err)
	}
	if filepath.Dir(path) != s.DirOf(1) {
		t.Errorf("path = %s, want inside %s", path, s.DirOf(1))
	}
}

// --- 一覧 ---

func TestLocalStore_ListDownloadedIDs_SortedAndFiltered(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []int64{12, 5, 9} {
		writeEntry(t, s, id, time.Now())
	}
	// 数値でないディレクトリとファイルは無視される
	os.MkdirAll(filepath.Join(s.Root(), "tmp"), 0o755)
	os.WriteFile(filepath.Join(s.Root(), "7"), []byte("file"), 0o644)

	ids, err := s.ListDownloadedIDs()
	if err != nil {
		t.Fatalf("ListDownloadedIDs がエラーを返した: %v", err)
	}
	want := []int64{5, 9, 12}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %d, want %d", i, ids[i], want[i])
		}
	}
}

// TestLocalStore_CompletedIDs_ExcludesPartialDownloads は描画ファイルのない記事を除外することを検証する。
func TestLocalStore_CompletedIDs_ExcludesPartialDownloads(t *testing.T) {
	s := newTestStore(t)
	writeEntry(t, s, 5, time.Now())
	if err := s.WriteMetadata(6, &model.EntryMetadata{EntryID: 6}); err != nil {
		t.Fatal(err)
	}

	if s.HasCompletedRender(6) {
		t.Error("HasCompletedRender(6) = true, want false")
	}
	ids, err := s.CompletedIDs()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != 5 {
		t.Errorf("CompletedIDs = %v, want [5]", ids)
	}
}

func TestLocalStore_OrderedRefs(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	writeEntry(t, s, 1, base.Add(2*time.Hour))
	writeEntry(t, s, 2, base)
	writeEntry(t, s, 3, base.Add(time.Hour))

	desc := model.DefaultSettings()
	refs, err := s.OrderedRefs(desc)
	if err != nil {
		t.Fatalf("OrderedRefs がエラーを返した: %v", err)
	}
	assertOrder(t, refs, 1, 3, 2)

	asc := desc
	asc.Direction = model.SortAscending
	refs, _ = s.OrderedRefs(asc)
	assertOrder(t, refs, 2, 3, 1)

	byID := asc
	byID.Order = model.SortByID
	refs, _ = s.OrderedRefs(byID)
	assertOrder(t, refs, 1, 2, 3)
}

func assertOrder(t *testing.T, refs []model.LocalEntryRef, want ...int64) {
	t.Helper()
	if len(refs) != len(want) {
		t.Fatalf("refs = %d, want %d", len(refs), len(want))
	}
	for i, id := range want {
		if refs[i].ID != id {
			t.Errorf("refs[%d].ID = %d, want %d", i, refs[i].ID, id)
		}
	}
}

// --- 削除 ---

func TestLocalStore_Prune(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	writeEntry(t, s, 1, now.AddDate(0, 0, -40))
	writeEntry(t, s, 2, now.AddDate(0, 0, -10))

	deleted, err := s.Prune(context.Background(), now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("Prune がエラーを返した: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if _, err := os.Stat(s.DirOf(1)); !os.IsNotExist(err) {
		t.Error("古い記事のディレクトリが残っている")
	}
	if !s.HasCompletedRender(2) {
		t.Error("新しい記事が削除された")
	}
}

func TestLocalStore_Delete_Missing(t *testing.T) {
	s := newTestStore(t)
	if err := s.Delete(999); err != nil {
		t.Errorf("存在しない記事の削除でエラー: %v", err)
	}
}
