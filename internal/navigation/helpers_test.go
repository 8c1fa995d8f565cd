package navigation

import (
	"bytes"
	"context"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/fluxreader/internal/model"
	"github.com/hitoshi/fluxreader/internal/store"
)

var baseTime = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func newTestStore(t *testing.T) *store.LocalStore {
	t.Helper()
	var buf bytes.Buffer
	s, err := store.New(t.TempDir(), newTestLogger(&buf))
	if err != nil {
		t.Fatalf("store.New がエラーを返した: %v", err)
	}
	return s
}

func newEntry(id, feedID, categoryID int64, published time.Time) *model.Entry {
	return &model.Entry{
		ID:          id,
		FeedID:      feedID,
		Status:      model.EntryStatusUnread,
		Title:       "記事",
		PublishedAt: published,
		Feed:        &model.Feed{ID: feedID, Category: &model.Category{ID: categoryID}},
	}
}

// saveEntry は記事をダウンロード済みとしてローカル保存領域に書き込む。
func saveEntry(t *testing.T, s *store.LocalStore, entry *model.Entry, bc model.BrowsingContext) {
	t.Helper()
	if err := s.WriteMetadata(entry.ID, model.NewEntryMetadata(entry, bc, baseTime)); err != nil {
		t.Fatalf("WriteMetadata(%d): %v", entry.ID, err)
	}
	if err := s.WriteRender(entry.ID, []byte("<html></html>")); err != nil {
		t.Fatalf("WriteRender(%d): %v", entry.ID, err)
	}
}

// saveRenderOnly はメタデータの内容を問わずに描画済みの記事を作成する。
func saveRenderOnly(t *testing.T, s *store.LocalStore, id int64) {
	t.Helper()
	saveEntry(t, s, newEntry(id, 1, 1, baseTime.Add(time.Duration(id)*time.Minute)), model.GlobalContext())
}

// --- モック ---

// mockQuerier は関数フィールドで振る舞いを差し替えるContentQuerier。
type mockQuerier struct {
	mu        sync.Mutex
	entriesFn func(ctx context.Context, filter model.EntryFilter) (*model.EntryPage, error)
	calls     []model.EntryFilter
}

func (m *mockQuerier) Entries(ctx context.Context, filter model.EntryFilter) (*model.EntryPage, error) {
	m.mu.Lock()
	m.calls = append(m.calls, filter)
	m.mu.Unlock()
	return m.entriesFn(ctx, filter)
}

func (m *mockQuerier) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockQuerier) lastCall() model.EntryFilter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[len(m.calls)-1]
}

func failingQuerier(err error) *mockQuerier {
	return &mockQuerier{entriesFn: func(ctx context.Context, filter model.EntryFilter) (*model.EntryPage, error) {
		return nil, err
	}}
}

func emptyQuerier() *mockQuerier {
	return &mockQuerier{entriesFn: func(ctx context.Context, filter model.EntryFilter) (*model.EntryPage, error) {
		return &model.EntryPage{}, nil
	}}
}

// memRemote は絞り込み条件を解釈するインメモリのリモート。
type memRemote struct {
	mu      sync.Mutex
	entries []*model.Entry
	calls   []model.EntryFilter
}

func (m *memRemote) Entries(ctx context.Context, f model.EntryFilter) (*model.EntryPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, f)

	var matched []*model.Entry
	for _, e := range m.entries {
		if f.FeedID != 0 && e.FeedID != f.FeedID {
			continue
		}
		if f.CategoryID != 0 && e.CategoryID() != f.CategoryID {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, e.Status) {
			continue
		}
		// サーバーと同じく秒未満を含む公開日時と秒単位の境界を比較する
		bound := time.Unix(f.Bound.Timestamp, 0)
		switch f.Bound.Kind {
		case model.BoundPublishedAfter:
			if !e.PublishedAt.After(bound) {
				continue
			}
		case model.BoundPublishedBefore:
			if !e.PublishedAt.Before(bound) {
				continue
			}
		}
		matched = append(matched, e)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i].PublishedAt, matched[j].PublishedAt
		if f.Direction == model.SortAscending {
			return a.Before(b)
		}
		return a.After(b)
	})

	total := len(matched)
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return &model.EntryPage{Total: total, Entries: matched}, nil
}

func (m *memRemote) Entry(ctx context.Context, entryID int64) (*model.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == entryID {
			return e, nil
		}
	}
	return nil, model.NewEntryNotFoundError(entryID)
}

// fakeSettings は閲覧設定を差し替え可能なSettingsSource。
type fakeSettings struct {
	mu       sync.Mutex
	settings model.Settings
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{settings: model.DefaultSettings()}
}

func (f *fakeSettings) Current() model.Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settings
}

func (f *fakeSettings) setDirection(d model.SortDirection) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings.Direction = d
}

// fakeProgress は進捗表示の開始と終了を記録する。
type fakeProgress struct {
	messages []string
	finished int
}

func (f *fakeProgress) Begin(message string) func() {
	f.messages = append(f.messages, message)
	return func() { f.finished++ }
}

// fakeRecorder はメトリクスの記録内容を保持する。
type fakeRecorder struct {
	sources   []string
	failures  []string
	exhausted []string
}

func (f *fakeRecorder) RecordNavigation(source string, duration time.Duration) {
	f.sources = append(f.sources, source)
}

func (f *fakeRecorder) RecordRemoteFailure(kind string) {
	f.failures = append(f.failures, kind)
}

func (f *fakeRecorder) RecordExhausted(code string) {
	f.exhausted = append(f.exhausted, code)
}

// storeOpener はダウンロード処理を模してローカル保存領域に書き込むOpener。
type storeOpener struct {
	store       *store.LocalStore
	opened      []int64
	downloaded  []int64
	downloadErr error
}

func (o *storeOpener) OpenLocal(ctx context.Context, entryID int64, bc model.BrowsingContext) (string, error) {
	o.opened = append(o.opened, entryID)
	return o.store.RenderPathOf(entryID), nil
}

func (o *storeOpener) DownloadAndOpen(ctx context.Context, entry *model.Entry, bc model.BrowsingContext) (string, error) {
	if o.downloadErr != nil {
		return "", o.downloadErr
	}
	if err := o.store.WriteMetadata(entry.ID, model.NewEntryMetadata(entry, bc, baseTime)); err != nil {
		return "", err
	}
	if err := o.store.WriteRender(entry.ID, []byte("<html></html>")); err != nil {
		return "", err
	}
	o.downloaded = append(o.downloaded, entry.ID)
	return o.store.RenderPathOf(entry.ID), nil
}
