package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/fluxreader/internal/catalog"
	"github.com/hitoshi/fluxreader/internal/middleware"
	"github.com/hitoshi/fluxreader/internal/model"
	"github.com/hitoshi/fluxreader/internal/navigation"
	"github.com/hitoshi/fluxreader/internal/store"
)

// --- モック定義 ---

// mockCatalogService はCatalogServiceInterfaceのモック実装。
type mockCatalogService struct {
	feedsFn      func(ctx context.Context) ([]*model.Feed, error)
	categoriesFn func(ctx context.Context) ([]*model.Category, error)
	countersFn   func(ctx context.Context) (*model.FeedCounters, error)
	browseFn     func(ctx context.Context, scope catalog.Scope, scopeID int64) (*catalog.BrowseResult, error)
	markAsReadFn func(ctx context.Context, entryIDs ...int64) error
	cleared      int
}

func (m *mockCatalogService) Feeds(ctx context.Context) ([]*model.Feed, error) {
	if m.feedsFn != nil {
		return m.feedsFn(ctx)
	}
	return nil, nil
}

func (m *mockCatalogService) Categories(ctx context.Context) ([]*model.Category, error) {
	if m.categoriesFn != nil {
		return m.categoriesFn(ctx)
	}
	return nil, nil
}

func (m *mockCatalogService) Counters(ctx context.Context) (*model.FeedCounters, error) {
	if m.countersFn != nil {
		return m.countersFn(ctx)
	}
	return &model.FeedCounters{}, nil
}

func (m *mockCatalogService) Browse(ctx context.Context, scope catalog.Scope, scopeID int64) (*catalog.BrowseResult, error) {
	if m.browseFn != nil {
		return m.browseFn(ctx, scope, scopeID)
	}
	return &catalog.BrowseResult{Context: model.GlobalContext()}, nil
}

func (m *mockCatalogService) MarkAsRead(ctx context.Context, entryIDs ...int64) error {
	if m.markAsReadFn != nil {
		return m.markAsReadFn(ctx, entryIDs...)
	}
	return nil
}

func (m *mockCatalogService) ClearCache() { m.cleared++ }

// mockNavigator はNavigatorInterfaceのモック実装。
type mockNavigator struct {
	navigateFn func(ctx context.Context, ref navigation.EntryRef, intent navigation.Intent) (*navigation.Outcome, error)
}

func (m *mockNavigator) Navigate(ctx context.Context, ref navigation.EntryRef, intent navigation.Intent) (*navigation.Outcome, error) {
	return m.navigateFn(ctx, ref, intent)
}

// --- ヘルパー ---

type testServer struct {
	router  http.Handler
	catalog *mockCatalogService
	nav     *mockNavigator
	store   *store.LocalStore
	logs    *bytes.Buffer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	s, err := store.New(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}

	ts := &testServer{
		catalog: &mockCatalogService{},
		nav: &mockNavigator{navigateFn: func(ctx context.Context, ref navigation.EntryRef, intent navigation.Intent) (*navigation.Outcome, error) {
			return nil, model.NewEndOfListOnlineError()
		}},
		store: s,
		logs:  &logs,
	}
	ts.router = NewRouter(&RouterDeps{
		Catalog:   ts.catalog,
		Navigator: ts.nav,
		Store:     s,
		Gatherer:  prometheus.NewRegistry(),
		Logger:    logger,
	})
	return ts
}

func (ts *testServer) do(method, target string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, r io.Reader, v any) {
	t.Helper()
	if err := json.NewDecoder(r).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	decodeJSON(t, w.Body, &body)
	return body
}
