package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/fluxreader/internal/metrics"
	"github.com/hitoshi/fluxreader/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Catalog   CatalogServiceInterface
	Navigator NavigatorInterface
	Store     RenderStoreInterface
	Gatherer  prometheus.Gatherer
	Logger    *slog.Logger
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → OriginGuard（/api のみ）
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	catalogHandler := NewCatalogHandler(deps.Catalog, deps.Logger)
	navigationHandler := NewNavigationHandler(deps.Navigator, deps.Logger)
	entryHandler := NewEntryHandler(deps.Store, deps.Logger)

	r.Get("/health", Health)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewOriginGuardMiddleware(deps.Logger))

		r.Get("/feeds", catalogHandler.ListFeeds)
		r.Get("/categories", catalogHandler.ListCategories)
		r.Get("/counters", catalogHandler.GetCounters)
		r.Get("/entries", catalogHandler.ListEntries)
		r.Post("/entries/{id}/navigate", navigationHandler.Navigate)
		r.Put("/entries/{id}/read", catalogHandler.MarkAsRead)
		r.Post("/cache/clear", catalogHandler.ClearCache)
	})

	// 保存済み記事の配信
	r.Get("/entries/{id}", entryHandler.Redirect)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRenderedContentMiddleware())
		r.Get("/entries/{id}/", entryHandler.ServeRender)
		r.Get("/entries/{id}/{name}", entryHandler.ServeAsset)
	})

	return r
}

// Health はプロセスの死活確認に応答する。リモートサーバーへは問い合わせない。
// GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
