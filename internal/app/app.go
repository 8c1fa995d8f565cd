// Package app はアプリケーションの初期化、依存関係のワイヤリング、サブコマンドの実行を行う。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/hitoshi/fluxreader/internal/catalog"
	"github.com/hitoshi/fluxreader/internal/config"
	"github.com/hitoshi/fluxreader/internal/download"
	"github.com/hitoshi/fluxreader/internal/handler"
	"github.com/hitoshi/fluxreader/internal/logger"
	"github.com/hitoshi/fluxreader/internal/metrics"
	"github.com/hitoshi/fluxreader/internal/miniflux"
	"github.com/hitoshi/fluxreader/internal/model"
	"github.com/hitoshi/fluxreader/internal/navigation"
	"github.com/hitoshi/fluxreader/internal/security"
	"github.com/hitoshi/fluxreader/internal/store"
	"github.com/hitoshi/fluxreader/internal/worker/cleanup"
)

const (
	// cleanupInterval はserveモードでのクリーンアップジョブの実行間隔。
	cleanupInterval = 24 * time.Hour
	// shutdownTimeout はグレースフルシャットダウンの待ち時間。
	shutdownTimeout = 30 * time.Second
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// ログはwに出力し、LOG_LEVELで出力レベルを切り替える。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再セットアップ
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで実行する。
// argsにはos.Args[1:]を渡す。コマンドの結果はstdoutに、ログと進捗表示はstderrに出力する。
// SIGINTまたはSIGTERMを受信すると実行中の処理をキャンセルする。
func Run(stdout, stderr io.Writer, args []string) error {
	cmd, rest := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		addr := os.Getenv("SERVER_ADDR")
		if addr == "" {
			addr = "127.0.0.1:8080"
		}
		return runHealthcheck(addr)
	}

	cfg, err := Init(stderr)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var progress navigation.Progress
	if _, ok := cmd.Intent(); ok {
		progress = newWriterProgress(stderr)
	}

	c, err := build(cfg, slog.Default(), progress)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Debug("starting application",
		slog.String("command", string(cmd)),
		slog.String("server_url", cfg.ServerURL),
		slog.String("download_dir", cfg.DownloadDir),
	)

	switch cmd {
	case CommandNext, CommandPrevious:
		ref, err := ParseEntryRef(rest)
		if err != nil {
			return err
		}
		intent, _ := cmd.Intent()
		return runNavigate(ctx, c, stdout, ref, intent)
	case CommandDownload:
		ref, err := ParseEntryRef(rest)
		if err != nil {
			return err
		}
		return runDownload(ctx, c, stdout, ref)
	case CommandPrune:
		return runPrune(ctx, c, stdout)
	default:
		return runServe(ctx, c)
	}
}

// components はワイヤリング済みの依存関係をまとめた構造体。
type components struct {
	cfg       *config.Config
	logger    *slog.Logger
	client    *miniflux.Client
	store     *store.LocalStore
	registry  *prometheus.Registry
	collector *metrics.Collector
	opener    *download.Opener
	session   *navigation.Session
	catalog   *catalog.Service
	cleanup   *cleanup.CleanupJob
}

// build は設定から全依存関係を構築する。progressはnilを許容する。
func build(cfg *config.Config, log *slog.Logger, progress navigation.Progress) (*components, error) {
	// 1. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 2. Miniflux APIクライアント
	client := miniflux.NewClient(
		cfg.ServerURL, cfg.APIToken,
		miniflux.NewHTTPClient(cfg.ConnectTimeout, cfg.RequestTimeout),
		rate.NewLimiter(rate.Limit(cfg.APIRateLimit), cfg.APIRateBurst),
		collector, log,
	)

	// 3. ローカル保存領域
	localStore, err := store.New(cfg.DownloadDir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open download directory: %w", err)
	}

	// 4. ダウンロード処理（画像の取得はSSRF対策付きクライアントで行う）
	var images *download.ImageFetcher
	if cfg.DownloadImages {
		guard := security.NewSSRFGuard()
		images = download.NewImageFetcher(guard.NewSafeClient(cfg.ImageTimeout), guard, cfg.ImageMaxSize, log)
	}
	opener := download.NewOpener(localStore, security.NewContentSanitizer(), images, collector, log)

	// 5. ナビゲーション
	settings := config.EnvSettings{}
	engine := navigation.NewEngine(client, localStore, settings, progress, collector, log)
	session := navigation.NewSession(engine, localStore, opener, client, log)

	// 6. 記事一覧
	catalogService, err := catalog.NewService(client, localStore, settings, cfg.CacheSize, cfg.CacheTTL, collector, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog service: %w", err)
	}

	// 7. クリーンアップジョブ
	cleanupJob := cleanup.NewCleanupJob(localStore, collector, log)
	cleanupJob.RetentionDays = cfg.LocalRetentionDays

	return &components{
		cfg:       cfg,
		logger:    log,
		client:    client,
		store:     localStore,
		registry:  registry,
		collector: collector,
		opener:    opener,
		session:   session,
		catalog:   catalogService,
		cleanup:   cleanupJob,
	}, nil
}

// router はローカル閲覧サーバーのルーターを構築する。
func (c *components) router() http.Handler {
	return handler.NewRouter(&handler.RouterDeps{
		Catalog:   c.catalog,
		Navigator: c.session,
		Store:     c.store,
		Gatherer:  c.registry,
		Logger:    c.logger,
	})
}

// runServe はローカル閲覧サーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, c *components) error {
	ln, err := net.Listen("tcp", c.cfg.ServerAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", c.cfg.ServerAddr, err)
	}
	return serve(ctx, c, ln)
}

func serve(ctx context.Context, c *components, ln net.Listener) error {
	// リモートに接続できなくてもダウンロード済み記事は閲覧できるため、起動は継続する
	if err := c.client.Me(ctx); err != nil {
		c.logger.Warn("Minifluxサーバーに接続できません",
			slog.String("server_url", c.cfg.ServerURL),
			slog.String("error", err.Error()),
		)
	}

	server := &http.Server{
		Handler:      c.router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2*c.cfg.RequestTimeout + c.cfg.ImageTimeout,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	// クリーンアップジョブを日次でバックグラウンド実行
	jobCtx, cancelJob := context.WithCancel(ctx)
	defer cancelJob()
	go c.cleanup.Start(jobCtx, cleanupInterval)

	errCh := make(chan error, 1)
	go func() {
		c.logger.Info("reader server starting",
			slog.String("addr", ln.Addr().String()),
		)
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	c.logger.Info("shutting down reader server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	c.logger.Info("reader server stopped gracefully")
	return nil
}

// runNavigate は隣接記事へ移動し、開いた記事ファイルのパスを出力する。
// 移動先は解決できたが開けなかった場合は、記事IDを出力したうえでエラーを返す。
func runNavigate(ctx context.Context, c *components, stdout io.Writer, ref navigation.EntryRef, intent navigation.Intent) error {
	out, err := c.session.Navigate(ctx, ref, intent)
	if err != nil {
		return describeError(err)
	}

	res := out.Resolution
	c.logger.Info("navigated",
		slog.Int64("entry_id", res.EntryID),
		slog.String("source", string(res.Source)),
		slog.String("context", res.Context.String()),
	)

	if out.OpenErr != nil {
		fmt.Fprintf(stdout, "%d\n", res.EntryID)
		return fmt.Errorf("entry %d could not be opened: %w", res.EntryID, describeError(out.OpenErr))
	}
	fmt.Fprintln(stdout, out.Path)
	return nil
}

// runDownload は記事を取得してダウンロードし、記事ファイルのパスを出力する。
// ダウンロード済みの場合は保存済みの閲覧コンテキストを保ったまま上書きする。
func runDownload(ctx context.Context, c *components, stdout io.Writer, ref navigation.EntryRef) error {
	entryID := ref.ID
	if entryID == 0 {
		id, err := c.store.IDOf(ref.Path)
		if err != nil {
			return err
		}
		entryID = id
	}

	entry, err := c.client.Entry(ctx, entryID)
	if err != nil {
		return describeError(err)
	}

	bc := model.GlobalContext()
	if meta, err := c.store.ReadMetadata(entryID); err == nil && meta != nil && meta.BrowsingContext != nil {
		bc = *meta.BrowsingContext
	}

	path, err := c.opener.DownloadAndOpen(ctx, entry, bc)
	if err != nil {
		return describeError(err)
	}
	fmt.Fprintln(stdout, path)
	return nil
}

// runPrune は保持期間を超えたダウンロード済み記事を削除し、削除件数を出力する。
func runPrune(ctx context.Context, c *components, stdout io.Writer) error {
	deleted, err := c.cleanup.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d\n", deleted)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// 起動中のサーバーの /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(addr string) error {
	url := fmt.Sprintf("http://%s/health", addr)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// describeError はAPIErrorの場合にユーザー向けのメッセージと対処方法をエラーに含める。
func describeError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Action != "" {
		return fmt.Errorf("%s: %w", apiErr.Action, err)
	}
	return err
}
