// Package miniflux はセルフホスト型RSSアグリゲータ（Miniflux v1 REST API）のクライアントを提供する。
// 記事一覧の絞り込み問い合わせ、記事詳細、フィード・カテゴリ一覧、未読数、既読更新を扱う。
package miniflux

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hitoshi/fluxreader/internal/model"
)

const (
	// userAgent はAPI呼び出し時のUser-Agent。
	userAgent = "fluxreader/1.0 RSS Reader"
	// maxResponseSize はレスポンスボディの最大サイズ（32MB）。
	maxResponseSize = 32 << 20
)

// StatusRecorder はHTTPステータスの記録先。metrics.Collectorが実装する。
type StatusRecorder interface {
	RecordHTTPStatus(statusCode int)
}

// Client はMiniflux APIのクライアント。
// APIトークン認証を行い、クライアント側でリクエストレートを制限する。
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	recorder   StatusRecorder
	logger     *slog.Logger
	baseURL    string
	token      string
}

// NewHTTPClient は接続タイムアウトと全体タイムアウトを個別に設定したHTTPクライアントを生成する。
// connectTimeoutはTCP接続とTLSハンドシェイクに、requestTimeoutはレスポンス読み取りまでを含む全体に適用される。
func NewHTTPClient(connectTimeout, requestTimeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: connectTimeout,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   requestTimeout,
	}
}

// NewClient はClientの新しいインスタンスを生成する。
// limiterとrecorderはnilを許容する。
func NewClient(
	baseURL, token string,
	httpClient *http.Client,
	limiter *rate.Limiter,
	recorder StatusRecorder,
	logger *slog.Logger,
) *Client {
	return &Client{
		httpClient: httpClient,
		limiter:    limiter,
		recorder:   recorder,
		logger:     logger,
		baseURL:    baseURL,
		token:      token,
	}
}

// Entries は絞り込み条件に一致する記事一覧を1ページ分取得する。
// FeedIDが指定された場合はフィード単位、CategoryIDが指定された場合はカテゴリ単位のエンドポイントを使う。
// 一致する記事がない場合はエラーではなく空のページを返す。
func (c *Client) Entries(ctx context.Context, filter model.EntryFilter) (*model.EntryPage, error) {
	if err := filter.Validate(); err != nil {
		return nil, &RemoteError{Kind: KindRejected, Op: "entries", Err: err}
	}

	path := "/v1/entries"
	switch {
	case filter.FeedID != 0:
		path = fmt.Sprintf("/v1/feeds/%d/entries", filter.FeedID)
	case filter.CategoryID != 0:
		path = fmt.Sprintf("/v1/categories/%d/entries", filter.CategoryID)
	}

	var page model.EntryPage
	if err := c.do(ctx, "entries", http.MethodGet, path, entryQuery(filter), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// entryQuery は絞り込み条件をクエリパラメータに変換する。
func entryQuery(filter model.EntryFilter) url.Values {
	q := url.Values{}
	for _, status := range filter.Statuses {
		q.Add("status", string(status))
	}
	if filter.Order != "" {
		q.Set("order", string(filter.Order))
	}
	if filter.Direction != "" {
		q.Set("direction", string(filter.Direction))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		q.Set("offset", strconv.Itoa(filter.Offset))
	}
	switch filter.Bound.Kind {
	case model.BoundPublishedAfter, model.BoundPublishedBefore:
		q.Set(filter.Bound.Kind.String(), strconv.FormatInt(filter.Bound.Timestamp, 10))
	}
	return q
}

// Entry は記事詳細を取得する。
func (c *Client) Entry(ctx context.Context, entryID int64) (*model.Entry, error) {
	var entry model.Entry
	path := fmt.Sprintf("/v1/entries/%d", entryID)
	if err := c.do(ctx, "entry", http.MethodGet, path, nil, nil, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Feeds はフィード一覧を取得する。
func (c *Client) Feeds(ctx context.Context) ([]*model.Feed, error) {
	var feeds []*model.Feed
	if err := c.do(ctx, "feeds", http.MethodGet, "/v1/feeds", nil, nil, &feeds); err != nil {
		return nil, err
	}
	return feeds, nil
}

// Categories はカテゴリ一覧を取得する。
func (c *Client) Categories(ctx context.Context) ([]*model.Category, error) {
	var categories []*model.Category
	if err := c.do(ctx, "categories", http.MethodGet, "/v1/categories", nil, nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// FeedCounters はフィードごとの既読数・未読数を取得する。
func (c *Client) FeedCounters(ctx context.Context) (*model.FeedCounters, error) {
	var counters model.FeedCounters
	if err := c.do(ctx, "counters", http.MethodGet, "/v1/feeds/counters", nil, nil, &counters); err != nil {
		return nil, err
	}
	return &counters, nil
}

// updateEntriesRequest は既読状態更新リクエストのボディ。
type updateEntriesRequest struct {
	EntryIDs []int64           `json:"entry_ids"`
	Status   model.EntryStatus `json:"status"`
}

// UpdateEntriesStatus は複数記事の既読状態を更新する。
func (c *Client) UpdateEntriesStatus(ctx context.Context, entryIDs []int64, status model.EntryStatus) error {
	if len(entryIDs) == 0 {
		return nil
	}
	body := updateEntriesRequest{EntryIDs: entryIDs, Status: status}
	return c.do(ctx, "update_entries", http.MethodPut, "/v1/entries", nil, body, nil)
}

// Me は認証済みユーザー情報を取得し、接続と認証の疎通を確認する。
func (c *Client) Me(ctx context.Context) error {
	var me struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}
	return c.do(ctx, "me", http.MethodGet, "/v1/me", nil, nil, &me)
}

// do はAPIリクエストを実行し、レスポンスJSONをoutにデコードする。
// 失敗した場合は*RemoteErrorを返す。
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return classifyTransportError(op, err)
		}
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &RemoteError{Kind: KindRejected, Op: op, Err: fmt.Errorf("リクエストボディの生成に失敗しました: %w", err)}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return &RemoteError{Kind: KindRejected, Op: op, Err: fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)}
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Auth-Token", c.token)
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Miniflux APIの呼び出しに失敗しました",
			slog.String("op", op),
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		return classifyTransportError(op, err)
	}
	defer resp.Body.Close()

	if c.recorder != nil {
		c.recorder.RecordHTTPStatus(resp.StatusCode)
	}

	if kind := ClassifyHTTPStatus(resp.StatusCode); kind != "" {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("Miniflux APIがエラーステータスを返しました",
			slog.String("op", op),
			slog.String("request_id", requestID),
			slog.Int("http_status", resp.StatusCode),
		)
		return &RemoteError{
			Kind:       kind,
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", bytes.TrimSpace(msg)),
		}
	}

	c.logger.Debug("Miniflux APIの呼び出しが完了しました",
		slog.String("op", op),
		slog.String("request_id", requestID),
		slog.Int("http_status", resp.StatusCode),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return classifyTransportError(op, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &RemoteError{
			Kind:       KindDecode,
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err),
		}
	}
	return nil
}
