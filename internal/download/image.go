package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// imageUserAgent は画像取得時のUser-Agent。
const imageUserAgent = "fluxreader/1.0 RSS Reader"

// URLValidator はリクエスト前のURL検証のインターフェース。
// security.SSRFGuardが実装する。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// ImageFetcher は記事中の画像を取得する。
type ImageFetcher struct {
	client    *http.Client
	validator URLValidator
	maxSize   int64
	logger    *slog.Logger
}

// NewImageFetcher はImageFetcherの新しいインスタンスを生成する。
// 本番ではsecurity.SSRFGuard.NewSafeClientのクライアントを渡す。
// validatorがnilの場合はリクエスト前のURL検証を行わない。
func NewImageFetcher(client *http.Client, validator URLValidator, maxSize int64, logger *slog.Logger) *ImageFetcher {
	return &ImageFetcher{
		client:    client,
		validator: validator,
		maxSize:   maxSize,
		logger:    logger,
	}
}

// Fetch は画像を取得し、データとMIMEタイプを返す。
// 画像以外のContent-Typeやサイズ超過はエラーとする。
func (f *ImageFetcher) Fetch(ctx context.Context, imageURL string) ([]byte, string, error) {
	if f.validator != nil {
		if err := f.validator.ValidateURL(imageURL); err != nil {
			return nil, "", fmt.Errorf("blocked image URL: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", imageUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("image request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	mimeType := extractMimeType(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, "", fmt.Errorf("not an image: %q", mimeType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(body)) > f.maxSize {
		return nil, "", fmt.Errorf("image exceeds %d bytes", f.maxSize)
	}

	return body, mimeType, nil
}

// extractMimeType はContent-Typeヘッダーからメディアタイプを抽出する。
func extractMimeType(contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.TrimSpace(strings.ToLower(mediaType))
}

// imageExtensions はMIMEタイプと保存時の拡張子の対応。
var imageExtensions = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/avif":    ".avif",
	"image/svg+xml": ".svg",
	"image/bmp":     ".bmp",
	"image/x-icon":  ".ico",
}

func extensionFor(mimeType string) string {
	if ext, ok := imageExtensions[mimeType]; ok {
		return ext
	}
	return ".img"
}
