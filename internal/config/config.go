package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/fluxreader/internal/model"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
// 並び順などの閲覧設定はConfigに含めず、EnvSettingsで都度読み込む。
type Config struct {
	// Miniflux
	ServerURL string
	APIToken  string

	// HTTP
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	APIRateLimit   float64
	APIRateBurst   int

	// Cache
	CacheTTL  time.Duration
	CacheSize int

	// Local store
	DownloadDir        string
	DownloadImages     bool
	ImageTimeout       time.Duration
	ImageMaxSize       int64
	LocalRetentionDays int

	// Server
	ServerAddr string

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.ServerURL = strings.TrimRight(os.Getenv("MINIFLUX_URL"), "/")
	if cfg.ServerURL == "" {
		missing = append(missing, "MINIFLUX_URL")
	}

	cfg.APIToken = os.Getenv("MINIFLUX_API_TOKEN")
	if cfg.APIToken == "" {
		missing = append(missing, "MINIFLUX_API_TOKEN")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.ConnectTimeout = getEnvDuration("CONNECT_TIMEOUT", 5*time.Second)
	cfg.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", 15*time.Second)
	cfg.APIRateLimit = getEnvFloat("API_RATE_LIMIT", 5)
	cfg.APIRateBurst = getEnvInt("API_RATE_BURST", 5)
	cfg.CacheTTL = getEnvDuration("CACHE_TTL", 5*time.Minute)
	cfg.CacheSize = getEnvInt("CACHE_SIZE", 256)
	cfg.DownloadDir = getEnvString("DOWNLOAD_DIR", "miniflux")
	cfg.DownloadImages = getEnvBool("DOWNLOAD_IMAGES", true)
	cfg.ImageTimeout = getEnvDuration("IMAGE_TIMEOUT", 10*time.Second)
	cfg.ImageMaxSize = getEnvInt64("IMAGE_MAX_SIZE", 5242880)
	cfg.LocalRetentionDays = getEnvInt("LOCAL_RETENTION_DAYS", 30)
	cfg.ServerAddr = getEnvString("SERVER_ADDR", "127.0.0.1:8080")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	if cfg.ConnectTimeout > cfg.RequestTimeout {
		return nil, fmt.Errorf("CONNECT_TIMEOUT (%s) must not exceed REQUEST_TIMEOUT (%s)", cfg.ConnectTimeout, cfg.RequestTimeout)
	}

	return cfg, nil
}

// EnvSettings は閲覧設定を環境変数から読み込む。
// Currentは呼び出しのたびに環境変数を読み直し、値をキャッシュしない。
type EnvSettings struct{}

// Current は現在の閲覧設定を返す。不正な値はデフォルト値に置き換える。
func (EnvSettings) Current() model.Settings {
	def := model.DefaultSettings()

	s := model.Settings{
		Order:           model.SortOrder(getEnvString("SORT_ORDER", string(def.Order))),
		Direction:       model.SortDirection(strings.ToLower(getEnvString("SORT_DIRECTION", string(def.Direction)))),
		HideReadEntries: getEnvBool("HIDE_READ_ENTRIES", def.HideReadEntries),
		Limit:           getEnvInt("ENTRY_LIMIT", def.Limit),
	}

	switch s.Order {
	case model.SortByPublishedAt, model.SortByID, model.SortByStatus,
		model.SortByCategoryTitle, model.SortByCategoryID:
	default:
		s.Order = def.Order
	}
	if s.Direction != model.SortAscending && s.Direction != model.SortDescending {
		s.Direction = def.Direction
	}
	if s.Limit <= 0 {
		s.Limit = def.Limit
	}

	return s
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
