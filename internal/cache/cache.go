// Package cache はキー単位の有効期限と全件無効化を備えたインメモリキャッシュを提供する。
// フィード一覧・カテゴリ一覧・未読数などの再取得を避けるために使用する。
package cache

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// entry は有効期限付きのキャッシュ値。
type entry[V any] struct {
	value     V
	expiresAt time.Time // ゼロ値の場合は無期限
}

// TTLCache はキー単位またはデフォルトの有効期限を持つキャッシュ。
// 容量を超えた場合は最も古く参照されたキーから追い出される。
// 複数goroutineから安全に利用できる。
type TTLCache[V any] struct {
	// 期限切れの削除と登録を直列化する
	mu         sync.Mutex
	store      *lru.Cache[string, entry[V]]
	defaultTTL time.Duration
	now        func() time.Time // テスト用に差し替え可能
}

// New はTTLCacheの新しいインスタンスを生成する。
// defaultTTLが0以下の場合、Setで登録した値は明示的に削除されるまで保持される。
func New[V any](size int, defaultTTL time.Duration) (*TTLCache[V], error) {
	store, err := lru.New[string, entry[V]](size)
	if err != nil {
		return nil, fmt.Errorf("キャッシュの初期化に失敗しました: %w", err)
	}
	return &TTLCache[V]{
		store:      store,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}, nil
}

// Get はキーに対応する値を返す。期限切れの値は削除し、見つからなかったものとして扱う。
func (c *TTLCache[V]) Get(key string) (V, bool) {
	e, ok := c.store.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	if !e.expired(c.now()) {
		return e.value, true
	}

	// 読み取り後に登録された新しい値は削除しない
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.store.Peek(key); ok && !cur.expired(c.now()) {
		return cur.value, true
	}
	c.store.Remove(key)
	var zero V
	return zero, false
}

func (e entry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Set はデフォルトの有効期限で値を登録する。
func (c *TTLCache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL はキー単位の有効期限で値を登録する。ttlが0以下の場合は無期限。
func (c *TTLCache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	e := entry[V]{value: value}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Add(key, e)
}

// Delete はキーを削除する。
func (c *TTLCache[V]) Delete(key string) {
	c.store.Remove(key)
}

// Clear は全てのキーを無効化する。
func (c *TTLCache[V]) Clear() {
	c.store.Purge()
}

// Len は保持しているキー数を返す。期限切れで未参照のキーも含む。
func (c *TTLCache[V]) Len() int {
	return c.store.Len()
}
