package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"menu-recommender/internal/infrastructure/config"
	"menu-recommender/internal/pkg/common"

	"go.uber.org/zap"
)

// CacheManager 擷取結果快取，鍵為輸入內容的 SHA-256
// 未啟用時 NewManager 回傳 nil，nil 上的方法皆為 no-op
type CacheManager struct {
	maxSize int
	ttl     time.Duration
	now     func() time.Time

	mu     sync.Mutex
	store  map[string]cacheEntry
	stats  cacheStats
	shared *SharedStore
	done   chan struct{}
	once   sync.Once
}

type cacheEntry struct {
	value       []byte
	expiresAt   time.Time
	lastAccess  time.Time
	accessCount int
}

type cacheStats struct {
	hits       int64
	misses     int64
	evictions  int64
	sharedHits int64
}

// NewManager 創建新的緩存管理器
func NewManager(cfg config.CacheConfig) *CacheManager {
	if !cfg.Enabled {
		common.LogInfo("Cache disabled")
		return nil
	}

	m := newManager(cfg.MaxSize, cfg.TTL, time.Now)
	go m.startCleanup(cfg.CleanupInterval)

	common.LogInfo("快取管理員已初始化",
		zap.Int("最大容量", cfg.MaxSize),
		zap.Duration("存活時間", cfg.TTL),
		zap.Duration("清理間隔", cfg.CleanupInterval),
	)
	return m
}

func newManager(maxSize int, ttl time.Duration, now func() time.Time) *CacheManager {
	return &CacheManager{
		maxSize: maxSize,
		ttl:     ttl,
		now:     now,
		store:   make(map[string]cacheEntry),
		done:    make(chan struct{}),
	}
}

// WithShared 掛上跨實例共用的快取層
func (m *CacheManager) WithShared(s *SharedStore) *CacheManager {
	if m != nil {
		m.shared = s
	}
	return m
}

// Key 由多段輸入產生快取鍵
func Key(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get 獲取緩存值，本機未命中時再查共用層
func (m *CacheManager) Get(key string) ([]byte, bool) {
	if m == nil {
		return nil, false
	}
	if value, ok := m.getLocal(key); ok {
		return value, true
	}
	value, ok := m.shared.Get(key)
	if !ok {
		return nil, false
	}
	m.setLocal(key, value)
	m.mu.Lock()
	m.stats.sharedHits++
	m.mu.Unlock()
	return value, true
}

func (m *CacheManager) getLocal(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.store[key]
	if !ok {
		m.stats.misses++
		return nil, false
	}
	now := m.now()
	if now.After(entry.expiresAt) {
		delete(m.store, key)
		m.stats.evictions++
		m.stats.misses++
		return nil, false
	}

	entry.lastAccess = now
	entry.accessCount++
	m.store[key] = entry
	m.stats.hits++
	common.LogDebug("快取命中", zap.Int("access_count", entry.accessCount))
	return entry.value, true
}

// Set 設置緩存值並寫入共用層
func (m *CacheManager) Set(key string, value []byte) {
	if m == nil {
		return
	}
	m.setLocal(key, value)
	m.shared.Set(key, value)
}

// setLocal 容量已滿時先清過期項目再做 LRU 淘汰
func (m *CacheManager) setLocal(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.store[key]; !exists && len(m.store) >= m.maxSize {
		m.cleanupLocked()
		for len(m.store) > 0 && len(m.store) >= m.maxSize {
			m.evictLRULocked()
		}
	}

	now := m.now()
	m.store[key] = cacheEntry{
		value:      value,
		expiresAt:  now.Add(m.ttl),
		lastAccess: now,
	}
}

func (m *CacheManager) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			count := m.cleanupLocked()
			m.mu.Unlock()
			if count > 0 {
				common.LogDebug("Cleaned up expired cache entries", zap.Int("count", count))
			}
		case <-m.done:
			return
		}
	}
}

func (m *CacheManager) cleanupLocked() int {
	now := m.now()
	count := 0
	for key, entry := range m.store {
		if now.After(entry.expiresAt) {
			delete(m.store, key)
			count++
			m.stats.evictions++
		}
	}
	return count
}

// evictLRULocked 淘汰存取次數最少、最久未存取的項目
func (m *CacheManager) evictLRULocked() {
	var oldestKey string
	var oldestAccess time.Time
	var lowestAccessCount int

	for key, entry := range m.store {
		if oldestKey == "" ||
			entry.accessCount < lowestAccessCount ||
			(entry.accessCount == lowestAccessCount && entry.lastAccess.Before(oldestAccess)) {
			oldestKey = key
			oldestAccess = entry.lastAccess
			lowestAccessCount = entry.accessCount
		}
	}
	if oldestKey != "" {
		delete(m.store, oldestKey)
		m.stats.evictions++
	}
}

// GetStats 獲取緩存統計信息
func (m *CacheManager) GetStats() map[string]interface{} {
	if m == nil {
		return map[string]interface{}{"enabled": false}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ratio := 0.0
	if total := m.stats.hits + m.stats.misses; total > 0 {
		ratio = float64(m.stats.hits) / float64(total)
	}
	return map[string]interface{}{
		"enabled":     true,
		"size":        len(m.store),
		"max_size":    m.maxSize,
		"hits":        m.stats.hits,
		"misses":      m.stats.misses,
		"evictions":   m.stats.evictions,
		"hit_ratio":   ratio,
		"shared":      m.shared != nil,
		"shared_hits": m.stats.sharedHits,
	}
}

// Close 關閉緩存管理器
func (m *CacheManager) Close() error {
	if m == nil {
		return nil
	}
	m.once.Do(func() { close(m.done) })

	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = make(map[string]cacheEntry)
	common.LogInfo("快取管理員已關閉",
		zap.Int64("命中次數", m.stats.hits),
		zap.Int64("未命中次數", m.stats.misses),
		zap.Int64("淘汰次數", m.stats.evictions),
	)
	return nil
}
