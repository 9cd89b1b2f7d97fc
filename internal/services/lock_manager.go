// internal/services/lock_manager.go
package services

import (
	"context"
	"sync"
	"time"
)

// LockManager 按地图 ID 管理读写锁，串行化同一地图的修改
type LockManager struct {
	mu    sync.Mutex
	locks map[string]*LockInfo
	ttl   time.Duration
}

// LockInfo 包装锁和相关信息
type LockInfo struct {
	Mutex    sync.RWMutex
	LastUsed time.Time
	refs     int // 正在等待或持有该锁的调用数，大于 0 时不会被清理
}

// NewLockManager 创建锁管理器
func NewLockManager() *LockManager {
	return &LockManager{
		locks: make(map[string]*LockInfo),
		ttl:   30 * time.Minute,
	}
}

func (lm *LockManager) acquire(mapID string) *LockInfo {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	info, ok := lm.locks[mapID]
	if !ok {
		info = &LockInfo{}
		lm.locks[mapID] = info
	}
	info.refs++
	info.LastUsed = time.Now()
	return info
}

func (lm *LockManager) release(info *LockInfo) {
	lm.mu.Lock()
	info.refs--
	info.LastUsed = time.Now()
	lm.mu.Unlock()
}

// ExecuteWithMapLock 在地图写锁保护下执行操作
func (lm *LockManager) ExecuteWithMapLock(mapID string, fn func() error) error {
	info := lm.acquire(mapID)
	defer lm.release(info)

	info.Mutex.Lock()
	defer info.Mutex.Unlock()
	return fn()
}

// ExecuteWithMapReadLock 在地图读锁保护下执行操作
func (lm *LockManager) ExecuteWithMapReadLock(mapID string, fn func() error) error {
	info := lm.acquire(mapID)
	defer lm.release(info)

	info.Mutex.RLock()
	defer info.Mutex.RUnlock()
	return fn()
}

// Len returns the number of tracked locks.
func (lm *LockManager) Len() int {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return len(lm.locks)
}

// RunCleanup drops idle locks every interval until ctx is done.
func (lm *LockManager) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lm.cleanupUnusedLocks(time.Now())
		}
	}
}

func (lm *LockManager) cleanupUnusedLocks(now time.Time) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	for id, info := range lm.locks {
		if info.refs == 0 && now.Sub(info.LastUsed) > lm.ttl {
			delete(lm.locks, id)
		}
	}
}
