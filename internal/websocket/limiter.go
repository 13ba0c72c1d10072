package websocket

import (
	"sync"
	"time"
)

// rateWindow 单个连接的限流窗口
type rateWindow struct {
	count   int
	resetAt time.Time
}

// RateLimiter 按连接的固定窗口限流器
// 窗口按墙钟时间过期,不为每个连接挂定时器
// 清理 goroutine 由网关生命周期显式启动和停止
type RateLimiter struct {
	// 连接 ID → 当前窗口
	windows map[string]*rateWindow

	// 每个窗口允许的事件数
	limit int

	// 窗口长度
	window time.Duration

	mu   sync.Mutex
	stop chan struct{}
	once sync.Once
}

// NewRateLimiter 创建限流器
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*rateWindow),
		limit:   limit,
		window:  window,
		stop:    make(chan struct{}),
	}
}

// Allow 判断连接是否允许再处理一个上行事件
// 首个事件惰性创建窗口;窗口过期后重置计数而不是累积
// 同一连接的密集事件并发调用时计数不丢失
func (l *RateLimiter) Allow(connID string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[connID]
	if !ok || now.After(w.resetAt) {
		l.windows[connID] = &rateWindow{
			count:   1,
			resetAt: now.Add(l.window),
		}
		return true
	}

	if w.count >= l.limit {
		return false
	}
	w.count++
	return true
}

// Forget 丢弃连接的窗口(连接断开时调用)
func (l *RateLimiter) Forget(connID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.windows, connID)
}

// Start 启动过期窗口的周期清理
// 已安静的连接不再产生事件,清理保证窗口表内存有界
func (l *RateLimiter) Start(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-l.stop:
				return
			case <-ticker.C:
				l.sweep()
			}
		}
	}()
}

// Stop 停止清理 goroutine
func (l *RateLimiter) Stop() {
	l.once.Do(func() {
		close(l.stop)
	})
}

// sweep 清理已过期的窗口
func (l *RateLimiter) sweep() {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for connID, w := range l.windows {
		if now.After(w.resetAt) {
			delete(l.windows, connID)
		}
	}
}

// WindowCount 当前窗口表大小(用于测试和指标)
func (l *RateLimiter) WindowCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.windows)
}
