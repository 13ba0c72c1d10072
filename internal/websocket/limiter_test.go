package websocket

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestRateLimiterAllow 测试固定窗口限流
func TestRateLimiterAllow(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)

	// 限额内全部放行
	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("conn-1"))
	}
	// 超限后丢弃
	assert.False(t, limiter.Allow("conn-1"))
	assert.False(t, limiter.Allow("conn-1"))
}

// TestRateLimiterPerConnection 测试连接间互不影响
func TestRateLimiterPerConnection(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute)

	assert.True(t, limiter.Allow("conn-1"))
	assert.True(t, limiter.Allow("conn-1"))
	assert.False(t, limiter.Allow("conn-1"))

	// conn-1 超限不影响 conn-2
	assert.True(t, limiter.Allow("conn-2"))
	assert.True(t, limiter.Allow("conn-2"))
}

// TestRateLimiterWindowReset 测试窗口过期后计数重置
func TestRateLimiterWindowReset(t *testing.T) {
	limiter := NewRateLimiter(2, 30*time.Millisecond)

	assert.True(t, limiter.Allow("conn-1"))
	assert.True(t, limiter.Allow("conn-1"))
	assert.False(t, limiter.Allow("conn-1"))

	time.Sleep(50 * time.Millisecond)

	// 新窗口从零计数,不累积上一窗口的余量
	assert.True(t, limiter.Allow("conn-1"))
	assert.True(t, limiter.Allow("conn-1"))
	assert.False(t, limiter.Allow("conn-1"))
}

// TestRateLimiterForget 测试连接断开后丢弃窗口
func TestRateLimiterForget(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)

	assert.True(t, limiter.Allow("conn-1"))
	assert.False(t, limiter.Allow("conn-1"))
	assert.Equal(t, 1, limiter.WindowCount())

	limiter.Forget("conn-1")
	assert.Equal(t, 0, limiter.WindowCount())

	// 重连后重新计数
	assert.True(t, limiter.Allow("conn-1"))
}

// TestRateLimiterSweep 测试过期窗口清理
func TestRateLimiterSweep(t *testing.T) {
	limiter := NewRateLimiter(10, 20*time.Millisecond)

	limiter.Allow("conn-1")
	limiter.Allow("conn-2")
	assert.Equal(t, 2, limiter.WindowCount())

	time.Sleep(40 * time.Millisecond)
	limiter.sweep()
	assert.Equal(t, 0, limiter.WindowCount())
}

// TestRateLimiterStartStop 测试清理 goroutine 生命周期
func TestRateLimiterStartStop(t *testing.T) {
	limiter := NewRateLimiter(10, 10*time.Millisecond)
	limiter.Start(15 * time.Millisecond)

	limiter.Allow("conn-1")
	assert.Eventually(t, func() bool {
		return limiter.WindowCount() == 0
	}, time.Second, 10*time.Millisecond)

	// Stop 幂等
	limiter.Stop()
	limiter.Stop()
}

// TestRateLimiterConcurrent 测试并发计数不丢失
func TestRateLimiterConcurrent(t *testing.T) {
	limiter := NewRateLimiter(50, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow("conn-1") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}
