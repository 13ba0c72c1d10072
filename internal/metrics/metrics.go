package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 认领结果计数(won / lost)
	claimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_claims_total",
			Help: "Total number of claim attempts by outcome",
		},
		[]string{"outcome"},
	)

	// 任务状态迁移计数
	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_transitions_total",
			Help: "Total number of task status transitions",
		},
		[]string{"to"},
	)

	// 活跃 WebSocket 连接数
	connectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Number of active websocket connections",
		},
	)

	// 握手拒绝计数
	handshakesRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_handshakes_rejected_total",
			Help: "Total number of rejected websocket handshakes by reason",
		},
		[]string{"reason"},
	)

	// 广播投递结果
	broadcastDeliveriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_deliveries_total",
			Help: "Total number of successful per-connection deliveries",
		},
	)

	broadcastFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_failures_total",
			Help: "Total number of failed per-connection deliveries",
		},
	)

	// 被限流丢弃的上行事件数
	rateLimitedEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limited_events_total",
			Help: "Total number of client events dropped by rate limiting",
		},
	)

	// 通知创建计数
	notificationsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Total number of notifications created by type",
		},
		[]string{"type"},
	)
)

var (
	once sync.Once
)

func init() {
	// 注册指标
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(claimsTotal)
	prometheus.MustRegister(transitionsTotal)
	prometheus.MustRegister(connectionsActive)
	prometheus.MustRegister(handshakesRejectedTotal)
	prometheus.MustRegister(broadcastDeliveriesTotal)
	prometheus.MustRegister(broadcastFailuresTotal)
	prometheus.MustRegister(rateLimitedEventsTotal)
	prometheus.MustRegister(notificationsCreatedTotal)

	// 注册 Go 运行时指标（只注册一次）
	once.Do(func() {
		// 尝试注册 Go 运行时指标，如果已注册则忽略错误
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordClaimWon 记录认领成功
func RecordClaimWon() {
	claimsTotal.WithLabelValues("won").Inc()
}

// RecordClaimLost 记录认领冲突
func RecordClaimLost() {
	claimsTotal.WithLabelValues("lost").Inc()
}

// RecordTransition 记录任务状态迁移
func RecordTransition(to string) {
	transitionsTotal.WithLabelValues(to).Inc()
}

// SetActiveConnections 更新活跃连接数
func SetActiveConnections(n int) {
	connectionsActive.Set(float64(n))
}

// RecordHandshakeRejected 记录握手拒绝
func RecordHandshakeRejected(reason string) {
	handshakesRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordBroadcastDelivery 记录单连接投递成功
func RecordBroadcastDelivery() {
	broadcastDeliveriesTotal.Inc()
}

// RecordBroadcastFailure 记录单连接投递失败
func RecordBroadcastFailure() {
	broadcastFailuresTotal.Inc()
}

// RecordRateLimited 记录被限流丢弃的事件
func RecordRateLimited() {
	rateLimitedEventsTotal.Inc()
}

// RecordNotificationCreated 记录通知创建
func RecordNotificationCreated(notificationType string) {
	notificationsCreatedTotal.WithLabelValues(notificationType).Inc()
}
