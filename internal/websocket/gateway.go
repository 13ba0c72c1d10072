package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bounce/dispatch-gin/internal/metrics"
	"github.com/sirupsen/logrus"
)

// SelectorKind 广播寻址方式
type SelectorKind int

const (
	// SelectorAll 所有连接
	SelectorAll SelectorKind = iota
	// SelectorContractor 指定承包商的连接
	SelectorContractor
	// SelectorSkill 持有指定技能的承包商的连接
	SelectorSkill
)

// Selector 广播寻址规则
type Selector struct {
	Kind         SelectorKind
	ContractorID string
	Skill        string

	// ExceptContractorID 全量寻址时排除的承包商
	ExceptContractorID string
}

// SelectAll 选择所有连接
func SelectAll() Selector {
	return Selector{Kind: SelectorAll}
}

// SelectAllExcept 选择指定承包商以外的所有连接
func SelectAllExcept(contractorID string) Selector {
	return Selector{Kind: SelectorAll, ExceptContractorID: contractorID}
}

// SelectContractor 选择指定承包商的连接
func SelectContractor(contractorID string) Selector {
	return Selector{Kind: SelectorContractor, ContractorID: contractorID}
}

// SelectSkill 选择持有指定技能的承包商的连接
func SelectSkill(skill string) Selector {
	return Selector{Kind: SelectorSkill, Skill: skill}
}

// ErrConnectionNotFound 连接不存在
var ErrConnectionNotFound = errors.New("connection not found")

// Options 网关配置
type Options struct {
	// RateLimit 每个连接每个窗口允许的上行事件数
	RateLimit int

	// RateWindow 限流窗口长度
	RateWindow time.Duration

	// SweepInterval 过期窗口清理周期
	SweepInterval time.Duration

	// AuthTimeout 握手认证超时
	AuthTimeout time.Duration
}

// DefaultOptions 默认网关配置
func DefaultOptions() Options {
	return Options{
		RateLimit:     50,
		RateWindow:    time.Minute,
		SweepInterval: time.Minute,
		AuthTimeout:   10 * time.Second,
	}
}

// Gateway 实时网关
// 认证入站长连接,所有下行推送经过它完成扇出
type Gateway struct {
	hub     *Hub
	limiter *RateLimiter
	opts    Options
	logger  *logrus.Logger
}

// NewGateway 创建实时网关
func NewGateway(hub *Hub, opts Options, logger *logrus.Logger) *Gateway {
	if logger == nil {
		logger = logrus.New()
	}
	return &Gateway{
		hub:     hub,
		limiter: NewRateLimiter(opts.RateLimit, opts.RateWindow),
		opts:    opts,
		logger:  logger,
	}
}

// Hub 返回连接注册表
func (g *Gateway) Hub() *Hub {
	return g.hub
}

// Start 启动网关后台任务(限流窗口清理)
func (g *Gateway) Start() {
	g.limiter.Start(g.opts.SweepInterval)
}

// Stop 停止网关后台任务
func (g *Gateway) Stop() {
	g.limiter.Stop()
}

// IsOnline 判断承包商是否在线
func (g *Gateway) IsOnline(contractorID string) bool {
	return g.hub.IsOnline(contractorID)
}

// Publish 向单个连接推送一条事件
func (g *Gateway) Publish(connID string, eventType string, data interface{}) error {
	client, ok := g.hub.Get(connID)
	if !ok {
		return ErrConnectionNotFound
	}

	message, err := NewEvent(eventType, data).Encode()
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	if err := client.Deliver(message); err != nil {
		metrics.RecordBroadcastFailure()
		return fmt.Errorf("failed to deliver to %s: %w", connID, err)
	}
	metrics.RecordBroadcastDelivery()
	return nil
}

// Broadcast 按寻址规则向多个连接推送事件
// 每个连接独立投递: 单个半关闭或缓冲区已满的连接不影响其他连接,
// 失败被收集后聚合返回,不中断扇出
func (g *Gateway) Broadcast(eventType string, data interface{}, sel Selector) error {
	message, err := NewEvent(eventType, data).Encode()
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	var targets []*Client
	switch sel.Kind {
	case SelectorContractor:
		targets = g.hub.ConnectionsFor(sel.ContractorID)
	case SelectorSkill:
		for _, c := range g.hub.All() {
			if c.HasSkill(sel.Skill) {
				targets = append(targets, c)
			}
		}
	default:
		for _, c := range g.hub.All() {
			if sel.ExceptContractorID != "" && c.ContractorID == sel.ExceptContractorID {
				continue
			}
			targets = append(targets, c)
		}
	}

	var failures []error
	for _, client := range targets {
		if err := client.Deliver(message); err != nil {
			metrics.RecordBroadcastFailure()
			failures = append(failures, fmt.Errorf("connection %s: %w", client.ID, err))
			continue
		}
		metrics.RecordBroadcastDelivery()
	}

	if len(failures) > 0 {
		g.logger.WithFields(logrus.Fields{
			"event":    eventType,
			"targets":  len(targets),
			"failures": len(failures),
		}).Debug("broadcast completed with partial delivery")
		return errors.Join(failures...)
	}
	return nil
}

// HandleClientEvent 处理客户端上行事件
// 超限事件被丢弃并记录,连接保持打开: 断开会触发客户端重连风暴
func (g *Gateway) HandleClientEvent(client *Client, raw []byte) {
	if !g.limiter.Allow(client.ID) {
		metrics.RecordRateLimited()
		g.logger.WithFields(logrus.Fields{
			"connection_id": client.ID,
			"contractor_id": client.ContractorID,
		}).Warn("client event dropped: rate limit exceeded")
		return
	}

	var event ClientEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		g.logger.WithField("connection_id", client.ID).Debug("discarding malformed client event")
		return
	}

	switch event.Type {
	case "ping":
		_ = g.Publish(client.ID, EventPong, nil)
	default:
		g.logger.WithFields(logrus.Fields{
			"connection_id": client.ID,
			"type":          event.Type,
		}).Debug("unhandled client event")
	}
}

// HandleDisconnect 连接断开时的清理
func (g *Gateway) HandleDisconnect(client *Client) {
	g.hub.Unregister(client.ID)
	g.limiter.Forget(client.ID)
	metrics.SetActiveConnections(g.hub.Count())

	g.logger.WithFields(logrus.Fields{
		"connection_id": client.ID,
		"contractor_id": client.ContractorID,
	}).Info("websocket connection closed")
}
