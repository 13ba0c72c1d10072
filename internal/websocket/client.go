package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// 写超时时间
	writeWait = 10 * time.Second

	// 读超时时间
	pongWait = 60 * time.Second

	// ping 周期 (必须小于 pongWait)
	pingPeriod = (pongWait * 9) / 10

	// 最大消息大小
	maxMessageSize = 512 * 1024

	// 发送缓冲区大小
	sendBufferSize = 256
)

// 投递失败原因
var (
	// ErrConnectionClosed 连接已关闭
	ErrConnectionClosed = errors.New("connection closed")
	// ErrSendBufferFull 发送缓冲区已满,慢连接不阻塞扇出
	ErrSendBufferFull = errors.New("send buffer full")
)

// Client WebSocket 客户端连接
// 承载一个承包商设备的长连接,以及握手时附加的档案快照
type Client struct {
	// ID 连接 ID
	ID string

	// ContractorID 承包商 ID
	ContractorID string

	// Name 承包商名称(握手时的快照)
	Name string

	// Skills 承包商技能标签(握手时的快照)
	Skills []string

	// ConnectedAt 连接建立时间
	ConnectedAt time.Time

	// Conn WebSocket 连接
	Conn *websocket.Conn

	// Send 发送消息的 channel
	Send chan []byte

	mu     sync.Mutex
	closed bool
}

// NewClient 创建新的客户端
func NewClient(id, contractorID, name string, skills []string, conn *websocket.Conn) *Client {
	return &Client{
		ID:           id,
		ContractorID: contractorID,
		Name:         name,
		Skills:       skills,
		ConnectedAt:  time.Now(),
		Conn:         conn,
		Send:         make(chan []byte, sendBufferSize),
	}
}

// HasSkill 判断连接对应的承包商是否持有指定技能
func (c *Client) HasSkill(skill string) bool {
	for _, s := range c.Skills {
		if s == skill {
			return true
		}
	}
	return false
}

// Deliver 向客户端投递一条消息
// 缓冲区满或连接已关闭时立即返回错误,不阻塞调用方
func (c *Client) Deliver(message []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.Send <- message:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close 关闭客户端发送通道
// 可以被并发调用,只有第一次生效
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// ReadPump 从 WebSocket 连接读取消息
// onEvent 处理客户端上行事件,onClose 在连接断开时执行清理
func (c *Client) ReadPump(onEvent func(*Client, []byte), onClose func(*Client)) {
	defer func() {
		if onClose != nil {
			onClose(c)
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			break
		}
		if onEvent != nil {
			onEvent(c, message)
		}
	}
}

// WritePump 向 WebSocket 连接写入消息
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// 通道被注销逻辑关闭
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// 批量发送队列中的消息
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
