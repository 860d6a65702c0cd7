// Package feed 通过 WebSocket 向展示端推送每周评估结果。
// 服务端只广播不接收指令；新订阅者连接时先收到最近一条消息。
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Path WebSocket 端点
	Path = "/ws"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

// Message 推送消息
type Message struct {
	// Type 消息类型，如 week_result
	Type   string          `json:"type"`
	SentAt time.Time       `json:"sent_at"`
	Data   json.RawMessage `json:"data"`
}

// Hub 广播中心
type Hub struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	last    []byte
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	// done 由 Hub 关闭，通知写协程退出
	done chan struct{}
	once sync.Once
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

// NewHub 创建广播中心
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// 展示端可能来自任意本地端口
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger:  logger.Named("feed"),
		clients: make(map[*client]struct{}),
	}
}

// Clients 返回当前订阅者数量
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast 编码并推送给所有订阅者
// 发送队列已满的订阅者被断开，不阻塞调用方
func (h *Hub) Broadcast(msgType string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("编码推送数据失败: %w", err)
	}
	b, err := json.Marshal(Message{Type: msgType, SentAt: time.Now().UTC(), Data: data})
	if err != nil {
		return fmt.Errorf("编码推送消息失败: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errors.New("feed: hub closed")
	}
	h.last = b
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			h.logger.Warn("订阅者发送队列已满，断开连接", zap.String("remote", c.conn.RemoteAddr().String()))
			h.removeLocked(c)
		}
	}
	return nil
}

// ServeHTTP 升级为 WebSocket 并登记订阅者
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket 升级失败", zap.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer), done: make(chan struct{})}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}
	h.mu.Unlock()

	h.logger.Info("订阅者已连接", zap.String("remote", conn.RemoteAddr().String()))
	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop 只处理控制帧；读取失败即视为断开
func (h *Hub) readLoop(c *client) {
	defer func() {
		h.mu.Lock()
		h.removeLocked(c)
		h.mu.Unlock()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop 每个连接唯一的写者
func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case b := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.stop()
}

// Close 断开所有订阅者，之后的 Broadcast 返回错误
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

// Server 托管 Hub 的 HTTP 服务
type Server struct {
	hub    *Hub
	router *mux.Router
	srv    *http.Server
	ln  net.Listener
}

// Listen 在 addr 上监听；addr 端口为 0 时随机分配
func Listen(addr string, hub *Hub) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("feed 监听 %s 失败: %w", addr, err)
	}
	router := mux.NewRouter()
	router.Handle(Path, hub).Methods(http.MethodGet)
	return &Server{
		hub:    hub,
		router: router,
		srv:    &http.Server{Handler: router, ReadHeaderTimeout: 5 * time.Second},
		ln:     ln,
	}, nil
}

// Handle 挂载额外的只读端点（如 /metrics），仅接受 GET，须在 Serve 之前调用
func (s *Server) Handle(path string, h http.Handler) {
	s.router.Handle(path, h).Methods(http.MethodGet)
}

// Addr 返回实际监听地址
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Serve 阻塞直到 ctx 取消，随后优雅关闭
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(s.ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("feed 关闭失败: %w", err)
	}
	return nil
}
