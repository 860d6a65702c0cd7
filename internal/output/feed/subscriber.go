package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"theta-guard/internal/util/backoff"
)

// SubscriberMetrics 订阅端连接指标
type SubscriberMetrics struct {
	Reconnects   int64 `json:"reconnects"`
	Received     int64 `json:"received"`
	DecodeErrors int64 `json:"decode_errors"`
}

// Subscriber feed 订阅端，断线后按指数退避自动重连
type Subscriber struct {
	url     string
	logger  *zap.Logger
	dialer  websocket.Dialer
	backoff *backoff.Backoff
	msgCh   chan Message

	mu      sync.Mutex
	metrics SubscriberMetrics
}

// NewSubscriber 创建订阅端；url 形如 ws://127.0.0.1:8765/ws
func NewSubscriber(url string, logger *zap.Logger) *Subscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscriber{
		url:     url,
		logger:  logger.Named("feed-sub"),
		dialer:  websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		backoff: backoff.NewDefault(),
		msgCh:   make(chan Message, 64),
	}
}

// Messages 返回消息通道，Run 退出后关闭
func (s *Subscriber) Messages() <-chan Message {
	return s.msgCh
}

// Metrics 返回指标快照
func (s *Subscriber) Metrics() SubscriberMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

// Run 连接并持续读取，直到 ctx 取消
func (s *Subscriber) Run(ctx context.Context) error {
	defer close(s.msgCh)
	for {
		conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("连接 feed 失败", zap.String("url", s.url), zap.Error(err))
		} else {
			s.backoff.Reset()
			s.logger.Info("feed 已连接", zap.String("url", s.url))
			err = s.readLoop(ctx, conn)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("feed 连接断开", zap.Error(err))
		}

		s.count(func(m *SubscriberMetrics) { m.Reconnects++ })
		if err := s.backoff.Wait(ctx); err != nil {
			return err
		}
	}
}

func (s *Subscriber) readLoop(ctx context.Context, conn *websocket.Conn) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			conn.Close()
		case <-stop:
			conn.Close()
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("读取 feed 消息失败: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.count(func(m *SubscriberMetrics) { m.DecodeErrors++ })
			s.logger.Warn("解析 feed 消息失败", zap.Error(err))
			continue
		}
		s.count(func(m *SubscriberMetrics) { m.Received++ })
		select {
		case s.msgCh <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Subscriber) count(f func(*SubscriberMetrics)) {
	s.mu.Lock()
	f(&s.metrics)
	s.mu.Unlock()
}
