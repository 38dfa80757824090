package service

import (
	"context"
	"encoding/json"
	"hire_assessment_backend/pkg/logger"
	"hire_assessment_backend/pkg/monitoring"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64

	attemptEventChannel = "attempt_events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Watcher 招聘方的监控连接，AttemptID 为空时接收本公司全部事件
type Watcher struct {
	Monitor   *AttemptMonitor
	Conn      *websocket.Conn
	Send      chan []byte
	UserID    uint
	CompanyID uint
	Admin     bool
	Limiter   *rate.Limiter

	mu        sync.RWMutex
	attemptID string
}

func (w *Watcher) filter() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.attemptID
}

func (w *Watcher) setFilter(attemptID string) {
	w.mu.Lock()
	w.attemptID = attemptID
	w.mu.Unlock()
}

func (w *Watcher) wants(ev AttemptEvent) bool {
	if !w.Admin && w.CompanyID != ev.CompanyID {
		return false
	}
	f := w.filter()
	return f == "" || f == ev.AttemptID
}

func (w *Watcher) readPump() {
	defer func() {
		select {
		case w.Monitor.unregister <- w:
		case <-w.Monitor.done:
		}
		w.Conn.Close()
	}()
	w.Conn.SetReadLimit(maxMessageSize)
	w.Conn.SetReadDeadline(time.Now().Add(pongWait))
	w.Conn.SetPongHandler(func(string) error { w.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := w.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Warn("monitor websocket unexpected close", zap.Error(err), zap.Uint("userId", w.UserID))
			}
			break
		}
		if !w.Limiter.Allow() {
			continue
		}

		var msg struct {
			Type string `json:"type"`
			Data struct {
				AttemptID string `json:"attemptId"`
			} `json:"data"`
		}
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "SUBSCRIBE":
			w.setFilter(msg.Data.AttemptID)
		case "UNSUBSCRIBE":
			w.setFilter("")
		}
	}
}

func (w *Watcher) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		w.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-w.Send:
			w.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				w.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := w.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			w.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// AttemptMonitor 作答事件的实时推送；启用 Redis 时经频道广播到所有实例
type AttemptMonitor struct {
	Redis *redis.Client

	mu         sync.RWMutex
	watchers   map[*Watcher]struct{}
	register   chan *Watcher
	unregister chan *Watcher
	done       chan struct{}
	stopOnce   sync.Once
}

func NewAttemptMonitor(rdb *redis.Client) *AttemptMonitor {
	return &AttemptMonitor{
		Redis:      rdb,
		watchers:   make(map[*Watcher]struct{}),
		register:   make(chan *Watcher),
		unregister: make(chan *Watcher),
		done:       make(chan struct{}),
	}
}

func (m *AttemptMonitor) Run(ctx context.Context) {
	if m.Redis != nil {
		pubsub := m.Redis.Subscribe(ctx, attemptEventChannel)
		defer pubsub.Close()
		go func() {
			for msg := range pubsub.Channel() {
				var ev AttemptEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logger.Log.Error("attempt event unmarshal error", zap.Error(err))
					continue
				}
				m.dispatch(ev)
			}
		}()
	}

	for {
		select {
		case w := <-m.register:
			m.mu.Lock()
			m.watchers[w] = struct{}{}
			m.mu.Unlock()
			monitoring.MonitorConnections.Inc()
		case w := <-m.unregister:
			m.mu.Lock()
			if _, ok := m.watchers[w]; ok {
				delete(m.watchers, w)
				close(w.Send)
				monitoring.MonitorConnections.Dec()
			}
			m.mu.Unlock()
		case <-ctx.Done():
			m.Stop()
			m.closeAll()
			return
		case <-m.done:
			m.closeAll()
			return
		}
	}
}

func (m *AttemptMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.done) })
}

func (m *AttemptMonitor) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for w := range m.watchers {
		delete(m.watchers, w)
		close(w.Send)
		monitoring.MonitorConnections.Dec()
	}
}

// Publish 实现 AttemptEventPublisher
func (m *AttemptMonitor) Publish(ev AttemptEvent) {
	if m == nil {
		return
	}
	if m.Redis != nil {
		payload, err := json.Marshal(ev)
		if err == nil {
			err = m.Redis.Publish(context.Background(), attemptEventChannel, payload).Err()
		}
		if err == nil {
			return
		}
		logger.Log.Warn("publish attempt event to redis failed, delivering locally", zap.Error(err))
	}
	m.dispatch(ev)
}

func (m *AttemptMonitor) dispatch(ev AttemptEvent) {
	payload, err := json.Marshal(WSMessage{Type: "ATTEMPT_" + strings.ToUpper(ev.Type), Data: ev})
	if err != nil {
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for w := range m.watchers {
		if !w.wants(ev) {
			continue
		}
		select {
		case w.Send <- payload:
		default:
			// 慢连接直接丢弃，由 readPump 超时回收
			logger.Log.Warn("monitor watcher buffer full", zap.Uint("userId", w.UserID))
		}
	}
}

// Watching 当前本实例的监控连接数
func (m *AttemptMonitor) Watching() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.watchers)
}

// ServeMonitor 升级为 websocket 并注册监控连接
func ServeMonitor(m *AttemptMonitor, w http.ResponseWriter, r *http.Request, userID, companyID uint, admin bool, attemptID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("monitor websocket upgrade failed", zap.Error(err))
		return
	}
	watcher := &Watcher{
		Monitor:   m,
		Conn:      conn,
		Send:      make(chan []byte, sendBuffer),
		UserID:    userID,
		CompanyID: companyID,
		Admin:     admin,
		Limiter:   rate.NewLimiter(5, 10),
		attemptID: attemptID,
	}
	select {
	case m.register <- watcher:
	case <-m.done:
		conn.Close()
		return
	}

	go watcher.writePump()
	go watcher.readPump()
}
