package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/logger"
	"realtime_chat_service/pkg/metrics"
	"realtime_chat_service/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	writeWait           = 10 * time.Second
	defaultPingInterval = 30 * time.Second
	defaultSendBuffer   = 256
)

// ChatWebsocketHandler fiber websocket transport for the dispatcher
type ChatWebsocketHandler struct {
	dispatcher   *Dispatcher
	pingInterval time.Duration
	sendBuffer   int
}

// NewChatWebsocketHandler create ChatWebsocketHandler
func NewChatWebsocketHandler(dispatcher *Dispatcher, pingInterval time.Duration, sendBuffer int) *ChatWebsocketHandler {
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	return &ChatWebsocketHandler{
		dispatcher:   dispatcher,
		pingInterval: pingInterval,
		sendBuffer:   sendBuffer,
	}
}

// HandleConnection 是 WebSocket 連線的進入點
func (h *ChatWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	authUser, _ := conn.Locals(middlewares.TokenUsername).(string)

	wc := newWSConnection(conn, h.sendBuffer)
	sess := NewSession(wc, authUser)
	logger.Log.Info("websocket open", zap.String("connID", wc.id), zap.String("remote", conn.RemoteAddr().String()))

	metrics.ConnectionsActive.Inc()
	h.dispatcher.Connect(sess)
	go wc.writePump(h.pingInterval)

	defer func() {
		h.dispatcher.Disconnect(context.Background(), sess)
		wc.shutdown(false)
		// fiber releases conn once this handler returns, the writer must be gone by then
		<-wc.writerDone
		metrics.ConnectionsActive.Dec()
		logger.Log.Info("websocket close", zap.String("connID", wc.id), zap.String("username", sess.Username()))
	}()

	//server發出ping之後client連線正常會回pong
	pongWait := 2 * h.pingInterval
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Warn("websocket read error", zap.String("connID", wc.id), zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		if mt != websocket.TextMessage {
			reply(sess, domain.EventError, domain.ErrorPayload{Error: "text frames only"})
			continue
		}

		var env domain.Envelope
		if err := json.Unmarshal(msg, &env); err != nil || env.Event == "" {
			reply(sess, domain.EventError, domain.ErrorPayload{Error: "malformed frame"})
			continue
		}
		h.dispatcher.Dispatch(ctx, sess, env)
	}
}

// wsConnection buffered writer in front of a websocket; a full buffer drops the connection
type wsConnection struct {
	id         string
	conn       *websocket.Conn
	closer     func() error
	send       chan []byte
	done       chan struct{}
	writerDone chan struct{}
	closeOnce  sync.Once
}

func newWSConnection(conn *websocket.Conn, buffer int) *wsConnection {
	return &wsConnection{
		id:         uuid.NewString(),
		conn:       conn,
		closer:     conn.Close,
		send:       make(chan []byte, buffer),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
}

func (c *wsConnection) ID() string { return c.id }

func (c *wsConnection) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	default:
		metrics.SlowConsumerDrops.Inc()
		logger.Log.Warn("send buffer full, dropping connection", zap.String("connID", c.id))
		c.shutdown(true)
		return false
	}
}

// shutdown stop the writer; closeConn also closes the socket so the reader unblocks
func (c *wsConnection) shutdown(closeConn bool) {
	c.closeOnce.Do(func() {
		close(c.done)
		if closeConn {
			_ = c.closer()
		}
	})
}

func (c *wsConnection) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		close(c.writerDone)
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.Log.Warn("websocket write error", zap.String("connID", c.id), zap.Error(err))
				c.shutdown(true)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown(true)
				return
			}
		case <-c.done:
			return
		}
	}
}
