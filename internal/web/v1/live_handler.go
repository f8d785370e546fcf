package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/duynhne/masjid-connect-service/internal/core/domain"
	logicv1 "github.com/duynhne/masjid-connect-service/internal/logic/v1"
	"github.com/duynhne/masjid-connect-service/middleware"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	liveWriteWait      = 10 * time.Second
	liveMaxMessageSize = 4096
)

// Message types on the live feeds
const (
	MessageSession  = "session"
	MessageRequests = "requests"
	MessageError    = "error"
	MessageIdentify = "identify"
	MessageSignout  = "signout"
)

// LiveMessage is a server-to-client frame.
type LiveMessage struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// ClientMessage is a client-to-server frame on the session feed.
type ClientMessage struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
}

// LiveHandler serves WebSocket feeds that push a full snapshot after every change
type LiveHandler struct {
	profiles     *logicv1.ProfileService
	requests     *logicv1.RequestService
	verifier     middleware.IdentityVerifier
	pingInterval time.Duration
	upgrader     websocket.Upgrader
}

// NewLiveHandler creates a new live handler
func NewLiveHandler(profiles *logicv1.ProfileService, requests *logicv1.RequestService, verifier middleware.IdentityVerifier, pingInterval time.Duration) *LiveHandler {
	return &LiveHandler{
		profiles:     profiles,
		requests:     requests,
		verifier:     verifier,
		pingInterval: pingInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Feeds authenticate with bearer tokens, not cookies, so any origin may connect.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// OpenRequests handles GET /api/v1/live/requests/open
func (h *LiveHandler) OpenRequests(c *gin.Context) {
	h.streamRequests(c, h.requests.WatchOpen)
}

// MyRequests handles GET /api/v1/live/requests/mine
func (h *LiveHandler) MyRequests(c *gin.Context) {
	zapLogger := middleware.GetLoggerFromGinContext(c)
	identity, ok := requireIdentity(c, zapLogger)
	if !ok {
		return
	}
	h.streamRequests(c, func(ctx context.Context) *logicv1.Watch[[]domain.LeaveRequest] {
		return h.requests.WatchOwned(ctx, identity.ID)
	})
}

func (h *LiveHandler) streamRequests(c *gin.Context, open func(context.Context) *logicv1.Watch[[]domain.LeaveRequest]) {
	zapLogger := middleware.GetLoggerFromGinContext(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zapLogger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	w := open(ctx)
	defer w.Close()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		h.readPump(conn, zapLogger, nil)
	}()

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-readerDone:
			return
		case snap, ok := <-w.C:
			if !ok {
				return
			}
			msg := LiveMessage{Type: MessageRequests, Data: nonNil(snap.Value)}
			if snap.Err != nil {
				msg = LiveMessage{Type: MessageError, Error: liveErrorText(snap.Err)}
			}
			if err := writeMessage(conn, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := writePing(conn); err != nil {
				return
			}
		}
	}
}

// Session handles GET /api/v1/live/session. The stream starts with the connecting identity;
// the client may switch identity with {"type":"identify","token":"..."} or sign out with
// {"type":"signout"}. A new gate state is pushed whenever the profile changes.
func (h *LiveHandler) Session(c *gin.Context) {
	zapLogger := middleware.GetLoggerFromGinContext(c)

	var initial *domain.Identity
	if id, ok := middleware.IdentityFromContext(c); ok {
		initial = &id
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zapLogger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	session := logicv1.NewSession(h.profiles, zapLogger)
	defer session.Close()
	session.SetIdentity(ctx, initial)

	clientErrs := make(chan string, 1)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		h.readPump(conn, zapLogger, func(data []byte) {
			var msg ClientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				notify(clientErrs, "Invalid message")
				return
			}
			switch msg.Type {
			case MessageIdentify:
				user, err := h.verifier.Verify(ctx, msg.Token)
				if err != nil {
					zapLogger.Debug("Live identify rejected", zap.Error(err))
					notify(clientErrs, "Invalid or expired token")
					return
				}
				session.SetIdentity(ctx, &domain.Identity{ID: user.ID, Email: user.Email})
			case MessageSignout:
				session.SetIdentity(ctx, nil)
			default:
				notify(clientErrs, "Unknown message type")
			}
		})
	}()

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-readerDone:
			return
		case gs, ok := <-session.States():
			if !ok {
				return
			}
			if err := writeMessage(conn, LiveMessage{Type: MessageSession, Data: gs}); err != nil {
				return
			}
		case text := <-clientErrs:
			if err := writeMessage(conn, LiveMessage{Type: MessageError, Error: text}); err != nil {
				return
			}
		case <-ticker.C:
			if err := writePing(conn); err != nil {
				return
			}
		}
	}
}

// readPump reads client frames until the connection fails. A pong extends the read deadline.
func (h *LiveHandler) readPump(conn *websocket.Conn, zapLogger *zap.Logger, onMessage func([]byte)) {
	pongWait := 2 * h.pingInterval
	conn.SetReadLimit(liveMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				zapLogger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
		if onMessage != nil {
			onMessage(data)
		}
	}
}

func writeMessage(conn *websocket.Conn, msg LiveMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
	return conn.WriteJSON(msg)
}

func writePing(conn *websocket.Conn) error {
	_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
	return conn.WriteMessage(websocket.PingMessage, nil)
}

// notify drops the message when one is already pending.
func notify(ch chan<- string, text string) {
	select {
	case ch <- text:
	default:
	}
}

func liveErrorText(err error) string {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return "Service temporarily unavailable"
	}
	return "Could not load requests"
}
