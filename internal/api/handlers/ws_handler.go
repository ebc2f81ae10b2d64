package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/prepdeck/internal/models"
	"github.com/yoockh/prepdeck/internal/services"
	"github.com/yoockh/prepdeck/internal/utils"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// WSHandler is the capture channel of an in-progress session: responses
// come in, recomputed metrics go out. With redis set, updates are fanned
// out over pub/sub so every socket watching the session receives them.
type WSHandler struct {
	sessions services.SessionService
	redis    *redis.Client
	logger   *logrus.Logger
	upgrader websocket.Upgrader

	// the server pings every pingPeriod; a client silent for pongWait is dropped
	pingPeriod time.Duration
	pongWait   time.Duration
}

func NewWSHandler(sessions services.SessionService, rdb *redis.Client, logger *logrus.Logger, allowedOrigins []string) *WSHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &WSHandler{
		sessions:   sessions,
		redis:      rdb,
		logger:     logger,
		upgrader:   websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)},
		pingPeriod: wsPingPeriod,
		pongWait:   wsPongWait,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.Header.Get("Origin")]
		return ok
	}
}

// CaptureChannel carries metric and status updates for one session.
func CaptureChannel(sessionID string) string { return "session:" + sessionID + ":capture" }

type wsClientMsg struct {
	Type     string           `json:"type"` // response | complete | abandon
	Response *models.Response `json:"response,omitempty"`
	Feedback *models.Feedback `json:"feedback,omitempty"`
}

type wsServerMsg struct {
	Type      string                 `json:"type"` // metrics | status | error
	SessionID string                 `json:"session_id,omitempty"`
	Status    models.SessionStatus   `json:"status,omitempty"`
	Responses int                    `json:"responses,omitempty"`
	Metrics   *models.SessionMetrics `json:"metrics,omitempty"`
	Code      utils.Code             `json:"code,omitempty"`
	Message   string                 `json:"message,omitempty"`
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (w *wsConn) ping() error {
	return w.c.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
}

func (w *wsConn) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.writeText(b)
}

func (h *WSHandler) SessionWS(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	sess, ok := ownedSession(c, h.sessions, "WSHandler.SessionWS", userID)
	if !ok {
		return
	}
	sessionID := sess.SessionID

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	log := h.logger.WithFields(logrus.Fields{"session_id": sessionID, "user_id": userID})

	var pubsub *redis.PubSub
	if h.redis != nil {
		pubsub = h.redis.Subscribe(ctx, CaptureChannel(sessionID))
		defer pubsub.Close()
	}

	emit := func(msg wsServerMsg) {
		if h.redis == nil {
			_ = wc.writeJSON(msg)
			return
		}
		b, _ := json.Marshal(msg)
		if err := h.redis.Publish(ctx, CaptureChannel(sessionID), string(b)).Err(); err != nil {
			log.WithError(err).Warn("capture publish failed")
			_ = wc.writeText(b)
		}
	}
	fail := func(err error) {
		msg := wsServerMsg{Type: "error", Code: utils.CodeOf(err), Message: err.Error()}
		var ae *utils.AppError
		if errors.As(err, &ae) {
			msg.Message = ae.Message
		}
		_ = wc.writeJSON(msg)
	}

	_ = wc.writeJSON(wsServerMsg{Type: "status", SessionID: sessionID, Status: sess.Status, Responses: len(sess.Responses), Metrics: sess.Metrics})

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(h.pongWait))
		})

		for {
			_, data, rerr := conn.ReadMessage()
			if rerr != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))

			var msg wsClientMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				fail(utils.E(utils.CodeInvalidArgument, "WSHandler", "invalid json", err))
				continue
			}

			switch msg.Type {
			case "response":
				if msg.Response == nil {
					fail(utils.E(utils.CodeInvalidArgument, "WSHandler", "response is required", nil))
					continue
				}
				updated, err := h.sessions.AppendResponse(ctx, sessionID, *msg.Response)
				if err != nil {
					fail(err)
					continue
				}
				emit(wsServerMsg{Type: "metrics", SessionID: sessionID, Status: updated.Status, Responses: len(updated.Responses), Metrics: updated.Metrics})

			case "complete":
				if msg.Feedback == nil {
					fail(utils.E(utils.CodeInvalidArgument, "WSHandler", "feedback is required", nil))
					continue
				}
				done, err := h.sessions.Complete(ctx, sessionID, *msg.Feedback)
				if err != nil {
					fail(err)
					continue
				}
				emit(wsServerMsg{Type: "status", SessionID: sessionID, Status: done.Status})

			case "abandon":
				out, err := h.sessions.Abandon(ctx, sessionID)
				if err != nil {
					fail(err)
					continue
				}
				emit(wsServerMsg{Type: "status", SessionID: sessionID, Status: out.Status})

			default:
				fail(utils.E(utils.CodeInvalidArgument, "WSHandler", "unknown message type", nil))
			}
		}
	}()

	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()

	// nil without redis, which never fires
	var ch <-chan *redis.Message
	if pubsub != nil {
		ch = pubsub.Channel()
	}
	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := wc.ping(); err != nil {
				log.WithError(err).Debug("capture ping failed")
				return
			}
		case m, ok := <-ch:
			if !ok {
				return
			}
			if werr := wc.writeText([]byte(m.Payload)); werr != nil {
				return
			}
		}
	}
}
