package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/NaviWasm/service-mapview/internal/application"
	"github.com/NaviWasm/service-mapview/internal/domain/geo"
	"github.com/NaviWasm/service-mapview/internal/response"
	"github.com/NaviWasm/service-mapview/internal/surface"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsReadLimit    = 1 << 16
	wsReplyBuffer  = 16
)

// Stream message types.
const (
	msgSnapshot = "snapshot"
	msgOp       = "op"
	msgState    = "state"
	msgError    = "error"
	msgClick    = "click"
	msgDrag     = "drag"
	msgReset    = "reset"
)

// serverMessage is pushed to an attached renderer.
type serverMessage struct {
	Type     string            `json:"type"`
	Snapshot *surface.Snapshot `json:"snapshot,omitempty"`
	Op       *surface.Op       `json:"op,omitempty"`
	State    interface{}       `json:"state,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// clientMessage is pointer input forwarded by a renderer.
type clientMessage struct {
	Type     string           `json:"type"`
	Lat      *float64         `json:"lat"`
	Lng      *float64         `json:"lng"`
	MarkerID surface.MarkerID `json:"marker_id"`
}

func (m clientMessage) position() (geo.Coordinate, error) {
	if m.Lat == nil || m.Lng == nil {
		return geo.Coordinate{}, errors.New("lat and lng are required")
	}
	return geo.NewCoordinate(*m.Lat, *m.Lng)
}

// StreamHandler attaches renderers to a view over WebSocket.
type StreamHandler struct {
	service  *application.ViewService
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewStreamHandler creates a new StreamHandler. allowedOrigins empty allows
// any origin.
func NewStreamHandler(service *application.ViewService, allowedOrigins []string, logger *zap.Logger) *StreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}
	return &StreamHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(origins) == 0 {
					return true
				}
				_, ok := origins[origin]
				return ok
			},
		},
		logger: logger,
	}
}

// RegisterRoutes registers the stream route on the given router group.
func (h *StreamHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/api/v1/views/:id/stream", h.Stream)
}

// Stream handles GET /api/v1/views/:id/stream. The first message is the
// surface snapshot; every surface op follows in order.
func (h *StreamHandler) Stream(c *gin.Context) {
	viewID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid view ID")
		return
	}

	streamer, err := h.service.Stream(c.Request.Context(), viewID)
	if err != nil {
		response.Error(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("view_id", viewID.String()), zap.Error(err))
		return
	}
	defer conn.Close()

	log := h.logger.With(zap.String("view_id", viewID.String()))
	log.Info("renderer attached")

	snap, ops, unsubscribe := streamer.Attach()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	replies := make(chan serverMessage, wsReplyBuffer)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		h.readLoop(ctx, conn, viewID, streamer, replies, log)
	}()

	if err := writeJSON(conn, serverMessage{Type: msgSnapshot, Snapshot: &snap}); err != nil {
		log.Debug("snapshot write failed", zap.Error(err))
		return
	}

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case op, ok := <-ops:
			if !ok {
				writeClose(conn, websocket.CloseGoingAway, "view closed")
				log.Info("renderer detached: view closed")
				return
			}
			if err := writeJSON(conn, serverMessage{Type: msgOp, Op: &op}); err != nil {
				log.Debug("op write failed", zap.Error(err))
				return
			}
		case msg := <-replies:
			if err := writeJSON(conn, msg); err != nil {
				log.Debug("reply write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				log.Debug("ping failed", zap.Error(err))
				return
			}
		case <-readerDone:
			log.Info("renderer detached")
			return
		}
	}
}

func (h *StreamHandler) readLoop(
	ctx context.Context,
	conn *websocket.Conn,
	viewID uuid.UUID,
	streamer surface.Streamer,
	replies chan<- serverMessage,
	log *zap.Logger,
) {
	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	reply := func(msg serverMessage) {
		select {
		case replies <- msg:
		case <-ctx.Done():
		}
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("renderer connection closed unexpectedly", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			reply(serverMessage{Type: msgError, Error: "bad json"})
			continue
		}

		switch msg.Type {
		case msgClick:
			pos, err := msg.position()
			if err == nil {
				err = streamer.Click(pos)
			}
			if err != nil {
				reply(serverMessage{Type: msgError, Error: err.Error()})
			}
		case msgDrag:
			pos, err := msg.position()
			if err == nil {
				err = streamer.Drag(msg.MarkerID, pos)
			}
			if err != nil {
				reply(serverMessage{Type: msgError, Error: err.Error()})
			}
		case msgReset:
			st, err := h.service.Reset(ctx, viewID)
			if err != nil {
				reply(serverMessage{Type: msgError, Error: err.Error()})
				continue
			}
			reply(serverMessage{Type: msgState, State: st})
		default:
			reply(serverMessage{Type: msgError, Error: "unknown message type"})
		}
	}
}

func writeJSON(conn *websocket.Conn, msg serverMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(msg)
}

func writeClose(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(wsWriteTimeout))
}
