package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"relaychat/internal/commands"
	"relaychat/internal/events"
	"relaychat/internal/middleware"
	"relaychat/internal/services"
	"relaychat/internal/transport/httpdto"
	"relaychat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// PresenceHooks is told about connection changes after the hub has
// registered or removed a client.
type PresenceHooks interface {
	OnConnect(ctx context.Context, userID uuid.UUID, connID string, firstLocal bool)
	OnDisconnect(ctx context.Context, userID uuid.UUID, connID string, lastLocal bool)
}

type clientKey struct{}

// inbound is a frame sent by a client.
type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type Handler struct {
	auth     middleware.TokenAuthenticator
	hub      *Hub
	bus      *commands.Bus
	presence PresenceHooks
	logger   *logger.Logger
	upgrader websocket.Upgrader
}

func NewHandler(auth middleware.TokenAuthenticator, hub *Hub, bus *commands.Bus, presence PresenceHooks, l *logger.Logger) *Handler {
	h := &Handler{
		auth:     auth,
		hub:      hub,
		bus:      bus,
		presence: presence,
		logger:   logger.OrNop(l),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	if bus != nil {
		bus.Register(events.Ping, commands.HandlerFunc(h.handlePing))
	}
	return h
}

// Connect authenticates the request, upgrades it and serves the socket until
// the client goes away.
func (h *Handler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = middleware.ExtractToken(c)
	}
	userID, err := h.auth.Authenticate(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnf("websocket upgrade failed for %s: %v", userID, err)
		return
	}

	ctx, cancel := context.WithCancel(middleware.WithUser(context.Background(), userID))
	defer cancel()

	client := NewClient(conn, userID)
	first := h.hub.Register(client)
	if h.presence != nil {
		h.presence.OnConnect(ctx, userID, client.ID, first)
	}
	go client.WriteLoop(ctx)

	h.readLoop(ctx, client)

	last := h.hub.Unregister(client)
	if h.presence != nil {
		h.presence.OnDisconnect(context.WithoutCancel(ctx), userID, client.ID, last)
	}
}

func (h *Handler) readLoop(ctx context.Context, client *Client) {
	conn := client.conn
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.logger.WarnCtx(ctx, "websocket read", zap.String("conn_id", client.ID), zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		h.dispatch(ctx, client, raw)
	}
}

func (h *Handler) dispatch(ctx context.Context, client *Client, raw []byte) {
	var in inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		h.hub.Reply(client, events.Error, httpdto.SocketError{Code: "INVALID_INPUT", Message: "malformed frame"})
		return
	}

	var cmd commands.Command
	switch in.Event {
	case events.CallSignal:
		var sig commands.SignalCallCommand
		if len(in.Data) == 0 || json.Unmarshal(in.Data, &sig) != nil {
			h.hub.Reply(client, events.Error, httpdto.SocketError{Event: in.Event, Code: "INVALID_INPUT", Message: "malformed signal"})
			return
		}
		sig.FromID = client.UserID
		cmd = sig
	case events.Ping:
		cmd = commands.PingCommand{UserID: client.UserID}
	default:
		return
	}

	if h.bus == nil {
		return
	}
	ctx = context.WithValue(ctx, clientKey{}, client)
	if _, err := h.bus.Execute(ctx, cmd); err != nil {
		h.hub.Reply(client, events.Error, socketError(in.Event, err))
	}
}

// handlePing answers only the connection that pinged.
func (h *Handler) handlePing(ctx context.Context, _ commands.Command) (commands.Result, error) {
	client, _ := ctx.Value(clientKey{}).(*Client)
	h.hub.Reply(client, events.Pong, nil)
	return commands.Result{}, nil
}

func socketError(event string, err error) httpdto.SocketError {
	status := services.HTTPStatus(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		msg = "internal error"
	}
	return httpdto.SocketError{Event: event, Code: middleware.ErrorCode(status), Message: msg}
}
