package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/weiawesome/wes-io-collab/internal/config"
	"github.com/weiawesome/wes-io-collab/internal/domain"
	"github.com/weiawesome/wes-io-collab/internal/hub"
	"github.com/weiawesome/wes-io-collab/internal/service"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var errBadPayload = errors.New("invalid payload")

// eventHandler decodes one inbound frame and runs it.
type eventHandler func(ctx context.Context, c *hub.Client, raw []byte) error

type validator interface {
	Validate() error
}

// bind adapts a typed service method to an eventHandler. The frame is
// decoded into a fresh *T and validated before fn sees it.
func bind[T any, PT interface {
	*T
	validator
}](fn func(context.Context, *hub.Client, PT) error) eventHandler {
	return func(ctx context.Context, c *hub.Client, raw []byte) error {
		msg := PT(new(T))
		if err := json.Unmarshal(raw, msg); err != nil {
			return fmt.Errorf("%w: %v", errBadPayload, err)
		}
		if err := msg.Validate(); err != nil {
			return fmt.Errorf("%w: %v", errBadPayload, err)
		}
		return fn(ctx, c, msg)
	}
}

type WSHandler struct {
	hub      *hub.Hub
	service  service.CollabService
	wsCfg    config.WebSocketConfig
	handlers map[string]eventHandler
}

func NewWSHandler(h *hub.Hub, svc service.CollabService, wsCfg config.WebSocketConfig) *WSHandler {
	ws := &WSHandler{
		hub:     h,
		service: svc,
		wsCfg:   wsCfg,
	}
	ws.handlers = map[string]eventHandler{
		domain.MsgTypeJoinRoom:          bind(svc.HandleJoinRoom),
		domain.MsgTypeCodeChange:        bind(svc.HandleCodeChange),
		domain.MsgTypeSendChatMessage:   bind(svc.HandleSendChatMessage),
		domain.MsgTypeGetSessionTimer:   bind(svc.HandleGetSessionTimer),
		domain.MsgTypeEndSession:        bind(svc.HandleEndSession),
		domain.MsgTypeConfirmEndSession: bind(svc.HandleConfirmEndSession),
		domain.MsgTypePing:              handlePing,
	}
	return ws
}

func handlePing(ctx context.Context, c *hub.Client, raw []byte) error {
	return c.SendMessage(&domain.PongMessage{Type: domain.MsgTypePong})
}

func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	path := h.wsCfg.Path
	if path == "" {
		path = "/collab/ws"
	}
	r.GET(path, h.HandleWebSocket)
}

// HandleWebSocket upgrades the request and starts the client pumps.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	connID := uuid.New().String()
	c.Set(pkglog.FieldConnID, connID)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l := pkglog.Ctx(c.Request.Context())
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	// The request context ends with this handler; the connection outlives it.
	connLogger := pkglog.Ctx(c.Request.Context()).With().Str(pkglog.FieldConnID, connID).Logger()
	connCtx := pkglog.WithLogger(context.Background(), connLogger)

	client := hub.NewClient(connID, h.hub, conn, h.wsCfg)
	client.SetDisconnectHandler(func(cl *hub.Client) {
		h.handleDisconnect(connCtx, cl)
	})

	h.hub.Register(client)
	connLogger.Debug().Msg("websocket connected")

	go client.WritePump()
	go client.ReadPump(func(cl *hub.Client, message []byte) {
		h.handleMessage(connCtx, cl, message)
	})
}

func (h *WSHandler) handleMessage(ctx context.Context, client *hub.Client, message []byte) {
	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid message format"))
		return
	}

	handle, ok := h.handlers[base.Type]
	if !ok {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Unknown message type"))
		return
	}

	ctx = pkglog.WithFields(ctx, pkglog.FieldEvent, base.Type)
	err := handle(ctx, client, message)
	if err == nil {
		return
	}

	l := pkglog.Ctx(ctx)
	switch {
	case errors.Is(err, errBadPayload):
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid "+base.Type+" message"))
		l.Debug().Err(err).Msg("rejected malformed event")
	case service.IsProtocolError(err):
		l.Debug().Err(err).Msg("rejected event")
	default:
		l.Warn().Err(err).Msg("event failed")
	}
}

func (h *WSHandler) handleDisconnect(ctx context.Context, client *hub.Client) {
	l := pkglog.Ctx(ctx)
	if err := h.service.HandleDisconnect(ctx, client); err != nil {
		l.Warn().Err(err).Msg("disconnect cleanup failed")
	}
	l.Debug().Msg("websocket disconnected")
}
