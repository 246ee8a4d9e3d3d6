package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/weiawesome/wes-io-live/party-service/internal/config"
	"github.com/weiawesome/wes-io-live/party-service/internal/domain"
	"github.com/weiawesome/wes-io-live/party-service/internal/hub"
	"github.com/weiawesome/wes-io-live/party-service/internal/service"
	"github.com/weiawesome/wes-io-live/party-service/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSHandler struct {
	hub       *hub.Hub
	service   service.PartyService
	wsCfg     config.WebSocketConfig
	opTimeout time.Duration
}

func NewWSHandler(h *hub.Hub, svc service.PartyService, wsCfg config.WebSocketConfig, opTimeout time.Duration) *WSHandler {
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}
	return &WSHandler{
		hub:       h,
		service:   svc,
		wsCfg:     wsCfg,
		opTimeout: opTimeout,
	}
}

func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	l := log.Ctx(c.Request.Context())

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), h.hub, conn, h.wsCfg)
	h.hub.Register(client)
	l.Debug().Str(log.FieldConnID, client.ID).Msg("websocket connected")

	go client.WritePump()
	go client.ReadPump(h.handleMessage, h.handleClose)
}

func (h *WSHandler) clientContext(client *hub.Client) (context.Context, context.CancelFunc) {
	ctx := log.WithStr(context.Background(), log.FieldConnID, client.ID)
	return context.WithTimeout(ctx, h.opTimeout)
}

func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	ctx, cancel := h.clientContext(client)
	defer cancel()

	cmd, err := domain.DecodeCommand(message)
	if err != nil {
		h.handleError(ctx, client, "", err)
		return
	}

	switch cmd := cmd.(type) {
	case domain.JoinCommand:
		err = h.service.HandleJoin(ctx, client, cmd)
	case domain.MessageCommand:
		err = h.service.HandleMessage(ctx, client, cmd)
	case domain.LeaveCommand:
		err = h.service.HandleLeave(ctx, client, cmd)
	case domain.VideoStateCommand:
		err = h.service.HandleVideoState(ctx, client, cmd)
	case domain.PingCommand:
		err = h.service.HandlePing(ctx, client, cmd)
	}

	if err != nil {
		h.handleError(ctx, client, cmd.CommandType(), err)
	}
}

// handleError answers auth and protocol failures with an error frame; every
// other failure is logged and the command dropped.
func (h *WSHandler) handleError(ctx context.Context, client *hub.Client, msgType string, err error) {
	l := log.Ctx(ctx)

	if domain.IsReportable(err) {
		l.Debug().Err(err).Str(log.FieldEventType, msgType).Msg("command rejected")
		client.SendMessage(domain.NewErrorMessage(domain.ErrorCode(err), err.Error()))
		return
	}

	evt := l.Error()
	if errors.Is(err, domain.ErrTransient) {
		evt = l.Warn()
	}
	evt.Err(err).Str(log.FieldEventType, msgType).Msg("command dropped")
}

func (h *WSHandler) handleClose(client *hub.Client) {
	ctx, cancel := h.clientContext(client)
	defer cancel()

	l := log.Ctx(ctx)
	if err := h.service.HandleDisconnect(ctx, client); err != nil {
		l.Warn().Err(err).Msg("disconnect cleanup failed")
	}
	l.Debug().
		Dur("connected_for", time.Since(client.Session.CreatedAt)).
		Dur("idle_for", time.Since(client.Session.LastActive())).
		Msg("websocket closed")
}

func (h *WSHandler) RegisterRoutes(r gin.IRoutes, path string) {
	r.GET(path, h.HandleWebSocket)
}
