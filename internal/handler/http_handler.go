package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-live/party-service/internal/auth"
	"github.com/weiawesome/wes-io-live/party-service/internal/domain"
	"github.com/weiawesome/wes-io-live/party-service/internal/hub"
	"github.com/weiawesome/wes-io-live/party-service/internal/service"
	"github.com/weiawesome/wes-io-live/party-service/pkg/log"
	"github.com/weiawesome/wes-io-live/party-service/pkg/middleware"
	"github.com/weiawesome/wes-io-live/party-service/pkg/response"
)

// Handler handles HTTP requests for party-service.
type Handler struct {
	hub         *hub.Hub
	roomService service.RoomService
	validator   middleware.TokenValidator
	instanceID  string
}

// NewHandler creates a new HTTP handler.
func NewHandler(h *hub.Hub, roomService service.RoomService, validator middleware.TokenValidator, instanceID string) *Handler {
	return &Handler{
		hub:         h,
		roomService: roomService,
		validator:   validator,
		instanceID:  instanceID,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/party/:id", h.RedirectToParty)

	requireAuth := middleware.RequireAuth(h.validator)

	api := r.Group("/api/v1")
	{
		rooms := api.Group("/rooms")
		{
			// Public routes
			rooms.GET("/:id", h.GetRoom)

			// Protected routes
			rooms.POST("", requireAuth, h.CreateRoom)
			rooms.GET("/my", requireAuth, h.GetMyRooms)
			rooms.POST("/:id/messages", requireAuth, h.PostMessage)
		}
	}
}

// Health reports liveness and local connection counts.
func (h *Handler) Health(c *gin.Context) {
	stats := h.hub.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"instance": h.instanceID,
		"clients":  stats.Clients,
		"rooms":    stats.Rooms,
	})
}

// CreateRoom creates a new room with a generated id.
func (h *Handler) CreateRoom(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	userID := middleware.GetUserID(c)
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req domain.CreateRoomRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			l.Warn().Err(err).Msg("failed to bind create room request")
			response.BadRequest(c, err.Error())
			return
		}
	}

	room, err := h.roomService.CreateRoom(ctx, userID, &req)
	if err != nil {
		l.Error().Err(err).Msg("failed to create room")
		h.writeError(c, err, "failed to create room")
		return
	}

	response.Created(c, room)
}

// GetRoom returns the live state of a room.
func (h *Handler) GetRoom(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	roomID := c.Param("id")

	info, err := h.roomService.GetRoomInfo(ctx, roomID)
	if err != nil {
		if !errors.Is(err, domain.ErrRoomNotFound) {
			l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to get room")
		}
		h.writeError(c, err, "failed to get room")
		return
	}

	response.Success(c, info)
}

// GetMyRooms lists the rooms created by the caller.
func (h *Handler) GetMyRooms(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	userID := middleware.GetUserID(c)
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	rooms, err := h.roomService.ListMyRooms(ctx, userID)
	if err != nil {
		if errors.Is(err, service.ErrCatalogDisabled) {
			response.Unavailable(c, err.Error())
			return
		}
		l.Error().Err(err).Msg("failed to list rooms")
		response.InternalError(c, "failed to list rooms")
		return
	}

	response.Success(c, rooms)
}

// PostMessage broadcasts a chat message to a room on behalf of the caller.
func (h *Handler) PostMessage(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	roomID := c.Param("id")

	var req domain.PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	id := auth.IdentityFor(middleware.GetUserID(c), middleware.GetUsername(c))
	msg, err := h.roomService.PostMessage(ctx, id, roomID, req.Content)
	if err != nil {
		if !errors.Is(err, domain.ErrRoomNotFound) {
			l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to post message")
		}
		h.writeError(c, err, "failed to post message")
		return
	}

	response.Success(c, msg)
}

// RedirectToParty sends the caller to the room's video link.
func (h *Handler) RedirectToParty(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	roomID := c.Param("id")
	token := c.Query("token")
	if token == "" {
		response.Unauthorized(c, "authentication token required")
		return
	}

	link, err := h.roomService.ResolvePartyLink(ctx, token, roomID)
	if err != nil {
		if errors.Is(err, service.ErrLinkNotSet) {
			response.BadRequest(c, "no video link set for this room")
			return
		}
		if !domain.IsReportable(err) {
			l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to resolve party link")
		}
		h.writeError(c, err, "failed to resolve party link")
		return
	}

	c.Redirect(http.StatusFound, link)
}

func (h *Handler) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrAuth):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, domain.ErrRoomNotFound):
		response.NotFound(c, "room not found")
	case errors.Is(err, domain.ErrProtocol):
		response.BadRequest(c, err.Error())
	case errors.Is(err, domain.ErrTransient):
		response.Unavailable(c, fallback)
	default:
		response.InternalError(c, fallback)
	}
}
