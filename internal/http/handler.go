package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"parking-gate/internal/repository"
	"parking-gate/internal/service"
)

type Handler struct {
	status    *service.StatusService
	allocator service.Allocator
	log       zerolog.Logger
}

func NewHandler(
	status *service.StatusService,
	allocator service.Allocator,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		status:    status,
		allocator: allocator,
		log:       log,
	}
}

func (h *Handler) Register(r *gin.Engine, hub *Hub, authMiddleware gin.HandlerFunc) {
	// Public endpoints
	public := r.Group("/api/v1")
	{
		public.GET("/slots", h.listSlots)
		public.GET("/sessions", h.listSessions)
		public.GET("/sessions/search", h.searchVehicle)
		public.GET("/events", h.listEvents)
	}

	// Protected endpoints: manual gate overrides and admin cleanup
	protected := r.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.POST("/gate/entry", h.manualEntry)
		protected.POST("/gate/exit", h.manualExit)
		protected.DELETE("/sessions/:id", h.deleteSession)
	}

	r.GET("/ws", hub.HandleWebSocket)
}

func (h *Handler) listSlots(c *gin.Context) {
	slots, err := h.status.SlotMap(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(slots))
}

func (h *Handler) listSessions(c *gin.Context) {
	filter := repository.SessionFilter{Limit: 50}

	if v := strings.TrimSpace(c.Query("vehicle")); v != "" {
		filter.VehicleNumber = &v
	}
	filter.ActiveOnly = c.Query("active") == "true"

	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			filter.Limit = parsed
		}
	}
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			filter.Offset = parsed
		}
	}

	sessions, err := h.status.Sessions(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(sessions))
}

func (h *Handler) searchVehicle(c *gin.Context) {
	vehicle := strings.TrimSpace(strings.ToUpper(c.Query("vehicle")))
	if vehicle == "" {
		c.JSON(http.StatusBadRequest, errorResponse("vehicle parameter is required"))
		return
	}

	sessions, err := h.status.SearchVehicle(c.Request.Context(), vehicle)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(sessions))
}

func (h *Handler) listEvents(c *gin.Context) {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	events, err := h.status.Events(c.Request.Context(), limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(events))
}

type entryRequest struct {
	VehicleNumber string `json:"vehicle_number" binding:"required"`
	IsEV          bool   `json:"is_ev"`
}

func (h *Handler) manualEntry(c *gin.Context) {
	var payload entryRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	vehicle := strings.TrimSpace(strings.ToUpper(payload.VehicleNumber))
	result, err := h.allocator.Entry(c.Request.Context(), vehicle, payload.IsEV)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      result.Status,
		"slot_number": result.SlotNumber,
	})
}

type exitRequest struct {
	VehicleNumber string `json:"vehicle_number" binding:"required"`
}

func (h *Handler) manualExit(c *gin.Context) {
	var payload exitRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	vehicle := strings.TrimSpace(strings.ToUpper(payload.VehicleNumber))
	result, err := h.allocator.Exit(c.Request.Context(), vehicle)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      result.Status,
		"slot_number": result.SlotNumber,
	})
}

func (h *Handler) deleteSession(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid session id"))
		return
	}

	if err := h.status.DeleteSession(c.Request.Context(), id); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
