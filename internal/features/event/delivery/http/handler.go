package http

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	apperrors "giveaway-poll-backend/internal/common/errors"
	"giveaway-poll-backend/internal/common/middleware"
	"giveaway-poll-backend/internal/common/validation"
	"giveaway-poll-backend/internal/features/event/mapper"
	"giveaway-poll-backend/internal/features/event/models"
	"giveaway-poll-backend/internal/features/event/models/dto"
	"giveaway-poll-backend/internal/features/event/service"
)

// Sweeper runs one expiry pass on demand.
type Sweeper interface {
	Tick(ctx context.Context) int
}

var registerValidatorsOnce sync.Once

// RegisterBindingValidators adds the custom struct tags to gin's validator.
func RegisterBindingValidators() {
	registerValidatorsOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			if err := validation.RegisterValidators(v); err != nil {
				panic(err)
			}
		}
	})
}

// EventHandler serves one event domain (giveaways or polls) under basePath.
type EventHandler struct {
	basePath  string
	lifecycle *service.LifecycleService
	sweeper   Sweeper
}

func NewEventHandler(basePath string, lifecycle *service.LifecycleService, sweeper Sweeper) *EventHandler {
	RegisterBindingValidators()
	return &EventHandler{
		basePath:  basePath,
		lifecycle: lifecycle,
		sweeper:   sweeper,
	}
}

func (h *EventHandler) RegisterRoutes(router *gin.RouterGroup) {
	events := router.Group(h.basePath)
	{
		events.POST("", h.create)
		if h.sweeper != nil {
			events.POST("/sweep", h.sweep)
		}
		events.GET("/:scope", h.listOpen)
		events.GET("/:scope/:ref", h.get)
		events.POST("/:scope/:ref/join", h.join)
		events.POST("/:scope/:ref/leave", h.leave)
		events.POST("/:scope/:ref/close", h.close)
		events.POST("/:scope/:ref/pause", h.pause)
		events.POST("/:scope/:ref/resume", h.resume)
		events.PUT("/:scope/:ref/subject", h.attachSubject)
	}
}

// warning returns the message of a persistence error, or reports the error
// and false for anything else. A nil error passes through as "", true.
func warning(c *gin.Context, err error) (string, bool) {
	if err == nil {
		return "", true
	}
	if apperrors.IsCode(err, apperrors.ErrCodePersistence) {
		return err.Error(), true
	}
	middleware.RespondError(c, err)
	return "", false
}

func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		middleware.RespondError(c, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid request body").WithDetail("reason", err.Error()))
		return false
	}
	return true
}

func (h *EventHandler) resolve(c *gin.Context) (models.Key, bool) {
	key, err := h.lifecycle.Resolve(c.Param("scope"), c.Param("ref"))
	if err != nil {
		middleware.RespondError(c, err)
		return "", false
	}
	return key, true
}

func (h *EventHandler) create(c *gin.Context) {
	var req dto.CreateEventRequest
	if !bindJSON(c, &req) {
		return
	}
	createReq, err := mapper.ToCreateRequest(req)
	if err != nil {
		middleware.RespondError(c, apperrors.NewValidationError("duration", err.Error()))
		return
	}

	e, err := h.lifecycle.Create(c.Request.Context(), createReq)
	warn, ok := warning(c, err)
	if !ok {
		return
	}
	resp := mapper.ToEventResponse(e.Key(), e)
	resp.Warning = warn
	c.JSON(http.StatusCreated, resp)
}

func (h *EventHandler) listOpen(c *gin.Context) {
	c.JSON(http.StatusOK, mapper.ToEventListResponse(h.lifecycle.ListOpen(c.Param("scope"))))
}

func (h *EventHandler) get(c *gin.Context) {
	key, ok := h.resolve(c)
	if !ok {
		return
	}
	e, err := h.lifecycle.Get(key)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.ToEventResponse(key, e))
}

func (h *EventHandler) join(c *gin.Context) {
	key, ok := h.resolve(c)
	if !ok {
		return
	}
	var req dto.JoinRequest
	if !bindJSON(c, &req) {
		return
	}

	var (
		result service.JoinResult
		err    error
	)
	if req.Attributes != nil {
		result, err = h.lifecycle.Join(c.Request.Context(), key, req.ParticipantID, *req.Attributes, req.OptionID)
	} else {
		result, err = h.lifecycle.JoinMember(c.Request.Context(), key, req.ParticipantID, req.OptionID)
	}
	if _, ok := warning(c, err); !ok {
		return
	}

	status := http.StatusOK
	switch result.Status {
	case service.JoinRejected:
		status = http.StatusForbidden
	case service.JoinAlreadyJoined:
		status = http.StatusConflict
	}
	c.JSON(status, mapper.ToJoinResponse(result))
}

func (h *EventHandler) leave(c *gin.Context) {
	key, ok := h.resolve(c)
	if !ok {
		return
	}
	var req dto.LeaveRequest
	if !bindJSON(c, &req) {
		return
	}
	warn, ok := warning(c, h.lifecycle.Leave(c.Request.Context(), key, req.ParticipantID))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "left", "warning": warn})
}

func (h *EventHandler) close(c *gin.Context) {
	key, ok := h.resolve(c)
	if !ok {
		return
	}
	var req dto.CloseRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.lifecycle.ForceClose(c.Request.Context(), key, req.RequestedBy)
	if _, ok := warning(c, err); !ok {
		return
	}

	status := http.StatusOK
	if result.Status == service.CloseAlreadyClosed {
		status = http.StatusConflict
	}
	c.JSON(status, mapper.ToCloseResponse(key, result))
}

func (h *EventHandler) pause(c *gin.Context) {
	h.changeStatus(c, h.lifecycle.Pause)
}

func (h *EventHandler) resume(c *gin.Context) {
	h.changeStatus(c, h.lifecycle.Resume)
}

func (h *EventHandler) changeStatus(c *gin.Context, op func(context.Context, models.Key) (*models.Event, error)) {
	key, ok := h.resolve(c)
	if !ok {
		return
	}
	e, err := op(c.Request.Context(), key)
	h.respondEvent(c, key, e, err)
}

func (h *EventHandler) attachSubject(c *gin.Context) {
	key, ok := h.resolve(c)
	if !ok {
		return
	}
	var req dto.SubjectRequest
	if !bindJSON(c, &req) {
		return
	}
	e, err := h.lifecycle.AttachSubject(c.Request.Context(), key, req.SubjectRef)
	h.respondEvent(c, key, e, err)
}

func (h *EventHandler) respondEvent(c *gin.Context, key models.Key, e *models.Event, err error) {
	warn, ok := warning(c, err)
	if !ok {
		return
	}
	resp := mapper.ToEventResponse(key, e)
	resp.Warning = warn
	c.JSON(http.StatusOK, resp)
}

func (h *EventHandler) sweep(c *gin.Context) {
	c.JSON(http.StatusOK, dto.SweepResponse{Closed: h.sweeper.Tick(c.Request.Context())})
}
