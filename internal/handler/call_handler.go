package handler

import (
	"net/http"

	"relaychat/internal/commands"
	"relaychat/internal/services"
	"relaychat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CallHandler struct {
	service *services.CallService
	ice     *services.ICEService
}

func NewCallHandler(service *services.CallService, ice *services.ICEService) *CallHandler {
	return &CallHandler{service: service, ice: ice}
}

func (h *CallHandler) Initiate(c *gin.Context) {
	callerID, ok := currentUser(c)
	if !ok {
		return
	}
	var req httpdto.CreateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	receiverID, err := uuid.Parse(req.ReceiverID)
	if err != nil {
		badRequest(c, "invalid receiver_id")
		return
	}

	item, err := h.service.Initiate(c.Request.Context(), commands.InitiateCallCommand{
		CallerID:   callerID,
		ReceiverID: receiverID,
		CallType:   req.Type,
		RoomID:     req.RoomID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromCall(item)))
}

func (h *CallHandler) GetByID(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	callID, ok := paramID(c, "id")
	if !ok {
		return
	}
	item, err := h.service.Get(c.Request.Context(), callID, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromCall(item)))
}

func (h *CallHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	page, limit := pagination(c)
	items, total, err := h.service.List(c.Request.Context(), userID, page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ListCallsResponse{Calls: httpdto.FromCalls(items), Total: total}))
}

func (h *CallHandler) Active(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	items, err := h.service.Active(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ListCallsResponse{Calls: httpdto.FromCalls(items), Total: int64(len(items))}))
}

func (h *CallHandler) Answer(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	callID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req httpdto.AnswerCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	item, err := h.service.Answer(c.Request.Context(), callID, userID, *req.Accepted)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromCall(item)))
}

// Transition applies one state machine verb. Raw status values are refused.
func (h *CallHandler) Transition(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	callID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req httpdto.TransitionCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "action is required")
		return
	}
	item, err := h.service.Transition(c.Request.Context(), commands.TransitionCallCommand{
		CallID:  callID,
		ActorID: userID,
		Action:  req.Action,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromCall(item)))
}

func (h *CallHandler) End(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	callID, ok := paramID(c, "id")
	if !ok {
		return
	}
	item, err := h.service.End(c.Request.Context(), callID, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromCall(item)))
}

// ICEServers returns STUN servers and, when configured, short lived TURN
// credentials for the caller.
func (h *CallHandler) ICEServers(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	servers, ttl := h.ice.Servers(userID)
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ICEServersResponse{ICEServers: servers, TTL: ttl}))
}
