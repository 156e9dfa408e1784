package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"relaychat/internal/commands"
	"relaychat/internal/domain/conversation"
	"relaychat/internal/services"
	"relaychat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ConversationHandler struct {
	service *services.ConversationService
}

func NewConversationHandler(service *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

func (h *ConversationHandler) CreateDirect(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req httpdto.CreateDirectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	otherID, err := uuid.Parse(req.UserID)
	if err != nil {
		badRequest(c, "invalid user_id")
		return
	}
	conv, err := h.service.GetOrCreateDirect(c.Request.Context(), userID, otherID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromConversation(conv)))
}

func (h *ConversationHandler) CreateGroup(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req httpdto.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	members := make([]uuid.UUID, 0, len(req.MemberIDs))
	for _, raw := range req.MemberIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "invalid member id")
			return
		}
		members = append(members, id)
	}

	conv, err := h.service.CreateGroup(c.Request.Context(), commands.CreateGroupCommand{
		CreatorID: userID,
		Name:      req.Name,
		MemberIDs: members,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromConversation(conv)))
}

func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	items, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"conversations": httpdto.FromConversations(items)}))
}

func (h *ConversationHandler) SendMessage(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	convID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	m, err := h.service.SendMessage(c.Request.Context(), commands.SendMessageCommand{
		ConversationID: convID,
		SenderID:       userID,
		Type:           req.Type,
		Content:        req.Content,
		AttachmentKey:  req.AttachmentKey,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(h.service.MessageDTO(m)))
}

// ListMessages pages backwards with ?before=<RFC3339>&limit=.
func (h *ConversationHandler) ListMessages(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	convID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var before time.Time
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			badRequest(c, "invalid before")
			return
		}
		before = t
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	msgs, err := h.service.ListMessages(c.Request.Context(), convID, userID, before, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]httpdto.MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, h.service.MessageDTO(m))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ListMessagesResponse{Messages: out}))
}

func (h *ConversationHandler) UpdateSettings(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	convID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req httpdto.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	p, err := h.service.UpdateSettings(c.Request.Context(), convID, userID, conversation.Settings{
		Wallpaper: req.Wallpaper,
		Muted:     req.Muted,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromParticipant(p)))
}

func (h *ConversationHandler) AddMember(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}
	convID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req httpdto.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	memberID, err := uuid.Parse(req.UserID)
	if err != nil {
		badRequest(c, "invalid user_id")
		return
	}
	p, err := h.service.AddMember(c.Request.Context(), convID, actorID, memberID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromParticipant(p)))
}

func (h *ConversationHandler) ChangeRole(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}
	convID, ok := paramID(c, "id")
	if !ok {
		return
	}
	memberID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	var req httpdto.ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	role := conversation.Role(strings.ToUpper(strings.TrimSpace(req.Role)))
	if err := h.service.ChangeRole(c.Request.Context(), convID, actorID, memberID, role); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}
