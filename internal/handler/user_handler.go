package handler

import (
	"net/http"

	"relaychat/internal/domain/user"
	"relaychat/internal/services"
	"relaychat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	service  *services.UserService
	presence *services.PresenceService
}

func NewUserHandler(service *services.UserService, presence *services.PresenceService) *UserHandler {
	return &UserHandler{service: service, presence: presence}
}

func (h *UserHandler) Search(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	page, limit := pagination(c)
	items, total, err := h.service.Search(c.Request.Context(), c.Query("q"), page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ListUsersResponse{Users: toSummaries(items), Total: total}))
}

func (h *UserHandler) GetByID(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	u, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromUser(u)))
}

// Presence is visible to the user and their accepted contacts.
func (h *UserHandler) Presence(c *gin.Context) {
	viewerID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	status, err := h.presence.Status(c.Request.Context(), viewerID, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(status))
}

func toSummaries(items []user.User) []httpdto.UserSummaryDTO {
	out := make([]httpdto.UserSummaryDTO, 0, len(items))
	for _, u := range items {
		out = append(out, httpdto.FromUser(u))
	}
	return out
}
