package handler

import (
	"net/http"
	"strings"

	"relaychat/internal/domain/user"
	"relaychat/internal/services"
	"relaychat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ContactHandler struct {
	service *services.ContactService
}

func NewContactHandler(service *services.ContactService) *ContactHandler {
	return &ContactHandler{service: service}
}

func (h *ContactHandler) Request(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req httpdto.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	addresseeID, err := uuid.Parse(req.UserID)
	if err != nil {
		badRequest(c, "invalid user_id")
		return
	}
	contact, err := h.service.Request(c.Request.Context(), userID, addresseeID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromContact(contact)))
}

// List accepts an optional ?status=PENDING|ACCEPTED|REJECTED filter.
func (h *ContactHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	status := user.ContactStatus(strings.ToUpper(c.Query("status")))
	items, err := h.service.List(c.Request.Context(), userID, status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"contacts": httpdto.FromContacts(items)}))
}

func (h *ContactHandler) Accept(c *gin.Context) {
	h.respond(c, true)
}

func (h *ContactHandler) Reject(c *gin.Context) {
	h.respond(c, false)
}

func (h *ContactHandler) respond(c *gin.Context, accept bool) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	contactID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var (
		contact user.Contact
		err     error
	)
	if accept {
		contact, err = h.service.Accept(c.Request.Context(), contactID, userID)
	} else {
		contact, err = h.service.Reject(c.Request.Context(), contactID, userID)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromContact(contact)))
}
