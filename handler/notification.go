package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mouleshgs/onboardX/middleware"
	"github.com/mouleshgs/onboardX/service"
)

// NotificationHandler serves the nudge inbox.
type NotificationHandler struct {
	store *service.NotificationStore
}

func NewNotificationHandler(store *service.NotificationStore) *NotificationHandler {
	return &NotificationHandler{store: store}
}

// List returns notifications for an email. Distributors are pinned to
// their own inbox regardless of the query parameter.
func (h *NotificationHandler) List(c *gin.Context) {
	email := c.Query("email")
	if middleware.GetRole(c) == middleware.RoleDistributor || email == "" {
		email = middleware.GetEmail(c)
	}

	c.JSON(http.StatusOK, gin.H{"notifications": h.store.ListByRecipient(email)})
}

type MarkReadRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// MarkRead flips the given notifications to read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	var req MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"marked": h.store.MarkRead(req.IDs)})
}
