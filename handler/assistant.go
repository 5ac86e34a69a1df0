package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mouleshgs/onboardX/service"
)

// AssistantHandler proxies questions to the external chat assistant.
type AssistantHandler struct {
	assistant *service.Assistant
}

func NewAssistantHandler(assistant *service.Assistant) *AssistantHandler {
	return &AssistantHandler{assistant: assistant}
}

type AssistantRequest struct {
	Query string `json:"query" binding:"required"`
}

// Query forwards the question and returns the answer verbatim.
func (h *AssistantHandler) Query(c *gin.Context) {
	var req AssistantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query required"})
		return
	}

	answer, err := h.assistant.Query(c.Request.Context(), req.Query)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer})
}
