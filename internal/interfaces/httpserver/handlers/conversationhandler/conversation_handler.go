// Package conversationhandler exposes conversation management endpoints.
package conversationhandler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/markusbegerow/local-llm-server/internal/domain/conversation"
	"github.com/markusbegerow/local-llm-server/internal/interfaces/httpserver/middlewares"
	"github.com/markusbegerow/local-llm-server/internal/utils/platformerrors"
)

// ConversationHandler handles conversation HTTP requests.
type ConversationHandler struct {
	service *conversation.Service
	logger  zerolog.Logger
}

// NewConversationHandler constructs a new handler instance.
func NewConversationHandler(service *conversation.Service, logger zerolog.Logger) *ConversationHandler {
	return &ConversationHandler{service: service, logger: logger}
}

// RenameRequest renames a conversation.
type RenameRequest struct {
	Name string `json:"name"`
}

// ConversationResponse is the JSON form of a conversation.
type ConversationResponse struct {
	ID           int64  `json:"id"`
	ConfigID     int64  `json:"configId"`
	Name         string `json:"name"`
	Active       bool   `json:"active"`
	CreatedAt    int64  `json:"createdAt"`
	UpdatedAt    int64  `json:"updatedAt"`
	MessageCount int64  `json:"messageCount"`
	Preview      string `json:"preview,omitempty"`
}

// MessageResponse is the JSON form of a message.
type MessageResponse struct {
	ID             int64  `json:"id"`
	ConversationID int64  `json:"conversationId"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	TokensUsed     *int   `json:"tokensUsed"`
	CreatedAt      int64  `json:"createdAt"`
}

// List handles GET /api/conversations.
func (h *ConversationHandler) List(c *gin.Context) {
	ownerID := middlewares.OwnerFromContext(c)
	activeOnly := c.DefaultQuery("active", "true") == "true"

	summaries, err := h.service.List(c.Request.Context(), ownerID, activeOnly)
	if err != nil {
		platformerrors.WriteError(c, err, h.logger)
		return
	}

	result := make([]ConversationResponse, 0, len(summaries))
	for _, summary := range summaries {
		result = append(result, ConversationResponse{
			ID:           summary.ID,
			ConfigID:     summary.ConfigID,
			Name:         summary.Name,
			Active:       summary.Active,
			CreatedAt:    summary.CreatedAt,
			UpdatedAt:    summary.UpdatedAt,
			MessageCount: summary.MessageCount,
			Preview:      summary.Preview,
		})
	}
	c.JSON(http.StatusOK, result)
}

// Get handles GET /api/conversations/:id.
func (h *ConversationHandler) Get(c *gin.Context) {
	ownerID := middlewares.OwnerFromContext(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	conv, err := h.service.Get(c.Request.Context(), id, ownerID)
	if err != nil {
		platformerrors.WriteError(c, err, h.logger)
		return
	}
	count, err := h.service.MessageCount(c.Request.Context(), conv.ID)
	if err != nil {
		platformerrors.WriteError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, ConversationResponse{
		ID:           conv.ID,
		ConfigID:     conv.ConfigID,
		Name:         conv.Name,
		Active:       conv.Active,
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
		MessageCount: count,
	})
}

// Messages handles GET /api/conversations/:id/messages.
func (h *ConversationHandler) Messages(c *gin.Context) {
	ownerID := middlewares.OwnerFromContext(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	msgs, err := h.service.Messages(c.Request.Context(), id, ownerID)
	if err != nil {
		platformerrors.WriteError(c, err, h.logger)
		return
	}

	result := make([]MessageResponse, 0, len(msgs))
	for _, msg := range msgs {
		result = append(result, MessageResponse{
			ID:             msg.ID,
			ConversationID: msg.ConversationID,
			Role:           msg.Role,
			Content:        msg.Content,
			TokensUsed:     msg.TokensUsed,
			CreatedAt:      msg.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, result)
}

// Rename handles PUT /api/conversations/:id.
func (h *ConversationHandler) Rename(c *gin.Context) {
	ownerID := middlewares.OwnerFromContext(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		platformerrors.WriteValidationError(c, "invalid request body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		platformerrors.WriteValidationError(c, "name cannot be empty")
		return
	}

	conv, err := h.service.Rename(c.Request.Context(), id, ownerID, name)
	if err != nil {
		platformerrors.WriteError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, ConversationResponse{
		ID:        conv.ID,
		ConfigID:  conv.ConfigID,
		Name:      conv.Name,
		Active:    conv.Active,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	})
}

// Clear handles POST /api/conversations/:id/clear.
func (h *ConversationHandler) Clear(c *gin.Context) {
	ownerID := middlewares.OwnerFromContext(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.Clear(c.Request.Context(), id, ownerID); err != nil {
		platformerrors.WriteError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Delete handles DELETE /api/conversations/:id.
func (h *ConversationHandler) Delete(c *gin.Context) {
	ownerID := middlewares.OwnerFromContext(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id, ownerID); err != nil {
		platformerrors.WriteError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		platformerrors.WriteValidationError(c, "invalid id")
		return 0, false
	}
	return id, true
}
