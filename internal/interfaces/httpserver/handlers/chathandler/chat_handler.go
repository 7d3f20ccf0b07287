// Package chathandler exposes the chat turn endpoint.
package chathandler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/markusbegerow/local-llm-server/internal/domain/chat"
	"github.com/markusbegerow/local-llm-server/internal/domain/conversation"
	"github.com/markusbegerow/local-llm-server/internal/interfaces/httpserver/middlewares"
	"github.com/markusbegerow/local-llm-server/internal/utils/platformerrors"
)

// ChatHandler handles chat HTTP requests.
type ChatHandler struct {
	service *chat.Service
	logger  zerolog.Logger
}

// NewChatHandler constructs a new handler instance.
func NewChatHandler(service *chat.Service, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{service: service, logger: logger}
}

// SendMessageRequest is one inbound chat turn.
type SendMessageRequest struct {
	ConversationID *int64 `json:"conversationId"`
	ConfigID       *int64 `json:"configId"`
	Message        string `json:"message"`
}

// MessageResponse is the JSON form of a persisted message.
type MessageResponse struct {
	ID             int64  `json:"id"`
	ConversationID int64  `json:"conversationId"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	TokensUsed     *int   `json:"tokensUsed"`
	CreatedAt      int64  `json:"createdAt"`
}

// SendMessageResponse carries both persisted turns.
type SendMessageResponse struct {
	ConversationID   int64           `json:"conversationId"`
	UserMessage      MessageResponse `json:"userMessage"`
	AssistantMessage MessageResponse `json:"assistantMessage"`
}

// SendMessage handles POST /api/chat.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	ownerID := middlewares.OwnerFromContext(c)

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		platformerrors.WriteValidationError(c, "invalid request body")
		return
	}

	result, err := h.service.SendMessage(c.Request.Context(), ownerID, chat.SendMessageInput{
		ConversationID: req.ConversationID,
		ConfigID:       req.ConfigID,
		Message:        req.Message,
	})
	if err != nil {
		h.setRateLimitHeader(c, ownerID)
		platformerrors.WriteError(c, err, h.logger)
		return
	}

	h.setRateLimitHeader(c, ownerID)
	c.JSON(http.StatusOK, SendMessageResponse{
		ConversationID:   result.ConversationID,
		UserMessage:      toMessageResponse(result.UserMessage),
		AssistantMessage: toMessageResponse(result.AssistantMessage),
	})
}

func (h *ChatHandler) setRateLimitHeader(c *gin.Context, ownerID string) {
	remaining, err := h.service.Remaining(c.Request.Context(), ownerID)
	if err != nil {
		return
	}
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
}

func toMessageResponse(msg *conversation.Message) MessageResponse {
	return MessageResponse{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Role:           msg.Role,
		Content:        msg.Content,
		TokensUsed:     msg.TokensUsed,
		CreatedAt:      msg.CreatedAt,
	}
}
