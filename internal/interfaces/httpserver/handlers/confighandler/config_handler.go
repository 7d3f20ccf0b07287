// Package confighandler exposes CRUD for LLM endpoint configurations.
package confighandler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/markusbegerow/local-llm-server/internal/domain/chat"
	"github.com/markusbegerow/local-llm-server/internal/domain/llmconfig"
	"github.com/markusbegerow/local-llm-server/internal/interfaces/httpserver/middlewares"
	"github.com/markusbegerow/local-llm-server/internal/utils/platformerrors"
)

// ConfigHandler handles configuration HTTP requests.
type ConfigHandler struct {
	service *llmconfig.Service
	chat    *chat.Service
	logger  zerolog.Logger
}

// NewConfigHandler constructs a new handler instance.
func NewConfigHandler(service *llmconfig.Service, chatService *chat.Service, logger zerolog.Logger) *ConfigHandler {
	return &ConfigHandler{service: service, chat: chatService, logger: logger}
}

// CreateConfigRequest creates a configuration. The token travels in
// plaintext over the (internal) wire and is encrypted before persistence.
// Omitted temperature/maxTokens fall back to the service defaults.
type CreateConfigRequest struct {
	Name               string   `json:"name"`
	APIURL             string   `json:"apiUrl"`
	APIToken           string   `json:"apiToken"`
	ModelName          string   `json:"modelName"`
	Temperature        *float64 `json:"temperature"`
	MaxTokens          *int     `json:"maxTokens"`
	SystemPrompt       string   `json:"systemPrompt"`
	MaxHistoryMessages int      `json:"maxHistoryMessages"`
	RequestTimeoutMS   int      `json:"requestTimeoutMs"`
	IsDefault          bool     `json:"isDefault"`
}

// UpdateConfigRequest is a partial update; omitted fields are untouched.
type UpdateConfigRequest struct {
	Name               *string  `json:"name"`
	APIURL             *string  `json:"apiUrl"`
	APIToken           *string  `json:"apiToken"`
	ModelName          *string  `json:"modelName"`
	Temperature        *float64 `json:"temperature"`
	MaxTokens          *int     `json:"maxTokens"`
	SystemPrompt       *string  `json:"systemPrompt"`
	MaxHistoryMessages *int     `json:"maxHistoryMessages"`
	RequestTimeoutMS   *int     `json:"requestTimeoutMs"`
	Active             *bool    `json:"active"`
}

// ConfigResponse is the JSON form of a configuration. The credential never
// leaves the server; only its presence is reported.
type ConfigResponse struct {
	ID                 int64   `json:"id"`
	Name               string  `json:"name"`
	APIURL             string  `json:"apiUrl"`
	HasAPIToken        bool    `json:"hasApiToken"`
	ModelName          string  `json:"modelName"`
	Temperature        float64 `json:"temperature"`
	MaxTokens          int     `json:"maxTokens"`
	SystemPrompt       string  `json:"systemPrompt"`
	MaxHistoryMessages int     `json:"maxHistoryMessages"`
	RequestTimeoutMS   int     `json:"requestTimeoutMs"`
	IsDefault          bool    `json:"isDefault"`
	Active             bool    `json:"active"`
	CreatedAt          int64   `json:"createdAt"`
	UpdatedAt          int64   `json:"updatedAt"`
}

// Create handles POST /api/configs.
func (h *ConfigHandler) Create(c *gin.Context) {
	ownerID := middlewares.OwnerFromContext(c)

	var req CreateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		platformerrors.WriteValidationError(c, "invalid request body")
		return
	}

	cfg, err := h.service.Create(c.Request.Context(), ownerID, llmconfig.CreateInput{
		Name:               req.Name,
		APIURL:             req.APIURL,
		APIToken:           req.APIToken,
		ModelName:          req.ModelName,
		Temperature:        req.Temperature,
		MaxTokens:          req.MaxTokens,
		SystemPrompt:       req.SystemPrompt,
		MaxHistoryMessages: req.MaxHistoryMessages,
		RequestTimeoutMS:   req.RequestTimeoutMS,
		IsDefault:          req.IsDefault,
	})
	if err != nil {
		platformerrors.WriteError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusCreated, toConfigResponse(cfg))
}

// List handles GET /api/configs.
func (h *ConfigHandler) List(c *gin.Context) {
	ownerID := middlewares.OwnerFromContext(c)
	activeOnly := c.Query("active") == "true"

	configs, err := h.service.List(c.Request.Context(), ownerID, activeOnly)
	if err != nil {
		platformerrors.WriteError(c, err, h.logger)
		return
	}

	result := make([]ConfigResponse, 0, len(configs))
	for _, cfg := range configs {
		result = append(result, toConfigResponse(cfg))
	}
	c.JSON(http.StatusOK, result)
}

// Get handles GET /api/configs/:id.
func (h *ConfigHandler) Get(c *gin.Context) {
	ownerID := middlewares.OwnerFromContext(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	cfg, err := h.service.Get(c.Request.Context(), id, ownerID)
	if err != nil {
		platformerrors.WriteError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, toConfigResponse(cfg))
}

// Update handles PUT /api/configs/:id.
func (h *ConfigHandler) Update(c *gin.Context) {
	ownerID := middlewares.OwnerFromContext(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		platformerrors.WriteValidationError(c, "invalid request body")
		return
	}

	cfg, err := h.service.Update(c.Request.Context(), id, ownerID, llmconfig.Patch{
		Name:               req.Name,
		APIURL:             req.APIURL,
		APIToken:           req.APIToken,
		ModelName:          req.ModelName,
		Temperature:        req.Temperature,
		MaxTokens:          req.MaxTokens,
		SystemPrompt:       req.SystemPrompt,
		MaxHistoryMessages: req.MaxHistoryMessages,
		RequestTimeoutMS:   req.RequestTimeoutMS,
		Active:             req.Active,
	})
	if err != nil {
		platformerrors.WriteError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, toConfigResponse(cfg))
}

// Delete handles DELETE /api/configs/:id.
func (h *ConfigHandler) Delete(c *gin.Context) {
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

// SetDefault handles POST /api/configs/:id/default.
func (h *ConfigHandler) SetDefault(c *gin.Context) {
	ownerID := middlewares.OwnerFromContext(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	cfg, err := h.service.SetDefault(c.Request.Context(), id, ownerID)
	if err != nil {
		platformerrors.WriteError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, toConfigResponse(cfg))
}

// TestConnection handles POST /api/configs/:id/test.
func (h *ConfigHandler) TestConnection(c *gin.Context) {
	ownerID := middlewares.OwnerFromContext(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.chat.TestConnection(c.Request.Context(), ownerID, id); err != nil {
		platformerrors.WriteError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Connection successful! Model is responding.",
	})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		platformerrors.WriteValidationError(c, "invalid id")
		return 0, false
	}
	return id, true
}

func toConfigResponse(cfg *llmconfig.Config) ConfigResponse {
	return ConfigResponse{
		ID:                 cfg.ID,
		Name:               cfg.Name,
		APIURL:             cfg.APIURL,
		HasAPIToken:        cfg.APITokenEncrypted != "",
		ModelName:          cfg.ModelName,
		Temperature:        cfg.Temperature,
		MaxTokens:          cfg.MaxTokens,
		SystemPrompt:       cfg.SystemPrompt,
		MaxHistoryMessages: cfg.MaxHistoryMessages,
		RequestTimeoutMS:   cfg.RequestTimeoutMS,
		IsDefault:          cfg.IsDefault,
		Active:             cfg.Active,
		CreatedAt:          cfg.CreatedAt,
		UpdatedAt:          cfg.UpdatedAt,
	}
}
