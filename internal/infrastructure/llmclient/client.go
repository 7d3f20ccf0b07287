// Package llmclient issues chat-completion calls to a remote
// OpenAI-compatible endpoint.
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"resty.dev/v3"

	"github.com/markusbegerow/local-llm-server/internal/domain/conversation"
	"github.com/markusbegerow/local-llm-server/internal/domain/llmconfig"
	"github.com/markusbegerow/local-llm-server/internal/infrastructure/logger"
	"github.com/markusbegerow/local-llm-server/internal/utils/platformerrors"
)

// User-facing upstream failure messages.
const (
	msgCannotConnect      = "Cannot connect to LLM server. Please check the configuration."
	msgUnexpectedResponse = "Unexpected response from LLM server"
)

// Client calls remote chat-completion endpoints. One request per turn, no
// retries: a failed attempt is reported immediately.
type Client struct {
	rest *resty.Client
}

// New creates a Client over a shared resty transport.
func New() *Client {
	return &Client{rest: resty.New()}
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.rest.Close()
}

// EstimateTokens approximates token usage at ~4 characters per token. Used
// only for bookkeeping, never for truncation decisions.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// PrepareMessages builds the outbound message list: the configured system
// prompt (when non-empty) followed by the chronological history.
func PrepareMessages(cfg *llmconfig.Config, history []*conversation.Message) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)

	if cfg.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: cfg.SystemPrompt,
		})
	}

	for _, msg := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	return messages
}

// Chat posts the messages to cfg.APIURL and returns the assistant content.
// The call blocks for at most cfg.RequestTimeoutMS.
func (c *Client) Chat(ctx context.Context, cfg *llmconfig.Config, apiToken string, messages []openai.ChatCompletionMessage) (string, error) {
	timeout := time.Duration(cfg.RequestTimeoutMS) * time.Millisecond
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log := logger.GetLogger()
	log.Debug().
		Str("url", cfg.APIURL).
		Str("model", cfg.ModelName).
		Int("message_count", len(messages)).
		Msg("calling LLM API")

	request := openai.ChatCompletionRequest{
		Model:       cfg.ModelName,
		Messages:    messages,
		Temperature: float32(cfg.Temperature),
		MaxTokens:   cfg.MaxTokens,
	}

	var result openai.ChatCompletionResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(apiToken).
		SetBody(request).
		SetResult(&result).
		Post(cfg.APIURL)
	if err != nil {
		if isConnectionError(err) {
			log.Error().
				Str("url", cfg.APIURL).
				Err(err).
				Msg("connection error to LLM server")
			return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, msgCannotConnect, err)
		}
		log.Error().
			Str("url", cfg.APIURL).
			Err(err).
			Msg("error calling LLM API")
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			fmt.Sprintf("Error communicating with LLM server: %v", err), err)
	}

	if resp.IsError() {
		log.Error().
			Str("url", cfg.APIURL).
			Int("status", resp.StatusCode()).
			Msg("LLM API returned error status")
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			fmt.Sprintf("Error communicating with LLM server: %s", resp.Status()), nil)
	}

	// An empty completion string is a valid response; only a missing
	// choices list is a format error.
	if len(result.Choices) == 0 {
		log.Error().
			Str("url", cfg.APIURL).
			Msg("unexpected API response format")
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, msgUnexpectedResponse, nil)
	}

	content := result.Choices[0].Message.Content
	log.Debug().
		Int("response_length", len(content)).
		Msg("LLM API call successful")

	return content, nil
}

// TestConnection sends a single "Hello" message and reports the outcome,
// reusing Chat's error taxonomy verbatim.
func (c *Client) TestConnection(ctx context.Context, cfg *llmconfig.Config, apiToken string) error {
	testMessages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: "Hello"},
	}
	_, err := c.Chat(ctx, cfg, apiToken, testMessages)
	return err
}

// isConnectionError reports whether the failure means the endpoint could not
// be reached at all, as opposed to a protocol-level failure.
func isConnectionError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
