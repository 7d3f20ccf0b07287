package chat_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/markusbegerow/local-llm-server/internal/domain/chat"
	"github.com/markusbegerow/local-llm-server/internal/domain/conversation"
	"github.com/markusbegerow/local-llm-server/internal/domain/llmconfig"
	"github.com/markusbegerow/local-llm-server/internal/infrastructure/database/dbschema"
	"github.com/markusbegerow/local-llm-server/internal/infrastructure/database/repository/configrepo"
	"github.com/markusbegerow/local-llm-server/internal/infrastructure/database/repository/conversationrepo"
	"github.com/markusbegerow/local-llm-server/internal/infrastructure/llmclient"
	"github.com/markusbegerow/local-llm-server/internal/infrastructure/ratelimit"
	"github.com/markusbegerow/local-llm-server/internal/infrastructure/vault"
	"github.com/markusbegerow/local-llm-server/internal/utils/platformerrors"
)

type fixture struct {
	chat          *chat.Service
	configs       *llmconfig.Service
	conversations *conversation.Service
}

func newFixture(t *testing.T, limit int) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&dbschema.LLMConfig{},
		&dbschema.Conversation{},
		&dbschema.Message{},
	))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	v, err := vault.New("test-encryption-secret")
	require.NoError(t, err)

	configs := llmconfig.NewService(configrepo.NewConfigGormRepository(db), v)
	conversations := conversation.NewService(
		conversationrepo.NewConversationGormRepository(db),
		conversationrepo.NewMessageGormRepository(db),
	)
	limiter := ratelimit.New(rdb, limit, time.Minute)
	client := llmclient.New()
	t.Cleanup(func() { _ = client.Close() })

	return &fixture{
		chat:          chat.NewService(limiter, configs, conversations, client),
		configs:       configs,
		conversations: conversations,
	}
}

func stubLLMServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (f *fixture) createConfig(t *testing.T, owner, apiURL string) *llmconfig.Config {
	t.Helper()
	cfg, err := f.configs.Create(context.Background(), owner, llmconfig.CreateInput{
		Name:      "stub",
		APIURL:    apiURL,
		ModelName: "llama3",
	})
	require.NoError(t, err)
	return cfg
}

func TestSendMessageFullTurn(t *testing.T) {
	f := newFixture(t, 20)
	ts := stubLLMServer(t, "Hi there")
	f.createConfig(t, "alice", ts.URL)
	ctx := context.Background()

	result, err := f.chat.SendMessage(ctx, "alice", chat.SendMessageInput{Message: "Hello, model"})
	require.NoError(t, err)

	assert.Equal(t, "Hello, model", result.UserMessage.Content)
	assert.Equal(t, "Hi there", result.AssistantMessage.Content)

	msgs, err := f.conversations.Messages(ctx, result.ConversationID, "alice")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, conversation.RoleUser, msgs[0].Role)
	assert.Equal(t, conversation.RoleAssistant, msgs[1].Role)

	// First exchange renames the lazily created conversation.
	conv, err := f.conversations.Get(ctx, result.ConversationID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Hello, model", conv.Name)
}

func TestSendMessageReusesConversation(t *testing.T) {
	f := newFixture(t, 20)
	ts := stubLLMServer(t, "reply")
	f.createConfig(t, "alice", ts.URL)
	ctx := context.Background()

	first, err := f.chat.SendMessage(ctx, "alice", chat.SendMessageInput{Message: "one"})
	require.NoError(t, err)

	second, err := f.chat.SendMessage(ctx, "alice", chat.SendMessageInput{
		ConversationID: &first.ConversationID,
		Message:        "two",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, second.ConversationID)

	msgs, err := f.conversations.Messages(ctx, first.ConversationID, "alice")
	require.NoError(t, err)
	assert.Len(t, msgs, 4)
}

func TestSendMessageRejectsEmpty(t *testing.T) {
	f := newFixture(t, 20)

	_, err := f.chat.SendMessage(context.Background(), "alice", chat.SendMessageInput{Message: "   "})
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
}

func TestSendMessageRejectsOversized(t *testing.T) {
	f := newFixture(t, 20)
	ctx := context.Background()

	_, err := f.chat.SendMessage(ctx, "alice", chat.SendMessageInput{
		Message: strings.Repeat("a", chat.MaxMessageLength+1),
	})
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))

	// Nothing was persisted; the turn failed before any write.
	summaries, err := f.conversations.List(ctx, "alice", false)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestSendMessageWithoutConfiguration(t *testing.T) {
	f := newFixture(t, 20)

	_, err := f.chat.SendMessage(context.Background(), "alice", chat.SendMessageInput{Message: "hello"})
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "No LLM configuration found")
}

func TestSendMessageRateLimited(t *testing.T) {
	f := newFixture(t, 2)
	ts := stubLLMServer(t, "reply")
	f.createConfig(t, "alice", ts.URL)
	ctx := context.Background()

	first, err := f.chat.SendMessage(ctx, "alice", chat.SendMessageInput{Message: "one"})
	require.NoError(t, err)
	_, err = f.chat.SendMessage(ctx, "alice", chat.SendMessageInput{
		ConversationID: &first.ConversationID,
		Message:        "two",
	})
	require.NoError(t, err)

	_, err = f.chat.SendMessage(ctx, "alice", chat.SendMessageInput{
		ConversationID: &first.ConversationID,
		Message:        "three",
	})
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeRateLimited))

	// Another owner is unaffected.
	_, err = f.chat.SendMessage(ctx, "bob", chat.SendMessageInput{Message: "hello"})
	require.Error(t, err) // no config for bob, but not rate limited
	assert.False(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeRateLimited))
}

func TestSendMessageUpstreamFailureKeepsUserMessage(t *testing.T) {
	f := newFixture(t, 20)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // connection refused from here on
	f.createConfig(t, "alice", ts.URL)
	ctx := context.Background()

	_, err := f.chat.SendMessage(ctx, "alice", chat.SendMessageInput{Message: "hello"})
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeExternal))

	summaries, err := f.conversations.List(ctx, "alice", false)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, int64(1), summaries[0].MessageCount)

	msgs, err := f.conversations.Messages(ctx, summaries[0].ID, "alice")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, conversation.RoleUser, msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Content)
}

func TestSendMessageUnknownConversation(t *testing.T) {
	f := newFixture(t, 20)
	ts := stubLLMServer(t, "reply")
	f.createConfig(t, "alice", ts.URL)

	missing := int64(9999)
	_, err := f.chat.SendMessage(context.Background(), "alice", chat.SendMessageInput{
		ConversationID: &missing,
		Message:        "hello",
	})
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
}

func TestTestConnection(t *testing.T) {
	f := newFixture(t, 20)
	ts := stubLLMServer(t, "Hello!")
	cfg := f.createConfig(t, "alice", ts.URL)

	require.NoError(t, f.chat.TestConnection(context.Background(), "alice", cfg.ID))

	_, err := f.configs.Get(context.Background(), cfg.ID, "alice")
	require.NoError(t, err)
}

func TestTestConnectionUnreachable(t *testing.T) {
	f := newFixture(t, 20)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close()
	cfg := f.createConfig(t, "alice", ts.URL)

	err := f.chat.TestConnection(context.Background(), "alice", cfg.ID)
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeExternal))
}
