package conversation_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/markusbegerow/local-llm-server/internal/domain/conversation"
	"github.com/markusbegerow/local-llm-server/internal/infrastructure/database/dbschema"
	"github.com/markusbegerow/local-llm-server/internal/infrastructure/database/repository/conversationrepo"
	"github.com/markusbegerow/local-llm-server/internal/utils/platformerrors"
)

func newService(t *testing.T) *conversation.Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&dbschema.Conversation{}, &dbschema.Message{}))

	return conversation.NewService(
		conversationrepo.NewConversationGormRepository(db),
		conversationrepo.NewMessageGormRepository(db),
	)
}

func TestCreateUsesPlaceholderName(t *testing.T) {
	svc := newService(t)

	conv, err := svc.Create(context.Background(), "alice", 1)
	require.NoError(t, err)
	assert.Equal(t, conversation.DefaultName, conv.Name)
	assert.True(t, conv.Active)
}

func TestAutonameAfterFirstExchange(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	conv, err := svc.Create(ctx, "alice", 1)
	require.NoError(t, err)

	userMsg := "How do I configure a reverse proxy for my local model server?"
	_, err = svc.Append(ctx, conv.ID, conversation.RoleUser, userMsg, 15)
	require.NoError(t, err)
	_, err = svc.Append(ctx, conv.ID, conversation.RoleAssistant, "Here is how.", 3)
	require.NoError(t, err)

	require.NoError(t, svc.MaybeAutoname(ctx, conv, userMsg))
	assert.Equal(t, userMsg[:conversation.NamePrefixLen]+"...", conv.Name)
	require.NoError(t, svc.Touch(ctx, conv))

	reloaded, err := svc.Get(ctx, conv.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, conv.Name, reloaded.Name)
}

func TestAutonameShortMessageKeptWhole(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	conv, err := svc.Create(ctx, "alice", 1)
	require.NoError(t, err)
	_, err = svc.Append(ctx, conv.ID, conversation.RoleUser, "Hi", 1)
	require.NoError(t, err)
	_, err = svc.Append(ctx, conv.ID, conversation.RoleAssistant, "Hello!", 2)
	require.NoError(t, err)

	require.NoError(t, svc.MaybeAutoname(ctx, conv, "Hi"))
	assert.Equal(t, "Hi", conv.Name)
}

func TestAutonameHappensExactlyOnce(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	conv, err := svc.Create(ctx, "alice", 1)
	require.NoError(t, err)
	_, err = svc.Append(ctx, conv.ID, conversation.RoleUser, "first question", 4)
	require.NoError(t, err)
	_, err = svc.Append(ctx, conv.ID, conversation.RoleAssistant, "first answer", 3)
	require.NoError(t, err)
	require.NoError(t, svc.MaybeAutoname(ctx, conv, "first question"))
	require.NoError(t, svc.Touch(ctx, conv))

	// Second exchange must not rename again.
	_, err = svc.Append(ctx, conv.ID, conversation.RoleUser, "second question", 4)
	require.NoError(t, err)
	_, err = svc.Append(ctx, conv.ID, conversation.RoleAssistant, "second answer", 3)
	require.NoError(t, err)
	require.NoError(t, svc.MaybeAutoname(ctx, conv, "second question"))
	assert.Equal(t, "first question", conv.Name)

	// A manual rename is never overwritten either.
	renamed, err := svc.Rename(ctx, conv.ID, "alice", "my thread")
	require.NoError(t, err)
	require.NoError(t, svc.MaybeAutoname(ctx, renamed, "whatever"))
	assert.Equal(t, "my thread", renamed.Name)
}

func TestListIncludesCountAndPreview(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	conv, err := svc.Create(ctx, "alice", 1)
	require.NoError(t, err)

	long := strings.Repeat("q", 80)
	_, err = svc.Append(ctx, conv.ID, conversation.RoleUser, long, 20)
	require.NoError(t, err)
	_, err = svc.Append(ctx, conv.ID, conversation.RoleAssistant, "answer", 2)
	require.NoError(t, err)

	summaries, err := svc.List(ctx, "alice", true)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, int64(2), summaries[0].MessageCount)
	assert.Equal(t, strings.Repeat("q", conversation.NamePrefixLen)+"...", summaries[0].Preview)
}

func TestMessagesRequiresOwnership(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	conv, err := svc.Create(ctx, "alice", 1)
	require.NoError(t, err)

	_, err = svc.Messages(ctx, conv.ID, "mallory")
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
}

func TestRecentHistoryBoundsWindow(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	conv, err := svc.Create(ctx, "alice", 1)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		role := conversation.RoleUser
		if i%2 == 1 {
			role = conversation.RoleAssistant
		}
		_, err = svc.Append(ctx, conv.ID, role, strings.Repeat("x", i+1), i)
		require.NoError(t, err)
	}

	history, err := svc.RecentHistory(ctx, conv.ID, 4)
	require.NoError(t, err)
	require.Len(t, history, 4)
	// Chronological order, holding the newest four.
	assert.Equal(t, strings.Repeat("x", 7), history[0].Content)
	assert.Equal(t, strings.Repeat("x", 10), history[3].Content)
}

func TestClearKeepsConversationRow(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	conv, err := svc.Create(ctx, "alice", 1)
	require.NoError(t, err)
	_, err = svc.Append(ctx, conv.ID, conversation.RoleUser, "hello", 2)
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, conv.ID, "alice"))
	// Clearing twice is fine.
	require.NoError(t, svc.Clear(ctx, conv.ID, "alice"))

	count, err := svc.MessageCount(ctx, conv.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = svc.Get(ctx, conv.ID, "alice")
	require.NoError(t, err)
}

func TestDeleteRemovesEverything(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	conv, err := svc.Create(ctx, "alice", 1)
	require.NoError(t, err)
	_, err = svc.Append(ctx, conv.ID, conversation.RoleUser, "hello", 2)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, conv.ID, "alice"))

	_, err = svc.Get(ctx, conv.ID, "alice")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
}
