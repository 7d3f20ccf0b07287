package llmconfig_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/markusbegerow/local-llm-server/internal/domain/llmconfig"
	"github.com/markusbegerow/local-llm-server/internal/infrastructure/database/dbschema"
	"github.com/markusbegerow/local-llm-server/internal/infrastructure/database/repository/configrepo"
	"github.com/markusbegerow/local-llm-server/internal/infrastructure/vault"
	"github.com/markusbegerow/local-llm-server/internal/utils/platformerrors"
)

func newService(t *testing.T) (*llmconfig.Service, *vault.Vault) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&dbschema.LLMConfig{}, &dbschema.Conversation{}))

	v, err := vault.New("test-encryption-secret")
	require.NoError(t, err)
	return llmconfig.NewService(configrepo.NewConfigGormRepository(db), v), v
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func validInput() llmconfig.CreateInput {
	return llmconfig.CreateInput{
		Name:        "ollama-local",
		APIURL:      "http://localhost:11434/v1/chat/completions",
		ModelName:   "llama3",
		Temperature: floatPtr(0.7),
		MaxTokens:   intPtr(2048),
	}
}

func TestCreateAppliesDefaults(t *testing.T) {
	svc, _ := newService(t)

	cfg, err := svc.Create(context.Background(), "alice", validInput())
	require.NoError(t, err)

	assert.Equal(t, llmconfig.DefaultSystemPrompt, cfg.SystemPrompt)
	assert.Equal(t, 50, cfg.MaxHistoryMessages)
	assert.Equal(t, 120000, cfg.RequestTimeoutMS)
	assert.True(t, cfg.Active)
	assert.NotZero(t, cfg.CreatedAt)
}

func TestCreateBareInputGetsNumericDefaults(t *testing.T) {
	svc, _ := newService(t)

	// Only the required fields: omitted numeric settings must yield a
	// working config, not a validation failure.
	cfg, err := svc.Create(context.Background(), "alice", llmconfig.CreateInput{
		Name:      "bare",
		APIURL:    "http://localhost:11434/v1/chat/completions",
		ModelName: "llama3",
	})
	require.NoError(t, err)
	assert.Equal(t, llmconfig.DefaultTemperature, cfg.Temperature)
	assert.Equal(t, llmconfig.DefaultMaxTokens, cfg.MaxTokens)
}

func TestCreateExplicitZeroTemperatureKept(t *testing.T) {
	svc, _ := newService(t)

	input := validInput()
	input.Temperature = floatPtr(0)
	cfg, err := svc.Create(context.Background(), "alice", input)
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Temperature)
}

func TestCreateEncryptsToken(t *testing.T) {
	svc, v := newService(t)

	input := validInput()
	input.APIToken = "sk-secret"
	cfg, err := svc.Create(context.Background(), "alice", input)
	require.NoError(t, err)

	assert.NotEqual(t, "sk-secret", cfg.APITokenEncrypted)
	plain, err := v.Decrypt(cfg.APITokenEncrypted)
	require.NoError(t, err)
	assert.Equal(t, "sk-secret", plain)
}

func TestCreateValidatesRequiredFields(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	for _, mutate := range []func(*llmconfig.CreateInput){
		func(in *llmconfig.CreateInput) { in.Name = "" },
		func(in *llmconfig.CreateInput) { in.APIURL = "" },
		func(in *llmconfig.CreateInput) { in.ModelName = "" },
	} {
		input := validInput()
		mutate(&input)
		_, err := svc.Create(ctx, "alice", input)
		require.Error(t, err)
		assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
	}
}

func TestCreateValidatesBounds(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	input := validInput()
	input.Temperature = floatPtr(2.5)
	_, err := svc.Create(ctx, "alice", input)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))

	input = validInput()
	input.MaxTokens = intPtr(64)
	_, err = svc.Create(ctx, "alice", input)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
}

func TestAtMostOneDefault(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	first := validInput()
	first.Name = "first"
	first.IsDefault = true
	a, err := svc.Create(ctx, "alice", first)
	require.NoError(t, err)

	second := validInput()
	second.Name = "second"
	second.IsDefault = true
	b, err := svc.Create(ctx, "alice", second)
	require.NoError(t, err)

	configs, err := svc.List(ctx, "alice", false)
	require.NoError(t, err)
	require.Len(t, configs, 2)
	for _, cfg := range configs {
		assert.Equal(t, cfg.ID == b.ID, cfg.IsDefault)
	}

	_, err = svc.SetDefault(ctx, a.ID, "alice")
	require.NoError(t, err)
	configs, err = svc.List(ctx, "alice", false)
	require.NoError(t, err)
	for _, cfg := range configs {
		assert.Equal(t, cfg.ID == a.ID, cfg.IsDefault)
	}
}

func TestUpdatePartialPatch(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	cfg, err := svc.Create(ctx, "alice", validInput())
	require.NoError(t, err)

	name := "renamed"
	temp := 1.2
	updated, err := svc.Update(ctx, cfg.ID, "alice", llmconfig.Patch{
		Name:        &name,
		Temperature: &temp,
	})
	require.NoError(t, err)

	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, 1.2, updated.Temperature)
	assert.Equal(t, cfg.APIURL, updated.APIURL)
	assert.Equal(t, cfg.ModelName, updated.ModelName)
}

func TestUpdateKeepsTokenWhenOmitted(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	input := validInput()
	input.APIToken = "sk-secret"
	cfg, err := svc.Create(ctx, "alice", input)
	require.NoError(t, err)

	name := "renamed"
	updated, err := svc.Update(ctx, cfg.ID, "alice", llmconfig.Patch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, cfg.APITokenEncrypted, updated.APITokenEncrypted)
}

func TestUpdateRejectsOutOfBoundsPatch(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	cfg, err := svc.Create(ctx, "alice", validInput())
	require.NoError(t, err)

	bad := -0.5
	_, err = svc.Update(ctx, cfg.ID, "alice", llmconfig.Patch{Temperature: &bad})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
}

func TestResolveForNewConversation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	// No configs at all.
	cfg, err := svc.ResolveForNewConversation(ctx, "alice", nil)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	oldest := validInput()
	oldest.Name = "oldest"
	first, err := svc.Create(ctx, "alice", oldest)
	require.NoError(t, err)

	// No default yet, falls back to the oldest active config.
	cfg, err = svc.ResolveForNewConversation(ctx, "alice", nil)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, first.ID, cfg.ID)

	marked := validInput()
	marked.Name = "marked"
	marked.IsDefault = true
	second, err := svc.Create(ctx, "alice", marked)
	require.NoError(t, err)

	cfg, err = svc.ResolveForNewConversation(ctx, "alice", nil)
	require.NoError(t, err)
	assert.Equal(t, second.ID, cfg.ID)

	// Explicit ID wins over the default.
	cfg, err = svc.ResolveForNewConversation(ctx, "alice", &first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, cfg.ID)

	// Unknown explicit ID is an error, not a fallback.
	missing := int64(9999)
	_, err = svc.ResolveForNewConversation(ctx, "alice", &missing)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
}

func TestDecryptTokenFallsBackToOllama(t *testing.T) {
	svc, _ := newService(t)

	assert.Equal(t, "ollama", svc.DecryptToken(&llmconfig.Config{}))
	assert.Equal(t, "ollama", svc.DecryptToken(&llmconfig.Config{APITokenEncrypted: "not-valid-ciphertext"}))
}
