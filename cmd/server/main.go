package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/markusbegerow/local-llm-server/internal/config"
	"github.com/markusbegerow/local-llm-server/internal/domain/chat"
	"github.com/markusbegerow/local-llm-server/internal/domain/conversation"
	"github.com/markusbegerow/local-llm-server/internal/domain/llmconfig"
	"github.com/markusbegerow/local-llm-server/internal/infrastructure/database"
	_ "github.com/markusbegerow/local-llm-server/internal/infrastructure/database/dbschema"
	"github.com/markusbegerow/local-llm-server/internal/infrastructure/database/repository/configrepo"
	"github.com/markusbegerow/local-llm-server/internal/infrastructure/database/repository/conversationrepo"
	"github.com/markusbegerow/local-llm-server/internal/infrastructure/llmclient"
	"github.com/markusbegerow/local-llm-server/internal/infrastructure/logger"
	"github.com/markusbegerow/local-llm-server/internal/infrastructure/ratelimit"
	"github.com/markusbegerow/local-llm-server/internal/infrastructure/vault"
	"github.com/markusbegerow/local-llm-server/internal/interfaces/httpserver"
	"github.com/markusbegerow/local-llm-server/internal/interfaces/httpserver/handlers/chathandler"
	"github.com/markusbegerow/local-llm-server/internal/interfaces/httpserver/handlers/confighandler"
	"github.com/markusbegerow/local-llm-server/internal/interfaces/httpserver/handlers/conversationhandler"
)

func main() {
	log := logger.GetLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure logger")
	}

	db, err := database.NewDB(cfg.DatabaseURL)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if cfg.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			appLogger.Fatal().Err(err).Msg("failed to migrate database")
		}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	tokenVault, err := vault.New(cfg.EncryptionSecret)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to initialize token vault")
	}

	limiter := ratelimit.New(rdb, cfg.RateLimitRequests, cfg.RateLimitWindow)
	client := llmclient.New()
	defer client.Close()

	configService := llmconfig.NewService(configrepo.NewConfigGormRepository(db), tokenVault)
	conversationService := conversation.NewService(
		conversationrepo.NewConversationGormRepository(db),
		conversationrepo.NewMessageGormRepository(db),
	)
	chatService := chat.NewService(limiter, configService, conversationService, client)

	ready := func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	}

	server := httpserver.NewHTTPServer(
		cfg,
		chathandler.NewChatHandler(chatService, appLogger),
		confighandler.NewConfigHandler(configService, chatService, appLogger),
		conversationhandler.NewConversationHandler(conversationService, appLogger),
		ready,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return server.Run(ctx)
	})

	if err := eg.Wait(); err != nil {
		appLogger.Fatal().Err(err).Msg("server exited with error")
	}
	appLogger.Info().Msg("server stopped")
}
