package configuration

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"Helpdesk/internal/db"
	"Helpdesk/internal/handler"
	"Helpdesk/internal/hub"
	"Helpdesk/internal/model"
	"Helpdesk/internal/repo"
	"Helpdesk/internal/service"
)

type Container struct {
	ChatHandler    handler.ChatHandler
	MonitorHandler handler.MonitorHandler
	Hub            *hub.Hub
	Config         Config
	Logger         *zap.Logger

	// private - for cleanup
	mongoClient *mongo.Database
}

func BuildContainer(configPath string) (*Container, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	var chatRepo repo.ChatRepository
	var con *mongo.Database

	switch config.Storage {
	case StorageMemory:
		chatRepo = repo.NewMemoryChatRepository(logger)
	default:
		con, err = db.OpenConnection(config.ChatDatabase.Uri, config.ChatDatabase.Database)
		if err != nil {
			return nil, err
		}

		messages := db.NewRepository[model.Message](con, config.ChatDatabase.MessagesCollection)
		conversations := db.NewRepository[model.Conversation](con, config.ChatDatabase.ConversationsCollection)
		chatRepo = repo.NewMongoChatRepository(con, messages, conversations, logger)
	}

	chatService := service.NewChatService(chatRepo, logger)

	chatHub := hub.NewHub(chatService)
	monitorService := hub.NewMonitorService(chatHub)

	chatHandler := handler.NewChatHandler(chatService, chatHub)
	monitorHandler := handler.NewMonitorHandler(monitorService)

	return &Container{
		ChatHandler:    chatHandler,
		MonitorHandler: monitorHandler,
		Hub:            chatHub,
		Config:         *config,
		Logger:         logger,
		mongoClient:    con,
	}, nil
}

// Close gracefully shuts down all connections
func (c *Container) Close() error {
	// Stop the hub first (closes all WebSocket connections)
	if c.Hub != nil {
		c.Hub.Stop()
	}

	// Sync logger
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}

	// Close MongoDB connection pool
	if c.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongoClient.Client().Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close MongoDB connection: %w", err)
		}
	}

	return nil
}
