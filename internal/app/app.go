// Package app assembles the services shared by the HTTP server and the terminal client.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/z-chat/backend/internal/config"
	"github.com/zhouzirui/z-chat/backend/internal/model/catalog"
	"github.com/zhouzirui/z-chat/backend/internal/service/ai"
	chatService "github.com/zhouzirui/z-chat/backend/internal/service/chat"
	"github.com/zhouzirui/z-chat/backend/internal/service/conversation"
	"github.com/zhouzirui/z-chat/backend/internal/storage/requestlog"
)

// App holds the wired core services.
type App struct {
	Config     *config.Config
	Models     *catalog.MemoryStore
	Chat       *chatService.Service
	AI         *ai.Service
	Controller *conversation.Controller
	// Requests is nil unless CHAT_REQUEST_LOG is set.
	Requests *requestlog.Store
}

// New builds the chat model from cfg.AI and wires everything around it.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewWithModel(ctx, cfg, chatModel)
}

// NewWithModel wires the services around an existing chat model.
func NewWithModel(ctx context.Context, cfg *config.Config, chatModel model.BaseChatModel) (*App, error) {
	models := catalog.NewMemoryStore(catalog.Seed())
	if _, ok := models.FindByID(cfg.Chat.DefaultModel); !ok {
		return nil, &config.StartupConfigError{
			Key: "CHAT_DEFAULT_MODEL",
			Err: fmt.Errorf("%w: %q", catalog.ErrUnknownModel, cfg.Chat.DefaultModel),
		}
	}

	aiSvc, err := ai.NewService(ctx, chatModel, cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AI service: %w", err)
	}
	log.Printf("[app] AI service initialized provider=%s streaming=%t", cfg.AI.Provider, aiSvc.StreamingEnabled())

	chatSvc := chatService.NewService(cfg.Chat.Greeting, cfg.Chat.DefaultGenerationConfig())

	a := &App{
		Config: cfg,
		Models: models,
		Chat:   chatSvc,
		AI:     aiSvc,
	}

	var opts []conversation.Option
	if path := cfg.Storage.RequestLogPath; path != "" {
		store, err := requestlog.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open request log: %w", err)
		}
		a.Requests = store
		opts = append(opts, conversation.WithRecorder(store))
		log.Printf("[app] request log enabled at %s", path)
	}

	a.Controller = conversation.NewController(chatSvc, aiSvc, cfg.Chat.Apology, opts...)
	return a, nil
}

// Close releases storage handles.
func (a *App) Close() error {
	var errs []error
	if a.Requests != nil {
		errs = append(errs, a.Requests.Close())
	}
	return errors.Join(errs...)
}
