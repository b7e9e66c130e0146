package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/z-chat/backend/internal/config"
	catalogHandler "github.com/zhouzirui/z-chat/backend/internal/handler/catalog"
	chatHandler "github.com/zhouzirui/z-chat/backend/internal/handler/chat"
	"github.com/zhouzirui/z-chat/backend/internal/handler/stream"
	"github.com/zhouzirui/z-chat/backend/internal/handler/web"
	"github.com/zhouzirui/z-chat/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/z-chat/backend/internal/middleware"
	"github.com/zhouzirui/z-chat/backend/internal/model/catalog"
	chatService "github.com/zhouzirui/z-chat/backend/internal/service/chat"
	"github.com/zhouzirui/z-chat/backend/internal/service/conversation"
)

// Dependencies 路由所需的核心服务
type Dependencies struct {
	Chat       *chatService.Service
	Controller *conversation.Controller
	Models     catalog.Store
	ChatConfig config.ChatConfig
	// Requests 为 nil 表示未开启请求日志
	Requests chatHandler.RequestLog
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(log.Default()))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	showDiagnostics := deps.ChatConfig.ShowDiagnostics

	// Create handlers
	modelsHandler := catalogHandler.New(deps.Models, deps.Chat.DefaultGenerationConfig())
	sessionHandler := chatHandler.New(deps.Chat, deps.Controller, deps.Models, chatHandler.Options{
		ExportPrefix:    deps.ChatConfig.ExportPrefix,
		ShowDiagnostics: showDiagnostics,
		Requests:        deps.Requests,
	})
	streamHandler := stream.New(deps.Controller, deps.Chat, showDiagnostics)
	wsHandler := ws.New(deps.Chat, deps.Controller, deps.Models, showDiagnostics)

	r.Route("/api", func(api chi.Router) {
		modelsHandler.RegisterRoutes(api)
		sessionHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)
	})

	web.RegisterRoutes(r)

	return r
}
