package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-chat/backend/internal/model/catalog"
	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	"github.com/zhouzirui/z-chat/backend/pkg/utils"
)

// Handler 模型目录的HTTP处理器
type Handler struct {
	models   catalog.Store
	defaults chat.GenerationConfig
}

// New 创建模型目录处理器
func New(models catalog.Store, defaults chat.GenerationConfig) *Handler {
	return &Handler{
		models:   models,
		defaults: defaults,
	}
}

// RegisterRoutes 注册模型相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/models", h.handleListModels)
}

type defaultsView struct {
	Model           string  `json:"model"`
	Temperature     float64 `json:"temperature"`
	TemperatureMin  float64 `json:"temperatureMin"`
	TemperatureMax  float64 `json:"temperatureMax"`
	TemperatureStep float64 `json:"temperatureStep"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// handleListModels 列出可选模型及滑块范围
func (h *Handler) handleListModels(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"models": h.models.List(),
		"defaults": defaultsView{
			Model:           h.defaults.Model,
			Temperature:     h.defaults.Temperature,
			TemperatureMin:  0,
			TemperatureMax:  1,
			TemperatureStep: chat.TemperatureStep,
			TopP:            h.defaults.TopP,
			TopK:            h.defaults.TopK,
			MaxOutputTokens: h.defaults.MaxOutputTokens,
		},
	})
}
