package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-chat/backend/internal/export"
	"github.com/zhouzirui/z-chat/backend/internal/handler/apierr"
	"github.com/zhouzirui/z-chat/backend/internal/model/catalog"
	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	chatService "github.com/zhouzirui/z-chat/backend/internal/service/chat"
	"github.com/zhouzirui/z-chat/backend/internal/service/conversation"
	"github.com/zhouzirui/z-chat/backend/internal/storage/requestlog"
	"github.com/zhouzirui/z-chat/backend/pkg/utils"
)

// RequestLog 请求日志的只读视图
type RequestLog interface {
	ListBySession(ctx context.Context, sessionID string) ([]requestlog.Entry, error)
}

// Options 处理器的可选配置
type Options struct {
	ExportPrefix    string
	ShowDiagnostics bool
	// Requests 为 nil 时 /requests 返回 404
	Requests RequestLog
	Now      func() time.Time
}

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc    *chatService.Service
	controller *conversation.Controller
	models     catalog.Store
	opts       Options
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, controller *conversation.Controller, models catalog.Store, opts Options) *Handler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Handler{
		chatSvc:    chatSvc,
		controller: controller,
		models:     models,
		opts:       opts,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Route("/session/{sessionID}", func(r chi.Router) {
		r.Get("/", h.handleGetSession)
		r.Delete("/", h.handleDeleteSession)
		r.Post("/messages", h.handleSubmit)
		r.Post("/reset", h.handleReset)
		r.Put("/config", h.handleUpdateConfig)
		r.Get("/export", h.handleExport)
		r.Get("/requests", h.handleListRequests)
	})
}

// SessionView is the session payload shared by the HTTP endpoints.
type SessionView struct {
	Session    chat.Session          `json:"session"`
	Transcript []chat.Turn           `json:"transcript"`
	Config     chat.GenerationConfig `json:"config"`
	State      chat.State            `json:"state"`
}

type submitResponse struct {
	Submitted  bool        `json:"submitted"`
	Transcript []chat.Turn `json:"transcript"`
	Reply      *chat.Turn  `json:"reply,omitempty"`
	Failed     bool        `json:"failed,omitempty"`
	Diagnostic string      `json:"diagnostic,omitempty"`
}

// handleCreateSession 创建会话，请求体可选地携带 model/temperature
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var update catalog.ConfigUpdate
	if err := decodeOptionalBody(r, &update); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg, err := catalog.Apply(h.models, h.chatSvc.DefaultGenerationConfig(), update)
	if err != nil {
		utils.RespondError(w, apierr.Status(err), err.Error())
		return
	}

	session, err := h.chatSvc.CreateSession(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.chatSvc.UpdateGenerationConfig(r.Context(), session.ID, cfg); err != nil {
		utils.RespondError(w, apierr.Status(err), err.Error())
		return
	}

	view, err := h.sessionView(r.Context(), session.ID)
	if err != nil {
		utils.RespondError(w, apierr.Status(err), err.Error())
		return
	}
	log.Printf("[chat] session created id=%s model=%s", session.ID, cfg.Model)
	utils.RespondJSON(w, http.StatusCreated, view)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessionView(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondError(w, apierr.Status(err), err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		utils.RespondError(w, apierr.Status(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSubmit 阻塞直到模型回复（或道歉文本）写入记录
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	outcome, err := h.controller.Submit(r.Context(), sessionID, payload.Message, nil)
	if err != nil {
		utils.RespondError(w, apierr.Status(err), err.Error())
		return
	}

	transcript, err := h.chatSvc.LoadTranscript(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, apierr.Status(err), err.Error())
		return
	}

	resp := submitResponse{
		Submitted:  outcome.Submitted,
		Transcript: transcript,
		Failed:     outcome.Failed,
	}
	if outcome.Submitted {
		resp.Reply = &outcome.Reply
	}
	if h.opts.ShowDiagnostics {
		resp.Diagnostic = outcome.Diagnostic
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	turns, err := h.controller.Reset(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondError(w, apierr.Status(err), err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"transcript": turns})
}

func (h *Handler) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var update catalog.ConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	current, err := h.chatSvc.GenerationConfig(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, apierr.Status(err), err.Error())
		return
	}
	next, err := catalog.Apply(h.models, current, update)
	if err != nil {
		utils.RespondError(w, apierr.Status(err), err.Error())
		return
	}
	if err := h.chatSvc.UpdateGenerationConfig(r.Context(), sessionID, next); err != nil {
		utils.RespondError(w, apierr.Status(err), err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, next)
}

// handleExport 以附件形式下载会话记录
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	exporter, err := export.ForFormat(r.URL.Query().Get("format"))
	if err != nil {
		utils.RespondError(w, apierr.Status(err), err.Error())
		return
	}

	doc, err := h.document(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, apierr.Status(err), err.Error())
		return
	}

	body, err := exporter.Export(doc)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	filename := export.Filename(h.opts.ExportPrefix, doc.ExportedAt, exporter.FileExtension())
	utils.RespondAttachment(w, exporter.MimeType(), filename, body)
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	if h.opts.Requests == nil {
		utils.RespondError(w, http.StatusNotFound, "request log disabled")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	if _, err := h.chatSvc.GetSession(r.Context(), sessionID); err != nil {
		utils.RespondError(w, apierr.Status(err), err.Error())
		return
	}

	entries, err := h.opts.Requests.ListBySession(r.Context(), sessionID)
	if err != nil {
		log.Printf("[chat] failed to list requests for session=%s: %v", sessionID, err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to read request log")
		return
	}
	utils.RespondJSON(w, http.StatusOK, entries)
}

func (h *Handler) sessionView(ctx context.Context, sessionID string) (SessionView, error) {
	session, err := h.chatSvc.GetSession(ctx, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	transcript, err := h.chatSvc.LoadTranscript(ctx, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	cfg, err := h.chatSvc.GenerationConfig(ctx, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	state, err := h.chatSvc.State(ctx, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	return SessionView{Session: session, Transcript: transcript, Config: cfg, State: state}, nil
}

func (h *Handler) document(ctx context.Context, sessionID string) (export.Document, error) {
	turns, err := h.chatSvc.LoadTranscript(ctx, sessionID)
	if err != nil {
		return export.Document{}, err
	}
	cfg, err := h.chatSvc.GenerationConfig(ctx, sessionID)
	if err != nil {
		return export.Document{}, err
	}
	return export.Document{
		SessionID:  sessionID,
		Config:     cfg,
		ExportedAt: h.opts.Now(),
		Turns:      turns,
	}, nil
}

// decodeOptionalBody accepts an empty body as "no fields".
func decodeOptionalBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
