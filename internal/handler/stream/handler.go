package stream

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-chat/backend/internal/handler/apierr"
	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	chatService "github.com/zhouzirui/z-chat/backend/internal/service/chat"
	"github.com/zhouzirui/z-chat/backend/internal/service/conversation"
	"github.com/zhouzirui/z-chat/backend/pkg/utils"
)

// SessionState 用于在建立流之前检查会话是否存在、是否空闲
type SessionState interface {
	State(ctx context.Context, sessionID string) (chat.State, error)
}

// Handler manages streaming replies via Server-Sent Events
type Handler struct {
	controller      *conversation.Controller
	sessions        SessionState
	showDiagnostics bool
}

// New creates a new stream handler
func New(controller *conversation.Controller, sessions SessionState, showDiagnostics bool) *Handler {
	return &Handler{
		controller:      controller,
		sessions:        sessions,
		showDiagnostics: showDiagnostics,
	}
}

// RegisterRoutes 注册流式接口
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event     string `json:"event"`
	SessionID string `json:"sessionId,omitempty"`
	Role      string `json:"role,omitempty"`
	Content   string `json:"content,omitempty"`
	Failed    bool   `json:"failed,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	userMessage := r.URL.Query().Get("message")

	if strings.TrimSpace(userMessage) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	state, err := h.sessions.State(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, apierr.Status(err), err.Error())
		return
	}
	if state == chat.StateAwaitingReply {
		utils.RespondError(w, http.StatusConflict, chatService.ErrSessionBusy.Error())
		return
	}

	if err := h.HandleStreamRequest(r.Context(), w, flusher, sessionID, userMessage); err != nil {
		log.Printf("[stream] error handling request session=%s: %v", sessionID, err)
	}
}

// HandleStreamRequest runs one submission and mirrors its progress as SSE events:
// start, delta (streaming generators only), message, error (failed generation), end.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, sessionID, userMessage string) error {
	utils.SetupSSEHeaders(w)

	h.send(w, flusher, StreamResponse{Event: "start", SessionID: sessionID})

	outcome, err := h.controller.Submit(ctx, sessionID, userMessage, func(delta string) {
		h.send(w, flusher, StreamResponse{Event: "delta", SessionID: sessionID, Content: delta})
	})
	if err != nil {
		h.send(w, flusher, StreamResponse{Event: "error", SessionID: sessionID, Error: err.Error()})
		h.send(w, flusher, StreamResponse{Event: "end", SessionID: sessionID, Finished: true})
		return err
	}

	h.send(w, flusher, StreamResponse{
		Event:     "message",
		SessionID: sessionID,
		Role:      string(outcome.Reply.Role),
		Content:   outcome.Reply.Content,
		Failed:    outcome.Failed,
	})

	if outcome.Failed {
		diagnostic := "generation failed"
		if h.showDiagnostics {
			diagnostic = outcome.Diagnostic
		}
		h.send(w, flusher, StreamResponse{Event: "error", SessionID: sessionID, Error: diagnostic})
	}

	h.send(w, flusher, StreamResponse{Event: "end", SessionID: sessionID, Finished: true})
	return nil
}

func (h *Handler) send(w http.ResponseWriter, flusher http.Flusher, resp StreamResponse) {
	utils.SendSSEEvent(w, flusher, resp.Event, resp)
}
