package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/z-chat/backend/internal/model/catalog"
	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	chatService "github.com/zhouzirui/z-chat/backend/internal/service/chat"
	"github.com/zhouzirui/z-chat/backend/internal/service/conversation"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Handler WebSocket聊天处理器
type Handler struct {
	chatSvc         *chatService.Service
	controller      *conversation.Controller
	models          catalog.Store
	showDiagnostics bool
	upgrader        websocket.Upgrader
}

// New 创建WebSocket处理器
func New(chatSvc *chatService.Service, controller *conversation.Controller, models catalog.Store, showDiagnostics bool) *Handler {
	return &Handler{
		chatSvc:         chatSvc,
		controller:      controller,
		models:          models,
		showDiagnostics: showDiagnostics,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type submitMessage struct {
	Message string `json:"message"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type transcriptPayload struct {
	Transcript []chat.Turn            `json:"transcript"`
	Config     chat.GenerationConfig `json:"config"`
}

type replyPayload struct {
	Turn   chat.Turn `json:"turn"`
	Failed bool      `json:"failed,omitempty"`
}

// connection serialises writes; gorilla allows one concurrent writer.
type connection struct {
	conn      *websocket.Conn
	sessionID string
	mu        sync.Mutex
}

func (c *connection) send(msgType string, data interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	msg := outgoingMessage{
		Type:      msgType,
		SessionID: c.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		log.Printf("[websocket] write %s failed: %v", msgType, err)
	}
}

func (c *connection) sendError(message string) {
	c.send("error", map[string]string{"message": message})
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := h.chatSvc.GetSession(r.Context(), sessionID); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[websocket] new connection for session: %s", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	var inflight sync.WaitGroup
	defer func() {
		cancel()
		inflight.Wait()
	}()

	c := &connection{conn: conn, sessionID: sessionID}

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go pingLoop(ctx, conn)

	h.sendTranscript(ctx, c)

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		switch msg.Type {
		case "submit":
			var payload submitMessage
			if err := json.Unmarshal(msg.Data, &payload); err != nil {
				c.sendError("invalid submit payload")
				continue
			}
			// The read loop keeps running so pings and a second submit (answered with busy) are handled.
			inflight.Add(1)
			go func() {
				defer inflight.Done()
				h.handleSubmit(ctx, c, payload.Message)
			}()
		case "reset":
			h.handleReset(ctx, c)
		case "config":
			h.handleConfig(ctx, c, msg.Data)
		default:
			c.sendError("unsupported message type: " + msg.Type)
		}
	}
}

func (h *Handler) handleSubmit(ctx context.Context, c *connection, message string) {
	if strings.TrimSpace(message) == "" {
		return
	}

	// turn goes out only after the controller has claimed the session, so a losing
	// concurrent submit sees busy and nothing else.
	outcome, err := h.controller.SubmitWithCallbacks(ctx, c.sessionID, message, conversation.Callbacks{
		OnAccepted: func(user chat.Turn) {
			c.send("turn", user)
		},
		OnDelta: func(delta string) {
			c.send("delta", map[string]string{"content": delta})
		},
	})
	if errors.Is(err, chatService.ErrSessionBusy) {
		c.send("busy", map[string]string{"message": err.Error()})
		return
	}
	if err != nil {
		c.sendError(err.Error())
		return
	}

	c.send("reply", replyPayload{Turn: outcome.Reply, Failed: outcome.Failed})
	if outcome.Failed && h.showDiagnostics {
		c.send("diagnostic", map[string]string{"message": outcome.Diagnostic})
	}
}

func (h *Handler) handleReset(ctx context.Context, c *connection) {
	if _, err := h.controller.Reset(ctx, c.sessionID); err != nil {
		if errors.Is(err, chatService.ErrSessionBusy) {
			c.send("busy", map[string]string{"message": err.Error()})
			return
		}
		c.sendError(err.Error())
		return
	}
	h.sendTranscript(ctx, c)
}

func (h *Handler) handleConfig(ctx context.Context, c *connection, raw json.RawMessage) {
	var update catalog.ConfigUpdate
	if err := json.Unmarshal(raw, &update); err != nil {
		c.sendError("invalid config payload")
		return
	}

	current, err := h.chatSvc.GenerationConfig(ctx, c.sessionID)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	next, err := catalog.Apply(h.models, current, update)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	if err := h.chatSvc.UpdateGenerationConfig(ctx, c.sessionID, next); err != nil {
		c.sendError(err.Error())
		return
	}
	log.Printf("[websocket] config updated session=%s model=%s temperature=%.1f", c.sessionID, next.Model, next.Temperature)
	h.sendTranscript(ctx, c)
}

func (h *Handler) sendTranscript(ctx context.Context, c *connection) {
	turns, err := h.chatSvc.LoadTranscript(ctx, c.sessionID)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	cfg, err := h.chatSvc.GenerationConfig(ctx, c.sessionID)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.send("transcript", transcriptPayload{Transcript: turns, Config: cfg})
}

// pingLoop 定期发送ping消息
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
