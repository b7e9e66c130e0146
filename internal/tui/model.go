// Package tui is the terminal chat client. It drives the same conversation controller as the
// HTTP server, in-process.
package tui

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/zhouzirui/z-chat/backend/internal/export"
	"github.com/zhouzirui/z-chat/backend/internal/model/catalog"
	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	chatService "github.com/zhouzirui/z-chat/backend/internal/service/chat"
	"github.com/zhouzirui/z-chat/backend/internal/service/conversation"
)

// Options configures the terminal client.
type Options struct {
	ExportDir       string
	ExportPrefix    string
	ShowDiagnostics bool
	// Renderer defaults to glamour; tests swap in plain text.
	Renderer Renderer
	Now      func() time.Time
}

// Model is the bubbletea model of the chat screen.
type Model struct {
	ctx        context.Context
	chatSvc    *chatService.Service
	controller *conversation.Controller
	models     *catalog.MemoryStore
	sessionID  string
	opts       Options

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	transcript []chat.Turn
	config     chat.GenerationConfig
	busy       bool
	pending    string
	stream     chan tea.Msg
	diagnostic string
	status     string
	width      int
	height     int
}

type deltaMsg string

type replyMsg struct {
	outcome conversation.Outcome
	err     error
}

// New creates a session and returns the initial screen.
func New(ctx context.Context, chatSvc *chatService.Service, controller *conversation.Controller, models *catalog.MemoryStore, opts Options) (Model, error) {
	session, err := chatSvc.CreateSession(ctx)
	if err != nil {
		return Model{}, fmt.Errorf("failed to create session: %w", err)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ExportDir == "" {
		opts.ExportDir = "."
	}
	if opts.Renderer == nil {
		opts.Renderer = NewMarkdownRenderer()
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Apna sawal likho... (English ya Urdu)"
	ti.CharLimit = 4096
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	m := Model{
		ctx:        ctx,
		chatSvc:    chatSvc,
		controller: controller,
		models:     models,
		sessionID:  session.ID,
		opts:       opts,
		viewport:   viewport.New(80, 20),
		input:      ti,
		spinner:    sp,
		width:      80,
		height:     24,
	}
	if err := m.reload(); err != nil {
		return Model{}, err
	}
	return m, nil
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles keys, window changes and controller results.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(3, msg.Height-chromeHeight)
		m.input.Width = max(10, msg.Width-4)
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case deltaMsg:
		m.pending += string(msg)
		m.refreshViewport()
		return m, listen(m.stream)

	case replyMsg:
		m.busy = false
		m.pending = ""
		m.stream = nil
		switch {
		case msg.err != nil:
			m.diagnostic = msg.err.Error()
		case msg.outcome.Failed && m.opts.ShowDiagnostics:
			m.diagnostic = msg.outcome.Diagnostic
		}
		if err := m.reload(); err != nil {
			m.diagnostic = err.Error()
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case keyQuit, keyEsc:
		return m, tea.Quit
	case keySubmit:
		return m.submit()
	case keyClear:
		return m.clear(), nil
	case keyExport:
		return m.exportJSON(), nil
	case keyNextModel:
		return m.nextModel(), nil
	case keyWarmer:
		return m.adjustTemperature(chat.TemperatureStep), nil
	case keyCooler:
		return m.adjustTemperature(-chat.TemperatureStep), nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if m.busy || strings.TrimSpace(text) == "" {
		return m, nil
	}
	m.input.Reset()
	m.busy = true
	m.diagnostic = ""
	m.status = ""
	m.pending = ""
	// Show the prompt right away; the stored transcript is reloaded once the reply lands.
	m.transcript = append(m.transcript, chat.UserTurn(text))
	m.stream = make(chan tea.Msg, 64)
	m.refreshViewport()

	return m, tea.Batch(m.spinner.Tick, m.startSubmit(text))
}

// startSubmit runs the controller in the background and relays deltas and the final
// reply through m.stream.
func (m Model) startSubmit(text string) tea.Cmd {
	ch := m.stream
	ctx, controller, sessionID := m.ctx, m.controller, m.sessionID
	go func() {
		defer close(ch)
		outcome, err := controller.Submit(ctx, sessionID, text, func(delta string) {
			ch <- deltaMsg(delta)
		})
		ch <- replyMsg{outcome: outcome, err: err}
	}()
	return listen(ch)
}

func listen(ch <-chan tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func (m Model) clear() Model {
	if m.busy {
		m.status = "Reply abhi aa raha hai, thora intezar karein"
		return m
	}
	if _, err := m.controller.Reset(m.ctx, m.sessionID); err != nil {
		m.diagnostic = err.Error()
		return m
	}
	m.diagnostic = ""
	m.status = "Chat cleared!"
	if err := m.reload(); err != nil {
		m.diagnostic = err.Error()
	}
	return m
}

func (m Model) exportJSON() Model {
	if len(m.transcript) == 0 {
		return m
	}
	path, err := export.WriteFile(m.opts.ExportDir, m.opts.ExportPrefix, export.JSONExporter{}, export.Document{
		SessionID:  m.sessionID,
		Config:     m.config,
		ExportedAt: m.opts.Now(),
		Turns:      m.transcript,
	})
	if err != nil {
		m.diagnostic = err.Error()
		return m
	}
	log.Printf("[tui] exported session=%s to %s", m.sessionID, path)
	m.status = "Saved " + path
	return m
}

func (m Model) nextModel() Model {
	next := m.models.Next(m.config.Model)
	return m.applyConfig(catalog.ConfigUpdate{Model: &next.ID})
}

func (m Model) adjustTemperature(delta float64) Model {
	t := chat.SnapTemperature(m.config.Temperature + delta)
	return m.applyConfig(catalog.ConfigUpdate{Temperature: &t})
}

func (m Model) applyConfig(update catalog.ConfigUpdate) Model {
	next, err := catalog.Apply(m.models, m.config, update)
	if err != nil {
		m.diagnostic = err.Error()
		return m
	}
	if err := m.chatSvc.UpdateGenerationConfig(m.ctx, m.sessionID, next); err != nil {
		m.diagnostic = err.Error()
		return m
	}
	m.config = next
	m.status = fmt.Sprintf("Model %s, creativity %.1f", next.Model, next.Temperature)
	return m
}

// reload pulls the transcript and settings back from the store.
func (m *Model) reload() error {
	turns, err := m.chatSvc.LoadTranscript(m.ctx, m.sessionID)
	if err != nil {
		return err
	}
	cfg, err := m.chatSvc.GenerationConfig(m.ctx, m.sessionID)
	if err != nil {
		return err
	}
	m.transcript = turns
	m.config = cfg
	m.refreshViewport()
	return nil
}

func (m *Model) refreshViewport() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}
