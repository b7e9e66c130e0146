// Package conversation drives one user submission from input to stored reply.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

// Generator is the model client the controller calls.
type Generator interface {
	Generate(ctx context.Context, history []chat.Turn, prompt string, cfg chat.GenerationConfig) (string, error)
}

// StreamGenerator is a Generator that can also hand out reply chunks as they arrive.
type StreamGenerator interface {
	Generator
	Stream(ctx context.Context, history []chat.Turn, prompt string, cfg chat.GenerationConfig, onDelta func(string)) (string, error)
	StreamingEnabled() bool
}

// Store is the slice of the session store the controller needs.
type Store interface {
	AppendTurn(ctx context.Context, sessionID string, turn chat.Turn) error
	LoadTranscript(ctx context.Context, sessionID string) ([]chat.Turn, error)
	ResetTranscript(ctx context.Context, sessionID string) ([]chat.Turn, error)
	GenerationConfig(ctx context.Context, sessionID string) (chat.GenerationConfig, error)
	BeginReply(ctx context.Context, sessionID string) error
	EndReply(ctx context.Context, sessionID string)
}

// Recorder receives one entry per generation call. See storage/requestlog.
type Recorder interface {
	Record(ctx context.Context, entry Record) error
}

// Record describes a finished generation call and the settings it ran with.
type Record struct {
	SessionID    string
	Config       chat.GenerationConfig
	HistoryTurns int
	PromptChars  int
	ReplyChars   int
	Err          error
	Latency      time.Duration
	CreatedAt    time.Time
}

// Outcome reports what a submission did to the transcript.
type Outcome struct {
	// Submitted is false when the input was empty and nothing happened.
	Submitted bool
	User      chat.Turn
	Reply     chat.Turn
	// Failed marks a reply that is the apology text rather than model output.
	Failed bool
	// Diagnostic carries the raw generation error for the operator-facing area.
	Diagnostic string
}

// Controller runs Idle -> AwaitingReply -> Idle for each submission.
type Controller struct {
	store     Store
	generator Generator
	apology   string
	recorder  Recorder
}

// Option customises a Controller.
type Option func(*Controller)

// WithRecorder stores a request log entry for every generation call.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// NewController wires the store and generator. apology is appended whenever generation fails.
func NewController(store Store, generator Generator, apology string, opts ...Option) *Controller {
	c := &Controller{
		store:     store,
		generator: generator,
		apology:   apology,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Callbacks report the progress of one submission.
type Callbacks struct {
	// OnAccepted runs once the user turn is stored and the session is awaiting the reply.
	// It never runs for empty input or a busy session.
	OnAccepted func(user chat.Turn)
	// OnDelta receives reply chunks when the generator streams.
	OnDelta func(string)
}

// Submit appends the user input, asks the model with the prior turns as history, and appends
// the reply or the apology. Empty or whitespace-only input is a no-op. onDelta, when non-nil
// and the generator streams, receives reply chunks before the final turn is stored.
func (c *Controller) Submit(ctx context.Context, sessionID, input string, onDelta func(string)) (Outcome, error) {
	return c.SubmitWithCallbacks(ctx, sessionID, input, Callbacks{OnDelta: onDelta})
}

// SubmitWithCallbacks is Submit with an extra notification once the prompt is accepted.
func (c *Controller) SubmitWithCallbacks(ctx context.Context, sessionID, input string, cb Callbacks) (Outcome, error) {
	if strings.TrimSpace(input) == "" {
		return Outcome{}, nil
	}

	if err := c.store.BeginReply(ctx, sessionID); err != nil {
		return Outcome{}, err
	}
	defer c.store.EndReply(ctx, sessionID)

	userTurn := chat.UserTurn(input)
	if err := c.store.AppendTurn(ctx, sessionID, userTurn); err != nil {
		return Outcome{}, err
	}
	if cb.OnAccepted != nil {
		cb.OnAccepted(userTurn)
	}
	onDelta := cb.OnDelta

	transcript, err := c.store.LoadTranscript(ctx, sessionID)
	if err != nil {
		return Outcome{}, err
	}
	// The just-appended prompt goes out separately from the history.
	history := transcript[:len(transcript)-1]

	cfg, err := c.store.GenerationConfig(ctx, sessionID)
	if err != nil {
		return Outcome{}, err
	}

	start := time.Now()
	reply, genErr := c.generate(ctx, history, input, cfg, onDelta)
	latency := time.Since(start)

	outcome := Outcome{Submitted: true, User: userTurn}
	if genErr != nil {
		log.Printf("[conversation] generation failed for session=%s model=%s: %v", sessionID, cfg.Model, genErr)
		outcome.Failed = true
		outcome.Diagnostic = genErr.Error()
		outcome.Reply = chat.AssistantTurn(c.apology)
	} else {
		outcome.Reply = chat.AssistantTurn(reply)
	}

	if err := c.store.AppendTurn(context.WithoutCancel(ctx), sessionID, outcome.Reply); err != nil {
		return outcome, fmt.Errorf("failed to store reply: %w", err)
	}

	c.record(ctx, Record{
		SessionID:    sessionID,
		Config:       cfg,
		HistoryTurns: len(history),
		PromptChars:  len([]rune(input)),
		ReplyChars:   len([]rune(reply)),
		Err:          genErr,
		Latency:      latency,
		CreatedAt:    start.UTC(),
	})

	return outcome, nil
}

// Reset returns the session to its greeting and hands back the transcript to redraw.
func (c *Controller) Reset(ctx context.Context, sessionID string) ([]chat.Turn, error) {
	turns, err := c.store.ResetTranscript(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	log.Printf("[conversation] transcript reset for session=%s", sessionID)
	return turns, nil
}

// Streaming reports whether Submit forwards chunks to onDelta.
func (c *Controller) Streaming() bool {
	sg, ok := c.generator.(StreamGenerator)
	return ok && sg.StreamingEnabled()
}

// generate waits for the provider to finish even if the caller goes away; there is no
// user-facing cancellation.
func (c *Controller) generate(ctx context.Context, history []chat.Turn, input string, cfg chat.GenerationConfig, onDelta func(string)) (string, error) {
	if c.generator == nil {
		return "", errors.New("no model client configured")
	}
	ctx = context.WithoutCancel(ctx)
	if sg, ok := c.generator.(StreamGenerator); ok && onDelta != nil && sg.StreamingEnabled() {
		return sg.Stream(ctx, history, input, cfg, onDelta)
	}
	return c.generator.Generate(ctx, history, input, cfg)
}

func (c *Controller) record(ctx context.Context, entry Record) {
	if c.recorder == nil {
		return
	}
	// The reply is already stored; a cancelled request must not drop its log entry.
	if err := c.recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
		log.Printf("[conversation] failed to record request for session=%s: %v", entry.SessionID, err)
	}
}
