package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionBusy     = errors.New("session is awaiting a reply")
	ErrInvalidTurn     = errors.New("turn role must be user or assistant")
)

type sessionState struct {
	session    chat.Session
	transcript *Transcript
	config     chat.GenerationConfig
	state      chat.State
}

// Service encapsulates conversation state management for many isolated sessions.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*sessionState
	greeting string
	defaults chat.GenerationConfig
}

// NewService bootstraps the in-memory session registry. Transcripts live as long as the process.
func NewService(greeting string, defaults chat.GenerationConfig) *Service {
	return &Service{
		sessions: make(map[string]*sessionState),
		greeting: greeting,
		defaults: defaults,
	}
}

// Greeting returns the text every fresh transcript starts with.
func (s *Service) Greeting() string {
	return s.greeting
}

// DefaultGenerationConfig returns the settings new sessions start with.
func (s *Service) DefaultGenerationConfig() chat.GenerationConfig {
	return s.defaults
}

// CreateSession provisions a session holding only the greeting.
func (s *Service) CreateSession(_ context.Context) (chat.Session, error) {
	session := chat.Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = &sessionState{
		session:    session,
		transcript: NewTranscript(s.greeting),
		config:     s.defaults,
		state:      chat.StateIdle,
	}
	s.mu.Unlock()

	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return st.session, nil
}

// DeleteSession forgets a session and its transcript.
func (s *Service) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

// AppendTurn appends a turn to the session history.
func (s *Service) AppendTurn(_ context.Context, sessionID string, turn chat.Turn) error {
	if !turn.Role.Valid() {
		return ErrInvalidTurn
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	st.transcript.Append(turn)
	return nil
}

// LoadTranscript returns a snapshot of the session's turns.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return st.transcript.Snapshot(), nil
}

// ResetTranscript returns the session to the single greeting turn.
// It is refused while a reply is being generated.
func (s *Service) ResetTranscript(_ context.Context, sessionID string) ([]chat.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if st.state == chat.StateAwaitingReply {
		return nil, ErrSessionBusy
	}
	st.transcript.Reset()
	return st.transcript.Snapshot(), nil
}

// GenerationConfig returns the settings for the next request of the session.
func (s *Service) GenerationConfig(_ context.Context, sessionID string) (chat.GenerationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.sessions[sessionID]
	if !ok {
		return chat.GenerationConfig{}, ErrSessionNotFound
	}
	return st.config, nil
}

// UpdateGenerationConfig replaces the session settings; an in-flight request keeps the old ones.
func (s *Service) UpdateGenerationConfig(_ context.Context, sessionID string, cfg chat.GenerationConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	st.config = cfg
	return nil
}

// State reports whether the session is idle or awaiting a reply.
func (s *Service) State(_ context.Context, sessionID string) (chat.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.sessions[sessionID]
	if !ok {
		return "", ErrSessionNotFound
	}
	return st.state, nil
}

// BeginReply moves the session from Idle to AwaitingReply.
func (s *Service) BeginReply(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if st.state == chat.StateAwaitingReply {
		return ErrSessionBusy
	}
	st.state = chat.StateAwaitingReply
	return nil
}

// EndReply moves the session back to Idle. Unknown sessions are ignored.
func (s *Service) EndReply(_ context.Context, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.sessions[sessionID]; ok {
		st.state = chat.StateIdle
	}
}
