package chat_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/zhouzirui/z-chat/backend/internal/model/chat"
	chat "github.com/zhouzirui/z-chat/backend/internal/service/chat"
)

const greeting = "Salam! 🤖"

func newService() *chat.Service {
	return chat.NewService(greeting, model.NewGenerationConfig("gemini-2.0-flash", 0.7))
}

func TestServiceGetSession(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	got, err := svc.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}

	if got.ID != session.ID {
		t.Fatalf("unexpected session ID: got %s want %s", got.ID, session.ID)
	}
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	if _, err := svc.GetSession(ctx, "missing"); err == nil {
		t.Fatal("expected error for missing session")
	}
}

func TestFreshSessionStartsWithGreeting(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		session, err := svc.CreateSession(ctx)
		require.NoError(t, err)

		turns, err := svc.LoadTranscript(ctx, session.ID)
		require.NoError(t, err)
		require.Len(t, turns, 1)
		assert.Equal(t, model.AssistantTurn(greeting), turns[0])
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	a, _ := svc.CreateSession(ctx)
	b, _ := svc.CreateSession(ctx)

	require.NoError(t, svc.AppendTurn(ctx, a.ID, model.UserTurn("only in a")))

	turnsA, _ := svc.LoadTranscript(ctx, a.ID)
	turnsB, _ := svc.LoadTranscript(ctx, b.ID)
	assert.Len(t, turnsA, 2)
	assert.Len(t, turnsB, 1)
}

func TestAppendTurnRejectsUnknownRole(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx)

	err := svc.AppendTurn(ctx, session.ID, model.Turn{Role: "system", Content: "x"})
	assert.ErrorIs(t, err, chat.ErrInvalidTurn)

	err = svc.AppendTurn(ctx, "missing", model.UserTurn("x"))
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestResetTranscriptRefusedWhileAwaitingReply(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx)

	require.NoError(t, svc.AppendTurn(ctx, session.ID, model.UserTurn("hello")))
	require.NoError(t, svc.BeginReply(ctx, session.ID))

	_, err := svc.ResetTranscript(ctx, session.ID)
	assert.ErrorIs(t, err, chat.ErrSessionBusy)

	svc.EndReply(ctx, session.ID)
	turns, err := svc.ResetTranscript(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.Turn{model.AssistantTurn(greeting)}, turns)
}

func TestBeginReplyTwiceIsBusy(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx)

	require.NoError(t, svc.BeginReply(ctx, session.ID))
	state, _ := svc.State(ctx, session.ID)
	assert.Equal(t, model.StateAwaitingReply, state)

	assert.ErrorIs(t, svc.BeginReply(ctx, session.ID), chat.ErrSessionBusy)

	svc.EndReply(ctx, session.ID)
	state, _ = svc.State(ctx, session.ID)
	assert.Equal(t, model.StateIdle, state)
}

func TestUpdateGenerationConfig(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx)

	cfg, err := svc.GenerationConfig(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash", cfg.Model)

	updated := model.NewGenerationConfig("gemini-2.5-pro", 0.2)
	require.NoError(t, svc.UpdateGenerationConfig(ctx, session.ID, updated))

	cfg, _ = svc.GenerationConfig(ctx, session.ID)
	assert.Equal(t, updated, cfg)

	bad := updated
	bad.Temperature = 3
	assert.Error(t, svc.UpdateGenerationConfig(ctx, session.ID, bad))
}

func TestDeleteSession(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx)

	require.NoError(t, svc.DeleteSession(ctx, session.ID))
	_, err := svc.LoadTranscript(ctx, session.ID)
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
	assert.ErrorIs(t, svc.DeleteSession(ctx, session.ID), chat.ErrSessionNotFound)
}
