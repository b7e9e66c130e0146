package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/z-chat/backend/internal/service/chat"
	"github.com/zhouzirui/z-chat/backend/internal/service/conversation"
)

type streamingStub struct {
	chunks []string
	err    error
}

func (s *streamingStub) Generate(_ context.Context, _ []chat.Turn, _ string, _ chat.GenerationConfig) (string, error) {
	return strings.Join(s.chunks, ""), s.err
}

func (s *streamingStub) Stream(_ context.Context, _ []chat.Turn, _ string, _ chat.GenerationConfig, onDelta func(string)) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	for _, c := range s.chunks {
		onDelta(c)
	}
	return strings.Join(s.chunks, ""), nil
}

func (s *streamingStub) StreamingEnabled() bool { return true }

func setup(t *testing.T, gen conversation.Generator, showDiagnostics bool) (*chi.Mux, *chatservice.Service, string) {
	t.Helper()
	chatSvc := chatservice.NewService("Salam!", chat.NewGenerationConfig("gemini-2.0-flash", 0.7))
	session, err := chatSvc.CreateSession(context.Background())
	require.NoError(t, err)

	controller := conversation.NewController(chatSvc, gen, "Kuch galat ho gaya.")
	r := chi.NewRouter()
	New(controller, chatSvc, showDiagnostics).RegisterRoutes(r)
	return r, chatSvc, session.ID
}

// readEvents parses "event:"/"data:" pairs from an SSE body.
func readEvents(t *testing.T, body string) []StreamResponse {
	t.Helper()
	var events []StreamResponse
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev StreamResponse
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func eventNames(events []StreamResponse) []string {
	names := make([]string, 0, len(events))
	for _, ev := range events {
		names = append(names, ev.Event)
	}
	return names
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
	return resp
}

func TestStreamSendsDeltasThenMessage(t *testing.T) {
	r, chatSvc, id := setup(t, &streamingStub{chunks: []string{"Wa ", "salam"}}, true)

	resp := get(r, "/stream/"+id+"?message="+url.QueryEscape("Salam"))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "text/event-stream", resp.Header().Get("Content-Type"))

	events := readEvents(t, resp.Body.String())
	assert.Equal(t, []string{"start", "delta", "delta", "message", "end"}, eventNames(events))
	assert.Equal(t, "Wa salam", events[3].Content)
	assert.Equal(t, "assistant", events[3].Role)

	turns, _ := chatSvc.LoadTranscript(context.Background(), id)
	assert.Len(t, turns, 3)
}

func TestStreamFailureSendsApologyAndDiagnostic(t *testing.T) {
	r, _, id := setup(t, &streamingStub{err: errors.New("network is unreachable")}, true)

	events := readEvents(t, get(r, "/stream/"+id+"?message=hi").Body.String())
	assert.Equal(t, []string{"start", "message", "error", "end"}, eventNames(events))
	assert.True(t, events[1].Failed)
	assert.Equal(t, "Kuch galat ho gaya.", events[1].Content)
	assert.Contains(t, events[2].Error, "network is unreachable")
}

func TestStreamFailureHidesDiagnostic(t *testing.T) {
	r, _, id := setup(t, &streamingStub{err: errors.New("network is unreachable")}, false)

	body := get(r, "/stream/"+id+"?message=hi").Body.String()
	assert.NotContains(t, body, "unreachable")
}

func TestStreamRequiresMessage(t *testing.T) {
	r, _, id := setup(t, &streamingStub{}, true)
	assert.Equal(t, http.StatusBadRequest, get(r, "/stream/"+id).Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/stream/"+id+"?message=%20%20").Code)
}

func TestStreamUnknownSessionAndBusy(t *testing.T) {
	r, chatSvc, id := setup(t, &streamingStub{chunks: []string{"x"}}, true)
	assert.Equal(t, http.StatusNotFound, get(r, "/stream/missing?message=hi").Code)

	require.NoError(t, chatSvc.BeginReply(context.Background(), id))
	assert.Equal(t, http.StatusConflict, get(r, "/stream/"+id+"?message=hi").Code)
}
