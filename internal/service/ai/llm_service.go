package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/zhouzirui/z-chat/backend/internal/config"
	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	"github.com/zhouzirui/z-chat/backend/internal/provider/gemini"
)

const instrumentationName = "github.com/zhouzirui/z-chat/backend/internal/service/ai"

// Service is the boundary between the local transcript and the remote model.
type Service struct {
	cfg   config.AIConfig
	chain compose.Runnable[map[string]any, *schema.Message]

	tracer      trace.Tracer
	generations metric.Int64Counter
	latency     metric.Float64Histogram
}

// NewService compiles the prompt chain around chatModel.
func NewService(ctx context.Context, chatModel model.BaseChatModel, cfg config.AIConfig) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}

	templates := make([]schema.MessagesTemplate, 0, 3)
	if strings.TrimSpace(cfg.SystemPrompt) != "" {
		templates = append(templates, schema.SystemMessage("{system}"))
	}
	templates = append(templates,
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)
	promptTemplate := prompt.FromMessages(schema.FString, templates...)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	meter := otel.Meter(instrumentationName)
	generations, err := meter.Int64Counter("chat.generations",
		metric.WithDescription("Generation calls by outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create generation counter: %w", err)
	}
	latency, err := meter.Float64Histogram("chat.generation.latency",
		metric.WithDescription("Generation call latency"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("failed to create latency histogram: %w", err)
	}

	return &Service{
		cfg:         cfg,
		chain:       runnable,
		tracer:      otel.Tracer(instrumentationName),
		generations: generations,
		latency:     latency,
	}, nil
}

// StreamingEnabled 指示是否开启流式输出。
func (s *Service) StreamingEnabled() bool {
	return s.cfg.StreamResponse
}

// Generate sends history as prior context and prompt as the new message, returning the reply.
// Every failure comes back as *GenerationError.
func (s *Service) Generate(ctx context.Context, history []chat.Turn, userMessage string, gen chat.GenerationConfig) (reply string, err error) {
	ctx, span := s.startSpan(ctx, "ai.generate", history, gen)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			reply, err = "", &GenerationError{Model: gen.Model, Message: fmt.Sprintf("chat model panicked: %v", r)}
		}
		s.observe(ctx, span, gen, start, err)
	}()

	response, err := s.chain.Invoke(ctx, s.buildChainInput(history, userMessage), s.callOptions(gen)...)
	if err != nil {
		return "", newGenerationError(gen.Model, err)
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return "", newGenerationError(gen.Model, ErrEmptyReply)
	}

	log.Printf("[ai] generated response model=%s, history=%d, length=%d", gen.Model, len(history), len(response.Content))
	return response.Content, nil
}

// Stream works like Generate but hands every text chunk to onDelta as it arrives.
// The concatenated reply is returned once the stream ends.
func (s *Service) Stream(ctx context.Context, history []chat.Turn, userMessage string, gen chat.GenerationConfig, onDelta func(string)) (reply string, err error) {
	ctx, span := s.startSpan(ctx, "ai.stream", history, gen)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			reply, err = "", &GenerationError{Model: gen.Model, Message: fmt.Sprintf("chat model panicked: %v", r)}
		}
		s.observe(ctx, span, gen, start, err)
	}()

	stream, err := s.chain.Stream(ctx, s.buildChainInput(history, userMessage), s.callOptions(gen)...)
	if err != nil {
		return "", newGenerationError(gen.Model, err)
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", newGenerationError(gen.Model, recvErr)
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" && onDelta != nil {
			onDelta(chunk.Content)
		}
	}

	if len(chunks) == 0 {
		return "", newGenerationError(gen.Model, ErrEmptyReply)
	}
	response, err := schema.ConcatMessages(chunks)
	if err != nil {
		return "", newGenerationError(gen.Model, err)
	}
	if strings.TrimSpace(response.Content) == "" {
		return "", newGenerationError(gen.Model, ErrEmptyReply)
	}

	log.Printf("[ai] streamed response model=%s, history=%d, chunks=%d, length=%d", gen.Model, len(history), len(chunks), len(response.Content))
	return response.Content, nil
}

func (s *Service) buildChainInput(history []chat.Turn, userMessage string) map[string]any {
	input := map[string]any{
		"history": BuildHistory(history),
		"query":   userMessage,
	}
	if strings.TrimSpace(s.cfg.SystemPrompt) != "" {
		input["system"] = s.cfg.SystemPrompt
	}
	return input
}

// BuildHistory converts transcript turns into chain messages, keeping their order.
// Assistant turns become schema.Assistant, which providers render in their own vocabulary
// (Gemini calls it "model").
func BuildHistory(turns []chat.Turn) []*schema.Message {
	if len(turns) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(turn.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(turn.Content, nil))
		}
	}
	return history
}

// ModelOptions translates a GenerationConfig into per-call chat model options.
func ModelOptions(gen chat.GenerationConfig, perRequestModel bool) []model.Option {
	opts := []model.Option{model.WithTemperature(float32(gen.Temperature))}
	if gen.TopP > 0 {
		opts = append(opts, model.WithTopP(float32(gen.TopP)))
	}
	if gen.MaxOutputTokens > 0 {
		opts = append(opts, model.WithMaxTokens(gen.MaxOutputTokens))
	}
	if gen.TopK > 0 {
		opts = append(opts, gemini.WithTopK(gen.TopK))
	}
	if perRequestModel && gen.Model != "" {
		opts = append(opts, model.WithModel(gen.Model))
	}
	return opts
}

func (s *Service) callOptions(gen chat.GenerationConfig) []compose.Option {
	return []compose.Option{compose.WithChatModelOption(ModelOptions(gen, s.cfg.PerRequestModel())...)}
}

func (s *Service) startSpan(ctx context.Context, name string, history []chat.Turn, gen chat.GenerationConfig) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("llm.model", gen.Model),
		attribute.Float64("llm.temperature", gen.Temperature),
		attribute.Float64("llm.top_p", gen.TopP),
		attribute.Int("llm.top_k", gen.TopK),
		attribute.Int("llm.max_output_tokens", gen.MaxOutputTokens),
		attribute.Int("chat.history_turns", len(history)),
	))
}

func (s *Service) observe(ctx context.Context, span trace.Span, gen chat.GenerationConfig, start time.Time, err error) {
	defer span.End()

	outcome := "success"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	attrs := metric.WithAttributes(
		attribute.String("llm.model", gen.Model),
		attribute.String("outcome", outcome),
	)
	s.generations.Add(ctx, 1, attrs)
	s.latency.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)
}
