// Package gemini implements an eino chat model over the Gemini generateContent REST API.
package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// DefaultBaseURL is the public v1beta endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

var (
	ErrBlocked       = errors.New("gemini blocked the request")
	ErrEmptyResponse = errors.New("gemini returned no text")
)

// Config 描述 Gemini 模型连接参数。
type Config struct {
	APIKey  string
	BaseURL string
	Model   string

	// HTTPClient defaults to a client without timeout; the provider's own limits apply.
	HTTPClient *http.Client

	Temperature     *float32
	TopP            *float32
	TopK            *int
	MaxOutputTokens *int
}

// ChatModel talks to Gemini and satisfies model.BaseChatModel.
type ChatModel struct {
	cfg     Config
	client  *http.Client
	baseURL string
}

var _ model.BaseChatModel = (*ChatModel)(nil)

// NewChatModel validates the config and returns a ready ChatModel.
func NewChatModel(_ context.Context, cfg *Config) (*ChatModel, error) {
	if cfg == nil {
		return nil, errors.New("gemini config is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini api key is required")
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &ChatModel{cfg: *cfg, client: client, baseURL: baseURL}, nil
}

// Generate sends the conversation and returns the first candidate.
func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	modelID, req, err := m.buildRequest(input, opts...)
	if err != nil {
		return nil, err
	}

	resp, err := m.post(ctx, modelID, "generateContent", false, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}

	return toMessage(out, true)
}

// Stream sends the conversation and yields candidate chunks as they arrive over SSE.
func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	modelID, req, err := m.buildRequest(input, opts...)
	if err != nil {
		return nil, err
	}

	resp, err := m.post(ctx, modelID, "streamGenerateContent", true, req)
	if err != nil {
		return nil, err
	}

	sr, sw := schema.Pipe[*schema.Message](8)
	go func() {
		defer resp.Body.Close()
		defer sw.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "" {
				continue
			}

			var chunk generateResponse
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				sw.Send(nil, fmt.Errorf("decode gemini stream chunk: %w", err))
				return
			}

			msg, err := toMessage(chunk, false)
			if closed := sw.Send(msg, err); closed || err != nil {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			sw.Send(nil, fmt.Errorf("read gemini stream: %w", err))
		}
	}()

	return sr, nil
}

// ProviderRole maps an eino role onto the role vocabulary of the API.
// System messages travel separately as systemInstruction.
func ProviderRole(role schema.RoleType) (string, bool) {
	switch role {
	case schema.User:
		return "user", true
	case schema.Assistant:
		return "model", true
	default:
		return "", false
	}
}

func (m *ChatModel) buildRequest(input []*schema.Message, opts ...model.Option) (string, generateRequest, error) {
	common := model.GetCommonOptions(&model.Options{
		Model:       &m.cfg.Model,
		Temperature: m.cfg.Temperature,
		TopP:        m.cfg.TopP,
		MaxTokens:   m.cfg.MaxOutputTokens,
	}, opts...)
	specific := model.GetImplSpecificOptions(&options{TopK: m.cfg.TopK}, opts...)

	modelID := ""
	if common.Model != nil {
		modelID = strings.TrimSpace(*common.Model)
	}
	if modelID == "" {
		return "", generateRequest{}, errors.New("gemini model is required")
	}

	req := generateRequest{Contents: make([]content, 0, len(input))}
	var system []part
	for _, msg := range input {
		if msg == nil {
			continue
		}
		if msg.Role == schema.System {
			if msg.Content != "" {
				system = append(system, part{Text: msg.Content})
			}
			continue
		}
		role, ok := ProviderRole(msg.Role)
		if !ok {
			continue
		}
		req.Contents = append(req.Contents, content{Role: role, Parts: []part{{Text: msg.Content}}})
	}
	if len(req.Contents) == 0 {
		return "", generateRequest{}, errors.New("gemini request has no contents")
	}
	if len(system) > 0 {
		req.SystemInstruction = &content{Parts: system}
	}

	gen := &generationConfig{
		Temperature:     common.Temperature,
		TopP:            common.TopP,
		TopK:            specific.TopK,
		MaxOutputTokens: common.MaxTokens,
		StopSequences:   common.Stop,
	}
	if gen.Temperature != nil || gen.TopP != nil || gen.TopK != nil || gen.MaxOutputTokens != nil || len(gen.StopSequences) > 0 {
		req.GenerationConfig = gen
	}

	return modelID, req, nil
}

func (m *ChatModel) post(ctx context.Context, modelID, method string, sse bool, body generateRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode gemini request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:%s", m.baseURL, url.PathEscape(modelID), method)
	if sse {
		endpoint += "?alt=sse"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", m.cfg.APIKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call gemini: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	var envelope errorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Message = envelope.Error.Message
		apiErr.Status = envelope.Error.Status
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// toMessage converts a response (or stream chunk) into an assistant message.
// requireText is false for stream chunks, which may legitimately carry only metadata.
func toMessage(resp generateResponse, requireText bool) (*schema.Message, error) {
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("%w: prompt block reason %s", ErrBlocked, resp.PromptFeedback.BlockReason)
		}
		if requireText {
			return nil, ErrEmptyResponse
		}
		return &schema.Message{Role: schema.Assistant, ResponseMeta: responseMeta(resp, "")}, nil
	}

	first := resp.Candidates[0]
	var text strings.Builder
	if first.Content != nil {
		for _, p := range first.Content.Parts {
			text.WriteString(p.Text)
		}
	}

	if text.Len() == 0 {
		switch first.FinishReason {
		case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT", "SPII":
			return nil, fmt.Errorf("%w: finish reason %s", ErrBlocked, first.FinishReason)
		}
		if requireText {
			return nil, fmt.Errorf("%w (finish reason %s)", ErrEmptyResponse, first.FinishReason)
		}
	}

	return &schema.Message{
		Role:         schema.Assistant,
		Content:      text.String(),
		ResponseMeta: responseMeta(resp, first.FinishReason),
	}, nil
}

func responseMeta(resp generateResponse, finishReason string) *schema.ResponseMeta {
	meta := &schema.ResponseMeta{FinishReason: finishReason}
	if resp.UsageMetadata != nil {
		meta.Usage = &schema.TokenUsage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		}
	}
	return meta
}
