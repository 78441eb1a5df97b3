package gigachat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/arkanum/ai-server/internal/config"
)

// fallbackResponse is returned when the provider answers with a success
// status but a body missing the expected content. The conversational surface
// must always answer something.
const fallbackResponse = "Ошибка получения ответа"

// ChatModel talks to the GigaChat completion API. It implements eino's
// model.BaseChatModel so it can sit at the end of a prompt chain like any
// other provider binding.
type ChatModel struct {
	cfg          config.GigaChatConfig
	tokens       *TokenManager
	client       *http.Client
	streamClient *http.Client
}

var _ model.BaseChatModel = (*ChatModel)(nil)

// NewChatModel builds the completion client on top of a shared token manager.
func NewChatModel(cfg config.GigaChatConfig, tokens *TokenManager) *ChatModel {
	return &ChatModel{
		cfg:    cfg,
		tokens: tokens,
		client: &http.Client{Timeout: cfg.ChatTimeout},
		// Streaming calls may legitimately wait on upstream for longer than
		// any fixed timeout; cancellation comes from the request context.
		streamClient: &http.Client{},
	}
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message wireMessage `json:"message"`
	} `json:"choices"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Generate sends one non-streaming completion request and returns the
// assistant message.
func (c *ChatModel) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	resp, err := c.roundTrip(ctx, c.client, c.buildRequest(in, false, opts))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: err.Error()}
	}

	var parsed completionResponse
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		log.Printf("[gigachat] completion body missing content, using fallback text")
		return schema.AssistantMessage(fallbackResponse, nil), nil
	}

	return schema.AssistantMessage(parsed.Choices[0].Message.Content, nil), nil
}

// Stream sends one streaming completion request and returns a single-pass
// reader of assistant message fragments. The stream terminates when upstream
// closes the connection or emits its end-of-stream sentinel; mid-stream read
// failures surface as a terminal error on the reader.
func (c *ChatModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	resp, err := c.roundTrip(ctx, c.streamClient, c.buildRequest(in, true, opts))
	if err != nil {
		return nil, err
	}

	sr, sw := schema.Pipe[*schema.Message](8)

	go func() {
		defer resp.Body.Close()
		defer sw.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}

			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				return
			}

			var chunk streamChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				log.Printf("[gigachat] skipping malformed stream chunk: %v", err)
				continue
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}

			if closed := sw.Send(schema.AssistantMessage(chunk.Choices[0].Delta.Content, nil), nil); closed {
				return
			}
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			sw.Send(nil, fmt.Errorf("gigachat stream read: %w", err))
		}
	}()

	return sr, nil
}

// buildRequest resolves per-call option overrides against the configured
// defaults and assembles the wire payload.
func (c *ChatModel) buildRequest(in []*schema.Message, stream bool, opts []model.Option) completionRequest {
	modelName := c.cfg.Model
	resolved := model.GetCommonOptions(&model.Options{Model: &modelName}, opts...)

	temperature := c.cfg.Temperature
	if resolved.Temperature != nil {
		temperature = float64(*resolved.Temperature)
	}

	messages := make([]wireMessage, 0, len(in))
	for _, msg := range in {
		if msg == nil {
			continue
		}
		messages = append(messages, wireMessage{Role: string(msg.Role), Content: msg.Content})
	}

	return completionRequest{
		Model:       *resolved.Model,
		Messages:    messages,
		Temperature: temperature,
		Stream:      stream,
		MaxTokens:   resolved.MaxTokens,
	}
}

// roundTrip obtains a bearer token and performs the completion POST,
// converting non-success statuses into UpstreamError.
func (c *ChatModel) roundTrip(ctx context.Context, client *http.Client, payload completionRequest) (*http.Response, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ChatURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Status: 0, Body: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &UpstreamError{Status: resp.StatusCode, Body: strings.TrimSpace(string(detail))}
	}

	return resp, nil
}
