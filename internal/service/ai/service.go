package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// Service runs assembled conversation context through the completion model.
// The prompt chain keeps the context blocks ahead of the live user turn, so
// the provider always sees system framing before conversational history
// before the question.
type Service struct {
	chatModel model.BaseChatModel
	chain     compose.Runnable[map[string]any, *schema.Message]
	streaming bool
}

// NewService compiles the prompt chain around the supplied chat model.
func NewService(ctx context.Context, chatModel model.BaseChatModel, streaming bool) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("context", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		chain:     runnable,
		streaming: streaming,
	}, nil
}

// StreamingEnabled reports whether streamed completions are configured.
func (s *Service) StreamingEnabled() bool {
	return s.streaming
}

// GenerateResponse runs one non-streaming completion over the prepared
// context blocks plus the live user turn.
func (s *Service) GenerateResponse(ctx context.Context, conversationID string, contextBlocks []*schema.Message, userText string) (*schema.Message, error) {
	response, err := s.chain.Invoke(ctx, chainInput(contextBlocks, userText))
	if err != nil {
		return nil, err
	}

	log.Printf("[ai] generated response for conversation=%s, length=%d", conversationID, len(response.Content))
	return response, nil
}

// StreamResponse streams completion fragments for the prepared context.
func (s *Service) StreamResponse(ctx context.Context, contextBlocks []*schema.Message, userText string) (*schema.StreamReader[*schema.Message], error) {
	if !s.streaming {
		return nil, fmt.Errorf("streaming disabled in configuration")
	}

	stream, err := s.chain.Stream(ctx, chainInput(contextBlocks, userText))
	if err != nil {
		return nil, err
	}

	return stream, nil
}

func chainInput(contextBlocks []*schema.Message, userText string) map[string]any {
	return map[string]any{
		"context": contextBlocks,
		"query":   userText,
	}
}
