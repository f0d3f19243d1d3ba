package port

import (
	"context"

	"vectorchat/internal/domain"
)

// LLM is a chat-completion provider.
type LLM interface {
	// Complete answers userMessage, grounded by systemContext when it is not empty.
	Complete(ctx context.Context, systemContext, userMessage string) (string, error)

	// Chat sends a full message history and returns the assistant reply.
	Chat(ctx context.Context, messages []domain.ChatMessage) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}
