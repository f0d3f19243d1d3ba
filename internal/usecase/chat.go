package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"vectorchat/internal/domain"
	"vectorchat/internal/port"
)

// Conversation is the running chat history. It is a value: every method
// returns a new Conversation and never changes the receiver.
type Conversation struct {
	messages []domain.ChatMessage
}

func NewConversation(systemPrompt string) Conversation {
	if strings.TrimSpace(systemPrompt) == "" {
		return Conversation{}
	}
	return Conversation{messages: []domain.ChatMessage{domain.SystemMessage(systemPrompt)}}
}

// Messages returns a copy of the history.
func (c Conversation) Messages() []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c Conversation) Len() int {
	return len(c.messages)
}

// Reset drops everything except system messages.
func (c Conversation) Reset() Conversation {
	var kept []domain.ChatMessage
	for _, m := range c.messages {
		if m.Role == domain.RoleSystem {
			kept = append(kept, m)
		}
	}
	return Conversation{messages: kept}
}

func (c Conversation) with(msgs ...domain.ChatMessage) Conversation {
	out := make([]domain.ChatMessage, 0, len(c.messages)+len(msgs))
	out = append(out, c.messages...)
	out = append(out, msgs...)
	return Conversation{messages: out}
}

// TurnResult is one chat exchange.
type TurnResult struct {
	Input        string
	Context      string
	Sources      []port.VectorResult
	Reply        string
	RetrievalErr error
}

// Grounded reports whether the reply was produced with retrieved context.
func (r TurnResult) Grounded() bool {
	return r.Context != ""
}

// ChatUseCase runs single chat turns. A nil retriever disables context
// retrieval entirely.
type ChatUseCase struct {
	llm       port.LLM
	retriever *RetrieveUseCase
	logger    *slog.Logger
}

func NewChatUseCase(llm port.LLM, retriever *RetrieveUseCase, logger *slog.Logger) *ChatUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatUseCase{llm: llm, retriever: retriever, logger: logger}
}

func (u *ChatUseCase) RetrievalEnabled() bool {
	return u.retriever != nil
}

// Turn answers input given conv and returns the updated conversation.
// Retrieved context is sent with this turn only and is not kept in the
// history. On a chat failure conv is returned unchanged.
func (u *ChatUseCase) Turn(ctx context.Context, conv Conversation, input string) (TurnResult, Conversation, error) {
	result := TurnResult{Input: input}
	if strings.TrimSpace(input) == "" {
		return result, conv, fmt.Errorf("%w: message is empty", domain.ErrInvalidInput)
	}

	if u.retriever != nil {
		sources, err := u.retriever.Retrieve(ctx, input)
		if err != nil {
			u.logger.Warn("context retrieval failed, answering without context", "error", err)
			result.RetrievalErr = err
		} else if len(sources) > 0 {
			result.Sources = sources
			if block := u.retriever.BuildContext(sources); block != "" {
				result.Context = ContextPreamble + block
			}
			u.logger.Debug("retrieved context", "chunks", len(sources))
		}
	}

	messages := conv.Messages()
	if result.Context != "" {
		messages = append(messages, domain.SystemMessage(result.Context))
	}
	messages = append(messages, domain.UserMessage(input))

	reply, err := u.llm.Chat(ctx, messages)
	if err != nil {
		return result, conv, err
	}
	result.Reply = reply

	return result, conv.with(domain.UserMessage(input), domain.AssistantMessage(reply)), nil
}
