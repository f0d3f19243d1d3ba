package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vectorchat/internal/domain"
	"vectorchat/internal/port"
)

func TestTurn_WithContext(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeStore{results: []port.VectorResult{
		result("a", 0.92, "France's capital is Paris.", "geo.txt"),
	}}
	llm := &fakeLLM{reply: "Paris."}
	uc := NewChatUseCase(llm, NewRetrieveUseCase(embedder, store, 3, 0.3, 0), nil)

	conv := NewConversation("be helpful")
	res, next, err := uc.Turn(context.Background(), conv, "What is the capital of France?")
	require.NoError(t, err)

	assert.True(t, res.Grounded())
	assert.Equal(t, "Paris.", res.Reply)
	assert.Len(t, res.Sources, 1)
	assert.True(t, strings.HasPrefix(res.Context, ContextPreamble))
	assert.Contains(t, res.Context, "France's capital is Paris.")

	require.Len(t, llm.messages, 1)
	sent := llm.messages[0]
	require.Len(t, sent, 3)
	assert.Equal(t, domain.SystemMessage("be helpful"), sent[0])
	assert.Equal(t, domain.RoleSystem, sent[1].Role)
	assert.Equal(t, res.Context, sent[1].Content)
	assert.Equal(t, domain.UserMessage("What is the capital of France?"), sent[2])

	// context is not persisted and the input conversation is untouched
	assert.Equal(t, 1, conv.Len())
	assert.Equal(t, []domain.ChatMessage{
		domain.SystemMessage("be helpful"),
		domain.UserMessage("What is the capital of France?"),
		domain.AssistantMessage("Paris."),
	}, next.Messages())
}

func TestTurn_NoContextNeverEmbedsOrSearches(t *testing.T) {
	llm := &fakeLLM{reply: "Hi there."}
	uc := NewChatUseCase(llm, nil, nil)

	res, next, err := uc.Turn(context.Background(), NewConversation("sys"), "Hello")
	require.NoError(t, err)

	assert.False(t, uc.RetrievalEnabled())
	assert.False(t, res.Grounded())
	assert.Equal(t, "Hi there.", res.Reply)
	require.Len(t, llm.messages[0], 2)
	assert.Equal(t, 3, next.Len())
}

func TestTurn_NothingRelevant(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeStore{results: []port.VectorResult{result("a", 0.1, "irrelevant", "x")}}
	llm := &fakeLLM{reply: "General answer."}
	uc := NewChatUseCase(llm, NewRetrieveUseCase(embedder, store, 3, 0.3, 0), nil)

	res, _, err := uc.Turn(context.Background(), NewConversation("sys"), "Tell me a joke")
	require.NoError(t, err)

	assert.False(t, res.Grounded())
	assert.Equal(t, 1, embedder.calls)
	assert.Equal(t, 1, store.searches)
	assert.Len(t, llm.messages[0], 2, "no context message is sent")
}

func TestTurn_RetrievalFailureFallsBack(t *testing.T) {
	store := &fakeStore{searchErr: domain.ErrNetwork}
	llm := &fakeLLM{reply: "Fallback."}
	uc := NewChatUseCase(llm, NewRetrieveUseCase(&fakeEmbedder{}, store, 3, 0.3, 0), nil)

	res, _, err := uc.Turn(context.Background(), NewConversation("sys"), "question")
	require.NoError(t, err)

	assert.ErrorIs(t, res.RetrievalErr, domain.ErrNetwork)
	assert.False(t, res.Grounded())
	assert.Equal(t, "Fallback.", res.Reply)
}

func TestTurn_ChatFailureKeepsConversation(t *testing.T) {
	llm := &fakeLLM{err: &domain.ProviderError{Provider: "openai", StatusCode: 500, Message: "down"}}
	uc := NewChatUseCase(llm, nil, nil)

	conv := NewConversation("sys")
	_, next, err := uc.Turn(context.Background(), conv, "hi")

	assert.ErrorIs(t, err, domain.ErrProvider)
	assert.Equal(t, conv.Messages(), next.Messages())
}

func TestTurn_EmptyInput(t *testing.T) {
	llm := &fakeLLM{reply: "x"}
	uc := NewChatUseCase(llm, nil, nil)

	_, _, err := uc.Turn(context.Background(), NewConversation("sys"), "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Zero(t, llm.calls)
}

func TestTurn_HistoryAccumulates(t *testing.T) {
	llm := &fakeLLM{reply: "ok"}
	uc := NewChatUseCase(llm, nil, nil)
	ctx := context.Background()

	conv := NewConversation("sys")
	_, conv, _ = uc.Turn(ctx, conv, "first")
	_, conv, _ = uc.Turn(ctx, conv, "second")

	require.Len(t, llm.messages, 2)
	assert.Len(t, llm.messages[1], 4, "system + first exchange + second question")
	assert.Equal(t, 5, conv.Len())
}

func TestConversation_Reset(t *testing.T) {
	llm := &fakeLLM{reply: "ok"}
	uc := NewChatUseCase(llm, nil, nil)

	_, conv, err := uc.Turn(context.Background(), NewConversation("sys"), "hello")
	require.NoError(t, err)
	require.Equal(t, 3, conv.Len())

	reset := conv.Reset()
	assert.Equal(t, []domain.ChatMessage{domain.SystemMessage("sys")}, reset.Messages())
	assert.Equal(t, 3, conv.Len(), "Reset returns a new value")
}

func TestNewConversation_NoSystemPrompt(t *testing.T) {
	assert.Zero(t, NewConversation("  ").Len())
}
