package domain

import "time"

// Payload is the metadata stored next to every vector.
type Payload struct {
	Text        string    `json:"chunk_text"`
	Source      string    `json:"source"`
	ChunkIndex  int       `json:"chunk_index"`
	TotalChunks int       `json:"total_chunks"`
	Model       string    `json:"model_name,omitempty"`
	EmbeddedAt  time.Time `json:"embedded_at,omitzero"`
}

type Chunk struct {
	Index int
	Text  string
}

// Chat roles understood by OpenAI-compatible providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func SystemMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleSystem, Content: content}
}

func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content}
}
