package port

import "vectorchat/internal/domain"

type Chunker interface {
	Chunk(text string) []domain.Chunk
}
