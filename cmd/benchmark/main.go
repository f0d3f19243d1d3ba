package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"vectorchat/config"
	"vectorchat/internal/adapter/embedding"
	"vectorchat/internal/adapter/store"
	"vectorchat/internal/port"
	"vectorchat/internal/usecase"
)

func main() {
	configPath := flag.String("config", config.DefaultFileName, "Path to config file")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of results")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run cmd/benchmark/main.go -q \"query\" [-k 10] [-config vectorchat.yaml]")
		fmt.Println("\nTests:")
		fmt.Println("  1. Embedding infrastructure (model connection, vector store)")
		fmt.Println("  2. Semantic similarity (query vs stored chunks)")
		fmt.Println("  3. Context assembly (what chat would send for this query)")
		os.Exit(2)
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	embedder, err := setupEmbedder(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedder init failed: %v\n", err)
		os.Exit(1)
	}
	vectorStore, err := store.New(cfg, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening vector store: %v\n", err)
		os.Exit(1)
	}
	defer vectorStore.Close()

	fmt.Println("SEMANTIC SEARCH BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))

	if counter, ok := vectorStore.(interface{ Count() int }); ok {
		fmt.Printf("Chunks stored: %d\n", counter.Count())
	}
	fmt.Printf("Store: %s (collection %s)\n", cfg.Store.Provider, cfg.Store.Collection)
	fmt.Printf("Model: %s (%s)\n", embedder.ModelName(), cfg.Embedding.Provider)
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	ctx := context.Background()
	retriever := usecase.NewRetrieveUseCase(embedder, vectorStore, *topK, cfg.Retrieve.MinScore, cfg.Retrieve.MaxContextChars)

	start := time.Now()
	results, err := retriever.Search(ctx, *query, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Embedded and searched in %s\n\n", time.Since(start).Round(time.Millisecond))

	if len(results) == 0 {
		fmt.Println("No results - run 'vectorchat embed' first")
		os.Exit(1)
	}

	fmt.Printf("Top %d semantic matches:\n\n", len(results))

	totalScore := 0.0
	for i, r := range results {
		preview := previewText(r.Payload.Text, 150)

		similarity := r.Score
		totalScore += similarity

		rating := "LOW"
		if similarity > 0.7 {
			rating = "HIGH"
		} else if similarity > 0.5 {
			rating = "GOOD"
		} else if similarity > cfg.Retrieve.MinScore {
			rating = "OK"
		}

		fmt.Printf("%d. [%s %.3f] %s chunk %d/%d\n", i+1, rating, similarity, r.Payload.Source, r.Payload.ChunkIndex+1, r.Payload.TotalChunks)
		fmt.Printf("   %s\n\n", preview)
	}

	avgScore := totalScore / float64(len(results))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average similarity: %.3f\n", avgScore)
	fmt.Printf("  Top-1 similarity:   %.3f\n", results[0].Score)

	if avgScore > 0.5 {
		fmt.Println("  Status: GOOD - semantic search working well")
	} else if avgScore > 0.3 {
		fmt.Println("  Status: OK - results are somewhat related")
	} else {
		fmt.Println("  Status: POOR - may need better embeddings or re-embedding")
	}

	block := retriever.BuildContext(results)
	fmt.Printf("  Context sent to chat: %d chars (limit %d)\n", utf8.RuneCountInString(block), cfg.Retrieve.MaxContextChars)
}

// previewText flattens text to one line and cuts it after n runes.
func previewText(text string, n int) string {
	text = strings.ReplaceAll(text, "\n", " ")
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n]) + "..."
}

func setupEmbedder(cfg *config.Config) (port.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	case "openai":
		return embedding.NewOpenAIEmbedder(embedding.Options{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimension:  cfg.Embedding.Dimension,
			Timeout:    cfg.HTTP.Timeout,
			MaxRetries: cfg.HTTP.MaxRetries,
		})
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Embedding.Provider)
	}
}
