package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"vectorchat/internal/adapter/analyzer"
	"vectorchat/internal/adapter/retriever"
	"vectorchat/internal/usecase"
)

const (
	emojiContext   = "📚"
	emojiKnowledge = "🤖"
	emojiSearch    = "🔍"
	emojiError     = "⚠️"
)

func newChatCmd(a *app) *cobra.Command {
	var noContext bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the model using stored context",
		Long: `Start an interactive chat. Every message is embedded and the closest stored
chunks are sent to the model as context for that message only.

Type 'exit', 'quit' or 'bye' to leave and 'reset' to clear the history.

Examples:
  vectorchat chat
  vectorchat chat --no-context`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(cmd, noContext)
		},
	}

	cmd.Flags().BoolVar(&noContext, "no-context", false, "answer from model knowledge only, without context retrieval")
	return cmd
}

func (a *app) runChat(cmd *cobra.Command, noContext bool) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	chatClient, err := a.newChatClient()
	if err != nil {
		return err
	}

	var retrieve *usecase.RetrieveUseCase
	if !noContext {
		embedder, err := a.newQueryEmbedder()
		if err != nil {
			return err
		}
		st, err := a.newReadStore()
		if err != nil {
			a.logger.Warn("vector store unavailable, continuing without context", "error", err)
		} else {
			defer st.Close()
			r := a.cfg.Retrieve
			retrieve = usecase.NewRetrieveUseCase(embedder, st, r.TopK, r.MinScore, r.MaxContextChars)
			if r.MMRLambda > 0 {
				retrieve.WithReranker(retriever.NewMMRReranker(r.MMRLambda, r.DedupJaccard, analyzer.NewTokenizer()))
			}
		}
	}

	uc := usecase.NewChatUseCase(chatClient, retrieve, a.logger)
	conv := usecase.NewConversation(a.cfg.Chat.SystemPrompt)
	return chatLoop(cmd.Context(), uc, conv, cmd.InOrStdin(), cmd.OutOrStdout())
}

// chatLoop reads one message per line until exit or end of input.
func chatLoop(ctx context.Context, uc *usecase.ChatUseCase, conv usecase.Conversation, in io.Reader, out io.Writer) error {
	grounded := color.New(color.FgHiGreen)
	plain := color.New(color.FgHiCyan)
	warn := color.New(color.FgYellow)

	fmt.Fprintln(out, "\nChat with OpenAI (type 'exit' to quit, 'reset' to clear conversation history):")
	if uc.RetrievalEnabled() {
		fmt.Fprintf(out, "%s = Using saved context | %s = AI knowledge | %s = Searching\n", emojiContext, emojiKnowledge, emojiSearch)
	} else {
		fmt.Fprintf(out, "%s = AI knowledge (no context retrieval enabled)\n", emojiKnowledge)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines, readErr := readLines(ctx, in)

	for {
		fmt.Fprint(out, "\nYou: ")

		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\nExiting chat...")
			return nil
		case line, ok = <-lines:
		}
		if !ok {
			select {
			case err := <-readErr:
				if err != nil {
					return fmt.Errorf("failed to read input: %w", err)
				}
			default:
			}
			fmt.Fprintln(out, "\nExiting chat...")
			return nil
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "exit", "quit", "bye":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case "reset":
			conv = conv.Reset()
			fmt.Fprintf(out, "%s Conversation history has been reset.\n", emojiKnowledge)
			continue
		}

		if uc.RetrievalEnabled() {
			fmt.Fprintf(out, "%s Searching for relevant information...\n", emojiSearch)
		}

		result, next, err := uc.Turn(ctx, conv, input)
		if result.RetrievalErr != nil {
			warn.Fprintf(out, "%s Context retrieval failed, answering without context: %v\n", emojiError, result.RetrievalErr)
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				fmt.Fprintln(out, "\nExiting chat...")
				return nil
			}
			warn.Fprintf(out, "%s Error getting response: %v\n", emojiError, err)
			continue
		}
		conv = next

		if result.Grounded() {
			fmt.Fprintf(out, "\n%s %s\n", emojiContext, grounded.Sprint(result.Reply))
		} else {
			fmt.Fprintf(out, "\n%s %s\n", emojiKnowledge, plain.Sprint(result.Reply))
		}
	}
}

// readLines scans in on its own goroutine so a blocked read does not delay
// cancellation. The error channel is filled before lines is closed.
func readLines(ctx context.Context, in io.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	return lines, readErr
}
