package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"vectorchat/config"
	"vectorchat/internal/domain"
	"vectorchat/internal/logging"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// app carries the state shared by every command of one invocation.
type app struct {
	cfgFile  string
	envFile  string
	logLevel string

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCmd builds the vectorchat command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "vectorchat",
		Short: "Embed text into a vector database and chat with it",
		Long: `vectorchat embeds text with an OpenAI-compatible embedding API, stores the
vectors in Qdrant, and answers questions with a chat model using the most
relevant stored text as context.

Example usage:
  vectorchat embed --file notes.md      # Embed a file
  vectorchat embed --text "Go is fun."  # Embed a string
  vectorchat chat                       # Chat using stored context
  vectorchat search -q "capital"        # Show the nearest stored chunks`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		Args:              cobra.ArbitraryArgs,
		PersistentPreRunE: a.loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageError("unknown command %q", args[0])
			}
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./vectorchat.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the environment")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (default from config)")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", domain.ErrUsage, err)
	})

	rootCmd.AddCommand(newEmbedCmd(a), newChatCmd(a), newSearchCmd(a))
	return rootCmd
}

func (a *app) loadConfig(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(a.envFile); err != nil {
		return err
	}

	path := a.cfgFile
	if path == "" {
		path = config.DefaultFileName
	} else if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrUsage, err)
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

// noArgs is cobra.NoArgs reported as a usage error.
func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrUsage, err)
	}
	return nil
}

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrUsage, fmt.Sprintf(format, args...))
}

// Run executes the command line and returns the process exit code.
func Run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	rootCmd := NewRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetIn(in)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	cmd, err := rootCmd.ExecuteContextC(ctx)
	if err == nil {
		return ExitOK
	}

	fmt.Fprintf(errOut, "%s %v\n", color.RedString("Error:"), err)
	if errors.Is(err, domain.ErrUsage) {
		fmt.Fprintln(errOut)
		fmt.Fprint(errOut, cmd.UsageString())
		return ExitUsage
	}
	return ExitError
}

// Execute runs vectorchat with the process arguments and exits.
// SIGINT cancels the running command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := Run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
