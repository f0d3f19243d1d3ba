package cli

import (
	"fmt"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"vectorchat/internal/adapter/chunker"
	"vectorchat/internal/adapter/fs"
	"vectorchat/internal/port"
	"vectorchat/internal/usecase"
)

type embedOptions struct {
	file      string
	text      string
	source    string
	listFiles bool
	dir       string
}

func newEmbedCmd(a *app) *cobra.Command {
	opts := &embedOptions{}

	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Embed a file or a string into the vector database",
		Long: `Split text into sentence chunks, embed every chunk and store the vectors in
the configured collection. Exactly one of --file or --text is required.

Examples:
  vectorchat embed --file notes.md
  vectorchat embed --text "Paris is the capital of France."
  vectorchat embed --list-files --dir docs`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runEmbed(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "path of a text file to embed")
	cmd.Flags().StringVarP(&opts.text, "text", "t", "", "text to embed")
	cmd.Flags().StringVar(&opts.source, "source", "", "source name stored with the chunks (default: file name)")
	cmd.Flags().BoolVarP(&opts.listFiles, "list-files", "l", false, "list embeddable text files and exit")
	cmd.Flags().StringVar(&opts.dir, "dir", ".", "directory searched by --list-files")
	return cmd
}

func (a *app) runEmbed(cmd *cobra.Command, opts *embedOptions) error {
	fileSet := cmd.Flags().Changed("file")
	textSet := cmd.Flags().Changed("text")

	if opts.listFiles {
		if fileSet || textSet {
			return usageError("--list-files cannot be combined with --file or --text")
		}
		return a.listFiles(cmd, opts.dir)
	}
	if fileSet == textSet {
		return usageError("exactly one of --file or --text is required")
	}

	if err := a.cfg.Validate(); err != nil {
		return err
	}

	var text, source string
	if fileSet {
		content, err := fs.ReadFile(opts.file)
		if err != nil {
			return fmt.Errorf("could not read file %s: %w", opts.file, err)
		}
		text, source = content, filepath.Base(opts.file)
	} else {
		text, source = opts.text, "command_line_input"
	}
	if opts.source != "" {
		source = opts.source
	}

	if err := usecase.ValidateText(text); err != nil {
		return err
	}

	embedder, err := a.newEmbedder()
	if err != nil {
		return err
	}
	st, err := a.newStore()
	if err != nil {
		return err
	}
	defer st.Close()

	uc := usecase.NewEmbedUseCase(embedder, st, chunker.NewSentenceChunker(a.cfg.Chunk.MaxSentences), a.cfg.Embedding.BatchSize, a.logger)

	var bar *progressbar.ProgressBar
	progress := func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(cmd.ErrOrStderr())
				}),
			)
		}
		bar.Set(done)
	}

	result, err := uc.Embed(cmd.Context(), text, source, progress)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Embedded %d chunks from %s into collection '%s' (model: %s)\n",
		len(result.IDs), result.Source, a.cfg.Store.Collection, result.Model)
	for i, id := range result.IDs {
		fmt.Fprintf(out, "  %d. %s\n", i+1, id)
	}
	return nil
}

func (a *app) listFiles(cmd *cobra.Command, dir string) error {
	var walker port.FileWalker = fs.NewWalker(a.cfg.Files.Includes, a.cfg.Files.Excludes)
	files, err := walker.Walk(dir)
	if err != nil {
		return fmt.Errorf("failed to list files in %s: %w", dir, err)
	}

	out := cmd.OutOrStdout()
	if len(files) == 0 {
		fmt.Fprintf(out, "No text files found in %s\n", dir)
		return nil
	}

	fmt.Fprintf(out, "Available text files in %s:\n", dir)
	for i, f := range files {
		fmt.Fprintf(out, "  %d. %s (%d bytes)\n", i+1, f.Path, f.Size)
	}
	return nil
}
