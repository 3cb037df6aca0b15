package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"voxelgpt/internal/dataset"
	"voxelgpt/internal/dispatch"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Starts a read-eval-print loop against the configured dataset.
Answers stream as they are generated and are re-rendered as terminal
markdown once complete.

Commands inside the session:
  /reset   clear the conversation history
  /exit    quit`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	pipeline, err := dispatch.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer pipeline.Close()

	col, err := loadCollection(datasetPath)
	if err != nil {
		return err
	}
	if col != nil {
		logger.Info("dataset loaded", zap.String("name", col.Name()), zap.String("media_type", string(col.MediaType())))
	}

	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return fmt.Errorf("failed to build renderer: %w", err)
	}

	fmt.Println("VoxelGPT ready. Ask about your dataset, or type /exit to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/reset":
			pipeline.Reset()
			fmt.Println("History cleared.")
			continue
		}

		renderQuery(ctx, pipeline, col, line, renderer)
		if ctx.Err() != nil {
			return nil
		}
	}
	return scanner.Err()
}

// renderQuery runs one query and renders its event stream: chunks are
// echoed as they arrive, then final markdown messages are re-rendered
// with glamour when they overwrite the streamed text.
func renderQuery(ctx context.Context, pipeline *dispatch.Pipeline, col dataset.Collection, query string, renderer *glamour.TermRenderer) {
	streamed := false
	for ev := range pipeline.Run(ctx, query, col) {
		switch e := ev.(type) {
		case dispatch.StreamEvent:
			fmt.Print(e.Content)
			streamed = true
			if e.Last {
				fmt.Println()
			}
		case dispatch.MessageEvent:
			if streamed && !e.Overwrite {
				continue
			}
			out, err := renderer.Render(e.Message)
			if err != nil {
				out = e.Message
			}
			fmt.Print(out)
		case dispatch.ViewEvent:
			fmt.Printf("\n[view] %s\n\n", strings.Join(e.Reprs, " | "))
		case dispatch.WarningEvent:
			fmt.Printf("[warning] %s\n", e.Message)
		}
	}
}
