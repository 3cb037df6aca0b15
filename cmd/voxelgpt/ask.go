package main

import (
	"context"
	"fmt"
	"strings"

	"voxelgpt/internal/dispatch"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question and exit",
	Long: `Runs one query through the pipeline and prints the answer.
With --dataset, dataset queries run against the given collection;
without it, only documentation and general questions can be answered.

Example:
  voxelgpt ask "show me 10 images with low-confidence predictions"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	pipeline, err := dispatch.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer pipeline.Close()

	col, err := loadCollection(datasetPath)
	if err != nil {
		return err
	}

	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return fmt.Errorf("failed to build renderer: %w", err)
	}

	renderQuery(ctx, pipeline, col, strings.Join(args, " "), renderer)
	return nil
}
