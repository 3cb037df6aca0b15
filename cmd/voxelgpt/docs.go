package main

import (
	"context"
	"fmt"

	"voxelgpt/internal/docs"
	"voxelgpt/internal/embedding"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var indexDocsCmd = &cobra.Command{
	Use:   "index-docs",
	Short: "Chunk and embed the documentation corpus",
	Long: `Walks the rendered-HTML documentation tree, converts each page to
Markdown, chunks it by token count, embeds every chunk, and writes one
JSON sidecar per section. Rerunning over the same corpus is a no-op at
ingestion time because chunk ids are content hashes.`,
	RunE: runIndexDocs,
}

var loadDocsCmd = &cobra.Command{
	Use:   "load-docs",
	Short: "Load documentation sidecars into the vector store",
	RunE:  runLoadDocs,
}

func runIndexDocs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	engine, err := buildEmbedder()
	if err != nil {
		return err
	}

	indexer := &docs.Indexer{Engine: engine, ChunkTokens: cfg.Docs.ChunkTokens}
	logger.Info("indexing documentation",
		zap.String("corpus", cfg.Docs.CorpusPath),
		zap.String("sidecars", cfg.Docs.SidecarPath))

	if err := indexer.IndexTree(ctx, cfg.Docs.CorpusPath, cfg.Docs.SidecarPath); err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	fmt.Println("Documentation indexed. Run 'voxelgpt load-docs' to load the store.")
	return nil
}

func runLoadDocs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	engine, err := buildEmbedder()
	if err != nil {
		return err
	}

	store, err := docs.OpenStore(cfg.Docs.StorePath, engine.Dimensions())
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	n, err := docs.LoadSidecars(ctx, store, cfg.Docs.SidecarPath)
	if err != nil {
		return fmt.Errorf("loading failed: %w", err)
	}
	fmt.Printf("Loaded %d chunks into %s\n", n, cfg.Docs.StorePath)
	return nil
}

func buildEmbedder() (embedding.Engine, error) {
	engine, err := embedding.NewEngine(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to build embedding engine: %w", err)
	}
	cached, err := embedding.NewCachedEngine(engine, cfg.Embedding.CachePath)
	if err != nil {
		return nil, err
	}
	return cached, nil
}
