package docs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"voxelgpt/internal/embedding"
	"voxelgpt/internal/logging"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/pkoukk/tiktoken-go"
	"golang.org/x/sync/errgroup"
)

// Indexer builds the documentation corpus offline: walk the
// rendered-HTML tree section by section, convert to Markdown, strip
// boilerplate, chunk by token count, embed, and write one JSON
// sidecar per section. Rerunning it over the same corpus produces
// equivalent state: chunk ids are content hashes and ingestion
// upserts.
type Indexer struct {
	Engine      embedding.Engine
	ChunkTokens int

	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
}

// chunkOverlap is the token overlap between consecutive chunks.
const chunkOverlap = 20

// Boilerplate patterns stripped from converted Markdown before
// chunking.
var stripPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)<script.*?</script>`),
	regexp.MustCompile(`(?m)^\s*\d+\s*$`),                 // bare line numbers
	regexp.MustCompile(`(?m)^(Next|Previous)\s*$`),        // pager links
	regexp.MustCompile(`\[¶\]\([^)]*\)`),                  // heading anchors
	regexp.MustCompile(`(?m)^\s*\* \[[^\]]*\]\(#[^)]*\)`), // nav table of contents
	regexp.MustCompile("```\\s*```"),                      // empty code blocks
}

// IndexTree walks the documentation tree and writes one sidecar per
// section directory into sidecarDir.
func (ix *Indexer) IndexTree(ctx context.Context, corpusDir, sidecarDir string) error {
	timer := logging.StartTimer(logging.CategoryDocs, "IndexTree")
	defer timer.Stop()

	entries, err := os.ReadDir(corpusDir)
	if err != nil {
		return fmt.Errorf("failed to read corpus directory: %w", err)
	}
	if err := os.MkdirAll(sidecarDir, 0o755); err != nil {
		return fmt.Errorf("failed to create sidecar directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		section := entry.Name()
		chunks, err := ix.indexSection(ctx, filepath.Join(corpusDir, section), section)
		if err != nil {
			return fmt.Errorf("failed to index section %s: %w", section, err)
		}
		if len(chunks) == 0 {
			continue
		}
		if err := writeSidecar(filepath.Join(sidecarDir, section+".json"), chunks); err != nil {
			return err
		}
		logging.Docs("indexed section %s: %d chunks", section, len(chunks))
	}
	return nil
}

// indexSection chunks every HTML file under dir and embeds the chunks
// in parallel.
func (ix *Indexer) indexSection(ctx context.Context, dir, section string) ([]Chunk, error) {
	var texts []string
	var sources []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		md, err := htmltomarkdown.ConvertString(string(data))
		if err != nil {
			logging.Get(logging.CategoryDocs).Warn("conversion failed for %s: %v", path, err)
			return nil
		}
		md = stripBoilerplate(md)
		pieces, err := ix.chunkText(md)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		for _, piece := range pieces {
			texts = append(texts, piece)
			sources = append(sources, filepath.ToSlash(filepath.Join(section, rel)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, nil
	}

	chunks := make([]Chunk, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := range texts {
		i := i
		g.Go(func() error {
			vec, err := ix.Engine.Embed(gctx, texts[i])
			if err != nil {
				return fmt.Errorf("failed to embed chunk %d of %s: %w", i, sources[i], err)
			}
			chunks[i] = Chunk{
				ID:        chunkID(texts[i]),
				Content:   texts[i],
				Source:    sources[i],
				Embedding: vec,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return chunks, nil
}

// chunkText splits Markdown into ~ChunkTokens-token pieces with a
// small overlap, using the cl100k_base encoding.
func (ix *Indexer) chunkText(text string) ([]string, error) {
	ix.encOnce.Do(func() {
		ix.enc, ix.encErr = tiktoken.GetEncoding("cl100k_base")
	})
	if ix.encErr != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding: %w", ix.encErr)
	}

	size := ix.ChunkTokens
	if size <= 0 {
		size = 200
	}
	step := size - chunkOverlap

	tokens := ix.enc.Encode(text, nil, nil)
	var out []string
	for start := 0; start < len(tokens); start += step {
		end := start + size
		if end > len(tokens) {
			end = len(tokens)
		}
		piece := strings.TrimSpace(ix.enc.Decode(tokens[start:end]))
		if piece != "" {
			out = append(out, piece)
		}
		if end == len(tokens) {
			break
		}
	}
	return out, nil
}

func stripBoilerplate(md string) string {
	for _, re := range stripPatterns {
		md = re.ReplaceAllString(md, "")
	}
	// Collapse runs of blank lines left behind.
	md = regexp.MustCompile(`\n{3,}`).ReplaceAllString(md, "\n\n")
	return strings.TrimSpace(md)
}

// chunkID hashes the chunk content, making sidecars and ingestion
// stable across reruns.
func chunkID(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:16])
}

func writeSidecar(path string, chunks []Chunk) error {
	data, err := json.MarshalIndent(chunks, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sidecar: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write sidecar %s: %w", path, err)
	}
	return nil
}

// LoadSidecars ingests every sidecar under dir into the store.
// Idempotent: chunks are keyed by content hash.
func LoadSidecars(ctx context.Context, store *Store, dir string) (int, error) {
	timer := logging.StartTimer(logging.CategoryDocs, "LoadSidecars")
	defer timer.Stop()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read sidecar directory: %w", err)
	}

	total := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return total, err
		}
		var chunks []Chunk
		if err := json.Unmarshal(data, &chunks); err != nil {
			logging.Get(logging.CategoryDocs).Warn("skipping malformed sidecar %s: %v", entry.Name(), err)
			continue
		}
		for _, c := range chunks {
			if err := store.Insert(ctx, c); err != nil {
				return total, err
			}
			total++
		}
	}
	logging.Docs("loaded %d chunks from %s", total, dir)
	return total, nil
}
