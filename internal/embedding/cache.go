package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"voxelgpt/internal/logging"
)

// CachedEngine wraps an Engine with a two-level cache: an in-process
// map plus a content-addressed JSON file per vector on disk. The same
// text always maps to the same vector within a process, and across
// processes when the disk cache survives.
type CachedEngine struct {
	inner Engine
	dir   string

	mu  sync.RWMutex
	mem map[string][]float32
}

// NewCachedEngine wraps an engine with disk-backed caching under dir.
// An empty dir disables the disk layer; the in-memory layer still
// guarantees identical vectors for identical strings.
func NewCachedEngine(inner Engine, dir string) (*CachedEngine, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create embedding cache dir: %w", err)
		}
	}
	return &CachedEngine{
		inner: inner,
		dir:   dir,
		mem:   make(map[string][]float32),
	}, nil
}

// cacheKey hashes the engine name together with the text so switching
// models invalidates the cache.
func (c *CachedEngine) cacheKey(text string) string {
	h := sha256.Sum256([]byte(c.inner.Name() + "\x00" + text))
	return hex.EncodeToString(h[:])
}

// Embed returns the cached vector for text, embedding on miss.
func (c *CachedEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)

	c.mu.RLock()
	if vec, ok := c.mem[key]; ok {
		c.mu.RUnlock()
		return vec, nil
	}
	c.mu.RUnlock()

	if vec, ok := c.loadDisk(key); ok {
		c.mu.Lock()
		c.mem[key] = vec
		c.mu.Unlock()
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.mem[key] = vec
	c.mu.Unlock()
	c.storeDisk(key, vec)
	return vec, nil
}

// EmbedBatch embeds texts, serving cached entries and only sending the
// misses to the backend.
func (c *CachedEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		key := c.cacheKey(text)
		c.mu.RLock()
		vec, ok := c.mem[key]
		c.mu.RUnlock()
		if !ok {
			vec, ok = c.loadDisk(key)
		}
		if ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) > 0 {
		logging.EmbeddingDebug("EmbedBatch: %d/%d cache misses", len(missTexts), len(texts))
		vecs, err := c.inner.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(missTexts) {
			return nil, fmt.Errorf("backend returned %d vectors for %d texts", len(vecs), len(missTexts))
		}
		c.mu.Lock()
		for j, vec := range vecs {
			out[missIdx[j]] = vec
			key := c.cacheKey(missTexts[j])
			c.mem[key] = vec
		}
		c.mu.Unlock()
		for j, vec := range vecs {
			c.storeDisk(c.cacheKey(missTexts[j]), vec)
		}
	}

	return out, nil
}

// Dimensions returns the wrapped engine's dimensionality.
func (c *CachedEngine) Dimensions() int { return c.inner.Dimensions() }

// Name returns the wrapped engine's name.
func (c *CachedEngine) Name() string { return c.inner.Name() }

func (c *CachedEngine) loadDisk(key string) ([]float32, bool) {
	if c.dir == "" {
		return nil, false
	}
	data, err := os.ReadFile(filepath.Join(c.dir, key+".json"))
	if err != nil {
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil {
		logging.Get(logging.CategoryEmbedding).Warn("corrupt cached vector %s: %v", key, err)
		return nil, false
	}
	return vec, true
}

func (c *CachedEngine) storeDisk(key string, vec []float32) {
	if c.dir == "" {
		return
	}
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	tmp := filepath.Join(c.dir, key+".json.tmp")
	final := filepath.Join(c.dir, key+".json")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		logging.Get(logging.CategoryEmbedding).Warn("failed to write cached vector: %v", err)
		return
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
	}
}
