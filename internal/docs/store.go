// Package docs implements the documentation subsystem: an offline
// indexer that chunks and embeds a rendered-HTML documentation tree,
// a persistent vector store over the chunks, and the online RAG chain
// that answers documentation questions.
package docs

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"voxelgpt/internal/embedding"
	"voxelgpt/internal/logging"

	_ "github.com/mattn/go-sqlite3"
)

// Chunk is one embedded documentation chunk.
type Chunk struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Source    string    `json:"source"`
	Embedding []float32 `json:"embedding"`
}

// Match is a retrieved chunk with its similarity score.
type Match struct {
	Chunk      Chunk
	Similarity float64
}

// Store persists documentation chunks in SQLite with a sqlite-vec
// virtual table for ANN search, falling back to brute-force cosine
// search when the extension is unavailable.
type Store struct {
	db   *sql.DB
	dims int
	mu   sync.RWMutex
}

// OpenStore opens (or creates) the store at path. dims is the
// embedding dimensionality of the corpus.
func OpenStore(path string, dims int) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "OpenStore")
	defer timer.Stop()

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open docs store: %w", err)
	}

	s := &Store{db: db, dims: dims}
	if err := s.initializeSchema(); err != nil {
		db.Close()
		return nil, err
	}
	logging.Store("docs store open at %s (dims=%d)", path, dims)
	return s, nil
}

func (s *Store) initializeSchema() error {
	chunksTable := `
	CREATE TABLE IF NOT EXISTS doc_chunks (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		source TEXT NOT NULL,
		embedding BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_doc_chunks_source ON doc_chunks(source);
	`
	if _, err := s.db.Exec(chunksTable); err != nil {
		return fmt.Errorf("failed to create doc_chunks table: %w", err)
	}

	vecTable := fmt.Sprintf(`
	CREATE VIRTUAL TABLE IF NOT EXISTS vec_doc_chunks USING vec0(
		embedding float[%d],
		chunk_id TEXT
	);
	`, s.dims)
	if _, err := s.db.Exec(vecTable); err != nil {
		// Non-fatal: brute-force search still works.
		logging.Get(logging.CategoryStore).Warn("vec_doc_chunks unavailable (sqlite-vec missing?): %v", err)
	}
	return nil
}

// Insert upserts a chunk. Keyed by chunk id, so re-ingesting the same
// corpus is idempotent.
func (s *Store) Insert(ctx context.Context, c Chunk) error {
	if c.ID == "" {
		return fmt.Errorf("chunk id required")
	}
	if len(c.Embedding) == 0 {
		return fmt.Errorf("chunk %s has no embedding", c.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	blob := encodeFloat32SliceToBlob(c.Embedding)
	if _, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO doc_chunks (id, content, source, embedding)
		VALUES (?, ?, ?, ?)
	`, c.ID, c.Content, c.Source, blob); err != nil {
		return fmt.Errorf("failed to insert chunk %s: %w", c.ID, err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO vec_doc_chunks (embedding, chunk_id)
		VALUES (?, ?)
	`, blob, c.ID); err != nil {
		logging.Get(logging.CategoryStore).Warn("vec insert failed for %s (ANN unavailable): %v", c.ID, err)
	}
	return nil
}

// Count returns the number of stored chunks.
func (s *Store) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM doc_chunks`).Scan(&n)
	return n, err
}

// Search returns the topK chunks nearest to the query embedding.
func (s *Store) Search(queryEmbedding []float32, topK int) ([]Match, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Search")
	defer timer.Stop()

	if topK <= 0 {
		topK = 5
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := s.searchVec(encodeFloat32SliceToBlob(queryEmbedding), topK)
	if err != nil {
		logging.StoreDebug("falling back to brute-force search: %v", err)
		return s.searchBruteForce(queryEmbedding, topK)
	}
	return matches, nil
}

func (s *Store) searchVec(queryBlob []byte, topK int) ([]Match, error) {
	rows, err := s.db.Query(`
		SELECT dc.id, dc.content, dc.source,
			vec_distance_cosine(v.embedding, ?) AS distance
		FROM vec_doc_chunks v
		JOIN doc_chunks dc ON v.chunk_id = dc.id
		ORDER BY distance ASC
		LIMIT ?
	`, queryBlob, topK)
	if err != nil {
		return nil, fmt.Errorf("vec search failed: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		var distance float64
		if err := rows.Scan(&m.Chunk.ID, &m.Chunk.Content, &m.Chunk.Source, &distance); err != nil {
			logging.Get(logging.CategoryStore).Warn("failed to scan chunk row: %v", err)
			continue
		}
		m.Similarity = 1.0 - distance
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (s *Store) searchBruteForce(queryEmbedding []float32, topK int) ([]Match, error) {
	rows, err := s.db.Query(`SELECT id, content, source, embedding FROM doc_chunks`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var c Chunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.Content, &c.Source, &blob); err != nil {
			continue
		}
		vec := decodeFloat32SliceFromBlob(blob)
		sim, err := embedding.CosineSimilarity(queryEmbedding, vec)
		if err != nil {
			continue
		}
		matches = append(matches, Match{Chunk: c, Similarity: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Partial selection sort; topK is small.
	for i := 0; i < len(matches) && i < topK; i++ {
		for j := i + 1; j < len(matches); j++ {
			if matches[j].Similarity > matches[i].Similarity {
				matches[i], matches[j] = matches[j], matches[i]
			}
		}
	}
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func encodeFloat32SliceToBlob(vec []float32) []byte {
	blob := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

func decodeFloat32SliceFromBlob(blob []byte) []float32 {
	if len(blob)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}
