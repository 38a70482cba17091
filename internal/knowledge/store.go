package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/nhatai1995/DreamSight-AI/internal/logging"
)

// =============================================================================
// DOCUMENT STORE
// =============================================================================

// Document is one unit of the interpretation corpus.
type Document struct {
	ID         string
	Content    string
	SourceType string // psychology_text, mystical_text or symbol_dictionary
	Title      string
}

// Result is one search hit. Distance is 1 - cosine similarity, so lower is
// closer.
type Result struct {
	Document Document
	Distance float64
}

// Store persists documents and their embeddings in SQLite. Embeddings are
// stored as JSON arrays and ranked in Go; the corpus is small enough that a
// full scan beats maintaining an ANN index.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	log    *zap.Logger
}

// NewStore opens (or creates) the knowledge database at path.
func NewStore(path string) (*Store, error) {
	log := logging.Named(logging.CategoryKnowledge)
	log.Info("opening knowledge store", zap.String("path", path))

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		log.Debug("failed to set busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		log.Debug("failed to set journal_mode=WAL", zap.Error(err))
	}
	// NORMAL is safe with WAL and much faster than FULL.
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		log.Debug("failed to set synchronous=NORMAL", zap.Error(err))
	}

	s := &Store{db: db, dbPath: path, log: log}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id          TEXT PRIMARY KEY,
		content     TEXT NOT NULL,
		source_type TEXT NOT NULL,
		title       TEXT NOT NULL DEFAULT '',
		embedding   TEXT NOT NULL,
		created_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_documents_source_type ON documents(source_type);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Add inserts one document with its embedding. A missing ID is generated.
func (s *Store) Add(ctx context.Context, doc Document, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	blob, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents (id, content, source_type, title, embedding)
		 VALUES (?, ?, ?, ?, ?)`,
		doc.ID, doc.Content, doc.SourceType, doc.Title, string(blob))
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// AddBatch inserts documents with their embeddings in one transaction.
func (s *Store) AddBatch(ctx context.Context, docs []Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("document/embedding count mismatch: %d != %d", len(docs), len(embeddings))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO documents (id, content, source_type, title, embedding)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, doc := range docs {
		if doc.ID == "" {
			doc.ID = uuid.NewString()
		}
		blob, err := json.Marshal(embeddings[i])
		if err != nil {
			return fmt.Errorf("failed to encode embedding for %q: %w", doc.Title, err)
		}
		if _, err := stmt.ExecContext(ctx, doc.ID, doc.Content, doc.SourceType, doc.Title, string(blob)); err != nil {
			return fmt.Errorf("failed to insert document %q: %w", doc.Title, err)
		}
	}
	return tx.Commit()
}

// Search returns the k documents closest to the query embedding, optionally
// restricted to one source type.
func (s *Store) Search(ctx context.Context, query []float32, sourceType string, k int) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 {
		k = 3
	}

	q := `SELECT id, content, source_type, title, embedding FROM documents`
	args := []any{}
	if sourceType != "" {
		q += ` WHERE source_type = ?`
		args = append(args, sourceType)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var results []Result
	skipped := 0
	for rows.Next() {
		var doc Document
		var blob string
		if err := rows.Scan(&doc.ID, &doc.Content, &doc.SourceType, &doc.Title, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		var embedding []float32
		if err := json.Unmarshal([]byte(blob), &embedding); err != nil {
			skipped++
			continue
		}
		similarity, err := CosineSimilarity(query, embedding)
		if err != nil {
			skipped++
			continue
		}
		results = append(results, Result{Document: doc, Distance: 1 - similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	if skipped > 0 {
		s.log.Warn("skipped documents with unusable embeddings", zap.Int("count", skipped))
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count reports the number of stored documents, optionally for one source
// type.
func (s *Store) Count(ctx context.Context, sourceType string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := `SELECT COUNT(*) FROM documents`
	args := []any{}
	if sourceType != "" {
		q += ` WHERE source_type = ?`
		args = append(args, sourceType)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
