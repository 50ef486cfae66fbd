package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/lectern-ai/lectern/internal/config"
	"github.com/lectern-ai/lectern/internal/core"
	"github.com/lectern-ai/lectern/internal/models"
)

var _ core.DbClient = (*DatabaseClient)(nil)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (core.DbClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	// Ensure bootstrap once
	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Implementing the db interface for documents

// CreateDocument inserts the metadata row and writes the server-assigned id
// and timestamp back into doc. Whatever id the caller may have prefilled is
// discarded; the database row is authoritative.
func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	const q = `
		INSERT INTO documents (title, storage_url, license)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	return c.db.QueryRowContext(ctx, q, doc.Title, doc.StorageURL, doc.License).
		Scan(&doc.ID, &doc.CreatedAt)
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	const q = `
		SELECT id, title, storage_url, license, created_at
		FROM documents
		WHERE id = $1
	`
	var d models.Document
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.Title, &d.StorageURL, &d.License, &d.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *DatabaseClient) ListDocuments(ctx context.Context) ([]models.Document, error) {
	const q = `
		SELECT id, title, storage_url, license, created_at
		FROM documents
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.Title, &d.StorageURL, &d.License, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteDocument removes the metadata row; chunks follow via the FK cascade.
func (c *DatabaseClient) DeleteDocument(ctx context.Context, id string) error {
	const q = `DELETE FROM documents WHERE id = $1`
	res, err := c.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Implementing the db interface for document chunks

// InsertDocumentChunks inserts chunks in a single transaction and reports how
// many rows were written. Ids are assigned by the database.
func (c *DatabaseClient) InsertDocumentChunks(ctx context.Context, chunks []models.DocumentChunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}

	const q = `
		INSERT INTO document_chunks
			(document_id, position, text, embedding, original_name, download_url)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for i := range chunks {
		ch := &chunks[i]

		var vec any
		if len(ch.Embedding) > 0 {
			vec = pgvector.NewVector(ch.Embedding)
		}
		res, err := stmt.ExecContext(ctx,
			ch.DocumentID, ch.Position, ch.Text, vec, ch.OriginalName, ch.DownloadURL,
		)
		if err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// LexicalRank orders chunks by Postgres full-text rank against the query,
// best first. titleFilter narrows the corpus before ranking.
func (c *DatabaseClient) LexicalRank(ctx context.Context, query string, titleFilter string, limit int) ([]models.RetrievedChunk, error) {
	const q = `
		SELECT c.id, c.document_id, c.position, c.text, c.original_name, c.download_url,
		       ts_rank_cd(c.fts, websearch_to_tsquery('english', $1)) AS rank
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.fts @@ websearch_to_tsquery('english', $1)
		  AND ($2 = '' OR d.title = $2)
		ORDER BY rank DESC, c.document_id, c.position
		LIMIT $3
	`
	rows, err := c.db.QueryContext(ctx, q, query, titleFilter, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRetrieved(rows)
}

// SemanticRank orders chunks by cosine distance to the query embedding, best
// first. titleFilter narrows the corpus before ranking.
func (c *DatabaseClient) SemanticRank(ctx context.Context, queryVec []float32, titleFilter string, limit int) ([]models.RetrievedChunk, error) {
	const q = `
		SELECT c.id, c.document_id, c.position, c.text, c.original_name, c.download_url,
		       1 - (c.embedding <=> $1) AS similarity
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.embedding IS NOT NULL
		  AND ($2 = '' OR d.title = $2)
		ORDER BY c.embedding <=> $1
		LIMIT $3
	`
	vec := pgvector.NewVector(queryVec)
	rows, err := c.db.QueryContext(ctx, q, vec, titleFilter, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRetrieved(rows)
}

func scanRetrieved(rows *sql.Rows) ([]models.RetrievedChunk, error) {
	var out []models.RetrievedChunk
	for rows.Next() {
		var ch models.RetrievedChunk
		if err := rows.Scan(
			&ch.ID, &ch.DocumentID, &ch.Position, &ch.Text, &ch.OriginalName, &ch.DownloadURL, &ch.Score,
		); err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}
