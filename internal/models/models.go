package models

import (
	"time"
)

// Document is the metadata row for one ingested source document.
type Document struct {
	ID         string    `db:"id" json:"id"`
	Title      string    `db:"title" json:"title"`
	StorageURL string    `db:"storage_url" json:"storage_url"` // blob store URL
	License    string    `db:"license" json:"license"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// DocumentChunk is one indexed slice of a document's text. Position is dense
// and zero-based within its document.
type DocumentChunk struct {
	ID           string    `db:"id" json:"id"`
	DocumentID   string    `db:"document_id" json:"document_id"`
	Position     int       `db:"position" json:"position"`
	Text         string    `db:"text" json:"text"`
	Embedding    []float32 `db:"embedding" json:"-"` // pgvector column
	OriginalName string    `db:"original_name" json:"original_name"`
	DownloadURL  string    `db:"download_url" json:"download_url"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// RetrievedChunk is the query-side projection of a chunk, carrying the fused
// ranking score. Never persisted.
type RetrievedChunk struct {
	ID           string  `json:"id"`
	DocumentID   string  `json:"fileId"`
	Position     int     `json:"position"`
	Text         string  `json:"extractedText"`
	OriginalName string  `json:"originalName"`
	DownloadURL  string  `json:"downloadUrl"`
	Score        float64 `json:"-"`
}

// PageText is the extraction result for a single PDF page.
type PageText struct {
	Index   int // zero-based page index
	Text    string
	UsedOCR bool
}

// Chat roles as stored in conversation history.
const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatTurn is an individual chat message (user or assistant).
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
