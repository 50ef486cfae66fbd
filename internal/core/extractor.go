package core

import (
	"context"

	"github.com/lectern-ai/lectern/internal/models"
)

// DocumentExtractor turns raw PDF bytes into per-page plain text.
type DocumentExtractor interface {
	// Extract returns one entry per page, in page order. A page that yields no
	// text comes back empty, not as an error; only an unreadable document fails.
	Extract(ctx context.Context, pdf []byte) ([]models.PageText, error)
}
