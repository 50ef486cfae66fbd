package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/lectern-ai/lectern/internal/core"
	"github.com/lectern-ai/lectern/internal/core/ingestion_engine"
	"github.com/lectern-ai/lectern/internal/models"
)

type DocumentHandler struct {
	db             core.DbClient
	ingestor       ingestion_engine.Ingestor
	maxUploadBytes int64
}

func NewDocumentHandler(db core.DbClient, ing ingestion_engine.Ingestor, maxUploadBytes int64) *DocumentHandler {
	return &DocumentHandler{db: db, ingestor: ing, maxUploadBytes: maxUploadBytes}
}

// uploadResult mirrors what clients already parse after document processing,
// from both the direct and the chunked path.
type uploadResult struct {
	Message string        `json:"message"`
	Details uploadDetails `json:"details"`
}

type uploadDetails struct {
	FileURL               string  `json:"file_url"`
	FileID                string  `json:"file_id"`
	TotalChunks           int     `json:"total_chunks"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
}

func newUploadResult(res *ingestion_engine.Result) uploadResult {
	return uploadResult{
		Message: "Document processed successfully",
		Details: uploadDetails{
			FileURL:               res.Document.StorageURL,
			FileID:                res.Document.ID,
			TotalChunks:           res.ChunkCount,
			ProcessingTimeSeconds: res.Elapsed.Seconds(),
		},
	}
}

// UploadDocument ingests one PDF sent as multipart form data. Anything over
// the direct limit is turned away toward the chunked endpoints instead of
// being read into memory.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	// Slack above the limit so multipart framing alone never trips it; the
	// exact check runs against the file bytes below.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+(1<<20))

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeTooLarge(w, h.maxUploadBytes)
			return
		}
		badRequest(w, "no file provided")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		writeError(w, fmt.Errorf("%w: %q", core.ErrUnsupportedMedia, header.Filename))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeTooLarge(w, h.maxUploadBytes)
			return
		}
		writeError(w, fmt.Errorf("read upload: %w", err))
		return
	}
	if int64(len(data)) > h.maxUploadBytes {
		writeTooLarge(w, h.maxUploadBytes)
		return
	}

	name := r.FormValue("original_name")
	if name == "" {
		name = header.Filename
	}

	res, err := h.ingestor.IngestPDF(r.Context(), data, name, name, r.FormValue("license"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newUploadResult(res))
}

func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.db.ListDocuments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}
