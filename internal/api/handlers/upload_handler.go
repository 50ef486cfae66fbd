package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/lectern-ai/lectern/internal/core/ingestion_engine"
	"github.com/lectern-ai/lectern/internal/core/upload"
)

// UploadHandler serves the chunked upload flow: initiate a session, send
// parts in any order, then finalize to reassemble and ingest.
type UploadHandler struct {
	manager  *upload.Manager
	ingestor ingestion_engine.Ingestor
}

func NewUploadHandler(m *upload.Manager, ing ingestion_engine.Ingestor) *UploadHandler {
	return &UploadHandler{manager: m, ingestor: ing}
}

type initiateUploadRequest struct {
	FileName    string `json:"file_name"`
	TotalChunks int    `json:"total_chunks"`
	TotalSize   int64  `json:"total_size"`
	MimeType    string `json:"mime_type"`
}

type initiateUploadResponse struct {
	UploadID  string    `json:"upload_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *UploadHandler) InitiateUpload(w http.ResponseWriter, r *http.Request) {
	var req initiateUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.MimeType == "" {
		req.MimeType = "application/pdf"
	}

	s, err := h.manager.Initiate(r.Context(), req.FileName, req.TotalChunks, req.TotalSize, req.MimeType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, initiateUploadResponse{UploadID: s.ID, ExpiresAt: s.ExpiresAt})
}

type uploadChunkRequest struct {
	UploadID    string `json:"upload_id"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	ChunkData   string `json:"chunk_data"`
}

type uploadChunkResponse struct {
	UploadID       string `json:"upload_id"`
	ChunksReceived int    `json:"chunks_received"`
	TotalChunks    int    `json:"total_chunks"`
	IsComplete     bool   `json:"is_complete"`
}

func (h *UploadHandler) UploadChunk(w http.ResponseWriter, r *http.Request) {
	var req uploadChunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.ChunkData)
	if err != nil {
		badRequest(w, "chunk_data is not valid base64")
		return
	}

	p, err := h.manager.PutPart(r.Context(), req.UploadID, req.ChunkIndex, data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadChunkResponse{
		UploadID:       req.UploadID,
		ChunksReceived: p.Received,
		TotalChunks:    p.Total,
		IsComplete:     p.Complete,
	})
}

type finalizeUploadRequest struct {
	UploadID     string `json:"upload_id"`
	OriginalName string `json:"original_name"`
	License      string `json:"license"`
}

// FinalizeUpload reassembles the session's parts and runs the full ingestion
// before answering, so a 200 here means the document is queryable.
func (h *UploadHandler) FinalizeUpload(w http.ResponseWriter, r *http.Request) {
	var req finalizeUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	data, sess, err := h.manager.Finalize(r.Context(), req.UploadID)
	if err != nil {
		writeError(w, err)
		return
	}

	name := req.OriginalName
	if name == "" {
		name = sess.FileName
	}

	res, err := h.ingestor.IngestPDF(r.Context(), data, name, name, req.License)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newUploadResult(res))
}
