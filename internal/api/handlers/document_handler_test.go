package handlers

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lectern-ai/lectern/internal/core"
	"github.com/lectern-ai/lectern/internal/models"
)

type fakeDbClient struct {
	docs    []models.Document
	listErr error
}

func (f *fakeDbClient) CreateDocument(context.Context, *models.Document) error { return nil }

func (f *fakeDbClient) GetDocumentByID(context.Context, string) (*models.Document, error) {
	return nil, core.ErrNotFound
}

func (f *fakeDbClient) ListDocuments(context.Context) ([]models.Document, error) {
	return f.docs, f.listErr
}

func (f *fakeDbClient) DeleteDocument(context.Context, string) error { return nil }

func (f *fakeDbClient) InsertDocumentChunks(_ context.Context, chunks []models.DocumentChunk) (int, error) {
	return len(chunks), nil
}

func (f *fakeDbClient) LexicalRank(context.Context, string, string, int) ([]models.RetrievedChunk, error) {
	return nil, nil
}

func (f *fakeDbClient) SemanticRank(context.Context, []float32, string, int) ([]models.RetrievedChunk, error) {
	return nil, nil
}

func (f *fakeDbClient) Close() error { return nil }

func multipartUpload(t *testing.T, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestDocumentHandler_UploadDocument_IngestsPDF(t *testing.T) {
	ing := &fakeIngestor{}
	h := NewDocumentHandler(&fakeDbClient{}, ing, 10<<20)

	req := multipartUpload(t, "os-notes.pdf", []byte("%PDF-1.4 body"), map[string]string{
		"original_name": "Operating Systems Notes",
		"license":       "CC-BY",
	})
	rec := httptest.NewRecorder()
	h.UploadDocument(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []byte("%PDF-1.4 body"), ing.raw)
	assert.Equal(t, "Operating Systems Notes", ing.title)
	assert.Equal(t, "CC-BY", ing.license)
	assert.Contains(t, rec.Body.String(), `"file_id":"doc-1"`)
}

func TestDocumentHandler_UploadDocument_DefaultsNameToFilename(t *testing.T) {
	ing := &fakeIngestor{}
	h := NewDocumentHandler(&fakeDbClient{}, ing, 10<<20)

	req := multipartUpload(t, "os-notes.pdf", []byte("%PDF-1.4"), nil)
	rec := httptest.NewRecorder()
	h.UploadDocument(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "os-notes.pdf", ing.title)
}

func TestDocumentHandler_UploadDocument_RejectsNonPDF(t *testing.T) {
	ing := &fakeIngestor{}
	h := NewDocumentHandler(&fakeDbClient{}, ing, 10<<20)

	req := multipartUpload(t, "notes.docx", []byte("word doc"), nil)
	rec := httptest.NewRecorder()
	h.UploadDocument(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Empty(t, ing.raw)
}

func TestDocumentHandler_UploadDocument_OversizedGetsChunkedSuggestion(t *testing.T) {
	ing := &fakeIngestor{}
	h := NewDocumentHandler(&fakeDbClient{}, ing, 16)

	req := multipartUpload(t, "big.pdf", bytes.Repeat([]byte("x"), 64), nil)
	rec := httptest.NewRecorder()
	h.UploadDocument(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "suggestion")
	assert.Contains(t, rec.Body.String(), "chunked upload")
	assert.Empty(t, ing.raw)
}

func TestDocumentHandler_UploadDocument_MissingFileIs400(t *testing.T) {
	h := NewDocumentHandler(&fakeDbClient{}, &fakeIngestor{}, 10<<20)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("original_name", "nothing here"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.UploadDocument(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocumentHandler_UploadDocument_IngestFailureIs500(t *testing.T) {
	ing := &fakeIngestor{err: &core.StageError{Stage: "embed", Elapsed: time.Second, Err: errors.New("quota")}}
	h := NewDocumentHandler(&fakeDbClient{}, ing, 10<<20)

	req := multipartUpload(t, "notes.pdf", []byte("%PDF-1.4"), nil)
	rec := httptest.NewRecorder()
	h.UploadDocument(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "embed")
}

func TestDocumentHandler_GetDocuments_ReturnsList(t *testing.T) {
	db := &fakeDbClient{docs: []models.Document{
		{ID: "a", Title: "First"},
		{ID: "b", Title: "Second"},
	}}
	h := NewDocumentHandler(db, &fakeIngestor{}, 10<<20)

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	rec := httptest.NewRecorder()
	h.GetDocuments(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"First"`)
	assert.Contains(t, rec.Body.String(), `"Second"`)
}

func TestDocumentHandler_GetDocuments_EmptyIsArrayNotNull(t *testing.T) {
	h := NewDocumentHandler(&fakeDbClient{}, &fakeIngestor{}, 10<<20)

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	rec := httptest.NewRecorder()
	h.GetDocuments(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}
