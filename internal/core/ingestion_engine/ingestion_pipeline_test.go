package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lectern-ai/lectern/internal/core"
	"github.com/lectern-ai/lectern/internal/core/chunker"
	"github.com/lectern-ai/lectern/internal/models"
)

type fakeDB struct {
	createErr   error
	insertErr   error
	insertCount int

	created  []models.Document
	inserted []models.DocumentChunk
	deleted  []string
	nextID   string
}

func (f *fakeDB) CreateDocument(_ context.Context, doc *models.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	id := f.nextID
	if id == "" {
		id = "doc-1"
	}
	doc.ID = id
	doc.CreatedAt = time.Now()
	f.created = append(f.created, *doc)
	return nil
}

func (f *fakeDB) GetDocumentByID(context.Context, string) (*models.Document, error) {
	return nil, core.ErrNotFound
}

func (f *fakeDB) ListDocuments(context.Context) ([]models.Document, error) { return nil, nil }

func (f *fakeDB) DeleteDocument(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeDB) InsertDocumentChunks(_ context.Context, chunks []models.DocumentChunk) (int, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.inserted = append(f.inserted, chunks...)
	if f.insertCount > 0 {
		return f.insertCount, nil
	}
	return len(chunks), nil
}

func (f *fakeDB) LexicalRank(context.Context, string, string, int) ([]models.RetrievedChunk, error) {
	return nil, nil
}

func (f *fakeDB) SemanticRank(context.Context, []float32, string, int) ([]models.RetrievedChunk, error) {
	return nil, nil
}

func (f *fakeDB) Close() error { return nil }

type fakeObject struct {
	uploadErr error

	uploadedKeys []string
	uploadedData [][]byte
	deletedKeys  []string
}

func (f *fakeObject) UploadFile(_ context.Context, bucket, key string, data []byte, _ string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploadedKeys = append(f.uploadedKeys, key)
	f.uploadedData = append(f.uploadedData, data)
	return fmt.Sprintf("https://%s.s3.us-east-2.amazonaws.com/%s", bucket, key), nil
}

func (f *fakeObject) DeleteFile(_ context.Context, _, key string) error {
	f.deletedKeys = append(f.deletedKeys, key)
	return nil
}

type fakeEmbedder struct {
	err        error
	batchSizes []int
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batchSizes = append(f.batchSizes, len(texts))
	vecs := make([][]float32, len(texts))
	for i := range vecs {
		vecs[i] = []float32{0.1, 0.2}
	}
	return vecs, nil
}

type fakeExtractor struct {
	pages []models.PageText
	err   error
}

func (f *fakeExtractor) Extract(context.Context, []byte) ([]models.PageText, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pages, nil
}

type fakeSplitter struct {
	pieces []chunker.Piece
	err    error
	seen   []string
}

func (f *fakeSplitter) Split(pages []string) ([]chunker.Piece, error) {
	f.seen = pages
	if f.err != nil {
		return nil, f.err
	}
	return f.pieces, nil
}

func threePieces() []chunker.Piece {
	return []chunker.Piece{
		{Position: 0, Text: "first", Tokens: 3},
		{Position: 1, Text: "second", Tokens: 3},
		{Position: 2, Text: "third", Tokens: 3},
	}
}

func newTestIngestor(db *fakeDB, obj *fakeObject, emb *fakeEmbedder, ext *fakeExtractor, sp *fakeSplitter) *DocumentIngestor {
	cfg := &IngestConfig{Bucket: "lectern-docs", BlobFolder: "uploaded_docs", EmbedBatchSize: 2, EmbedDim: 2, StageTimeout: time.Minute}
	return NewDocumentIngestor(db, obj, emb, ext, sp, cfg)
}

func stageOf(t *testing.T, err error) string {
	t.Helper()
	var serr *core.StageError
	require.ErrorAs(t, err, &serr)
	return serr.Stage
}

func TestDocumentIngestor_IngestPDF_StoresDocumentAndChunks(t *testing.T) {
	db := &fakeDB{nextID: "doc-42"}
	obj := &fakeObject{}
	ext := &fakeExtractor{pages: []models.PageText{{Index: 0, Text: "page one"}, {Index: 1, Text: "page two"}}}
	sp := &fakeSplitter{pieces: threePieces()}
	ing := newTestIngestor(db, obj, &fakeEmbedder{}, ext, sp)

	res, err := ing.IngestPDF(context.Background(), []byte("%PDF-1.4"), "OS Notes", "os-notes.pdf", "CC-BY")
	require.NoError(t, err)

	require.NotNil(t, res.Document)
	assert.Equal(t, "doc-42", res.Document.ID)
	assert.Equal(t, "OS Notes", res.Document.Title)
	assert.Equal(t, "CC-BY", res.Document.License)
	assert.Equal(t, 3, res.ChunkCount)

	assert.Equal(t, []string{"page one", "page two"}, sp.seen)

	require.Len(t, db.inserted, 3)
	for i, row := range db.inserted {
		assert.Equal(t, "doc-42", row.DocumentID)
		assert.Equal(t, i, row.Position)
		assert.Equal(t, "os-notes.pdf", row.OriginalName)
		assert.Equal(t, res.Document.StorageURL, row.DownloadURL)
		assert.NotEmpty(t, row.Embedding)
	}

	require.Len(t, obj.uploadedKeys, 1)
	assert.Regexp(t, `^uploaded_docs/OS_Notes_[0-9a-f]{8}\.pdf$`, obj.uploadedKeys[0])
	assert.Equal(t, []byte("%PDF-1.4"), obj.uploadedData[0])
}

func TestDocumentIngestor_IngestPDF_DefaultsLicense(t *testing.T) {
	db := &fakeDB{}
	ext := &fakeExtractor{pages: []models.PageText{{Text: "text"}}}
	ing := newTestIngestor(db, &fakeObject{}, &fakeEmbedder{}, ext, &fakeSplitter{pieces: threePieces()})

	_, err := ing.IngestPDF(context.Background(), []byte("pdf"), "t", "t.pdf", "")
	require.NoError(t, err)

	require.Len(t, db.created, 1)
	assert.Equal(t, "unknown", db.created[0].License)
}

func TestDocumentIngestor_IngestPDF_EmbedsInBatches(t *testing.T) {
	emb := &fakeEmbedder{}
	ext := &fakeExtractor{pages: []models.PageText{{Text: "text"}}}
	pieces := make([]chunker.Piece, 5)
	for i := range pieces {
		pieces[i] = chunker.Piece{Position: i, Text: fmt.Sprintf("piece %d", i)}
	}
	ing := newTestIngestor(&fakeDB{}, &fakeObject{}, emb, ext, &fakeSplitter{pieces: pieces})

	res, err := ing.IngestPDF(context.Background(), []byte("pdf"), "t", "t.pdf", "")
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2, 1}, emb.batchSizes)
	assert.Equal(t, 5, res.ChunkCount)
}

func TestDocumentIngestor_IngestPDF_EmptyDocumentStoredWithoutChunks(t *testing.T) {
	db := &fakeDB{}
	emb := &fakeEmbedder{}
	ext := &fakeExtractor{pages: []models.PageText{{Text: ""}}}
	ing := newTestIngestor(db, &fakeObject{}, emb, ext, &fakeSplitter{pieces: nil})

	res, err := ing.IngestPDF(context.Background(), []byte("pdf"), "scanned", "scan.pdf", "")
	require.NoError(t, err)

	assert.Equal(t, 0, res.ChunkCount)
	assert.Empty(t, emb.batchSizes, "nothing to embed")
	assert.Empty(t, db.inserted)
	require.Len(t, db.created, 1, "the document row is still written")
}

func TestDocumentIngestor_IngestPDF_ExtractFailureIsStageError(t *testing.T) {
	obj := &fakeObject{}
	ext := &fakeExtractor{err: errors.New("unreadable")}
	ing := newTestIngestor(&fakeDB{}, obj, &fakeEmbedder{}, ext, &fakeSplitter{})

	_, err := ing.IngestPDF(context.Background(), []byte("junk"), "t", "t.pdf", "")
	assert.Equal(t, "extract", stageOf(t, err))
	assert.Empty(t, obj.uploadedKeys, "nothing reaches storage")
}

func TestDocumentIngestor_IngestPDF_WrongEmbeddingDimFailsEmbedStage(t *testing.T) {
	db := &fakeDB{}
	obj := &fakeObject{}
	ext := &fakeExtractor{pages: []models.PageText{{Text: "text"}}}
	ing := newTestIngestor(db, obj, &fakeEmbedder{}, ext, &fakeSplitter{pieces: threePieces()})
	ing.cfg.EmbedDim = 768

	_, err := ing.IngestPDF(context.Background(), []byte("pdf"), "t", "t.pdf", "")
	assert.Equal(t, "embed", stageOf(t, err))
	assert.Contains(t, err.Error(), "dim mismatch")
	assert.Empty(t, obj.uploadedKeys)
	assert.Empty(t, db.created)
}

func TestDocumentIngestor_IngestPDF_EmbedFailureStopsBeforeStorage(t *testing.T) {
	db := &fakeDB{}
	obj := &fakeObject{}
	ext := &fakeExtractor{pages: []models.PageText{{Text: "text"}}}
	ing := newTestIngestor(db, obj, &fakeEmbedder{err: errors.New("quota")}, ext, &fakeSplitter{pieces: threePieces()})

	_, err := ing.IngestPDF(context.Background(), []byte("pdf"), "t", "t.pdf", "")
	assert.Equal(t, "embed", stageOf(t, err))
	assert.Empty(t, obj.uploadedKeys)
	assert.Empty(t, db.created)
}

func TestDocumentIngestor_IngestPDF_UploadFailureLeavesNoMetadata(t *testing.T) {
	db := &fakeDB{}
	obj := &fakeObject{uploadErr: errors.New("s3 down")}
	ext := &fakeExtractor{pages: []models.PageText{{Text: "text"}}}
	ing := newTestIngestor(db, obj, &fakeEmbedder{}, ext, &fakeSplitter{pieces: threePieces()})

	_, err := ing.IngestPDF(context.Background(), []byte("pdf"), "t", "t.pdf", "")
	assert.Equal(t, "upload", stageOf(t, err))
	assert.Empty(t, db.created)
}

func TestDocumentIngestor_IngestPDF_MetadataFailureDeletesBlob(t *testing.T) {
	db := &fakeDB{createErr: errors.New("db down")}
	obj := &fakeObject{}
	ext := &fakeExtractor{pages: []models.PageText{{Text: "text"}}}
	ing := newTestIngestor(db, obj, &fakeEmbedder{}, ext, &fakeSplitter{pieces: threePieces()})

	_, err := ing.IngestPDF(context.Background(), []byte("pdf"), "t", "t.pdf", "")
	assert.Equal(t, "metadata", stageOf(t, err))

	require.Len(t, obj.uploadedKeys, 1)
	assert.Equal(t, obj.uploadedKeys, obj.deletedKeys, "orphaned blob is removed")
	assert.Empty(t, db.deleted)
}

func TestDocumentIngestor_IngestPDF_ChunkCountMismatchRollsBack(t *testing.T) {
	db := &fakeDB{nextID: "doc-7", insertCount: 2}
	obj := &fakeObject{}
	ext := &fakeExtractor{pages: []models.PageText{{Text: "text"}}}
	ing := newTestIngestor(db, obj, &fakeEmbedder{}, ext, &fakeSplitter{pieces: threePieces()})

	_, err := ing.IngestPDF(context.Background(), []byte("pdf"), "t", "t.pdf", "")
	require.ErrorIs(t, err, core.ErrChunkCountMismatch)
	assert.Equal(t, "chunks", stageOf(t, err))

	assert.Equal(t, []string{"doc-7"}, db.deleted, "document row is rolled back")
	assert.Equal(t, obj.uploadedKeys, obj.deletedKeys)
}

func TestDocumentIngestor_IngestPDF_InsertFailureRollsBack(t *testing.T) {
	db := &fakeDB{nextID: "doc-9", insertErr: errors.New("constraint")}
	obj := &fakeObject{}
	ext := &fakeExtractor{pages: []models.PageText{{Text: "text"}}}
	ing := newTestIngestor(db, obj, &fakeEmbedder{}, ext, &fakeSplitter{pieces: threePieces()})

	_, err := ing.IngestPDF(context.Background(), []byte("pdf"), "t", "t.pdf", "")
	assert.Equal(t, "chunks", stageOf(t, err))
	assert.Equal(t, []string{"doc-9"}, db.deleted)
	assert.Equal(t, obj.uploadedKeys, obj.deletedKeys)
}

func TestBlobKey_SanitizesAndRandomizes(t *testing.T) {
	a := blobKey("uploaded_docs", "Operating Systems: Notes.pdf")
	b := blobKey("uploaded_docs", "Operating Systems: Notes.pdf")

	assert.Regexp(t, `^uploaded_docs/Operating_Systems__Notes_[0-9a-f]{8}\.pdf$`, a)
	assert.NotEqual(t, a, b, "same title never maps to the same key")

	assert.Regexp(t, `^document_[0-9a-f]{8}\.pdf$`, blobKey("", ""))
	assert.Regexp(t, `^docs/a_b_[0-9a-f]{8}\.pdf$`, blobKey("/docs/", "a b"))
}
