package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lectern-ai/lectern/internal/config"
	"github.com/lectern-ai/lectern/internal/core"
	"github.com/lectern-ai/lectern/internal/core/chat"
	"github.com/lectern-ai/lectern/internal/core/chunker"
	db "github.com/lectern-ai/lectern/internal/core/database"
	"github.com/lectern-ai/lectern/internal/core/extract"
	"github.com/lectern-ai/lectern/internal/core/ingestion_engine"
	"github.com/lectern-ai/lectern/internal/core/llm"
	objectclient "github.com/lectern-ai/lectern/internal/core/object-client"
	"github.com/lectern-ai/lectern/internal/core/search"
	"github.com/lectern-ai/lectern/internal/core/upload"
)

// App owns every long-lived component and tears them down in reverse
// construction order on Close.
type App struct {
	DBClient     core.DbClient
	UploadReaper *upload.Reaper
	Server       *Server

	embedder *llm.GeminiEmbedder
	llm      *llm.GeminiLLM
}

// NewApp initializes clients bottom-up and wires them into the HTTP server.
// Nothing is started here; the caller runs the server and the reaper.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info().Msg("database initialized and ready")

	objClient, err := objectclient.NewS3Client(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	embedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}

	llmClient, err := llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		return nil, fmt.Errorf("init llm: %w", err)
	}

	splitter, err := chunker.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap, cfg.EmbedTokenLimit)
	if err != nil {
		return nil, fmt.Errorf("init splitter: %w", err)
	}

	extractor := extract.NewPDFExtractor(cfg.OCRTextThreshold, cfg.OCRDPI, extract.PopplerRasterizer{}, extract.DocconvOCR{})

	ingestor := ingestion_engine.NewDocumentIngestor(dbClient, objClient, embedder, extractor, splitter, &ingestion_engine.IngestConfig{
		Bucket:         cfg.BucketName,
		BlobFolder:     cfg.BlobFolder,
		EmbedBatchSize: cfg.EmbedBatchSize,
		EmbedDim:       cfg.EmbedDim,
		StageTimeout:   cfg.IngestStageTimeout,
	})

	manager := upload.NewManager(upload.NewMemoryStore(), cfg.UploadSessionTTL)
	reaper := upload.NewReaper(manager, cfg.UploadReapInterval)

	retriever := search.NewHybridRetriever(dbClient)
	orchestrator := chat.NewOrchestrator(chat.NewMemoryStore(), retriever, embedder, llmClient, search.Options{
		MatchCount:     cfg.MatchCount,
		FullTextWeight: cfg.FullTextWeight,
		SemanticWeight: cfg.SemanticWeight,
		RRFK:           cfg.RRFK,
	}, chat.ModeStudent)

	server := NewServer(cfg, dbClient, ingestor, manager, orchestrator)

	return &App{
		DBClient:     dbClient,
		UploadReaper: reaper,
		Server:       server,
		embedder:     embedder,
		llm:          llmClient,
	}, nil
}

// Close releases all clients. Call once, after the server has stopped.
func (a *App) Close() {
	_ = a.UploadReaper.Stop()

	if a.llm != nil {
		if err := a.llm.Close(); err != nil {
			log.Warn().Err(err).Msg("closing llm client")
		}
	}
	if a.embedder != nil {
		if err := a.embedder.Close(); err != nil {
			log.Warn().Err(err).Msg("closing embedder")
		}
	}
	if a.DBClient != nil {
		if err := a.DBClient.Close(); err != nil {
			log.Warn().Err(err).Msg("closing database")
		}
	}
	log.Info().Msg("application closed")
}
