package app

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/lectern-ai/lectern/internal/api/handlers"
	"github.com/lectern-ai/lectern/internal/config"
	"github.com/lectern-ai/lectern/internal/core"
	"github.com/lectern-ai/lectern/internal/core/chat"
	ingestor "github.com/lectern-ai/lectern/internal/core/ingestion_engine"
	"github.com/lectern-ai/lectern/internal/core/upload"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, db core.DbClient, ing ingestor.Ingestor, manager *upload.Manager, orchestrator *chat.Orchestrator) *Server {
	docHandler := handlers.NewDocumentHandler(db, ing, cfg.MaxUploadBytes)
	uploadHandler := handlers.NewUploadHandler(manager, ing)
	chatHandler := handlers.NewChatHandler(orchestrator)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Welcome to the Lectern API"})
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		// Ingestion endpoints run long; the pipeline stages carry their
		// own deadlines, so no request timeout here.
		api.Post("/documents/upload", docHandler.UploadDocument)
		api.Post("/uploads/initiate", uploadHandler.InitiateUpload)
		api.Post("/uploads/chunk", uploadHandler.UploadChunk)
		api.Post("/uploads/finalize", uploadHandler.FinalizeUpload)

		api.Group(func(short chi.Router) {
			short.Use(middleware.Timeout(60 * time.Second))
			short.Get("/documents", docHandler.GetDocuments)
			short.Post("/chat/query", chatHandler.QueryDocument)
			short.Get("/chat/history", chatHandler.GetChatHistory)
			short.Delete("/chat/history", chatHandler.ClearChatHistory)
			short.Post("/chat/mode", chatHandler.SetChatMode)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv}
}

// requestLogger records one line per request once the response is written.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}
