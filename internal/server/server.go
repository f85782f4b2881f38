// Package server exposes the library, ingestion and query pipelines over a
// JSON HTTP API.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/phuslu/log"

	"github.com/rag-lab/server/internal/domain"
)

// MaxUploadFiles is the most files accepted by one upload request.
const MaxUploadFiles = 10

// Library manages collections and stored documents.
type Library interface {
	CreateCollection(ctx context.Context, name string) (*domain.Collection, error)
	ListCollections(ctx context.Context) ([]domain.Collection, error)
	RenameCollection(ctx context.Context, id, name string) (*domain.Collection, error)
	DeleteCollection(ctx context.Context, id string) error
	StoreDocument(ctx context.Context, collectionID, originalName, mimeType string, r io.Reader) (*domain.Document, error)
	ListDocuments(ctx context.Context, collectionID string) ([]domain.DocumentStatus, error)
	DeleteDocument(ctx context.Context, id string) error
	Stats(ctx context.Context, collectionID string) (domain.CollectionStats, error)
}

// Ingestor embeds stored documents.
type Ingestor interface {
	EmbedDocument(ctx context.Context, documentID string) (*domain.IngestResult, error)
}

// Querier answers questions and runs raw similarity searches.
type Querier interface {
	Query(ctx context.Context, query, collectionID string) (*domain.Answer, error)
	Search(ctx context.Context, query, collectionID string, limit int) ([]domain.SearchHit, error)
}

// Deps are the services behind the HTTP API.
type Deps struct {
	Library  Library
	Ingestor Ingestor
	Querier  Querier
	// ModelStatus reports whether the model backends are usable.
	ModelStatus func(ctx context.Context) domain.HealthStatus
	// Ping checks the metadata store.
	Ping func(ctx context.Context) error
	// StaticDir, when set, is served at the root.
	StaticDir string
}

// Server is the HTTP API.
type Server struct {
	echo   *echo.Echo
	deps   Deps
	logger *log.Logger
}

// New builds the server and registers its routes.
func New(deps Deps, logger *log.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, deps: deps, logger: logger}

	e.Validator = newRequestValidator()
	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(requestLogger(logger))

	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo

	e.GET("/health", s.health)

	collections := e.Group("/api/collections")
	collections.POST("", s.createCollection)
	collections.GET("", s.listCollections)
	collections.PUT("/:id", s.renameCollection)
	collections.DELETE("/:id", s.deleteCollection)

	docs := e.Group("/api/documents")
	docs.GET("/:collectionId", s.listDocuments)
	docs.GET("/:collectionId/embed-status", s.embedStatus)
	docs.POST("/:collectionId/upload", s.uploadDocuments)
	docs.DELETE("/:id", s.deleteDocument)

	embeddings := e.Group("/api/embeddings")
	embeddings.POST("/search/:collectionId", s.search)
	embeddings.POST("/:documentId", s.embedDocument)

	e.GET("/api/models/ollama/status", s.modelStatus)

	rag := e.Group("/api/rag")
	rag.GET("/stats/:collectionId", s.stats)
	rag.POST("/query", s.query)

	if s.deps.StaticDir != "" {
		e.Static("/", s.deps.StaticDir)
	}
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("http server listening")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// requestLogger logs one line per request through the application logger.
func requestLogger(logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			status := c.Response().Status
			entry := logger.Info()
			if status >= http.StatusInternalServerError {
				entry = logger.Warn()
			}
			entry.
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", status).
				Int64("bytes", c.Response().Size).
				Dur("elapsed", time.Since(start)).
				Msg("request")
			return nil
		}
	}
}
