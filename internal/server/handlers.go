package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rag-lab/server/internal/domain"
)

type collectionRequest struct {
	Name string `json:"name" validate:"required"`
}

type searchRequest struct {
	Query string `json:"query" validate:"required"`
	Limit int    `json:"limit" validate:"omitempty,min=1,max=100"`
}

type queryRequest struct {
	Query        string `json:"query" validate:"required"`
	CollectionID string `json:"collectionId" validate:"required"`
}

// bind decodes and validates a JSON body. Blank strings count as missing.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrValidation)
	}
	trimStrings(req)
	return c.Validate(req)
}

func trimStrings(req any) {
	switch r := req.(type) {
	case *collectionRequest:
		r.Name = strings.TrimSpace(r.Name)
	case *searchRequest:
		r.Query = strings.TrimSpace(r.Query)
	case *queryRequest:
		r.Query = strings.TrimSpace(r.Query)
		r.CollectionID = strings.TrimSpace(r.CollectionID)
	}
}

func (s *Server) health(c echo.Context) error {
	status := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
	if s.deps.Ping == nil {
		return c.JSON(http.StatusOK, status)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := s.deps.Ping(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("health check failed")
		status["status"] = "unavailable"
		status["error"] = "database unreachable"
		return c.JSON(http.StatusServiceUnavailable, status)
	}
	return c.JSON(http.StatusOK, status)
}

func (s *Server) createCollection(c echo.Context) error {
	var req collectionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	collection, err := s.deps.Library.CreateCollection(c.Request().Context(), req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, collection)
}

func (s *Server) listCollections(c echo.Context) error {
	collections, err := s.deps.Library.ListCollections(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, collections)
}

func (s *Server) renameCollection(c echo.Context) error {
	var req collectionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	collection, err := s.deps.Library.RenameCollection(c.Request().Context(), c.Param("id"), req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, collection)
}

func (s *Server) deleteCollection(c echo.Context) error {
	if err := s.deps.Library.DeleteCollection(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listDocuments(c echo.Context) error {
	docs, err := s.deps.Library.ListDocuments(c.Request().Context(), c.Param("collectionId"))
	if err != nil {
		return err
	}
	out := make([]domain.Document, len(docs))
	for i, d := range docs {
		out[i] = d.Document
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) embedStatus(c echo.Context) error {
	docs, err := s.deps.Library.ListDocuments(c.Request().Context(), c.Param("collectionId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, docs)
}

func (s *Server) uploadDocuments(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return fmt.Errorf("%w: expected a multipart form", domain.ErrValidation)
	}
	files := form.File["files"]
	switch {
	case len(files) == 0:
		return fmt.Errorf("%w: no files uploaded", domain.ErrValidation)
	case len(files) > MaxUploadFiles:
		return fmt.Errorf("%w: at most %d files per upload", domain.ErrValidation, MaxUploadFiles)
	}

	ctx := c.Request().Context()
	collectionID := c.Param("collectionId")
	docs := make([]*domain.Document, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
		}
		doc, err := s.deps.Library.StoreDocument(ctx, collectionID, fh.Filename, fh.Header.Get(echo.HeaderContentType), f)
		_ = f.Close()
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}
	return c.JSON(http.StatusCreated, docs)
}

func (s *Server) deleteDocument(c echo.Context) error {
	if err := s.deps.Library.DeleteDocument(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) embedDocument(c echo.Context) error {
	result, err := s.deps.Ingestor.EmbedDocument(c.Request().Context(), c.Param("documentId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, result)
}

func (s *Server) search(c echo.Context) error {
	var req searchRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	hits, err := s.deps.Querier.Search(c.Request().Context(), req.Query, c.Param("collectionId"), req.Limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, hits)
}

func (s *Server) modelStatus(c echo.Context) error {
	if s.deps.ModelStatus == nil {
		return c.JSON(http.StatusOK, domain.HealthStatus{Available: false, Models: []string{}, Reason: "model status is not configured"})
	}
	return c.JSON(http.StatusOK, s.deps.ModelStatus(c.Request().Context()))
}

func (s *Server) stats(c echo.Context) error {
	stats, err := s.deps.Library.Stats(c.Request().Context(), c.Param("collectionId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) query(c echo.Context) error {
	var req queryRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	answer, err := s.deps.Querier.Query(c.Request().Context(), req.Query, req.CollectionID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, answer)
}
