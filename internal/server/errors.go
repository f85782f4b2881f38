package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rag-lab/server/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps a domain error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrEmptyContent), errors.Is(err, domain.ErrNoChunksProduced):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrUpstream), errors.Is(err, domain.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		status  int
		message string
		he      *echo.HTTPError
	)
	if errors.As(err, &he) {
		status = he.Code
		message = fmt.Sprint(he.Message)
	} else {
		status = statusFor(err)
		message = err.Error()
	}
	if status == http.StatusInternalServerError {
		message = "Internal server error"
	}

	entry := s.logger.Warn()
	if status >= http.StatusInternalServerError {
		entry = s.logger.Error()
	}
	entry.Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Int("status", status).
		Msg("request failed")

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, errorResponse{Error: message})
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to write error response")
	}
}
