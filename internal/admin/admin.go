// Package admin provides the token administration API.
package admin

import (
	"log/slog"

	"github.com/placementcell/campus-api/internal/pipeline"
	"github.com/placementcell/campus-api/internal/policy"
	"github.com/placementcell/campus-api/internal/storage"
)

// Handler provides admin endpoints
type Handler struct {
	tokens   storage.TokenStore
	registry *policy.Registry
	adapter  *pipeline.Adapter
	logger   *slog.Logger
	logLevel *slog.LevelVar
}

// NewHandler creates an admin handler. Responses are written through adapter.
func NewHandler(tokens storage.TokenStore, registry *policy.Registry, adapter *pipeline.Adapter, logLevel *slog.LevelVar, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if logLevel == nil {
		logLevel = new(slog.LevelVar)
	}

	return &Handler{
		tokens:   tokens,
		registry: registry,
		adapter:  adapter,
		logLevel: logLevel,
		logger:   logger,
	}
}
