package handlers

import (
	"context"

	"github.com/sirupsen/logrus"
	supa "github.com/supabase-community/supabase-go"

	"tubescript/api-gateway/internal/archive"
	"tubescript/api-gateway/internal/extract"
	"tubescript/api-gateway/internal/history"
)

// ExtractorClient defines the operations handlers expect from the
// transcript-extraction service client. Decoupled behind an interface for
// testing.
type ExtractorClient interface {
	Video(ctx context.Context, videoURL string) (*extract.Result, error)
	Channel(ctx context.Context, channelURL string) (*extract.Result, error)
	CSV(ctx context.Context, videoURLs []string) (*extract.Result, error)
}

// ApplicationHandler holds shared dependencies for handlers.
type ApplicationHandler struct {
	Store     history.Store
	Extractor ExtractorClient
	Archive   *archive.Reconstructor
	Logger    *logrus.Logger
	// DB is the service-credential client used only by the admin read path
	// for cross-user aggregation.
	DB *supa.Client
}

// NewApplicationHandler creates an ApplicationHandler with the given
// dependencies.
func NewApplicationHandler(store history.Store, extractor ExtractorClient, reconstructor *archive.Reconstructor, logger *logrus.Logger, db *supa.Client) *ApplicationHandler {
	return &ApplicationHandler{
		Store:     store,
		Extractor: extractor,
		Archive:   reconstructor,
		Logger:    logger,
		DB:        db,
	}
}
