package services

import (
	"context"

	"github.com/desertthunder/hoardsync/internal/models"
)

// Source pages through saved bookmarks.
type Source interface {
	// FetchPage returns up to limit bookmarks starting at cursor. An empty cursor starts from the beginning.
	FetchPage(ctx context.Context, cursor string, limit int) (*models.Page, error)

	// ArchiveURL builds the public URL of an archived asset. It performs no I/O.
	ArchiveURL(assetID string) string

	// Name returns the name of the service
	Name() string
}

// Target creates nodes in the knowledge graph.
type Target interface {
	// Submit creates one document. Rejections are returned as errors.
	Submit(ctx context.Context, doc *models.PlainNode) error

	// Name returns the name of the service
	Name() string
}
