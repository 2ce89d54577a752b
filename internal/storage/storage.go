// Package storage keeps issue attachments in a flat namespace, either a local
// directory or an S3 bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"issueInsightsTracker/internal/config"
)

// Object describes a stored attachment.
type Object struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Store is the attachment backend.
type Store interface {
	// Save writes r under a fresh unique name that keeps the extension of
	// originalName, and returns the reference to persist on the issue.
	Save(ctx context.Context, originalName string, r io.Reader) (string, error)
	// Remove deletes the attachment behind ref (a reference returned by Save
	// or an Object name). A missing object is not an error.
	Remove(ctx context.Context, ref string) error
	// List returns every stored attachment.
	List(ctx context.Context) ([]Object, error)
}

// New returns the Store selected by cfg.Provider.
func New(cfg config.StorageConfig) (Store, error) {
	switch cfg.Provider {
	case "", "local":
		return NewLocal(cfg.UploadDir)
	case "s3":
		return NewS3(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage provider %q", cfg.Provider)
	}
}

// uniqueName returns a random name carrying the extension of original as given.
func uniqueName(original string) string {
	ext := filepath.Ext(filepath.Base(original))
	return uuid.NewString() + ext
}
