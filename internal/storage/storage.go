// Package storage stores generated voice audio and hands out public URLs for it.
//
// Two providers exist:
// - LocalStorage: files under a directory, served by the /files/ route
// - R2Storage: Cloudflare R2 through the S3 API
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Storage defines the object operations the voice pipeline needs.
type Storage interface {
	// Put stores data at key. Fails with ErrKeyExists unless opts.Overwrite.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get retrieves the object at key. The caller must close the reader.
	// Returns ErrNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// URL returns a URL for the object. expires == 0 asks for a permanent
	// public URL where the provider has one.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Exists checks if an object exists at key.
	Exists(ctx context.Context, key string) (bool, error)
}

// PutOptions configures how an object is stored.
type PutOptions struct {
	ContentType string // detected from the key when empty
	MaxSize     int64  // 0 means no limit
	Overwrite   bool
	Public      bool // public-read ACL on R2; informational for local storage
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	BasePath string // e.g. "./storage"
	BaseURL  string // e.g. "http://localhost:8080/files"
}

// R2Config holds configuration for Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// PublicURL is the bucket's public domain. Without it every URL is presigned.
	PublicURL string

	// Region defaults to "auto", which is what R2 expects.
	Region string

	// Endpoint overrides the account endpoint, for S3-compatible test servers.
	Endpoint string
}

// Config selects and configures a provider.
type Config struct {
	Provider string // ProviderLocal or ProviderR2
	Local    LocalConfig
	R2       R2Config
}

const (
	// ProviderLocal identifies the local filesystem storage provider.
	ProviderLocal = "local"

	// ProviderR2 identifies the Cloudflare R2 storage provider.
	ProviderR2 = "r2"
)

// New builds the configured provider.
func New(cfg Config, logger *slog.Logger) (Storage, error) {
	switch cfg.Provider {
	case ProviderLocal, "":
		return NewLocalStorage(cfg.Local, logger)
	case ProviderR2:
		return NewR2Storage(cfg.R2, logger)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

// VoiceKey generates a storage key for a synthesized reply.
// Format: voice/{uuid}.mp3
func VoiceKey() string {
	return fmt.Sprintf("voice/%s.mp3", uuid.New())
}
