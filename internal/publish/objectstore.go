// Package publish uploads finished run directories to an object store so
// reports survive ephemeral CI workers.
package publish

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"
)

// Config describes how to connect to an object store provider.
type Config struct {
	Provider           string
	Bucket             string
	Prefix             string
	Region             string
	Endpoint           string
	AccessKey          string
	SecretKey          string
	S3PathStyle        bool
	GCPCredentialsFile string
	GCPCredentialsJSON string
	AzureAccount       string
	AzureKey           string
	AzureEndpoint      string
	AzureSASToken      string
}

// Object describes an uploaded or listed object.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Provider is the subset of an object store client the publisher needs.
type Provider interface {
	Upload(ctx context.Context, key, localPath string) (Object, error)
	List(ctx context.Context, prefix string) ([]Object, error)
	Close() error
}

// NewProvider creates a provider client based on cfg.
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	provider := NormalizeProvider(cfg.Provider)
	if provider == "" {
		return nil, fmt.Errorf("publish provider is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("publish bucket is required")
	}
	cfg.Provider = provider
	switch provider {
	case "s3":
		return newS3Provider(ctx, cfg)
	case "gcs":
		return newGCSProvider(ctx, cfg)
	case "azure":
		return newAzureProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported publish provider: %s", cfg.Provider)
	}
}

// NormalizeProvider maps known aliases to provider names.
func NormalizeProvider(value string) string {
	provider := strings.ToLower(strings.TrimSpace(value))
	switch provider {
	case "aws", "s3", "minio":
		return "s3"
	case "gcp", "gcs":
		return "gcs"
	case "azure", "blob":
		return "azure"
	default:
		return provider
	}
}

// ResolveKey joins a base prefix with a key without introducing double slashes.
func ResolveKey(prefix, key string) string {
	cleanPrefix := strings.Trim(prefix, "/")
	cleanKey := strings.TrimPrefix(key, "/")
	if cleanPrefix == "" {
		return cleanKey
	}
	if cleanKey == "" {
		return cleanPrefix
	}
	return cleanPrefix + "/" + cleanKey
}

// contentType guesses the MIME type of a report artifact.
func contentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".prom":
		return "text/plain; version=0.0.4"
	case ".json":
		return "application/json"
	}
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
