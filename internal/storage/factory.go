package storage

import (
	"context"
	"strings"

	"github.com/kaili/songforge/internal/config"
)

// FilesURLPrefix is the API route serving local-backend objects.
const FilesURLPrefix = "/api/v1/files"

// NewStorage creates an ObjectStorage from configuration: a local directory
// for development, or an S3-compatible service (S3, R2, MinIO) in
// production.
func NewStorage(cfg *config.StorageConfig) (ObjectStorage, error) {
	if strings.ToLower(cfg.Backend) != "s3" {
		return NewLocalStorage(cfg.LocalDir, FilesURLPrefix)
	}

	s3Store, err := NewS3Storage(&S3Config{
		Type:      detectStorageType(cfg.Endpoint),
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		PublicURL: cfg.PublicURL,
	})
	if err != nil {
		return nil, err
	}
	if err := s3Store.EnsureBucket(context.Background()); err != nil {
		return nil, err
	}
	return s3Store, nil
}

// detectStorageType guesses the flavor of S3-compatible storage from the endpoint
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}
