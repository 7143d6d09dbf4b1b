// Package storage provides the blob store that holds generated approval
// letters. Paths are deterministic per document, so regeneration overwrites
// rather than accumulates; each save mints a fresh opaque access token for
// the public retrieval URL.
package storage

import (
	"crypto/subtle"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BlobStore persists binary artifacts under deterministic paths
type BlobStore interface {
	// Save writes content at path, replacing any previous content, and
	// returns the public URL carrying a freshly generated access token
	Save(path string, content []byte) (string, error)

	// Open returns the content at path if the token matches
	Open(path, token string) ([]byte, error)
}

// LocalBlobStore implements BlobStore on the local filesystem
type LocalBlobStore struct {
	baseDir       string
	publicBaseURL string
	logger        *zap.Logger
}

// NewLocalBlobStore creates a blob store rooted at baseDir
func NewLocalBlobStore(baseDir, publicBaseURL string, logger *zap.Logger) *LocalBlobStore {
	return &LocalBlobStore{
		baseDir:       baseDir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger,
	}
}

// Save writes content and a sidecar token file, overwriting both
func (s *LocalBlobStore) Save(path string, content []byte) (string, error) {
	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", fmt.Errorf("create blob directory: %w", err)
	}
	if err := os.WriteFile(full, content, 0644); err != nil {
		return "", fmt.Errorf("write blob %s: %w", path, err)
	}

	token := uuid.NewString()
	if err := os.WriteFile(full+".token", []byte(token), 0600); err != nil {
		return "", fmt.Errorf("write blob token %s: %w", path, err)
	}

	s.logger.Info("Blob saved",
		zap.String("path", path),
		zap.Int("size", len(content)))

	return fmt.Sprintf("%s/files/%s?token=%s", s.publicBaseURL, path, url.QueryEscape(token)), nil
}

// Open returns the blob content after validating the access token
func (s *LocalBlobStore) Open(path, token string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	stored, err := os.ReadFile(full + ".token")
	if err != nil {
		return nil, fmt.Errorf("blob %s has no access token: %w", path, err)
	}
	if subtle.ConstantTimeCompare(stored, []byte(token)) != 1 {
		return nil, fmt.Errorf("invalid access token for %s", path)
	}

	return os.ReadFile(full)
}

// resolve joins path under baseDir and rejects traversal outside it
func (s *LocalBlobStore) resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty blob path")
	}

	full := filepath.Join(s.baseDir, filepath.FromSlash(path))
	base, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(full)
	if err != nil {
		return "", err
	}
	if abs != base && !strings.HasPrefix(abs, base+string(filepath.Separator)) {
		return "", fmt.Errorf("blob path %s escapes storage root", path)
	}
	return full, nil
}
