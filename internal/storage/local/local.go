// Package local implements the local filesystem storage backend. It is
// intended for development and single-node deployments only. Content type and
// custom metadata are persisted in a JSON sidecar file next to each object so
// the backend behaves like a cloud object store for listing and metadata
// lookups.
package local

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maritime-ai/maritime-ai-backend/internal/config"
	"github.com/maritime-ai/maritime-ai-backend/internal/storage"
	"github.com/maritime-ai/maritime-ai-backend/pkg/checksum"
)

// metaSuffix marks sidecar files; they are invisible to Download/List.
const metaSuffix = ".meta.json"

func init() {
	// Register local storage backend
	storage.Register("local", func(cfg *config.Config) (storage.Storage, error) {
		return New(&cfg.Storage.Local)
	})
}

// LocalStorage implements the Storage interface for local filesystem storage
type LocalStorage struct {
	basePath string
}

// sidecar is the on-disk format of the metadata file written next to each object.
type sidecar struct {
	ContentType string            `json:"content_type,omitempty"`
	Checksum    string            `json:"checksum,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// New creates a new local filesystem storage backend
func New(cfg *config.LocalStorageConfig) (*LocalStorage, error) {
	if err := os.MkdirAll(cfg.BasePath, 0750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{basePath: cfg.BasePath}, nil
}

// Upload stores an object in the local filesystem
func (s *LocalStorage) Upload(ctx context.Context, path string, reader io.Reader, size int64, opts storage.UploadOptions) (*storage.UploadResult, error) {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(path))

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	// Calculate checksum while writing
	hasher := sha256.New()
	multiWriter := io.MultiWriter(file, hasher)

	written, err := io.Copy(multiWriter, reader)
	if err != nil {
		// Clean up partial file
		_ = os.Remove(fullPath)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	checksum := hex.EncodeToString(hasher.Sum(nil))

	if err := s.writeSidecar(fullPath, sidecar{
		ContentType: opts.ContentType,
		Checksum:    checksum,
		Metadata:    opts.Metadata,
	}); err != nil {
		_ = os.Remove(fullPath)
		return nil, err
	}

	return &storage.UploadResult{
		Path:     path,
		Size:     written,
		Checksum: checksum,
	}, nil
}

// Download retrieves an object from the local filesystem
func (s *LocalStorage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(path))

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Delete removes an object and its sidecar from the local filesystem
func (s *LocalStorage) Delete(ctx context.Context, path string) error {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(path))

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil // File doesn't exist, consider it deleted
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	_ = os.Remove(fullPath + metaSuffix)

	// Try to remove empty parent directories (best effort)
	dir := filepath.Dir(fullPath)
	for dir != s.basePath {
		if err := os.Remove(dir); err != nil {
			break // Directory not empty or other error, stop trying
		}
		dir = filepath.Dir(dir)
	}

	return nil
}

// Exists checks if an object exists at the specified path
func (s *LocalStorage) Exists(ctx context.Context, path string) (bool, error) {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(path))

	_, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}

	return true, nil
}

// GetMetadata retrieves object metadata without downloading the content
func (s *LocalStorage) GetMetadata(ctx context.Context, path string) (*storage.FileMetadata, error) {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(path))

	stat, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to get file metadata: %w", err)
	}

	sc, err := s.readSidecar(fullPath)
	if err != nil {
		return nil, err
	}

	checksum := sc.Checksum
	if checksum == "" {
		// Objects written before sidecars existed: compute on the fly.
		checksum, err = s.computeChecksum(fullPath)
		if err != nil {
			return nil, err
		}
	}

	return &storage.FileMetadata{
		Path:         path,
		Size:         stat.Size(),
		Checksum:     checksum,
		ContentType:  sc.ContentType,
		Metadata:     sc.Metadata,
		LastModified: stat.ModTime(),
	}, nil
}

// List returns all objects under the given prefix with their metadata
func (s *LocalStorage) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	var objects []storage.ObjectInfo

	err := filepath.Walk(s.basePath, func(fullPath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || strings.HasSuffix(fullPath, metaSuffix) {
			return nil
		}

		rel, err := filepath.Rel(s.basePath, fullPath)
		if err != nil {
			return err
		}
		path := filepath.ToSlash(rel)
		if !strings.HasPrefix(path, prefix) {
			return nil
		}

		sc, err := s.readSidecar(fullPath)
		if err != nil {
			return err
		}

		objects = append(objects, storage.ObjectInfo{
			Path:         path,
			Size:         info.Size(),
			ContentType:  sc.ContentType,
			Metadata:     sc.Metadata,
			LastModified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	// Walk order is filesystem dependent; present a stable ordering.
	sort.Slice(objects, func(i, j int) bool { return objects[i].Path < objects[j].Path })

	return objects, nil
}

func (s *LocalStorage) writeSidecar(fullPath string, sc sidecar) error {
	data, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := os.WriteFile(fullPath+metaSuffix, data, 0640); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// readSidecar returns a zero sidecar when none exists.
func (s *LocalStorage) readSidecar(fullPath string) (sidecar, error) {
	var sc sidecar
	data, err := os.ReadFile(fullPath + metaSuffix)
	if err != nil {
		if os.IsNotExist(err) {
			return sc, nil
		}
		return sc, fmt.Errorf("failed to read metadata: %w", err)
	}
	if err := json.Unmarshal(data, &sc); err != nil {
		return sc, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return sc, nil
}

func (s *LocalStorage) computeChecksum(fullPath string) (string, error) {
	file, err := os.Open(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to open file for checksum: %w", err)
	}
	defer file.Close()

	return checksum.CalculateSHA256(file)
}
