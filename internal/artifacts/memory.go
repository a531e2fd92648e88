package artifacts

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/maritime-ai/maritime-ai-backend/internal/storage"
)

// memoryStore is an in-memory storage.Storage used as the fallback when the
// real backend is unusable (missing credentials, disabled billing). Documents
// survive only as long as the process; that is acceptable for the degraded
// mode, which exists so the rest of the API keeps working.
type memoryStore struct {
	mu      sync.RWMutex
	objects map[string]*memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
	metadata    map[string]string
	checksum    string
	modified    time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string]*memoryObject)}
}

func (m *memoryStore) Upload(ctx context.Context, path string, reader io.Reader, size int64, opts storage.UploadOptions) (*storage.UploadResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}

	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])

	meta := make(map[string]string, len(opts.Metadata))
	for k, v := range opts.Metadata {
		meta[k] = v
	}

	m.mu.Lock()
	m.objects[path] = &memoryObject{
		data:        data,
		contentType: opts.ContentType,
		metadata:    meta,
		checksum:    checksum,
		modified:    time.Now(),
	}
	m.mu.Unlock()

	return &storage.UploadResult{
		Path:     path,
		Size:     int64(len(data)),
		Checksum: checksum,
	}, nil
}

func (m *memoryStore) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	m.mu.RLock()
	obj, ok := m.objects[path]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (m *memoryStore) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	delete(m.objects, path)
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) Exists(ctx context.Context, path string) (bool, error) {
	m.mu.RLock()
	_, ok := m.objects[path]
	m.mu.RUnlock()
	return ok, nil
}

func (m *memoryStore) GetMetadata(ctx context.Context, path string) (*storage.FileMetadata, error) {
	m.mu.RLock()
	obj, ok := m.objects[path]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	return &storage.FileMetadata{
		Path:         path,
		Size:         int64(len(obj.data)),
		Checksum:     obj.checksum,
		ContentType:  obj.contentType,
		Metadata:     obj.metadata,
		LastModified: obj.modified,
	}, nil
}

func (m *memoryStore) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var objects []storage.ObjectInfo
	for path, obj := range m.objects {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		objects = append(objects, storage.ObjectInfo{
			Path:         path,
			Size:         int64(len(obj.data)),
			ContentType:  obj.contentType,
			Metadata:     obj.metadata,
			LastModified: obj.modified,
		})
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Path < objects[j].Path })
	return objects, nil
}
