package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"sync"

	"github.com/xxxsen/ckupload/internal/config"
)

// Store is the storage collaborator. Keys are slash separated and relative
// to the store root.
type Store interface {
	Type() string
	// Save writes r under key and returns the key it was stored at.
	Save(ctx context.Context, key string, r io.Reader, size int64) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	// ListDir returns the immediate sub directories and files of dir.
	ListDir(ctx context.Context, dir string) (dirs []string, files []string, err error)
	// EnsureDir creates dir when the backend needs explicit directories.
	EnsureDir(ctx context.Context, dir string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes key. A missing key is not an error.
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

type Factory func(args interface{}) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(cfg config.FileStoreConfig) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("file_store.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported file store type: %s", cfg.Type)
	}
	return factory(cfg.Data)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("store config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode store config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode store config: %w", err)
	}
	return nil
}

// CleanKey normalizes key and rejects anything that could escape the store root.
func CleanKey(key string) (string, error) {
	if strings.Contains(key, "\\") {
		return "", fmt.Errorf("invalid file key")
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", fmt.Errorf("invalid file key")
		}
	}
	cleaned := strings.Trim(path.Clean("/"+key), "/")
	if cleaned == "" || cleaned == "." {
		return "", nil
	}
	return cleaned, nil
}

func contentTypeOf(key string) string {
	ct := mime.TypeByExtension(path.Ext(key))
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}
