package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"sort"
	"strings"
	"sync"
)

// memStore is an object-store style backend: directories only exist
// implicitly through the keys below them.
type memStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	existsErr error
	saveErr   error
	// thumbSaveErr fails only thumbnail writes
	thumbSaveErr error
	listErr      error
	deleted      []string
	ensured   []string
	checked   []string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (m *memStore) Type() string { return "mem" }

func (m *memStore) URL(key string) string { return "/mem/" + strings.TrimPrefix(key, "/") }

func (m *memStore) put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
}

func (m *memStore) Save(ctx context.Context, key string, r io.Reader, size int64) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	if m.thumbSaveErr != nil && IsThumbName(key) {
		return "", m.thumbSaveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.put(key, data)
	return key, nil
}

func (m *memStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checked = append(m.checked, key)
	if m.existsErr != nil {
		return false, m.existsErr
	}
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memStore) ListDir(ctx context.Context, dir string) ([]string, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, nil, m.listErr
	}
	prefix := strings.Trim(dir, "/")
	if prefix != "" {
		prefix += "/"
	}
	dirSet := map[string]struct{}{}
	files := make([]string, 0)
	found := false
	for key := range m.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		found = true
		rest := strings.TrimPrefix(key, prefix)
		if idx := strings.Index(rest, "/"); idx >= 0 {
			dirSet[rest[:idx]] = struct{}{}
			continue
		}
		files = append(files, rest)
	}
	if !found {
		return nil, nil, &fs.PathError{Op: "list", Path: dir, Err: fs.ErrNotExist}
	}
	dirs := make([]string, 0, len(dirSet))
	for d := range dirSet {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	sort.Strings(files)
	return dirs, files, nil
}

func (m *memStore) EnsureDir(ctx context.Context, dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensured = append(m.ensured, dir)
	return nil
}

func (m *memStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: key, Err: fs.ErrNotExist}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, key)
	delete(m.objects, key)
	return nil
}

func (m *memStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var errBoom = errors.New("boom")
