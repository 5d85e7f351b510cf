package filestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

const defaultLocalPublicURL = "/ckeditor/files"

type localConfig struct {
	Dir       string `json:"dir"`
	PublicURL string `json:"public_url"`
}

type localStore struct {
	dir       string
	publicURL string
	create    func(name string) (io.WriteCloser, error)
}

// createExclusive fails when name exists, so a concurrent writer that won
// the name keeps it.
func createExclusive(name string) (io.WriteCloser, error) {
	return os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
}

func init() {
	Register("local", createLocalStore)
}

func createLocalStore(args interface{}) (Store, error) {
	config := &localConfig{}
	if err := decodeConfig(args, config); err != nil {
		return nil, err
	}
	if config.Dir == "" {
		return nil, fmt.Errorf("local store dir is required")
	}
	if config.PublicURL == "" {
		config.PublicURL = defaultLocalPublicURL
	}
	return &localStore{dir: config.Dir, publicURL: config.PublicURL, create: createExclusive}, nil
}

func (s *localStore) Type() string {
	return "local"
}

func (s *localStore) URL(key string) string {
	key = strings.TrimPrefix(key, "/")
	return strings.TrimSuffix(s.publicURL, "/") + "/" + key
}

func (s *localStore) Save(ctx context.Context, key string, r io.Reader, size int64) (string, error) {
	_ = ctx
	_ = size
	full, key, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", fmt.Errorf("file key is required")
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	create := s.create
	if create == nil {
		create = createExclusive
	}
	out, err := create(full)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		_ = os.Remove(full)
		return "", err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(full)
		return "", err
	}
	return key, nil
}

func (s *localStore) Exists(ctx context.Context, key string) (bool, error) {
	_ = ctx
	full, _, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *localStore) ListDir(ctx context.Context, dir string) ([]string, []string, error) {
	_ = ctx
	full, _, err := s.resolve(dir)
	if err != nil {
		return nil, nil, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, nil, err
	}
	dirs := make([]string, 0)
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(dirs)
	sort.Strings(files)
	return dirs, files, nil
}

func (s *localStore) EnsureDir(ctx context.Context, dir string) error {
	_ = ctx
	full, _, err := s.resolve(dir)
	if err != nil {
		return err
	}
	return os.MkdirAll(full, 0o755)
}

func (s *localStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	_ = ctx
	full, key, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, fmt.Errorf("file key is required")
	}
	return os.Open(full)
}

func (s *localStore) resolve(key string) (string, string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", "", err
	}
	return filepath.Join(s.dir, filepath.FromSlash(path.Clean("/" + cleaned))), cleaned, nil
}

func (s *localStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	full, key, err := s.resolve(key)
	if err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("file key is required")
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
