// Package filebrowser is the optional secondary upload backend used by the
// file-browser dialog. Providers hand back the stored file directly.
package filebrowser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ckupload/internal/filestore"
	appErr "github.com/xxxsen/ckupload/internal/pkg/errors"
	"github.com/xxxsen/ckupload/internal/upload"
)

var ErrNotReported = errors.New("file browser did not report an uploaded file")

type File struct {
	Name   string
	Reader io.Reader
	Size   int64
}

type FileObject struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

type Provider interface {
	Upload(ctx context.Context, folder string, file File) (*FileObject, error)
}

// StoreProvider places files in <directory>/<folder>/<name> on a filestore.
type StoreProvider struct {
	store     filestore.Store
	directory string
	toURL     func(string) string
}

func NewStoreProvider(store filestore.Store, directory string, toURL func(string) string) *StoreProvider {
	if toURL == nil {
		toURL = store.URL
	}
	return &StoreProvider{store: store, directory: strings.Trim(directory, "/"), toURL: toURL}
}

func (p *StoreProvider) Upload(ctx context.Context, folder string, file File) (*FileObject, error) {
	if file.Reader == nil {
		return nil, fmt.Errorf("%w: upload is required", appErr.ErrInvalidInput)
	}
	name := upload.SlugifyFilename(path.Base(strings.ReplaceAll(file.Name, "\\", "/")))
	if name == "" || name == "." {
		return nil, fmt.Errorf("%w: empty filename", appErr.ErrInvalidInput)
	}
	cleanFolder, err := filestore.CleanKey(folder)
	if err != nil {
		return nil, fmt.Errorf("%w: folder %q: %w", appErr.ErrInvalidInput, folder, err)
	}
	dir := path.Join(p.directory, cleanFolder)
	if err := p.store.EnsureDir(ctx, dir); err != nil {
		return nil, fmt.Errorf("%w: create dir %q: %w", appErr.ErrStorageUnavailable, dir, err)
	}
	key, err := upload.AvailableName(ctx, p.store, path.Join(dir, name), false)
	if err != nil {
		return nil, err
	}
	saved, err := p.store.Save(ctx, key, file.Reader, file.Size)
	if err != nil {
		return nil, fmt.Errorf("%w: save %q: %w", appErr.ErrStorageUnavailable, key, err)
	}
	logutil.GetLogger(ctx).Info("file browser upload", zap.String("folder", cleanFolder), zap.String("path", saved))
	return &FileObject{Path: saved, Filename: path.Base(saved), URL: p.toURL(saved)}, nil
}

// CallbackUploader is an upload API that reports the stored file through a
// callback instead of returning it.
type CallbackUploader func(ctx context.Context, folder string, file File, onUploaded func(FileObject)) error

type callbackProvider struct {
	upload CallbackUploader
}

// FromCallback adapts a CallbackUploader. Every call gets its own one-shot
// channel; only the first reported file is kept.
func FromCallback(fn CallbackUploader) Provider {
	return &callbackProvider{upload: fn}
}

func (p *callbackProvider) Upload(ctx context.Context, folder string, file File) (*FileObject, error) {
	reported := make(chan FileObject, 1)
	err := p.upload(ctx, folder, file, func(obj FileObject) {
		select {
		case reported <- obj:
		default:
		}
	})
	if err != nil {
		return nil, err
	}
	select {
	case obj := <-reported:
		return &obj, nil
	default:
		return nil, ErrNotReported
	}
}
