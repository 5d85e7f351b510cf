package upload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"path"

	"github.com/xxxsen/ckupload/internal/config"
	"github.com/xxxsen/ckupload/internal/filestore"
	"github.com/xxxsen/ckupload/internal/model"
	appErr "github.com/xxxsen/ckupload/internal/pkg/errors"
)

// Lister walks the upload root for the browse dialog.
type Lister struct {
	cfg   config.CKEditorConfig
	store filestore.Store
	urls  *URLResolver
}

func NewLister(cfg config.CKEditorConfig, store filestore.Store, urls *URLResolver) *Lister {
	return &Lister{cfg: cfg, store: store, urls: urls}
}

// Root is the directory principal may browse. Superusers always see every user's files.
func (l *Lister) Root(principal *model.Principal) (string, error) {
	if l.cfg.RestrictByUser && !principal.Anonymous() && !principal.IsSuperuser {
		segment, err := userSegment(principal.Username)
		if err != nil {
			return "", err
		}
		return path.Join(l.cfg.UploadPath, segment), nil
	}
	return l.cfg.UploadPath, nil
}

// Files lazily yields the key of every non-thumbnail file below the browse
// root. Each range over the sequence walks the store again.
func (l *Lister) Files(ctx context.Context, principal *model.Principal) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		root, err := l.Root(principal)
		if err != nil {
			yield("", err)
			return
		}
		l.walk(ctx, root, yield)
	}
}

func (l *Lister) walk(ctx context.Context, dir string, yield func(string, error) bool) bool {
	if err := ctx.Err(); err != nil {
		yield("", err)
		return false
	}
	dirs, files, err := l.store.ListDir(ctx, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true
		}
		yield("", fmt.Errorf("%w: list %q: %w", appErr.ErrStorageUnavailable, dir, err))
		return false
	}
	for _, name := range files {
		if IsThumbName(name) {
			continue
		}
		if !yield(path.Join(dir, name), nil) {
			return false
		}
	}
	for _, sub := range dirs {
		if !l.walk(ctx, path.Join(dir, sub), yield) {
			return false
		}
	}
	return true
}

// BrowseURLs collects the listing as (thumb, src, is_image) rows.
func (l *Lister) BrowseURLs(ctx context.Context, principal *model.Principal) ([]model.BrowseFile, error) {
	thumbs := l.cfg.ThumbnailEnabled()
	files := make([]model.BrowseFile, 0)
	for key, err := range l.Files(ctx, principal) {
		if err != nil {
			return nil, err
		}
		src := l.urls.ToURL(key)
		thumb := src
		if thumbs && IsImage(key) {
			thumb = l.urls.ToURL(ThumbName(key))
		}
		files = append(files, model.BrowseFile{
			Thumb:   thumb,
			Src:     src,
			IsImage: IsImage(key),
		})
	}
	return files, nil
}
