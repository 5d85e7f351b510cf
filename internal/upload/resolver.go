package upload

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/xxxsen/ckupload/internal/config"
	"github.com/xxxsen/ckupload/internal/filestore"
	"github.com/xxxsen/ckupload/internal/model"
	appErr "github.com/xxxsen/ckupload/internal/pkg/errors"
)

const availableNameFiller = "_"

// Resolver computes collision free storage keys for new uploads.
//
// The existence check and the later write are not atomic. Two uploads of the
// same name into the same directory can both be handed the same key; the
// local store refuses the second write, object stores let the last one win.
type Resolver struct {
	cfg   config.CKEditorConfig
	store filestore.Store
}

func NewResolver(cfg config.CKEditorConfig, store filestore.Store) *Resolver {
	return &Resolver{cfg: cfg, store: store}
}

// Resolve returns <upload-root>/[<username>/]<YYYY>/<MM>/<DD>/<name> with the
// name lengthened until it is free.
func (r *Resolver) Resolve(ctx context.Context, originalName string, principal *model.Principal, today time.Time) (string, error) {
	name := baseName(originalName)
	if name != "" && r.cfg.ShouldSlugify() {
		name = SlugifyFilename(name)
	}
	if name == "" {
		return "", fmt.Errorf("%w: empty filename", appErr.ErrInvalidInput)
	}
	dir, err := r.UploadDir(principal, today)
	if err != nil {
		return "", err
	}
	if err := r.store.EnsureDir(ctx, dir); err != nil {
		return "", fmt.Errorf("%w: create dir %q: %w", appErr.ErrStorageUnavailable, dir, err)
	}
	return AvailableName(ctx, r.store, path.Join(dir, name), r.cfg.ThumbnailEnabled())
}

// UploadDir builds the date partitioned directory. Uploads are always placed
// in the uploader's own folder when user restriction is on, superusers included.
func (r *Resolver) UploadDir(principal *model.Principal, today time.Time) (string, error) {
	parts := []string{r.cfg.UploadPath}
	if r.cfg.RestrictByUser && !principal.Anonymous() {
		segment, err := userSegment(principal.Username)
		if err != nil {
			return "", err
		}
		parts = append(parts, segment)
	}
	parts = append(parts, today.Format("2006"), today.Format("01"), today.Format("02"))
	return strings.Trim(path.Join(parts...), "/"), nil
}

// AvailableName inserts a filler before the extension of key until no object
// exists there. When withThumb is set the derived thumbnail name must be free too.
func AvailableName(ctx context.Context, store filestore.Store, key string, withThumb bool) (string, error) {
	candidate := key
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		taken, err := exists(ctx, store, candidate)
		if err != nil {
			return "", err
		}
		if !taken && withThumb && IsImage(candidate) {
			taken, err = exists(ctx, store, ThumbName(candidate))
			if err != nil {
				return "", err
			}
		}
		if !taken {
			return candidate, nil
		}
		candidate = insertBeforeExt(candidate, availableNameFiller)
	}
}

func exists(ctx context.Context, store filestore.Store, key string) (bool, error) {
	ok, err := store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: check %q: %w", appErr.ErrStorageUnavailable, key, err)
	}
	return ok, nil
}

func userSegment(username string) (string, error) {
	if username == "." || username == ".." || strings.ContainsAny(username, "/\\") {
		return "", fmt.Errorf("%w: username %q is not a valid path segment", appErr.ErrInvalidInput, username)
	}
	return username, nil
}
