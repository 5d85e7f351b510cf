package upload

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ckupload/internal/config"
	"github.com/xxxsen/ckupload/internal/filestore"
	"github.com/xxxsen/ckupload/internal/model"
	appErr "github.com/xxxsen/ckupload/internal/pkg/errors"
)

type UploadInput struct {
	Name      string
	Reader    io.ReadSeeker
	Size      int64
	Principal *model.Principal
	Now       time.Time
}

// Service wires the resolver, thumbnailer, URL resolver and lister around one store.
type Service struct {
	cfg     config.CKEditorConfig
	store   filestore.Store
	paths   *Resolver
	thumbs  *Thumbnailer
	urls    *URLResolver
	listing *Lister
}

func NewService(cfg config.CKEditorConfig, store filestore.Store) *Service {
	urls := NewURLResolver(cfg, store)
	return &Service{
		cfg:     cfg,
		store:   store,
		paths:   NewResolver(cfg, store),
		thumbs:  NewThumbnailer(cfg, store),
		urls:    urls,
		listing: NewLister(cfg, store, urls),
	}
}

func (s *Service) URLs() *URLResolver {
	return s.urls
}

func (s *Service) Upload(ctx context.Context, in UploadInput) (*model.StoredAsset, error) {
	if in.Reader == nil || in.Name == "" {
		return nil, fmt.Errorf("%w: upload is required", appErr.ErrInvalidInput)
	}
	if s.cfg.MaxUploadSize > 0 && in.Size > s.cfg.MaxUploadSize {
		return nil, fmt.Errorf("%w: %d bytes", appErr.ErrTooLarge, in.Size)
	}
	if err := s.verify(in); err != nil {
		return nil, err
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	key, err := s.paths.Resolve(ctx, in.Name, in.Principal, now)
	if err != nil {
		return nil, err
	}
	saved, err := s.store.Save(ctx, key, in.Reader, in.Size)
	if err != nil {
		return nil, fmt.Errorf("%w: save %q: %w", appErr.ErrStorageUnavailable, key, err)
	}
	asset := &model.StoredAsset{
		Path: saved,
		URL:  s.urls.ToURL(saved),
		Kind: model.AssetKindOther,
	}
	if IsImage(saved) {
		asset.Kind = model.AssetKindImage
	}
	if s.thumbs.ShouldCreate(saved) {
		thumb, err := s.thumbs.Generate(ctx, saved)
		if err != nil {
			s.discard(ctx, saved)
			return nil, err
		}
		asset.ThumbPath = thumb
	}
	logutil.GetLogger(ctx).Info("file uploaded",
		zap.String("name", in.Name),
		zap.String("path", asset.Path),
		zap.String("kind", string(asset.Kind)),
		zap.Int64("size", in.Size),
	)
	return asset, nil
}

// discard removes an asset saved by an upload that failed afterwards.
func (s *Service) discard(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		logutil.GetLogger(ctx).Warn("remove failed upload", zap.String("path", key), zap.Error(err))
	}
}

// verify rejects undecodable images. Non-image files pass unless they are disallowed.
func (s *Service) verify(in UploadInput) error {
	mustDecode := !s.cfg.AllowNonImages() || (s.thumbs.Enabled() && IsImage(in.Name))
	if !mustDecode {
		return nil
	}
	if err := s.thumbs.Verify(in.Reader); err != nil {
		return err
	}
	if _, err := in.Reader.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: rewind upload: %w", appErr.ErrInvalidInput, err)
	}
	return nil
}

func (s *Service) Browse(ctx context.Context, principal *model.Principal) ([]model.BrowseFile, error) {
	return s.listing.BrowseURLs(ctx, principal)
}

// Backfill creates the thumbnails missing below the upload root and returns how many were written.
func (s *Service) Backfill(ctx context.Context) (int, error) {
	if !s.thumbs.Enabled() {
		return 0, nil
	}
	logger := logutil.GetLogger(ctx)
	created := 0
	for key, err := range s.listing.Files(ctx, nil) {
		if err != nil {
			return created, err
		}
		if !s.thumbs.ShouldCreate(key) {
			continue
		}
		ok, err := exists(ctx, s.store, ThumbName(key))
		if err != nil {
			return created, err
		}
		if ok {
			continue
		}
		if _, err := s.thumbs.Generate(ctx, key); err != nil {
			if appErr.IsUnsupportedFormat(err) {
				logger.Warn("skip thumbnail for undecodable image", zap.String("path", key), zap.Error(err))
				continue
			}
			return created, err
		}
		created++
	}
	return created, nil
}
