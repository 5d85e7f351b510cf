package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type Backfiller interface {
	Backfill(ctx context.Context) (int, error)
}

// ThumbnailBackfillJob writes the thumbnails missing below the upload root,
// for example after thumbnails were switched on for an existing install.
type ThumbnailBackfillJob struct {
	uploads Backfiller
}

func NewThumbnailBackfillJob(uploads Backfiller) *ThumbnailBackfillJob {
	return &ThumbnailBackfillJob{uploads: uploads}
}

func (j *ThumbnailBackfillJob) Name() string {
	return "thumbnail_backfill"
}

func (j *ThumbnailBackfillJob) Run(ctx context.Context) error {
	if j.uploads == nil {
		return nil
	}
	created, err := j.uploads.Backfill(ctx)
	if created > 0 {
		logutil.GetLogger(ctx).Info("thumbnails backfilled", zap.Int("count", created))
	}
	return err
}
