package upload

import (
	"bytes"
	"context"
	"image"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ckupload/internal/config"
	"github.com/xxxsen/ckupload/internal/model"
	appErr "github.com/xxxsen/ckupload/internal/pkg/errors"
)

func TestService_UploadEndToEnd(t *testing.T) {
	store := newLocalStore(t)
	cfg := config.CKEditorConfig{
		UploadPath:    "uploads",
		UploadURL:     "/media/",
		ImageBackend:  config.ImageBackendDraw,
		ThumbnailSize: 75,
	}
	svc := NewService(cfg, store)
	ctx := context.Background()
	data := encodePNG(t, stripes(120, 90))

	asset, err := svc.Upload(ctx, UploadInput{
		Name:   "café photo.png",
		Reader: bytes.NewReader(data),
		Size:   int64(len(data)),
		Now:    testDay,
	})
	require.NoError(t, err)
	require.Equal(t, "uploads/2024/03/05/cafe-photo.png", asset.Path)
	require.Equal(t, "/media/2024/03/05/cafe-photo.png", asset.URL)
	require.Equal(t, model.AssetKindImage, asset.Kind)
	require.Equal(t, "uploads/2024/03/05/cafe-photo_thumb.png", asset.ThumbPath)

	rc, err := store.Open(ctx, asset.ThumbPath)
	require.NoError(t, err)
	defer rc.Close()
	cfgImg, _, err := image.DecodeConfig(rc)
	require.NoError(t, err)
	require.Equal(t, 75, cfgImg.Width)
	require.Equal(t, 75, cfgImg.Height)

	// same name again lands beside the first one
	again, err := svc.Upload(ctx, UploadInput{
		Name:   "café photo.png",
		Reader: bytes.NewReader(data),
		Size:   int64(len(data)),
		Now:    testDay,
	})
	require.NoError(t, err)
	require.Equal(t, "uploads/2024/03/05/cafe-photo_.png", again.Path)
}

func TestService_UploadNonImage(t *testing.T) {
	store := newMemStore()
	cfg := config.CKEditorConfig{UploadPath: "uploads", ImageBackend: config.ImageBackendDraw}
	svc := NewService(cfg, store)

	asset, err := svc.Upload(context.Background(), UploadInput{
		Name:      "Report.PDF",
		Reader:    strings.NewReader("%PDF-1.4"),
		Size:      8,
		Principal: &model.Principal{Username: "alice"},
		Now:       testDay,
	})
	require.NoError(t, err)
	require.Equal(t, "uploads/2024/03/05/report.pdf", asset.Path)
	require.Equal(t, model.AssetKindOther, asset.Kind)
	require.Empty(t, asset.ThumbPath)
	require.Equal(t, "/mem/uploads/2024/03/05/report.pdf", asset.URL)
}

func TestService_UploadRejections(t *testing.T) {
	off := false
	cases := []struct {
		name string
		cfg  config.CKEditorConfig
		in   UploadInput
		want error
	}{
		{
			name: "missing reader",
			cfg:  config.CKEditorConfig{UploadPath: "uploads"},
			in:   UploadInput{Name: "a.png"},
			want: appErr.ErrInvalidInput,
		},
		{
			name: "too large",
			cfg:  config.CKEditorConfig{UploadPath: "uploads", MaxUploadSize: 4},
			in:   UploadInput{Name: "a.txt", Reader: strings.NewReader("12345"), Size: 5},
			want: appErr.ErrTooLarge,
		},
		{
			name: "broken image with thumbnails on",
			cfg:  config.CKEditorConfig{UploadPath: "uploads", ImageBackend: config.ImageBackendDraw},
			in:   UploadInput{Name: "a.png", Reader: strings.NewReader("nope"), Size: 4},
			want: appErr.ErrUnsupportedFormat,
		},
		{
			name: "non image disallowed",
			cfg:  config.CKEditorConfig{UploadPath: "uploads", AllowNonImageFiles: &off},
			in:   UploadInput{Name: "a.txt", Reader: strings.NewReader("text"), Size: 4},
			want: appErr.ErrUnsupportedFormat,
		},
		{
			name: "empty name after slug",
			cfg:  config.CKEditorConfig{UploadPath: "uploads"},
			in:   UploadInput{Name: "  ", Reader: strings.NewReader("x"), Size: 1},
			want: appErr.ErrInvalidInput,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemStore()
			_, err := NewService(tc.cfg, store).Upload(context.Background(), tc.in)
			require.ErrorIs(t, err, tc.want)
			require.Empty(t, store.keys())
		})
	}
}

func TestService_UploadDiscardsAssetWhenThumbnailFails(t *testing.T) {
	cfg := config.CKEditorConfig{UploadPath: "uploads", ImageBackend: config.ImageBackendDraw}
	full := encodePNG(t, stripes(120, 90))
	truncated := full[:len(full)/2]

	store := newMemStore()
	_, err := NewService(cfg, store).Upload(context.Background(), UploadInput{
		Name:   "a.png",
		Reader: bytes.NewReader(truncated),
		Size:   int64(len(truncated)),
		Now:    testDay,
	})
	require.ErrorIs(t, err, appErr.ErrUnsupportedFormat)
	require.Empty(t, store.keys())
	require.Equal(t, []string{"uploads/2024/03/05/a.png"}, store.deleted)

	store = newMemStore()
	store.thumbSaveErr = errBoom
	_, err = NewService(cfg, store).Upload(context.Background(), UploadInput{
		Name:   "a.png",
		Reader: bytes.NewReader(full),
		Size:   int64(len(full)),
		Now:    testDay,
	})
	require.ErrorIs(t, err, appErr.ErrStorageUnavailable)
	require.Empty(t, store.keys())
}

func TestService_UploadRejectsHugeDimensions(t *testing.T) {
	store := newMemStore()
	cfg := config.CKEditorConfig{UploadPath: "uploads", ImageBackend: config.ImageBackendDraw}
	huge := pngHeader(60000, 60000)
	_, err := NewService(cfg, store).Upload(context.Background(), UploadInput{
		Name:   "bomb.png",
		Reader: bytes.NewReader(huge),
		Size:   int64(len(huge)),
		Now:    testDay,
	})
	require.ErrorIs(t, err, appErr.ErrUnsupportedFormat)
	require.Empty(t, store.keys())
	require.Empty(t, store.deleted)
}

func TestService_UploadStorageFailure(t *testing.T) {
	store := newMemStore()
	store.saveErr = errBoom
	svc := NewService(config.CKEditorConfig{UploadPath: "uploads"}, store)
	_, err := svc.Upload(context.Background(), UploadInput{Name: "a.txt", Reader: strings.NewReader("x"), Size: 1})
	require.ErrorIs(t, err, appErr.ErrStorageUnavailable)
}

func TestService_Backfill(t *testing.T) {
	store := newMemStore()
	store.put("uploads/2024/a.png", encodePNG(t, stripes(20, 20)))
	store.put("uploads/2024/b.png", encodePNG(t, stripes(20, 20)))
	store.put("uploads/2024/b_thumb.png", []byte("existing"))
	store.put("uploads/2024/broken.png", []byte("broken"))
	store.put("uploads/2024/huge.png", pngHeader(60000, 60000))
	store.put("uploads/2024/doc.pdf", []byte("%PDF"))

	svc := NewService(config.CKEditorConfig{UploadPath: "uploads", ImageBackend: config.ImageBackendDraw}, store)
	created, err := svc.Backfill(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, created)
	require.Contains(t, store.keys(), "uploads/2024/a_thumb.png")

	created, err = svc.Backfill(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, created)

	disabled := NewService(config.CKEditorConfig{UploadPath: "uploads"}, store)
	created, err = disabled.Backfill(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, created)
}
