package upload

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"path"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/image/draw"

	// Register decoders for image formats.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/xxxsen/ckupload/internal/config"
	"github.com/xxxsen/ckupload/internal/filestore"
	appErr "github.com/xxxsen/ckupload/internal/pkg/errors"
)

const (
	jpegQuality      = 85
	defaultMaxPixels = 50_000_000
)

// Thumbnailer derives square, center-cropped thumbnails next to stored images.
type Thumbnailer struct {
	store     filestore.Store
	size      int
	maxPixels int64
	enabled   bool
}

func NewThumbnailer(cfg config.CKEditorConfig, store filestore.Store) *Thumbnailer {
	size := cfg.ThumbnailSize
	if size <= 0 {
		size = 75
	}
	maxPixels := cfg.MaxImagePixels
	if maxPixels <= 0 {
		maxPixels = defaultMaxPixels
	}
	return &Thumbnailer{store: store, size: size, maxPixels: maxPixels, enabled: cfg.ThumbnailEnabled()}
}

func (t *Thumbnailer) Enabled() bool {
	return t.enabled
}

func (t *Thumbnailer) ShouldCreate(p string) bool {
	return t.enabled && IsImage(p) && !IsThumbName(p)
}

// Verify checks that r holds a decodable image header within the pixel limit.
func (t *Thumbnailer) Verify(r io.Reader) error {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return fmt.Errorf("%w: %w", appErr.ErrUnsupportedFormat, err)
	}
	return t.checkBounds(cfg)
}

// checkBounds runs before every full decode.
func (t *Thumbnailer) checkBounds(cfg image.Config) error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: empty image %dx%d", appErr.ErrUnsupportedFormat, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > t.maxPixels {
		return fmt.Errorf("%w: image %dx%d exceeds %d pixels", appErr.ErrUnsupportedFormat, cfg.Width, cfg.Height, t.maxPixels)
	}
	return nil
}

// Generate writes the thumbnail of assetPath and returns its key.
func (t *Thumbnailer) Generate(ctx context.Context, assetPath string) (string, error) {
	encode, ok := encoderFor(assetPath)
	if !ok {
		return "", fmt.Errorf("%w: no thumbnail encoder for %q", appErr.ErrUnsupportedFormat, path.Ext(assetPath))
	}
	rc, err := t.store.Open(ctx, assetPath)
	if err != nil {
		return "", fmt.Errorf("%w: open %q: %w", appErr.ErrStorageUnavailable, assetPath, err)
	}
	defer rc.Close()
	header := &bytes.Buffer{}
	cfg, _, err := image.DecodeConfig(io.TeeReader(rc, header))
	if err != nil {
		return "", fmt.Errorf("%w: decode %q: %w", appErr.ErrUnsupportedFormat, assetPath, err)
	}
	if err := t.checkBounds(cfg); err != nil {
		return "", fmt.Errorf("decode %q: %w", assetPath, err)
	}
	src, _, err := image.Decode(io.MultiReader(header, rc))
	if err != nil {
		return "", fmt.Errorf("%w: decode %q: %w", appErr.ErrUnsupportedFormat, assetPath, err)
	}

	dst := fit(normalize(src), t.size, t.size)
	buf := &bytes.Buffer{}
	if err := encode(buf, dst); err != nil {
		return "", fmt.Errorf("%w: encode thumbnail: %w", appErr.ErrUnsupportedFormat, err)
	}
	thumbPath := ThumbName(assetPath)
	saved, err := t.store.Save(ctx, thumbPath, buf, int64(buf.Len()))
	if err != nil {
		return "", fmt.Errorf("%w: save %q: %w", appErr.ErrStorageUnavailable, thumbPath, err)
	}
	logutil.GetLogger(ctx).Debug("thumbnail created",
		zap.String("asset", assetPath),
		zap.String("thumb", saved),
		zap.Int("size", t.size),
	)
	return saved, nil
}

// normalize keeps grayscale images gray and converts every other colour
// model (paletted, CMYK, 16 bit, YCbCr) to RGBA.
func normalize(src image.Image) image.Image {
	switch src.(type) {
	case *image.Gray, *image.RGBA:
		return src
	case *image.Gray16:
		dst := image.NewGray(src.Bounds())
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
		return dst
	}
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst
}

// fit scales src to cover a w x h box and crops the overflow around the center.
func fit(src image.Image, w, h int) image.Image {
	b := src.Bounds()
	sw, sh := b.Dx(), b.Dy()
	var crop image.Rectangle
	if sw*h > sh*w {
		cw := max(sh*w/h, 1)
		x0 := b.Min.X + (sw-cw)/2
		crop = image.Rect(x0, b.Min.Y, x0+cw, b.Max.Y)
	} else {
		ch := max(sw*h/w, 1)
		y0 := b.Min.Y + (sh-ch)/2
		crop = image.Rect(b.Min.X, y0, b.Max.X, y0+ch)
	}

	var dst draw.Image
	if _, ok := src.(*image.Gray); ok {
		dst = image.NewGray(image.Rect(0, 0, w, h))
	} else {
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)
	return dst
}

func encoderFor(p string) (func(io.Writer, image.Image) error, bool) {
	switch strings.ToLower(path.Ext(p)) {
	case ".jpg", ".jpeg":
		return func(w io.Writer, img image.Image) error {
			return jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
		}, true
	case ".png":
		return png.Encode, true
	case ".gif":
		return func(w io.Writer, img image.Image) error {
			return gif.Encode(w, img, nil)
		}, true
	default:
		return nil, false
	}
}
