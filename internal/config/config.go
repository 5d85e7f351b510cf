package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/xxxsen/common/logger"
)

const (
	defaultUploadPath    = "uploads"
	defaultThumbnailSize = 75
	defaultMaxUpload     = 20 * 1024 * 1024
	defaultMaxPixels     = 50_000_000

	ImageBackendDraw = "draw"
)

type Config struct {
	Port          int               `json:"port"`
	JWTSecret     string            `json:"jwt_secret"`
	JWTTTLHours   int               `json:"jwt_ttl_hours"`
	LogConfig     logger.LogConfig  `json:"log_config"`
	CORSAllowlist []string          `json:"cors_allowlist"`
	FileStore     FileStoreConfig   `json:"file_store"`
	CKEditor      CKEditorConfig    `json:"ckeditor"`
	FileBrowser   FileBrowserConfig `json:"file_browser"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type CKEditorConfig struct {
	// UploadPath is the store-relative root every upload lands under.
	UploadPath     string `json:"upload_path"`
	RestrictByUser bool   `json:"restrict_by_user"`
	// SlugifyFilename defaults to true when omitted.
	SlugifyFilename *bool `json:"slugify_filename"`
	// UploadURL replaces UploadPath when building public URLs. When empty the
	// MediaRoot/MediaURL pair is used instead.
	UploadURL string `json:"upload_url"`
	MediaRoot string `json:"media_root"`
	MediaURL  string `json:"media_url"`
	// ImageBackend enables thumbnails when set to "draw".
	ImageBackend          string `json:"image_backend"`
	ThumbnailSize         int    `json:"thumbnail_size"`
	AllowNonImageFiles    *bool  `json:"allow_nonimage_files"`
	MaxUploadSize         int64  `json:"max_upload_size"`
	// MaxImagePixels caps width*height of images that get decoded.
	MaxImagePixels        int64  `json:"max_image_pixels"`
	UploadRateLimitMs     int    `json:"upload_rate_limit_ms"`
	ThumbnailBackfillCron string `json:"thumbnail_backfill_cron"`
}

type FileBrowserConfig struct {
	Enabled   bool   `json:"enabled"`
	Directory string `json:"directory"`
}

func (c CKEditorConfig) ShouldSlugify() bool {
	return c.SlugifyFilename == nil || *c.SlugifyFilename
}

func (c CKEditorConfig) AllowNonImages() bool {
	return c.AllowNonImageFiles == nil || *c.AllowNonImageFiles
}

func (c CKEditorConfig) ThumbnailEnabled() bool {
	return c.ImageBackend != ""
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyEnv(&cfg)
	if err := normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func normalize(cfg *Config) error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if cfg.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	switch cfg.FileStore.Type {
	case "local", "s3", "minio":
	default:
		return fmt.Errorf("file_store.type must be local, s3 or minio")
	}
	if err := cfg.CKEditor.normalize(); err != nil {
		return err
	}
	cfg.FileBrowser.Directory = strings.Trim(cfg.FileBrowser.Directory, "/")
	if cfg.FileBrowser.Directory == "" {
		cfg.FileBrowser.Directory = cfg.CKEditor.UploadPath + "/filebrowser"
	}
	return nil
}

func (c *CKEditorConfig) normalize() error {
	c.UploadPath = strings.Trim(c.UploadPath, "/")
	if c.UploadPath == "" {
		c.UploadPath = defaultUploadPath
	}
	if c.ThumbnailSize == 0 {
		c.ThumbnailSize = defaultThumbnailSize
	}
	if c.ThumbnailSize < 0 {
		return fmt.Errorf("ckeditor.thumbnail_size must be positive")
	}
	if c.MaxUploadSize == 0 {
		c.MaxUploadSize = defaultMaxUpload
	}
	if c.MaxImagePixels == 0 {
		c.MaxImagePixels = defaultMaxPixels
	}
	if c.MaxImagePixels < 0 {
		return fmt.Errorf("ckeditor.max_image_pixels must be positive")
	}
	switch c.ImageBackend {
	case "", ImageBackendDraw:
	default:
		return fmt.Errorf("ckeditor.image_backend must be empty or %q", ImageBackendDraw)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("CKUPLOAD_JWT_SECRET"); ok && v != "" {
		cfg.JWTSecret = v
	}
	data, ok := cfg.FileStore.Data.(map[string]interface{})
	if !ok {
		return
	}
	switch cfg.FileStore.Type {
	case "s3":
		if v, ok := os.LookupEnv("CKUPLOAD_S3_SECRET_KEY"); ok && v != "" {
			data["secret_key"] = v
		}
	case "minio":
		if v, ok := os.LookupEnv("CKUPLOAD_MINIO_SECRET_KEY"); ok && v != "" {
			data["secret_key"] = v
		}
	}
}
