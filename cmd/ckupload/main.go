package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/ckupload/internal/config"
	"github.com/xxxsen/ckupload/internal/filebrowser"
	"github.com/xxxsen/ckupload/internal/filestore"
	"github.com/xxxsen/ckupload/internal/handler"
	"github.com/xxxsen/ckupload/internal/job"
	"github.com/xxxsen/ckupload/internal/middleware"
	"github.com/xxxsen/ckupload/internal/pkg/jwt"
	"github.com/xxxsen/ckupload/internal/schedule"
	"github.com/xxxsen/ckupload/internal/upload"
)

func main() {
	var (
		configPath string
		tokenUser  string
		superuser  bool
	)

	rootCmd := &cobra.Command{
		Use:   "ckupload",
		Short: "CKEditor upload and browse server",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the upload server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "issue an editor session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if tokenUser == "" {
				return fmt.Errorf("--user is required")
			}
			token, err := jwt.GenerateToken(tokenUser, superuser, []byte(cfg.JWTSecret), time.Hour*time.Duration(cfg.JWTTTLHours))
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "username carried by the token")
	tokenCmd.Flags().BoolVar(&superuser, "superuser", false, "grant unrestricted browsing")

	thumbsCmd := &cobra.Command{
		Use:   "thumbnails",
		Short: "generate missing thumbnails for stored images",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if !cfg.CKEditor.ThumbnailEnabled() {
				return fmt.Errorf("ckeditor.image_backend is not configured")
			}
			store, err := filestore.New(cfg.FileStore)
			if err != nil {
				return fmt.Errorf("init file store: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			created, err := upload.NewService(cfg.CKEditor, store).Backfill(ctx)
			logutil.GetLogger(ctx).Info("thumbnail backfill done", zap.Int("created", created))
			return err
		},
	}

	rootCmd.AddCommand(runCmd, tokenCmd, thumbsCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}

func runServer(cfg *config.Config) error {
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", cfg.FileStore.Type),
		zap.String("upload_path", cfg.CKEditor.UploadPath),
		zap.Bool("thumbnails", cfg.CKEditor.ThumbnailEnabled()),
	)

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}
	uploads := upload.NewService(cfg.CKEditor, store)

	var browser filebrowser.Provider
	if cfg.FileBrowser.Enabled {
		browser = filebrowser.NewStoreProvider(store, cfg.FileBrowser.Directory, uploads.URLs().ToURL)
	}

	deps := handler.RouterDeps{
		CKEditor:        handler.NewCKEditorHandler(uploads, browser, cfg.CKEditor.MaxUploadSize),
		JWTSecret:       []byte(cfg.JWTSecret),
		UploadRateLimit: time.Duration(cfg.CKEditor.UploadRateLimitMs) * time.Millisecond,
	}
	if store.Type() == "local" {
		deps.Files = handler.NewFileHandler(store)
	}

	engine, err := webapi.NewEngine(
		"/ckeditor",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if spec := cfg.CKEditor.ThumbnailBackfillCron; spec != "" && cfg.CKEditor.ThumbnailEnabled() {
		backfill := job.NewThumbnailBackfillJob(uploads)
		scheduler := schedule.NewCronScheduler()
		if err := scheduler.AddJob(backfill, spec); err != nil {
			return fmt.Errorf("schedule thumbnail backfill: %w", err)
		}
		scheduler.Start(ctx)
		defer scheduler.Stop()
		go func() {
			_, _ = scheduler.Trigger(ctx, backfill.Name())
		}()
	}

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", addr))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
