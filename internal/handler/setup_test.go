package handler

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/xxxsen/ckupload/internal/config"
	"github.com/xxxsen/ckupload/internal/filebrowser"
	"github.com/xxxsen/ckupload/internal/filestore"
	"github.com/xxxsen/ckupload/internal/middleware"
	"github.com/xxxsen/ckupload/internal/pkg/jwt"
	"github.com/xxxsen/ckupload/internal/upload"
)

var (
	testSecret = []byte("test-secret")
	testNow    = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
)

type testEnv struct {
	router http.Handler
	store  filestore.Store
}

type envOption func(*config.CKEditorConfig, *bool)

func withoutFileBrowser() envOption {
	return func(_ *config.CKEditorConfig, fb *bool) { *fb = false }
}

func withRestriction() envOption {
	return func(cfg *config.CKEditorConfig, _ *bool) { cfg.RestrictByUser = true }
}

func setupRouter(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := filestore.New(config.FileStoreConfig{
		Type: "local",
		Data: map[string]interface{}{"dir": t.TempDir()},
	})
	require.NoError(t, err)

	cfg := config.CKEditorConfig{
		UploadPath:    "uploads",
		ImageBackend:  config.ImageBackendDraw,
		ThumbnailSize: 8,
		MaxUploadSize: 1024 * 1024,
	}
	fbEnabled := true
	for _, opt := range opts {
		opt(&cfg, &fbEnabled)
	}
	svc := upload.NewService(cfg, store)
	var fb filebrowser.Provider
	if fbEnabled {
		fb = filebrowser.NewStoreProvider(store, "uploads/filebrowser", svc.URLs().ToURL)
	}
	ck := NewCKEditorHandler(svc, fb, cfg.MaxUploadSize)
	ck.now = func() time.Time { return testNow }

	deps := RouterDeps{
		CKEditor:  ck,
		Files:     NewFileHandler(store),
		JWTSecret: testSecret,
	}
	engine, err := webapi.NewEngine(
		"/ckeditor",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(middleware.RequestID()),
	)
	require.NoError(t, err)
	return &testEnv{router: engine, store: store}
}

func testToken(t *testing.T, user string, superuser bool) string {
	t.Helper()
	token, err := jwt.GenerateToken(user, superuser, testSecret, time.Hour)
	require.NoError(t, err)
	return token
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		part, err := mw.CreateFormFile(uploadField, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func (e *testEnv) do(t *testing.T, method, target, token, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if method == http.MethodPost {
		body, contentType := multipartBody(t, filename, content)
		req = httptest.NewRequest(method, target, body)
		req.Header.Set("Content-Type", contentType)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) exists(t *testing.T, key string) bool {
	t.Helper()
	ok, err := e.store.Exists(context.Background(), key)
	require.NoError(t, err)
	return ok
}
