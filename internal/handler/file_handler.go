package handler

import (
	"errors"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ckupload/internal/filestore"
	"github.com/xxxsen/ckupload/internal/upload"
)

// FileHandler serves stored uploads for the local backend. Object stores
// hand out their own public URLs.
type FileHandler struct {
	store filestore.Store
}

func NewFileHandler(store filestore.Store) *FileHandler {
	return &FileHandler{store: store}
}

func (h *FileHandler) Get(c *gin.Context) {
	if h.store.Type() != "local" {
		c.Status(http.StatusNotFound)
		return
	}
	key, err := filestore.CleanKey(c.Param("path"))
	if err != nil || key == "" {
		c.Status(http.StatusBadRequest)
		return
	}
	file, err := h.store.Open(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.Status(http.StatusNotFound)
			return
		}
		logRequestError(c, err)
		c.Status(http.StatusInternalServerError)
		return
	}
	defer file.Close()
	if info, ok := file.(interface{ Stat() (fs.FileInfo, error) }); ok {
		if st, err := info.Stat(); err == nil && st.IsDir() {
			c.Status(http.StatusNotFound)
			return
		}
	}
	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Content-Security-Policy", "sandbox")
	// only raster images render inline; html, svg and the rest download
	if !upload.IsImage(key) {
		c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(key)}))
	}
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}
