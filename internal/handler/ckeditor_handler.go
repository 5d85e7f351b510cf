package handler

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"

	"github.com/xxxsen/ckupload/internal/filebrowser"
	"github.com/xxxsen/ckupload/internal/model"
	appErr "github.com/xxxsen/ckupload/internal/pkg/errors"
	"github.com/xxxsen/ckupload/internal/pkg/response"
	"github.com/xxxsen/ckupload/internal/upload"
)

const (
	uploadField  = "upload"
	funcNumQuery = "CKEditorFuncNum"
)

//go:embed templates/browse.html
var templatesFS embed.FS

var browseTemplate = template.Must(template.ParseFS(templatesFS, "templates/browse.html"))

type CKEditorHandler struct {
	uploads       *upload.Service
	fileBrowser   filebrowser.Provider
	maxUploadSize int64
	now           func() time.Time
}

// NewCKEditorHandler builds the editor endpoints. fileBrowser may be nil when
// the integration is not configured.
func NewCKEditorHandler(uploads *upload.Service, fileBrowser filebrowser.Provider, maxUploadSize int64) *CKEditorHandler {
	return &CKEditorHandler{
		uploads:       uploads,
		fileBrowser:   fileBrowser,
		maxUploadSize: maxUploadSize,
		now:           time.Now,
	}
}

type BrowseResponse struct {
	Files []model.BrowseFile `json:"files"`
}

// Upload stores the "upload" field and answers with the editor callback script.
func (h *CKEditorHandler) Upload(c *gin.Context) {
	funcNum, ok := requireFuncNum(c)
	if !ok {
		return
	}
	file, err := c.FormFile(uploadField)
	if err != nil {
		response.Script(c, alertScript(funcNum, "No file was uploaded"))
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Script(c, alertScript(funcNum, "Failed to read the uploaded file"))
		return
	}
	defer opened.Close()

	asset, err := h.uploads.Upload(c.Request.Context(), upload.UploadInput{
		Name:      file.Filename,
		Reader:    opened,
		Size:      file.Size,
		Principal: getPrincipal(c),
		Now:       h.now(),
	})
	if err != nil {
		if message, ok := h.validationMessage(err); ok {
			logRequestError(c, err)
			response.Script(c, alertScript(funcNum, message))
			return
		}
		hardFailure(c, err)
		return
	}
	response.Script(c, callbackScript(funcNum, asset.URL))
}

// Browse renders the picker dialog, or the raw listing with ?format=json.
func (h *CKEditorHandler) Browse(c *gin.Context) {
	files, err := h.uploads.Browse(c.Request.Context(), getPrincipal(c))
	if err != nil {
		handleError(c, err)
		return
	}
	if c.Query("format") == "json" {
		response.Success(c, BrowseResponse{Files: files})
		return
	}
	c.Render(http.StatusOK, render.HTML{
		Template: browseTemplate,
		Name:     "browse.html",
		Data: gin.H{
			"Files":   files,
			"FuncNum": c.Query(funcNumQuery),
		},
	})
}

// FileBrowserUpload hands the file to the file-browser integration. The
// target folder defaults to today's date.
func (h *CKEditorHandler) FileBrowserUpload(c *gin.Context) {
	if h.fileBrowser == nil {
		hardFailure(c, appErr.ErrIntegrationUnavailable)
		return
	}
	funcNum, ok := requireFuncNum(c)
	if !ok {
		return
	}
	folder := c.Query("folder")
	if folder == "" {
		folder = h.now().Format("2006/01/02")
	}
	file, err := c.FormFile(uploadField)
	if err != nil {
		c.String(http.StatusOK, "Error uploading file")
		return
	}
	opened, err := file.Open()
	if err != nil {
		c.String(http.StatusOK, "Error uploading file")
		return
	}
	defer opened.Close()

	obj, err := h.fileBrowser.Upload(c.Request.Context(), folder, filebrowser.File{
		Name:   file.Filename,
		Reader: opened,
		Size:   file.Size,
	})
	if err != nil {
		if appErr.IsInvalidInput(err) || errors.Is(err, filebrowser.ErrNotReported) {
			logRequestError(c, err)
			c.String(http.StatusOK, "Error uploading file")
			return
		}
		hardFailure(c, err)
		return
	}
	response.Script(c, callbackScript(funcNum, obj.URL))
}

func (h *CKEditorHandler) validationMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, appErr.ErrTooLarge):
		return "File too large (max " + formatUploadLimit(h.maxUploadSize) + ")", true
	case appErr.IsUnsupportedFormat(err):
		return "Invalid image", true
	case appErr.IsInvalidInput(err):
		return "Invalid file name", true
	default:
		return "", false
	}
}

func requireFuncNum(c *gin.Context) (string, bool) {
	funcNum := c.Query(funcNumQuery)
	if funcNum == "" {
		c.String(http.StatusBadRequest, funcNumQuery+" is required")
		return "", false
	}
	return funcNum, true
}
