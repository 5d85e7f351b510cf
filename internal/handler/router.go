package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ckupload/internal/middleware"
)

type RouterDeps struct {
	CKEditor        *CKEditorHandler
	Files           *FileHandler
	JWTSecret       []byte
	UploadRateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	uploadLimit := middleware.RateLimit(deps.UploadRateLimit)
	authGroup.POST("/upload", uploadLimit, deps.CKEditor.Upload)
	authGroup.POST("/fb_upload", uploadLimit, deps.CKEditor.FileBrowserUpload)
	authGroup.GET("/browse", deps.CKEditor.Browse)

	if deps.Files != nil {
		api.GET("/files/*path", deps.Files.Get)
	}
}
