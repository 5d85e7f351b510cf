package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ckupload/internal/middleware"
	"github.com/xxxsen/ckupload/internal/model"
	"github.com/xxxsen/ckupload/internal/pkg/errcode"
	appErr "github.com/xxxsen/ckupload/internal/pkg/errors"
	"github.com/xxxsen/ckupload/internal/pkg/response"
)

func getPrincipal(c *gin.Context) *model.Principal {
	return middleware.GetPrincipal(c)
}

func logRequestError(c *gin.Context, err error) {
	requestID, _ := c.Get(middleware.ContextRequestIDKey)
	userID, _ := c.Get(middleware.ContextUserIDKey)
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Any("user_id", userID),
		zap.Error(err),
	)
}

// handleError answers JSON endpoints with the numeric error envelope.
func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logRequestError(c, err)
	switch {
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, errcode.ErrUnauthorized, "unauthorized")
	case errors.Is(err, appErr.ErrForbidden):
		response.Error(c, errcode.ErrForbidden, "forbidden")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrInvalidInput), errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, appErr.ErrUnsupportedFormat):
		response.Error(c, errcode.ErrUnsupportedFormat, "unsupported format")
	case errors.Is(err, appErr.ErrStorageUnavailable):
		response.Error(c, errcode.ErrStorageUnavailable, "storage unavailable")
	case errors.Is(err, appErr.ErrIntegrationUnavailable):
		response.Error(c, errcode.ErrIntegrationUnavailable, "integration unavailable")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}

// hardFailure is used by the script endpoints for errors the editor cannot
// recover from. Those surface as a real HTTP error.
func hardFailure(c *gin.Context, err error) {
	logRequestError(c, err)
	status := http.StatusInternalServerError
	message := "upload failed"
	if errors.Is(err, appErr.ErrIntegrationUnavailable) {
		message = "file browser integration is not configured"
	}
	c.String(status, message)
}
