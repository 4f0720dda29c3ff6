package middleware

import (
	"net/http"

	"pairchat/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorRecorder counts refused requests by error code.
type ErrorRecorder interface {
	RecordError(code string)
}

// ErrorHandlerMiddleware renders the last error attached with c.Error. An
// AppError keeps its code and status; anything else becomes a 500.
func ErrorHandlerMiddleware(logger *zap.SugaredLogger, recorder ErrorRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		appErr := errors.GetAppError(err)
		if appErr == nil {
			logger.Errorw("unhandled error",
				"error", err.Error(),
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)
			appErr = errors.NewInternalError("internal server error")
		} else if appErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Errorw("request failed",
				"code", appErr.Code,
				"message", appErr.Message,
				"path", c.Request.URL.Path,
				"context", appErr.Context,
			)
		} else {
			logger.Debugw("request refused",
				"code", appErr.Code,
				"message", appErr.Message,
				"path", c.Request.URL.Path,
			)
		}

		if recorder != nil {
			recorder.RecordError(string(appErr.Code))
		}
		c.JSON(appErr.HTTPStatus, errorBody(appErr))
	}
}

// RecoveryMiddleware turns a panic in a handler into a 500 response.
func RecoveryMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Errorw("panic recovered",
					"panic", rec,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					errorBody(errors.NewInternalError("internal server error")))
			}
		}()

		c.Next()
	}
}

// errorBody matches the payload of the websocket error frame.
func errorBody(appErr *errors.AppError) gin.H {
	body := gin.H{
		"code":    string(appErr.Code),
		"message": appErr.Message,
	}
	if len(appErr.Context) > 0 {
		body["details"] = appErr.Context
	}
	return body
}
