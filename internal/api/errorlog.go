package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"cafe-service/internal/models"
	"cafe-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorRecorder persists failed requests
type ErrorRecorder interface {
	CreateRequestError(ctx context.Context, rec *models.RequestError) error
}

// errorLogMiddleware recovers panics and records every request that ends
// with a 5xx status, with its query and body, into the request error log
func errorLogMiddleware(recorder ErrorRecorder) gin.HandlerFunc {
	logger := util.ComponentLogger("error_log")

	return func(c *gin.Context) {
		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		defer func() {
			rec := &models.RequestError{
				RequestMethod: c.Request.Method,
				Path:          c.Request.URL.Path,
				Query:         queryJSON(c),
				Data:          bodyJSON(body),
			}

			if r := recover(); r != nil {
				rec.ExceptionName = fmt.Sprintf("%T", r)
				rec.ExceptionValue = fmt.Sprint(r)
				rec.ExceptionTB = string(debug.Stack())
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
			} else if c.Writer.Status() >= http.StatusInternalServerError {
				if last := c.Errors.Last(); last != nil {
					rec.ExceptionName = fmt.Sprintf("%T", last.Err)
					rec.ExceptionValue = last.Err.Error()
					rec.ExceptionTB = c.Errors.String()
				} else {
					rec.ExceptionName = "HTTPError"
					rec.ExceptionValue = http.StatusText(c.Writer.Status())
				}
			} else {
				return
			}

			util.RequestErrorsTotal.WithLabelValues(rec.ExceptionName).Inc()

			ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), 2*time.Second)
			defer cancel()
			if err := recorder.CreateRequestError(ctx, rec); err != nil {
				logger.Error("Failed to record request error",
					zap.String("path", rec.Path),
					zap.Error(err))
			}
		}()

		c.Next()
	}
}

func queryJSON(c *gin.Context) []byte {
	data, err := json.Marshal(c.Request.URL.Query())
	if err != nil {
		return []byte("{}")
	}
	return data
}

// bodyJSON keeps JSON bodies as they are and wraps anything else as a string
func bodyJSON(body []byte) []byte {
	if len(bytes.TrimSpace(body)) == 0 {
		return []byte("{}")
	}
	if json.Valid(body) {
		return body
	}
	data, _ := json.Marshal(string(body))
	return data
}
