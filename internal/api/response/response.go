package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/docqa/internal/domain"
	"go.uber.org/zap"
)

// Error kinds reported in the "error" field
const (
	KindInvalidRequest      = "invalid_request"
	KindMissingCredential   = "missing_credential"
	KindUnknownSession      = "unknown_session"
	KindUnsupportedFormat   = "unsupported_format"
	KindInvalidDocument     = "invalid_document"
	KindProviderUnavailable = "provider_unavailable"
	KindPipelineFailure     = "pipeline_failure"
)

// Classify maps err to an HTTP status and error kind
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, KindInvalidRequest
	case errors.Is(err, domain.ErrMissingCredential):
		return http.StatusBadRequest, KindMissingCredential
	case errors.Is(err, domain.ErrUnknownSession):
		return http.StatusNotFound, KindUnknownSession
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, KindUnsupportedFormat
	case errors.Is(err, domain.ErrEmptyDocument), errors.Is(err, domain.ErrInvalidDocument):
		return http.StatusUnprocessableEntity, KindInvalidDocument
	case errors.Is(err, domain.ErrProviderUnavailable):
		return http.StatusBadGateway, KindProviderUnavailable
	default:
		return http.StatusInternalServerError, KindPipelineFailure
	}
}

// Error writes the error body for err and aborts the request
func Error(c *gin.Context, logger *zap.Logger, err error) {
	status, kind := Classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("kind", kind),
			zap.Error(err),
		)
	} else {
		logger.Info("Request rejected",
			zap.String("path", c.FullPath()),
			zap.String("kind", kind),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"status":  "error",
		"error":   kind,
		"message": err.Error(),
	})
}
