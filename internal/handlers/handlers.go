package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/braincheck/internal/preprocess"
	"github.com/example/braincheck/internal/screening"
)

// DefaultMaxUploadSize caps a single scan upload at 10MB unless configured
// otherwise.
const DefaultMaxUploadSize = 10 << 20

// Screener is the slice of the screening service the HTTP layer needs.
type Screener interface {
	Screen(ctx context.Context, imageBytes []byte) (*screening.Outcome, error)
}

// RegisterRoutes wires the HTTP handlers to the Gin router. maxUpload is the
// upload cap in bytes; non-positive values fall back to the default.
func RegisterRoutes(router *gin.Engine, svc Screener, logger *zap.Logger, maxUpload int64) {
	log := logger.Named("http")
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadSize
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexPage))
	})

	router.POST("/predict", func(c *gin.Context) {
		file, err := c.FormFile("image")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
			return
		}

		if file.Size > maxUpload {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds the upload limit"})
			return
		}

		if declared := file.Header.Get("Content-Type"); declared != "" && !strings.HasPrefix(declared, "image/") {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "only image uploads are supported"})
			return
		}

		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open image"})
			return
		}
		defer src.Close()

		data, err := io.ReadAll(src)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
			return
		}

		outcome, err := svc.Screen(c.Request.Context(), data)
		if err != nil {
			if errors.Is(err, preprocess.ErrInvalidImage) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "could not process image: unsupported or corrupted file"})
				return
			}
			log.Error("screening failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not process image"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"request_id": outcome.RequestID,
			"label":      outcome.Label,
			"confidence": outcome.Confidence,
			"scores":     outcome.Scores,
			"cached":     outcome.Cached,
		})
	})
}
