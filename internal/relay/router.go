package relay

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ytget/ytlinks/catalog"
	"github.com/ytget/ytlinks/errs"
	"github.com/ytget/ytlinks/internal/logger"
	"github.com/ytget/ytlinks/types"
)

// Resolver produces the catalog for a video id or URL.
type Resolver interface {
	Resolve(ctx context.Context, input string) (*catalog.Catalog, error)
}

// statusFor maps a resolution error to the HTTP status returned to clients.
func statusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.KindInvalidInput:
		return http.StatusBadRequest
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindUnplayable:
		return http.StatusForbidden
	case errs.KindRateLimited, errs.KindCaptchaChallenge:
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{
		"error": err.Error(),
		"kind":  errs.KindOf(err).String(),
	})
}

// NewRouter builds the HTTP API:
//
//	GET /healthz
//	GET /links/:id                  resolved catalog as JSON
//	GET /stream/:id?itag=N          relayed stream bytes
//	GET /stream/:id?format=best     relayed stream chosen by selector
func NewRouter(res Resolver, s *Streamer) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	started := time.Now()
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(started).Round(time.Second).String(),
		})
	})

	router.GET("/links/:id", func(c *gin.Context) {
		cat, err := res.Resolve(c.Request.Context(), c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, cat)
	})

	router.GET("/stream/:id", func(c *gin.Context) {
		itag := -1
		if v := c.Query("itag"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "itag must be a number"})
				return
			}
			itag = n
		}

		cat, err := res.Resolve(c.Request.Context(), c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}

		var (
			f  types.StreamFormat
			ok bool
		)
		if itag >= 0 {
			f, ok = cat.ByItag(itag)
		} else {
			f, ok = cat.Select(c.Query("format"), c.Query("ext"))
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no matching stream"})
			return
		}
		if err := s.Stream(c.Writer, c.Request, f.URL); err != nil {
			_ = c.Error(err)
		}
	})

	return router
}

// requestLogger logs one line per request through the relay component.
func requestLogger() gin.HandlerFunc {
	log := logger.WithComponent(logger.ComponentRelay)
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := map[string]interface{}{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).String(),
		}
		if len(c.Errors) > 0 {
			fields["error"] = c.Errors.String()
			log.Warn("request failed", fields)
			return
		}
		log.Info("request", fields)
	}
}
