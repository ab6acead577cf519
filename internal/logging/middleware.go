package logging

import (
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const RequestIDHeader = "X-Request-Id"

type Sampler struct {
	fn       func() zerolog.Sampler
	samplers map[string]zerolog.Sampler
	mu       sync.Mutex
}

func NewSampler(fn func() zerolog.Sampler) *Sampler {
	return &Sampler{
		fn:       fn,
		samplers: make(map[string]zerolog.Sampler),
	}
}

func (c *Sampler) Get(fields ...string) zerolog.Sampler {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := strings.Join(fields, "-")
	sampler, ok := c.samplers[key]
	if !ok {
		sampler = c.fn()
		c.samplers[key] = sampler
	}

	return sampler
}

// Middleware logs one line per request. Successful requests to the same route
// are sampled; failed requests are always logged.
func Middleware(enableSampling bool) gin.HandlerFunc {
	sampler := NewSampler(func() zerolog.Sampler {
		return &zerolog.BurstSampler{
			Burst:  1,
			Period: 7 * time.Second,
		}
	})

	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set("requestID", requestID)
		c.Header(RequestIDHeader, requestID)

		log := L.With().
			Str("requestID", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("remoteAddr", c.Request.RemoteAddr).
			Str("userAgent", c.Request.UserAgent()).
			Int64("contentLength", c.Request.ContentLength).
			Logger()

		begin := time.Now()

		c.Next()

		status := c.Writer.Status()

		level := zerolog.InfoLevel
		switch {
		case status >= 500 || len(c.Errors) > 0:
			level = zerolog.ErrorLevel
		case status >= 400:
			level = zerolog.WarnLevel
		}

		errs := make([]error, 0, len(c.Errors))
		for _, err := range c.Errors {
			errs = append(errs, err.Err)
		}

		if enableSampling && level <= zerolog.InfoLevel {
			log = log.Sample(sampler.Get(c.Request.Method, c.FullPath()))
		}

		log.WithLevel(level).
			Errs("errors", errs).
			Dur("elapsed", time.Since(begin)).
			Int("statusCode", status).
			Int("size", c.Writer.Size()).
			Msg("")
	}
}
