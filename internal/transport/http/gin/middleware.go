package httpgin

import (
	"bytes"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kirinyoku/fairtix/internal/clock"
	"github.com/kirinyoku/fairtix/internal/domain"
	"github.com/kirinyoku/fairtix/internal/metrics"
	"github.com/kirinyoku/fairtix/internal/signature"
)

const (
	headerIdentity  = "X-Identity"
	headerTimestamp = "X-Timestamp"
	headerSignature = "X-Signature"
	ctxIdentity     = "identity"
)

const (
	codeUnsigned         = "unsigned_request"
	codeStale            = "stale_request"
	codeInvalidSignature = "invalid_signature"
	codeSignerMismatch   = "signer_mismatch"
)

func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}

		c.Writer.Header().Set("X-Request-ID", reqID)
		c.Set("request_id", reqID)

		c.Next()
	}
}

// Authenticator checks signed requests. Zero fields fall back to the
// Ed25519 verifier, the wall clock and DefaultMaxSkew.
type Authenticator struct {
	Verifier signature.Verifier
	Clock    clock.Clock
	MaxSkew  time.Duration
}

// DefaultMaxSkew bounds how far X-Timestamp may drift from the server clock.
const DefaultMaxSkew = 5 * time.Minute

const maxSignedBody = 1 << 20

// IdentityMiddleware authenticates the caller named in X-Identity. The
// request must carry X-Timestamp (unix seconds) and X-Signature, a hex
// signature envelope over signature.RequestDigest, and the recovered signer
// must be the claimed identity. Requests without X-Identity continue
// anonymously.
func IdentityMiddleware(auth Authenticator) gin.HandlerFunc {
	if auth.Verifier == nil {
		auth.Verifier = signature.Ed25519Verifier{}
	}
	if auth.Clock == nil {
		auth.Clock = clock.Real()
	}
	if auth.MaxSkew <= 0 {
		auth.MaxSkew = DefaultMaxSkew
	}

	return func(c *gin.Context) {
		raw := c.GetHeader(headerIdentity)
		if raw == "" {
			c.Next()
			return
		}

		id, err := domain.ParseIdentity(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
				Error: "invalid " + headerIdentity + " header",
				Code:  domain.ErrZeroIdentity.Code,
			})
			return
		}

		rawSig := c.GetHeader(headerSignature)
		rawTS := c.GetHeader(headerTimestamp)
		if rawSig == "" || rawTS == "" {
			unauthorized(c, codeUnsigned, headerSignature+" and "+headerTimestamp+" headers are required")
			return
		}

		ts, err := strconv.ParseInt(rawTS, 10, 64)
		if err != nil {
			unauthorized(c, codeStale, "invalid "+headerTimestamp+" header")
			return
		}
		if skew := auth.Clock.Now().Sub(time.Unix(ts, 0)); skew > auth.MaxSkew || skew < -auth.MaxSkew {
			unauthorized(c, codeStale, "request timestamp is outside the accepted window")
			return
		}

		envelope, err := hex.DecodeString(rawSig)
		if err != nil {
			unauthorized(c, codeInvalidSignature, "invalid "+headerSignature+" header")
			return
		}

		var body []byte
		if c.Request.Body != nil {
			body, err = io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxSignedBody))
			if err != nil {
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large"})
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		signer, err := auth.Verifier.RecoverSigner(
			signature.RequestDigest(c.Request.Method, c.Request.URL.RequestURI(), ts, body),
			envelope,
		)
		if err != nil {
			unauthorized(c, codeInvalidSignature, "request signature is invalid")
			return
		}
		if signer != id {
			unauthorized(c, codeSignerMismatch, "request was not signed by "+id.String())
			return
		}

		c.Set(ctxIdentity, id)
		c.Next()
	}
}

func unauthorized(c *gin.Context, code, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: msg, Code: code})
}

// RequireIdentityMiddleware rejects anonymous requests.
func RequireIdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := callerOf(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: headerIdentity + " header is required",
			})
			return
		}
		c.Next()
	}
}

func callerOf(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(ctxIdentity)
	if !ok {
		return "", false
	}
	id, ok := v.(domain.Identity)
	return id, ok
}

// MetricsMiddleware records request latency per route template and counts
// the domain rejections handlers attached to the context.
func MetricsMiddleware(rec *metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		rec.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))

		for _, e := range c.Errors.ByType(gin.ErrorTypePublic) {
			rec.Rejected(e.Err)
		}
	}
}

func CORS() gin.HandlerFunc {
	cfg := cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-Requested-With",
			"X-Request-ID",
			headerIdentity,
			headerTimestamp,
			headerSignature,
			"Idempotency-Key",
			"If-None-Match",
		},
		ExposeHeaders: []string{
			"X-Request-ID",
			"ETag",
			"Cache-Control",
			"Retry-After",
		},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	return cors.New(cfg)
}

func LoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery
		c.Next()

		latency := time.Since(start)
		if raw != "" {
			path = path + "?" + raw
		}

		status := c.Writer.Status()
		reqID, _ := c.Get("request_id")
		caller, _ := callerOf(c)

		attrs := []any{
			slog.Int("status", status),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("ip", c.ClientIP()),
			slog.String("ua", c.Request.UserAgent()),
			slog.Any("request_id", reqID),
			slog.String("identity", caller.String()),
			slog.Duration("latency", latency),
			slog.Int("bytes_out", c.Writer.Size()),
		}

		if rejected := c.Errors.ByType(gin.ErrorTypePublic).Last(); rejected != nil {
			attrs = append(attrs, slog.String("code", domain.CodeOf(rejected.Err)))
		}

		if internal := c.Errors.ByType(gin.ErrorTypePrivate); len(internal) > 0 {
			attrs = append(attrs, slog.String("error", internal.String()))
			logger.Error("http", slog.Group("http", attrs...))
			return
		}

		logger.Info("http", slog.Group("http", attrs...))
	}
}
