package httpgin

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zeebo/blake3"
)

// etagOf derives a weak validator from the response body.
func etagOf(body []byte) string {
	sum := blake3.Sum256(body)
	return `W/"` + hex.EncodeToString(sum[:16]) + `"`
}

// matchesETag applies the weak comparison of If-None-Match, which may list
// several validators or "*".
func matchesETag(header, tag string) bool {
	if header == "" {
		return false
	}
	opaque := strings.TrimPrefix(tag, "W/")
	for _, cand := range strings.Split(header, ",") {
		cand = strings.TrimSpace(cand)
		if cand == "*" || strings.TrimPrefix(cand, "W/") == opaque {
			return true
		}
	}
	return false
}

// writeCachedJSON writes v with an ETag and Cache-Control. A matching
// If-None-Match yields 304 without a body.
func writeCachedJSON(c *gin.Context, status int, v any, cacheControl string) {
	b, err := json.Marshal(v)
	if err != nil {
		respondErr(c, err)
		return
	}

	tag := etagOf(b)
	c.Header("ETag", tag)
	c.Header("Cache-Control", cacheControl)

	if matchesETag(c.GetHeader("If-None-Match"), tag) {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(status, "application/json; charset=utf-8", b)
}
