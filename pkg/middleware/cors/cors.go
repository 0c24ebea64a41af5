package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	allowMethods  = "GET, POST, PUT, OPTIONS"
	allowHeaders  = "Authorization, Content-Type, X-Request-ID"
	exposeHeaders = "X-Request-ID, Retry-After, Content-Disposition"
	maxAge        = "600"
)

// New returns the CORS middleware of the consultation API.
//
// With no configured origins every origin is allowed through a wildcard and
// credentials are never advertised; the API authenticates with bearer tokens.
// With a list, only listed origins are echoed back and preflights from other
// origins are refused.
func New(allowedOrigins []string) gin.HandlerFunc {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origin = normalize(origin)
		if origin != "" {
			origins[origin] = struct{}{}
		}
	}
	allowAll := len(origins) == 0

	return func(c *gin.Context) {
		header := c.Writer.Header()
		header.Add("Vary", "Origin")

		origin := c.GetHeader("Origin")
		allowed := allowAll
		if !allowAll && origin != "" {
			_, allowed = origins[normalize(origin)]
		}

		switch {
		case allowAll:
			header.Set("Access-Control-Allow-Origin", "*")
		case allowed:
			header.Set("Access-Control-Allow-Origin", origin)
			header.Set("Access-Control-Allow-Credentials", "true")
		}
		if allowed {
			header.Set("Access-Control-Expose-Headers", exposeHeaders)
		}

		if !isPreflight(c.Request) {
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		header.Set("Access-Control-Allow-Methods", allowMethods)
		header.Set("Access-Control-Allow-Headers", allowHeaders)
		header.Set("Access-Control-Max-Age", maxAge)
		c.AbortWithStatus(http.StatusNoContent)
	}
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
}

func normalize(origin string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
}
