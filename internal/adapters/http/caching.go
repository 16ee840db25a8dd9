package http

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// cachePolicy returns the default Cache-Control value for a GET path.
func cachePolicy(path string, authenticated bool) string {
	switch {
	case path == "/v1/health" || path == "/v1/ready":
		return "no-cache"
	case path == "/metrics" || path == "/graphql":
		return "no-cache"
	case authenticated:
		// Owners see their own pending listings.
		return "private, max-age=0"
	case strings.HasPrefix(path, "/v1/geocode"):
		return "public, max-age=1800" // matches the resolver detail TTL
	case strings.HasPrefix(path, "/v1/places/autocomplete"):
		return "public, max-age=300"
	case strings.HasPrefix(path, "/v1/shops/search"):
		return "public, max-age=60"
	case strings.HasPrefix(path, "/v1/shops/"):
		return "public, max-age=120"
	case strings.HasPrefix(path, "/v1/slugs"):
		return "public, max-age=86400"
	case strings.HasPrefix(path, "/v1/"):
		return "public, max-age=60"
	}
	return ""
}

// CachingMiddleware sets Cache-Control on successful GET responses the
// handler left alone, then tags them with a weak ETag and answers 304 when
// the client already holds the body.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := c.Next(); err != nil {
			return err
		}
		if c.Method() != fiber.MethodGet || c.Response().StatusCode() != fiber.StatusOK {
			return nil
		}

		if len(c.Response().Header.Peek(fiber.HeaderCacheControl)) == 0 {
			if ttl := cachePolicy(c.Path(), c.Get(fiber.HeaderAuthorization) != ""); ttl != "" {
				c.Set(fiber.HeaderCacheControl, ttl)
			}
		}

		body := c.Response().Body()
		if len(body) == 0 {
			return nil
		}
		h := sha256.Sum256(body)
		etag := `W/"` + hex.EncodeToString(h[:8]) + `"`
		c.Set(fiber.HeaderETag, etag)

		if c.Get(fiber.HeaderIfNoneMatch) == etag {
			c.Status(fiber.StatusNotModified)
			c.Response().ResetBody()
		}
		return nil
	}
}
