package http

import (
	"fmt"
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/localshop/internal/core/domain"
)

const callerKey = "caller"

// AuthMiddleware resolves the caller identity from an optional HS256 bearer
// token. Requests without a token act as an anonymous customer keyed by IP;
// a token that fails verification is rejected with 401.
func AuthMiddleware(secret string) fiber.Handler {
	key := []byte(secret)
	return func(c *fiber.Ctx) error {
		caller := domain.Caller{Role: domain.RoleCustomer, Key: "ip:" + c.IP()}

		header := c.Get(fiber.HeaderAuthorization)
		if header != "" {
			raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			if raw == header || raw == "" {
				return errUnauthorized(c, "authorization header must be a bearer token")
			}
			if len(key) == 0 {
				return errUnauthorized(c, "token authentication is not configured")
			}
			claimed, err := parseCaller(raw, key)
			if err != nil {
				return errUnauthorized(c, "invalid token")
			}
			caller = claimed
		}

		c.Locals(callerKey, caller)
		return c.Next()
	}
}

func parseCaller(raw string, key []byte) (domain.Caller, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return domain.Caller{}, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return domain.Caller{}, fmt.Errorf("invalid claims")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return domain.Caller{}, fmt.Errorf("missing sub claim")
	}
	role := domain.Role(strings.ToLower(fmt.Sprint(claims["role"])))
	switch role {
	case domain.RoleVendor, domain.RoleAdmin:
	default:
		role = domain.RoleCustomer
	}
	return domain.Caller{ID: sub, Role: role, Key: "user:" + sub}, nil
}

// callerFrom returns the identity set by AuthMiddleware.
func callerFrom(c *fiber.Ctx) domain.Caller {
	if caller, ok := c.Locals(callerKey).(domain.Caller); ok {
		return caller
	}
	return domain.Caller{Role: domain.RoleCustomer, Key: "ip:" + c.IP()}
}
