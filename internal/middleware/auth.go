package middleware

import (
	"errors"

	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/recebimentosmart/billing-backend/internal/config"
	"github.com/recebimentosmart/billing-backend/internal/dto"
)

var (
	ErrNoToken    = errors.New("invalid token in context")
	ErrBadClaims  = errors.New("invalid claims")
	ErrMissingSub = errors.New("missing sub claim")
)

// JWTProtected verifies bearer tokens issued by the auth backend.
func JWTProtected(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtConfig(cfg, nil))
}

// AdminJWT is JWTProtected, skipped when a valid X-Admin-Token is sent.
func AdminJWT(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtConfig(cfg, func(c *fiber.Ctx) bool {
		return hasAdminToken(c, cfg)
	}))
}

func jwtConfig(cfg *config.Config, filter func(*fiber.Ctx) bool) jwtware.Config {
	return jwtware.Config{
		Filter:     filter,
		SigningKey: jwtware.SigningKey{Key: []byte(cfg.JWTSecret)},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error:   true,
				Message: "Unauthorized: invalid or expired token",
			})
		},
	}
}

func claims(c *fiber.Ctx) (jwt.MapClaims, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok || token == nil {
		return nil, ErrNoToken
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrBadClaims
	}
	return mc, nil
}

// UserID extracts the user UUID from the sub claim of the verified token.
func UserID(c *fiber.Ctx) (uuid.UUID, error) {
	mc, err := claims(c)
	if err != nil {
		return uuid.Nil, err
	}
	sub, ok := mc["sub"].(string)
	if !ok || sub == "" {
		return uuid.Nil, ErrMissingSub
	}
	return uuid.Parse(sub)
}
