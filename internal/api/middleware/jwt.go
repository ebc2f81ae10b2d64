package middleware

import (
	"os"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yoockh/prepdeck/internal/utils"
)

const (
	CtxUserID = "user_id"
	CtxRole   = "role"
)

// JWTConfig describes the identity provider's HS256 tokens.
type JWTConfig struct {
	Secret   string
	Issuer   string // optional
	Audience string // optional
}

func JWTConfigFromEnv() JWTConfig {
	return JWTConfig{
		Secret:   os.Getenv("JWT_SECRET"),
		Issuer:   os.Getenv("JWT_ISSUER"),
		Audience: os.Getenv("JWT_AUDIENCE"),
	}
}

// identityClaims reads the role from app_metadata only. A top-level "role"
// claim is the provider's database role (ex: "authenticated") and is ignored.
type identityClaims struct {
	jwt.RegisteredClaims
	AppMetadata map[string]any `json:"app_metadata"` // {"role":"admin"} grants admin
}

// JWTAuth resolves the bearer credential to (user_id, role) and stores both
// on the gin context. The user id is trusted as given.
func JWTAuth(cfg JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Secret == "" {
			abort(c, utils.CodeInternal, "JWT_SECRET is not set")
			return
		}

		auth := c.GetHeader("Authorization")
		raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if !strings.HasPrefix(auth, "Bearer ") || raw == "" {
			abort(c, utils.CodeUnauthorized, "missing bearer token")
			return
		}

		claims := &identityClaims{}
		opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
		if cfg.Issuer != "" {
			opts = append(opts, jwt.WithIssuer(cfg.Issuer))
		}
		tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			return []byte(cfg.Secret), nil
		}, opts...)
		if err != nil || tok == nil || !tok.Valid {
			abort(c, utils.CodeUnauthorized, "invalid token")
			return
		}
		if cfg.Audience != "" && !slices.Contains(claims.Audience, cfg.Audience) {
			abort(c, utils.CodeUnauthorized, "invalid token audience")
			return
		}
		if claims.Subject == "" {
			abort(c, utils.CodeUnauthorized, "missing subject")
			return
		}

		c.Set(CtxUserID, claims.Subject)
		c.Set(CtxRole, roleOf(claims))
		c.Next()
	}
}

func roleOf(claims *identityClaims) string {
	if v, ok := claims.AppMetadata["role"].(string); ok && v != "" {
		return v
	}
	return "user"
}
