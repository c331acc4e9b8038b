package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/edukita/gradcert-api/internal/models"
	appErrors "github.com/edukita/gradcert-api/pkg/errors"
	"github.com/edukita/gradcert-api/pkg/response"
)

// ContextActorKey is the gin context key storing the resolved actor claims.
const ContextActorKey = "currentActor"

// Actor requires a valid access token carrying tenant claims. Token issuance
// lives upstream; this service only validates and extracts.
func Actor(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims := &models.ActorClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token"))
			c.Abort()
			return
		}
		if claims.OrganizationID == "" || claims.SchoolID == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "token missing tenant claims"))
			c.Abort()
			return
		}

		c.Set(ContextActorKey, claims)
		c.Next()
	}
}

// ActorFromContext extracts the acting identity set by the Actor middleware.
func ActorFromContext(c *gin.Context) (models.Actor, bool) {
	value, ok := c.Get(ContextActorKey)
	if !ok {
		return models.Actor{}, false
	}
	claims, ok := value.(*models.ActorClaims)
	if !ok {
		return models.Actor{}, false
	}
	return models.Actor{
		UserID:         claims.UserID,
		OrganizationID: claims.OrganizationID,
		SchoolID:       claims.SchoolID,
	}, true
}
