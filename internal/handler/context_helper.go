package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-consultation-api/internal/middleware"
	"github.com/noah-isme/sma-consultation-api/internal/models"
	appErrors "github.com/noah-isme/sma-consultation-api/pkg/errors"
	"github.com/noah-isme/sma-consultation-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext writes UNAUTHORIZED and returns false when no caller is attached.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return claims.Actor(), true
}

func bindError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
