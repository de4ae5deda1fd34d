package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"echo.app/relay/common/logger"
)

type contextKey string

const (
	// OrganizationHeader carries the caller's organization. Authentication is
	// done upstream; this service trusts the header.
	OrganizationHeader = "X-Organization-ID"

	organizationContextKey contextKey = "organization_id"
)

// RequireOrganization rejects requests without a valid organization header
// and attaches the organization to the request context.
func RequireOrganization() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, err := strconv.ParseInt(c.GetHeader(OrganizationHeader), 10, 64)
		if err != nil || orgID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing or invalid " + OrganizationHeader + " header",
				"code":  "MISSING_ORGANIZATION",
			})
			return
		}

		ctx := context.WithValue(c.Request.Context(), organizationContextKey, orgID)
		ctx = logger.WithLogFields(ctx, logger.LogFields{OrganizationID: &orgID})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetOrganizationID returns the organization set by RequireOrganization, or 0.
func GetOrganizationID(ctx context.Context) int64 {
	orgID, _ := ctx.Value(organizationContextKey).(int64)
	return orgID
}
