package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"echo.app/relay/internal/http/apierror"
)

// pathID parses a snowflake id path parameter, writing a 400 when it is not one.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		apierror.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}
