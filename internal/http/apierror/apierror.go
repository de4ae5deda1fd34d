package apierror

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"echo.app/relay/internal/service"
	"echo.app/relay/internal/service/integration"
	"echo.app/relay/internal/service/issue_tracker"
	"echo.app/relay/internal/service/webhook"
)

// Response is the error body of every API endpoint.
type Response struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInvalidStatus      = "INVALID_STATUS"
	CodeInvalidConfig      = "INVALID_INTEGRATION_CONFIG"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInvalidSignature   = "INVALID_SIGNATURE"
	CodeFeedbackNotFound   = "FEEDBACK_NOT_FOUND"
	CodeIntegrationMissing = "INTEGRATION_NOT_FOUND"
	CodeSubscriptionAbsent = "SUBSCRIPTION_NOT_FOUND"
	CodeEventNotReplayable = "EVENT_NOT_REPLAYABLE"
	CodeTrackerError       = "TRACKER_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
)

func Abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, Response{Error: message, Code: code})
}

func BadRequest(c *gin.Context, message string) {
	Abort(c, http.StatusBadRequest, CodeInvalidRequest, message)
}

// Write maps a service error to its status and code. Unknown errors become a
// logged 500 whose message does not leak internals.
func Write(c *gin.Context, err error) {
	status, resp := From(err)
	if status >= http.StatusInternalServerError {
		logError(c, err)
	}
	c.AbortWithStatusJSON(status, resp)
}

// From returns the status and body for err.
func From(err error) (int, Response) {
	var apiErr *issue_tracker.APIError
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, Response{Error: err.Error(), Code: CodeInvalidRequest}
	case errors.Is(err, service.ErrInvalidStatus):
		return http.StatusBadRequest, Response{Error: err.Error(), Code: CodeInvalidStatus}
	case errors.Is(err, integration.ErrInvalidConfig):
		return http.StatusBadRequest, Response{Error: err.Error(), Code: CodeInvalidConfig}
	case errors.Is(err, integration.ErrInvalidCredentials):
		return http.StatusBadRequest, Response{Error: err.Error(), Code: CodeInvalidCredentials}
	case errors.Is(err, service.ErrInvalidSignature):
		return http.StatusUnauthorized, Response{Error: "invalid webhook signature", Code: CodeInvalidSignature}
	case errors.Is(err, service.ErrFeedbackNotFound):
		return http.StatusNotFound, Response{Error: "feedback not found", Code: CodeFeedbackNotFound}
	case errors.Is(err, service.ErrIntegrationNotFound), errors.Is(err, integration.ErrNotConnected):
		return http.StatusNotFound, Response{Error: "integration not found", Code: CodeIntegrationMissing}
	case errors.Is(err, service.ErrSubscriptionNotFound):
		return http.StatusNotFound, Response{Error: "webhook subscription not found", Code: CodeSubscriptionAbsent}
	case errors.Is(err, webhook.ErrEventNotReplayable):
		return http.StatusConflict, Response{Error: "only failed events of this organization can be replayed", Code: CodeEventNotReplayable}
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, Response{
			Error: "issue tracker request failed",
			Code:  CodeTrackerError,
			Details: map[string]any{
				"provider":    apiErr.Provider,
				"status_code": apiErr.StatusCode,
			},
		}
	}
	return http.StatusInternalServerError, Response{Error: "internal server error", Code: CodeInternal}
}

func logError(c *gin.Context, err error) {
	slog.ErrorContext(c.Request.Context(), "request failed",
		"error", err,
		"method", c.Request.Method,
		"path", c.FullPath())
}
