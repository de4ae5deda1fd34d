package handler_test

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"echo.app/relay/internal/http/handler"
	"echo.app/relay/internal/model"
	"echo.app/relay/internal/service/integration"
	"echo.app/relay/internal/service/issue_tracker"
)

var _ = Describe("IntegrationHandler", func() {
	var (
		router       *gin.Engine
		integrations *mockIntegrationService
	)

	connected := func(orgID int64) *model.Integration {
		return &model.Integration{
			ID:             55,
			OrganizationID: orgID,
			Provider:       model.ProviderGitHub,
			AccessToken:    "ghp_secret_token",
			Repository:     "acme/widgets",
			WebhookSecret:  "hook-secret",
			Enabled:        true,
		}
	}

	BeforeEach(func() {
		integrations = &mockIntegrationService{}
		router = newRouter()

		h := handler.NewIntegrationHandler(integrations, "https://echo.example.com")
		router.GET("/integration", h.Get)
		router.PUT("/integration", h.Connect)
		router.DELETE("/integration", h.Disconnect)
		router.POST("/integration/validate", h.Validate)
	})

	It("never renders the access token or webhook secret", func() {
		integrations.getFn = func(_ context.Context, orgID int64) (*model.Integration, error) {
			return connected(orgID), nil
		}

		w := do(router, http.MethodGet, "/integration", nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).NotTo(ContainSubstring("ghp_secret_token"))
		Expect(w.Body.String()).NotTo(ContainSubstring("hook-secret"))
		Expect(decode(w)["inbound_webhook_url"]).To(Equal("https://echo.example.com/webhooks/github/55"))
	})

	It("returns 404 when nothing is connected", func() {
		w := do(router, http.MethodGet, "/integration", nil)
		Expect(w.Code).To(Equal(http.StatusNotFound))
		Expect(decode(w)["code"]).To(Equal("INTEGRATION_NOT_FOUND"))
	})

	Describe("Connect", func() {
		body := map[string]any{
			"provider":         "github",
			"access_token":     "ghp_secret_token",
			"repository":       "acme/widgets",
			"auto_sync":        false,
			"trigger_statuses": []string{"planned"},
		}

		It("returns 201 for a new integration", func() {
			integrations.connectFn = func(_ context.Context, p integration.ConnectParams) (*integration.ConnectResult, error) {
				Expect(p.OrganizationID).To(Equal(testOrgID))
				Expect(p.Provider).To(Equal(model.ProviderGitHub))
				Expect(p.AutoSync).To(HaveValue(BeFalse()))
				Expect(p.TriggerStatuses).To(Equal([]model.FeedbackStatus{model.FeedbackStatusPlanned}))
				return &integration.ConnectResult{
					Integration: connected(p.OrganizationID),
					Created:     true,
					Repository:  &issue_tracker.Repository{FullName: "acme/widgets"},
					HookID:      "77",
				}, nil
			}

			w := do(router, http.MethodPut, "/integration", body)
			Expect(w.Code).To(Equal(http.StatusCreated))
			resp := decode(w)
			Expect(resp["created"]).To(BeTrue())
			Expect(resp["hook_id"]).To(Equal("77"))
			Expect(resp).NotTo(HaveKey("webhook_secret"))
		})

		It("hands out the secret when the hook could not be registered", func() {
			integrations.connectFn = func(_ context.Context, p integration.ConnectParams) (*integration.ConnectResult, error) {
				return &integration.ConnectResult{
					Integration: connected(p.OrganizationID),
					HookError:   "status 404",
				}, nil
			}

			w := do(router, http.MethodPut, "/integration", body)
			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode(w)
			Expect(resp["webhook_secret"]).To(Equal("hook-secret"))
			Expect(resp["hook_error"]).To(Equal("status 404"))
		})

		It("rejects unsupported providers at binding", func() {
			w := do(router, http.MethodPut, "/integration", map[string]any{"provider": "jira", "repository": "a/b"})
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("maps rejected credentials to 400", func() {
			integrations.connectFn = func(context.Context, integration.ConnectParams) (*integration.ConnectResult, error) {
				return nil, integration.ErrInvalidCredentials
			}

			w := do(router, http.MethodPut, "/integration", body)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(decode(w)["code"]).To(Equal("INVALID_CREDENTIALS"))
		})
	})

	It("disconnects with 204", func() {
		var disconnected int64
		integrations.disconnectFn = func(_ context.Context, orgID int64) error {
			disconnected = orgID
			return nil
		}

		w := do(router, http.MethodDelete, "/integration", nil)
		Expect(w.Code).To(Equal(http.StatusNoContent))
		Expect(disconnected).To(Equal(testOrgID))
	})

	It("validates credentials without saving", func() {
		integrations.validateFn = func(_ context.Context, p integration.ValidateParams) (*integration.ValidateResult, error) {
			Expect(p.Repository).To(Equal("acme/widgets"))
			return &integration.ValidateResult{Valid: false}, nil
		}

		w := do(router, http.MethodPost, "/integration/validate", map[string]any{
			"provider":     "github",
			"access_token": "bad",
			"repository":   "acme/widgets",
		})
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(decode(w)).To(Equal(map[string]any{"valid": false}))
	})
})
