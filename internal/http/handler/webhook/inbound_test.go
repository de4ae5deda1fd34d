package webhook_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"echo.app/relay/internal/http/handler/webhook"
	"echo.app/relay/internal/model"
	"echo.app/relay/internal/service"
)

var _ = Describe("Inbound webhook handlers", func() {
	var (
		router  *gin.Engine
		inbound *mockInboundService
	)

	BeforeEach(func() {
		inbound = &mockInboundService{}
		router = gin.New()
		router.POST("/webhooks/github/:integration_id", webhook.NewGitHubWebhookHandler(inbound).HandleEvent)
		router.POST("/webhooks/gitlab/:integration_id", webhook.NewGitLabWebhookHandler(inbound).HandleEvent)
	})

	send := func(path string, headers map[string]string, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	decode := func(w *httptest.ResponseRecorder) map[string]any {
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		return resp
	}

	const body = `{"action":"closed","issue":{"number":42}}`

	It("hands the raw delivery to the inbound service", func() {
		inbound.handleFn = func(_ context.Context, p service.InboundParams) (*service.InboundResult, error) {
			return &service.InboundResult{Action: service.InboundStatusApplied, FeedbackID: ptr(int64(7))}, nil
		}

		w := send("/webhooks/github/55", map[string]string{
			"X-GitHub-Event":      "issues",
			"X-Hub-Signature-256": "sha256=abc",
		}, body)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(decode(w)).To(Equal(map[string]any{
			"status":      "ok",
			"action":      string(service.InboundStatusApplied),
			"feedback_id": "7",
		}))

		Expect(inbound.calls).To(HaveLen(1))
		call := inbound.calls[0]
		Expect(call.Provider).To(Equal(model.ProviderGitHub))
		Expect(call.IntegrationID).To(Equal(int64(55)))
		Expect(string(call.Body)).To(Equal(body))
		Expect(call.Headers).To(HaveKeyWithValue("X-Github-Event", "issues"))
		Expect(call.Headers).To(HaveKeyWithValue(service.HeaderGitHubSignature, "sha256=abc"))
	})

	It("rejects GitHub deliveries without a signature header", func() {
		w := send("/webhooks/github/55", map[string]string{"X-GitHub-Event": "issues"}, body)
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(decode(w)["code"]).To(Equal("INVALID_SIGNATURE"))
		Expect(inbound.calls).To(BeEmpty())
	})

	It("rejects GitLab deliveries without a token header", func() {
		w := send("/webhooks/gitlab/55", map[string]string{"X-Gitlab-Event": "Issue Hook"}, body)
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(inbound.calls).To(BeEmpty())
	})

	It("routes GitLab deliveries with the GitLab provider", func() {
		w := send("/webhooks/gitlab/55", map[string]string{
			"X-Gitlab-Event": "Issue Hook",
			"X-Gitlab-Token": "secret",
		}, body)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(decode(w)["action"]).To(Equal(string(service.InboundIgnored)))
		Expect(inbound.calls[0].Provider).To(Equal(model.ProviderGitLab))
		Expect(inbound.calls[0].Headers).To(HaveKeyWithValue(service.HeaderGitLabToken, "secret"))
	})

	DescribeTable("maps service errors so trackers redeliver only what can succeed",
		func(err error, status int) {
			inbound.handleFn = func(context.Context, service.InboundParams) (*service.InboundResult, error) {
				return nil, err
			}

			w := send("/webhooks/github/55", map[string]string{"X-Hub-Signature-256": "sha256=abc"}, body)
			Expect(w.Code).To(Equal(status))
		},
		Entry("bad signature", service.ErrInvalidSignature, http.StatusUnauthorized),
		Entry("unknown integration", service.ErrIntegrationNotFound, http.StatusNotFound),
		Entry("malformed payload", service.ErrInvalidInput, http.StatusBadRequest),
		Entry("database failure", errors.New("db down"), http.StatusInternalServerError),
	)

	It("rejects non-numeric integration ids", func() {
		w := send("/webhooks/github/abc", map[string]string{"X-Hub-Signature-256": "sha256=abc"}, body)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(inbound.calls).To(BeEmpty())
	})
})

func ptr[T any](v T) *T {
	return &v
}
