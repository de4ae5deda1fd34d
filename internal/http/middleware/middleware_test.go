package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"echo.app/relay/internal/http/middleware"
)

var _ = Describe("Middleware", func() {
	var router *gin.Engine

	BeforeEach(func() {
		router = gin.New()
		router.Use(middleware.Recovery(), middleware.Logger())
	})

	get := func(path string, headers map[string]string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
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

	Describe("RequireOrganization", func() {
		var seen int64

		BeforeEach(func() {
			seen = 0
			router.GET("/scoped", middleware.RequireOrganization(), func(c *gin.Context) {
				seen = middleware.GetOrganizationID(c.Request.Context())
				c.Status(http.StatusOK)
			})
		})

		It("exposes the organization to handlers", func() {
			w := get("/scoped", map[string]string{middleware.OrganizationHeader: "10"})
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(seen).To(Equal(int64(10)))
		})

		DescribeTable("rejects requests without a usable organization",
			func(value string) {
				headers := map[string]string{}
				if value != "" {
					headers[middleware.OrganizationHeader] = value
				}

				w := get("/scoped", headers)
				Expect(w.Code).To(Equal(http.StatusUnauthorized))
				Expect(decode(w)["code"]).To(Equal("MISSING_ORGANIZATION"))
				Expect(seen).To(BeZero())
			},
			Entry("missing", ""),
			Entry("not a number", "acme"),
			Entry("zero", "0"),
			Entry("negative", "-4"),
		)
	})

	It("turns panics into a 500 with a stable body", func() {
		router.GET("/panic", func(*gin.Context) {
			panic("boom")
		})

		w := get("/panic", nil)
		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(decode(w)).To(Equal(map[string]any{"error": "internal server error", "code": "INTERNAL_ERROR"}))
	})

	It("returns 0 when no organization was attached", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		Expect(middleware.GetOrganizationID(req.Context())).To(BeZero())
	})
})
