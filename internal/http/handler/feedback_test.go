package handler_test

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"echo.app/relay/internal/http/handler"
	"echo.app/relay/internal/model"
	"echo.app/relay/internal/service"
	"echo.app/relay/internal/service/issue_tracker"
)

var _ = Describe("FeedbackHandler", func() {
	var (
		router   *gin.Engine
		feedback *mockFeedbackService
		comments *mockCommentService
	)

	BeforeEach(func() {
		feedback = &mockFeedbackService{}
		comments = &mockCommentService{}
		router = newRouter()

		fh := handler.NewFeedbackHandler(feedback)
		ch := handler.NewCommentHandler(comments)
		router.POST("/feedback", fh.Create)
		router.GET("/feedback/:id", fh.Get)
		router.PATCH("/feedback/:id/status", fh.UpdateStatus)
		router.POST("/feedback/:id/sync", fh.Sync)
		router.POST("/feedback/:id/sync/pull", fh.Pull)
		router.GET("/feedback/:id/comments", ch.List)
		router.POST("/feedback/:id/comments", ch.Create)
		router.POST("/feedback/:id/comments/sync", ch.SyncPending)
	})

	Describe("Create", func() {
		It("creates feedback scoped to the caller's organization", func() {
			feedback.createFn = func(_ context.Context, p service.CreateFeedbackParams) (*service.CreateFeedbackResult, error) {
				Expect(p.OrganizationID).To(Equal(testOrgID))
				Expect(p.Title).To(Equal("Export broken"))
				Expect(p.Type).To(Equal(model.FeedbackTypeBug))
				return &service.CreateFeedbackResult{Feedback: &model.Feedback{
					ID:             123,
					OrganizationID: p.OrganizationID,
					Title:          p.Title,
					Type:           p.Type,
					Status:         model.FeedbackStatusNew,
				}}, nil
			}

			w := do(router, http.MethodPost, "/feedback", map[string]any{"title": "Export broken", "type": "bug"})
			Expect(w.Code).To(Equal(http.StatusCreated))
			resp := decode(w)
			Expect(resp["id"]).To(Equal("123"))
			Expect(resp["status"]).To(Equal("new"))
			Expect(resp).NotTo(HaveKey("sync_error"))
			Expect(resp).NotTo(HaveKey("external_issue"))
		})

		It("reports a failed auto-sync without failing the request", func() {
			feedback.createFn = func(_ context.Context, p service.CreateFeedbackParams) (*service.CreateFeedbackResult, error) {
				return &service.CreateFeedbackResult{
					Feedback:  &model.Feedback{ID: 5, OrganizationID: p.OrganizationID, Title: p.Title},
					SyncError: errors.New("github api POST /repos/acme/widgets/issues: status 502"),
				}, nil
			}

			w := do(router, http.MethodPost, "/feedback", map[string]any{"title": "Crash"})
			Expect(w.Code).To(Equal(http.StatusCreated))
			Expect(decode(w)["sync_error"]).To(ContainSubstring("status 502"))
		})

		It("rejects a missing title before calling the service", func() {
			feedback.createFn = func(context.Context, service.CreateFeedbackParams) (*service.CreateFeedbackResult, error) {
				Fail("service should not be called")
				return nil, nil
			}

			w := do(router, http.MethodPost, "/feedback", map[string]any{"description": "no title"})
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(decode(w)["code"]).To(Equal("INVALID_REQUEST"))
		})

		It("maps invalid statuses to 400 INVALID_STATUS", func() {
			feedback.createFn = func(context.Context, service.CreateFeedbackParams) (*service.CreateFeedbackResult, error) {
				return nil, service.ErrInvalidStatus
			}

			w := do(router, http.MethodPost, "/feedback", map[string]any{"title": "x", "status": "shipped"})
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(decode(w)["code"]).To(Equal("INVALID_STATUS"))
		})
	})

	Describe("Get", func() {
		It("renders the external issue of linked feedback", func() {
			feedback.getFn = func(_ context.Context, orgID, id int64) (*model.Feedback, error) {
				Expect(orgID).To(Equal(testOrgID))
				Expect(id).To(Equal(int64(7)))
				return &model.Feedback{
					ID:                  7,
					OrganizationID:      orgID,
					ExternalIssueNumber: ptr(int64(42)),
					ExternalIssueURL:    ptr("https://github.com/acme/widgets/issues/42"),
					ExternalStatus:      ptr(model.ExternalStatusOpen),
				}, nil
			}

			w := do(router, http.MethodGet, "/feedback/7", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			issue, ok := decode(w)["external_issue"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(issue["number"]).To(BeNumerically("==", 42))
			Expect(issue["status"]).To(Equal("open"))
		})

		It("returns 404 for unknown feedback", func() {
			w := do(router, http.MethodGet, "/feedback/404", nil)
			Expect(w.Code).To(Equal(http.StatusNotFound))
			Expect(decode(w)).To(Equal(map[string]any{"error": "feedback not found", "code": "FEEDBACK_NOT_FOUND"}))
		})

		It("returns 400 for malformed ids", func() {
			w := do(router, http.MethodGet, "/feedback/abc", nil)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("UpdateStatus", func() {
		It("passes the new status through", func() {
			feedback.updateStatusFn = func(_ context.Context, _, id int64, status model.FeedbackStatus) (*model.Feedback, error) {
				return &model.Feedback{ID: id, Status: status}, nil
			}

			w := do(router, http.MethodPatch, "/feedback/7/status", map[string]any{"status": "completed"})
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decode(w)["status"]).To(Equal("completed"))
		})

		It("requires a status", func() {
			w := do(router, http.MethodPatch, "/feedback/7/status", map[string]any{})
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Sync", func() {
		It("maps tracker failures to 502 with details", func() {
			feedback.syncFn = func(context.Context, int64, int64) (*model.Feedback, error) {
				return nil, &issue_tracker.APIError{Provider: model.ProviderGitHub, Method: "POST", Path: "/repos/acme/widgets/issues", StatusCode: 503}
			}

			w := do(router, http.MethodPost, "/feedback/7/sync", nil)
			Expect(w.Code).To(Equal(http.StatusBadGateway))
			resp := decode(w)
			Expect(resp["code"]).To(Equal("TRACKER_ERROR"))
			Expect(resp["details"]).To(HaveKeyWithValue("status_code", BeNumerically("==", 503)))
		})

		It("hides unexpected errors behind a 500", func() {
			feedback.syncFn = func(context.Context, int64, int64) (*model.Feedback, error) {
				return nil, errors.New("pq: connection refused")
			}

			w := do(router, http.MethodPost, "/feedback/7/sync", nil)
			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			Expect(w.Body.String()).NotTo(ContainSubstring("connection refused"))
		})
	})

	It("reports whether a pull changed the status", func() {
		feedback.pullFn = func(_ context.Context, _, id int64) (*model.Feedback, bool, error) {
			return &model.Feedback{ID: id, Status: model.FeedbackStatusCompleted}, true, nil
		}

		w := do(router, http.MethodPost, "/feedback/9/sync/pull", nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		resp := decode(w)
		Expect(resp["changed"]).To(BeTrue())
		Expect(resp["feedback"]).To(HaveKeyWithValue("status", "completed"))
	})

	Describe("comments", func() {
		It("creates a comment on the feedback", func() {
			comments.createFn = func(_ context.Context, p service.CreateCommentParams) (*model.Comment, error) {
				Expect(p.OrganizationID).To(Equal(testOrgID))
				Expect(p.FeedbackID).To(Equal(int64(7)))
				Expect(p.IsInternal).To(BeTrue())
				return &model.Comment{ID: 1, FeedbackID: p.FeedbackID, AuthorName: p.AuthorName, Content: p.Content, IsInternal: true}, nil
			}

			w := do(router, http.MethodPost, "/feedback/7/comments", map[string]any{
				"author_name": "Ana",
				"content":     "Looking into it",
				"is_internal": true,
			})
			Expect(w.Code).To(Equal(http.StatusCreated))
			Expect(decode(w)["content"]).To(Equal("Looking into it"))
		})

		It("requires content", func() {
			w := do(router, http.MethodPost, "/feedback/7/comments", map[string]any{"author_name": "Ana"})
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("reports how many pending comments were pushed", func() {
			comments.syncPendingFn = func(context.Context, int64, int64) (int, error) {
				return 2, nil
			}

			w := do(router, http.MethodPost, "/feedback/7/comments/sync", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decode(w)["synced"]).To(BeNumerically("==", 2))
		})
	})
})
