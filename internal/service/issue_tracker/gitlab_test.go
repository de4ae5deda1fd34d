package issue_tracker_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"echo.app/relay/internal/service/issue_tracker"
)

var _ = Describe("GitLab client", func() {
	var (
		ctx       context.Context
		server    *httptest.Server
		logs      *bytes.Buffer
		client    issue_tracker.Client
		issueCode int
	)

	BeforeEach(func() {
		ctx = context.Background()
		logs = &bytes.Buffer{}
		issueCode = http.StatusOK

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			switch r.Method {
			case http.MethodPost:
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(`{"id":301,"body":"Alex commented:\n\nhi","author":{"username":"echo-bot"}}`))
			case http.MethodGet:
				w.WriteHeader(issueCode)
				if issueCode == http.StatusOK {
					_, _ = w.Write([]byte(`{"id":9,"iid":42,"state":"opened","web_url":"https://gitlab.example.com/acme/widgets/-/issues/42"}`))
					return
				}
				_, _ = w.Write([]byte(`{"message":"404 Not found"}`))
			default:
				w.WriteHeader(http.StatusMethodNotAllowed)
			}
		}))

		baseURL := server.URL
		var err error
		client, err = issue_tracker.NewGitLabClient(issue_tracker.Credentials{
			BaseURL:     &baseURL,
			AccessToken: "glpat-token",
			Repository:  "acme/widgets",
			Logger:      slog.New(slog.NewTextHandler(logs, nil)),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("CreateComment", func() {
		It("anchors the note on the issue page", func() {
			comment, err := client.CreateComment(ctx, 42, "hi")
			Expect(err).NotTo(HaveOccurred())
			Expect(comment.ID).To(Equal("301"))
			Expect(comment.Author).To(Equal("echo-bot"))
			Expect(comment.URL).To(Equal("https://gitlab.example.com/acme/widgets/-/issues/42#note_301"))
			Expect(logs.String()).To(BeEmpty())
		})

		It("returns the note and logs when the issue lookup fails", func() {
			issueCode = http.StatusNotFound

			comment, err := client.CreateComment(ctx, 42, "hi")
			Expect(err).NotTo(HaveOccurred())
			Expect(comment.ID).To(Equal("301"))
			Expect(comment.URL).To(BeEmpty())

			Expect(logs.String()).To(ContainSubstring("gitlab note created without a web url"))
			Expect(logs.String()).To(ContainSubstring("note_id=301"))
			Expect(logs.String()).To(ContainSubstring("status 404"))
		})
	})

	It("reports a missing issue as an APIError", func() {
		issueCode = http.StatusNotFound

		_, err := client.GetIssue(ctx, 42)
		var apiErr *issue_tracker.APIError
		Expect(errors.As(err, &apiErr)).To(BeTrue())
		Expect(apiErr.StatusCode).To(Equal(http.StatusNotFound))
		Expect(apiErr.Method).To(Equal(http.MethodGet))
	})
})
