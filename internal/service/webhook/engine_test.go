package webhook_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"echo.app/relay/internal/model"
	"echo.app/relay/internal/service/webhook"
)

const orgID int64 = 42

type receivedRequest struct {
	header http.Header
	body   []byte
}

// subscriber is an httptest endpoint answering with a configurable status.
type subscriber struct {
	server *httptest.Server

	mu       sync.Mutex
	status   int
	body     string
	requests []receivedRequest
	hold     chan struct{}
	arrived  chan struct{}
}

func newSubscriber() *subscriber {
	s := &subscriber{status: http.StatusOK, body: `{"ok":true}`}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.requests = append(s.requests, receivedRequest{header: r.Header.Clone(), body: body})
		status, respBody, hold, arrived := s.status, s.body, s.hold, s.arrived
		s.mu.Unlock()

		if arrived != nil {
			arrived <- struct{}{}
		}
		if hold != nil {
			<-hold
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(respBody))
	}))
	return s
}

func (s *subscriber) respond(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.body = body
}

func (s *subscriber) received() []receivedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]receivedRequest(nil), s.requests...)
}

var _ = Describe("Engine", func() {
	var (
		ctx      context.Context
		sub      *subscriber
		subs     *fakeSubscriptionStore
		events   *fakeEventStore
		producer *fakeProducer
		engine   *webhook.Engine
		target   *model.WebhookSubscription
	)

	BeforeEach(func() {
		ctx = context.Background()
		sub = newSubscriber()
		DeferCleanup(sub.server.Close)

		target = &model.WebhookSubscription{
			ID:             1,
			OrganizationID: orgID,
			URL:            sub.server.URL + "/hooks/echo",
			Secret:         "whsec_test",
			Enabled:        true,
			Events:         []string{model.EventFeedbackCreated, model.EventFeedbackStatusChanged},
			MaxRetries:     3,
		}
		subs = newFakeSubscriptionStore(
			target,
			&model.WebhookSubscription{ID: 2, OrganizationID: orgID, URL: sub.server.URL, Enabled: true, Events: []string{"*"}, MaxRetries: 5},
			&model.WebhookSubscription{ID: 3, OrganizationID: orgID, URL: sub.server.URL, Enabled: false, Events: []string{"*"}},
			&model.WebhookSubscription{ID: 4, OrganizationID: 99, URL: sub.server.URL, Enabled: true, Events: []string{"*"}},
			&model.WebhookSubscription{ID: 5, OrganizationID: orgID, URL: sub.server.URL, Enabled: true, Events: []string{model.EventCommentCreated}},
		)
		events = newFakeEventStore()
		producer = &fakeProducer{}
		engine = webhook.NewEngine(subs, events, fakeTxRunner{events}, producer, webhook.Config{Timeout: 2 * time.Second}, nil)
	})

	emitOne := func() model.WebhookEvent {
		GinkgoHelper()
		Expect(engine.Emit(ctx, orgID, model.EventFeedbackCreated, model.FeedbackEventData{
			Feedback: &model.Feedback{ID: 7, OrganizationID: orgID, Title: "Dark mode"},
		})).To(Succeed())
		for _, e := range events.all() {
			if e.SubscriptionID == target.ID {
				return e
			}
		}
		Fail("no event for target subscription")
		return model.WebhookEvent{}
	}

	Describe("Emit", func() {
		It("creates one pending event per matching enabled subscription", func() {
			Expect(engine.Emit(ctx, orgID, model.EventFeedbackCreated, model.FeedbackEventData{
				Feedback: &model.Feedback{ID: 7, Title: "Dark mode"},
			})).To(Succeed())

			all := events.all()
			Expect(all).To(HaveLen(2))

			bySub := map[int64]model.WebhookEvent{}
			for _, e := range all {
				bySub[e.SubscriptionID] = e
			}
			Expect(bySub).To(HaveKey(int64(1)))
			Expect(bySub).To(HaveKey(int64(2)))
			Expect(bySub[1].MaxRetries).To(Equal(int32(3)))
			Expect(bySub[2].MaxRetries).To(Equal(int32(5)))

			for _, e := range all {
				Expect(e.Status).To(Equal(model.WebhookEventStatusPending))
				Expect(e.RetryCount).To(BeZero())
				Expect(e.NextRetryAt).NotTo(BeNil())

				var env model.Envelope
				Expect(json.Unmarshal(e.Payload, &env)).To(Succeed())
				Expect(env.ID).To(Equal(e.ID))
				Expect(env.Type).To(Equal(model.EventFeedbackCreated))
				Expect(env.OrganizationID).To(Equal(orgID))
				Expect(string(env.Data)).To(ContainSubstring(`"title":"Dark mode"`))
			}

			Expect(producer.eventIDs()).To(ConsistOf(all[0].ID, all[1].ID))
		})

		It("does nothing without subscribers", func() {
			Expect(engine.Emit(ctx, 1234, model.EventFeedbackCreated, map[string]string{})).To(Succeed())
			Expect(events.all()).To(BeEmpty())
			Expect(producer.eventIDs()).To(BeEmpty())
		})

		It("keeps events when the queue is down", func() {
			producer.err = errRedisDown

			Expect(engine.Emit(ctx, orgID, model.EventCommentCreated, map[string]string{})).To(Succeed())
			Expect(events.all()).To(HaveLen(2))
		})
	})

	Describe("Deliver", func() {
		It("signs the payload and marks the event delivered", func() {
			event := emitOne()

			delivered, err := engine.Deliver(ctx, event.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(delivered.Status).To(Equal(model.WebhookEventStatusDelivered))
			Expect(*delivered.LastResponseCode).To(Equal(int32(200)))
			Expect(*delivered.LastResponseBody).To(Equal(`{"ok":true}`))

			reqs := sub.received()
			Expect(reqs).To(HaveLen(1))
			req := reqs[0]
			Expect(req.body).To(MatchJSON(event.Payload))
			Expect(req.header.Get(webhook.HeaderID)).To(Equal(jsonID(event.ID)))
			Expect(req.header.Get(webhook.HeaderEvent)).To(Equal(model.EventFeedbackCreated))
			Expect(req.header.Get(webhook.HeaderTimestamp)).To(MatchRegexp(`^\d+$`))
			Expect(req.header.Get(webhook.HeaderDelivery)).To(HaveLen(36))
			Expect(req.header.Get("Content-Type")).To(Equal("application/json"))
			Expect(req.header.Get("User-Agent")).To(HavePrefix("Echo-Webhooks/"))
			Expect(webhook.Verify("whsec_test", req.body, req.header.Get(webhook.HeaderSignature))).To(BeTrue())
		})

		It("retries on the backoff schedule and fails at max retries", func() {
			sub.respond(http.StatusInternalServerError, "boom")
			event := emitOne()

			first, err := engine.Deliver(ctx, event.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Status).To(Equal(model.WebhookEventStatusPending))
			Expect(first.RetryCount).To(Equal(int32(1)))
			Expect(*first.NextRetryAt).To(BeTemporally("~", time.Now().Add(60*time.Second), 5*time.Second))
			Expect(*first.LastResponseCode).To(Equal(int32(500)))
			Expect(*first.LastResponseBody).To(Equal("boom"))
			Expect(*first.LastError).To(Equal("unexpected status 500"))

			second, err := engine.Deliver(ctx, event.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Status).To(Equal(model.WebhookEventStatusPending))
			Expect(second.RetryCount).To(Equal(int32(2)))
			Expect(*second.NextRetryAt).To(BeTemporally("~", time.Now().Add(300*time.Second), 5*time.Second))

			third, err := engine.Deliver(ctx, event.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(third.Status).To(Equal(model.WebhookEventStatusFailed))
			Expect(third.RetryCount).To(Equal(int32(3)))
			Expect(third.NextRetryAt).To(BeNil())

			again, err := engine.Deliver(ctx, event.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(again).To(BeNil())
			Expect(sub.received()).To(HaveLen(3))
		})

		It("counts transport errors as failed attempts", func() {
			event := emitOne()
			sub.server.Close()

			updated, err := engine.Deliver(ctx, event.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Status).To(Equal(model.WebhookEventStatusPending))
			Expect(updated.RetryCount).To(Equal(int32(1)))
			Expect(updated.LastResponseCode).To(BeNil())
			Expect(*updated.LastError).NotTo(BeEmpty())
		})

		It("treats redirects as failures", func() {
			sub.respond(http.StatusFound, "")
			event := emitOne()

			updated, err := engine.Deliver(ctx, event.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Status).To(Equal(model.WebhookEventStatusPending))
			Expect(updated.RetryCount).To(Equal(int32(1)))
		})

		It("truncates long response bodies", func() {
			sub.respond(http.StatusBadGateway, strings.Repeat("x", 12_000))
			event := emitOne()

			updated, err := engine.Deliver(ctx, event.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(*updated.LastResponseBody).To(HaveLen(webhook.MaxResponseBodyLength))
		})

		It("fails without an attempt when the subscription was disabled", func() {
			event := emitOne()
			target.Enabled = false
			Expect(subs.Update(ctx, target)).To(Succeed())

			updated, err := engine.Deliver(ctx, event.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Status).To(Equal(model.WebhookEventStatusFailed))
			Expect(sub.received()).To(BeEmpty())
		})

		It("fails without an attempt when the subscription was deleted", func() {
			event := emitOne()
			Expect(subs.Delete(ctx, target.ID, orgID)).To(Succeed())

			updated, err := engine.Deliver(ctx, event.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Status).To(Equal(model.WebhookEventStatusFailed))
			Expect(sub.received()).To(BeEmpty())
		})

		It("skips an event that is already being delivered", func() {
			event := emitOne()
			hold := make(chan struct{})
			arrived := make(chan struct{}, 1)
			sub.mu.Lock()
			sub.hold, sub.arrived = hold, arrived
			sub.mu.Unlock()

			done := make(chan *model.WebhookEvent)
			go func() {
				defer GinkgoRecover()
				delivered, err := engine.Deliver(ctx, event.ID)
				Expect(err).NotTo(HaveOccurred())
				done <- delivered
			}()
			Eventually(arrived).Should(Receive())

			second, err := engine.Deliver(ctx, event.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(BeNil())

			close(hold)
			Eventually(done).Should(Receive(HaveField("Status", model.WebhookEventStatusDelivered)))
			Expect(sub.received()).To(HaveLen(1))
		})
	})

	Describe("ProcessFailedWebhooks", func() {
		It("delivers due events and leaves future ones", func() {
			past := time.Now().Add(-time.Minute)
			future := time.Now().Add(time.Hour)
			for i, next := range []time.Time{past, past, future} {
				events.put(model.WebhookEvent{
					ID: int64(100 + i), SubscriptionID: target.ID, OrganizationID: orgID,
					EventType: model.EventFeedbackCreated, Payload: []byte(`{}`),
					Status: model.WebhookEventStatusPending, MaxRetries: 3, NextRetryAt: &next,
				})
			}

			result, err := engine.ProcessFailedWebhooks(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(webhook.SweepResult{Found: 2, Delivered: 2}))
			Expect(events.get(102).Status).To(Equal(model.WebhookEventStatusPending))
		})

		It("bounds each sweep to the batch size", func() {
			past := time.Now().Add(-time.Minute)
			for i := 0; i < 15; i++ {
				events.put(model.WebhookEvent{
					ID: int64(200 + i), SubscriptionID: target.ID, OrganizationID: orgID,
					EventType: model.EventFeedbackCreated, Payload: []byte(`{}`),
					Status: model.WebhookEventStatusPending, MaxRetries: 3, NextRetryAt: &past,
				})
			}

			result, err := engine.ProcessFailedWebhooks(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Found).To(Equal(int(webhook.DefaultBatchSize)))
			Expect(result.Delivered).To(Equal(10))
		})

		It("reports reschedules and permanent failures", func() {
			sub.respond(http.StatusServiceUnavailable, "")
			past := time.Now().Add(-time.Minute)
			events.put(model.WebhookEvent{
				ID: 300, SubscriptionID: target.ID, OrganizationID: orgID, EventType: model.EventFeedbackCreated,
				Payload: []byte(`{}`), Status: model.WebhookEventStatusPending, MaxRetries: 3, NextRetryAt: &past,
			})
			events.put(model.WebhookEvent{
				ID: 301, SubscriptionID: target.ID, OrganizationID: orgID, EventType: model.EventFeedbackCreated,
				Payload: []byte(`{}`), Status: model.WebhookEventStatusPending, RetryCount: 2, MaxRetries: 3, NextRetryAt: &past,
			})

			result, err := engine.ProcessFailedWebhooks(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(webhook.SweepResult{Found: 2, Rescheduled: 1, Failed: 1}))
			Expect(events.get(301).Status).To(Equal(model.WebhookEventStatusFailed))
		})

		It("delivers each event once under concurrent sweeps", func() {
			past := time.Now().Add(-time.Minute)
			for i := 0; i < 6; i++ {
				events.put(model.WebhookEvent{
					ID: int64(400 + i), SubscriptionID: target.ID, OrganizationID: orgID,
					EventType: model.EventFeedbackCreated, Payload: []byte(`{}`),
					Status: model.WebhookEventStatusPending, MaxRetries: 3, NextRetryAt: &past,
				})
			}

			var wg sync.WaitGroup
			results := make([]webhook.SweepResult, 3)
			for i := range results {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()
					r, err := engine.ProcessFailedWebhooks(ctx)
					Expect(err).NotTo(HaveOccurred())
					results[i] = r
				}(i)
			}
			wg.Wait()

			delivered := 0
			for _, r := range results {
				delivered += r.Delivered
			}
			Expect(delivered).To(Equal(6))
			Expect(sub.received()).To(HaveLen(6))
		})
	})

	Describe("ReclaimStale", func() {
		It("turns abandoned sending events into failed attempts", func() {
			events.put(model.WebhookEvent{
				ID: 500, SubscriptionID: target.ID, OrganizationID: orgID, EventType: model.EventFeedbackCreated,
				Payload: []byte(`{}`), Status: model.WebhookEventStatusSending, MaxRetries: 3,
				UpdatedAt: time.Now().Add(-time.Hour),
			})
			events.put(model.WebhookEvent{
				ID: 501, SubscriptionID: target.ID, OrganizationID: orgID, EventType: model.EventFeedbackCreated,
				Payload: []byte(`{}`), Status: model.WebhookEventStatusSending, MaxRetries: 3,
				UpdatedAt: time.Now(),
			})

			n, err := engine.ReclaimStale(ctx, 10*time.Minute)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))

			reclaimed := events.get(500)
			Expect(reclaimed.Status).To(Equal(model.WebhookEventStatusPending))
			Expect(reclaimed.RetryCount).To(Equal(int32(1)))
			Expect(events.get(501).Status).To(Equal(model.WebhookEventStatusSending))
		})
	})

	Describe("Replay", func() {
		It("resets a failed event and queues it", func() {
			events.put(model.WebhookEvent{
				ID: 600, SubscriptionID: target.ID, OrganizationID: orgID, EventType: model.EventFeedbackCreated,
				Payload: []byte(`{}`), Status: model.WebhookEventStatusFailed, RetryCount: 3, MaxRetries: 3,
			})

			replayed, err := engine.Replay(ctx, orgID, 600)
			Expect(err).NotTo(HaveOccurred())
			Expect(replayed.Status).To(Equal(model.WebhookEventStatusPending))
			Expect(replayed.RetryCount).To(BeZero())
			Expect(producer.eventIDs()).To(Equal([]int64{600}))

			delivered, err := engine.Deliver(ctx, 600)
			Expect(err).NotTo(HaveOccurred())
			Expect(delivered.Status).To(Equal(model.WebhookEventStatusDelivered))
		})

		It("refuses events of other organizations or that have not failed", func() {
			events.put(model.WebhookEvent{ID: 601, OrganizationID: orgID, Status: model.WebhookEventStatusFailed, MaxRetries: 3})
			events.put(model.WebhookEvent{ID: 602, OrganizationID: orgID, Status: model.WebhookEventStatusDelivered, MaxRetries: 3})

			_, err := engine.Replay(ctx, 99, 601)
			Expect(err).To(MatchError(webhook.ErrEventNotReplayable))

			_, err = engine.Replay(ctx, orgID, 602)
			Expect(err).To(MatchError(webhook.ErrEventNotReplayable))

			_, err = engine.Replay(ctx, orgID, 999)
			Expect(err).To(MatchError(webhook.ErrEventNotReplayable))
		})
	})

	Describe("EnvelopeSchema", func() {
		It("describes the envelope and every event's data", func() {
			raw, err := json.Marshal(webhook.EnvelopeSchema())
			Expect(err).NotTo(HaveOccurred())
			Expect(string(raw)).To(ContainSubstring(`"organization_id"`))
			Expect(string(raw)).To(ContainSubstring(`"feedback.status_changed"`))
			Expect(string(raw)).To(ContainSubstring(`"FeedbackStatusChangedData"`))
		})
	})
})

func jsonID(id int64) string {
	raw, _ := json.Marshal(id)
	return string(raw)
}
