package lock_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"echo.app/relay/internal/lock"
)

var _ = Describe("Locker", func() {
	const key = "echo:lock:webhook-sweep"

	var (
		ctx    context.Context
		redis  *fakeRedis
		locker *lock.Locker
	)

	BeforeEach(func() {
		ctx = context.Background()
		redis = newFakeRedis()
		locker = lock.New(redis, nil)
	})

	It("grants the key to one holder at a time", func() {
		lease, err := locker.TryAcquire(ctx, key, time.Minute)
		Expect(err).NotTo(HaveOccurred())
		Expect(lease.Key()).To(Equal(key))
		Expect(redis.ttls[key]).To(Equal(time.Minute))

		_, err = locker.TryAcquire(ctx, key, time.Minute)
		Expect(err).To(MatchError(lock.ErrNotAcquired))

		Expect(lease.Release(ctx)).To(Succeed())
		again, err := locker.TryAcquire(ctx, key, time.Minute)
		Expect(err).NotTo(HaveOccurred())
		Expect(again).NotTo(BeNil())
	})

	It("does not release a key taken over after expiry", func() {
		stale, err := locker.TryAcquire(ctx, key, time.Second)
		Expect(err).NotTo(HaveOccurred())

		redis.expire(key)
		current, err := locker.TryAcquire(ctx, key, time.Second)
		Expect(err).NotTo(HaveOccurred())

		Expect(stale.Release(ctx)).To(MatchError(lock.ErrLockLost))
		Expect(redis.values).To(HaveKey(key))
		Expect(current.Release(ctx)).To(Succeed())
		Expect(redis.values).NotTo(HaveKey(key))
	})

	It("rejects non-positive TTLs", func() {
		_, err := locker.TryAcquire(ctx, key, 0)
		Expect(err).To(HaveOccurred())
	})

	It("wraps Redis errors", func() {
		redis.failSet = errors.New("connection refused")

		_, err := locker.TryAcquire(ctx, key, time.Second)
		Expect(err).To(MatchError(ContainSubstring("connection refused")))
		Expect(err).NotTo(MatchError(lock.ErrNotAcquired))
	})

	Describe("WithLock", func() {
		It("runs fn and releases the key", func() {
			ran := false
			err := locker.WithLock(ctx, key, time.Minute, func(context.Context) error {
				ran = true
				Expect(redis.values).To(HaveKey(key))
				return nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(ran).To(BeTrue())
			Expect(redis.values).NotTo(HaveKey(key))
		})

		It("skips fn while another holder has the key", func() {
			_, err := locker.TryAcquire(ctx, key, time.Minute)
			Expect(err).NotTo(HaveOccurred())

			err = locker.WithLock(ctx, key, time.Minute, func(context.Context) error {
				Fail("fn must not run")
				return nil
			})
			Expect(err).To(MatchError(lock.ErrNotAcquired))
		})

		It("returns fn's error after releasing", func() {
			boom := errors.New("boom")
			err := locker.WithLock(ctx, key, time.Minute, func(context.Context) error { return boom })
			Expect(err).To(MatchError(boom))
			Expect(redis.values).NotTo(HaveKey(key))
		})
	})
})
