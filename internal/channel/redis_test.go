package channel_test

import (
	"context"
	"encoding/json"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Minhal128/CodeX/internal/channel"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Redis transport", func() {
	var (
		ctx    context.Context
		mr     *miniredis.Miniredis
		client *redis.Client
		dialer *channel.RedisDialer
	)

	BeforeEach(func() {
		ctx = context.Background()
		mr = miniredis.RunT(GinkgoT())
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		DeferCleanup(client.Close)
		dialer = channel.NewRedisDialer(client, "test:project:")
	})

	It("subscribes to the prefixed channel", func() {
		conn, err := dialer.Dial(ctx, "proj-1")
		Expect(err).NotTo(HaveOccurred())
		defer conn.Close()

		Expect(mr.PubSubChannels("test:project:*")).To(ConsistOf("test:project:proj-1"))
	})

	It("delivers published payloads to subscribers", func() {
		conn, err := dialer.Dial(ctx, "proj-1")
		Expect(err).NotTo(HaveOccurred())
		defer conn.Close()

		Expect(conn.Publish(ctx, []byte(`{"event":"ping","data":{}}`))).To(Succeed())

		var got []byte
		Eventually(conn.Messages()).Should(Receive(&got))
		Expect(got).To(MatchJSON(`{"event":"ping","data":{}}`))
	})

	It("ends without an error when closed locally", func() {
		conn, err := dialer.Dial(ctx, "proj-1")
		Expect(err).NotTo(HaveOccurred())

		Expect(conn.Close()).To(Succeed())
		Eventually(conn.Done()).Should(BeClosed())
		Expect(conn.Err()).NotTo(HaveOccurred())
		Expect(conn.Publish(ctx, []byte("x"))).NotTo(Succeed())
	})

	It("ends with an error when the server goes away", func() {
		conn, err := dialer.Dial(ctx, "proj-1")
		Expect(err).NotTo(HaveOccurred())
		defer conn.Close()

		mr.Close()
		Eventually(conn.Done(), 5*time.Second).Should(BeClosed())
		Expect(conn.Err()).To(HaveOccurred())
	})

	It("fails to dial an unreachable server", func() {
		mr.Close()
		_, err := dialer.Dial(ctx, "proj-1")
		Expect(err).To(HaveOccurred())
	})

	It("carries manager traffic between two managers", func() {
		alice := channel.NewManager(dialer)
		bob := channel.NewManager(dialer)
		defer alice.Close()
		defer bob.Close()

		Expect(alice.Initialize(ctx, "proj-1")).To(Succeed())
		Expect(bob.Initialize(ctx, "proj-1")).To(Succeed())

		received := make(chan string, 1)
		bob.Receive("project-message", func(_ context.Context, data json.RawMessage) {
			received <- string(data)
		})

		Expect(alice.Send(ctx, "project-message", map[string]string{"message": "hello"})).To(BeTrue())
		Eventually(received).Should(Receive(MatchJSON(`{"message":"hello"}`)))
	})

	It("publishes without subscribing", func() {
		conn, err := dialer.Dial(ctx, "proj-1")
		Expect(err).NotTo(HaveOccurred())
		defer conn.Close()

		publisher := channel.NewPublisher(client, "test:project:")
		Expect(publisher.Publish(ctx, "proj-1", "project-message", map[string]string{"message": "from worker"})).To(Succeed())

		var got []byte
		Eventually(conn.Messages()).Should(Receive(&got))

		var env channel.Envelope
		Expect(json.Unmarshal(got, &env)).To(Succeed())
		Expect(env.Event).To(Equal("project-message"))
		Expect(env.Data).To(MatchJSON(`{"message":"from worker"}`))
	})
})
