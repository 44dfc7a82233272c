package worker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/Minhal128/CodeX/internal/queue"
	"github.com/Minhal128/CodeX/internal/worker"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Worker", func() {
	var (
		ctx      context.Context
		consumer *mockConsumer
		handler  *mockHandler
		w        *worker.Worker
		cfg      worker.Config
	)

	msg := func(id string, attempt int) queue.Message {
		return queue.Message{ID: id, Task: queue.Task{
			TaskType:  queue.TaskTypeAssistantReply,
			ProjectID: "proj-1",
			Prompt:    "@ai hi",
			Attempt:   attempt,
		}}
	}

	BeforeEach(func() {
		ctx = context.Background()
		consumer = &mockConsumer{}
		handler = &mockHandler{}
		cfg = worker.Config{MaxAttempts: 3}
	})

	JustBeforeEach(func() {
		w = worker.New(consumer, handler, cfg)
	})

	Describe("ProcessMessage", func() {
		It("acks a handled message", func() {
			Expect(w.ProcessMessage(ctx, msg("1-0", 1))).To(Succeed())
			Expect(consumer.acked).To(Equal([]string{"1-0"}))
			Expect(consumer.requeued).To(BeEmpty())
		})

		It("still succeeds when the ack fails", func() {
			consumer.ackErr = errors.New("connection reset")
			Expect(w.ProcessMessage(ctx, msg("1-0", 1))).To(Succeed())
		})

		It("requeues a failure below the attempt limit", func() {
			handler.handleFn = func(context.Context, queue.Message) error {
				return errors.New("timeout")
			}

			Expect(w.ProcessMessage(ctx, msg("1-0", 1))).To(MatchError("timeout"))
			Expect(consumer.requeued).To(Equal([]string{"1-0"}))
			Expect(consumer.dead).To(BeEmpty())
			Expect(consumer.acked).To(BeEmpty())
		})

		It("sends to the DLQ once attempts are exhausted", func() {
			handler.handleFn = func(context.Context, queue.Message) error {
				return errors.New("timeout")
			}

			Expect(w.ProcessMessage(ctx, msg("1-0", 3))).NotTo(Succeed())
			Expect(consumer.dead).To(Equal([]string{"1-0"}))
			Expect(consumer.requeued).To(BeEmpty())
		})

		Context("with a retry classifier", func() {
			BeforeEach(func() {
				cfg.Retryable = func(_ context.Context, err error) bool {
					return err.Error() != "bad request"
				}
			})

			It("dead-letters non-retryable errors on the first attempt", func() {
				handler.handleFn = func(context.Context, queue.Message) error {
					return errors.New("bad request")
				}

				Expect(w.ProcessMessage(ctx, msg("1-0", 1))).NotTo(Succeed())
				Expect(consumer.dead).To(Equal([]string{"1-0"}))
			})
		})

		It("turns a panic into a failure", func() {
			handler.handleFn = func(context.Context, queue.Message) error {
				panic("nil tree")
			}

			err := w.ProcessMessage(ctx, msg("1-0", 1))
			Expect(err).To(MatchError(ContainSubstring("panic: nil tree")))
			Expect(consumer.requeued).To(Equal([]string{"1-0"}))
		})
	})

	Describe("Run", func() {
		It("processes batches until stopped", func() {
			var reads atomic.Int32
			consumer.readFn = func(context.Context) ([]queue.Message, error) {
				if reads.Add(1) == 1 {
					return []queue.Message{msg("1-0", 1), msg("2-0", 1)}, nil
				}
				time.Sleep(5 * time.Millisecond)
				return nil, nil
			}

			done := make(chan error, 1)
			go func() { done <- w.Run(ctx) }()

			Eventually(consumer.ackedIDs).Should(Equal([]string{"1-0", "2-0"}))
			w.Stop()
			Eventually(done).Should(Receive(BeNil()))
		})

		It("returns when the context is cancelled", func() {
			cfg.ErrorBackoff = 5 * time.Millisecond
			consumer.readFn = func(context.Context) ([]queue.Message, error) {
				return nil, errors.New("redis down")
			}

			runCtx, cancel := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() { done <- w.Run(runCtx) }()

			cancel()
			Eventually(done).Should(Receive(MatchError(context.Canceled)))
		})
	})
})
