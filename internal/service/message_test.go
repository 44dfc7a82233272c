package service_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Minhal128/CodeX/internal/model"
	"github.com/Minhal128/CodeX/internal/service"
	"github.com/Minhal128/CodeX/internal/store"
)

var _ = Describe("MessageService", func() {
	var (
		svc       service.MessageService
		projects  *mockProjectStore
		publisher *mockPublisher
		ctx       context.Context
		msg       model.Message
	)

	BeforeEach(func() {
		ctx = context.Background()
		projects = &mockProjectStore{}
		publisher = &mockPublisher{}
		svc = service.NewMessageService(projects, publisher)
		msg = model.Message{
			Sender: model.Participant{ID: "bot-7", DisplayName: "CI"},
			Body:   "build passed",
		}
	})

	It("publishes a project-message on the project channel", func() {
		Expect(svc.Post(ctx, "proj-1", msg)).To(Succeed())

		events := publisher.events()
		Expect(events).To(HaveLen(1))
		Expect(events[0].key).To(Equal("proj-1"))
		Expect(events[0].event).To(Equal(model.EventProjectMessage))
		Expect(events[0].payload).To(Equal(msg))
	})

	DescribeTable("rejects incomplete messages without publishing",
		func(m model.Message) {
			Expect(svc.Post(ctx, "proj-1", m)).To(MatchError(service.ErrInvalidMessage))
			Expect(publisher.events()).To(BeEmpty())
		},
		Entry("missing sender", model.Message{Body: "hi"}),
		Entry("blank body", model.Message{Sender: model.Participant{ID: "u1"}, Body: "  "}),
	)

	It("refuses unknown projects", func() {
		projects.getByIDFn = func(context.Context, string) (*model.Project, error) {
			return nil, store.ErrNotFound
		}

		Expect(svc.Post(ctx, "nope", msg)).To(MatchError(service.ErrProjectNotFound))
		Expect(publisher.events()).To(BeEmpty())
	})

	It("wraps publish failures", func() {
		publisher.publishFn = func(context.Context, string, string, any) error {
			return errors.New("redis: connection refused")
		}

		err := svc.Post(ctx, "proj-1", msg)
		Expect(err).To(MatchError(ContainSubstring("publishing message")))
	})
})
