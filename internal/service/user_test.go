package service_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Minhal128/CodeX/internal/model"
	"github.com/Minhal128/CodeX/internal/service"
)

var _ = Describe("UserService", func() {
	var (
		svc       service.UserService
		mockStore *mockUserStore
		ctx       context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		mockStore = &mockUserStore{}
		svc = service.NewUserService(mockStore)
	})

	Describe("Create", func() {
		It("should create user with generated snowflake ID", func() {
			var captured *model.User
			mockStore.createFn = func(_ context.Context, u *model.User) error {
				captured = u
				return nil
			}

			user, err := svc.Create(ctx, " Ada ", "ada@example.com")

			Expect(err).NotTo(HaveOccurred())
			Expect(user.ID).NotTo(BeEmpty())
			Expect(user.ID).NotTo(Equal(model.AssistantID))
			Expect(user.DisplayName).To(Equal("Ada"))
			Expect(user.Email).To(Equal("ada@example.com"))
			Expect(captured).To(BeIdenticalTo(user))
		})

		It("should reject a blank display name", func() {
			_, err := svc.Create(ctx, "  ", "")
			Expect(err).To(MatchError(service.ErrInvalidInput))
		})

		It("should propagate store errors", func() {
			mockStore.createFn = func(context.Context, *model.User) error {
				return errors.New("duplicate key value violates unique constraint")
			}

			user, err := svc.Create(ctx, "Ada", "ada@example.com")
			Expect(err).To(MatchError(ContainSubstring("duplicate key")))
			Expect(user).To(BeNil())
		})
	})

	Describe("List", func() {
		It("should return the directory", func() {
			mockStore.listFn = func(context.Context) ([]model.User, error) {
				return []model.User{{ID: "1", DisplayName: "Ada"}, {ID: "2", DisplayName: "Grace"}}, nil
			}

			users, err := svc.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(HaveLen(2))
		})

		It("should wrap store errors", func() {
			mockStore.listFn = func(context.Context) ([]model.User, error) {
				return nil, errors.New("timeout")
			}

			_, err := svc.List(ctx)
			Expect(err).To(MatchError(ContainSubstring("listing users")))
		})
	})
})
