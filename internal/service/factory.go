package service

import (
	"github.com/Minhal128/CodeX/internal/store"
)

type Services struct {
	stores    *store.Stores
	txRunner  TxRunner
	publisher MessagePublisher
}

func NewServices(stores *store.Stores, txRunner TxRunner, publisher MessagePublisher) *Services {
	return &Services{
		stores:    stores,
		txRunner:  txRunner,
		publisher: publisher,
	}
}

func (s *Services) Users() UserService {
	return NewUserService(s.stores.Users())
}

func (s *Services) Projects() ProjectService {
	return NewProjectService(s.stores.Projects(), s.txRunner)
}

func (s *Services) Messages() MessageService {
	return NewMessageService(s.stores.Projects(), s.publisher)
}
