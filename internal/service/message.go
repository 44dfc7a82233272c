package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Minhal128/CodeX/internal/model"
	"github.com/Minhal128/CodeX/internal/store"
)

// MessagePublisher delivers an event to every participant of a project
// channel. channel.Publisher implements it.
type MessagePublisher interface {
	Publish(ctx context.Context, key, event string, payload any) error
}

// MessageService injects chat messages into a project channel on behalf of
// integrations and the assistant.
type MessageService interface {
	Post(ctx context.Context, projectID string, msg model.Message) error
}

type messageService struct {
	projectStore store.ProjectStore
	publisher    MessagePublisher
}

func NewMessageService(projectStore store.ProjectStore, publisher MessagePublisher) MessageService {
	return &messageService{
		projectStore: projectStore,
		publisher:    publisher,
	}
}

func (s *messageService) Post(ctx context.Context, projectID string, msg model.Message) error {
	if strings.TrimSpace(msg.Sender.ID) == "" {
		return fmt.Errorf("%w: sender id is required", ErrInvalidMessage)
	}
	if strings.TrimSpace(msg.Body) == "" {
		return fmt.Errorf("%w: message is empty", ErrInvalidMessage)
	}

	if _, err := s.projectStore.GetByID(ctx, projectID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("getting project: %w", err)
	}

	if err := s.publisher.Publish(ctx, projectID, model.EventProjectMessage, msg); err != nil {
		slog.ErrorContext(ctx, "failed to publish message",
			"error", err,
			"project_id", projectID,
			"sender_id", msg.Sender.ID)
		return fmt.Errorf("publishing message: %w", err)
	}

	slog.InfoContext(ctx, "message posted",
		"project_id", projectID,
		"sender_id", msg.Sender.ID,
		"automated", msg.Sender.IsAutomated())
	return nil
}
