package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/Minhal128/CodeX/common/logger"
	"github.com/Minhal128/CodeX/internal/channel"
	"github.com/Minhal128/CodeX/internal/decoder"
	"github.com/Minhal128/CodeX/internal/directive"
	"github.com/Minhal128/CodeX/internal/model"
	"github.com/Minhal128/CodeX/internal/queue"
)

const DefaultMention = "@ai"

type ListenerConfig struct {
	ChannelPrefix string
	// MentionToken addresses the assistant, matched case-insensitively.
	MentionToken string
}

// Listener watches every project channel, records chat history and
// enqueues an assistant task for each human message that mentions the
// assistant.
type Listener struct {
	client   redis.UniversalClient
	history  *History
	producer queue.Producer
	prefix   string
	mention  string
}

func NewListener(client redis.UniversalClient, cfg ListenerConfig, history *History, producer queue.Producer) *Listener {
	prefix := cfg.ChannelPrefix
	if prefix == "" {
		prefix = channel.DefaultPrefix
	}
	mention := cfg.MentionToken
	if mention == "" {
		mention = DefaultMention
	}
	return &Listener{
		client:   client,
		history:  history,
		producer: producer,
		prefix:   prefix,
		mention:  strings.ToLower(mention),
	}
}

// Run blocks until ctx is cancelled or the subscription fails.
func (l *Listener) Run(ctx context.Context) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "codex.assistant.listener",
	})

	ps := l.client.PSubscribe(ctx, l.prefix+"*")
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s*: %w", l.prefix, err)
	}
	slog.InfoContext(ctx, "assistant listener started", "pattern", l.prefix+"*")

	messages := ps.Channel()
	for {
		var msg *redis.Message
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("channel subscription closed")
			}
			msg = m
		}

		key := strings.TrimPrefix(msg.Channel, l.prefix)
		if err := l.HandlePayload(ctx, key, []byte(msg.Payload)); err != nil {
			slog.ErrorContext(ctx, "failed to handle channel message",
				"error", err,
				"channel", msg.Channel)
		}
	}
}

// HandlePayload processes one raw channel event for project key.
func (l *Listener) HandlePayload(ctx context.Context, key string, payload []byte) error {
	var env channel.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		slog.DebugContext(ctx, "ignoring non-envelope payload", "error", err)
		return nil
	}
	if env.Event != model.EventProjectMessage {
		return nil
	}

	var msg model.Message
	if err := json.Unmarshal(env.Data, &msg); err != nil {
		slog.DebugContext(ctx, "ignoring malformed project message", "error", err)
		return nil
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ProjectID: &key,
		SenderID:  &msg.Sender.ID,
	})

	if err := l.history.Append(ctx, key, historyEntry(msg)); err != nil {
		// A reply with less context still beats no reply.
		slog.WarnContext(ctx, "failed to record history", "error", err)
	}

	if msg.Sender.IsAutomated() || !strings.Contains(strings.ToLower(msg.Body), l.mention) {
		return nil
	}
	if d, ok := directive.Recognize(false, msg.Body); ok {
		slog.DebugContext(ctx, "mention carries a directive, leaving it to the template",
			"directive", string(d))
		return nil
	}

	sc := logger.StartSpan(ctx, "assistant.enqueue")
	defer sc.End()
	ctx = sc.Context()

	task := queue.Task{
		TaskType:   queue.TaskTypeAssistantReply,
		ProjectID:  key,
		SenderID:   msg.Sender.ID,
		SenderName: msg.Sender.DisplayName,
		Prompt:     msg.Body,
		TraceID:    sc.Span().SpanContext().TraceID().String(),
	}
	if !sc.Span().SpanContext().HasTraceID() {
		task.TraceID = ""
	}

	if err := l.producer.Enqueue(ctx, task); err != nil {
		sc.RecordError(err)
		return fmt.Errorf("enqueueing assistant task: %w", err)
	}
	return nil
}

// historyEntry strips trees from assistant payloads so the history keeps
// only what was said.
func historyEntry(msg model.Message) model.Message {
	if !msg.Sender.IsAutomated() {
		return msg
	}
	return model.Message{
		Sender: msg.Sender,
		Body:   decoder.Decode(msg.Body).Display(),
	}
}
