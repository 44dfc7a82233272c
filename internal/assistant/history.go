package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/Minhal128/CodeX/internal/model"
)

const (
	historyPrefix       = "codex:history:"
	defaultHistoryLimit = 30
)

// History keeps the most recent chat messages of each project in a capped
// Redis list, newest first.
type History struct {
	client redis.UniversalClient
	limit  int64
}

func NewHistory(client redis.UniversalClient, limit int) *History {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &History{client: client, limit: int64(limit)}
}

func historyKey(projectID string) string {
	return historyPrefix + projectID
}

func (h *History) Append(ctx context.Context, projectID string, msg model.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding history entry: %w", err)
	}

	key := historyKey(projectID)
	_, err = h.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, h.limit-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("appending history for %s: %w", projectID, err)
	}
	return nil
}

// Recent returns up to the configured number of messages, oldest first.
func (h *History) Recent(ctx context.Context, projectID string) ([]model.Message, error) {
	raw, err := h.client.LRange(ctx, historyKey(projectID), 0, h.limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading history for %s: %w", projectID, err)
	}

	out := make([]model.Message, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var msg model.Message
		if err := json.Unmarshal([]byte(raw[i]), &msg); err != nil {
			slog.WarnContext(ctx, "skipping malformed history entry", "error", err)
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}
