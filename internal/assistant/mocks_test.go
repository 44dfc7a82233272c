package assistant_test

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Minhal128/CodeX/common/llm"
	"github.com/Minhal128/CodeX/internal/filetree"
	"github.com/Minhal128/CodeX/internal/model"
	"github.com/Minhal128/CodeX/internal/queue"
)

type mockProducer struct {
	mu    sync.Mutex
	tasks []queue.Task
	err   error
}

func (m *mockProducer) Enqueue(_ context.Context, task queue.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.tasks = append(m.tasks, task)
	return nil
}

func (m *mockProducer) enqueued() []queue.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]queue.Task(nil), m.tasks...)
}

// mockLLM answers every Chat call with reply, encoded the way the real
// client would decode a structured completion.
type mockLLM struct {
	chatFn   func(ctx context.Context, req llm.Request) (any, error)
	requests []llm.Request
}

func (m *mockLLM) Chat(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
	m.requests = append(m.requests, req)
	reply, err := m.chatFn(ctx, req)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(reply)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, result); err != nil {
		return nil, err
	}
	return &llm.Response{PromptTokens: 10, CompletionTokens: 5}, nil
}

func (m *mockLLM) Model() string { return "test-model" }

type mockProjects struct {
	getProjectFn   func(ctx context.Context, projectID string) (*model.Project, error)
	saveFileTreeFn func(ctx context.Context, projectID string, tree filetree.Tree) error
	saved          []filetree.Tree
}

func (m *mockProjects) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	return m.getProjectFn(ctx, projectID)
}

func (m *mockProjects) SaveFileTree(ctx context.Context, projectID string, tree filetree.Tree) error {
	m.saved = append(m.saved, tree)
	if m.saveFileTreeFn != nil {
		return m.saveFileTreeFn(ctx, projectID, tree)
	}
	return nil
}

type mockHistory struct {
	recentFn func(ctx context.Context, projectID string) ([]model.Message, error)
}

func (m *mockHistory) Recent(ctx context.Context, projectID string) ([]model.Message, error) {
	if m.recentFn != nil {
		return m.recentFn(ctx, projectID)
	}
	return nil, nil
}

type publishedEvent struct {
	key     string
	event   string
	payload any
}

type mockPublisher struct {
	events []publishedEvent
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, key, event string, payload any) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, publishedEvent{key: key, event: event, payload: payload})
	return nil
}
