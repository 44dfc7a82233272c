package workspace_test

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Minhal128/CodeX/internal/channel"
	"github.com/Minhal128/CodeX/internal/filetree"
	"github.com/Minhal128/CodeX/internal/model"
)

type mockProjects struct {
	getProjectFn func(ctx context.Context, projectID string) (*model.Project, error)
}

func (m *mockProjects) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	if m.getProjectFn != nil {
		return m.getProjectFn(ctx, projectID)
	}
	return &model.Project{ID: projectID, Name: "demo"}, nil
}

type mockChannel struct {
	initializeFn func(ctx context.Context, key string) error
	sendFn       func(ctx context.Context, event string, payload any) bool

	mu       sync.Mutex
	keys     []string
	handlers map[string]channel.Handler
	sent     []any
	resets   int
	closed   bool
}

func (m *mockChannel) Initialize(ctx context.Context, key string) error {
	m.mu.Lock()
	m.keys = append(m.keys, key)
	m.handlers = make(map[string]channel.Handler)
	m.mu.Unlock()
	if m.initializeFn != nil {
		return m.initializeFn(ctx, key)
	}
	return nil
}

func (m *mockChannel) Send(ctx context.Context, event string, payload any) bool {
	if m.sendFn != nil {
		return m.sendFn(ctx, event, payload)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, payload)
	return true
}

func (m *mockChannel) Receive(event string, handler channel.Handler) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handlers == nil {
		return false
	}
	m.handlers[event] = handler
	return true
}

func (m *mockChannel) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	return nil
}

func (m *mockChannel) State() channel.State {
	return channel.State{Phase: channel.Connected}
}

func (m *mockChannel) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

// deliver hands msg to the registered project-message handler, as the
// channel's reader goroutine would.
func (m *mockChannel) deliver(ctx context.Context, msg model.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		panic(err)
	}
	m.deliverRaw(ctx, data)
}

func (m *mockChannel) deliverRaw(ctx context.Context, data []byte) {
	m.mu.Lock()
	handler := m.handlers[model.EventProjectMessage]
	m.mu.Unlock()
	if handler != nil {
		handler(ctx, data)
	}
}

type mockMounter struct {
	mountFn func(ctx context.Context, tree filetree.Tree) error
}

func (m *mockMounter) Mount(ctx context.Context, tree filetree.Tree) error {
	if m.mountFn != nil {
		return m.mountFn(ctx, tree)
	}
	return nil
}

type mockPersister struct {
	mu    sync.Mutex
	trees []filetree.Tree
}

func (m *mockPersister) SaveFileTree(ctx context.Context, projectID string, tree filetree.Tree) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trees = append(m.trees, tree.Clone())
	return nil
}

func (m *mockPersister) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.trees)
}
