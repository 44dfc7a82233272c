package assistant_test

import (
	"context"
	"errors"

	"github.com/Minhal128/CodeX/common/llm"
	"github.com/Minhal128/CodeX/internal/assistant"
	"github.com/Minhal128/CodeX/internal/decoder"
	"github.com/Minhal128/CodeX/internal/filetree"
	"github.com/Minhal128/CodeX/internal/model"
	"github.com/Minhal128/CodeX/internal/queue"
	"github.com/Minhal128/CodeX/internal/store"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Responder", func() {
	var (
		ctx       context.Context
		client    *mockLLM
		projects  *mockProjects
		history   *mockHistory
		publisher *mockPublisher
		responder *assistant.Responder
		reply     assistant.Reply
		stored    filetree.Tree
	)

	ada := model.Participant{ID: "u1", DisplayName: "Ada Lovelace"}

	task := queue.Message{ID: "1-0", Task: queue.Task{
		TaskType:   queue.TaskTypeAssistantReply,
		ProjectID:  "proj-1",
		SenderID:   "u1",
		SenderName: "Ada Lovelace",
		Prompt:     "@ai add a footer",
		Attempt:    1,
	}}

	publishedBody := func() string {
		Expect(publisher.events).To(HaveLen(1))
		ev := publisher.events[0]
		Expect(ev.key).To(Equal("proj-1"))
		Expect(ev.event).To(Equal(model.EventProjectMessage))
		msg, ok := ev.payload.(model.Message)
		Expect(ok).To(BeTrue())
		Expect(msg.Sender.ID).To(Equal(model.AssistantID))
		Expect(msg.Sender.IsAutomated()).To(BeTrue())
		return msg.Body
	}

	BeforeEach(func() {
		ctx = context.Background()
		stored = filetree.Tree{
			"index.html": filetree.File{Contents: "<html></html>"},
			"src":        filetree.Directory{Children: filetree.Tree{"App.js": filetree.File{Contents: "old"}}},
		}
		reply = assistant.Reply{Body: "Added a footer."}

		client = &mockLLM{chatFn: func(context.Context, llm.Request) (any, error) {
			return reply, nil
		}}
		projects = &mockProjects{getProjectFn: func(_ context.Context, id string) (*model.Project, error) {
			return &model.Project{ID: id, FileTree: stored}, nil
		}}
		history = &mockHistory{recentFn: func(context.Context, string) ([]model.Message, error) {
			return []model.Message{
				{Sender: ada, Body: "morning"},
				{Sender: model.Participant{ID: model.AssistantID}, Body: "hi"},
				{Sender: ada, Body: "@ai add a footer"},
			}, nil
		}}
		publisher = &mockPublisher{}
	})

	JustBeforeEach(func() {
		responder = assistant.NewResponder(client, projects, history, publisher, "Codex AI")
	})

	It("publishes a structured payload with the updated tree and persists it", func() {
		reply.Files = []assistant.ReplyFile{
			{Path: "src/Footer.js", Contents: "footer"},
			{Path: "/src/App.js", Contents: "new"},
		}

		Expect(responder.Handle(ctx, task)).To(Succeed())

		content := decoder.Decode(publishedBody())
		withTree, ok := content.(decoder.TextWithTree)
		Expect(ok).To(BeTrue(), "expected TextWithTree, got %T", content)
		Expect(withTree.Body).To(Equal("Added a footer."))

		want := filetree.Tree{
			"index.html": filetree.File{Contents: "<html></html>"},
			"src": filetree.Directory{Children: filetree.Tree{
				"App.js":    filetree.File{Contents: "new"},
				"Footer.js": filetree.File{Contents: "footer"},
			}},
		}
		Expect(filetree.Equal(withTree.Tree, want)).To(BeTrue())
		Expect(projects.saved).To(HaveLen(1))
		Expect(filetree.Equal(projects.saved[0], want)).To(BeTrue())

		// The stored tree is not mutated in place.
		app, _ := stored.Lookup(filetree.Path{Dir: "src", Name: "App.js"})
		Expect(app).To(Equal(filetree.File{Contents: "old"}))
	})

	It("sends the conversation and current files to the model", func() {
		Expect(responder.Handle(ctx, task)).To(Succeed())

		Expect(client.requests).To(HaveLen(1))
		req := client.requests[0]
		Expect(req.SchemaName).NotTo(BeEmpty())
		Expect(req.Schema).NotTo(BeNil())
		Expect(req.SystemPrompt).To(ContainSubstring("--- src/App.js\nold"))
		Expect(req.Messages).To(Equal([]llm.Message{
			{Role: llm.RoleUser, Name: "Ada Lovelace", Content: "morning"},
			{Role: llm.RoleAssistant, Content: "hi"},
			{Role: llm.RoleUser, Name: "Ada Lovelace", Content: "@ai add a footer"},
		}))
	})

	It("adds the prompt when history is unavailable", func() {
		history.recentFn = func(context.Context, string) ([]model.Message, error) {
			return nil, errors.New("redis down")
		}

		Expect(responder.Handle(ctx, task)).To(Succeed())
		Expect(client.requests[0].Messages).To(Equal([]llm.Message{
			{Role: llm.RoleUser, Name: "Ada Lovelace", Content: "@ai add a footer"},
		}))
	})

	It("publishes text only when no file changes", func() {
		Expect(responder.Handle(ctx, task)).To(Succeed())

		Expect(decoder.Decode(publishedBody())).To(Equal(decoder.Text{Body: "Added a footer."}))
		Expect(projects.saved).To(BeEmpty())
	})

	It("skips files it cannot place", func() {
		reply.Files = []assistant.ReplyFile{
			{Path: "a/b/c.js", Contents: "too deep"},
			{Path: "index.html/x", Contents: "under a file"},
		}

		Expect(responder.Handle(ctx, task)).To(Succeed())
		Expect(decoder.Decode(publishedBody())).To(BeAssignableToTypeOf(decoder.Text{}))
		Expect(projects.saved).To(BeEmpty())
	})

	It("treats a missing project as permanent", func() {
		projects.getProjectFn = func(context.Context, string) (*model.Project, error) {
			return nil, store.ErrNotFound
		}

		err := responder.Handle(ctx, task)
		Expect(err).To(MatchError(assistant.ErrPermanent))
		Expect(assistant.Retryable(ctx, err)).To(BeFalse())
		Expect(publisher.events).To(BeEmpty())
	})

	It("does not publish when persistence fails", func() {
		reply.Files = []assistant.ReplyFile{{Path: "README.md", Contents: "# hi"}}
		projects.saveFileTreeFn = func(context.Context, string, filetree.Tree) error {
			return errors.New("connection refused")
		}

		err := responder.Handle(ctx, task)
		Expect(err).To(MatchError(ContainSubstring("saving file tree")))
		Expect(assistant.Retryable(ctx, err)).To(BeTrue())
		Expect(publisher.events).To(BeEmpty())
	})

	It("surfaces model failures", func() {
		client.chatFn = func(context.Context, llm.Request) (any, error) {
			return nil, llm.ErrEmptyResponse
		}

		Expect(responder.Handle(ctx, task)).To(MatchError(llm.ErrEmptyResponse))
	})
})

var _ = Describe("ApplyFiles", func() {
	It("creates missing directories and leaves the base untouched", func() {
		base := filetree.Tree{"a.txt": filetree.File{Contents: "a"}}

		tree, applied := assistant.ApplyFiles(context.Background(), base, []assistant.ReplyFile{
			{Path: "lib/util.js", Contents: "u"},
			{Path: "a.txt", Contents: "b"},
		})

		Expect(applied).To(Equal(2))
		Expect(filetree.Equal(tree, filetree.Tree{
			"a.txt": filetree.File{Contents: "b"},
			"lib":   filetree.Directory{Children: filetree.Tree{"util.js": filetree.File{Contents: "u"}}},
		})).To(BeTrue())
		Expect(base).To(HaveLen(1))
		Expect(base["a.txt"]).To(Equal(filetree.File{Contents: "a"}))
	})

	It("handles an empty base", func() {
		tree, applied := assistant.ApplyFiles(context.Background(), nil, []assistant.ReplyFile{{Path: "x", Contents: "1"}})
		Expect(applied).To(Equal(1))
		Expect(tree).To(HaveKeyWithValue("x", filetree.File{Contents: "1"}))
	})
})
