package workspace_test

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/spf13/afero"

	"github.com/Minhal128/CodeX/internal/decoder"
	"github.com/Minhal128/CodeX/internal/directive"
	"github.com/Minhal128/CodeX/internal/filetree"
	"github.com/Minhal128/CodeX/internal/model"
	"github.com/Minhal128/CodeX/internal/sandbox"
	"github.com/Minhal128/CodeX/internal/template"
	"github.com/Minhal128/CodeX/internal/timeline"
	"github.com/Minhal128/CodeX/internal/workspace"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var (
	alice     = model.Participant{ID: "u-alice", DisplayName: "Alice"}
	bob       = model.Participant{ID: "u-bob", DisplayName: "Bob"}
	assistant = model.Participant{ID: model.AssistantID, DisplayName: "AI"}
)

func storedTree() filetree.Tree {
	return filetree.Tree{
		"README.md": filetree.File{Contents: "# demo"},
		"src": filetree.Directory{Children: filetree.Tree{
			"main.js": filetree.File{Contents: "console.log(1)"},
		}},
	}
}

func templateTree(d directive.Directive) filetree.Tree {
	tmpl, ok := template.For(d)
	Expect(ok).To(BeTrue())
	return tmpl.Tree()
}

func texts(tl *timeline.Timeline) []string {
	var out []string
	for _, e := range tl.Entries() {
		out = append(out, e.Text())
	}
	return out
}

var _ = Describe("Session", func() {
	var (
		ctx       context.Context
		projects  *mockProjects
		ch        *mockChannel
		fs        afero.Fs
		mounter   *sandbox.FSMounter
		persister *mockPersister
		session   *workspace.Session
	)

	open := func() *workspace.Session {
		s, err := workspace.Open(ctx, "proj-1", workspace.Deps{
			Self:      alice,
			Projects:  projects,
			Channel:   ch,
			Mounter:   mounter,
			Persister: persister,
		})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(s.Close)
		return s
	}

	BeforeEach(func() {
		ctx = context.Background()
		projects = &mockProjects{
			getProjectFn: func(ctx context.Context, projectID string) (*model.Project, error) {
				return &model.Project{ID: projectID, Name: "demo", FileTree: storedTree()}, nil
			},
		}
		ch = &mockChannel{}
		fs = afero.NewMemMapFs()
		mounter = sandbox.NewFSMounter(fs, "/sandbox")
		persister = &mockPersister{}
	})

	Describe("Open", func() {
		It("mirrors the stored tree without persisting it", func() {
			session = open()
			Expect(session.Settle(ctx)).To(Succeed())

			Expect(filetree.Equal(session.Tree(), storedTree())).To(BeTrue())
			mounted, err := mounter.Snapshot()
			Expect(err).NotTo(HaveOccurred())
			Expect(filetree.Equal(mounted, storedTree())).To(BeTrue())
			Expect(persister.count()).To(BeZero())
		})

		It("joins the channel keyed by the project id", func() {
			session = open()
			Expect(ch.keys).To(Equal([]string{"proj-1"}))
			Expect(ch.handlers).To(HaveKey(model.EventProjectMessage))
		})

		It("fails when the project cannot be loaded", func() {
			projects.getProjectFn = func(ctx context.Context, projectID string) (*model.Project, error) {
				return nil, errors.New("not found")
			}
			_, err := workspace.Open(ctx, "proj-1", workspace.Deps{Self: alice, Projects: projects, Channel: ch})
			Expect(err).To(MatchError(ContainSubstring("not found")))
		})

		It("opens while the channel is still connecting", func() {
			ch.initializeFn = func(ctx context.Context, key string) error {
				return errors.New("connection refused")
			}
			session = open()
			Expect(session.Project().Name).To(Equal("demo"))
		})
	})

	Describe("Send", func() {
		BeforeEach(func() {
			session = open()
		})

		It("appends optimistically and publishes", func() {
			Expect(session.Send(ctx, "hello team")).To(Succeed())

			entries := session.Timeline().Entries()
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Origin).To(Equal(timeline.Local))
			Expect(entries[0].Text()).To(Equal("hello team"))
			Expect(ch.sent).To(Equal([]any{model.Message{Sender: alice, Body: "hello team"}}))
		})

		It("keeps the entry when the channel refuses", func() {
			ch.sendFn = func(context.Context, string, any) bool { return false }

			Expect(session.Send(ctx, "hello team")).To(MatchError(workspace.ErrNotDelivered))
			Expect(texts(session.Timeline())).To(Equal([]string{"hello team"}))
		})

		It("materializes a directive locally", func() {
			Expect(session.Send(ctx, "please @ai create react app now")).To(Succeed())
			Expect(session.Settle(ctx)).To(Succeed())

			react := templateTree(directive.ReactApp)
			Expect(filetree.Equal(session.Tree(), react)).To(BeTrue())

			entries := session.Timeline().Entries()
			Expect(entries).To(HaveLen(3))
			Expect(entries[0].Origin).To(Equal(timeline.Local))
			Expect(entries[1].Origin).To(Equal(timeline.Synthetic))
			Expect(entries[1].Text()).To(HavePrefix("Working on it"))
			Expect(entries[2].Content).To(BeAssignableToTypeOf(decoder.TextWithTree{}))

			Expect(persister.count()).To(Equal(1))
			mounted, err := mounter.Snapshot()
			Expect(err).NotTo(HaveOccurred())
			Expect(filetree.Equal(mounted, react)).To(BeTrue())
		})
	})

	Describe("inbound messages", func() {
		BeforeEach(func() {
			session = open()
			Expect(session.Settle(ctx)).To(Succeed())
		})

		It("shows human messages verbatim", func() {
			ch.deliver(ctx, model.Message{Sender: bob, Body: `{"body":"not decoded"}`})

			entries := session.Timeline().Entries()
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Origin).To(Equal(timeline.Remote))
			Expect(entries[0].Content).To(Equal(decoder.Text{Body: `{"body":"not decoded"}`}))
		})

		It("applies a tree sent by the assistant without persisting it", func() {
			ch.deliver(ctx, model.Message{
				Sender: assistant,
				Body:   `{"body":"Added a.txt","tree":{"a.txt":{"file":{"contents":"x"}}}}`,
			})
			Expect(session.Settle(ctx)).To(Succeed())

			Expect(session.Tree()).To(Equal(filetree.Tree{"a.txt": filetree.File{Contents: "x"}}))
			Expect(texts(session.Timeline())).To(Equal([]string{"Added a.txt"}))
			Expect(persister.count()).To(BeZero())
		})

		It("materializes a template the assistant only flagged", func() {
			ch.deliver(ctx, model.Message{
				Sender: assistant,
				Body:   `{"body":"Your React app is ready","tree":{"package.json":{"file":{"contents":"react-scripts start"`,
			})
			Expect(session.Settle(ctx)).To(Succeed())

			Expect(filetree.Equal(session.Tree(), templateTree(directive.ReactApp))).To(BeTrue())
			Expect(texts(session.Timeline())).To(Equal([]string{"Your React app is ready"}))
		})

		It("keeps the assistant's tree for a scaffolded project", func() {
			scaffolded, err := templateTree(directive.ExpressServer).WithFile(filetree.Path{Name: "app.js"}, "const app = express(); // mine")
			Expect(err).NotTo(HaveOccurred())
			Expect(session.ReplaceTree(ctx, scaffolded)).To(Succeed())
			Expect(session.Settle(ctx)).To(Succeed())

			reply, err := scaffolded.WithFile(filetree.Path{Dir: "routes", Name: "users.js"}, "const router = express.Router();")
			Expect(err).NotTo(HaveOccurred())
			body, err := json.Marshal(map[string]any{"body": "Added a users route", "tree": reply})
			Expect(err).NotTo(HaveOccurred())

			ch.deliver(ctx, model.Message{Sender: assistant, Body: string(body)})
			Expect(session.Settle(ctx)).To(Succeed())

			Expect(filetree.Equal(session.Tree(), reply)).To(BeTrue())
			mounted, err := mounter.Snapshot()
			Expect(err).NotTo(HaveOccurred())
			Expect(filetree.Equal(mounted, reply)).To(BeTrue())
			Expect(texts(session.Timeline())).To(Equal([]string{"Added a users route"}))
		})

		It("shows an excerpt of unreadable assistant output", func() {
			ch.deliver(ctx, model.Message{Sender: assistant, Body: "<<internal error>>"})

			entries := session.Timeline().Entries()
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Content).To(Equal(decoder.Unparseable{Excerpt: "<<internal error>>"}))
			Expect(filetree.Equal(session.Tree(), storedTree())).To(BeTrue())
		})

		It("ignores an empty tree from the assistant", func() {
			ch.deliver(ctx, model.Message{Sender: assistant, Body: `{"body":"nothing","tree":{}}`})
			Expect(filetree.Equal(session.Tree(), storedTree())).To(BeTrue())
		})

		It("follows directives from other collaborators without persisting", func() {
			ch.deliver(ctx, model.Message{Sender: bob, Body: "Create Express Server please"})
			Expect(session.Settle(ctx)).To(Succeed())

			Expect(filetree.Equal(session.Tree(), templateTree(directive.ExpressServer))).To(BeTrue())
			Expect(session.Timeline().Len()).To(Equal(3))
			Expect(persister.count()).To(BeZero())
		})

		It("does not treat assistant text as a directive", func() {
			ch.deliver(ctx, model.Message{Sender: assistant, Body: `{"body":"you could create react app yourself"}`})
			Expect(filetree.Equal(session.Tree(), storedTree())).To(BeTrue())
		})

		It("drops malformed events", func() {
			ch.deliverRaw(ctx, []byte(`"just a string"`))
			Expect(session.Timeline().Len()).To(BeZero())
		})
	})

	Describe("tree edits", func() {
		BeforeEach(func() {
			session = open()
			Expect(session.Settle(ctx)).To(Succeed())
		})

		It("persists local edits", func() {
			Expect(session.EditFile(ctx, "src/main.js", "console.log(2)")).To(Succeed())
			Expect(session.Settle(ctx)).To(Succeed())

			data, err := afero.ReadFile(fs, "/sandbox/src/main.js")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("console.log(2)"))
			Expect(persister.count()).To(Equal(1))
		})

		It("rejects edits to missing directories", func() {
			var pathErr *filetree.PathError
			Expect(errors.As(session.EditFile(ctx, "missing/App.js", "x"), &pathErr)).To(BeTrue())
			Expect(filetree.Equal(session.Tree(), storedTree())).To(BeTrue())
		})
	})

	It("reports sandbox failures in the timeline", func() {
		failing := &mockMounter{mountFn: func(context.Context, filetree.Tree) error {
			return errors.New("sandbox offline")
		}}
		s, err := workspace.Open(ctx, "proj-1", workspace.Deps{
			Self:     alice,
			Projects: projects,
			Channel:  ch,
			Mounter:  failing,
		})
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()

		Expect(s.Settle(ctx)).NotTo(Succeed())
		Eventually(func() []string { return texts(s.Timeline()) }).Should(ContainElement(ContainSubstring("sandbox offline")))
		Expect(filetree.Equal(s.Tree(), storedTree())).To(BeTrue())
	})

	It("resets and closes the channel", func() {
		session = open()
		Expect(session.ResetChannel(ctx)).To(Succeed())
		Expect(ch.resets).To(Equal(1))

		session.Close()
		Expect(ch.closed).To(BeTrue())
	})
})
