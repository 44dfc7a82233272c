package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Minhal128/CodeX/internal/filetree"
	"github.com/Minhal128/CodeX/internal/http/handler"
	"github.com/Minhal128/CodeX/internal/model"
	"github.com/Minhal128/CodeX/internal/service"
)

var _ = Describe("ProjectHandler", func() {
	var (
		router   *gin.Engine
		projects *mockProjectService
		messages *mockMessageService
	)

	BeforeEach(func() {
		router = gin.New()
		projects = &mockProjectService{}
		messages = &mockMessageService{}
		h := handler.NewProjectHandler(projects, messages)

		rg := router.Group("/api/v1/projects")
		rg.POST("", h.Create)
		rg.GET("/:id", h.Get)
		rg.PUT("/:id/file-tree", h.SaveFileTree)
		rg.PUT("/:id/collaborators", h.AddCollaborators)
		rg.POST("/:id/messages", h.PostMessage)
	})

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	Describe("Get", func() {
		It("returns the project wrapped in a project envelope", func() {
			projects.getProjectFn = func(_ context.Context, id string) (*model.Project, error) {
				return &model.Project{
					ID:   id,
					Name: "demo",
					Users: []model.User{
						{ID: "u1", DisplayName: "Ada"},
					},
					FileTree: filetree.Tree{
						"src": filetree.Directory{Children: filetree.Tree{
							"App.js": filetree.File{Contents: "x"},
						}},
					},
				}, nil
			}

			w := do(http.MethodGet, "/api/v1/projects/proj-1", "")
			Expect(w.Code).To(Equal(http.StatusOK))

			var resp struct {
				Project struct {
					ID       string          `json:"id"`
					Name     string          `json:"name"`
					Users    []map[string]any `json:"users"`
					FileTree filetree.Tree   `json:"fileTree"`
				} `json:"project"`
			}
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Project.ID).To(Equal("proj-1"))
			Expect(resp.Project.Users).To(HaveLen(1))
			Expect(resp.Project.Users[0]["displayName"]).To(Equal("Ada"))

			node, ok := resp.Project.FileTree.Lookup(filetree.Path{Dir: "src", Name: "App.js"})
			Expect(ok).To(BeTrue())
			Expect(node).To(Equal(filetree.File{Contents: "x"}))
		})

		It("renders a missing tree as an empty object", func() {
			w := do(http.MethodGet, "/api/v1/projects/proj-1", "")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring(`"fileTree":{}`))
		})

		It("returns 404 for unknown projects", func() {
			projects.getProjectFn = func(context.Context, string) (*model.Project, error) {
				return nil, service.ErrProjectNotFound
			}

			w := do(http.MethodGet, "/api/v1/projects/nope", "")
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("returns 500 without leaking internal errors", func() {
			projects.getProjectFn = func(context.Context, string) (*model.Project, error) {
				return nil, errors.New("pq: password authentication failed")
			}

			w := do(http.MethodGet, "/api/v1/projects/proj-1", "")
			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			Expect(w.Body.String()).NotTo(ContainSubstring("password"))
		})
	})

	Describe("SaveFileTree", func() {
		It("decodes the wire tree and returns 204", func() {
			var (
				gotID   string
				gotTree filetree.Tree
			)
			projects.saveFileTreeFn = func(_ context.Context, id string, tree filetree.Tree) error {
				gotID, gotTree = id, tree
				return nil
			}

			w := do(http.MethodPut, "/api/v1/projects/proj-1/file-tree",
				`{"projectId":"proj-1","fileTree":{"index.js":{"file":{"contents":"hi"}},"src":{"directory":{}}}}`)

			Expect(w.Code).To(Equal(http.StatusNoContent))
			Expect(gotID).To(Equal("proj-1"))
			Expect(gotTree).To(HaveLen(2))
			Expect(gotTree["index.js"]).To(Equal(filetree.File{Contents: "hi"}))
			Expect(gotTree["src"]).To(Equal(filetree.Directory{Children: filetree.Tree{}}))
		})

		It("accepts a body without projectId", func() {
			w := do(http.MethodPut, "/api/v1/projects/proj-1/file-tree", `{"fileTree":{}}`)
			Expect(w.Code).To(Equal(http.StatusNoContent))
		})

		DescribeTable("rejects bad bodies with 400",
			func(body string) {
				w := do(http.MethodPut, "/api/v1/projects/proj-1/file-tree", body)
				Expect(w.Code).To(Equal(http.StatusBadRequest))
				Expect(projects.saveCalls).To(BeZero())
			},
			Entry("missing fileTree", `{"projectId":"proj-1"}`),
			Entry("null fileTree", `{"fileTree":null}`),
			Entry("node that is neither file nor directory", `{"fileTree":{"a":{"link":"b"}}}`),
			Entry("name with a slash", `{"fileTree":{"a/b":{"file":{"contents":""}}}}`),
			Entry("mismatched projectId", `{"projectId":"other","fileTree":{}}`),
			Entry("not json", `fileTree=1`),
		)

		It("returns 404 when the project does not exist", func() {
			projects.saveFileTreeFn = func(context.Context, string, filetree.Tree) error {
				return service.ErrProjectNotFound
			}

			w := do(http.MethodPut, "/api/v1/projects/nope/file-tree", `{"fileTree":{}}`)
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("AddCollaborators", func() {
		It("returns the updated project", func() {
			var gotIDs []string
			projects.addCollaboratorsFn = func(_ context.Context, id string, ids []string) (*model.Project, error) {
				gotIDs = ids
				return &model.Project{ID: id, Users: []model.User{{ID: "u1"}, {ID: "u2"}}}, nil
			}

			w := do(http.MethodPut, "/api/v1/projects/proj-1/collaborators", `{"projectId":"proj-1","users":["u1","u2"]}`)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(gotIDs).To(Equal([]string{"u1", "u2"}))
			Expect(w.Body.String()).To(ContainSubstring(`"id":"u2"`))
		})

		It("rejects an empty user list", func() {
			w := do(http.MethodPut, "/api/v1/projects/proj-1/collaborators", `{"users":[]}`)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 404 for unknown users", func() {
			projects.addCollaboratorsFn = func(context.Context, string, []string) (*model.Project, error) {
				return nil, service.ErrUserNotFound
			}

			w := do(http.MethodPut, "/api/v1/projects/proj-1/collaborators", `{"users":["ghost"]}`)
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("Create", func() {
		It("creates a project with an optional tree", func() {
			var gotTree filetree.Tree
			projects.createFn = func(_ context.Context, name, owner string, tree filetree.Tree) (*model.Project, error) {
				Expect(name).To(Equal("demo"))
				Expect(owner).To(Equal("u1"))
				gotTree = tree
				return &model.Project{ID: "p1", Name: name}, nil
			}

			w := do(http.MethodPost, "/api/v1/projects", `{"name":"demo","ownerId":"u1"}`)
			Expect(w.Code).To(Equal(http.StatusCreated))
			Expect(gotTree).To(BeNil())
		})

		It("maps invalid trees to 400", func() {
			projects.createFn = func(context.Context, string, string, filetree.Tree) (*model.Project, error) {
				return nil, service.ErrInvalidTree
			}

			w := do(http.MethodPost, "/api/v1/projects", `{"name":"demo","ownerId":"u1","fileTree":{}}`)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("PostMessage", func() {
		It("posts the message and returns 202", func() {
			var got model.Message
			messages.postFn = func(_ context.Context, id string, msg model.Message) error {
				Expect(id).To(Equal("proj-1"))
				got = msg
				return nil
			}

			w := do(http.MethodPost, "/api/v1/projects/proj-1/messages",
				`{"sender":{"id":"ci","displayName":"CI"},"message":"deploy finished"}`)
			Expect(w.Code).To(Equal(http.StatusAccepted))
			Expect(got).To(Equal(model.Message{
				Sender: model.Participant{ID: "ci", DisplayName: "CI"},
				Body:   "deploy finished",
			}))
		})

		It("requires a sender id", func() {
			w := do(http.MethodPost, "/api/v1/projects/proj-1/messages", `{"sender":{},"message":"hi"}`)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("maps an unknown project to 404", func() {
			messages.postFn = func(context.Context, string, model.Message) error {
				return service.ErrProjectNotFound
			}

			w := do(http.MethodPost, "/api/v1/projects/nope/messages", `{"sender":{"id":"ci"},"message":"hi"}`)
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})
})
