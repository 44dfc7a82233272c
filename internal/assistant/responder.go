package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Minhal128/CodeX/common/llm"
	"github.com/Minhal128/CodeX/common/logger"
	"github.com/Minhal128/CodeX/internal/filetree"
	"github.com/Minhal128/CodeX/internal/model"
	"github.com/Minhal128/CodeX/internal/queue"
)

// ErrPermanent marks failures that another attempt cannot fix.
var ErrPermanent = errors.New("permanent assistant failure")

const (
	schemaName = "assistant_reply"
	// Upper bound on file contents placed in the prompt.
	maxContextBytes = 48 * 1024
)

const systemPrompt = `You are the coding assistant of a collaborative project workspace.
Several people chat in the same project and share one file tree.
Answer the latest message that mentions you. Keep "body" short and conversational.
When the request needs code changes, return every file you create or change in "files"
with its full contents. Paths are either "name" or "dir/name"; deeper nesting is not supported.
Leave "files" empty when no file needs to change.`

// Reply is the structured output requested from the model.
type Reply struct {
	Body  string      `json:"body" jsonschema:"description=Chat reply shown to the collaborators"`
	Files []ReplyFile `json:"files" jsonschema:"description=Files to create or overwrite"`
}

type ReplyFile struct {
	Path     string `json:"path" jsonschema:"description=File path, either name or dir/name"`
	Contents string `json:"contents" jsonschema:"description=Complete file contents"`
}

// payload is the structured message body the workspace decoder reads.
type payload struct {
	Body string        `json:"body"`
	Tree filetree.Tree `json:"tree,omitempty"`
}

type ProjectStore interface {
	GetProject(ctx context.Context, projectID string) (*model.Project, error)
	SaveFileTree(ctx context.Context, projectID string, tree filetree.Tree) error
}

type HistoryReader interface {
	Recent(ctx context.Context, projectID string) ([]model.Message, error)
}

type Publisher interface {
	Publish(ctx context.Context, key, event string, payload any) error
}

// Responder answers queued mentions: it asks the model for a reply, applies
// the returned files to the project tree, persists it and publishes the
// structured payload on the project channel.
type Responder struct {
	llm       llm.Client
	projects  ProjectStore
	history   HistoryReader
	publisher Publisher
	self      model.Participant
}

func NewResponder(client llm.Client, projects ProjectStore, history HistoryReader, publisher Publisher, displayName string) *Responder {
	if displayName == "" {
		displayName = "AI"
	}
	return &Responder{
		llm:       client,
		projects:  projects,
		history:   history,
		publisher: publisher,
		self:      model.Participant{ID: model.AssistantID, DisplayName: displayName},
	}
}

func (r *Responder) Handle(ctx context.Context, msg queue.Message) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "codex.assistant.responder",
	})

	project, err := r.projects.GetProject(ctx, msg.ProjectID)
	if err != nil {
		return fmt.Errorf("%w: loading project: %v", ErrPermanent, err)
	}

	history, err := r.history.Recent(ctx, msg.ProjectID)
	if err != nil {
		slog.WarnContext(ctx, "answering without history", "error", err)
		history = nil
	}

	var reply Reply
	resp, err := r.llm.Chat(ctx, llm.Request{
		SystemPrompt: systemPrompt + "\n\n" + describeTree(project.FileTree),
		Messages:     conversation(history, msg.Task),
		SchemaName:   schemaName,
		Schema:       llm.GenerateSchema[Reply](),
	}, &reply)
	if err != nil {
		return fmt.Errorf("generating reply: %w", err)
	}

	slog.InfoContext(ctx, "assistant reply generated",
		"files", len(reply.Files),
		"prompt_tokens", resp.PromptTokens,
		"completion_tokens", resp.CompletionTokens)

	out := payload{Body: strings.TrimSpace(reply.Body)}
	if out.Body == "" {
		out.Body = "Done."
	}

	if len(reply.Files) > 0 {
		tree, applied := ApplyFiles(ctx, project.FileTree, reply.Files)
		if applied > 0 {
			if err := r.projects.SaveFileTree(ctx, msg.ProjectID, tree); err != nil {
				return fmt.Errorf("saving file tree: %w", err)
			}
			out.Tree = tree
		}
	}

	body, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("%w: encoding payload: %v", ErrPermanent, err)
	}

	if err := r.publisher.Publish(ctx, msg.ProjectID, model.EventProjectMessage, model.Message{
		Sender: r.self,
		Body:   string(body),
	}); err != nil {
		return fmt.Errorf("publishing reply: %w", err)
	}
	return nil
}

// Retryable reports whether a failed task deserves another attempt.
func Retryable(ctx context.Context, err error) bool {
	if errors.Is(err, ErrPermanent) {
		return false
	}
	return llm.IsRetryable(ctx, err)
}

// ApplyFiles writes files onto a copy of base, creating missing root
// directories. Files that cannot be placed are skipped. It returns the new
// tree and the number of files written.
func ApplyFiles(ctx context.Context, base filetree.Tree, files []ReplyFile) (filetree.Tree, int) {
	tree := base.Clone()
	if tree == nil {
		tree = filetree.Tree{}
	}

	applied := 0
	for _, f := range files {
		p, err := filetree.ParsePath(strings.TrimSpace(f.Path))
		if err != nil {
			slog.WarnContext(ctx, "skipping assistant file", "path", f.Path, "error", err)
			continue
		}
		if p.Dir != "" {
			if _, exists := tree[p.Dir]; !exists {
				tree[p.Dir] = filetree.Directory{Children: filetree.Tree{}}
			}
		}
		next, err := tree.WithFile(p, f.Contents)
		if err != nil {
			slog.WarnContext(ctx, "skipping assistant file", "path", f.Path, "error", err)
			continue
		}
		tree = next
		applied++
	}
	return tree, applied
}

func conversation(history []model.Message, task queue.Task) []llm.Message {
	out := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		if m.Sender.IsAutomated() {
			out = append(out, llm.Message{Role: llm.RoleAssistant, Content: m.Body})
			continue
		}
		out = append(out, llm.Message{Role: llm.RoleUser, Name: m.Sender.DisplayName, Content: m.Body})
	}

	// The listener records the mention before enqueueing it; add it when the
	// history was unavailable or already trimmed past it.
	if len(history) == 0 || history[len(history)-1].Body != task.Prompt {
		out = append(out, llm.Message{Role: llm.RoleUser, Name: task.SenderName, Content: task.Prompt})
	}
	return out
}

func describeTree(tree filetree.Tree) string {
	if len(tree) == 0 {
		return "The project has no files yet."
	}

	var b strings.Builder
	b.WriteString("Current project files:\n")
	budget := maxContextBytes
	_ = filetree.Walk(tree, func(path string, f filetree.File) error {
		if budget <= 0 {
			fmt.Fprintf(&b, "\n--- %s (contents omitted)\n", path)
			return nil
		}
		contents := f.Contents
		if len(contents) > budget {
			contents = contents[:budget]
		}
		budget -= len(contents)
		fmt.Fprintf(&b, "\n--- %s\n%s\n", path, contents)
		return nil
	}, nil)
	return b.String()
}
