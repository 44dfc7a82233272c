package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Minhal128/CodeX/common/logger"
	"github.com/Minhal128/CodeX/internal/channel"
	"github.com/Minhal128/CodeX/internal/decoder"
	"github.com/Minhal128/CodeX/internal/directive"
	"github.com/Minhal128/CodeX/internal/filetree"
	"github.com/Minhal128/CodeX/internal/model"
	"github.com/Minhal128/CodeX/internal/sandbox"
	"github.com/Minhal128/CodeX/internal/template"
	"github.com/Minhal128/CodeX/internal/timeline"
	"github.com/Minhal128/CodeX/internal/treesync"
)

// ErrNotDelivered is returned by Send when the channel refused the message.
// The message stays in the timeline; sending it again is safe.
var ErrNotDelivered = errors.New("message not delivered")

// System is the sender of synthetic timeline entries.
var System = model.Participant{ID: "system", DisplayName: "CodeX"}

// Channel is the realtime transport a session talks through.
type Channel interface {
	Initialize(ctx context.Context, key string) error
	Send(ctx context.Context, event string, payload any) bool
	Receive(event string, handler channel.Handler) bool
	Reset(ctx context.Context) error
	State() channel.State
	Close()
}

// ProjectSource loads project metadata, including the stored file tree.
type ProjectSource interface {
	GetProject(ctx context.Context, projectID string) (*model.Project, error)
}

// Deps are the collaborators of a session.
type Deps struct {
	Self      model.Participant
	Projects  ProjectSource
	Channel   Channel
	Mounter   sandbox.Mounter
	Persister treesync.Persister
	// Decoder and Timeline are created when nil.
	Decoder  *decoder.Decoder
	Timeline *timeline.Timeline
}

// Session is one participant's live view of a project: its chat timeline, its
// file tree mirrored into a sandbox, and the channel shared with the other
// collaborators.
type Session struct {
	ctx      context.Context
	self     model.Participant
	project  *model.Project
	channel  Channel
	trees    *treesync.Synchronizer
	timeline *timeline.Timeline
	decoder  *decoder.Decoder
}

// Open loads projectID, mirrors its stored tree into the sandbox and joins
// the project channel. A channel that cannot connect yet does not fail Open;
// the channel keeps retrying and Send reports ErrNotDelivered meanwhile.
func Open(ctx context.Context, projectID string, deps Deps) (*Session, error) {
	if deps.Projects == nil || deps.Channel == nil {
		return nil, errors.New("workspace requires a project source and a channel")
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ProjectID: logger.Ptr(projectID),
		SenderID:  logger.Ptr(deps.Self.ID),
		Component: "codex.workspace",
	})

	project, err := deps.Projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading project %s: %w", projectID, err)
	}

	s := &Session{
		ctx:      context.WithoutCancel(ctx),
		self:     deps.Self,
		project:  project,
		channel:  deps.Channel,
		timeline: deps.Timeline,
		decoder:  deps.Decoder,
	}
	if s.timeline == nil {
		s.timeline = timeline.New()
	}
	if s.decoder == nil {
		s.decoder = decoder.New()
	}

	if err := filetree.Validate(project.FileTree); err != nil {
		return nil, fmt.Errorf("seeding file tree: %w", err)
	}
	syncOpts := []treesync.Option{
		treesync.WithInitialTree(project.FileTree),
		treesync.WithMountErrorHandler(s.onMountError),
	}
	if deps.Persister != nil {
		syncOpts = append(syncOpts, treesync.WithPersister(deps.Persister, projectID))
	}
	s.trees = treesync.New(deps.Mounter, syncOpts...)

	if err := s.channel.Initialize(ctx, projectID); err != nil {
		slog.WarnContext(ctx, "channel not connected yet, retrying in background", "error", err)
	}
	s.channel.Receive(model.EventProjectMessage, s.handleMessage)

	slog.InfoContext(ctx, "workspace opened",
		"project_name", project.Name,
		"files", len(filetree.Paths(project.FileTree)))
	return s, nil
}

// Send appends text to the timeline, carries out any directive it contains
// and publishes it to the other collaborators.
func (s *Session) Send(ctx context.Context, text string) error {
	msg := model.Message{Sender: s.self, Body: text}
	s.timeline.Append(timeline.Entry{
		Message: msg,
		Content: decoder.Text{Body: text},
		Origin:  timeline.Local,
	})

	if d, ok := directive.Recognize(s.self.IsAutomated(), text); ok {
		s.materialize(ctx, d)
	}

	if !s.channel.Send(ctx, model.EventProjectMessage, msg) {
		return ErrNotDelivered
	}
	return nil
}

// handleMessage applies one inbound project-message event.
func (s *Session) handleMessage(ctx context.Context, data json.RawMessage) {
	var msg model.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.WarnContext(ctx, "dropping malformed project message",
			"error", err,
			"data", logger.Truncate(string(data), 200))
		return
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ProjectID: logger.Ptr(s.project.ID),
		SenderID:  logger.Ptr(msg.Sender.ID),
		Component: "codex.workspace.inbound",
	})

	if !msg.Sender.IsAutomated() {
		s.timeline.Append(timeline.Entry{
			Message: msg,
			Content: decoder.Text{Body: msg.Body},
			Origin:  timeline.Remote,
		})
		if d, ok := directive.Recognize(false, msg.Body); ok {
			s.materialize(ctx, d, treesync.Remote())
		}
		return
	}

	content, tier := s.decoder.DecodeWithTier(msg.Body)
	slog.DebugContext(ctx, "assistant message decoded", "tier", tier)

	switch c := content.(type) {
	case decoder.TextWithTree:
		if len(c.Tree) == 0 {
			slog.InfoContext(ctx, "ignoring empty tree from assistant")
			break
		}
		if err := s.trees.ReplaceTree(ctx, c.Tree, treesync.Remote()); err != nil {
			slog.WarnContext(ctx, "rejecting tree from assistant", "error", err)
		}
	case decoder.TreePresenceFlag:
		if tmpl, ok := template.Match(msg.Body); ok {
			if err := s.trees.ReplaceTree(ctx, tmpl.Tree(), treesync.Remote()); err != nil {
				slog.WarnContext(ctx, "applying template tree failed", "template", tmpl.Name, "error", err)
			}
		}
	}

	s.timeline.Append(timeline.Entry{
		Message: msg,
		Content: content,
		Origin:  timeline.Remote,
	})
}

// materialize replaces the tree with the template for d, announcing progress
// and the result as synthetic entries.
func (s *Session) materialize(ctx context.Context, d directive.Directive, opts ...treesync.ChangeOption) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Directive: logger.Ptr(string(d))})

	tmpl, ok := template.For(d)
	if !ok {
		slog.WarnContext(ctx, "no template for directive")
		return
	}

	s.appendSynthetic(decoder.Text{Body: fmt.Sprintf("Working on it: creating a %s...", tmpl.Description)})

	tree := tmpl.Tree()
	if err := s.trees.ReplaceTree(ctx, tree, opts...); err != nil {
		slog.ErrorContext(ctx, "materializing template failed", "error", err)
		s.appendSynthetic(decoder.Text{Body: fmt.Sprintf("Could not create the %s: %v", tmpl.Description, err)})
		return
	}

	s.appendSynthetic(decoder.TextWithTree{
		Body: fmt.Sprintf("Created a %s with %d files.", tmpl.Description, len(filetree.Paths(tree))),
		Tree: tree,
	})
	slog.InfoContext(ctx, "directive materialized", "template", tmpl.Name)
}

func (s *Session) onMountError(err *treesync.MountError) {
	s.appendSynthetic(decoder.Text{Body: fmt.Sprintf("Sandbox update failed: %v", err.Err)})
}

func (s *Session) appendSynthetic(content decoder.Content) {
	s.timeline.Append(timeline.Entry{
		Message: model.Message{Sender: System, Body: content.Display()},
		Content: content,
		Origin:  timeline.Synthetic,
	})
}

// EditFile changes one file locally; the change is persisted.
func (s *Session) EditFile(ctx context.Context, path, contents string) error {
	return s.trees.EditFile(ctx, path, contents)
}

// ReplaceTree replaces the whole tree locally; the change is persisted.
func (s *Session) ReplaceTree(ctx context.Context, tree filetree.Tree) error {
	return s.trees.ReplaceTree(ctx, tree)
}

func (s *Session) Tree() filetree.Tree {
	return s.trees.CurrentTree()
}

func (s *Session) Project() model.Project {
	return *s.project
}

func (s *Session) Timeline() *timeline.Timeline {
	return s.timeline
}

func (s *Session) ChannelState() channel.State {
	return s.channel.State()
}

// ResetChannel reconnects after the channel gave up retrying.
func (s *Session) ResetChannel(ctx context.Context) error {
	return s.channel.Reset(ctx)
}

// Settle waits until the sandbox and storage have caught up with the tree.
func (s *Session) Settle(ctx context.Context) error {
	return s.trees.Settle(ctx)
}

func (s *Session) Close() {
	s.channel.Close()
	s.trees.Close()
	slog.InfoContext(s.ctx, "workspace closed")
}
