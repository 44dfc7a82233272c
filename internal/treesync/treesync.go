package treesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Minhal128/CodeX/common/logger"
	"github.com/Minhal128/CodeX/common/metrics"
	"github.com/Minhal128/CodeX/internal/filetree"
	"github.com/Minhal128/CodeX/internal/sandbox"
)

var (
	ErrNilTree = errors.New("tree must not be nil")
	ErrClosed  = errors.New("synchronizer closed")
)

// Persister stores the canonical tree of a project.
type Persister interface {
	SaveFileTree(ctx context.Context, projectID string, tree filetree.Tree) error
}

// MountError reports a failed sandbox mirror of a tree generation. The
// canonical tree is not rolled back.
type MountError struct {
	Generation uint64
	Err        error
}

func (e *MountError) Error() string {
	return fmt.Sprintf("mounting generation %d: %v", e.Generation, e.Err)
}

func (e *MountError) Unwrap() error {
	return e.Err
}

type Option func(*Synchronizer)

// WithPersister saves locally originated changes for projectID.
func WithPersister(p Persister, projectID string) Option {
	return func(s *Synchronizer) {
		s.persister = p
		s.projectID = projectID
	}
}

// WithMountErrorHandler is OnMountError for handlers that must also see
// failures of the initial tree.
func WithMountErrorHandler(fn func(*MountError)) Option {
	return func(s *Synchronizer) {
		s.onMountError = fn
	}
}

// WithInitialTree seeds the canonical tree, typically with the stored copy of
// a project. The seed is mirrored as the first generation but never persisted.
func WithInitialTree(tree filetree.Tree) Option {
	return func(s *Synchronizer) {
		if len(tree) > 0 {
			s.seed = tree.Clone()
		}
	}
}

type changeOptions struct {
	remote bool
}

type ChangeOption func(*changeOptions)

// Remote marks a change as received from another participant. Remote
// changes are mirrored but not persisted.
func Remote() ChangeOption {
	return func(o *changeOptions) {
		o.remote = true
	}
}

type mountRequest struct {
	ctx        context.Context
	generation uint64
	tree       filetree.Tree
}

type persistRequest struct {
	ctx    context.Context
	serial uint64
	tree   filetree.Tree
}

// Synchronizer owns the canonical file tree of a project and keeps a sandbox
// mirror of it. Mutations apply synchronously; mirroring and persistence run
// on their own workers, each with at most one call in flight. A request
// queued behind a running mount replaces any older queued request, so the
// newest generation is always the last one mounted.
type Synchronizer struct {
	mounter   sandbox.Mounter
	persister Persister
	projectID string
	seed      filetree.Tree

	mu           sync.Mutex
	tree         filetree.Tree
	generation   uint64
	mounted      uint64
	mountErr     error
	pendingMount *mountRequest
	onMountError func(*MountError)

	persistSerial  uint64
	persistedUpTo  uint64
	pendingPersist *persistRequest

	// changed is closed and replaced whenever a worker finishes a request.
	changed chan struct{}
	closed  bool

	mountWake   chan struct{}
	persistWake chan struct{}
	stop        chan struct{}
	wg          sync.WaitGroup
}

func New(mounter sandbox.Mounter, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		mounter:     mounter,
		tree:        filetree.Tree{},
		changed:     make(chan struct{}),
		mountWake:   make(chan struct{}, 1),
		persistWake: make(chan struct{}, 1),
		stop:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.seed != nil {
		s.mu.Lock()
		s.commit(context.Background(), s.seed, changeOptions{remote: true})
		s.mu.Unlock()
		s.seed = nil
	}

	s.wg.Add(2)
	go s.mountLoop()
	go s.persistLoop()

	return s
}

// OnMountError registers fn to receive mirror failures. It is called from the
// mirror worker, never while the synchronizer's lock is held.
func (s *Synchronizer) OnMountError(fn func(*MountError)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMountError = fn
}

// ReplaceTree replaces the canonical tree. Replacing a tree with an equal one
// does nothing.
func (s *Synchronizer) ReplaceTree(ctx context.Context, tree filetree.Tree, opts ...ChangeOption) error {
	if tree == nil {
		return ErrNilTree
	}
	if err := filetree.Validate(tree); err != nil {
		return fmt.Errorf("validating tree: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if filetree.Equal(s.tree, tree) {
		slog.DebugContext(ctx, "tree unchanged, skipping replace")
		return nil
	}

	s.commit(ctx, tree.Clone(), applyChangeOptions(opts))
	return nil
}

// EditFile sets the contents of one file. path is "name" or "dir/name"; the
// directory must already exist. Writing identical contents does nothing.
func (s *Synchronizer) EditFile(ctx context.Context, path, contents string, opts ...ChangeOption) error {
	p, err := filetree.ParsePath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if node, ok := s.tree.Lookup(p); ok {
		if f, isFile := node.(filetree.File); isFile && f.Contents == contents {
			return nil
		}
	}

	next, err := s.tree.WithFile(p, contents)
	if err != nil {
		return err
	}

	s.commit(ctx, next, applyChangeOptions(opts))
	return nil
}

// CurrentTree returns a copy of the canonical tree.
func (s *Synchronizer) CurrentTree() filetree.Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Clone()
}

// Generation returns the number of changes applied so far.
func (s *Synchronizer) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// commit must be called with s.mu held. tree must not be shared.
func (s *Synchronizer) commit(ctx context.Context, tree filetree.Tree, o changeOptions) {
	s.tree = tree
	s.generation++

	detached := context.WithoutCancel(ctx)
	s.pendingMount = &mountRequest{ctx: detached, generation: s.generation, tree: tree}
	notify(s.mountWake)

	if !o.remote && s.persister != nil {
		s.persistSerial++
		s.pendingPersist = &persistRequest{ctx: detached, serial: s.persistSerial, tree: tree}
		notify(s.persistWake)
	}

	slog.DebugContext(ctx, "tree changed",
		"generation", s.generation,
		"remote", o.remote,
		"files", len(filetree.Paths(tree)))
}

// Settle blocks until the latest generation has been mirrored and any queued
// persistence has run. It returns the mount error of that generation.
func (s *Synchronizer) Settle(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.mounted >= s.generation && s.persistedUpTo >= s.persistSerial {
			err := s.mountErr
			s.mu.Unlock()
			return err
		}
		if s.closed {
			s.mu.Unlock()
			return ErrClosed
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// Close stops both workers after their current call completes. Queued
// requests that have not started are dropped.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.stop)
	s.broadcast()
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Synchronizer) mountLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stop:
			return
		case <-s.mountWake:
		}

		s.mu.Lock()
		req := s.pendingMount
		s.pendingMount = nil
		s.mu.Unlock()

		if req == nil {
			continue
		}
		s.mount(req)
	}
}

func (s *Synchronizer) mount(req *mountRequest) {
	ctx := logger.WithLogFields(req.ctx, logger.LogFields{Component: "codex.treesync.mirror"})

	var err error
	if s.mounter == nil {
		err = sandbox.ErrNotReady
	} else {
		err = s.mounter.Mount(ctx, req.tree)
	}

	s.mu.Lock()
	if req.generation < s.generation {
		s.mu.Unlock()
		metrics.SandboxMounts.WithLabelValues(metrics.ResultSuperseded).Inc()
		slog.DebugContext(ctx, "mount superseded",
			"generation", req.generation,
			"error", err)
		return
	}

	var mountErr *MountError
	if err != nil {
		mountErr = &MountError{Generation: req.generation, Err: err}
		s.mountErr = mountErr
	} else {
		s.mountErr = nil
	}
	s.mounted = req.generation
	handler := s.onMountError
	s.broadcast()
	s.mu.Unlock()

	if mountErr == nil {
		metrics.SandboxMounts.WithLabelValues(metrics.ResultOK).Inc()
		return
	}

	metrics.SandboxMounts.WithLabelValues(metrics.ResultError).Inc()
	slog.ErrorContext(ctx, "sandbox mount failed",
		"generation", req.generation,
		"error", err)
	if handler != nil {
		handler(mountErr)
	}
}

func (s *Synchronizer) persistLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stop:
			return
		case <-s.persistWake:
		}

		s.mu.Lock()
		req := s.pendingPersist
		s.pendingPersist = nil
		s.mu.Unlock()

		if req == nil {
			continue
		}
		s.persist(req)
	}
}

func (s *Synchronizer) persist(req *persistRequest) {
	ctx := logger.WithLogFields(req.ctx, logger.LogFields{
		ProjectID: logger.Ptr(s.projectID),
		Component: "codex.treesync.persist",
	})
	sc := logger.StartSpan(ctx, "treesync.persist")
	ctx = sc.Context()

	err := s.persister.SaveFileTree(ctx, s.projectID, req.tree)
	if err != nil {
		sc.RecordError(err)
		metrics.TreePersists.WithLabelValues(metrics.ResultError).Inc()
		slog.ErrorContext(ctx, "failed to persist file tree", "error", err)
	} else {
		metrics.TreePersists.WithLabelValues(metrics.ResultOK).Inc()
	}
	sc.End()

	s.mu.Lock()
	if req.serial > s.persistedUpTo {
		s.persistedUpTo = req.serial
	}
	s.broadcast()
	s.mu.Unlock()
}

// broadcast must be called with s.mu held.
func (s *Synchronizer) broadcast() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func applyChangeOptions(opts []ChangeOption) changeOptions {
	var o changeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
