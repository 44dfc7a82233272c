package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sync"

	"github.com/spf13/afero"

	"github.com/Minhal128/CodeX/common/logger"
	"github.com/Minhal128/CodeX/internal/filetree"
)

// ErrNotReady is returned by Mount when the sandbox has not been initialised.
var ErrNotReady = errors.New("sandbox not ready")

// Mounter mirrors a file tree into an execution environment. After a
// successful Mount the environment's files equal the tree.
type Mounter interface {
	Mount(ctx context.Context, tree filetree.Tree) error
}

// FSMounter mirrors trees into a directory of an afero filesystem.
type FSMounter struct {
	fs   afero.Fs
	root string

	mu sync.Mutex
}

const (
	dirPerm  fs.FileMode = 0o755
	filePerm fs.FileMode = 0o644
)

// NewFSMounter mirrors into root on fsys. root is created on first mount.
func NewFSMounter(fsys afero.Fs, root string) *FSMounter {
	if root == "" {
		root = "/"
	}
	return &FSMounter{fs: fsys, root: path.Clean(root)}
}

// NewDirMounter mirrors into dir on the host filesystem. All writes are
// confined to dir.
func NewDirMounter(dir string) (*FSMounter, error) {
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("creating sandbox dir: %w", err)
	}
	return NewFSMounter(afero.NewBasePathFs(osFs, dir), "/"), nil
}

func (m *FSMounter) Mount(ctx context.Context, tree filetree.Tree) error {
	if m == nil || m.fs == nil {
		return ErrNotReady
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sc := logger.StartSpan(ctx, "sandbox.mount")
	defer sc.End()
	ctx = sc.Context()

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := m.fs.MkdirAll(m.root, dirPerm); err != nil {
		sc.RecordError(err)
		return fmt.Errorf("creating sandbox root: %w", err)
	}

	want := expected(tree)

	removed, err := m.prune(m.root, "", want)
	if err != nil {
		sc.RecordError(err)
		return fmt.Errorf("removing stale entries: %w", err)
	}

	written := 0
	err = filetree.Walk(tree,
		func(p string, f filetree.File) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			full := path.Join(m.root, p)
			if current, err := afero.ReadFile(m.fs, full); err == nil && string(current) == f.Contents {
				return nil
			}
			if err := afero.WriteFile(m.fs, full, []byte(f.Contents), filePerm); err != nil {
				return fmt.Errorf("writing %s: %w", p, err)
			}
			written++
			return nil
		},
		func(p string) error {
			if err := m.fs.MkdirAll(path.Join(m.root, p), dirPerm); err != nil {
				return fmt.Errorf("creating %s: %w", p, err)
			}
			return nil
		},
	)
	if err != nil {
		sc.RecordError(err)
		return err
	}

	slog.DebugContext(ctx, "sandbox mounted",
		"root", m.root,
		"files_written", written,
		"entries_removed", removed)
	return nil
}

// prune removes every entry under dir that the tree does not contain, or
// contains with a different kind. It returns the number of entries removed.
func (m *FSMounter) prune(dir, rel string, want map[string]bool) (int, error) {
	entries, err := afero.ReadDir(m.fs, dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		relPath := entry.Name()
		if rel != "" {
			relPath = rel + "/" + entry.Name()
		}
		full := path.Join(dir, entry.Name())

		isDir, ok := want[relPath]
		if !ok || isDir != entry.IsDir() {
			if err := m.fs.RemoveAll(full); err != nil {
				return removed, fmt.Errorf("removing %s: %w", relPath, err)
			}
			removed++
			continue
		}
		if entry.IsDir() {
			n, err := m.prune(full, relPath, want)
			removed += n
			if err != nil {
				return removed, err
			}
		}
	}
	return removed, nil
}

// Snapshot reads the mounted files back into a tree.
func (m *FSMounter) Snapshot() (filetree.Tree, error) {
	if m == nil || m.fs == nil {
		return nil, ErrNotReady
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	exists, err := afero.DirExists(m.fs, m.root)
	if err != nil {
		return nil, err
	}
	if !exists {
		return filetree.Tree{}, nil
	}
	return m.read(m.root)
}

func (m *FSMounter) read(dir string) (filetree.Tree, error) {
	entries, err := afero.ReadDir(m.fs, dir)
	if err != nil {
		return nil, err
	}

	out := make(filetree.Tree, len(entries))
	for _, entry := range entries {
		full := path.Join(dir, entry.Name())
		if entry.IsDir() {
			children, err := m.read(full)
			if err != nil {
				return nil, err
			}
			out[entry.Name()] = filetree.Directory{Children: children}
			continue
		}
		data, err := afero.ReadFile(m.fs, full)
		if err != nil {
			return nil, err
		}
		out[entry.Name()] = filetree.File{Contents: string(data)}
	}
	return out, nil
}

// expected maps every path in tree to whether it is a directory.
func expected(tree filetree.Tree) map[string]bool {
	want := make(map[string]bool)
	_ = filetree.Walk(tree,
		func(p string, _ filetree.File) error {
			want[p] = false
			return nil
		},
		func(p string) error {
			want[p] = true
			return nil
		},
	)
	return want
}
