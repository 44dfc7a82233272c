package filetree

import (
	"fmt"
	"sort"
	"strings"
)

// Node is either a File or a Directory. The set of implementations is closed;
// consumers switch on the concrete type.
type Node interface {
	isNode()
}

// File is a leaf holding the full contents of one file.
type File struct {
	Contents string
}

// Directory holds named children. Names are unique because Children is a map.
type Directory struct {
	Children Tree
}

func (File) isNode()      {}
func (Directory) isNode() {}

// Tree maps root-level names to nodes. Directory.Children has the same shape.
type Tree map[string]Node

// Clone returns a deep copy. Mutating the copy never affects the receiver.
func (t Tree) Clone() Tree {
	if t == nil {
		return nil
	}
	out := make(Tree, len(t))
	for name, node := range t {
		switch n := node.(type) {
		case File:
			out[name] = n
		case Directory:
			out[name] = Directory{Children: n.Children.Clone()}
		}
	}
	return out
}

// Equal reports whether two trees have the same names, kinds and contents.
// A nil tree equals an empty one.
func Equal(a, b Tree) bool {
	if len(a) != len(b) {
		return false
	}
	for name, na := range a {
		nb, ok := b[name]
		if !ok {
			return false
		}
		switch x := na.(type) {
		case File:
			y, ok := nb.(File)
			if !ok || x.Contents != y.Contents {
				return false
			}
		case Directory:
			y, ok := nb.(Directory)
			if !ok || !Equal(x.Children, y.Children) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Lookup returns the node at p, if any.
func (t Tree) Lookup(p Path) (Node, bool) {
	if p.Dir == "" {
		n, ok := t[p.Name]
		return n, ok
	}
	dir, ok := t[p.Dir].(Directory)
	if !ok {
		return nil, false
	}
	n, ok := dir.Children[p.Name]
	return n, ok
}

// WithFile returns a copy of t in which the leaf at p holds contents. Only the
// root map and, for two-segment paths, the parent directory's map are copied;
// every other node is shared with t.
//
// The parent directory must already exist. A leaf that does not exist yet is
// created inside it. Addressing an existing directory as a file is an error.
func (t Tree) WithFile(p Path, contents string) (Tree, error) {
	out := make(Tree, len(t)+1)
	for name, node := range t {
		out[name] = node
	}

	if p.Dir == "" {
		if _, isDir := t[p.Name].(Directory); isDir {
			return nil, &PathError{Path: p.String(), Reason: "is a directory"}
		}
		out[p.Name] = File{Contents: contents}
		return out, nil
	}

	parent, ok := t[p.Dir].(Directory)
	if !ok {
		return nil, &PathError{Path: p.String(), Reason: fmt.Sprintf("directory %q does not exist", p.Dir)}
	}
	if _, isDir := parent.Children[p.Name].(Directory); isDir {
		return nil, &PathError{Path: p.String(), Reason: "is a directory"}
	}

	children := make(Tree, len(parent.Children)+1)
	for name, node := range parent.Children {
		children[name] = node
	}
	children[p.Name] = File{Contents: contents}
	out[p.Dir] = Directory{Children: children}
	return out, nil
}

// Walk calls fn for every file in t with its slash-separated path, in lexical
// order. Directories are visited before their contents via dirFn, which may be
// nil.
func Walk(t Tree, fn func(path string, f File) error, dirFn func(path string) error) error {
	return walk("", t, fn, dirFn)
}

func walk(prefix string, t Tree, fn func(string, File) error, dirFn func(string) error) error {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		full := name
		if prefix != "" {
			full = prefix + "/" + name
		}
		switch n := t[name].(type) {
		case File:
			if err := fn(full, n); err != nil {
				return err
			}
		case Directory:
			if dirFn != nil {
				if err := dirFn(full); err != nil {
					return err
				}
			}
			if err := walk(full, n.Children, fn, dirFn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Paths lists every file path in t, sorted.
func Paths(t Tree) []string {
	var out []string
	_ = Walk(t, func(path string, _ File) error {
		out = append(out, path)
		return nil
	}, nil)
	return out
}

// ValidName reports whether name can be used as a node name. Names are single
// path segments: non-empty, no slashes, not "." or "..".
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.ContainsRune(name, 0)
}

// Validate checks every name in t recursively.
func Validate(t Tree) error {
	for name, node := range t {
		if !ValidName(name) {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
		if dir, ok := node.(Directory); ok {
			if err := Validate(dir.Children); err != nil {
				return fmt.Errorf("in %q: %w", name, err)
			}
		}
	}
	return nil
}
