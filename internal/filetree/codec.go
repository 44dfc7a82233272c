package filetree

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Wire shape, shared by the channel payloads, the HTTP API and the projects
// table:
//
//	{ "<name>": { "file": { "contents": "..." } } | { "directory": { ... } } }

type wireFile struct {
	Contents string `json:"contents"`
}

type wireNode struct {
	File      *wireFile `json:"file,omitempty"`
	Directory *Tree     `json:"directory,omitempty"`
}

// MarshalJSON encodes the tree in its wire shape. A nil tree encodes as {}.
func (t Tree) MarshalJSON() ([]byte, error) {
	out := make(map[string]wireNode, len(t))
	for name, node := range t {
		switch n := node.(type) {
		case File:
			out[name] = wireNode{File: &wireFile{Contents: n.Contents}}
		case Directory:
			children := n.Children
			if children == nil {
				children = Tree{}
			}
			out[name] = wireNode{Directory: &children}
		default:
			return nil, fmt.Errorf("%w: %q has type %T", ErrInvalidNode, name, node)
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the wire shape at any depth. Every node must be an
// object with exactly one of "file" or "directory"; a file without
// "contents" is an empty file.
func (t *Tree) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*t = nil
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidNode, err)
	}

	out := make(Tree, len(raw))
	for name, rawNode := range raw {
		if !ValidName(name) {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
		node, err := decodeNode(rawNode)
		if err != nil {
			return fmt.Errorf("%q: %w", name, err)
		}
		out[name] = node
	}
	*t = out
	return nil
}

func decodeNode(data json.RawMessage) (Node, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%w: expected an object", ErrInvalidNode)
	}

	rawFile, hasFile := fields["file"]
	rawDir, hasDir := fields["directory"]
	switch {
	case hasFile && hasDir:
		return nil, fmt.Errorf("%w: both file and directory set", ErrInvalidNode)
	case hasFile:
		var f struct {
			Contents *string `json:"contents"`
		}
		if err := json.Unmarshal(rawFile, &f); err != nil {
			return nil, fmt.Errorf("%w: file: %v", ErrInvalidNode, err)
		}
		if f.Contents == nil {
			return File{}, nil
		}
		return File{Contents: *f.Contents}, nil
	case hasDir:
		var children Tree
		if err := children.UnmarshalJSON(rawDir); err != nil {
			return nil, err
		}
		if children == nil {
			children = Tree{}
		}
		return Directory{Children: children}, nil
	default:
		return nil, fmt.Errorf("%w: neither file nor directory", ErrInvalidNode)
	}
}

// Parse decodes a wire-shaped JSON document into a Tree.
func Parse(data []byte) (Tree, error) {
	var t Tree
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	if t == nil {
		t = Tree{}
	}
	return t, nil
}
