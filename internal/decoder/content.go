package decoder

import "github.com/Minhal128/CodeX/internal/filetree"

// UnparseableMarker prefixes the excerpt shown for payloads no tier could read.
const UnparseableMarker = "[unparseable payload] "

// Content is the decoded form of a message payload. The variants are Text,
// TextWithTree, TreePresenceFlag and Unparseable; the set is closed.
type Content interface {
	// Display returns text that is always safe to show in the timeline.
	Display() string
	isContent()
}

// Text is a payload with a body and no tree.
type Text struct {
	Body string
}

// TextWithTree is a payload whose tree was parsed structurally.
type TextWithTree struct {
	Body string
	Tree filetree.Tree
}

// TreePresenceFlag marks a payload that carries a tree which was not parsed,
// either because it matched a known template or because it was not a valid
// tree document.
type TreePresenceFlag struct {
	Body string
}

// Unparseable carries a bounded prefix of a payload no tier could read.
type Unparseable struct {
	Excerpt string
}

func (c Text) Display() string             { return c.Body }
func (c TextWithTree) Display() string     { return c.Body }
func (c TreePresenceFlag) Display() string { return c.Body }
func (c Unparseable) Display() string      { return UnparseableMarker + c.Excerpt }

func (Text) isContent()             {}
func (TextWithTree) isContent()     {}
func (TreePresenceFlag) isContent() {}
func (Unparseable) isContent()      {}
