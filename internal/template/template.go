package template

import (
	"strings"

	"github.com/Minhal128/CodeX/internal/directive"
	"github.com/Minhal128/CodeX/internal/filetree"
)

// Template is a known project shape that can be materialized without parsing
// a generated tree.
type Template struct {
	Directive   directive.Directive
	Name        string
	Description string

	// Keywords identify payloads that carry this template's tree. They are
	// matched case-insensitively and should not occur in ordinary prose.
	Keywords []string

	build func() filetree.Tree
}

// Tree returns a fresh copy of the template's files.
func (t Template) Tree() filetree.Tree {
	return t.build()
}

var registry = []Template{
	{
		Directive:   directive.ReactApp,
		Name:        "react-app",
		Description: "React app",
		Keywords:    []string{"react-scripts", "create-react-app"},
		build:       reactApp,
	},
	{
		Directive:   directive.ExpressServer,
		Name:        "express-server",
		Description: "Express server",
		Keywords:    []string{"express()", "express.router"},
		build:       expressServer,
	},
}

// For returns the template materializing d.
func For(d directive.Directive) (Template, bool) {
	for _, t := range registry {
		if t.Directive == d {
			return t, true
		}
	}
	return Template{}, false
}

// Match returns the first template whose keywords occur in text.
func Match(text string) (Template, bool) {
	lowered := strings.ToLower(text)
	for _, t := range registry {
		for _, kw := range t.Keywords {
			if strings.Contains(lowered, strings.ToLower(kw)) {
				return t, true
			}
		}
	}
	return Template{}, false
}

// Keywords lists every template keyword.
func Keywords() []string {
	var out []string
	for _, t := range registry {
		out = append(out, t.Keywords...)
	}
	return out
}
