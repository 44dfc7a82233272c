package template_test

import (
	"encoding/json"
	"strings"

	"github.com/Minhal128/CodeX/internal/directive"
	"github.com/Minhal128/CodeX/internal/filetree"
	"github.com/Minhal128/CodeX/internal/template"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Templates", func() {
	DescribeTable("every directive has a two-level template",
		func(d directive.Directive, wantPath string) {
			tmpl, ok := template.For(d)
			Expect(ok).To(BeTrue())

			tree := tmpl.Tree()
			Expect(filetree.Validate(tree)).To(Succeed())
			Expect(filetree.Paths(tree)).To(ContainElement(wantPath))
			for _, p := range filetree.Paths(tree) {
				Expect(strings.Count(p, "/")).To(BeNumerically("<=", 1), p)
			}
		},
		Entry("react", directive.ReactApp, "src/App.js"),
		Entry("express", directive.ExpressServer, "routes/index.js"),
	)

	It("returns independent trees on every call", func() {
		tmpl, _ := template.For(directive.ReactApp)
		first := tmpl.Tree()
		first["src"].(filetree.Directory).Children["App.js"] = filetree.File{Contents: "mutated"}
		Expect(filetree.Equal(first, tmpl.Tree())).To(BeFalse())
	})

	It("matches serialized template trees by keyword", func() {
		for _, d := range []directive.Directive{directive.ReactApp, directive.ExpressServer} {
			tmpl, _ := template.For(d)
			data, err := json.Marshal(tmpl.Tree())
			Expect(err).NotTo(HaveOccurred())

			matched, ok := template.Match(string(data))
			Expect(ok).To(BeTrue())
			Expect(matched.Directive).To(Equal(d))
		}
	})

	It("does not match ordinary prose", func() {
		_, ok := template.Match("I expressed interest in reacting quickly")
		Expect(ok).To(BeFalse())
	})

	It("exposes all keywords", func() {
		Expect(template.Keywords()).To(ContainElements("react-scripts", "express()"))
	})
})
