package render

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"

	"git.home.luguber.info/inful/dexbuilder/internal/parse"
)

func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithXHTML()),
	)
}

// markdownXHTML renders one text block's Markdown to an XHTML fragment. Links
// to catalog pages become in-dictionary references, body image placeholders
// become references into the staged image tree, and images whose artifact was
// never built are dropped.
func (r *Renderer) markdownXHTML(markdown string) (string, error) {
	source := []byte(strings.ReplaceAll(markdown, "&nbsp;", " "))
	root := r.md.Parser().Parse(text.NewReader(source))

	var drop []gmast.Node
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Link:
			if id, ok := r.entryByURL[string(node.Destination)]; ok {
				node.Destination = []byte("x-dictionary:r:" + id.Anchor())
				node.Title = nil
			}
		case *gmast.Image:
			key, ok := strings.CutPrefix(string(node.Destination), parse.BodyImageScheme)
			if !ok {
				break
			}
			name, built := r.outputs[key]
			if !built {
				drop = append(drop, node)
				break
			}
			node.Destination = []byte("images/" + name)
		}
		return gmast.WalkContinue, nil
	})
	for _, n := range drop {
		if p := n.Parent(); p != nil {
			p.RemoveChild(p, n)
		}
	}

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, source, root); err != nil {
		return "", err
	}
	return fixElementSpacing(buf.String()), nil
}

// fixElementSpacing keeps the dictionary compiler from collapsing the space
// between adjacent inline elements by pinning it with a no-break space and a
// word-break opportunity.
func fixElementSpacing(s string) string {
	s = strings.ReplaceAll(s, "</strong> <em", "</strong> <wbr/><em")
	s = strings.ReplaceAll(s, "</a> <a", "</a> <wbr/><a")
	return s
}
