package parse

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"

	"git.home.luguber.info/inful/dexbuilder/internal/catalog"
)

var excessiveNewlines = regexp.MustCompile(`\n{3,}`)

func newMarkdownConverter() *md.Converter {
	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.GitHubFlavored())
	return conv
}

type sectionDraft struct {
	heading string
	html    strings.Builder
}

func (s *sectionDraft) add(node *goquery.Selection) {
	h, err := goquery.OuterHtml(node)
	if err != nil {
		return
	}
	s.html.WriteString(h)
}

// splitSections walks the prose region of an entry page and produces one text
// block per article section. Everything before the table of contents is the
// summary; after it each h2 opens a new section, capped at maxBodySections so
// a whole wiki article does not end up in the dictionary. The summary block
// carries an empty heading and always sorts first.
func splitSections(content *goquery.Selection, maxBodySections int) ([]catalog.TextBlock, error) {
	summary := &sectionDraft{}
	var sections []*sectionDraft
	inBody := false

	content.Children().EachWithBreak(func(_ int, node *goquery.Selection) bool {
		if id, ok := node.Attr("id"); ok && id == "toc" {
			inBody = true
			return true
		}
		if !inBody {
			summary.add(node)
			return true
		}
		if goquery.NodeName(node) == "h2" {
			if len(sections) >= maxBodySections {
				return false
			}
			sections = append(sections, &sectionDraft{heading: strings.TrimSpace(node.Text())})
			return true
		}
		if len(sections) == 0 {
			summary.add(node)
			return true
		}
		sections[len(sections)-1].add(node)
		return true
	})

	conv := newMarkdownConverter()
	var blocks []catalog.TextBlock
	for _, draft := range append([]*sectionDraft{summary}, sections...) {
		text, err := conv.ConvertString(draft.html.String())
		if err != nil {
			return nil, err
		}
		text = strings.TrimSpace(excessiveNewlines.ReplaceAllString(text, "\n\n"))
		if text == "" {
			continue
		}
		blocks = append(blocks, catalog.TextBlock{Heading: draft.heading, Markdown: text})
	}
	return blocks, nil
}
