// Package render builds one dictionary entry fragment per catalog entry. The
// fragment grammar is the Dictionary Services schema: a d:entry element
// carrying d:index search terms and an XHTML body. Everything the renderer
// writes is escaped here; page-derived rich text arrives as Markdown and goes
// through goldmark instead of being passed through raw.
package render

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"

	"git.home.luguber.info/inful/dexbuilder/internal/catalog"
)

// Renderer turns resolved catalog entries into <d:entry> fragments.
type Renderer struct {
	md         goldmark.Markdown
	entryByURL map[string]catalog.EntryID
	outputs    map[string]string
}

// NewRenderer prepares a renderer over the resolved batch. entries provides
// the page-URL index used to turn in-text links into dictionary references;
// outputs maps image source keys to the artifact file names staged under
// images/. Image references without an output are rendered as missing.
func NewRenderer(entries []*catalog.Entry, outputs map[string]string) *Renderer {
	byURL := make(map[string]catalog.EntryID, len(entries))
	for _, e := range entries {
		if e.PageURL != "" {
			byURL[e.PageURL] = e.ID
		}
	}
	if outputs == nil {
		outputs = make(map[string]string)
	}
	return &Renderer{md: newMarkdown(), entryByURL: byURL, outputs: outputs}
}

// Entry renders one entry fragment ending in a newline.
func (r *Renderer) Entry(e *catalog.Entry) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "<d:entry id=\"%s\" d:title=\"%s\">\n", e.ID.Anchor(), escapeAttr(e.Name))
	r.writeIndexTerms(&b, e)

	b.WriteString("<div class=\"entry-container\">\n")
	fmt.Fprintf(&b, "<div class=\"entry-id\">%s</div>\n", e.ID.Display())
	fmt.Fprintf(&b, "<h1 class=\"entry-name\">%s</h1>\n", escapeText(e.Name))
	if e.Pronunciation != "" {
		fmt.Fprintf(&b, "<span class=\"pronunciation\">%s</span>\n", escapeText(e.Pronunciation))
	}
	if len(e.Categories) > 0 {
		b.WriteString("<ul class=\"entry-categories\">\n")
		for _, c := range e.Categories {
			fmt.Fprintf(&b, "<li>%s</li>\n", escapeText(c))
		}
		b.WriteString("</ul>\n")
	}
	if e.JapaneseName != "" {
		if e.Pronunciation != "" {
			fmt.Fprintf(&b, "<div class=\"entry-name-jp\">%s (%s)</div>\n",
				escapeText(e.JapaneseName), escapeText(e.Pronunciation))
		} else {
			fmt.Fprintf(&b, "<div class=\"entry-name-jp\">%s</div>\n", escapeText(e.JapaneseName))
		}
	}
	r.writeArtwork(&b, e)
	writeStats(&b, e.Stats)
	writeRelations(&b, e)
	if err := r.writeTextBlocks(&b, e); err != nil {
		return "", err
	}
	writeFooter(&b, e.PageURL)
	b.WriteString("</div>\n</d:entry>\n")
	return b.String(), nil
}

// artworkItem is one renderable info-box image. pos is the image's position
// in the full artwork sequence so element ids and index anchors stay aligned
// even when earlier images failed to build.
type artworkItem struct {
	ref  catalog.ImageRef
	pos  int
	file string
}

func (r *Renderer) artworkItems(e *catalog.Entry) []artworkItem {
	var items []artworkItem
	pos := 0
	for _, ref := range e.Images {
		if ref.Body {
			continue
		}
		p := pos
		pos++
		file, ok := r.outputs[ref.SourceKey]
		if !ok {
			continue
		}
		items = append(items, artworkItem{ref: ref, pos: p, file: file})
	}
	return items
}

func (r *Renderer) writeIndexTerms(b *strings.Builder, e *catalog.Entry) {
	seen := map[string]bool{e.Name: true}
	fmt.Fprintf(b, "<d:index d:value=\"%s\" />\n", escapeAttr(e.Name))
	if e.JapaneseName != "" && !seen[e.JapaneseName] {
		seen[e.JapaneseName] = true
		fmt.Fprintf(b, "<d:index d:value=\"%s\" />\n", escapeAttr(e.JapaneseName))
	}
	if e.Pronunciation != "" && !seen[e.Pronunciation] {
		seen[e.Pronunciation] = true
		fmt.Fprintf(b, "<d:index d:value=\"%s\" />\n", escapeAttr(e.Pronunciation))
	}
	for _, item := range r.artworkItems(e) {
		if item.ref.Caption == "" {
			continue
		}
		term := item.ref.Caption
		if !strings.Contains(term, e.Name) {
			// captions like "Spring Form" need the name to be findable
			term = e.Name + " - " + term
		}
		if seen[term] {
			continue
		}
		seen[term] = true
		fmt.Fprintf(b, "<d:index d:value=\"%s\" d:anchor=\"xpointer(//*[@id='artwork-%d'])\" />\n",
			escapeAttr(term), item.pos)
	}
}

func (r *Renderer) writeArtwork(b *strings.Builder, e *catalog.Entry) {
	items := r.artworkItems(e)
	if len(items) == 0 {
		return
	}
	b.WriteString("<ul class=\"entry-artwork\">\n")
	i := 0
	for i < len(items) {
		if items[i].ref.Flex && i+1 < len(items) && items[i+1].ref.Flex {
			b.WriteString("<li class=\"entry-artwork-flex\"><ul>\n")
			for i < len(items) && items[i].ref.Flex {
				writeArtworkItem(b, items[i])
				i++
			}
			b.WriteString("</ul></li>\n")
		} else {
			writeArtworkItem(b, items[i])
			i++
		}
	}
	b.WriteString("</ul>\n")
}

func writeArtworkItem(b *strings.Builder, item artworkItem) {
	fmt.Fprintf(b, "<li class=\"entry-image\" id=\"artwork-%d\">\n", item.pos)
	fmt.Fprintf(b, "<img alt=\"%s\" src=\"images/%s\"", escapeAttr(item.ref.Alt), escapeAttr(item.file))
	if item.ref.DisplayWidth > 0 {
		fmt.Fprintf(b, " style=\"width: %dpx\"", item.ref.DisplayWidth)
	}
	b.WriteString(" />\n")
	if item.ref.Caption != "" {
		fmt.Fprintf(b, "<div class=\"image-caption\">%s</div>\n", escapeText(item.ref.Caption))
	}
	b.WriteString("</li>\n")
}

func writeStats(b *strings.Builder, s catalog.Stats) {
	if s.Empty() {
		return
	}
	type row struct{ label, value string }
	var rows []row
	if s.HeightM > 0 {
		rows = append(rows, row{"Height", strconv.FormatFloat(s.HeightM, 'f', -1, 64) + " m"})
	}
	if s.WeightKG > 0 {
		rows = append(rows, row{"Weight", strconv.FormatFloat(s.WeightKG, 'f', -1, 64) + " kg"})
	}
	if s.HP > 0 {
		rows = append(rows, row{"HP", strconv.Itoa(s.HP)})
	}
	if s.Attack > 0 {
		rows = append(rows, row{"Attack", strconv.Itoa(s.Attack)})
	}
	if s.Defense > 0 {
		rows = append(rows, row{"Defense", strconv.Itoa(s.Defense)})
	}
	if s.Speed > 0 {
		rows = append(rows, row{"Speed", strconv.Itoa(s.Speed)})
	}
	if len(rows) == 0 {
		return
	}
	b.WriteString("<table class=\"entry-stats\"><tbody>\n")
	for _, r := range rows {
		fmt.Fprintf(b, "<tr><th>%s</th><td>%s</td></tr>\n", r.label, escapeText(r.value))
	}
	b.WriteString("</tbody></table>\n")
}

var relationGroups = []struct {
	kind  catalog.RelationKind
	label string
}{
	{catalog.RelationEvolutionPredecessor, "Evolves from"},
	{catalog.RelationEvolutionSuccessor, "Evolves into"},
	{catalog.RelationAlternateForm, "Forms"},
	{catalog.RelationTypeAssociation, "Related"},
}

// writeRelations renders resolved references grouped by kind. Unresolved
// references never render; the resolver has already reported them.
func writeRelations(b *strings.Builder, e *catalog.Entry) {
	var gb strings.Builder
	for _, g := range relationGroups {
		var links []string
		for _, rel := range e.RelationsOfKind(g.kind) {
			if !rel.Resolved {
				continue
			}
			name := rel.TargetName
			if name == "" {
				name = rel.TargetID.Display()
			}
			links = append(links, fmt.Sprintf("<a href=\"x-dictionary:r:%s\">%s</a>",
				rel.TargetID.Anchor(), escapeText(name)))
		}
		if len(links) == 0 {
			continue
		}
		fmt.Fprintf(&gb, "<div class=\"relation-group relation-%s\"><span class=\"relation-label\">%s</span> %s</div>\n",
			g.kind, g.label, strings.Join(links, ", "))
	}
	if gb.Len() == 0 {
		return
	}
	b.WriteString("<div class=\"entry-relations\">\n")
	b.WriteString(gb.String())
	b.WriteString("</div>\n")
}

func (r *Renderer) writeTextBlocks(b *strings.Builder, e *catalog.Entry) error {
	for _, block := range e.TextBlocks {
		if block.Heading != "" {
			fmt.Fprintf(b, "<h2 class=\"section-heading\">%s</h2>\n", escapeText(block.Heading))
		}
		xhtml, err := r.markdownXHTML(block.Markdown)
		if err != nil {
			return err
		}
		b.WriteString(xhtml)
	}
	return nil
}

func writeFooter(b *strings.Builder, pageURL string) {
	if pageURL == "" {
		return
	}
	label := "Read more"
	if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
		label = "Read more on " + u.Host
	}
	fmt.Fprintf(b, "<div class=\"footer-read-more\"><a href=\"%s\">%s</a></div>\n",
		escapeAttr(pageURL), escapeText(label))
}
