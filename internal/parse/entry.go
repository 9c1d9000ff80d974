// Package parse turns fetched wiki pages into catalog entries. The parser is
// strict about the landmarks every entry page must have (the info box, the
// name, the entry identifier) and tolerant about everything else: a missing
// stat row or broken image degrades the entry instead of failing it.
package parse

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"git.home.luguber.info/inful/dexbuilder/internal/catalog"
	"git.home.luguber.info/inful/dexbuilder/internal/translit"
)

// BodyImageScheme prefixes image sources in Markdown text blocks. The
// renderer swaps these placeholders for the processed image files, or drops
// the image when processing failed.
const BodyImageScheme = "dex-image://"

// Options tunes entry parsing for one build run.
type Options struct {
	// MaxBodySections caps how many h2 sections after the table of
	// contents are kept. Zero means one.
	MaxBodySections int

	// HighQuality rewrites thumbnail image URLs to the original uploads
	// they were scaled from.
	HighQuality bool
}

// Parser extracts catalog entries from wiki pages. A Parser is stateless and
// safe for concurrent use.
type Parser struct {
	opts Options
}

func NewParser(opts Options) *Parser {
	if opts.MaxBodySections <= 0 {
		opts.MaxBodySections = 1
	}
	return &Parser{opts: opts}
}

// ParseEntry parses one entry page. pageURL is the page's own URL and anchors
// relative links and image sources.
func (p *Parser) ParseEntry(data []byte, pageURL string) (*catalog.Entry, error) {
	doc, err := newDocument(data)
	if err != nil {
		return nil, malformed("page", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, malformed("page url", err)
	}

	infobox := doc.Find("table.infobox").First()
	if infobox.Length() == 0 {
		return nil, malformed("info box", nil)
	}
	name := strings.TrimSpace(infobox.Find("big").First().Text())
	if name == "" {
		return nil, missingField("name")
	}
	id, err := catalog.ParseEntryID(doc.Find(".entry-id").First().Text())
	if err != nil {
		return nil, missingField("entry id")
	}

	entry := &catalog.Entry{ID: id, Name: name, PageURL: pageURL}

	seen := make(map[string]bool)
	infobox.Find(".category").Each(func(_ int, s *goquery.Selection) {
		c := strings.TrimSpace(s.Text())
		if c != "" && !seen[c] {
			seen[c] = true
			entry.Categories = append(entry.Categories, c)
		}
	})

	entry.JapaneseName = strings.TrimSpace(infobox.Find("[lang=ja]").First().Text())
	if translit.HasKana(entry.JapaneseName) {
		entry.Pronunciation = translit.Romaji(entry.JapaneseName)
	}

	parseStats(infobox, &entry.Stats)
	entry.Relations = parseRelations(doc)
	entry.Images = p.artworkImages(infobox, base)

	if err := p.parseContent(doc, base, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func parseStats(infobox *goquery.Selection, stats *catalog.Stats) {
	infobox.Find("tr.stat").Each(func(_ int, row *goquery.Selection) {
		value := row.Find(".stat-value").First().Text()
		switch row.AttrOr("data-stat", "") {
		case "height":
			stats.HeightM = leadingFloat(value)
		case "weight":
			stats.WeightKG = leadingFloat(value)
		case "hp":
			stats.HP = leadingInt(value)
		case "attack":
			stats.Attack = leadingInt(value)
		case "defense":
			stats.Defense = leadingInt(value)
		case "speed":
			stats.Speed = leadingInt(value)
		}
	})
}

func parseRelations(doc *goquery.Document) []catalog.RelationRef {
	var out []catalog.RelationRef
	doc.Find("table.family-nav tr").Each(func(_ int, row *goquery.Selection) {
		kind, ok := relationKindForRow(row)
		if !ok {
			return
		}
		target, err := catalog.ParseEntryID(row.AttrOr("data-target", ""))
		if err != nil {
			return
		}
		name := strings.TrimSpace(row.Find("a").First().Text())
		if name == "" {
			name = strings.TrimSpace(row.Find("td").Last().Text())
		}
		out = append(out, catalog.RelationRef{Kind: kind, TargetID: target, TargetName: name})
	})
	return out
}

func relationKindForRow(row *goquery.Selection) (catalog.RelationKind, bool) {
	switch {
	case row.HasClass("evo-prev"):
		return catalog.RelationEvolutionPredecessor, true
	case row.HasClass("evo-next"):
		return catalog.RelationEvolutionSuccessor, true
	case row.HasClass("form"):
		return catalog.RelationAlternateForm, true
	case row.HasClass("type-peer"):
		return catalog.RelationTypeAssociation, true
	}
	return "", false
}

// artworkImages collects the info box artwork. A row holding more than one
// visible cell renders its images side by side, so those are marked Flex.
// Rows and cells hidden with display:none belong to the wiki's tab widgets
// and are skipped.
func (p *Parser) artworkImages(infobox *goquery.Selection, base *url.URL) []catalog.ImageRef {
	var out []catalog.ImageRef
	infobox.Find("tr.artwork").Each(func(_ int, row *goquery.Selection) {
		if hiddenByStyle(row) {
			return
		}
		var cells []*goquery.Selection
		row.Find("td").Each(func(_ int, td *goquery.Selection) {
			if !hiddenByStyle(td) {
				cells = append(cells, td)
			}
		})
		flex := len(cells) > 1
		for _, td := range cells {
			img := td.Find("img").First()
			if img.Length() == 0 {
				continue
			}
			src, ok := bestImageSource(img, base, p.opts.HighQuality)
			if !ok {
				continue
			}
			key, _, err := deriveSourceKey(src)
			if err != nil {
				continue
			}
			out = append(out, catalog.ImageRef{
				SourceURL:    src.String(),
				SourceKey:    key,
				Alt:          strings.TrimSpace(img.AttrOr("alt", "")),
				DisplayWidth: leadingInt(img.AttrOr("width", "")),
				Caption:      strings.TrimSpace(td.Find("small").First().Text()),
				Flex:         flex,
			})
		}
	})
	return out
}

// parseContent converts the prose region into Markdown text blocks. Reference
// footnote markers are stripped, links are made absolute so the renderer can
// match them against the catalog, and body images are swapped for placeholder
// sources carrying their cache key.
func (p *Parser) parseContent(doc *goquery.Document, base *url.URL, entry *catalog.Entry) error {
	content := doc.Find(".page-content").First()
	if content.Length() == 0 {
		return nil
	}
	content.Find("sup.reference").Remove()
	content.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		ref, err := url.Parse(a.AttrOr("href", ""))
		if err != nil {
			return
		}
		a.SetAttr("href", base.ResolveReference(ref).String())
	})
	entry.Images = append(entry.Images, p.rewriteBodyImages(content, base)...)

	blocks, err := splitSections(content, p.opts.MaxBodySections)
	if err != nil {
		return malformed("content", err)
	}
	entry.TextBlocks = blocks
	return nil
}

func (p *Parser) rewriteBodyImages(content *goquery.Selection, base *url.URL) []catalog.ImageRef {
	var out []catalog.ImageRef
	content.Find("img").Each(func(_ int, img *goquery.Selection) {
		src, ok := bestImageSource(img, base, p.opts.HighQuality)
		if !ok {
			img.Remove()
			return
		}
		key, _, err := deriveSourceKey(src)
		if err != nil {
			img.Remove()
			return
		}
		out = append(out, catalog.ImageRef{
			SourceURL:    src.String(),
			SourceKey:    key,
			Alt:          strings.TrimSpace(img.AttrOr("alt", "")),
			DisplayWidth: leadingInt(img.AttrOr("width", "")),
			Body:         true,
		})
		img.SetAttr("src", BodyImageScheme+key)
		img.RemoveAttr("srcset")
	})
	return out
}

func hiddenByStyle(s *goquery.Selection) bool {
	style, ok := s.Attr("style")
	if !ok {
		return false
	}
	for _, decl := range strings.Split(style, ";") {
		k, v, found := strings.Cut(decl, ":")
		if found && strings.TrimSpace(k) == "display" && strings.TrimSpace(v) == "none" {
			return true
		}
	}
	return false
}

func leadingFloat(s string) float64 {
	v, _ := strconv.ParseFloat(leadingNumber(s, true), 64)
	return v
}

func leadingInt(s string) int {
	n, _ := strconv.Atoi(leadingNumber(s, false))
	return n
}

func leadingNumber(s string, dot bool) string {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) {
		c := s[end]
		if c >= '0' && c <= '9' || dot && c == '.' {
			end++
			continue
		}
		break
	}
	return s[:end]
}
