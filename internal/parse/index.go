package parse

import (
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"git.home.luguber.info/inful/dexbuilder/internal/catalog"
)

// Index maps every entry identifier discovered on the catalog index page to
// the absolute URL of its entry page.
type Index struct {
	pages map[catalog.EntryID]string
}

// Len reports the number of distinct entries in the index.
func (ix *Index) Len() int { return len(ix.pages) }

// IDs returns all entry identifiers in ascending order.
func (ix *Index) IDs() []catalog.EntryID {
	ids := make([]catalog.EntryID, 0, len(ix.pages))
	for id := range ix.pages {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// PageURL returns the entry page URL for id.
func (ix *Index) PageURL(id catalog.EntryID) (string, bool) {
	u, ok := ix.pages[id]
	return u, ok
}

// ByURL returns the inverse mapping from page URL to entry identifier. The
// renderer uses it to turn in-text page links into dictionary references.
func (ix *Index) ByURL() map[string]catalog.EntryID {
	out := make(map[string]catalog.EntryID, len(ix.pages))
	for id, u := range ix.pages {
		out[u] = id
	}
	return out
}

// ParseIndex extracts the entry roster from the catalog index page. A row
// contributes an entry when its first cell parses as an entry identifier and
// the row links to an entry page. Rows that do not match are navigation or
// header rows and are skipped. When the same identifier appears in several
// rows the last occurrence wins, matching the source wiki where later tables
// override earlier ones.
func ParseIndex(data []byte, indexURL string) (*Index, error) {
	doc, err := newDocument(data)
	if err != nil {
		return nil, malformed("index", err)
	}
	base, err := url.Parse(indexURL)
	if err != nil {
		return nil, malformed("index url", err)
	}

	pages := make(map[catalog.EntryID]string)
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cell := row.Find("td").First()
		if cell.Length() == 0 {
			return
		}
		id, err := catalog.ParseEntryID(strings.TrimSpace(cell.Text()))
		if err != nil {
			return
		}
		href, ok := row.Find(`a[href$="_(mon)"]`).First().Attr("href")
		if !ok {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		pages[id] = base.ResolveReference(ref).String()
	})

	if len(pages) == 0 {
		return nil, malformed("index", nil)
	}
	return &Index{pages: pages}, nil
}
