// Package catalog defines the data model shared by every stage of a build:
// entry identifiers, parsed catalog entries, relation references and image
// references. Values are plain data; each stage produces them once and hands
// them on without further mutation.
package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// EntryID is the numeric identifier of a catalog entry. The catalog displays
// identifiers zero-padded to four digits with a leading hash (#0001).
type EntryID int

// ParseEntryID parses an identifier in any of the forms the source pages use:
// "#0001", "0001" or "1". Leading and trailing whitespace is ignored.
func ParseEntryID(s string) (EntryID, error) {
	t := strings.TrimSpace(s)
	t = strings.TrimPrefix(t, "#")
	if t == "" {
		return 0, fmt.Errorf("empty entry identifier")
	}
	n, err := strconv.Atoi(t)
	if err != nil {
		return 0, fmt.Errorf("invalid entry identifier %q: %w", s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("entry identifier must be positive, got %d", n)
	}
	return EntryID(n), nil
}

// Display returns the catalog display form, e.g. "#0001".
func (id EntryID) Display() string { return fmt.Sprintf("#%04d", int(id)) }

// Anchor returns the identifier used for document ids and cross links,
// e.g. "dex-1". Unpadded so links stay stable even past four digits.
func (id EntryID) Anchor() string { return fmt.Sprintf("dex-%d", int(id)) }

func (id EntryID) String() string { return id.Display() }

// RelationKind classifies a cross reference between two catalog entries.
type RelationKind string

const (
	RelationEvolutionPredecessor RelationKind = "evolution-predecessor"
	RelationEvolutionSuccessor   RelationKind = "evolution-successor"
	RelationAlternateForm        RelationKind = "alternate-form"
	RelationTypeAssociation      RelationKind = "type-association"
)

// RelationRef is a reference from one entry to another. TargetName is the
// display text found on the source page; Resolved is set by the resolver once
// TargetID has been verified against the full catalog.
type RelationRef struct {
	Kind       RelationKind
	TargetID   EntryID
	TargetName string
	Resolved   bool
}

// ImageRef describes one image found on an entry page. SourceURL has already
// been selected from the page's srcset candidates. SourceKey is the stable
// identifier derived from the upload path; it names the artifact in the image
// cache and in the output tree. Flex marks artwork images that share a row
// with siblings and render grouped; Body marks images embedded in text
// sections rather than the info box.
type ImageRef struct {
	SourceURL    string
	SourceKey    string
	Alt          string
	DisplayWidth int
	Caption      string
	Flex         bool
	Body         bool
}

// Stats holds the fixed numeric schema extracted from an entry's info box.
// Absent values stay zero and render as absent.
type Stats struct {
	HeightM  float64
	WeightKG float64
	HP       int
	Attack   int
	Defense  int
	Speed    int
}

// Empty reports whether no stat was extracted at all.
func (s Stats) Empty() bool {
	return s == Stats{}
}

// TextBlock is one page section converted to Markdown. The first block of an
// entry carries no heading and serves as the summary.
type TextBlock struct {
	Heading  string
	Markdown string
}

// Entry is a fully parsed catalog entry. Name and ID are guaranteed present;
// everything else is optional and absent fields simply do not render.
type Entry struct {
	ID            EntryID
	Name          string
	PageURL       string
	Categories    []string
	JapaneseName  string
	Pronunciation string
	TextBlocks    []TextBlock
	Stats         Stats
	Relations     []RelationRef
	Images        []ImageRef
}

// RelationsOfKind returns the entry's relations of one kind, in declaration
// order.
func (e *Entry) RelationsOfKind(kind RelationKind) []RelationRef {
	var out []RelationRef
	for _, r := range e.Relations {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// SortEntries orders entries by ascending identifier in place. Output order
// everywhere in the build derives from this ordering.
func SortEntries(entries []*Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
}
