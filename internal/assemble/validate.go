package assemble

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const dictionaryNamespace = "http://www.apple.com/DTDs/DictionaryService-1.0.rng"

// validateDocument walks the assembled document before promotion: it must be
// well-formed XML, entry identifiers must be unique, and every images/
// reference must have a file in the staged tree.
func validateDocument(doc []byte, stageDir string) error {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	seen := make(map[string]bool)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &Error{Kind: KindMalformedOutput, Err: err}
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch {
		case start.Name.Local == "entry" && start.Name.Space == dictionaryNamespace:
			for _, attr := range start.Attr {
				if attr.Name.Local != "id" || attr.Name.Space != "" {
					continue
				}
				if seen[attr.Value] {
					return &Error{Kind: KindDuplicateIdentifier, Detail: attr.Value}
				}
				seen[attr.Value] = true
			}
		case start.Name.Local == "img":
			for _, attr := range start.Attr {
				if attr.Name.Local != "src" {
					continue
				}
				name, ok := strings.CutPrefix(attr.Value, "images/")
				if !ok {
					continue
				}
				if _, err := os.Stat(filepath.Join(stageDir, "images", name)); err != nil {
					return &Error{Kind: KindDanglingImageReference, Detail: attr.Value}
				}
			}
		}
	}
}
