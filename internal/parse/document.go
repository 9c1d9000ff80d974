package parse

import (
	"bytes"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// newDocument parses raw page bytes. The wiki serves UTF-8, but archived page
// revisions occasionally come back in a legacy encoding; those are sniffed
// via their meta declaration and transcoded before parsing.
func newDocument(data []byte) (*goquery.Document, error) {
	if utf8.Valid(data) {
		return goquery.NewDocumentFromReader(bytes.NewReader(data))
	}
	r, err := charset.NewReader(bytes.NewReader(data), "")
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(r)
}
