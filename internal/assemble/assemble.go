// Package assemble produces the final dictionary bundle: one XML document
// holding every entry fragment in ascending identifier order plus the image
// tree it references. Output is written to an isolated staging directory,
// validated, and only then atomically promoted over the previous output.
package assemble

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"git.home.luguber.info/inful/dexbuilder/internal/catalog"
	"git.home.luguber.info/inful/dexbuilder/internal/logfields"
)

// DocumentName is the bundle's document file name.
const DocumentName = "Dictionary.xml"

const documentProlog = `<?xml version="1.0" encoding="UTF-8"?>
<!-- generated file -->
<d:dictionary xmlns="http://www.w3.org/1999/xhtml" xmlns:d="http://www.apple.com/DTDs/DictionaryService-1.0.rng">
`

const documentClose = "</d:dictionary>\n"

// Fragment is one rendered entry. ID orders fragments in the document.
type Fragment struct {
	ID  catalog.EntryID
	XML string
}

// Image is one artifact to copy into the bundle's images/ tree.
type Image struct {
	Name string
	Path string
}

// Result describes a promoted bundle.
type Result struct {
	DocumentPath  string
	DocumentBytes int
	Images        int
}

// Assembler stages and promotes one output bundle. Not safe for concurrent
// use; a build runs exactly one assembly.
type Assembler struct {
	outputDir string
	stageDir  string
	log       *slog.Logger
}

func New(outputDir string) *Assembler {
	return &Assembler{
		outputDir: outputDir,
		log:       slog.Default().With("component", "assemble"),
	}
}

// BuildDocument concatenates fragments in ascending identifier order inside
// the dictionary root element.
func BuildDocument(fragments []Fragment) string {
	ordered := make([]Fragment, len(fragments))
	copy(ordered, fragments)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	var b strings.Builder
	b.WriteString(documentProlog)
	for _, f := range ordered {
		b.WriteString(f.XML)
	}
	b.WriteString(documentClose)
	return b.String()
}

// Assemble builds the document, stages it together with the image tree,
// validates the staged bundle and promotes it. On any failure the staging
// directory is removed and the previous output stays in place.
func (a *Assembler) Assemble(fragments []Fragment, images []Image) (res *Result, err error) {
	doc := []byte(BuildDocument(fragments))

	if err = a.beginStaging(); err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			a.abortStaging()
		}
	}()

	if err = os.WriteFile(filepath.Join(a.stageDir, DocumentName), doc, 0o644); err != nil {
		err = fmt.Errorf("write document: %w", err)
		return nil, err
	}
	imgDir := filepath.Join(a.stageDir, "images")
	if err = os.MkdirAll(imgDir, 0o755); err != nil {
		return nil, err
	}
	for _, img := range images {
		if err = copyFile(img.Path, filepath.Join(imgDir, img.Name)); err != nil {
			err = fmt.Errorf("stage image %s: %w", img.Name, err)
			return nil, err
		}
	}

	if err = validateDocument(doc, a.stageDir); err != nil {
		return nil, err
	}
	if err = a.finalizeStaging(); err != nil {
		return nil, err
	}

	a.log.Info("assembled dictionary",
		logfields.Count(len(fragments)), "images", len(images), "bytes", len(doc))
	return &Result{
		DocumentPath:  filepath.Join(a.outputDir, DocumentName),
		DocumentBytes: len(doc),
		Images:        len(images),
	}, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
