// Package document assembles rendered certificates into one PDF.
package document

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-pdf/fpdf"
)

var ErrNoPages = errors.New("document has no pages")

// Page is one PNG placed on a page of exactly Width x Height points, the
// template's logical size.
type Page struct {
	Width  float64
	Height float64
	PNG    []byte
}

type Builder struct{}

func NewBuilder() *Builder {
	return &Builder{}
}

// Build emits the pages in order, each stretched to its own page size.
func (b *Builder) Build(pages []Page) ([]byte, error) {
	if len(pages) == 0 {
		return nil, ErrNoPages
	}

	first := pages[0]
	pdf := fpdf.NewCustom(&fpdf.InitType{
		UnitStr: "pt",
		Size:    fpdf.SizeType{Wd: first.Width, Ht: first.Height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	for i, p := range pages {
		if p.Width <= 0 || p.Height <= 0 {
			return nil, fmt.Errorf("page %d has invalid size %vx%v", i, p.Width, p.Height)
		}
		// portrait keeps the size as given; "L" would swap it
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: p.Width, Ht: p.Height})
		name := fmt.Sprintf("page-%d", i)
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(p.PNG))
		pdf.ImageOptions(name, 0, 0, p.Width, p.Height, false, opts, 0, "")
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf.Output -> %w", err)
	}

	return buf.Bytes(), nil
}
