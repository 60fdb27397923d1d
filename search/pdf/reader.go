// Package pdf extracts per-page text from PDF documents. The primary reader
// is ledongthuc/pdf; pdfcpu content streams serve as a fallback for files the
// primary reader cannot open.
package pdf

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Default caps for PDF text extraction.
const (
	DefaultPageCap    = 500        // pages processed when no cap is given
	DefaultPerPageCap = 256 * 1024 // per-page text cap in bytes
)

var errNullPage = errors.New("page has no content")

// Document is the extracted text of a PDF. Total counts every page of the
// file; Pages stops at the page cap.
type Document struct {
	Pages []Page
	Total int
}

// Truncated reports whether pages past the cap were left out.
func (d Document) Truncated() bool {
	return d.Total > len(d.Pages)
}

// Page is the extracted text of one page. Number is 1-based. Err is set when
// this page alone could not be read.
type Page struct {
	Number int
	Text   string
	Err    error
}

// ReadPages extracts the text of the first pageCap pages of the PDF at path,
// one line per text row. A pageCap of zero or less means DefaultPageCap.
// Panics inside the PDF library are converted into errors.
func ReadPages(path string, pageCap int) (doc Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	total := numPages(r)
	if total <= 0 {
		return Document{}, errors.New("pdf has no pages")
	}
	n := min(total, pageLimit(pageCap))

	doc = Document{Pages: make([]Page, 0, n), Total: total}
	for i := 1; i <= n; i++ {
		text, perr := pageText(r, i)
		doc.Pages = append(doc.Pages, Page{Number: i, Text: capText(text), Err: perr})
	}
	return doc, nil
}

func pageLimit(pageCap int) int {
	if pageCap <= 0 {
		return DefaultPageCap
	}
	return pageCap
}

// numPages guards NumPage, which panics on some malformed trailers.
func numPages(r *pdf.Reader) (n int) {
	defer func() {
		if rec := recover(); rec != nil {
			n = 0
		}
	}()
	return r.NumPage()
}

func pageText(r *pdf.Reader, i int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page %d panic: %v", i, rec)
		}
	}()

	p := r.Page(i)
	if p.V.IsNull() {
		return "", errNullPage
	}

	rows, rerr := p.GetTextByRow()
	if rerr == nil && len(rows) > 0 {
		var b strings.Builder
		for _, row := range rows {
			writeRow(&b, row.Content)
			b.WriteByte('\n')
		}
		return b.String(), nil
	}

	return p.GetPlainText(nil)
}

// writeRow joins the glyph runs of one row, inserting a space where the gap
// between runs is wider than a fraction of the font size.
func writeRow(b *strings.Builder, runs pdf.TextHorizontal) {
	end := math.Inf(-1)
	for _, t := range runs {
		if !math.IsInf(end, -1) && t.X-end > t.FontSize*0.2 {
			b.WriteByte(' ')
		}
		b.WriteString(t.S)
		end = t.X + t.W
	}
}

func capText(s string) string {
	if len(s) > DefaultPerPageCap {
		return strings.ToValidUTF8(s[:DefaultPerPageCap], "")
	}
	return s
}
