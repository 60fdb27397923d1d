// Package pdftest builds small uncompressed PDF files for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"strings"
)

// Build returns a PDF with one page per entry of pages. Each string is shown
// on its own text row in Helvetica; a page with no lines has no content
// stream at all.
func Build(pages [][]string) []byte {
	// Objects 1..3 are the catalog, the page tree and the font.
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"", // page tree, filled in once the kids are known
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var kids []string
	for _, lines := range pages {
		page := "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >>"
		if len(lines) > 0 {
			stream := contentStream(lines)
			objs = append(objs, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
			page += fmt.Sprintf(" /Contents %d 0 R", len(objs))
		}
		objs = append(objs, page+" >>")
		kids = append(kids, fmt.Sprintf("%d 0 R", len(objs)))
	}
	objs[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(kids))

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, body := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objs)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return b.Bytes()
}

// Write stores Build(pages) at path.
func Write(path string, pages [][]string) error {
	return os.WriteFile(path, Build(pages), 0o644)
}

func contentStream(lines []string) string {
	var b strings.Builder
	b.WriteString("BT\n/F1 12 Tf\n")
	for i, l := range lines {
		fmt.Fprintf(&b, "1 0 0 1 72 %d Tm\n(%s) Tj\n", 720-20*i, escape(l))
	}
	b.WriteString("ET")
	return b.String()
}

var escaper = strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)

func escape(s string) string {
	return escaper.Replace(s)
}
