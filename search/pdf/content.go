package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

var pageSuffixRegex = regexp.MustCompile(`(\d+)\D*$`)

// pdfcpu must not create its config directory under the user's home.
func init() {
	api.DisableConfigDir()
}

// ContentPages is the fallback extractor. It dumps the content streams of the
// first pageCap pages with pdfcpu and recovers the text shown by string
// literals, one output line per content-stream line that shows text.
func ContentPages(path string, pageCap int) (doc Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdfcpu panic: %v", r)
		}
	}()

	tmpDir, err := os.MkdirTemp("", "searchserver_pdfcpu_*")
	if err != nil {
		return Document{}, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := api.ExtractContentFile(path, tmpDir, nil, nil); err != nil {
		return Document{}, fmt.Errorf("pdfcpu extract content: %w", err)
	}

	ents, err := os.ReadDir(tmpDir)
	if err != nil {
		return Document{}, fmt.Errorf("read dir: %w", err)
	}

	type dump struct {
		page int
		path string
	}
	var dumps []dump
	for _, de := range ents {
		if de.IsDir() {
			continue
		}
		m := pageSuffixRegex.FindStringSubmatch(strings.TrimSuffix(de.Name(), filepath.Ext(de.Name())))
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		dumps = append(dumps, dump{page: n, path: filepath.Join(tmpDir, de.Name())})
	}
	sort.Slice(dumps, func(i, j int) bool { return dumps[i].page < dumps[j].page })

	limit := pageLimit(pageCap)
	doc.Total = len(dumps)
	for _, d := range dumps {
		if len(doc.Pages) >= limit {
			break
		}
		data, rerr := os.ReadFile(d.path)
		if rerr != nil {
			doc.Pages = append(doc.Pages, Page{Number: d.page, Err: rerr})
			continue
		}
		doc.Pages = append(doc.Pages, Page{Number: d.page, Text: capText(streamText(string(data)))})
	}
	if len(doc.Pages) == 0 {
		return Document{}, fmt.Errorf("pdfcpu produced no page content for %s", path)
	}
	return doc, nil
}

// streamText converts a content stream into text lines.
func streamText(stream string) string {
	var b strings.Builder
	for _, line := range strings.Split(stream, "\n") {
		txt := asciiNormalize(literalText(line))
		if txt == "" {
			continue
		}
		b.WriteString(txt)
		b.WriteByte('\n')
	}
	return b.String()
}

// literalText returns the text of every string literal on one content line.
// Literals inside a TJ array are joined directly unless the kerning between
// them is wide enough to read as a space.
func literalText(line string) string {
	var (
		b        strings.Builder
		inArray  bool
		arrStart bool
		kern     strings.Builder
	)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '(':
			s, end := readLiteral(line, i+1)
			if b.Len() > 0 && (!inArray || arrStart || wideKern(kern.String())) {
				b.WriteByte(' ')
			}
			b.WriteString(s)
			kern.Reset()
			arrStart = false
			i = end
		case c == '[':
			inArray, arrStart = true, true
			kern.Reset()
		case c == ']':
			inArray = false
		case inArray && (c == '-' || c == '.' || (c >= '0' && c <= '9')):
			kern.WriteByte(c)
		}
	}
	return b.String()
}

func wideKern(s string) bool {
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && f <= -200
}

// readLiteral reads a balanced literal starting after its opening paren and
// returns the decoded text plus the index of the closing paren.
func readLiteral(s string, start int) (string, int) {
	var out strings.Builder
	depth := 1
	for i := start; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			if i+1 >= len(s) {
				return out.String(), i
			}
			i++
			switch e := s[i]; {
			case e == 'n' || e == 'r' || e == 't' || e == 'f' || e == 'b':
				out.WriteByte(' ')
			case e >= '0' && e <= '7':
				j := i
				for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
					j++
				}
				v, _ := strconv.ParseUint(s[i:j], 8, 8)
				out.WriteByte(byte(v))
				i = j - 1
			default:
				out.WriteByte(e)
			}
		case '(':
			depth++
			out.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return out.String(), i
			}
			out.WriteByte(c)
		default:
			out.WriteByte(c)
		}
	}
	return out.String(), len(s)
}

// asciiNormalize collapses all non-printable or non-ASCII runes to space and
// then normalizes whitespace to single spaces.
func asciiNormalize(s string) string {
	ascii := strings.Map(func(r rune) rune {
		if r > 127 || !unicode.IsPrint(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(ascii), " ")
}
