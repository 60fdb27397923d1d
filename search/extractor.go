package search

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/emersion/go-mbox"
	"github.com/jhillyerd/enmime"
	"github.com/richardlehane/mscfb"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"

	"github.com/moshix/searchserver/config"
	"github.com/moshix/searchserver/search/pdf"
)

// DocumentMatcher finds the matching lines of one file.
type DocumentMatcher interface {
	Match(path string, lm *LineMatcher) ([]Hit, error)
}

// Extractor turns raw file bytes of an encoded format into plain text.
type Extractor interface {
	ExtractText(data []byte) (string, error)
}

// Registry selects the DocumentMatcher for a file by its extension.
type Registry struct {
	matchers map[config.Kind]DocumentMatcher
}

// NewRegistry creates a registry with the built-in matchers. PDFs are read
// by pdfm.
func NewRegistry(pdfm PDFMatcher) *Registry {
	return &Registry{
		matchers: map[config.Kind]DocumentMatcher{
			config.KindText: TextMatcher{},
			config.KindPDF:  pdfm,
			config.KindEML:  ExtractedMatcher{Extractor: EMLExtractor{}},
			config.KindMbox: ExtractedMatcher{Extractor: MBOXExtractor{}},
			config.KindMSG:  ExtractedMatcher{Extractor: MSGExtractor{}},
		},
	}
}

// Register replaces the matcher for kind.
func (r *Registry) Register(kind config.Kind, m DocumentMatcher) {
	r.matchers[kind] = m
}

// For returns the kind and matcher for path. Unknown kinds read as text.
func (r *Registry) For(path string) (config.Kind, DocumentMatcher) {
	kind := config.KindOf(path)
	if m, ok := r.matchers[kind]; ok {
		return kind, m
	}
	return config.KindText, r.matchers[config.KindText]
}

// TextMatcher scans a plain-text file line by line. Invalid UTF-8 sequences
// are dropped.
type TextMatcher struct{}

// Match implements DocumentMatcher.
func (TextMatcher) Match(path string, lm *LineMatcher) ([]Hit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return lm.MatchText(strings.ToValidUTF8(string(data), "")), nil
}

// ExtractedMatcher applies the plain-text rules to the output of an Extractor.
type ExtractedMatcher struct {
	Extractor Extractor
}

// Match implements DocumentMatcher.
func (m ExtractedMatcher) Match(path string, lm *LineMatcher) ([]Hit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text, err := m.Extractor.ExtractText(data)
	if err != nil {
		return nil, err
	}
	return lm.MatchText(strings.ToValidUTF8(text, "")), nil
}

// bulletArtifact is a glyph name some PDF producers leak into extracted text.
const bulletArtifact = "/bulletmed"

// PDFMatcher matches per page, reporting "Page N" locations. A page that
// fails to extract or is blank is skipped. Fallback enables the pdfcpu
// content-stream reader when the primary reader fails. Pages past PageCap
// are not searched and a warning names the file.
type PDFMatcher struct {
	Fallback bool
	PageCap  int
	Log      *zap.Logger
}

// Match implements DocumentMatcher.
func (m PDFMatcher) Match(path string, lm *LineMatcher) ([]Hit, error) {
	doc, err := pdf.ReadPages(path, m.PageCap)
	if err != nil && m.Fallback {
		var ferr error
		if doc, ferr = pdf.ContentPages(path, m.PageCap); ferr != nil {
			return nil, errors.Join(err, ferr)
		}
	} else if err != nil {
		return nil, err
	}

	if doc.Truncated() && m.Log != nil {
		m.Log.Warn("pdf page cap reached, remaining pages not searched",
			zap.String("path", path),
			zap.Int("pages", doc.Total),
			zap.Int("searched", len(doc.Pages)))
	}

	var hits []Hit
	for _, p := range doc.Pages {
		if p.Err != nil || strings.TrimSpace(p.Text) == "" {
			continue
		}
		for _, l := range lm.scan(p.Text) {
			hits = append(hits, Hit{
				Location: fmt.Sprintf("Page %d", p.Number),
				Text:     strings.TrimSpace(strings.ReplaceAll(l.text, bulletArtifact, "")),
			})
		}
	}
	return hits, nil
}

// EMLExtractor extracts the body of a MIME message.
type EMLExtractor struct{}

// ExtractText implements Extractor. The text part is preferred; an HTML-only
// message is cleaned of markup.
func (EMLExtractor) ExtractText(data []byte) (string, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse EML: %w", err)
	}

	text := env.Text
	if strings.TrimSpace(text) == "" && env.HTML != "" {
		text = CleanHTML(env.HTML)
	}

	var b strings.Builder
	if subject := env.GetHeader("Subject"); subject != "" {
		b.WriteString("Subject: ")
		b.WriteString(subject)
		b.WriteByte('\n')
	}
	b.WriteString(strings.ReplaceAll(text, "\r\n", "\n"))
	return b.String(), nil
}

// MBOXExtractor extracts every message of an mbox file.
type MBOXExtractor struct{}

// ExtractText implements Extractor. Message bodies are separated by "---".
// Reading stops at the first malformed message; when none parses, the raw
// file is returned as text.
func (MBOXExtractor) ExtractText(data []byte) (string, error) {
	reader := mbox.NewReader(bytes.NewReader(data))
	var text strings.Builder

	for {
		msg, err := reader.NextMessage()
		if err != nil {
			break
		}
		content, err := io.ReadAll(msg)
		if err != nil {
			continue
		}
		extracted, err := EMLExtractor{}.ExtractText(content)
		if err != nil {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n---\n")
		}
		text.WriteString(extracted)
	}

	if text.Len() == 0 {
		return string(data), nil
	}
	return text.String(), nil
}

// Outlook body property streams.
const (
	msgBodyUnicode = "__substg1.0_1000001F"
	msgBodyANSI    = "__substg1.0_1000001E"
)

// MSGExtractor extracts the body of an Outlook .msg compound file.
type MSGExtractor struct{}

// ExtractText implements Extractor.
func (MSGExtractor) ExtractText(data []byte) (string, error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to open MSG: %w", err)
	}

	var unicodeBody, ansiBody []byte
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if entry.Name != msgBodyUnicode && entry.Name != msgBodyANSI {
			continue
		}
		// Attachments carry their own body streams; only the first one counts.
		if entry.Name == msgBodyUnicode && unicodeBody != nil || entry.Name == msgBodyANSI && ansiBody != nil {
			continue
		}
		buf, rerr := io.ReadAll(entry)
		if rerr != nil {
			continue
		}
		if entry.Name == msgBodyUnicode {
			unicodeBody = buf
		} else {
			ansiBody = buf
		}
	}

	switch {
	case unicodeBody != nil:
		dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
		out, err := dec.Bytes(unicodeBody)
		if err != nil {
			return "", fmt.Errorf("failed to decode MSG body: %w", err)
		}
		return strings.TrimRight(string(out), "\x00"), nil
	case ansiBody != nil:
		return strings.TrimRight(string(ansiBody), "\x00"), nil
	default:
		return "", errors.New("MSG has no body stream")
	}
}
