package search

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/moshix/searchserver/config"
	"github.com/moshix/searchserver/search/pdf/pdftest"
)

func TestRegistry_SelectsByExtension(t *testing.T) {
	reg := NewRegistry(PDFMatcher{Fallback: true})
	tests := map[string]config.Kind{
		"a.txt":      config.KindText,
		"b.PDF":      config.KindPDF,
		"c.eml":      config.KindEML,
		"d.mbox":     config.KindMbox,
		"e.msg":      config.KindMSG,
		"no-ext":     config.KindText,
		"f.markdown": config.KindText,
	}
	for name, want := range tests {
		kind, m := reg.For(name)
		assert.Equal(t, want, kind, name)
		assert.NotNil(t, m, name)
	}
}

func TestTextMatcher_DropsInvalidUTF8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bin.txt")
	require.NoError(t, os.WriteFile(path, []byte("The \xff\xfeCat sat\n"), 0o644))

	hits, err := TextMatcher{}.Match(path, mustMatcher(t, "cat"))
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "The Cat sat", hits[0].Text)
}

func TestTextMatcher_MissingFile(t *testing.T) {
	_, err := TextMatcher{}.Match(filepath.Join(t.TempDir(), "gone.txt"), mustMatcher(t, "cat"))
	assert.Error(t, err)
}

func TestEMLExtractor(t *testing.T) {
	msg := "From: a@example.com\r\nSubject: Weekly report\r\nContent-Type: text/plain\r\n\r\nFirst line\r\nThe Cat sat\r\n"
	text, err := EMLExtractor{}.ExtractText([]byte(msg))
	require.NoError(t, err)
	assert.Contains(t, text, "Subject: Weekly report")
	assert.Contains(t, text, "The Cat sat")
	assert.NotContains(t, text, "\r")
}

func TestEMLExtractor_HTMLOnly(t *testing.T) {
	msg := "Subject: html\r\nContent-Type: text/html\r\n\r\n<html><body><p>The Cat sat</p><p>Second &amp; last</p></body></html>\r\n"
	text, err := EMLExtractor{}.ExtractText([]byte(msg))
	require.NoError(t, err)
	assert.Contains(t, text, "The Cat sat")
	assert.Contains(t, text, "Second & last")
	assert.NotContains(t, text, "<p>")
}

func TestMBOXExtractor(t *testing.T) {
	box := "From alice@example.com Mon Jan  1 00:00:00 2024\n" +
		"Subject: one\n\nfirst body cat\n\n" +
		"From bob@example.com Mon Jan  1 00:00:00 2024\n" +
		"Subject: two\n\nsecond body dog\n"
	text, err := MBOXExtractor{}.ExtractText([]byte(box))
	require.NoError(t, err)
	assert.Contains(t, text, "first body cat")
	assert.Contains(t, text, "second body dog")
	assert.Contains(t, text, "\n---\n")
}

func TestMBOXExtractor_NotAnMbox(t *testing.T) {
	text, err := MBOXExtractor{}.ExtractText([]byte("just text with cat"))
	require.NoError(t, err)
	assert.Equal(t, "just text with cat", text)
}

func TestMSGExtractor_NotACompoundFile(t *testing.T) {
	_, err := MSGExtractor{}.ExtractText([]byte("plain bytes"))
	assert.Error(t, err)
}

func TestExtractedMatcher_UsesLineRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.eml")
	require.NoError(t, os.WriteFile(path, []byte("Subject: x\r\n\r\nnothing\r\nThe Cat sat\r\n"), 0o644))

	hits, err := ExtractedMatcher{Extractor: EMLExtractor{}}.Match(path, mustMatcher(t, "cat"))
	require.NoError(t, err)
	assert.Equal(t, []Hit{{Location: "Line 3", Text: "The Cat sat"}}, hits)
}

func TestPDFMatcher_CorruptFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o644))

	_, err := PDFMatcher{Fallback: true}.Match(path, mustMatcher(t, "cat"))
	assert.Error(t, err)
}

func writePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, pdftest.Write(path, [][]string{
		{"Introduction", "The Cat sat", "/bulletmed cat food"},
		nil,
		{"another cat here"},
	}))
	return path
}

func TestPDFMatcher_PagesAndArtifacts(t *testing.T) {
	path := writePDF(t)
	want := []Hit{
		{Location: "Page 1", Text: "The Cat sat"},
		{Location: "Page 1", Text: "cat food"},
		{Location: "Page 3", Text: "another cat here"},
	}

	hits, err := PDFMatcher{}.Match(path, mustMatcher(t, "cat"))
	require.NoError(t, err)
	assert.Equal(t, want, hits)

	hits, err = PDFMatcher{}.Match(path, mustMatcher(t, `"cat" "sat"`))
	require.NoError(t, err)
	assert.Equal(t, []Hit{{Location: "Page 1", Text: "The Cat sat"}}, hits)
}

func TestPDFMatcher_PageCapIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	path := writePDF(t)

	hits, err := PDFMatcher{PageCap: 2, Log: zap.New(core)}.Match(path, mustMatcher(t, "cat"))
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.Equal(t, "Page 1", h.Location)
	}

	entries := logs.FilterMessage("pdf page cap reached, remaining pages not searched").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, path, fields["path"])
	assert.EqualValues(t, 3, fields["pages"])
	assert.EqualValues(t, 2, fields["searched"])
}

func TestPDFMatcher_NoWarningUnderTheCap(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)

	_, err := PDFMatcher{Log: zap.New(core)}.Match(writePDF(t), mustMatcher(t, "cat"))
	require.NoError(t, err)
	assert.Zero(t, logs.Len())
}

func TestCleanHTML(t *testing.T) {
	html := "<div>Hello&nbsp;<i>world</i></div><script>var x = 1;</script><br/>Bye &#39;now&#39;"
	assert.Equal(t, "Hello world\nBye 'now'", CleanHTML(html))
}
