package search

import (
	"regexp"
	"strings"
)

var (
	// CSS/JavaScript blocks (separate patterns since Go doesn't support backreferences)
	cssRegex = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	jsRegex  = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)

	// Tags that end a visual line
	blockTagRegex = regexp.MustCompile(`(?i)<(br\s*/?|/p|/div|/li|/tr|/h[1-6])\s*>`)

	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	htmlEntityRegex = regexp.MustCompile(`&[a-zA-Z0-9#]*;`)

	// Horizontal whitespace only, line structure is kept for Line N locations
	spaceRunRegex = regexp.MustCompile(`[ \t\f\v]+`)
)

var htmlEntities = map[string]string{
	"&amp;":  "&",
	"&lt;":   "<",
	"&gt;":   ">",
	"&quot;": "\"",
	"&apos;": "'",
	"&#39;":  "'",
	"&nbsp;": " ",
}

// CleanHTML turns an HTML body into plain text with one line per block
// element.
func CleanHTML(html string) string {
	text := cssRegex.ReplaceAllString(html, "")
	text = jsRegex.ReplaceAllString(text, "")
	text = blockTagRegex.ReplaceAllString(text, "\n")
	text = htmlTagRegex.ReplaceAllString(text, " ")
	text = htmlEntityRegex.ReplaceAllStringFunc(text, func(entity string) string {
		if v, ok := htmlEntities[strings.ToLower(entity)]; ok {
			return v
		}
		return " "
	})

	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(spaceRunRegex.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
