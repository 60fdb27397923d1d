package config

import (
	"slices"
	"sort"
	"strings"
)

// Kind names a document format the search engine knows how to read.
type Kind string

const (
	KindText Kind = "text"
	KindPDF  Kind = "pdf"
	KindEML  Kind = "eml"
	KindMbox Kind = "mbox"
	KindMSG  Kind = "msg"
)

// DocumentTypes maps file extensions (without dot) to the format that needs
// extraction before matching. Any extension not listed here is read as text.
var DocumentTypes = map[string]Kind{
	"pdf":  KindPDF,
	"eml":  KindEML,
	"mbox": KindMbox,
	"msg":  KindMSG,
}

// KindOf returns the document kind for a file name, selected by extension
func KindOf(filename string) Kind {
	ext := strings.ToLower(strings.TrimPrefix(getFileExtension(filename), "."))
	if kind, ok := DocumentTypes[ext]; ok {
		return kind
	}
	return KindText
}

// ShouldSkipDirectory determines if a directory should be skipped during traversal
func ShouldSkipDirectory(dirName string, skipDirs []string) bool {
	return slices.Contains(skipDirs, dirName)
}

// GetFileTypeDescription returns a human-readable description of file types
func GetFileTypeDescription() string {
	exts := make([]string, 0, len(DocumentTypes))
	for ext := range DocumentTypes {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return "plain text + " + strings.Join(exts, ", ")
}

// getFileExtension extracts file extension from filename
func getFileExtension(filename string) string {
	lastDot := strings.LastIndex(filename, ".")
	if lastDot == -1 || lastDot == len(filename)-1 {
		return ""
	}
	if strings.ContainsAny(filename[lastDot:], `/\`) {
		return ""
	}
	return filename[lastDot:]
}
