package facematch

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// FoldName normalizes a student name for case-insensitive comparison
// (NFC, Unicode case folding, surrounding whitespace trimmed).
func FoldName(name string) string {
	return folder.String(norm.NFC.String(strings.TrimSpace(name)))
}

// SameName reports whether two roster names refer to the same student.
func SameName(a, b string) bool {
	return FoldName(a) == FoldName(b)
}

// FaceFileStem is the reference image file name (without extension) for a student.
// It is the lowercased display name, matching the faces/<name>.jpg layout.
func FaceFileStem(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
