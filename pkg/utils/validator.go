package utils

import (
	"regexp"
)

var controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)

// SanitizeString strips control characters from user-entered text
// before it is written into generated documents.
func SanitizeString(s string) string {
	return controlChars.ReplaceAllString(s, "")
}
