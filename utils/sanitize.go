package utils

import "github.com/microcosm-cc/bluemonday"

var sanitizer = bluemonday.UGCPolicy()

// Sanitize cleans user-authored content to prevent stored XSS.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}
