package common

import "strings"

// SummarizeBody returns a short, single-line summary of a response body for
// error messages. Empty bodies return "empty body"; long ones are truncated.
func SummarizeBody(body []byte) string {
	s := strings.Join(strings.Fields(string(body)), " ")
	if s == "" {
		return "empty body"
	}
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
