package intent

import "strings"

// generationKeywords mark a message as a request to produce content rather
// than a question about it. Deliberately broad; false positives just route
// the user to the generation guidance flow.
var generationKeywords = []string{
	"generate",
	"create",
	"write",
	"make",
	"blog",
	"post",
	"content",
	"draft",
}

// IsGenerationRequest reports whether the message looks like a content
// generation request. Matching is case-insensitive substring search.
func IsGenerationRequest(message string) bool {
	lowered := strings.ToLower(message)
	for _, keyword := range generationKeywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}
