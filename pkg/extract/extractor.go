package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Kind identifies the source material format.
type Kind string

const (
	KindPlainText Kind = "text"
	KindPDF       Kind = "pdf"
	KindYouTube   Kind = "youtube"
)

// Input is one piece of uploaded or linked source material.
type Input struct {
	Kind Kind
	// Name is the original file name, kept as the message Source.
	Name string
	Data []byte
	// URL is set for link-based kinds (YouTube).
	URL string
}

// ExtractionError wraps a failure with the source kind so callers can report
// what kind of material could not be processed.
type ExtractionError struct {
	Kind Kind
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract: %s extraction failed: %v", e.Kind, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Extractor turns source material into plain text for indexing and
// generation.
type Extractor interface {
	Extract(ctx context.Context, input Input) (string, error)
}

// PlainTextExtractor accepts UTF-8 text uploads as-is.
type PlainTextExtractor struct{}

func NewPlainTextExtractor() *PlainTextExtractor {
	return &PlainTextExtractor{}
}

func (e *PlainTextExtractor) Extract(_ context.Context, input Input) (string, error) {
	if !utf8.Valid(input.Data) {
		return "", &ExtractionError{Kind: KindPlainText, Err: fmt.Errorf("file %q is not valid UTF-8 text", input.Name)}
	}
	text := strings.TrimSpace(string(input.Data))
	if text == "" {
		return "", &ExtractionError{Kind: KindPlainText, Err: fmt.Errorf("file %q contains no text", input.Name)}
	}
	return text, nil
}

var youtubeIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/)([^&\n?#]+)`),
	regexp.MustCompile(`youtube\.com/embed/([^&\n?#]+)`),
	regexp.MustCompile(`youtube\.com/v/([^&\n?#]+)`),
}

// YouTubeVideoID extracts the video id from the common YouTube URL shapes.
func YouTubeVideoID(url string) (string, error) {
	for _, pattern := range youtubeIDPatterns {
		if match := pattern.FindStringSubmatch(url); match != nil {
			return match[1], nil
		}
	}
	return "", &ExtractionError{Kind: KindYouTube, Err: fmt.Errorf("invalid YouTube URL %q", url)}
}
