package intent

import "testing"

func TestIsGenerationRequest(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    bool
	}{
		{name: "explicit generate", message: "Generate a Medium article from this", want: true},
		{name: "write keyword", message: "please write something engaging", want: true},
		{name: "blog keyword", message: "I need a blog about my startup", want: true},
		{name: "uppercase keyword", message: "CREATE A LINKEDIN POST", want: true},
		{name: "keyword inside word", message: "this is handmade", want: true},
		{name: "plain question", message: "what does the video say about pricing?", want: false},
		{name: "empty message", message: "", want: false},
		{name: "greeting", message: "hello there", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsGenerationRequest(tt.message); got != tt.want {
				t.Errorf("IsGenerationRequest(%q) = %v, want %v", tt.message, got, tt.want)
			}
		})
	}
}
