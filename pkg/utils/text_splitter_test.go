package utils

import (
	"strings"
	"testing"
)

func TestSplitText(t *testing.T) {
	t.Run("short text stays in one chunk", func(t *testing.T) {
		chunks := SplitText("short note", 1500, 200)
		if len(chunks) != 1 || chunks[0] != "short note" {
			t.Errorf("chunks = %v, want single original chunk", chunks)
		}
	})

	t.Run("long text overlaps at boundaries", func(t *testing.T) {
		text := strings.Repeat("a", 100) + strings.Repeat("b", 100)
		chunks := SplitText(text, 120, 20)

		if len(chunks) != 2 {
			t.Fatalf("len(chunks) = %d, want 2", len(chunks))
		}
		if len(chunks[0]) != 120 {
			t.Errorf("len(chunks[0]) = %d, want 120", len(chunks[0]))
		}
		// The second chunk restarts chunkSize-overlap in, so the last 20
		// characters of chunk one reappear at the head of chunk two.
		if !strings.HasPrefix(chunks[1], chunks[0][100:]) {
			t.Error("chunk two must start with the overlap tail of chunk one")
		}
		if !strings.HasSuffix(chunks[len(chunks)-1], "b") {
			t.Error("final chunk must reach the end of the text")
		}
	})

	t.Run("multibyte text never splits mid-rune", func(t *testing.T) {
		text := strings.Repeat("日本語テキスト", 100)
		for _, chunk := range SplitText(text, 50, 10) {
			for _, r := range chunk {
				if r == '�' {
					t.Fatal("chunk contains a replacement rune, split cut a character")
				}
			}
		}
	})

	t.Run("overlap larger than chunk size still advances", func(t *testing.T) {
		chunks := SplitText(strings.Repeat("x", 50), 10, 15)
		if len(chunks) != 5 {
			t.Errorf("len(chunks) = %d, want 5 non-overlapping chunks", len(chunks))
		}
	})
}
