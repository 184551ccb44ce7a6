package embedding

// Task types understood by the Gemini embedding API. Ollama backends ignore
// them but the distinction keeps document and query vectors comparable when a
// task-aware backend is configured.
const (
	TaskDocument = "RETRIEVAL_DOCUMENT"
	TaskQuery    = "RETRIEVAL_QUERY"
)

// EmbeddingProvider defines the interface for generating text embeddings
type EmbeddingProvider interface {
	Generate(text string, taskType string) (*EmbeddingResponse, error)
}
