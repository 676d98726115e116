package models

import "time"

// Document is one scraped case study as read from the corpus directory.
// Filename is the slash-separated path relative to the corpus root.
type Document struct {
	ID       string `json:"id"`
	URL      string `json:"url,omitempty"`
	Text     string `json:"text"`
	Filename string `json:"filename,omitempty"`
}

// Chunk is a contiguous window of a Document's text.
type Chunk struct {
	Text       string `json:"text"`
	DocumentID string `json:"document_id"`
	URL        string `json:"url,omitempty"`
	Index      int    `json:"chunk_index"`
	// Seq is the global insertion ordinal of the chunk within one index build.
	// Retrieval uses it to break score ties in favour of the first-indexed chunk.
	Seq int `json:"seq"`
}

// IndexEntry is what the vector index persists for every chunk.
type IndexEntry struct {
	ID        string
	Chunk     Chunk
	Embedding []float32
}

// ScoredChunk pairs a retrieved chunk with its similarity to the query.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// RetrievalResult is ordered by descending score, then ascending Seq.
type RetrievalResult struct {
	Chunks []ScoredChunk `json:"chunks"`
}

func (r RetrievalResult) Len() int {
	return len(r.Chunks)
}

// TopScore returns the best similarity, or 0 for an empty result.
func (r RetrievalResult) TopScore() float64 {
	if len(r.Chunks) == 0 {
		return 0
	}
	return r.Chunks[0].Score
}

// IndexStats summarizes one BuildIndex call.
type IndexStats struct {
	Documents int           `json:"documents"`
	Chunks    int           `json:"chunks"`
	Entries   int           `json:"entries"`
	Skipped   bool          `json:"skipped"`
	Duration  time.Duration `json:"duration"`
}
