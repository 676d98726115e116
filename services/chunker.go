package services

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/ShubAce/ConvoTrack-Assigment/config"
	"github.com/ShubAce/ConvoTrack-Assigment/models"
)

// Chunker splits a document into retrieval units. Chunk.Seq is left for the
// caller to assign because it is global to a build.
type Chunker interface {
	Split(doc models.Document) ([]models.Chunk, error)
}

// NewChunker returns the chunker selected by cfg.Strategy.
func NewChunker(cfg config.ChunkingConfig) (Chunker, error) {
	if cfg.Size <= 0 || cfg.Overlap < 0 || cfg.Overlap >= cfg.Size {
		return nil, fmt.Errorf("chunker: invalid size %d / overlap %d", cfg.Size, cfg.Overlap)
	}
	switch cfg.Strategy {
	case "", "window":
		return &windowChunker{size: cfg.Size, overlap: cfg.Overlap}, nil
	case "recursive":
		return &recursiveChunker{splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.Size),
			textsplitter.WithChunkOverlap(cfg.Overlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
		)}, nil
	default:
		return nil, fmt.Errorf("chunker: unknown strategy %q", cfg.Strategy)
	}
}

// windowChunker cuts fixed windows of size runes that start every
// size-overlap runes. The last window may be shorter.
type windowChunker struct {
	size    int
	overlap int
}

func (w *windowChunker) Split(doc models.Document) ([]models.Chunk, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, nil
	}
	runes := []rune(doc.Text)
	step := w.size - w.overlap
	var chunks []models.Chunk
	for start := 0; ; start += step {
		end := min(start+w.size, len(runes))
		chunks = append(chunks, newChunk(doc, string(runes[start:end]), len(chunks)))
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}

type recursiveChunker struct {
	splitter textsplitter.RecursiveCharacter
}

func (r *recursiveChunker) Split(doc models.Document) ([]models.Chunk, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, nil
	}
	parts, err := r.splitter.SplitText(doc.Text)
	if err != nil {
		return nil, fmt.Errorf("split document %s: %w", doc.ID, err)
	}
	chunks := make([]models.Chunk, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		chunks = append(chunks, newChunk(doc, p, len(chunks)))
	}
	return chunks, nil
}

func newChunk(doc models.Document, text string, index int) models.Chunk {
	return models.Chunk{
		Text:       text,
		DocumentID: doc.ID,
		URL:        doc.URL,
		Index:      index,
	}
}
