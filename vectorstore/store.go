// Package vectorstore persists chunk embeddings and answers nearest-neighbour
// queries over them. Every backend scores by cosine similarity, replaces its
// whole contents atomically on Rebuild and rejects vectors whose length does
// not match the configured dimension.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/ShubAce/ConvoTrack-Assigment/models"
)

// Provider names a vector index backend.
type Provider string

const (
	ProviderChromem  Provider = "chromem"
	ProviderChroma   Provider = "chroma"
	ProviderPGVector Provider = "pgvector"
)

// Index is the contract the indexing and retrieval stages depend on.
type Index interface {
	Dimension() int
	// Count reports the number of entries in the active generation.
	Count(ctx context.Context) (int, error)
	// Upsert adds or replaces entries by ID in the active generation.
	Upsert(ctx context.Context, entries []models.IndexEntry) error
	// Rebuild replaces the whole index with entries. Readers observe either
	// the previous contents or the new ones, never a mix. On error the
	// previous contents remain active.
	Rebuild(ctx context.Context, entries []models.IndexEntry) error
	// Query returns up to k entries by descending cosine similarity.
	Query(ctx context.Context, embedding []float32, k int) ([]models.ScoredChunk, error)
	Close() error
}

// ErrDimensionMismatch is wrapped by every dimension validation failure.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// DimensionError reports a vector of the wrong length.
type DimensionError struct {
	ID   string
	Got  int
	Want int
}

func (e *DimensionError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("query embedding has dimension %d, index expects %d", e.Got, e.Want)
	}
	return fmt.Sprintf("entry %q has dimension %d, index expects %d", e.ID, e.Got, e.Want)
}

func (e *DimensionError) Unwrap() error { return ErrDimensionMismatch }

func checkEntries(entries []models.IndexEntry, dim int) error {
	for i := range entries {
		if got := len(entries[i].Embedding); got != dim {
			return &DimensionError{ID: entries[i].ID, Got: got, Want: dim}
		}
	}
	return nil
}

func checkQuery(embedding []float32, dim int) error {
	if len(embedding) != dim {
		return &DimensionError{Got: len(embedding), Want: dim}
	}
	return nil
}

var entryNamespace = uuid.MustParse("6f1c7a52-3b8e-4d59-9a57-2f0e5b8c1d44")

// EntryID derives a stable ID for a chunk so that rebuilding from the same
// corpus yields the same entry set.
func EntryID(documentID string, chunkIndex int) string {
	return uuid.NewSHA1(entryNamespace, []byte(documentID+"/"+strconv.Itoa(chunkIndex))).String()
}

// Metadata keys shared by every backend.
const (
	metaDocumentID = "document_id"
	metaURL        = "url"
	metaChunkIndex = "chunk_index"
	metaSeq        = "seq"
)

func chunkMetadata(c models.Chunk) map[string]string {
	return map[string]string{
		metaDocumentID: c.DocumentID,
		metaURL:        c.URL,
		metaChunkIndex: strconv.Itoa(c.Index),
		metaSeq:        strconv.Itoa(c.Seq),
	}
}

func chunkFromMetadata(text string, meta map[string]string) models.Chunk {
	idx, _ := strconv.Atoi(meta[metaChunkIndex])
	seq, _ := strconv.Atoi(meta[metaSeq])
	return models.Chunk{
		Text:       text,
		DocumentID: meta[metaDocumentID],
		URL:        meta[metaURL],
		Index:      idx,
		Seq:        seq,
	}
}
