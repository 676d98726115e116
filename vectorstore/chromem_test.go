package vectorstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShubAce/ConvoTrack-Assigment/models"
)

func entry(doc string, idx, seq int, url string, vec ...float32) models.IndexEntry {
	return models.IndexEntry{
		ID: EntryID(doc, idx),
		Chunk: models.Chunk{
			Text:       doc + " chunk",
			DocumentID: doc,
			URL:        url,
			Index:      idx,
			Seq:        seq,
		},
		Embedding: vec,
	}
}

func newMemoryIndex(t *testing.T) Index {
	t.Helper()
	idx, err := NewChromemIndex("", "test-chunks", 3)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestChromemIndex_Query(t *testing.T) {
	ctx := context.Background()

	t.Run("Should return nearest entries first with their chunk metadata", func(t *testing.T) {
		idx := newMemoryIndex(t)
		require.NoError(t, idx.Rebuild(ctx, []models.IndexEntry{
			entry("1", 0, 0, "https://example.com/case-studies/a", 1, 0, 0),
			entry("2", 0, 1, "", 0, 1, 0),
			entry("3", 0, 2, "https://example.com/case-studies/c", 0.9, 0.1, 0),
		}))

		got, err := idx.Query(ctx, []float32{1, 0, 0}, 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "1", got[0].Chunk.DocumentID)
		assert.Equal(t, "https://example.com/case-studies/a", got[0].Chunk.URL)
		assert.InDelta(t, 1.0, got[0].Score, 1e-5)
		assert.Equal(t, "3", got[1].Chunk.DocumentID)
		assert.Equal(t, 2, got[1].Chunk.Seq)
		assert.Greater(t, got[0].Score, got[1].Score)
	})

	t.Run("Should clamp k to the number of entries", func(t *testing.T) {
		idx := newMemoryIndex(t)
		require.NoError(t, idx.Rebuild(ctx, []models.IndexEntry{entry("1", 0, 0, "", 1, 0, 0)}))
		got, err := idx.Query(ctx, []float32{1, 0, 0}, 15)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("Should return an empty result for an empty index", func(t *testing.T) {
		idx := newMemoryIndex(t)
		got, err := idx.Query(ctx, []float32{1, 0, 0}, 15)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Should reject a query of the wrong dimension", func(t *testing.T) {
		idx := newMemoryIndex(t)
		_, err := idx.Query(ctx, []float32{1, 0}, 3)
		require.ErrorIs(t, err, ErrDimensionMismatch)
	})
}

func TestChromemIndex_Rebuild(t *testing.T) {
	ctx := context.Background()

	t.Run("Should replace the previous contents", func(t *testing.T) {
		idx := newMemoryIndex(t)
		require.NoError(t, idx.Rebuild(ctx, []models.IndexEntry{
			entry("1", 0, 0, "", 1, 0, 0),
			entry("1", 1, 1, "", 0, 1, 0),
		}))
		require.NoError(t, idx.Rebuild(ctx, []models.IndexEntry{entry("2", 0, 0, "", 0, 0, 1)}))
		n, err := idx.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("Should keep the previous contents when an entry has the wrong dimension", func(t *testing.T) {
		idx := newMemoryIndex(t)
		require.NoError(t, idx.Rebuild(ctx, []models.IndexEntry{entry("1", 0, 0, "", 1, 0, 0)}))
		err := idx.Rebuild(ctx, []models.IndexEntry{
			entry("2", 0, 0, "", 1, 0, 0),
			entry("2", 1, 1, "", 1, 0),
		})
		var dimErr *DimensionError
		require.ErrorAs(t, err, &dimErr)
		assert.Equal(t, 2, dimErr.Got)
		assert.Equal(t, 3, dimErr.Want)
		n, err := idx.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("Should never expose a partially built generation", func(t *testing.T) {
		idx := newMemoryIndex(t)
		small := []models.IndexEntry{entry("1", 0, 0, "", 1, 0, 0)}
		large := make([]models.IndexEntry, 0, 50)
		for i := range 50 {
			large = append(large, entry("2", i, i, "", 1, float32(i), 1))
		}
		require.NoError(t, idx.Rebuild(ctx, small))

		var wg sync.WaitGroup
		stop := make(chan struct{})
		observed := make(chan int, 1024)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				n, err := idx.Count(ctx)
				if err == nil {
					select {
					case observed <- n:
					default:
					}
				}
			}
		}()
		for i := range 10 {
			if i%2 == 0 {
				require.NoError(t, idx.Rebuild(ctx, large))
			} else {
				require.NoError(t, idx.Rebuild(ctx, small))
			}
		}
		close(stop)
		wg.Wait()
		close(observed)
		for n := range observed {
			assert.Contains(t, []int{1, 50}, n)
		}
	})
}

func TestChromemIndex_Upsert(t *testing.T) {
	ctx := context.Background()

	t.Run("Should replace entries with the same ID", func(t *testing.T) {
		idx := newMemoryIndex(t)
		require.NoError(t, idx.Upsert(ctx, []models.IndexEntry{entry("1", 0, 0, "", 1, 0, 0)}))
		require.NoError(t, idx.Upsert(ctx, []models.IndexEntry{entry("1", 0, 0, "", 0, 1, 0)}))
		n, err := idx.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := idx.Query(ctx, []float32{0, 1, 0}, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.InDelta(t, 1.0, got[0].Score, 1e-5)
	})

	t.Run("Should reject entries of the wrong dimension", func(t *testing.T) {
		idx := newMemoryIndex(t)
		err := idx.Upsert(ctx, []models.IndexEntry{entry("1", 0, 0, "", 1, 0, 0, 0)})
		require.ErrorIs(t, err, ErrDimensionMismatch)
	})
}

func TestChromemIndex_Persistence(t *testing.T) {
	ctx := context.Background()

	t.Run("Should reopen the newest generation from disk", func(t *testing.T) {
		dir := t.TempDir()
		idx, err := NewChromemIndex(dir, "persisted", 3)
		require.NoError(t, err)
		require.NoError(t, idx.Rebuild(ctx, []models.IndexEntry{entry("1", 0, 0, "", 1, 0, 0)}))
		require.NoError(t, idx.Rebuild(ctx, []models.IndexEntry{
			entry("2", 0, 0, "", 0, 1, 0),
			entry("2", 1, 1, "", 0, 0, 1),
		}))
		require.NoError(t, idx.Close())

		reopened, err := NewChromemIndex(dir, "persisted", 3)
		require.NoError(t, err)
		n, err := reopened.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}

func TestEntryID(t *testing.T) {
	assert.Equal(t, EntryID("12", 3), EntryID("12", 3))
	assert.NotEqual(t, EntryID("12", 3), EntryID("12", 4))
	assert.NotEqual(t, EntryID("1", 23), EntryID("12", 3))
}

func TestPGTableName(t *testing.T) {
	assert.Equal(t, "convotrack_casestudies", pgTableName("convotrack-casestudies"))
	assert.Equal(t, "case_studies_v2", pgTableName("Case Studies.v2"))
	assert.True(t, tableNamePattern.MatchString(pgTableName("convotrack-casestudies")))
}

func TestDecodeChromaMetadata(t *testing.T) {
	assert.Empty(t, decodeChromaMetadata(nil))
}
