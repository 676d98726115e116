package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShubAce/ConvoTrack-Assigment/config"
	"github.com/ShubAce/ConvoTrack-Assigment/models"
	"github.com/ShubAce/ConvoTrack-Assigment/vectorstore"
)

func testCorpus() []models.Document {
	return []models.Document{
		{ID: "1", URL: "https://convotrack.ai/case-studies/ice-cream-trends/", Text: "Ice cream brands grew tiktok engagement by 67% in summer."},
		{ID: "2", URL: "https://convotrack.ai/case-studies/skincare-social-media/", Text: strings.Repeat("Skincare instagram campaign results. ", 40)},
		{ID: "3", Text: "Fitness app retention improved after a loyalty program."},
	}
}

func newTestBuilder(t *testing.T, loader CorpusLoader, emb Embedder) (IndexBuilder, vectorstore.Index) {
	t.Helper()
	idx := newTestIndex(t)
	opts := IndexingOptions{BatchSize: 2, Concurrency: 3, BatchTimeout: time.Second}
	return NewIndexingService(loader, windowChunkerFor(t), emb, idx, opts), idx
}

func countOf(t *testing.T, idx vectorstore.Index) int {
	t.Helper()
	n, err := idx.Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestIndexingService_BuildIndex(t *testing.T) {
	ctx := context.Background()

	t.Run("Should index every chunk of the corpus", func(t *testing.T) {
		builder, idx := newTestBuilder(t, &staticLoader{docs: testCorpus()}, newHashEmbedder())
		stats, err := builder.BuildIndex(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.Documents)
		assert.Equal(t, 4, stats.Chunks)
		assert.Equal(t, 4, stats.Entries)
		assert.False(t, stats.Skipped)
		assert.Equal(t, 4, countOf(t, idx))
	})

	t.Run("Should skip a populated index unless forced", func(t *testing.T) {
		loader := &staticLoader{docs: testCorpus()}
		builder, idx := newTestBuilder(t, loader, newHashEmbedder())
		_, err := builder.BuildIndex(ctx, false)
		require.NoError(t, err)

		stats, err := builder.BuildIndex(ctx, false)
		require.NoError(t, err)
		assert.True(t, stats.Skipped)
		assert.EqualValues(t, 1, loader.calls.Load())

		stats, err = builder.BuildIndex(ctx, true)
		require.NoError(t, err)
		assert.False(t, stats.Skipped)
		assert.Equal(t, 4, countOf(t, idx))
	})

	t.Run("Should succeed with an empty corpus", func(t *testing.T) {
		builder, idx := newTestBuilder(t, &staticLoader{}, newHashEmbedder())
		stats, err := builder.BuildIndex(ctx, false)
		require.NoError(t, err)
		assert.Zero(t, stats.Entries)
		assert.Zero(t, countOf(t, idx))
	})

	t.Run("Should report the failing stage and keep the old contents", func(t *testing.T) {
		emb := newHashEmbedder()
		builder, idx := newTestBuilder(t, &staticLoader{docs: testCorpus()}, emb)
		_, err := builder.BuildIndex(ctx, false)
		require.NoError(t, err)

		emb.failWith = errors.New("embedding service down")
		_, err = builder.BuildIndex(ctx, true)
		var buildErr *IndexBuildError
		require.ErrorAs(t, err, &buildErr)
		assert.Equal(t, "embed", buildErr.Stage)
		assert.Equal(t, 4, countOf(t, idx))
	})

	t.Run("Should report loader failures", func(t *testing.T) {
		builder, _ := newTestBuilder(t, &staticLoader{err: errors.New("no such directory")}, newHashEmbedder())
		_, err := builder.BuildIndex(ctx, false)
		var buildErr *IndexBuildError
		require.ErrorAs(t, err, &buildErr)
		assert.Equal(t, "load", buildErr.Stage)
	})
}

func TestIndexingService_ChunkSequence(t *testing.T) {
	t.Run("Should number chunks across documents in corpus order", func(t *testing.T) {
		s := &indexingService{chunker: windowChunkerFor(t)}
		chunks, err := s.chunkAll(testCorpus())
		require.NoError(t, err)
		require.Len(t, chunks, 4)
		for i, c := range chunks {
			assert.Equal(t, i, c.Seq)
		}
		assert.Equal(t, "2", chunks[1].DocumentID)
		assert.Equal(t, 1, chunks[2].Index)
		assert.Equal(t, "3", chunks[3].DocumentID)
	})
}

func TestIndexAndRetrieve_SingleDocument(t *testing.T) {
	t.Run("Should index two overlapping chunks and prefer the first", func(t *testing.T) {
		ctx := context.Background()
		text := strings.Repeat("beauty trends ", 57) + strings.Repeat("x", 702)
		require.Len(t, text, 1500)
		emb := newHashEmbedder()
		builder, idx := newTestBuilder(t, &staticLoader{docs: []models.Document{{ID: "1", URL: "https://x/case1", Text: text}}}, emb)

		stats, err := builder.BuildIndex(ctx, true)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Entries)
		assert.Equal(t, 2, countOf(t, idx))

		res := NewRetriever(emb, idx, time.Second, nil).Retrieve(ctx, "What are beauty trends?", DefaultTopK)
		require.Equal(t, 2, res.Len())
		assert.Equal(t, 0, res.Chunks[0].Chunk.Index)
		assert.Equal(t, 1, res.Chunks[1].Chunk.Index)
		assert.Len(t, []rune(res.Chunks[1].Chunk.Text), 700)
		assert.Equal(t, "https://x/case1", res.Chunks[0].Chunk.URL)
		assert.Len(t, DeduplicateSources(res.Chunks), 1)
	})
}

func TestIndexingService_SameArticleNumberTwice(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "article_1.txt", "Ice cream brands grew tiktok engagement.")
	writeFile(t, dir, "article_1.md", "Skincare brands grew instagram reach.")

	builder, idx := newTestBuilder(t, NewCorpusLoader(config.CorpusConfig{Path: dir}), newHashEmbedder())
	stats, err := builder.BuildIndex(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Chunks)
	assert.Equal(t, stats.Chunks, stats.Entries)
	assert.Equal(t, stats.Entries, countOf(t, idx))
}
