package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/rs/zerolog/log"

	"github.com/ShubAce/ConvoTrack-Assigment/models"
)

// chromaAddBatch bounds the number of records sent per Add call.
const chromaAddBatch = 256

// chromaIndex stores each generation in its own Chroma collection named
// "<base>-<generation>" and swaps the active one after a rebuild completes.
type chromaIndex struct {
	client    chromago.Client
	base      string
	dimension int

	mu     sync.RWMutex
	active chromago.Collection
}

// NewChromaIndex connects to a Chroma server at baseURL.
func NewChromaIndex(ctx context.Context, baseURL, collection string, dimension int) (Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("chroma: dimension must be greater than zero")
	}
	client, err := chromago.NewHTTPClient(chromago.WithBaseURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("chroma: create client: %w", err)
	}
	idx := &chromaIndex{client: client, base: collection, dimension: dimension}
	if err := idx.restore(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return idx, nil
}

func (c *chromaIndex) restore(ctx context.Context) error {
	cols, err := c.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("chroma: list collections: %w", err)
	}
	var (
		newest    chromago.Collection
		newestGen int64 = -1
	)
	for _, col := range cols {
		gen, ok := c.generationOf(col.Name())
		if ok && gen > newestGen {
			newest, newestGen = col, gen
		}
	}
	for _, col := range cols {
		if _, ok := c.generationOf(col.Name()); ok && col != newest {
			c.drop(ctx, col.Name())
		}
	}
	if newest != nil {
		log.Info().Str("collection", newest.Name()).Msg("INDEX: resumed chroma generation")
		c.active = newest
		return nil
	}
	col, err := c.newGeneration(ctx)
	if err != nil {
		return err
	}
	c.active = col
	return nil
}

func (c *chromaIndex) generationOf(name string) (int64, bool) {
	suffix, ok := strings.CutPrefix(name, c.base+"-")
	if !ok {
		return 0, false
	}
	gen, err := strconv.ParseInt(suffix, 10, 64)
	return gen, err == nil
}

func (c *chromaIndex) newGeneration(ctx context.Context) (chromago.Collection, error) {
	name := fmt.Sprintf("%s-%d", c.base, time.Now().UnixNano())
	col, err := c.client.CreateCollection(
		ctx,
		name,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("hnsw:space", "cosine"),
				chromago.NewStringAttribute("created_by", "convotrack"),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("chroma: create collection %s: %w", name, err)
	}
	return col, nil
}

func (c *chromaIndex) drop(ctx context.Context, name string) {
	if err := c.client.DeleteCollection(ctx, name); err != nil {
		log.Warn().Err(err).Str("collection", name).Msg("INDEX: could not drop chroma generation")
	}
}

func (c *chromaIndex) Dimension() int { return c.dimension }

func (c *chromaIndex) collection() chromago.Collection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

func (c *chromaIndex) Count(ctx context.Context) (int, error) {
	n, err := c.collection().Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("chroma: count: %w", err)
	}
	return n, nil
}

func (c *chromaIndex) Upsert(ctx context.Context, entries []models.IndexEntry) error {
	if err := checkEntries(entries, c.dimension); err != nil {
		return err
	}
	return addToChroma(ctx, c.collection(), entries, true)
}

func (c *chromaIndex) Rebuild(ctx context.Context, entries []models.IndexEntry) error {
	if err := checkEntries(entries, c.dimension); err != nil {
		return err
	}
	next, err := c.newGeneration(ctx)
	if err != nil {
		return err
	}
	if err := addToChroma(ctx, next, entries, false); err != nil {
		c.drop(context.WithoutCancel(ctx), next.Name())
		return err
	}

	c.mu.Lock()
	prev := c.active
	c.active = next
	c.mu.Unlock()

	if prev != nil {
		c.drop(ctx, prev.Name())
	}
	return nil
}

func addToChroma(ctx context.Context, col chromago.Collection, entries []models.IndexEntry, upsert bool) error {
	for start := 0; start < len(entries); start += chromaAddBatch {
		batch := entries[start:min(start+chromaAddBatch, len(entries))]
		ids := make([]chromago.DocumentID, 0, len(batch))
		texts := make([]string, 0, len(batch))
		embs := make([]embeddings.Embedding, 0, len(batch))
		metas := make([]chromago.DocumentMetadata, 0, len(batch))
		for _, e := range batch {
			ids = append(ids, chromago.DocumentID(e.ID))
			texts = append(texts, e.Chunk.Text)
			embs = append(embs, embeddings.NewEmbeddingFromFloat32(e.Embedding))
			metas = append(metas, chromago.NewDocumentMetadata(
				chromago.NewStringAttribute(metaDocumentID, e.Chunk.DocumentID),
				chromago.NewStringAttribute(metaURL, e.Chunk.URL),
				chromago.NewIntAttribute(metaChunkIndex, int64(e.Chunk.Index)),
				chromago.NewIntAttribute(metaSeq, int64(e.Chunk.Seq)),
			))
		}
		opts := []chromago.CollectionAddOption{
			chromago.WithIDs(ids...),
			chromago.WithTexts(texts...),
			chromago.WithEmbeddings(embs...),
			chromago.WithMetadatas(metas...),
		}
		var err error
		if upsert {
			err = col.Upsert(ctx, opts...)
		} else {
			err = col.Add(ctx, opts...)
		}
		if err != nil {
			return fmt.Errorf("chroma: write batch at %d: %w", start, err)
		}
	}
	return nil
}

func (c *chromaIndex) Query(ctx context.Context, embedding []float32, k int) ([]models.ScoredChunk, error) {
	if err := checkQuery(embedding, c.dimension); err != nil {
		return nil, err
	}
	col := c.collection()
	count, err := col.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("chroma: count: %w", err)
	}
	n := min(k, count)
	if n <= 0 {
		return []models.ScoredChunk{}, nil
	}
	results, err := col.Query(
		ctx,
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(embedding)),
		chromago.WithNResults(n),
	)
	if err != nil {
		return nil, fmt.Errorf("chroma: query: %w", err)
	}

	docGroups := results.GetDocumentsGroups()
	metaGroups := results.GetMetadatasGroups()
	distGroups := results.GetDistancesGroups()
	if len(docGroups) == 0 {
		return []models.ScoredChunk{}, nil
	}
	out := make([]models.ScoredChunk, 0, len(docGroups[0]))
	for i, doc := range docGroups[0] {
		var meta map[string]string
		if len(metaGroups) > 0 && i < len(metaGroups[0]) {
			meta = decodeChromaMetadata(metaGroups[0][i])
		}
		score := 0.0
		if len(distGroups) > 0 && i < len(distGroups[0]) {
			// cosine distance
			score = 1 - float64(distGroups[0][i])
		}
		out = append(out, models.ScoredChunk{
			Chunk: chunkFromMetadata(doc.ContentString(), meta),
			Score: score,
		})
	}
	return out, nil
}

func (c *chromaIndex) Close() error {
	return c.client.Close()
}

// decodeChromaMetadata flattens chroma document metadata into strings. The
// metadata type has no public accessor for all values, so it goes through JSON.
func decodeChromaMetadata(meta chromago.DocumentMetadata) map[string]string {
	out := map[string]string{}
	if meta == nil {
		return out
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		log.Warn().Err(err).Msg("INDEX: could not marshal chroma metadata")
		return out
	}
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		log.Warn().Err(err).Msg("INDEX: could not unmarshal chroma metadata")
		return out
	}
	for k, v := range values {
		switch t := v.(type) {
		case string:
			out[k] = t
		case float64:
			out[k] = strconv.FormatInt(int64(t), 10)
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out
}
