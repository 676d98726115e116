package vectorstore

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"github.com/ShubAce/ConvoTrack-Assigment/models"
)

// chromemIndex keeps one chromem collection per index generation. Rebuild
// fills a fresh collection and then swaps the active pointer, so queries never
// see a half-written generation.
type chromemIndex struct {
	db        *chromem.DB
	base      string
	dimension int

	// lastGen is only touched by restore and Rebuild, which callers serialize.
	lastGen int64

	mu     sync.RWMutex
	active *chromem.Collection
}

// NewChromemIndex opens an embedded chromem-go index. An empty path keeps the
// index in memory; otherwise it is persisted under path and the newest
// generation found there becomes active.
func NewChromemIndex(path, collection string, dimension int) (Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("chromem: dimension must be greater than zero")
	}
	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("chromem: open %s: %w", path, err)
		}
	}
	idx := &chromemIndex{db: db, base: collection, dimension: dimension}
	if err := idx.restore(); err != nil {
		return nil, err
	}
	return idx, nil
}

// restore picks the newest persisted generation and drops the others, which
// are leftovers of builds interrupted before their swap.
func (c *chromemIndex) restore() error {
	var (
		newest    *chromem.Collection
		newestGen int64 = -1
	)
	for name, col := range c.db.ListCollections() {
		if !strings.HasPrefix(name, c.base+"-") {
			continue
		}
		gen, err := strconv.ParseInt(strings.TrimPrefix(name, c.base+"-"), 10, 64)
		if err != nil {
			continue
		}
		if gen > newestGen {
			newest, newestGen = col, gen
		}
	}
	for name := range c.db.ListCollections() {
		if strings.HasPrefix(name, c.base+"-") && (newest == nil || name != newest.Name) {
			if err := c.db.DeleteCollection(name); err != nil {
				log.Warn().Err(err).Str("collection", name).Msg("INDEX: could not drop stale generation")
			}
		}
	}
	if newest != nil {
		c.active = newest
		c.lastGen = newestGen
		return nil
	}
	col, err := c.newGeneration()
	if err != nil {
		return err
	}
	c.active = col
	return nil
}

func (c *chromemIndex) newGeneration() (*chromem.Collection, error) {
	gen := max(time.Now().UnixNano(), c.lastGen+1)
	c.lastGen = gen
	name := fmt.Sprintf("%s-%d", c.base, gen)
	col, err := c.db.CreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem: create collection %s: %w", name, err)
	}
	return col, nil
}

func (c *chromemIndex) Dimension() int { return c.dimension }

func (c *chromemIndex) collection() *chromem.Collection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

func (c *chromemIndex) Count(_ context.Context) (int, error) {
	return c.collection().Count(), nil
}

func (c *chromemIndex) Upsert(ctx context.Context, entries []models.IndexEntry) error {
	if err := checkEntries(entries, c.dimension); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	if err := c.collection().AddDocuments(ctx, toChromemDocs(entries), runtime.NumCPU()); err != nil {
		return fmt.Errorf("chromem: add documents: %w", err)
	}
	return nil
}

func (c *chromemIndex) Rebuild(ctx context.Context, entries []models.IndexEntry) error {
	if err := checkEntries(entries, c.dimension); err != nil {
		return err
	}
	next, err := c.newGeneration()
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		if err := next.AddDocuments(ctx, toChromemDocs(entries), runtime.NumCPU()); err != nil {
			if dropErr := c.db.DeleteCollection(next.Name); dropErr != nil {
				log.Warn().Err(dropErr).Str("collection", next.Name).Msg("INDEX: could not drop failed generation")
			}
			return fmt.Errorf("chromem: add documents: %w", err)
		}
	}

	c.mu.Lock()
	prev := c.active
	c.active = next
	c.mu.Unlock()

	if prev != nil {
		if err := c.db.DeleteCollection(prev.Name); err != nil {
			log.Warn().Err(err).Str("collection", prev.Name).Msg("INDEX: could not drop previous generation")
		}
	}
	return nil
}

func (c *chromemIndex) Query(ctx context.Context, embedding []float32, k int) ([]models.ScoredChunk, error) {
	if err := checkQuery(embedding, c.dimension); err != nil {
		return nil, err
	}
	col := c.collection()
	n := min(k, col.Count())
	if n <= 0 {
		return []models.ScoredChunk{}, nil
	}
	results, err := col.QueryEmbedding(ctx, embedding, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem: query: %w", err)
	}
	out := make([]models.ScoredChunk, 0, len(results))
	for _, r := range results {
		out = append(out, models.ScoredChunk{
			Chunk: chunkFromMetadata(r.Content, r.Metadata),
			Score: float64(r.Similarity),
		})
	}
	return out, nil
}

func (c *chromemIndex) Close() error { return nil }

func toChromemDocs(entries []models.IndexEntry) []chromem.Document {
	docs := make([]chromem.Document, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, chromem.Document{
			ID:        e.ID,
			Content:   e.Chunk.Text,
			Metadata:  chunkMetadata(e.Chunk),
			Embedding: e.Embedding,
		})
	}
	return docs
}
