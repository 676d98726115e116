package vectorstore

import (
	"context"
	"fmt"

	"github.com/ShubAce/ConvoTrack-Assigment/config"
)

// Open constructs the backend selected by cfg.Provider.
func Open(ctx context.Context, cfg config.IndexConfig) (Index, error) {
	switch Provider(cfg.Provider) {
	case ProviderChromem, "":
		return NewChromemIndex(cfg.Path, cfg.Collection, cfg.Dimension)
	case ProviderChroma:
		return NewChromaIndex(ctx, cfg.URL, cfg.Collection, cfg.Dimension)
	case ProviderPGVector:
		return NewPGVectorIndex(ctx, cfg.DSN, cfg.Collection, cfg.Dimension)
	default:
		return nil, fmt.Errorf("vectorstore: unknown provider %q", cfg.Provider)
	}
}
