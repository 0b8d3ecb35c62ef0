package utils

import (
	"context"
	"fmt"

	"tcg-companion/config"
)

// Archiver stores raw fetched pages so scraper output can be replayed against the exact
// markup that produced it.
type Archiver interface {
	Archive(ctx context.Context, key string, body []byte, contentType string) error
}

// NopArchiver discards everything.
type NopArchiver struct{}

func (NopArchiver) Archive(context.Context, string, []byte, string) error { return nil }

// NewArchiver builds the archiver selected by ARCHIVE_MODE.
func NewArchiver(ctx context.Context, cfg config.ArchiveConfig) (Archiver, error) {
	switch cfg.Mode {
	case "", "none":
		return NopArchiver{}, nil
	case "local":
		return NewLocalArchiver(cfg.Dir)
	case "r2":
		return NewR2Archiver(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown archive mode %q", cfg.Mode)
	}
}
