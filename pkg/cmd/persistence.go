// Package cmd holds shared wiring helpers for the runops binaries.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/atypis/runops/pkg/persistence"
	"github.com/atypis/runops/pkg/persistence/file"
	"github.com/atypis/runops/pkg/persistence/postgresql"
)

// NewPersistence selects the storage backend from the database URL scheme:
// postgres URLs get the PostgreSQL backend, everything else the file one.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parseProvider(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parseProvider(databaseURL string) string {
	parts := strings.SplitN(databaseURL, "://", 2)
	if len(parts) < 2 {
		return "file"
	}

	return parts[0]
}
