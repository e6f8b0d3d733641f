// Package migrations embeds the receiving schema.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/odyssey-erp/receiving/internal/shared"
)

// Files embeds the up migrations in apply order.
//
//go:embed *.up.sql
var Files embed.FS

// Names lists the embedded migrations sorted by name.
func Names() ([]string, error) {
	names, err := fs.Glob(Files, "*.up.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Apply runs every migration against db. Statements are idempotent, so
// re-running them is safe.
func Apply(ctx context.Context, db shared.Execer) error {
	names, err := Names()
	if err != nil {
		return err
	}
	for _, name := range names {
		body, err := Files.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := db.Exec(ctx, string(body)); err != nil {
			return fmt.Errorf("migrations: apply %s: %w", name, err)
		}
	}
	return nil
}
