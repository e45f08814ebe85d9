package repositories

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

type execer func(ctx context.Context, query string) error

// migrate runs every file in the migrations directory in name order.
// Migrations must be idempotent.
func migrate(ctx context.Context, migrations string, exec execer) error {
	dir, err := os.ReadDir(migrations)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %v", err)
	}

	for _, entry := range dir {
		if entry.IsDir() {
			continue
		}

		migrationPath := filepath.Join(migrations, entry.Name())
		migration, err := os.ReadFile(migrationPath)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %v", migrationPath, err)
		}

		if err := exec(ctx, string(migration)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %v", migrationPath, err)
		}
	}
	return nil
}
