package db

import (
	"context"
	"fmt"
)

// FixLegacyTimeFormats rewrites timestamps stored by older builds, which
// wrote time.Time values directly and left a " +0000 UTC" suffix behind.
func (db *DB) FixLegacyTimeFormats() error {
	queries := []string{
		`UPDATE credit_snapshots
		 SET timestamp = SUBSTR(timestamp, 1, 19)
		 WHERE length(timestamp) > 19 AND timestamp LIKE '% UTC'`,

		`UPDATE subscription_cache
		 SET fetched_at = SUBSTR(fetched_at, 1, 19)
		 WHERE length(fetched_at) > 19 AND fetched_at LIKE '% UTC'`,

		`UPDATE kv
		 SET updated_at = SUBSTR(updated_at, 1, 19)
		 WHERE length(updated_at) > 19 AND updated_at LIKE '% UTC'`,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(context.Background(), query); err != nil {
			return fmt.Errorf("failed to fix legacy time formats: %w", err)
		}
	}

	return nil
}
