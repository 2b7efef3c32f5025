package storage

import (
	"context"
	"fmt"
)

// Ping checks that the database answers and that the documents table is
// readable, which is what /ready reports on.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents LIMIT 1").Scan(&n); err != nil {
		return fmt.Errorf("documents table unavailable: %w", err)
	}
	return nil
}
