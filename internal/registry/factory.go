package registry

import "context"

// NewStore selects PostgresStore when dsn is non-empty, otherwise falls back
// to MemoryStore — the same backend-selection-by-configured-DSN shape used
// throughout this codebase's persistence layer.
func NewStore(ctx context.Context, dsn string) (Store, error) {
	if dsn == "" {
		return NewMemoryStore(), nil
	}
	return NewPostgresStore(ctx, dsn)
}
