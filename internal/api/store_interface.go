package api

import (
	"context"

	"github.com/soaringjerry/stsportal/internal/services"
)

// Store is everything the HTTP layer needs from persistence. Both
// db.GormStore and db.MemoryStore satisfy it.
type Store interface {
	services.CodeStore
	services.SessionStore
	services.CollaborativeStore
	services.TeamStore
	services.AnalyticsStore
	services.CompletionStore
	services.AuthStore

	Ping(ctx context.Context) error
}
