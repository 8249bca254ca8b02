package feed

import (
	"context"

	"timeline/api/internal/store"
)

// postgresSource adapts *store.PostgresStore to the Source interface. Only
// BeginFeedRead needs the shim: the store returns its concrete reader type.
type postgresSource struct {
	*store.PostgresStore
}

func NewPostgresSource(s *store.PostgresStore) Source {
	return postgresSource{s}
}

func (p postgresSource) BeginFeedRead(ctx context.Context) (Reader, error) {
	reader, err := p.PostgresStore.BeginFeedRead(ctx)
	if err != nil {
		return nil, err
	}
	return reader, nil
}
