package resolve

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sydlexius/crosswalk/internal/entity"
)

// Admin issues manual overrides. An override is human-asserted, always
// authoritative, and supersedes any automatic mapping for the key until
// another override replaces it.
type Admin struct {
	mappings MappingStore
	cache    *Cache
	logger   *slog.Logger
}

// NewAdmin creates an override issuer sharing the resolvers' cache so
// corrections take effect immediately in this process.
func NewAdmin(mappings MappingStore, cache *Cache, logger *slog.Logger) *Admin {
	return &Admin{
		mappings: mappings,
		cache:    cache,
		logger:   logger.With(slog.String("component", "admin")),
	}
}

// Override asserts the canonical identifier for a key. An empty internalID
// asserts the record is known to be unresolvable. The old mapping is
// marked superseded, never deleted.
func (a *Admin) Override(ctx context.Context, source, sourceID string, typ entity.Type, internalID, note string) (*Mapping, error) {
	m := &Mapping{
		ID:         uuid.New().String(),
		Source:     source,
		SourceID:   sourceID,
		EntityType: typ,
		InternalID: internalID,
		Confidence: 100,
		Method:     MethodManual,
		Detail:     Detail{Note: note},
		ResolvedAt: time.Now().UTC().Truncate(time.Second),
	}

	existing, err := a.mappings.Get(ctx, source, sourceID, typ)
	if err != nil {
		return nil, &PersistenceError{Op: "get", Err: err}
	}

	if existing == nil {
		stored, existed, err := a.mappings.PutIfAbsent(ctx, m)
		if err != nil {
			return nil, &PersistenceError{Op: "put", Err: err}
		}
		if existed {
			// Lost a race with an automatic resolution; the override still wins.
			if err := a.mappings.Supersede(ctx, stored, m, false); err != nil {
				return nil, &PersistenceError{Op: "supersede", Err: err}
			}
		} else {
			m = stored
		}
	} else {
		if err := a.mappings.Supersede(ctx, existing, m, false); err != nil {
			return nil, &PersistenceError{Op: "supersede", Err: err}
		}
	}

	a.cache.Put(m)
	a.logger.Info("manual override applied",
		slog.String("source", source), slog.String("source_id", sourceID),
		slog.String("entity_type", string(typ)), slog.String("internal_id", internalID))
	return m, nil
}
