package resolve

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sydlexius/crosswalk/internal/entity"
)

// core carries the pipeline shared by the player, team, and game
// cartographers: cache and persistence lookup, the weighted-sum decision
// policy, and the commit path that keeps racing workers consistent.
type core struct {
	mappings MappingStore
	cache    *Cache
	cfg      Thresholds
	logger   *slog.Logger
}

func newCore(mappings MappingStore, cache *Cache, cfg Thresholds, logger *slog.Logger, component string) core {
	if cache == nil {
		cache = NewCache()
	}
	return core{
		mappings: mappings,
		cache:    cache,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", component)),
	}
}

// lookup checks the cache, then the mapping store, warming the cache on a
// store hit. Cached mappings are returned unchanged: they derive from
// persisted, possibly manually corrected decisions.
func (c *core) lookup(ctx context.Context, source, sourceID string, typ entity.Type) (*Mapping, error) {
	if m := c.cache.Get(source, sourceID, typ); m != nil {
		return m, nil
	}
	m, err := c.mappings.Get(ctx, source, sourceID, typ)
	if err != nil {
		return nil, &PersistenceError{Op: "get", Err: err}
	}
	if m != nil {
		c.cache.Put(m)
	}
	return m, nil
}

// commit persists a freshly computed mapping. If another worker won the
// race for this key, the stored mapping is adopted instead; no diverging
// accepted mappings can coexist.
func (c *core) commit(ctx context.Context, m *Mapping) (*Mapping, error) {
	stored, existed, err := c.mappings.PutIfAbsent(ctx, m)
	if err != nil {
		return nil, &PersistenceError{Op: "put", Err: err}
	}
	if existed {
		c.logger.Debug("adopting concurrent mapping",
			slog.String("source", m.Source), slog.String("source_id", m.SourceID))
	}
	c.cache.Put(stored)
	return stored, nil
}

// feature is one weighted similarity component.
type feature struct {
	name   string
	weight float64
	score  float64
	known  bool
}

// confidence reduces a feature vector to a 0-100 confidence. Unknown
// features are excluded from both the numerator and the denominator, so a
// record carrying only an abbreviation is judged on the abbreviation
// alone rather than dragged down by absent fields.
func confidence(features []feature) (int, map[string]float64) {
	var sum, weight float64
	scores := make(map[string]float64, len(features))
	for _, f := range features {
		if !f.known {
			continue
		}
		sum += f.weight * f.score
		weight += f.weight
		scores[f.name] = f.score
	}
	if weight == 0 {
		return 0, scores
	}
	conf := int(math.Round(sum / weight * 100))
	if conf > 100 {
		conf = 100
	}
	return conf, scores
}

// decide applies the acceptance policy to a scored candidate list. A
// non-empty forceAmbiguous note downgrades any automatic acceptance, used
// for cases such as abbreviation collisions where acceptance is unsafe
// regardless of score.
func (c *core) decide(source, sourceID string, typ entity.Type, input string, degraded []string, scored []CandidateScore, forceAmbiguous string) *Mapping {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Confidence != scored[j].Confidence {
			return scored[i].Confidence > scored[j].Confidence
		}
		return scored[i].InternalID < scored[j].InternalID
	})

	m := c.newMapping(source, sourceID, typ)
	m.Detail.Input = input
	m.Detail.Degraded = degraded

	if len(scored) == 0 {
		m.Method = MethodNoMatch
		m.Detail.Note = "no candidates"
		return m
	}

	best := scored[0]
	second := CandidateScore{}
	if len(scored) > 1 {
		second = scored[1]
	}

	switch {
	// A forced downgrade outranks the threshold check: a collision must
	// surface for review even when every score is weak.
	case forceAmbiguous != "":
		m.Method = MethodAmbiguous
		m.Confidence = best.Confidence
		m.Detail.Note = forceAmbiguous
	case best.Confidence < c.cfg.AcceptThreshold:
		m.Method = MethodNoMatch
		m.Confidence = best.Confidence
	case best.Confidence-second.Confidence < c.cfg.AmbiguityMargin:
		m.Method = MethodAmbiguous
		m.Confidence = best.Confidence
	default:
		m.Method = MethodFuzzy
		m.InternalID = best.InternalID
		m.Confidence = best.Confidence
		m.Detail.Features = best.Features
		return m
	}

	top := c.cfg.TopCandidates
	if top <= 0 || top > len(scored) {
		top = len(scored)
	}
	m.Detail.Candidates = scored[:top]
	return m
}

// exactKey builds an asserted mapping for a unique exact match found
// before fuzzy scoring.
func (c *core) exactKey(source, sourceID string, typ entity.Type, internalID, input, note string) *Mapping {
	m := c.newMapping(source, sourceID, typ)
	m.InternalID = internalID
	m.Confidence = 100
	m.Method = MethodExactKey
	m.Detail.Input = input
	m.Detail.Note = note
	return m
}

// noMatch builds an unresolved mapping with an explanatory note, used when
// resolution is impossible by design (e.g. a game with an unresolved
// participant).
func (c *core) noMatch(source, sourceID string, typ entity.Type, input, note string) *Mapping {
	m := c.newMapping(source, sourceID, typ)
	m.Method = MethodNoMatch
	m.Detail.Input = input
	m.Detail.Note = note
	return m
}

func (c *core) newMapping(source, sourceID string, typ entity.Type) *Mapping {
	return &Mapping{
		ID:         uuid.New().String(),
		Source:     source,
		SourceID:   sourceID,
		EntityType: typ,
		// Second precision matches the persisted representation, so a
		// mapping re-read from the store compares equal to the one the
		// first resolution returned.
		ResolvedAt: time.Now().UTC().Truncate(time.Second),
	}
}

// rescore is the administrative re-resolution path. It recomputes the
// mapping for a key and supersedes the existing one only when the fresh
// result is an acceptance with strictly higher confidence. Manual
// overrides are never replaced. This path requires explicit authority;
// ordinary resolve calls can never upgrade an existing mapping.
func (c *core) rescore(ctx context.Context, source, sourceID string, typ entity.Type, compute func(context.Context) (*Mapping, error)) (*Mapping, error) {
	existing, err := c.mappings.Get(ctx, source, sourceID, typ)
	if err != nil {
		return nil, &PersistenceError{Op: "get", Err: err}
	}
	if existing != nil && existing.Method == MethodManual {
		return existing, nil
	}

	fresh, err := compute(ctx)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		return c.commit(ctx, fresh)
	}
	accepted := fresh.Method == MethodFuzzy || fresh.Method == MethodExactKey
	if !accepted || fresh.Confidence <= existing.Confidence {
		return existing, nil
	}
	if err := c.mappings.Supersede(ctx, existing, fresh, true); err != nil {
		return nil, &PersistenceError{Op: "supersede", Err: err}
	}
	c.cache.Put(fresh)
	c.logger.Info("re-resolution superseded mapping",
		slog.String("source", source), slog.String("source_id", sourceID),
		slog.Int("old_confidence", existing.Confidence), slog.Int("new_confidence", fresh.Confidence))
	return fresh, nil
}
