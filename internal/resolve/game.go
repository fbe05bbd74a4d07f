package resolve

import (
	"context"
	"log/slog"

	"github.com/sydlexius/crosswalk/internal/entity"
	"github.com/sydlexius/crosswalk/internal/normalize"
	"github.com/sydlexius/crosswalk/internal/record"
	"github.com/sydlexius/crosswalk/internal/similarity"
)

// Feature weights for game scoring. The team pair dominates because a
// game's identity is defined by its participants; the start-time band
// separates doubleheaders.
const (
	gamePairWeight  = 0.5
	gameTimeWeight  = 0.3
	gameVenueWeight = 0.2
)

// GameCartographer resolves game observations. Both participating teams
// must resolve independently first; an unresolved side forces no-match
// regardless of date or venue similarity.
type GameCartographer struct {
	core
	candidates CandidateStore
	teams      *TeamCartographer
	norm       *normalize.Normalizer
}

// NewGameCartographer creates a game resolver. The team cartographer is
// required: game identity is derived from resolved participants.
func NewGameCartographer(candidates CandidateStore, mappings MappingStore, cache *Cache, teams *TeamCartographer, norm *normalize.Normalizer, cfg Thresholds, logger *slog.Logger) *GameCartographer {
	return &GameCartographer{
		core:       newCore(mappings, cache, cfg, logger, "game-cartographer"),
		candidates: candidates,
		teams:      teams,
		norm:       norm,
	}
}

// Resolve maps one game observation to a canonical game.
func (gc *GameCartographer) Resolve(ctx context.Context, rec *record.Game) (*Mapping, error) {
	if m, err := gc.lookup(ctx, rec.Source, rec.SourceID, entity.TypeGame); m != nil || err != nil {
		return m, err
	}
	m, err := gc.compute(ctx, rec, nil)
	if err != nil {
		return nil, err
	}
	return gc.commit(ctx, m)
}

// ResolveBatch resolves records in order, reusing the candidate set across
// records that share a coarse filter.
func (gc *GameCartographer) ResolveBatch(ctx context.Context, recs []*record.Game) ([]*Mapping, error) {
	memo := make(map[entity.GameFilter][]entity.Game)
	out := make([]*Mapping, 0, len(recs))
	for _, rec := range recs {
		m, err := gc.lookup(ctx, rec.Source, rec.SourceID, entity.TypeGame)
		if err != nil {
			return out, err
		}
		if m == nil {
			if m, err = gc.compute(ctx, rec, memo); err != nil {
				return out, err
			}
			if m, err = gc.commit(ctx, m); err != nil {
				return out, err
			}
		}
		out = append(out, m)
	}
	return out, nil
}

// Rescore recomputes the mapping under administrative re-resolution
// authority, e.g. after the missing side of a matchup has been resolved.
func (gc *GameCartographer) Rescore(ctx context.Context, rec *record.Game) (*Mapping, error) {
	return gc.rescore(ctx, rec.Source, rec.SourceID, entity.TypeGame, func(ctx context.Context) (*Mapping, error) {
		return gc.compute(ctx, rec, nil)
	})
}

func (gc *GameCartographer) compute(ctx context.Context, rec *record.Game, memo map[entity.GameFilter][]entity.Game) (*Mapping, error) {
	input := rec.AwayTeam + " @ " + rec.HomeTeam

	homeID, err := gc.resolveTeamRef(ctx, rec, rec.HomeTeam)
	if err != nil {
		return nil, err
	}
	awayID, err := gc.resolveTeamRef(ctx, rec, rec.AwayTeam)
	if err != nil {
		return nil, err
	}
	if homeID == "" {
		return gc.noMatch(rec.Source, rec.SourceID, entity.TypeGame, input, "unresolved home team"), nil
	}
	if awayID == "" {
		return gc.noMatch(rec.Source, rec.SourceID, entity.TypeGame, input, "unresolved away team"), nil
	}

	filter := entity.GameFilter{
		League:   rec.League,
		DateFrom: rec.StartTime.Add(-gc.cfg.GameDateWindow),
		DateTo:   rec.StartTime.Add(gc.cfg.GameDateWindow),
		Season:   rec.Season,
		Week:     rec.Week,
	}
	games, err := gc.listGames(ctx, filter, memo)
	if err != nil {
		return nil, err
	}

	// Exact-key fast path: a unique candidate with the same participants,
	// order-independent, inside the date window. Doubleheaders produce
	// several and fall through to scoring, where the start-time band
	// separates them.
	if id := uniquePairMatch(games, homeID, awayID); id != "" {
		return gc.exactKey(rec.Source, rec.SourceID, entity.TypeGame, id, input, "team pair and date match"), nil
	}

	scored := make([]CandidateScore, 0, len(games))
	for i := range games {
		cs, err := gc.score(rec, &games[i], homeID, awayID)
		if err != nil {
			return nil, err
		}
		scored = append(scored, cs)
	}

	return gc.decide(rec.Source, rec.SourceID, entity.TypeGame, input, rec.Degraded, scored, ""), nil
}

func (gc *GameCartographer) listGames(ctx context.Context, f entity.GameFilter, memo map[entity.GameFilter][]entity.Game) ([]entity.Game, error) {
	if memo != nil {
		if games, ok := memo[f]; ok {
			return games, nil
		}
	}
	games, err := gc.candidates.ListGames(ctx, f)
	if err != nil {
		return nil, &CandidateStoreError{Op: "list games", Err: err}
	}
	if memo != nil {
		memo[f] = games
	}
	return games, nil
}

func (gc *GameCartographer) resolveTeamRef(ctx context.Context, rec *record.Game, code string) (string, error) {
	teamRec, err := record.NewTeam(record.TeamInput{
		Source:       rec.Source,
		SourceID:     code,
		League:       rec.League,
		Abbreviation: code,
	}, gc.norm)
	if err != nil {
		return "", nil
	}
	m, err := gc.teams.Resolve(ctx, teamRec)
	if err != nil {
		return "", err
	}
	if m == nil || !m.Resolved() {
		return "", nil
	}
	return m.InternalID, nil
}

// pairMatches reports whether the candidate's participants equal the
// resolved pair, in either order.
func pairMatches(g *entity.Game, homeID, awayID string) bool {
	return (g.HomeTeamID == homeID && g.AwayTeamID == awayID) ||
		(g.HomeTeamID == awayID && g.AwayTeamID == homeID)
}

func uniquePairMatch(games []entity.Game, homeID, awayID string) string {
	id := ""
	for i := range games {
		if pairMatches(&games[i], homeID, awayID) {
			if id != "" {
				return ""
			}
			id = games[i].ID
		}
	}
	return id
}

func (gc *GameCartographer) score(rec *record.Game, cand *entity.Game, homeID, awayID string) (CandidateScore, error) {
	pair := 0.0
	if pairMatches(cand, homeID, awayID) {
		pair = 1
	}

	features := []feature{
		{name: "team_pair", weight: gamePairWeight, score: pair, known: true},
		{name: "start_time", weight: gameTimeWeight, score: similarity.Time(rec.StartTime, cand.StartTime.UTC(), gc.cfg.StartTimeTolerance), known: true},
	}

	if rec.Venue != "" && cand.Venue != "" {
		venue, err := gc.norm.Normalize("venue", cand.Venue, normalize.KindText)
		if err != nil {
			return CandidateScore{}, err
		}
		features = append(features, feature{name: "venue", weight: gameVenueWeight, score: similarity.String(rec.Venue, venue), known: true})
	}

	conf, scores := confidence(features)
	return CandidateScore{
		InternalID: cand.ID,
		Label:      cand.AwayTeamID + " @ " + cand.HomeTeamID,
		Confidence: conf,
		Features:   scores,
	}, nil
}
