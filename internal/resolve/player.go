package resolve

import (
	"context"
	"log/slog"

	"github.com/sydlexius/crosswalk/internal/entity"
	"github.com/sydlexius/crosswalk/internal/normalize"
	"github.com/sydlexius/crosswalk/internal/record"
	"github.com/sydlexius/crosswalk/internal/similarity"
)

// Feature weights for player scoring. Name similarity dominates; the
// jersey number is a small capped bonus because feeds misreport it often.
const (
	playerNameWeight     = 0.55
	playerTeamWeight     = 0.25
	playerPositionWeight = 0.15
	playerJerseyWeight   = 0.05
)

// PlayerCartographer resolves player observations. Two players sharing a
// name on the same team always land in ambiguous: name-only evidence is
// never enough to separate them automatically.
type PlayerCartographer struct {
	core
	candidates CandidateStore
	teams      *TeamCartographer
	norm       *normalize.Normalizer
}

// NewPlayerCartographer creates a player resolver. The team cartographer
// is optional; without it (or when the declared team cannot be resolved)
// the candidate filter widens to every team in the league, at a
// performance cost and a flagged risk of increased ambiguity.
func NewPlayerCartographer(candidates CandidateStore, mappings MappingStore, cache *Cache, teams *TeamCartographer, norm *normalize.Normalizer, cfg Thresholds, logger *slog.Logger) *PlayerCartographer {
	return &PlayerCartographer{
		core:       newCore(mappings, cache, cfg, logger, "player-cartographer"),
		candidates: candidates,
		teams:      teams,
		norm:       norm,
	}
}

// Resolve maps one player observation to a canonical player.
func (pc *PlayerCartographer) Resolve(ctx context.Context, rec *record.Player) (*Mapping, error) {
	if m, err := pc.lookup(ctx, rec.Source, rec.SourceID, entity.TypePlayer); m != nil || err != nil {
		return m, err
	}
	m, err := pc.compute(ctx, rec, nil)
	if err != nil {
		return nil, err
	}
	return pc.commit(ctx, m)
}

// ResolveBatch resolves records in order, reusing the candidate set across
// records that share a coarse filter.
func (pc *PlayerCartographer) ResolveBatch(ctx context.Context, recs []*record.Player) ([]*Mapping, error) {
	memo := make(map[entity.PlayerFilter][]entity.Player)
	out := make([]*Mapping, 0, len(recs))
	for _, rec := range recs {
		m, err := pc.lookup(ctx, rec.Source, rec.SourceID, entity.TypePlayer)
		if err != nil {
			return out, err
		}
		if m == nil {
			if m, err = pc.compute(ctx, rec, memo); err != nil {
				return out, err
			}
			if m, err = pc.commit(ctx, m); err != nil {
				return out, err
			}
		}
		out = append(out, m)
	}
	return out, nil
}

// Rescore recomputes the mapping under administrative re-resolution
// authority, superseding only on a strictly better acceptance.
func (pc *PlayerCartographer) Rescore(ctx context.Context, rec *record.Player) (*Mapping, error) {
	return pc.rescore(ctx, rec.Source, rec.SourceID, entity.TypePlayer, func(ctx context.Context) (*Mapping, error) {
		return pc.compute(ctx, rec, nil)
	})
}

func (pc *PlayerCartographer) compute(ctx context.Context, rec *record.Player, memo map[entity.PlayerFilter][]entity.Player) (*Mapping, error) {
	degraded := append([]string(nil), rec.Degraded...)

	filter := entity.PlayerFilter{League: rec.League}
	if rec.Team != "" && pc.teams != nil {
		teamID, err := pc.resolveTeamRef(ctx, rec)
		if err != nil {
			return nil, err
		}
		if teamID == "" {
			degraded = append(degraded, "team-unresolved")
		}
		filter.TeamID = teamID
	} else if rec.Team == "" {
		degraded = append(degraded, "team-missing")
	}

	players, err := pc.listPlayers(ctx, filter, memo)
	if err != nil {
		return nil, err
	}

	scored := make([]CandidateScore, 0, len(players))
	for i := range players {
		cs, err := pc.score(rec, &players[i], filter.TeamID)
		if err != nil {
			return nil, err
		}
		scored = append(scored, cs)
	}

	return pc.decide(rec.Source, rec.SourceID, entity.TypePlayer, rec.Display, degraded, scored, ""), nil
}

func (pc *PlayerCartographer) listPlayers(ctx context.Context, f entity.PlayerFilter, memo map[entity.PlayerFilter][]entity.Player) ([]entity.Player, error) {
	if memo != nil {
		if players, ok := memo[f]; ok {
			return players, nil
		}
	}
	players, err := pc.candidates.ListPlayers(ctx, f)
	if err != nil {
		return nil, &CandidateStoreError{Op: "list players", Err: err}
	}
	if memo != nil {
		memo[f] = players
	}
	return players, nil
}

func (pc *PlayerCartographer) score(rec *record.Player, cand *entity.Player, filterTeamID string) (CandidateScore, error) {
	name, err := pc.norm.Normalize("full_name", cand.FullName, normalize.KindName)
	if err != nil {
		return CandidateScore{}, err
	}
	nameScore := similarity.String(rec.FullName, name)
	for _, alt := range cand.AlternateNames {
		a, err := pc.norm.Normalize("alternate_name", alt, normalize.KindName)
		if err != nil {
			continue
		}
		if s := similarity.String(rec.FullName, a); s > nameScore {
			nameScore = s
		}
	}

	features := []feature{
		{name: "name", weight: playerNameWeight, score: nameScore, known: true},
	}

	switch {
	case filterTeamID != "":
		// Candidate set is already bounded to the resolved team.
		features = append(features, feature{name: "team", weight: playerTeamWeight, score: 1, known: true})
	case rec.Team != "":
		abbrev, err := pc.norm.Normalize("team_abbrev", cand.TeamAbbrev, normalize.KindCode)
		if err == nil && abbrev != "" {
			features = append(features, feature{name: "team", weight: playerTeamWeight, score: similarity.Equal(rec.Team, abbrev), known: true})
		}
	}

	if rec.Position != "" && cand.Position != "" {
		pos, err := pc.norm.Normalize("position", cand.Position, normalize.KindCode)
		if err == nil {
			features = append(features, feature{name: "position", weight: playerPositionWeight, score: similarity.Equal(rec.Position, pos), known: true})
		}
	}

	if rec.Jersey > 0 && cand.JerseyNumber > 0 {
		score := 0.0
		if rec.Jersey == cand.JerseyNumber {
			score = 1
		}
		features = append(features, feature{name: "jersey", weight: playerJerseyWeight, score: score, known: true})
	}

	conf, scores := confidence(features)
	return CandidateScore{
		InternalID: cand.ID,
		Label:      cand.FullName,
		Confidence: conf,
		Features:   scores,
	}, nil
}

// resolveTeamRef resolves the record's declared team code through the team
// cartographer, producing (and persisting) a team mapping for the feed's
// code as a side effect. An unresolved reference returns empty.
func (pc *PlayerCartographer) resolveTeamRef(ctx context.Context, rec *record.Player) (string, error) {
	teamRec, err := record.NewTeam(record.TeamInput{
		Source:       rec.Source,
		SourceID:     rec.Team,
		League:       rec.League,
		Abbreviation: rec.Team,
	}, pc.norm)
	if err != nil {
		return "", nil
	}
	m, err := pc.teams.Resolve(ctx, teamRec)
	if err != nil {
		return "", err
	}
	if m == nil || !m.Resolved() {
		return "", nil
	}
	return m.InternalID, nil
}
