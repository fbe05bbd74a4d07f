package resolve

import (
	"context"
	"log/slog"

	"github.com/sydlexius/crosswalk/internal/entity"
	"github.com/sydlexius/crosswalk/internal/normalize"
	"github.com/sydlexius/crosswalk/internal/record"
	"github.com/sydlexius/crosswalk/internal/similarity"
)

// Feature weights for team scoring.
const (
	teamNameWeight     = 0.40
	teamAbbrevWeight   = 0.30
	teamLocationWeight = 0.15
	teamMascotWeight   = 0.15
)

// Score awarded to an abbreviation within edit-distance tolerance but not
// exact, catching single-character feed typos.
const nearAbbrevScore = 0.9

// TeamCartographer resolves team observations. An abbreviation that
// matches two distinct teams in the same league forces ambiguous
// regardless of other scores.
type TeamCartographer struct {
	core
	candidates CandidateStore
	norm       *normalize.Normalizer
}

// NewTeamCartographer creates a team resolver.
func NewTeamCartographer(candidates CandidateStore, mappings MappingStore, cache *Cache, norm *normalize.Normalizer, cfg Thresholds, logger *slog.Logger) *TeamCartographer {
	return &TeamCartographer{
		core:       newCore(mappings, cache, cfg, logger, "team-cartographer"),
		candidates: candidates,
		norm:       norm,
	}
}

// Resolve maps one team observation to a canonical team.
func (tc *TeamCartographer) Resolve(ctx context.Context, rec *record.Team) (*Mapping, error) {
	if m, err := tc.lookup(ctx, rec.Source, rec.SourceID, entity.TypeTeam); m != nil || err != nil {
		return m, err
	}
	m, err := tc.compute(ctx, rec, nil)
	if err != nil {
		return nil, err
	}
	return tc.commit(ctx, m)
}

// ResolveBatch resolves records in order, reusing the candidate set across
// records in the same league.
func (tc *TeamCartographer) ResolveBatch(ctx context.Context, recs []*record.Team) ([]*Mapping, error) {
	memo := make(map[entity.TeamFilter][]entity.Team)
	out := make([]*Mapping, 0, len(recs))
	for _, rec := range recs {
		m, err := tc.lookup(ctx, rec.Source, rec.SourceID, entity.TypeTeam)
		if err != nil {
			return out, err
		}
		if m == nil {
			if m, err = tc.compute(ctx, rec, memo); err != nil {
				return out, err
			}
			if m, err = tc.commit(ctx, m); err != nil {
				return out, err
			}
		}
		out = append(out, m)
	}
	return out, nil
}

// Rescore recomputes the mapping under administrative re-resolution
// authority.
func (tc *TeamCartographer) Rescore(ctx context.Context, rec *record.Team) (*Mapping, error) {
	return tc.rescore(ctx, rec.Source, rec.SourceID, entity.TypeTeam, func(ctx context.Context) (*Mapping, error) {
		return tc.compute(ctx, rec, nil)
	})
}

// normalTeam is a team candidate with comparison forms precomputed.
type normalTeam struct {
	cand     *entity.Team
	name     string
	abbrev   string
	location string
	mascot   string
	alts     []string
}

func (tc *TeamCartographer) compute(ctx context.Context, rec *record.Team, memo map[entity.TeamFilter][]entity.Team) (*Mapping, error) {
	filter := entity.TeamFilter{League: rec.League}
	teams, err := tc.listTeams(ctx, filter, memo)
	if err != nil {
		return nil, err
	}

	normals := make([]normalTeam, 0, len(teams))
	for i := range teams {
		nt, err := tc.normalize(&teams[i])
		if err != nil {
			return nil, err
		}
		normals = append(normals, nt)
	}

	// Exact-key fast path: a unique exact hit on the full name or a known
	// alternate name is asserted without fuzzy scoring. Duplicate hits fall
	// through to scoring, where identical names produce a zero margin and
	// land in ambiguous.
	if rec.Name != "" {
		if id := uniqueExactName(normals, rec.Name); id != "" {
			return tc.exactKey(rec.Source, rec.SourceID, entity.TypeTeam, id, rec.Display, "exact name match"), nil
		}
	}

	scored := make([]CandidateScore, 0, len(normals))
	abbrevHits := 0
	for i := range normals {
		cs, hit := tc.score(rec, &normals[i])
		if hit {
			abbrevHits++
		}
		scored = append(scored, cs)
	}

	forceAmbiguous := ""
	if abbrevHits > 1 {
		forceAmbiguous = "abbreviation collision"
	}

	input := rec.Display
	if input == "" {
		input = rec.Abbreviation
	}
	return tc.decide(rec.Source, rec.SourceID, entity.TypeTeam, input, rec.Degraded, scored, forceAmbiguous), nil
}

func (tc *TeamCartographer) listTeams(ctx context.Context, f entity.TeamFilter, memo map[entity.TeamFilter][]entity.Team) ([]entity.Team, error) {
	if memo != nil {
		if teams, ok := memo[f]; ok {
			return teams, nil
		}
	}
	teams, err := tc.candidates.ListTeams(ctx, f)
	if err != nil {
		return nil, &CandidateStoreError{Op: "list teams", Err: err}
	}
	if memo != nil {
		memo[f] = teams
	}
	return teams, nil
}

func (tc *TeamCartographer) normalize(cand *entity.Team) (normalTeam, error) {
	nt := normalTeam{cand: cand}
	var err error
	if nt.name, err = tc.norm.Normalize("name", cand.Name, normalize.KindName); err != nil {
		return nt, err
	}
	if nt.abbrev, err = tc.norm.Normalize("abbreviation", cand.Abbreviation, normalize.KindCode); err != nil {
		return nt, err
	}
	if nt.location, err = tc.norm.Normalize("location", cand.Location, normalize.KindText); err != nil {
		return nt, err
	}
	if nt.mascot, err = tc.norm.Normalize("mascot", cand.Mascot, normalize.KindName); err != nil {
		return nt, err
	}
	for _, alt := range cand.AlternateNames {
		a, err := tc.norm.Normalize("alternate_name", alt, normalize.KindName)
		if err != nil {
			continue
		}
		nt.alts = append(nt.alts, a)
	}
	return nt, nil
}

// uniqueExactName returns the candidate ID when exactly one candidate's
// name or alternate name equals the input, empty otherwise.
func uniqueExactName(normals []normalTeam, name string) string {
	id := ""
	for i := range normals {
		if matchesExact(&normals[i], name) {
			if id != "" {
				return ""
			}
			id = normals[i].cand.ID
		}
	}
	return id
}

func matchesExact(nt *normalTeam, name string) bool {
	if nt.name == name && name != "" {
		return true
	}
	for _, alt := range nt.alts {
		if alt == name {
			return true
		}
	}
	return false
}

// score computes the weighted feature vector for one candidate and reports
// whether the abbreviation matched within tolerance, feeding the collision
// check.
func (tc *TeamCartographer) score(rec *record.Team, nt *normalTeam) (CandidateScore, bool) {
	var features []feature

	if rec.Name != "" && nt.name != "" {
		s := similarity.String(rec.Name, nt.name)
		for _, alt := range nt.alts {
			if as := similarity.String(rec.Name, alt); as > s {
				s = as
			}
		}
		features = append(features, feature{name: "name", weight: teamNameWeight, score: s, known: true})
	}

	abbrevHit := false
	if rec.Abbreviation != "" && nt.abbrev != "" {
		s := 0.0
		switch dist := similarity.EditDistance(rec.Abbreviation, nt.abbrev); {
		case dist == 0:
			s = 1
			abbrevHit = true
		case dist <= tc.cfg.AbbrevEditDistance:
			s = nearAbbrevScore
			abbrevHit = true
		}
		features = append(features, feature{name: "abbreviation", weight: teamAbbrevWeight, score: s, known: true})
	}

	if rec.Location != "" && nt.location != "" {
		features = append(features, feature{name: "location", weight: teamLocationWeight, score: similarity.String(rec.Location, nt.location), known: true})
	}
	if rec.Mascot != "" && nt.mascot != "" {
		features = append(features, feature{name: "mascot", weight: teamMascotWeight, score: similarity.String(rec.Mascot, nt.mascot), known: true})
	}

	conf, scores := confidence(features)
	return CandidateScore{
		InternalID: nt.cand.ID,
		Label:      nt.cand.Name,
		Confidence: conf,
		Features:   scores,
	}, abbrevHit
}
