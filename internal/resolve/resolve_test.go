package resolve

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/sydlexius/crosswalk/internal/entity"
	"github.com/sydlexius/crosswalk/internal/normalize"
)

// memMappings is a mutex-guarded in-memory MappingStore with the same
// put-if-absent and supersession contract as the SQLite implementation.
type memMappings struct {
	mu      sync.Mutex
	current map[string]*Mapping
	history []*Mapping
}

func newMemMappings() *memMappings {
	return &memMappings{current: make(map[string]*Mapping)}
}

func mapKey(source, sourceID string, typ entity.Type) string {
	return source + "|" + sourceID + "|" + string(typ)
}

func (s *memMappings) Get(_ context.Context, source, sourceID string, typ entity.Type) (*Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current[mapKey(source, sourceID, typ)], nil
}

func (s *memMappings) PutIfAbsent(_ context.Context, m *Mapping) (*Mapping, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := mapKey(m.Source, m.SourceID, m.EntityType)
	if existing, ok := s.current[key]; ok {
		return existing, true, nil
	}
	s.current[key] = m
	return m, false, nil
}

func (s *memMappings) Supersede(_ context.Context, old, m *Mapping, admin bool) error {
	if m.Method != MethodManual && !admin {
		return errors.New("supersede denied")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := mapKey(m.Source, m.SourceID, m.EntityType)
	cur, ok := s.current[key]
	if !ok || cur.ID != old.ID {
		return errors.New("supersede conflict")
	}
	cur.Superseded = true
	s.history = append(s.history, cur)
	s.current[key] = m
	return nil
}

// drop removes the current mapping for a key, bypassing supersession.
// Test-only, for exercising cache behavior.
func (s *memMappings) drop(source, sourceID string, typ entity.Type) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.current, mapKey(source, sourceID, typ))
}

func (s *memMappings) currentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.current)
}

func (s *memMappings) supersededCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// memCandidates is an in-memory CandidateStore applying the same coarse
// filters as the SQLite implementation.
type memCandidates struct {
	players []entity.Player
	teams   []entity.Team
	games   []entity.Game
	fail    error
}

func (s *memCandidates) ListPlayers(_ context.Context, f entity.PlayerFilter) ([]entity.Player, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	var out []entity.Player
	for _, p := range s.players {
		if f.League != "" && p.League != f.League {
			continue
		}
		if f.TeamID != "" && p.TeamID != f.TeamID {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *memCandidates) ListTeams(_ context.Context, f entity.TeamFilter) ([]entity.Team, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	var out []entity.Team
	for _, t := range s.teams {
		if f.League != "" && t.League != f.League {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *memCandidates) ListGames(_ context.Context, f entity.GameFilter) ([]entity.Game, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	var out []entity.Game
	for _, g := range s.games {
		if f.League != "" && g.League != f.League {
			continue
		}
		if g.StartTime.Before(f.DateFrom) || g.StartTime.After(f.DateTo) {
			continue
		}
		if f.Season != 0 && g.Season != 0 && g.Season != f.Season {
			continue
		}
		if f.Week != 0 && g.Week != 0 && g.Week != f.Week {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

func testTeams() []entity.Team {
	return []entity.Team{
		{ID: "team-kc", League: "nfl", Name: "Kansas City Chiefs", Abbreviation: "KC", Location: "Kansas City", Mascot: "Chiefs"},
		{ID: "team-ne", League: "nfl", Name: "New England Patriots", Abbreviation: "NE", Location: "Foxborough", Mascot: "Patriots"},
		{ID: "team-nyj", League: "nfl", Name: "New York Jets", Abbreviation: "NYJ", Location: "East Rutherford", Mascot: "Jets"},
	}
}

func testPlayers() []entity.Player {
	return []entity.Player{
		{ID: "player-mahomes", League: "nfl", FullName: "Patrick Mahomes", TeamID: "team-kc", TeamAbbrev: "KC", Position: "QB", JerseyNumber: 15},
		{ID: "player-mahomes-2", League: "nfl", FullName: "Pat Mahomes", TeamID: "team-kc", TeamAbbrev: "KC", Position: "P", JerseyNumber: 22},
		{ID: "player-kelce", League: "nfl", FullName: "Travis Kelce", TeamID: "team-kc", TeamAbbrev: "KC", Position: "TE", JerseyNumber: 87},
		{ID: "player-maye", League: "nfl", FullName: "Drake Maye", TeamID: "team-ne", TeamAbbrev: "NE", Position: "QB", JerseyNumber: 10},
	}
}

var kickoff = time.Date(2025, 11, 2, 18, 0, 0, 0, time.UTC)

func testGames() []entity.Game {
	return []entity.Game{
		{ID: "game-kc-ne", League: "nfl", HomeTeamID: "team-kc", AwayTeamID: "team-ne", StartTime: kickoff, Venue: "Arrowhead Stadium", Season: 2025, Week: 9},
		{ID: "game-nyj-ne", League: "nfl", HomeTeamID: "team-nyj", AwayTeamID: "team-ne", StartTime: kickoff.Add(3 * time.Hour), Venue: "MetLife Stadium", Season: 2025, Week: 9},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv wires all three cartographers over shared in-memory stores.
type testEnv struct {
	mappings *memMappings
	cands    *memCandidates
	cache    *Cache
	teams    *TeamCartographer
	players  *PlayerCartographer
	games    *GameCartographer
	admin    *Admin
}

func newTestEnv(norm *normalize.Normalizer, cfg Thresholds) *testEnv {
	mappings := newMemMappings()
	cands := &memCandidates{players: testPlayers(), teams: testTeams(), games: testGames()}
	return rewire(mappings, cands, norm, cfg)
}

// rewire builds a fresh set of cartographers (with a fresh cache) over
// existing stores, simulating a new worker process.
func rewire(mappings *memMappings, cands *memCandidates, norm *normalize.Normalizer, cfg Thresholds) *testEnv {
	logger := discardLogger()
	cache := NewCache()
	teams := NewTeamCartographer(cands, mappings, cache, norm, cfg, logger)
	return &testEnv{
		mappings: mappings,
		cands:    cands,
		cache:    cache,
		teams:    teams,
		players:  NewPlayerCartographer(cands, mappings, cache, teams, norm, cfg, logger),
		games:    NewGameCartographer(cands, mappings, cache, teams, norm, cfg, logger),
		admin:    NewAdmin(mappings, cache, logger),
	}
}
