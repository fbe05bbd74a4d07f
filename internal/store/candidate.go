package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sydlexius/crosswalk/internal/entity"
)

// CandidateStore reads canonical entities from SQLite. The canonical
// tables are owned and mutated by upstream systems; this store only reads
// them, bounded by the resolvers' coarse filters.
type CandidateStore struct {
	db *sql.DB
}

// NewCandidateStore creates a candidate store.
func NewCandidateStore(db *sql.DB) *CandidateStore {
	return &CandidateStore{db: db}
}

// ListPlayers returns players in the league, narrowed to one team when the
// filter names one.
func (s *CandidateStore) ListPlayers(ctx context.Context, f entity.PlayerFilter) ([]entity.Player, error) {
	query := `SELECT id, league, full_name, team_id, team_abbrev, position,
		jersey_number, alternate_names FROM players WHERE league = ?`
	args := []any{f.League}
	if f.TeamID != "" {
		query += ` AND team_id = ?`
		args = append(args, f.TeamID)
	}

	rows, err := s.db.QueryContext(ctx, query+` ORDER BY full_name`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []entity.Player
	for rows.Next() {
		var (
			p    entity.Player
			alts string
		)
		if err := rows.Scan(&p.ID, &p.League, &p.FullName, &p.TeamID, &p.TeamAbbrev,
			&p.Position, &p.JerseyNumber, &alts); err != nil {
			return nil, fmt.Errorf("scanning player: %w", err)
		}
		if p.AlternateNames, err = unmarshalNames(alts); err != nil {
			return nil, fmt.Errorf("decoding player alternate names: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListTeams returns all teams in the league.
func (s *CandidateStore) ListTeams(ctx context.Context, f entity.TeamFilter) ([]entity.Team, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, league, name, abbreviation, location, mascot, alternate_names
		FROM teams WHERE league = ? ORDER BY name`, f.League)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []entity.Team
	for rows.Next() {
		var (
			t    entity.Team
			alts string
		)
		if err := rows.Scan(&t.ID, &t.League, &t.Name, &t.Abbreviation,
			&t.Location, &t.Mascot, &alts); err != nil {
			return nil, fmt.Errorf("scanning team: %w", err)
		}
		if t.AlternateNames, err = unmarshalNames(alts); err != nil {
			return nil, fmt.Errorf("decoding team alternate names: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListGames returns games in the league inside the date window, narrowed
// by season and week when the filter carries them.
func (s *CandidateStore) ListGames(ctx context.Context, f entity.GameFilter) ([]entity.Game, error) {
	query := `SELECT id, league, home_team_id, away_team_id, start_time, venue,
		season, week FROM games WHERE league = ? AND start_time >= ? AND start_time <= ?`
	args := []any{f.League, f.DateFrom.UTC().Format(time.RFC3339), f.DateTo.UTC().Format(time.RFC3339)}
	if f.Season != 0 {
		query += ` AND season = ?`
		args = append(args, f.Season)
	}
	if f.Week != 0 {
		query += ` AND week = ?`
		args = append(args, f.Week)
	}

	rows, err := s.db.QueryContext(ctx, query+` ORDER BY start_time`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing games: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []entity.Game
	for rows.Next() {
		var (
			g     entity.Game
			start string
		)
		if err := rows.Scan(&g.ID, &g.League, &g.HomeTeamID, &g.AwayTeamID,
			&start, &g.Venue, &g.Season, &g.Week); err != nil {
			return nil, fmt.Errorf("scanning game: %w", err)
		}
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return nil, fmt.Errorf("decoding game start time: %w", err)
		}
		g.StartTime = t.UTC()
		out = append(out, g)
	}
	return out, rows.Err()
}

func unmarshalNames(s string) ([]string, error) {
	if s == "" || s == "[]" {
		return nil, nil
	}
	var names []string
	if err := json.Unmarshal([]byte(s), &names); err != nil {
		return nil, err
	}
	return names, nil
}
