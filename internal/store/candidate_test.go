package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/sydlexius/crosswalk/internal/entity"
)

func seedCandidates(t *testing.T, db *sql.DB) {
	t.Helper()
	stmts := []string{
		`INSERT INTO teams (id, league, name, abbreviation, location, mascot, alternate_names) VALUES
			('team-kc', 'nfl', 'Kansas City Chiefs', 'KC', 'Kansas City', 'Chiefs', '[]'),
			('team-ne', 'nfl', 'New England Patriots', 'NE', 'Foxborough', 'Patriots', '["Pats"]'),
			('team-tor', 'nba', 'Toronto Raptors', 'TOR', 'Toronto', 'Raptors', '[]')`,
		`INSERT INTO players (id, league, full_name, team_id, team_abbrev, position, jersey_number, alternate_names) VALUES
			('player-mahomes', 'nfl', 'Patrick Mahomes', 'team-kc', 'KC', 'QB', 15, '["Pat Mahomes"]'),
			('player-kelce', 'nfl', 'Travis Kelce', 'team-kc', 'KC', 'TE', 87, '[]'),
			('player-maye', 'nfl', 'Drake Maye', 'team-ne', 'NE', 'QB', 10, '[]')`,
		`INSERT INTO games (id, league, home_team_id, away_team_id, start_time, venue, season, week) VALUES
			('game-kc-ne', 'nfl', 'team-kc', 'team-ne', '2025-11-02T18:00:00Z', 'Arrowhead Stadium', 2025, 9),
			('game-ne-kc', 'nfl', 'team-ne', 'team-kc', '2025-12-14T18:00:00Z', 'Gillette Stadium', 2025, 15)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seeding candidates: %v", err)
		}
	}
}

func TestListPlayers(t *testing.T) {
	db := testDB(t)
	seedCandidates(t, db)
	s := NewCandidateStore(db)
	ctx := context.Background()

	all, err := s.ListPlayers(ctx, entity.PlayerFilter{League: "nfl"})
	if err != nil {
		t.Fatalf("ListPlayers error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("league filter returned %d players, want 3", len(all))
	}

	kc, err := s.ListPlayers(ctx, entity.PlayerFilter{League: "nfl", TeamID: "team-kc"})
	if err != nil {
		t.Fatalf("ListPlayers error: %v", err)
	}
	if len(kc) != 2 {
		t.Fatalf("team filter returned %d players, want 2", len(kc))
	}
	for _, p := range kc {
		if p.TeamID != "team-kc" {
			t.Errorf("player %s on team %s leaked through the filter", p.ID, p.TeamID)
		}
	}

	var mahomes *entity.Player
	for i := range all {
		if all[i].ID == "player-mahomes" {
			mahomes = &all[i]
		}
	}
	if mahomes == nil {
		t.Fatal("player-mahomes missing")
	}
	if len(mahomes.AlternateNames) != 1 || mahomes.AlternateNames[0] != "Pat Mahomes" {
		t.Errorf("AlternateNames = %v", mahomes.AlternateNames)
	}
}

func TestListTeams(t *testing.T) {
	db := testDB(t)
	seedCandidates(t, db)
	s := NewCandidateStore(db)

	teams, err := s.ListTeams(context.Background(), entity.TeamFilter{League: "nfl"})
	if err != nil {
		t.Fatalf("ListTeams error: %v", err)
	}
	if len(teams) != 2 {
		t.Fatalf("got %d teams, want 2 (nba team excluded)", len(teams))
	}
	// ORDER BY name: Chiefs before Patriots.
	if teams[0].ID != "team-kc" || teams[1].ID != "team-ne" {
		t.Errorf("order = %s, %s", teams[0].ID, teams[1].ID)
	}
	if len(teams[1].AlternateNames) != 1 || teams[1].AlternateNames[0] != "Pats" {
		t.Errorf("AlternateNames = %v", teams[1].AlternateNames)
	}
}

func TestListGames(t *testing.T) {
	db := testDB(t)
	seedCandidates(t, db)
	s := NewCandidateStore(db)
	ctx := context.Background()
	day := 24 * time.Hour
	nov2 := time.Date(2025, 11, 2, 18, 0, 0, 0, time.UTC)

	games, err := s.ListGames(ctx, entity.GameFilter{
		League:   "nfl",
		DateFrom: nov2.Add(-day),
		DateTo:   nov2.Add(day),
	})
	if err != nil {
		t.Fatalf("ListGames error: %v", err)
	}
	if len(games) != 1 || games[0].ID != "game-kc-ne" {
		t.Fatalf("date window returned %v", games)
	}
	if !games[0].StartTime.Equal(nov2) {
		t.Errorf("StartTime = %v, want %v", games[0].StartTime, nov2)
	}

	// Season/week narrow further when the record carries them.
	games, err = s.ListGames(ctx, entity.GameFilter{
		League:   "nfl",
		DateFrom: nov2.Add(-day),
		DateTo:   nov2.Add(day),
		Season:   2025,
		Week:     10,
	})
	if err != nil {
		t.Fatalf("ListGames error: %v", err)
	}
	if len(games) != 0 {
		t.Errorf("week filter returned %v, want none", games)
	}
}
