package entity

import "time"

// Type identifies the kind of real-world entity a record describes.
type Type string

// Known entity types.
const (
	TypePlayer Type = "player"
	TypeTeam   Type = "team"
	TypeGame   Type = "game"
)

// Player is a canonical player entity. Canonical entities are owned by
// upstream systems; this package only reads them.
type Player struct {
	ID             string   `json:"id"`
	League         string   `json:"league"`
	FullName       string   `json:"full_name"`
	TeamID         string   `json:"team_id,omitempty"`
	TeamAbbrev     string   `json:"team_abbrev,omitempty"`
	Position       string   `json:"position,omitempty"`
	JerseyNumber   int      `json:"jersey_number,omitempty"` // 0 = unknown
	AlternateNames []string `json:"alternate_names,omitempty"`
}

// Team is a canonical team entity.
type Team struct {
	ID             string   `json:"id"`
	League         string   `json:"league"`
	Name           string   `json:"name"`
	Abbreviation   string   `json:"abbreviation,omitempty"`
	Location       string   `json:"location,omitempty"`
	Mascot         string   `json:"mascot,omitempty"`
	AlternateNames []string `json:"alternate_names,omitempty"`
}

// Game is a canonical game entity. A game's identity is defined by its
// participants, so both team IDs are always set.
type Game struct {
	ID         string    `json:"id"`
	League     string    `json:"league"`
	HomeTeamID string    `json:"home_team_id"`
	AwayTeamID string    `json:"away_team_id"`
	StartTime  time.Time `json:"start_time"`
	Venue      string    `json:"venue,omitempty"`
	Season     int       `json:"season,omitempty"`
	Week       int       `json:"week,omitempty"`
}

// PlayerFilter bounds the player candidate set before scoring.
// An empty TeamID widens the filter to all teams in the league.
type PlayerFilter struct {
	League string
	TeamID string
}

// TeamFilter bounds the team candidate set before scoring.
type TeamFilter struct {
	League string
}

// GameFilter bounds the game candidate set before scoring. The date window
// absorbs timezone misreporting across feeds.
type GameFilter struct {
	League   string
	DateFrom time.Time
	DateTo   time.Time
	Season   int // 0 = any
	Week     int // 0 = any
}
