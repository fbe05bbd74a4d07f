// Package record models one incoming observation from an external feed.
// Fields are normalized exactly once, at construction; the raw payload is
// retained verbatim for audit.
package record

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sydlexius/crosswalk/internal/entity"
	"github.com/sydlexius/crosswalk/internal/normalize"
)

// Key identifies a source record within its entity type. (Source, SourceID)
// is unique per entity type.
type Key struct {
	Source   string
	SourceID string
}

func (k Key) String() string {
	return k.Source + ":" + k.SourceID
}

// Player is a normalized player observation. Display holds the original
// name for presentation; FullName is the comparison form.
type Player struct {
	Key
	League    string
	FullName  string
	Display   string
	Team      string // normalized team code; empty widens the candidate filter
	Position  string
	Jersey    int // 0 = unknown
	Raw       json.RawMessage
	CreatedAt time.Time

	// Degraded lists optional fields whose normalization failed and whose
	// feature contribution is therefore unknown.
	Degraded []string
}

// PlayerInput is the raw, feed-shaped form of a player observation.
type PlayerInput struct {
	Source   string          `json:"source"`
	SourceID string          `json:"source_id"`
	League   string          `json:"league"`
	FullName string          `json:"full_name"`
	Team     string          `json:"team,omitempty"`
	Position string          `json:"position,omitempty"`
	Jersey   int             `json:"jersey,omitempty"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

// NewPlayer validates and normalizes a player observation. Source, source
// ID, and a usable full name are required; optional fields that fail
// normalization degrade to unknown instead of failing the record.
func NewPlayer(in PlayerInput, n *normalize.Normalizer) (*Player, error) {
	if err := requireKey(in.Source, in.SourceID); err != nil {
		return nil, err
	}

	name, err := n.Normalize("full_name", in.FullName, normalize.KindName)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, &normalize.Error{Field: "full_name", Kind: normalize.KindName, Value: in.FullName}
	}
	league, err := n.Normalize("league", in.League, normalize.KindCode)
	if err != nil {
		return nil, err
	}

	p := &Player{
		Key:       Key{Source: in.Source, SourceID: in.SourceID},
		League:    league,
		FullName:  name,
		Display:   in.FullName,
		Jersey:    in.Jersey,
		Raw:       in.Raw,
		CreatedAt: time.Now().UTC(),
	}

	if p.Team, err = n.Normalize("team", in.Team, normalize.KindCode); err != nil {
		p.Team = ""
		p.Degraded = append(p.Degraded, "team")
	}
	if p.Position, err = n.Normalize("position", in.Position, normalize.KindCode); err != nil {
		p.Position = ""
		p.Degraded = append(p.Degraded, "position")
	}
	return p, nil
}

// Team is a normalized team observation.
type Team struct {
	Key
	League       string
	Name         string
	Display      string
	Abbreviation string
	Location     string
	Mascot       string
	Raw          json.RawMessage
	CreatedAt    time.Time
	Degraded     []string
}

// TeamInput is the raw, feed-shaped form of a team observation.
type TeamInput struct {
	Source       string          `json:"source"`
	SourceID     string          `json:"source_id"`
	League       string          `json:"league"`
	Name         string          `json:"name,omitempty"`
	Abbreviation string          `json:"abbreviation,omitempty"`
	Location     string          `json:"location,omitempty"`
	Mascot       string          `json:"mascot,omitempty"`
	Raw          json.RawMessage `json:"raw,omitempty"`
}

// NewTeam validates and normalizes a team observation. At least one of
// name or abbreviation must survive normalization.
func NewTeam(in TeamInput, n *normalize.Normalizer) (*Team, error) {
	if err := requireKey(in.Source, in.SourceID); err != nil {
		return nil, err
	}

	league, err := n.Normalize("league", in.League, normalize.KindCode)
	if err != nil {
		return nil, err
	}

	t := &Team{
		Key:       Key{Source: in.Source, SourceID: in.SourceID},
		League:    league,
		Display:   in.Name,
		Raw:       in.Raw,
		CreatedAt: time.Now().UTC(),
	}

	if t.Name, err = n.Normalize("name", in.Name, normalize.KindName); err != nil {
		t.Name = ""
		t.Degraded = append(t.Degraded, "name")
	}
	if t.Abbreviation, err = n.Normalize("abbreviation", in.Abbreviation, normalize.KindCode); err != nil {
		t.Abbreviation = ""
		t.Degraded = append(t.Degraded, "abbreviation")
	}
	if t.Name == "" && t.Abbreviation == "" {
		return nil, &normalize.Error{Field: "name", Kind: normalize.KindName, Value: in.Name}
	}

	if t.Location, err = n.Normalize("location", in.Location, normalize.KindText); err != nil {
		t.Location = ""
		t.Degraded = append(t.Degraded, "location")
	}
	if t.Mascot, err = n.Normalize("mascot", in.Mascot, normalize.KindName); err != nil {
		t.Mascot = ""
		t.Degraded = append(t.Degraded, "mascot")
	}
	return t, nil
}

// Game is a normalized game observation. HomeTeam and AwayTeam are feed
// team codes; they are resolved independently before game matching.
type Game struct {
	Key
	League    string
	HomeTeam  string
	AwayTeam  string
	StartTime time.Time
	Venue     string
	Season    int // 0 = unknown
	Week      int // 0 = unknown
	Raw       json.RawMessage
	CreatedAt time.Time
	Degraded  []string
}

// GameInput is the raw, feed-shaped form of a game observation.
type GameInput struct {
	Source    string          `json:"source"`
	SourceID  string          `json:"source_id"`
	League    string          `json:"league"`
	HomeTeam  string          `json:"home_team"`
	AwayTeam  string          `json:"away_team"`
	StartTime string          `json:"start_time"`
	Venue     string          `json:"venue,omitempty"`
	Season    int             `json:"season,omitempty"`
	Week      int             `json:"week,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// NewGame validates and normalizes a game observation. Both team
// references and a parseable start time are required: a game's identity is
// defined by its participants and date.
func NewGame(in GameInput, n *normalize.Normalizer) (*Game, error) {
	if err := requireKey(in.Source, in.SourceID); err != nil {
		return nil, err
	}

	league, err := n.Normalize("league", in.League, normalize.KindCode)
	if err != nil {
		return nil, err
	}
	home, err := n.Normalize("home_team", in.HomeTeam, normalize.KindCode)
	if err != nil {
		return nil, err
	}
	away, err := n.Normalize("away_team", in.AwayTeam, normalize.KindCode)
	if err != nil {
		return nil, err
	}
	if home == "" {
		return nil, &normalize.Error{Field: "home_team", Kind: normalize.KindCode, Value: in.HomeTeam}
	}
	if away == "" {
		return nil, &normalize.Error{Field: "away_team", Kind: normalize.KindCode, Value: in.AwayTeam}
	}
	start, err := normalize.ParseTime("start_time", in.StartTime)
	if err != nil {
		return nil, err
	}

	g := &Game{
		Key:       Key{Source: in.Source, SourceID: in.SourceID},
		League:    league,
		HomeTeam:  home,
		AwayTeam:  away,
		StartTime: start,
		Season:    in.Season,
		Week:      in.Week,
		Raw:       in.Raw,
		CreatedAt: time.Now().UTC(),
	}

	if g.Venue, err = n.Normalize("venue", in.Venue, normalize.KindText); err != nil {
		g.Venue = ""
		g.Degraded = append(g.Degraded, "venue")
	}
	return g, nil
}

// EntityType reports the entity type for a record, used when keying
// mappings.
func (p *Player) EntityType() entity.Type { return entity.TypePlayer }

// EntityType reports the entity type for a record.
func (t *Team) EntityType() entity.Type { return entity.TypeTeam }

// EntityType reports the entity type for a record.
func (g *Game) EntityType() entity.Type { return entity.TypeGame }

func requireKey(source, sourceID string) error {
	if source == "" || sourceID == "" {
		return fmt.Errorf("source record needs both source (%q) and source_id (%q)", source, sourceID)
	}
	return nil
}
