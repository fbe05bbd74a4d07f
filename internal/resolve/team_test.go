package resolve

import (
	"context"
	"testing"

	"github.com/sydlexius/crosswalk/internal/entity"
	"github.com/sydlexius/crosswalk/internal/normalize"
	"github.com/sydlexius/crosswalk/internal/record"
)

func newTeamRecord(t *testing.T, n *normalize.Normalizer, in record.TeamInput) *record.Team {
	t.Helper()
	rec, err := record.NewTeam(in, n)
	if err != nil {
		t.Fatalf("NewTeam error: %v", err)
	}
	return rec
}

func TestTeamResolveExactName(t *testing.T) {
	norm := normalize.New()
	env := newTestEnv(norm, DefaultThresholds())
	rec := newTeamRecord(t, norm, record.TeamInput{
		Source: "espn", SourceID: "t9", League: "NFL", Name: "New England Patriots",
	})

	m, err := env.teams.Resolve(context.Background(), rec)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if m.Method != MethodExactKey {
		t.Errorf("Method = %q, want %q", m.Method, MethodExactKey)
	}
	if m.InternalID != "team-ne" || m.Confidence != 100 {
		t.Errorf("got %q/%d, want team-ne at confidence 100", m.InternalID, m.Confidence)
	}
}

func TestTeamResolveExactAlternateName(t *testing.T) {
	norm := normalize.New()
	env := newTestEnv(norm, DefaultThresholds())
	env.cands.teams = []entity.Team{
		{ID: "team-was", League: "nfl", Name: "Washington Commanders", Abbreviation: "WAS",
			AlternateNames: []string{"Washington Football Team", "Washington Redskins"}},
		{ID: "team-dal", League: "nfl", Name: "Dallas Cowboys", Abbreviation: "DAL"},
	}
	rec := newTeamRecord(t, norm, record.TeamInput{
		Source: "espn", SourceID: "t28", League: "NFL", Name: "Washington Football Team",
	})

	m, err := env.teams.Resolve(context.Background(), rec)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if m.Method != MethodExactKey || m.InternalID != "team-was" {
		t.Errorf("got %q/%q, want exact-key team-was", m.Method, m.InternalID)
	}
}

func TestTeamResolveNearAbbreviation(t *testing.T) {
	// A near-miss abbreviation inside the edit-distance tolerance scores
	// 0.9; with no other features known, that renormalizes to 90 and is
	// accepted on its own.
	norm := normalize.New()
	env := newTestEnv(norm, DefaultThresholds())
	rec := newTeamRecord(t, norm, record.TeamInput{
		Source: "sportsbook_x", SourceID: "nwe", League: "NFL", Abbreviation: "NWE",
	})

	m, err := env.teams.Resolve(context.Background(), rec)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if m.Method != MethodFuzzy {
		t.Errorf("Method = %q, want %q", m.Method, MethodFuzzy)
	}
	if m.InternalID != "team-ne" {
		t.Errorf("InternalID = %q, want team-ne", m.InternalID)
	}
	if m.Confidence != 90 {
		t.Errorf("Confidence = %d, want 90", m.Confidence)
	}
}

func TestTeamResolveThresholdMonotonic(t *testing.T) {
	// The same near-abbreviation record that passes at threshold 85 must
	// fail at 95: raising the bar never accepts more.
	norm := normalize.New()
	strict := DefaultThresholds()
	strict.AcceptThreshold = 95
	env := newTestEnv(norm, strict)
	rec := newTeamRecord(t, norm, record.TeamInput{
		Source: "sportsbook_x", SourceID: "nwe", League: "NFL", Abbreviation: "NWE",
	})

	m, err := env.teams.Resolve(context.Background(), rec)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if m.Method != MethodNoMatch {
		t.Errorf("Method = %q, want %q at threshold 95", m.Method, MethodNoMatch)
	}
	if m.InternalID != "" {
		t.Errorf("InternalID = %q, want empty", m.InternalID)
	}
	if len(m.Detail.Candidates) == 0 {
		t.Error("no-match mapping carries no candidates for review")
	}
}

func TestTeamResolveAbbreviationCollision(t *testing.T) {
	// Two league teams sharing an abbreviation force ambiguous regardless
	// of individual scores.
	norm := normalize.New()
	env := newTestEnv(norm, DefaultThresholds())
	env.cands.teams = []entity.Team{
		{ID: "team-lar", League: "nfl", Name: "Los Angeles Rams", Abbreviation: "LA"},
		{ID: "team-lac", League: "nfl", Name: "Los Angeles Chargers", Abbreviation: "LA"},
	}
	rec := newTeamRecord(t, norm, record.TeamInput{
		Source: "legacy_feed", SourceID: "la", League: "NFL", Abbreviation: "LA",
	})

	m, err := env.teams.Resolve(context.Background(), rec)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if m.Method != MethodAmbiguous {
		t.Fatalf("Method = %q, want %q", m.Method, MethodAmbiguous)
	}
	if m.Detail.Note != "abbreviation collision" {
		t.Errorf("Note = %q, want abbreviation collision", m.Detail.Note)
	}
	if m.InternalID != "" {
		t.Errorf("InternalID = %q, want empty", m.InternalID)
	}

	// A dissimilar name drags the best score below the accept threshold;
	// the collision still forces ambiguous, not no-match.
	weak := newTeamRecord(t, norm, record.TeamInput{
		Source: "legacy_feed", SourceID: "la2", League: "NFL",
		Name: "Gotham Knights", Abbreviation: "LA",
	})
	m, err = env.teams.Resolve(context.Background(), weak)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if m.Method != MethodAmbiguous {
		t.Errorf("Method = %q, want %q below threshold", m.Method, MethodAmbiguous)
	}
	if m.Detail.Note != "abbreviation collision" {
		t.Errorf("Note = %q, want abbreviation collision", m.Detail.Note)
	}
	if m.Confidence >= DefaultThresholds().AcceptThreshold {
		t.Errorf("Confidence = %d, fixture should score below the threshold", m.Confidence)
	}
}

func TestTeamResolveFuzzyName(t *testing.T) {
	norm := normalize.New()
	env := newTestEnv(norm, DefaultThresholds())
	rec := newTeamRecord(t, norm, record.TeamInput{
		Source: "espn", SourceID: "t9x", League: "NFL", Name: "New England Patriotts",
	})

	m, err := env.teams.Resolve(context.Background(), rec)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if m.Method != MethodFuzzy || m.InternalID != "team-ne" {
		t.Errorf("got %q/%q, want fuzzy team-ne", m.Method, m.InternalID)
	}
	if m.Confidence < 85 {
		t.Errorf("Confidence = %d, want >= 85", m.Confidence)
	}
}
