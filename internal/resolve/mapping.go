// Package resolve maps feed-specific identifiers to canonical internal
// identifiers. Each entity type has its own cartographer built on a shared
// pipeline: cache lookup, persisted-mapping lookup, coarse candidate
// filtering, weighted similarity scoring, and an accept/ambiguous/no-match
// decision. Every decision is persisted for audit and is idempotent until
// a manual override or administrative re-resolution supersedes it.
package resolve

import (
	"context"
	"fmt"
	"time"

	"github.com/sydlexius/crosswalk/internal/entity"
)

// Method records how a mapping was produced.
type Method string

// Known match methods. Ambiguity is a first-class outcome, not an error:
// it is an expected state requiring human review.
const (
	MethodExactKey  Method = "exact-key"
	MethodFuzzy     Method = "fuzzy"
	MethodAmbiguous Method = "ambiguous"
	MethodNoMatch   Method = "no-match"
	MethodManual    Method = "manual-override"
)

// CandidateScore is one scored candidate, surfaced on ambiguous and
// no-match mappings so a review workflow can pick the right one.
type CandidateScore struct {
	InternalID string             `json:"internal_id"`
	Label      string             `json:"label,omitempty"`
	Confidence int                `json:"confidence"`
	Features   map[string]float64 `json:"features,omitempty"`
}

// Detail is the decision rationale persisted alongside each mapping.
type Detail struct {
	Input      string             `json:"input,omitempty"`
	Features   map[string]float64 `json:"features,omitempty"`
	Degraded   []string           `json:"degraded,omitempty"`
	Note       string             `json:"note,omitempty"`
	Candidates []CandidateScore   `json:"candidates,omitempty"`
}

// Mapping is a resolution outcome. At most one non-superseded mapping
// exists per (source, source_id, entity_type); supersession is explicit
// and never deletes, preserving the audit trail.
type Mapping struct {
	ID         string      `json:"id"`
	Source     string      `json:"source"`
	SourceID   string      `json:"source_id"`
	EntityType entity.Type `json:"entity_type"`
	InternalID string      `json:"internal_id,omitempty"` // empty = unresolved
	Confidence int         `json:"confidence"`            // 0-100, 100 = exact/asserted
	Method     Method      `json:"method"`
	Detail     Detail      `json:"detail"`
	ResolvedAt time.Time   `json:"resolved_at"`
	Superseded bool        `json:"superseded,omitempty"`
}

// Resolved reports whether the mapping carries a canonical identifier.
func (m *Mapping) Resolved() bool { return m.InternalID != "" }

// Thresholds centralizes every tunable the decision policy depends on.
// It is passed explicitly into each cartographer at construction.
type Thresholds struct {
	// AcceptThreshold is the minimum confidence for automatic acceptance.
	AcceptThreshold int
	// AmbiguityMargin is the minimum confidence gap between the best and
	// second-best candidate for automatic acceptance.
	AmbiguityMargin int
	// TopCandidates bounds the candidate list surfaced for review.
	TopCandidates int
	// StartTimeTolerance is the maximum start-time drift scored above zero,
	// absorbing source timezone errors.
	StartTimeTolerance time.Duration
	// GameDateWindow widens the game candidate date filter on each side.
	GameDateWindow time.Duration
	// AbbrevEditDistance tolerates single-character feed typos in team
	// abbreviations.
	AbbrevEditDistance int
}

// DefaultThresholds returns the stock decision policy.
func DefaultThresholds() Thresholds {
	return Thresholds{
		AcceptThreshold:    85,
		AmbiguityMargin:    10,
		TopCandidates:      3,
		StartTimeTolerance: 3 * time.Hour,
		GameDateWindow:     24 * time.Hour,
		AbbrevEditDistance: 1,
	}
}

// CandidateStore is read access to canonical entities, bounded by coarse
// filters. Implementations should index or cap so the returned sets stay
// small; the resolver scores every returned candidate.
type CandidateStore interface {
	ListPlayers(ctx context.Context, f entity.PlayerFilter) ([]entity.Player, error)
	ListTeams(ctx context.Context, f entity.TeamFilter) ([]entity.Team, error)
	ListGames(ctx context.Context, f entity.GameFilter) ([]entity.Game, error)
}

// MappingStore is the durable store of resolution decisions. PutIfAbsent
// must be atomic: when two workers race on a never-seen key, exactly one
// insert wins and the loser adopts the winner's mapping.
type MappingStore interface {
	// Get returns the non-superseded mapping for the key, or nil.
	Get(ctx context.Context, source, sourceID string, typ entity.Type) (*Mapping, error)
	// PutIfAbsent stores m unless a non-superseded mapping already exists
	// for its key, returning the stored mapping and whether it pre-existed.
	PutIfAbsent(ctx context.Context, m *Mapping) (*Mapping, bool, error)
	// Supersede marks old superseded and stores m in its place. Allowed
	// only for manual overrides or callers holding administrative
	// re-resolution authority.
	Supersede(ctx context.Context, old, m *Mapping, admin bool) error
}

// CandidateStoreError wraps a candidate store failure. It propagates to
// the caller unchanged and is never converted into a no-match mapping.
type CandidateStoreError struct {
	Op  string
	Err error
}

func (e *CandidateStoreError) Error() string {
	return fmt.Sprintf("candidate store: %s: %v", e.Op, e.Err)
}

func (e *CandidateStoreError) Unwrap() error { return e.Err }

// PersistenceError wraps a mapping store failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("mapping store: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
