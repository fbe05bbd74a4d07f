// Package store provides the SQLite-backed implementations of the
// resolver's collaborator interfaces: durable mappings and read-only
// canonical candidates.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sydlexius/crosswalk/internal/entity"
	"github.com/sydlexius/crosswalk/internal/resolve"
)

// ErrSupersedeDenied is returned when a supersession is attempted without
// manual-override or administrative re-resolution authority.
var ErrSupersedeDenied = errors.New("supersede requires manual override or administrative authority")

// ErrSupersedeConflict is returned when the mapping to supersede is no
// longer the current one for its key.
var ErrSupersedeConflict = errors.New("mapping already superseded")

const mappingColumns = `id, source, source_id, entity_type, internal_id,
	confidence, method, detail, resolved_at, superseded`

// MappingStore persists resolution decisions in SQLite. A partial unique
// index guarantees at most one non-superseded row per key, which makes
// PutIfAbsent race-safe across workers.
type MappingStore struct {
	db *sql.DB
}

// NewMappingStore creates a mapping store.
func NewMappingStore(db *sql.DB) *MappingStore {
	return &MappingStore{db: db}
}

// Get returns the non-superseded mapping for the key, or nil.
func (s *MappingStore) Get(ctx context.Context, source, sourceID string, typ entity.Type) (*resolve.Mapping, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+mappingColumns+` FROM mappings
		WHERE source = ? AND source_id = ? AND entity_type = ? AND superseded = 0`,
		source, sourceID, string(typ))
	m, err := scanMapping(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting mapping: %w", err)
	}
	return m, nil
}

// PutIfAbsent inserts m unless a non-superseded mapping already exists for
// its key. On conflict the existing row is returned; the caller adopts it.
func (s *MappingStore) PutIfAbsent(ctx context.Context, m *resolve.Mapping) (*resolve.Mapping, bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO mappings (`+mappingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT (source, source_id, entity_type) WHERE superseded = 0 DO NOTHING`,
		insertArgs(m)...)
	if err != nil {
		return nil, false, fmt.Errorf("inserting mapping: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("inserting mapping: %w", err)
	}
	if n > 0 {
		return m, false, nil
	}

	existing, err := s.Get(ctx, m.Source, m.SourceID, m.EntityType)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("mapping conflict for %s:%s but no current row", m.Source, m.SourceID)
	}
	return existing, true, nil
}

// Supersede marks old superseded and inserts m in one transaction. The old
// row stays in place for the audit trail.
func (s *MappingStore) Supersede(ctx context.Context, old, m *resolve.Mapping, admin bool) error {
	if m.Method != resolve.MethodManual && !admin {
		return ErrSupersedeDenied
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning supersede: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE mappings SET superseded = 1 WHERE id = ? AND superseded = 0`, old.ID)
	if err != nil {
		return fmt.Errorf("marking mapping superseded: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("marking mapping superseded: %w", err)
	}
	if n == 0 {
		return ErrSupersedeConflict
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO mappings (`+mappingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		insertArgs(m)...); err != nil {
		return fmt.Errorf("inserting superseding mapping: %w", err)
	}

	return tx.Commit()
}

// History returns every mapping ever recorded for a key, newest first,
// including superseded rows.
func (s *MappingStore) History(ctx context.Context, source, sourceID string, typ entity.Type) ([]*resolve.Mapping, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+mappingColumns+` FROM mappings
		WHERE source = ? AND source_id = ? AND entity_type = ?
		ORDER BY resolved_at DESC, superseded ASC`,
		source, sourceID, string(typ))
	if err != nil {
		return nil, fmt.Errorf("listing mapping history: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []*resolve.Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("listing mapping history: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func insertArgs(m *resolve.Mapping) []any {
	detail, _ := json.Marshal(m.Detail)
	var internalID sql.NullString
	if m.InternalID != "" {
		internalID = sql.NullString{String: m.InternalID, Valid: true}
	}
	return []any{
		m.ID, m.Source, m.SourceID, string(m.EntityType), internalID,
		m.Confidence, string(m.Method), string(detail),
		m.ResolvedAt.UTC().Format(time.RFC3339),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMapping(row rowScanner) (*resolve.Mapping, error) {
	var (
		m          resolve.Mapping
		entityType string
		internalID sql.NullString
		method     string
		detail     string
		resolvedAt string
		superseded int
	)
	if err := row.Scan(&m.ID, &m.Source, &m.SourceID, &entityType, &internalID,
		&m.Confidence, &method, &detail, &resolvedAt, &superseded); err != nil {
		return nil, err
	}
	m.EntityType = entity.Type(entityType)
	m.InternalID = internalID.String
	m.Method = resolve.Method(method)
	m.Superseded = superseded != 0
	if detail != "" {
		if err := json.Unmarshal([]byte(detail), &m.Detail); err != nil {
			return nil, fmt.Errorf("decoding mapping detail: %w", err)
		}
	}
	t, err := time.Parse(time.RFC3339, resolvedAt)
	if err != nil {
		return nil, fmt.Errorf("decoding resolved_at: %w", err)
	}
	m.ResolvedAt = t.UTC()
	return &m, nil
}
