package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lifegraph/lifegraph/internal/entity"
)

// EntitySummary is the queryable view of one stored entity.
type EntitySummary struct {
	ID        string
	Seed      int64
	Birth     int64
	Death     int64 // 0 while alive
	Gender    string
	Race      string
	Ethnicity string
}

// ListEntities returns summaries for every stored entity, ordered by id.
func (s *Store) ListEntities(ctx context.Context) ([]EntitySummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seed, birth_ms, death_ms, gender, race, ethnicity
		FROM entities ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var out []EntitySummary
	for rows.Next() {
		var e EntitySummary
		var death sql.NullInt64
		if err := rows.Scan(&e.ID, &e.Seed, &e.Birth, &death, &e.Gender, &e.Race, &e.Ethnicity); err != nil {
			return nil, fmt.Errorf("list entities: %w", err)
		}
		e.Death = death.Int64
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	return out, nil
}

// CountEntities returns the number of stored entities.
func (s *Store) CountEntities(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entities: %w", err)
	}
	return n, nil
}

// Document returns the stored canonical JSON chronicle for one entity.
// Returns ErrNotFound if the entity was never written.
func (s *Store) Document(ctx context.Context, entityID string) ([]byte, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `
		SELECT document FROM entities WHERE id = ?
	`, entityID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entity %s: %w", entityID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return []byte(doc), nil
}

// Entries returns the flattened entries for one entity in record append
// order.
func (s *Store) Entries(ctx context.Context, entityID string) ([]EntryRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, code_system, code, display, start_ms, end_ms, encounter_id, seq
		FROM entries WHERE entity_id = ? ORDER BY seq
	`, entityID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []EntryRow
	for rows.Next() {
		var row EntryRow
		var display sql.NullString
		var end sql.NullInt64
		var encounterID sql.NullString
		if err := rows.Scan(&row.ID, &row.Kind, &row.Code.System, &row.Code.Code, &display, &row.Start, &end, &encounterID, &row.Seq); err != nil {
			return nil, fmt.Errorf("list entries: %w", err)
		}
		row.Code.Display = display.String
		row.End = end.Int64
		row.EncounterID = encounterID.String
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return out, nil
}

// CountEntriesByCode returns how many entries across all entities carry the
// given code. Useful for prevalence checks over a generated population.
func (s *Store) CountEntriesByCode(ctx context.Context, code entity.Code) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM entries WHERE code_system = ? AND code = ?
	`, code.System, code.Code).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// ErrNotFound marks a read of an entity that was never stored.
var ErrNotFound = errors.New("not found")
