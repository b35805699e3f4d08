package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lifegraph/lifegraph/internal/entity"
	"github.com/lifegraph/lifegraph/internal/export"
)

// WriteEntity inserts an entity and its flattened record entries in one
// transaction. Uses ON CONFLICT(id) DO NOTHING for idempotency - writing
// the same entity twice is a no-op, so a retried worker never duplicates
// rows.
func (s *Store) WriteEntity(ctx context.Context, e *entity.Entity) error {
	doc, err := export.Document(e)
	if err != nil {
		return fmt.Errorf("write entity: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write entity: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entities
		(id, seed, birth_ms, death_ms, gender, race, ethnicity, document)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		e.ID,
		e.Seed,
		e.Birth,
		nullableMillis(e.Death),
		e.Gender,
		e.Race,
		e.Ethnicity,
		string(doc),
	)
	if err != nil {
		return fmt.Errorf("write entity: %w", err)
	}

	for _, row := range flattenRecord(e.Record) {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO entries
			(id, entity_id, kind, code_system, code, display, start_ms, end_ms, encounter_id, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`,
			row.ID,
			e.ID,
			row.Kind,
			row.Code.System,
			row.Code.Code,
			row.Code.Display,
			row.Start,
			nullableMillis(row.End),
			nullableString(row.EncounterID),
			row.Seq,
		)
		if err != nil {
			return fmt.Errorf("write entry %s: %w", row.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write entity: commit: %w", err)
	}
	return nil
}

// EntryRow is the flattened, queryable form of one record entry.
type EntryRow struct {
	ID          string
	Kind        string
	Code        entity.Code
	Start       int64
	End         int64
	EncounterID string
	Seq         int64
}

// flattenRecord projects every record entry onto the shared row shape.
func flattenRecord(r *entity.Record) []EntryRow {
	var rows []EntryRow
	add := func(kind string, m entity.Meta, encounterID string) {
		rows = append(rows, EntryRow{
			ID:          m.ID,
			Kind:        kind,
			Code:        m.Code,
			Start:       m.Start,
			End:         m.End,
			EncounterID: encounterID,
			Seq:         m.Seq,
		})
	}

	for _, v := range r.Encounters {
		add("encounter", v.Meta, "")
	}
	for _, v := range r.Conditions {
		add("condition", v.Meta, v.EncounterID)
	}
	for _, v := range r.Allergies {
		add("allergy", v.Meta, v.EncounterID)
	}
	for _, v := range r.Medications {
		add("medication", v.Meta, v.EncounterID)
	}
	for _, v := range r.Observations {
		add("observation", v.Meta, v.EncounterID)
	}
	for _, v := range r.Procedures {
		add("procedure", v.Meta, v.EncounterID)
	}
	for _, v := range r.Immunizations {
		add("immunization", v.Meta, v.EncounterID)
	}
	for _, v := range r.CarePlans {
		add("care_plan", v.Meta, v.EncounterID)
	}
	for _, v := range r.Devices {
		add("device", v.Meta, v.EncounterID)
	}
	for _, v := range r.ImagingStudies {
		add("imaging_study", v.Meta, v.EncounterID)
	}
	for _, v := range r.Supplies {
		add("supply", v.Meta, v.EncounterID)
	}
	for _, v := range r.Reports {
		add("report", v.Meta, v.EncounterID)
	}
	return rows
}

func nullableMillis(ms int64) sql.NullInt64 {
	return sql.NullInt64{Int64: ms, Valid: ms != 0}
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
