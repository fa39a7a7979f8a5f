package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// PutEntity inserts or replaces an entity row.
func PutEntity(q Querier, e *models.Entity) error {
	fields, err := json.Marshal(e.Fields)
	if err != nil {
		return fmt.Errorf("encode fields of %s: %w", e.ID, err)
	}
	sources, err := json.Marshal(e.Sources)
	if err != nil {
		return fmt.Errorf("encode sources of %s: %w", e.ID, err)
	}

	_, err = q.Exec(`
		INSERT INTO entities (id, kind, category, name, fields, produced_by, sources, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			category = excluded.category,
			name = excluded.name,
			fields = excluded.fields,
			sources = excluded.sources,
			updated_at = excluded.updated_at
	`, e.ID, string(e.Kind), string(e.Category), e.Name, string(fields), e.ProducedBy, string(sources),
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put entity %s: %w", e.ID, err)
	}
	return nil
}

// TombstoneEntity deletes an entity row and records its id as retired.
func TombstoneEntity(q Querier, id, taskID string, at time.Time) error {
	if _, err := q.Exec(`DELETE FROM entities WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete entity %s: %w", id, err)
	}
	if _, err := q.Exec(`
		INSERT OR IGNORE INTO tombstones (id, task_id, discarded_at) VALUES (?, ?, ?)
	`, id, taskID, formatTime(at)); err != nil {
		return fmt.Errorf("tombstone entity %s: %w", id, err)
	}
	return nil
}

// SaveEntity writes a single entity in its own transaction.
func (db *DB) SaveEntity(e *models.Entity) error {
	return db.Transaction(func(tx *sql.Tx) error {
		return PutEntity(tx, e)
	})
}

// GetEntity retrieves an entity by id. It returns nil when no row exists.
func (db *DB) GetEntity(id string) (*models.Entity, error) {
	row := db.QueryRow(`
		SELECT id, kind, category, name, fields, produced_by, sources, created_at, updated_at
		FROM entities WHERE id = ?
	`, id)

	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", err)
	}
	return e, nil
}

// ListEntities returns all entities ordered by creation time.
func (db *DB) ListEntities() ([]*models.Entity, error) {
	rows, err := db.Query(`
		SELECT id, kind, category, name, fields, produced_by, sources, created_at, updated_at
		FROM entities ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var out []*models.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListTombstones returns all retired entity ids.
func (db *DB) ListTombstones() ([]string, error) {
	rows, err := db.Query(`SELECT id FROM tombstones ORDER BY discarded_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list tombstones: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tombstone: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(r rowScanner) (*models.Entity, error) {
	var e models.Entity
	var kind, category, fields, sources, createdAt, updatedAt string
	if err := r.Scan(&e.ID, &kind, &category, &e.Name, &fields, &e.ProducedBy, &sources, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	e.Kind = models.Kind(kind)
	e.Category = models.Category(category)
	if err := json.Unmarshal([]byte(fields), &e.Fields); err != nil {
		return nil, fmt.Errorf("decode fields of %s: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(sources), &e.Sources); err != nil {
		return nil, fmt.Errorf("decode sources of %s: %w", e.ID, err)
	}
	e.CreatedAt, _ = parseTime(createdAt)
	e.UpdatedAt, _ = parseTime(updatedAt)
	return &e, nil
}
