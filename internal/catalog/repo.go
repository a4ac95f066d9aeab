package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/mapforge/internal/apperr"
	"github.com/starford/mapforge/internal/models"
)

const columns = `id, name, version, description, checksum, layers, points, paths, locations, updated_at`

// Upsert inserts or replaces a map summary.
func (db *DB) Upsert(ctx context.Context, s models.MapSummary) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO maps (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name        = excluded.name,
			version     = excluded.version,
			description = excluded.description,
			checksum    = excluded.checksum,
			layers      = excluded.layers,
			points      = excluded.points,
			paths       = excluded.paths,
			locations   = excluded.locations,
			updated_at  = excluded.updated_at
	`, s.ID, s.Name, s.Version, s.Description, s.Checksum, s.Layers, s.Points, s.Paths, s.Locations, s.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("catalog: upsert %s: %w", s.ID, err)
	}
	return nil
}

// Delete removes a map summary. Deleting an unknown id is not an error.
func (db *DB) Delete(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM maps WHERE id = ?`, id); err != nil {
		return fmt.Errorf("catalog: delete %s: %w", id, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (models.MapSummary, error) {
	var s models.MapSummary
	err := row.Scan(&s.ID, &s.Name, &s.Version, &s.Description, &s.Checksum,
		&s.Layers, &s.Points, &s.Paths, &s.Locations, &s.UpdatedAt)
	return s, err
}

// Get returns one map summary.
func (db *DB) Get(ctx context.Context, id string) (*models.MapSummary, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+columns+` FROM maps WHERE id = ?`, id)
	s, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("catalog: map %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get %s: %w", id, err)
	}
	return &s, nil
}

// List returns summaries whose id or name contains query, ordered by name,
// plus the total number of matches. A non-positive limit means 50.
func (db *DB) List(ctx context.Context, query string, limit, offset int) ([]models.MapSummary, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	where := ""
	var args []any
	if q := strings.TrimSpace(query); q != "" {
		where = ` WHERE id LIKE ? ESCAPE '\' OR name LIKE ? ESCAPE '\'`
		pattern := "%" + escapeLike(q) + "%"
		args = append(args, pattern, pattern)
	}

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM maps`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("catalog: count: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+columns+` FROM maps`+where+` ORDER BY name COLLATE NOCASE, id LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("catalog: list: %w", err)
	}
	defer rows.Close()

	out := []models.MapSummary{}
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("catalog: scan: %w", err)
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// AllChecksums returns the stored checksum of every cataloged map.
func (db *DB) AllChecksums(ctx context.Context) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, checksum FROM maps`)
	if err != nil {
		return nil, fmt.Errorf("catalog: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
