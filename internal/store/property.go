// Package store implements record access for properties, conversations and
// messages over PostgreSQL, plus a Redis read-through cache for the
// property list.
package store

import (
	"context"
	"database/sql"

	apperrors "property-concierge/internal/common/errors"
	"property-concierge/internal/models"
)

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

type PropertyStore struct {
	db     *sql.DB
	logger Logger
}

func NewPropertyStore(db *sql.DB, log Logger) *PropertyStore {
	return &PropertyStore{
		db: db,
		logger: log.With(map[string]interface{}{
			"component": "property-store",
		}),
	}
}

const listPropertiesQuery = `
	SELECT id, name, address, description, extra, slug, created_at
	FROM properties
	ORDER BY created_at ASC
	LIMIT $1`

// List returns properties in creation order, capped at limit.
func (s *PropertyStore) List(ctx context.Context, limit int) ([]models.Property, error) {
	rows, err := s.db.QueryContext(ctx, listPropertiesQuery, limit)
	if err != nil {
		return nil, apperrors.NewStorageError("list properties", err)
	}
	defer rows.Close()

	var properties []models.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, apperrors.NewStorageError("scan property", err)
		}
		properties = append(properties, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("list properties", err)
	}
	return properties, nil
}

const getPropertyQuery = `
	SELECT id, name, address, description, extra, slug, created_at
	FROM properties
	WHERE id = $1`

// GetByID fetches one property, returning a NotFound error when absent.
func (s *PropertyStore) GetByID(ctx context.Context, id string) (models.Property, error) {
	row := s.db.QueryRowContext(ctx, getPropertyQuery, id)

	p, err := scanProperty(row)
	if err == sql.ErrNoRows {
		return models.Property{}, apperrors.NewNotFoundError("property", id)
	}
	if err != nil {
		return models.Property{}, apperrors.NewStorageError("get property", err)
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProperty(row rowScanner) (models.Property, error) {
	var p models.Property
	var address, description, extra, slug sql.NullString

	if err := row.Scan(&p.ID, &p.Name, &address, &description, &extra, &slug, &p.CreatedAt); err != nil {
		return models.Property{}, err
	}
	p.Address = address.String
	p.Description = description.String
	p.Extra = extra.String
	p.Slug = slug.String
	return p, nil
}
