package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/castboard/internal/apperr"
	"github.com/lalith-99/castboard/internal/models"
)

type MediaStore struct {
	pool *pgxpool.Pool
}

func NewMediaStore(pool *pgxpool.Pool) *MediaStore {
	return &MediaStore{pool: pool}
}

func (s *MediaStore) Insert(ctx context.Context, filename, mimeType string) (*models.Media, error) {
	query := `
		INSERT INTO media (filename, mime_type)
		VALUES ($1, $2)
		RETURNING id, filename, mime_type, created_at`

	var m models.Media
	err := s.pool.QueryRow(ctx, query, filename, mimeType).Scan(
		&m.ID,
		&m.Filename,
		&m.MimeType,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert media: %w", err)
	}
	return &m, nil
}

func (s *MediaStore) GetByID(ctx context.Context, id int64) (*models.Media, error) {
	return s.getOne(ctx,
		`SELECT id, filename, mime_type, created_at FROM media WHERE id = $1`, id)
}

func (s *MediaStore) GetByFilename(ctx context.Context, filename string) (*models.Media, error) {
	return s.getOne(ctx,
		`SELECT id, filename, mime_type, created_at FROM media WHERE filename = $1`, filename)
}

func (s *MediaStore) getOne(ctx context.Context, query string, arg any) (*models.Media, error) {
	var m models.Media
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&m.ID,
		&m.Filename,
		&m.MimeType,
		&m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get media: %w", err)
	}
	return &m, nil
}

func (s *MediaStore) ListPaged(ctx context.Context, page models.PageOptions) ([]models.Media, int64, error) {
	query := `
		SELECT id, filename, mime_type, created_at
		FROM media
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := s.pool.Query(ctx, query, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()

	items := make([]models.Media, 0, page.Limit)
	for rows.Next() {
		var m models.Media
		if err := rows.Scan(&m.ID, &m.Filename, &m.MimeType, &m.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan media: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate media: %w", err)
	}

	// Separate COUNT rather than a window function: the table is small
	// and the listing is not the hot path (polling is).
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM media`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count media: %w", err)
	}

	return items, total, nil
}

// Delete removes the metadata row only. Channels referencing the id keep
// their now-dangling pointer; reads tolerate that via LEFT JOIN.
func (s *MediaStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM media WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Media not found.")
	}
	return nil
}

func (s *MediaStore) ChannelsUsing(ctx context.Context, mediaID int64) ([]models.Channel, error) {
	query := `
		SELECT id, name, description, current_media_id, created_at
		FROM channels
		WHERE current_media_id = $1
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, mediaID)
	if err != nil {
		return nil, fmt.Errorf("channels using media: %w", err)
	}
	defer rows.Close()

	channels := make([]models.Channel, 0)
	for rows.Next() {
		var ch models.Channel
		if err := rows.Scan(
			&ch.ID,
			&ch.Name,
			&ch.Description,
			&ch.CurrentMediaID,
			&ch.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}

	return channels, nil
}
