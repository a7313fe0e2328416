package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/castboard/internal/apperr"
	"github.com/lalith-99/castboard/internal/models"
)

type ChannelStore struct {
	pool *pgxpool.Pool
}

func NewChannelStore(pool *pgxpool.Pool) *ChannelStore {
	return &ChannelStore{pool: pool}
}

// stateColumns is the enriched projection shared by GetState and
// ListStates: channel row plus the bound media's details when resolvable.
// LEFT JOIN, not INNER: a dangling current_media_id must still return the
// channel, just with NULL media fields.
const stateColumns = `
	c.id, c.name, c.description, c.current_media_id, c.created_at,
	m.id, m.filename, m.mime_type`

func (s *ChannelStore) Insert(ctx context.Context, name, description string) (*models.Channel, error) {
	query := `
		INSERT INTO channels (name, description, current_media_id)
		VALUES ($1, $2, NULL)
		RETURNING id, name, description, current_media_id, created_at`

	var ch models.Channel
	err := s.pool.QueryRow(ctx, query, name, description).Scan(
		&ch.ID,
		&ch.Name,
		&ch.Description,
		&ch.CurrentMediaID,
		&ch.CreatedAt,
	)
	if err != nil {
		// 23505 = unique_violation. The constraint is the sole authority
		// on duplicates; no racy pre-check in the handler.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, apperr.Conflict("Channel already exists.")
		}
		return nil, fmt.Errorf("insert channel: %w", err)
	}
	return &ch, nil
}

func (s *ChannelStore) GetState(ctx context.Context, name string) (*models.ChannelState, error) {
	query := `
		SELECT ` + stateColumns + `
		FROM channels c
		LEFT JOIN media m ON c.current_media_id = m.id
		WHERE c.name = $1`

	var st models.ChannelState
	err := s.pool.QueryRow(ctx, query, name).Scan(
		&st.ID,
		&st.Name,
		&st.Description,
		&st.CurrentMediaID,
		&st.CreatedAt,
		&st.MediaID,
		&st.MediaFilename,
		&st.MediaMimeType,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get channel state: %w", err)
	}
	return &st, nil
}

func (s *ChannelStore) ListStates(ctx context.Context) ([]models.ChannelState, error) {
	query := `
		SELECT ` + stateColumns + `
		FROM channels c
		LEFT JOIN media m ON c.current_media_id = m.id
		ORDER BY c.created_at DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list channel states: %w", err)
	}
	defer rows.Close()

	states := make([]models.ChannelState, 0)
	for rows.Next() {
		var st models.ChannelState
		if err := rows.Scan(
			&st.ID,
			&st.Name,
			&st.Description,
			&st.CurrentMediaID,
			&st.CreatedAt,
			&st.MediaID,
			&st.MediaFilename,
			&st.MediaMimeType,
		); err != nil {
			return nil, fmt.Errorf("scan channel state: %w", err)
		}
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channel states: %w", err)
	}

	return states, nil
}

func (s *ChannelStore) UpdateDescription(ctx context.Context, name, description string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE channels SET description = $1 WHERE name = $2`, description, name)
	if err != nil {
		return fmt.Errorf("update channel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Channel not found.")
	}
	return nil
}

func (s *ChannelStore) SetCurrentMedia(ctx context.Context, name string, mediaID int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE channels SET current_media_id = $1 WHERE name = $2`, mediaID, name)
	if err != nil {
		return fmt.Errorf("set channel media: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Channel not found.")
	}
	return nil
}

func (s *ChannelStore) Delete(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM channels WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Channel not found.")
	}
	return nil
}
