package vote

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the slice of *pgxpool.Pool the store uses; tests substitute a
// pgxmock pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store interface {
	// EntrySetlist resolves an entry to its setlist, or pgx.ErrNoRows.
	EntrySetlist(ctx context.Context, entryID string) (string, error)
	// CastVote inserts the (entry, user) vote. Reports false without error
	// when the vote already exists.
	CastVote(ctx context.Context, entryID, userID string) (bool, error)
	// RemoveVote deletes the (entry, user) vote. Reports false when there
	// was nothing to delete; that is a safe no-op, not an error.
	RemoveVote(ctx context.Context, entryID, userID string) (bool, error)
	VoteCount(ctx context.Context, entryID string) (int, error)
	HasVote(ctx context.Context, entryID, userID string) (bool, error)
	SetlistTally(ctx context.Context, setlistID, userID string) ([]EntryTally, error)
}

type PostgresStore struct {
	pool DB
}

func NewPostgresStore(pool DB) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) EntrySetlist(ctx context.Context, entryID string) (string, error) {
	var setlistID string
	err := s.pool.QueryRow(ctx, `
        SELECT setlist_id FROM entries WHERE id = $1
    `, entryID).Scan(&setlistID)
	return setlistID, err
}

func (s *PostgresStore) CastVote(ctx context.Context, entryID, userID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
        INSERT INTO votes (entry_id, user_id)
        VALUES ($1, $2)
        ON CONFLICT (entry_id, user_id) DO NOTHING
    `, entryID, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return false, pgx.ErrNoRows
		}
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) RemoveVote(ctx context.Context, entryID, userID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
        DELETE FROM votes WHERE entry_id = $1 AND user_id = $2
    `, entryID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) VoteCount(ctx context.Context, entryID string) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx, `
        SELECT COUNT(*) FROM votes WHERE entry_id = $1
    `, entryID).Scan(&total)
	return total, err
}

func (s *PostgresStore) HasVote(ctx context.Context, entryID, userID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
        SELECT EXISTS(SELECT 1 FROM votes WHERE entry_id = $1 AND user_id = $2)
    `, entryID, userID).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) SetlistTally(ctx context.Context, setlistID, userID string) ([]EntryTally, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT e.id,
               COUNT(v.id) AS c,
               COALESCE(BOOL_OR(v.user_id = $2), false) AS is_my_vote
        FROM entries e
        LEFT JOIN votes v ON v.entry_id = e.id
        WHERE e.setlist_id = $1
        GROUP BY e.id, e.position
        ORDER BY e.position ASC
    `, setlistID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EntryTally
	for rows.Next() {
		var t EntryTally
		if err := rows.Scan(&t.EntryID, &t.Count, &t.IsMyVote); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
