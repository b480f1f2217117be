package setlist

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Ledger owns the ordered entry list per setlist. After every successful
// mutation positions are a contiguous permutation of 1..N. Mutations on the
// same setlist serialize through a per-setlist mutex plus a transaction;
// different setlists never contend.
type Ledger struct {
	db    DB
	locks *keyLocks
}

func NewLedger(db DB) *Ledger {
	return &Ledger{db: db, locks: newKeyLocks()}
}

// InsertEntry places a song at requestedPos, clamped into [1, N+1], shifting
// everything at or above the slot up by one. Ownership and lock checks are
// the Guard's job and run before this.
func (l *Ledger) InsertEntry(ctx context.Context, setlistID, songID string, requestedPos int, notes string) (*Entry, error) {
	unlock := l.locks.lock(setlistID)
	defer unlock()

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, mapPgErr(err)
	}
	defer tx.Rollback(ctx)

	var total int
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM entries WHERE setlist_id = $1
	`, setlistID).Scan(&total); err != nil {
		return nil, mapPgErr(err)
	}

	pos := requestedPos
	if pos < 1 {
		pos = 1
	}
	if pos > total+1 {
		pos = total + 1
	}

	// Shift in two phases, like Reorder: a plain position+1 over the tail
	// trips the unique (setlist_id, position) index row by row. Park the
	// tail at negative positions, then land each row one slot higher.
	if _, err := tx.Exec(ctx, `
		UPDATE entries
		SET position = -1 * position - 1000000
		WHERE setlist_id = $1 AND position >= $2
	`, setlistID, pos); err != nil {
		return nil, mapPgErr(err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE entries
		SET position = -1 * (position + 1000000) + 1
		WHERE setlist_id = $1 AND position < 0
	`, setlistID); err != nil {
		return nil, mapPgErr(err)
	}

	var e Entry
	err = tx.QueryRow(ctx, `
		INSERT INTO entries (setlist_id, song_id, position, notes)
		VALUES ($1, $2, $3, $4)
		RETURNING id, setlist_id, song_id, position, notes, created_at
	`, setlistID, songID, pos, notes).Scan(
		&e.ID, &e.SetlistID, &e.SongID, &e.Position, &e.Notes, &e.CreatedAt,
	)
	if err != nil {
		return nil, mapPgErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapPgErr(err)
	}
	return &e, nil
}

// RemoveEntry deletes the entry and compacts every higher position down by
// one so no gap survives. Returns the setlist id for notification fan-out.
func (l *Ledger) RemoveEntry(ctx context.Context, setlistID, entryID string) error {
	unlock := l.locks.lock(setlistID)
	defer unlock()

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return mapPgErr(err)
	}
	defer tx.Rollback(ctx)

	var pos int
	err = tx.QueryRow(ctx, `
		SELECT position
		FROM entries
		WHERE id = $1 AND setlist_id = $2
		FOR UPDATE
	`, entryID, setlistID).Scan(&pos)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return mapPgErr(err)
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM entries
		WHERE id = $1 AND setlist_id = $2
	`, entryID, setlistID); err != nil {
		return mapPgErr(err)
	}

	// Same two-phase dance as the insert shift: park the tail, then land
	// each row one slot lower into the gap the delete opened.
	if _, err := tx.Exec(ctx, `
		UPDATE entries
		SET position = -1 * position - 1000000
		WHERE setlist_id = $1 AND position > $2
	`, setlistID, pos); err != nil {
		return mapPgErr(err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE entries
		SET position = -1 * (position + 1000000) - 1
		WHERE setlist_id = $1 AND position < 0
	`, setlistID); err != nil {
		return mapPgErr(err)
	}

	return mapPgErr(tx.Commit(ctx))
}

// Reorder atomically rewrites the whole permutation. The payload must cover
// every current entry exactly once with positions exactly {1..N}; anything
// else fails ErrInvalidOrder and the prior order survives untouched.
func (l *Ledger) Reorder(ctx context.Context, setlistID string, updates []PositionUpdate) error {
	unlock := l.locks.lock(setlistID)
	defer unlock()

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return mapPgErr(err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id FROM entries
		WHERE setlist_id = $1
		ORDER BY position ASC
		FOR UPDATE
	`, setlistID)
	if err != nil {
		return mapPgErr(err)
	}
	current := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return mapPgErr(err)
		}
		current[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return mapPgErr(err)
	}

	if err := validatePermutation(current, updates); err != nil {
		return err
	}

	// Two phases so the unique (setlist_id, position) index never trips
	// mid-rewrite: park everything at negative positions, then land each
	// entry on its final slot.
	if _, err := tx.Exec(ctx, `
		UPDATE entries
		SET position = -1 * position - 1000000
		WHERE setlist_id = $1
	`, setlistID); err != nil {
		return mapPgErr(err)
	}

	for _, u := range updates {
		if _, err := tx.Exec(ctx, `
			UPDATE entries
			SET position = $2
			WHERE id = $1
		`, u.EntryID, u.Position); err != nil {
			return mapPgErr(err)
		}
	}

	return mapPgErr(tx.Commit(ctx))
}

// Entries returns the ordered list; the Ledger, not any client-held copy,
// is the source of truth for order.
func (l *Ledger) Entries(ctx context.Context, setlistID string) ([]Entry, error) {
	rows, err := l.db.Query(ctx, `
		SELECT id, setlist_id, song_id, position, notes, created_at
		FROM entries
		WHERE setlist_id = $1
		ORDER BY position ASC
	`, setlistID)
	if err != nil {
		return nil, mapPgErr(err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.SetlistID, &e.SongID, &e.Position, &e.Notes, &e.CreatedAt); err != nil {
			return nil, mapPgErr(err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgErr(err)
	}
	return entries, nil
}

func validatePermutation(current map[string]bool, updates []PositionUpdate) error {
	if len(updates) != len(current) {
		return ErrInvalidOrder
	}
	seenID := make(map[string]bool, len(updates))
	seenPos := make(map[int]bool, len(updates))
	for _, u := range updates {
		if !current[u.EntryID] || seenID[u.EntryID] {
			return ErrInvalidOrder
		}
		if u.Position < 1 || u.Position > len(updates) || seenPos[u.Position] {
			return ErrInvalidOrder
		}
		seenID[u.EntryID] = true
		seenPos[u.Position] = true
	}
	return nil
}

// mapPgErr classifies store failures: serialization and deadlock losses are
// retryable conflicts, a tripped unique index means a concurrent writer won.
func mapPgErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return ErrConflict
		case "23505":
			return ErrConflict
		case "23503":
			return ErrNotFound
		}
	}
	return err
}
