package setlist

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// Guard enforces the setlist lifecycle: while open only the owner mutates
// entries and positions; once locked nobody does, owner included. Lock is
// one-way.
type Guard struct {
	db DB
}

func NewGuard(db DB) *Guard {
	return &Guard{db: db}
}

func (g *Guard) AccessInfo(ctx context.Context, setlistID string) (ownerID string, locked bool, err error) {
	err = g.db.QueryRow(ctx, `
		SELECT owner_id, locked
		FROM setlists
		WHERE id = $1
	`, setlistID).Scan(&ownerID, &locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, ErrNotFound
	}
	return ownerID, locked, err
}

// AuthorizeMutation gates every entry/position mutation.
func (g *Guard) AuthorizeMutation(ctx context.Context, setlistID, userID string) error {
	if userID == "" {
		return ErrNotAuthenticated
	}
	ownerID, locked, err := g.AccessInfo(ctx, setlistID)
	if err != nil {
		return err
	}
	if locked {
		return ErrLocked
	}
	if userID != ownerID {
		return ErrForbidden
	}
	return nil
}

// Lock transitions a setlist to its terminal state. Locking an already
// locked setlist is a no-op.
func (g *Guard) Lock(ctx context.Context, setlistID, userID string) error {
	if userID == "" {
		return ErrNotAuthenticated
	}
	ownerID, locked, err := g.AccessInfo(ctx, setlistID)
	if err != nil {
		return err
	}
	if userID != ownerID {
		return ErrForbidden
	}
	if locked {
		return nil
	}
	_, err = g.db.Exec(ctx, `
		UPDATE setlists SET locked = TRUE WHERE id = $1
	`, setlistID)
	return err
}
