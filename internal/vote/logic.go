package vote

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// Notifier mirrors the setlist package contract: invalidation-only signals,
// never state payloads.
type Notifier interface {
	VoteChanged(ctx context.Context, setlistID, entryID string)
}

// toggleVote flips the (entry, user) vote. The unique index on
// (entry_id, user_id) is the atomicity primitive: two concurrent toggles
// from the same user cannot produce duplicate rows, and a redundant delete
// is reported as a no-op removal.
//
// Votes stay open on locked setlists. Locking freezes the owner's ordering;
// the audience signal keeps accumulating.
func toggleVote(ctx context.Context, store Store, notifier Notifier, entryID, userID string) (*ToggleResult, error) {
	if userID == "" {
		return nil, errNotAuthenticated
	}

	setlistID, err := store.EntrySetlist(ctx, entryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errEntryNotFound
		}
		return nil, err
	}

	res := &ToggleResult{}
	removed, err := store.RemoveVote(ctx, entryID, userID)
	if err != nil {
		return nil, err
	}
	if removed {
		res.Removed = true
	} else {
		// CastVote reporting false means a concurrent toggle inserted
		// first; the vote exists either way, which is the caller's intent.
		if _, err := store.CastVote(ctx, entryID, userID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, errEntryNotFound
			}
			return nil, err
		}
		res.Created = true
	}

	res.VoteCount, err = store.VoteCount(ctx, entryID)
	if err != nil {
		return nil, err
	}

	if notifier != nil {
		notifier.VoteChanged(ctx, setlistID, entryID)
	}
	return res, nil
}

func voteCount(ctx context.Context, store Store, entryID string) (int, error) {
	if _, err := store.EntrySetlist(ctx, entryID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, errEntryNotFound
		}
		return 0, err
	}
	return store.VoteCount(ctx, entryID)
}
