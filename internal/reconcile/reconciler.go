package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"setlist-service/internal/setlist"
)

// VoteStore is the slice of the vote aggregator the reconciler needs.
type VoteStore interface {
	HasVote(ctx context.Context, entryID, userID string) (bool, error)
	CastVote(ctx context.Context, entryID, userID string) (bool, error)
}

// Ledger is the slice of the position ledger the reconciler needs.
type Ledger interface {
	InsertEntry(ctx context.Context, setlistID, songID string, requestedPos int, notes string) (*setlist.Entry, error)
}

// Access re-validates setlist state before a queued song-add applies.
type Access interface {
	AccessInfo(ctx context.Context, setlistID string) (ownerID string, locked bool, err error)
}

type VoteAction struct {
	EntryID string `json:"entryId"`
}

type SongAddAction struct {
	SetlistID string `json:"setlistId"`
	SongID    string `json:"songId"`
	Notes     string `json:"notes,omitempty"`
}

type Batch struct {
	Votes    []VoteAction    `json:"votes"`
	SongAdds []SongAddAction `json:"songAdds"`
}

type ItemError struct {
	Action string `json:"action"`
	Ref    string `json:"ref"`
	Reason string `json:"reason"`
}

type Result struct {
	VotesSynced int         `json:"votesSynced"`
	SongsSynced int         `json:"songsSynced"`
	Errors      []ItemError `json:"errors"`
}

// Reconciler merges a session's pre-authentication actions into the user's
// durable records. Batches are idempotent per (session, batch): replays are
// detected with a guard key and applied zero times.
type Reconciler struct {
	buf    *Buffer
	votes  VoteStore
	ledger Ledger
	access Access
	rdb    *redis.Client

	guardTTL time.Duration

	mu    sync.Mutex
	locks map[string]*userLock
}

// userLock is refcounted so the map only holds users with a reconcile in
// flight.
type userLock struct {
	sync.Mutex
	refs int
}

// NewReconciler wires the reconciler. guardTTL bounds how long an applied
// (session, batch) pair is remembered; it should be at least the buffer TTL
// so a replay can never outlive its guard.
func NewReconciler(buf *Buffer, votes VoteStore, ledger Ledger, access Access, rdb *redis.Client, guardTTL time.Duration) *Reconciler {
	if guardTTL <= 0 {
		guardTTL = defaultBufferTTL
	}
	return &Reconciler{
		buf:      buf,
		votes:    votes,
		ledger:   ledger,
		access:   access,
		rdb:      rdb,
		guardTTL: guardTTL,
		locks:    make(map[string]*userLock),
	}
}

// ReconcileSession drains the session buffer into a batch and applies it.
func (r *Reconciler) ReconcileSession(ctx context.Context, userID, sessionID string) (*Result, error) {
	actions, err := r.buf.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	batch := batchFrom(actions)
	res, err := r.Reconcile(ctx, userID, sessionID, batch)
	if err != nil {
		return nil, err
	}
	if err := r.buf.Clear(ctx, sessionID); err != nil {
		log.Printf("setlist-service: clear session %s: %v", sessionID, err)
	}
	return res, nil
}

// Reconcile applies one batch under the user's mutex. Item failures land in
// Result.Errors and never abort the remaining items.
func (r *Reconciler) Reconcile(ctx context.Context, userID, sessionID string, batch Batch) (*Result, error) {
	if userID == "" {
		return nil, errNotAuthenticated
	}

	unlock := r.lockUser(userID)
	defer unlock()

	applied, err := r.markApplied(ctx, sessionID, batch)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Replay of a batch this session already reconciled.
		return &Result{Errors: []ItemError{}}, nil
	}

	res := &Result{Errors: []ItemError{}}

	for _, v := range batch.Votes {
		exists, err := r.votes.HasVote(ctx, v.EntryID, userID)
		if err != nil {
			res.Errors = append(res.Errors, ItemError{Action: ActionVote, Ref: v.EntryID, Reason: err.Error()})
			continue
		}
		if exists {
			continue
		}
		created, err := r.votes.CastVote(ctx, v.EntryID, userID)
		if err != nil {
			res.Errors = append(res.Errors, ItemError{Action: ActionVote, Ref: v.EntryID, Reason: err.Error()})
			continue
		}
		if created {
			res.VotesSynced++
		}
	}

	for _, a := range batch.SongAdds {
		_, locked, err := r.access.AccessInfo(ctx, a.SetlistID)
		if err != nil {
			res.Errors = append(res.Errors, ItemError{Action: ActionSongAdd, Ref: a.SetlistID, Reason: err.Error()})
			continue
		}
		if locked {
			res.Errors = append(res.Errors, ItemError{Action: ActionSongAdd, Ref: a.SetlistID, Reason: "setlist is locked"})
			continue
		}
		// Tail insert; the ledger clamps oversized positions to N+1.
		if _, err := r.ledger.InsertEntry(ctx, a.SetlistID, a.SongID, 1<<30, a.Notes); err != nil {
			res.Errors = append(res.Errors, ItemError{Action: ActionSongAdd, Ref: a.SetlistID, Reason: err.Error()})
			continue
		}
		res.SongsSynced++
	}

	return res, nil
}

// markApplied claims the (session, batch) pair. The guard key outlives the
// buffer so late replays stay no-ops.
func (r *Reconciler) markApplied(ctx context.Context, sessionID string, batch Batch) (bool, error) {
	key := fmt.Sprintf("anon:done:%s:%s", sessionID, batchHash(batch))
	return r.rdb.SetNX(ctx, key, "1", r.guardTTL).Result()
}

func (r *Reconciler) lockUser(userID string) func() {
	r.mu.Lock()
	l, ok := r.locks[userID]
	if !ok {
		l = &userLock{}
		r.locks[userID] = l
	}
	l.refs++
	r.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, userID)
		}
		r.mu.Unlock()
	}
}

func batchHash(batch Batch) string {
	data, _ := json.Marshal(batch)
	h := fnv.New64a()
	_, _ = h.Write(data)
	return fmt.Sprintf("%016x", h.Sum64())
}

func batchFrom(actions []Action) Batch {
	var batch Batch
	for _, a := range actions {
		switch a.Type {
		case ActionVote:
			batch.Votes = append(batch.Votes, VoteAction{EntryID: a.EntryID})
		case ActionSongAdd:
			batch.SongAdds = append(batch.SongAdds, SongAddAction{
				SetlistID: a.SetlistID,
				SongID:    a.SongID,
				Notes:     a.Notes,
			})
		}
	}
	return batch
}
