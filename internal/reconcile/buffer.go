package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	ActionVote    = "vote"
	ActionSongAdd = "song_add"
)

// Action is one thing a visitor did before signing in: a vote on an entry
// or an intent to add a song to a setlist.
type Action struct {
	Type      string    `json:"type"`
	EntryID   string    `json:"entryId,omitempty"`
	SetlistID string    `json:"setlistId,omitempty"`
	SongID    string    `json:"songId,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	QueuedAt  time.Time `json:"queuedAt"`
}

var errBufferFull = errors.New("session buffer is full")

// Buffer is the durable pre-authentication action queue: one bounded Redis
// list per session with an explicit expiry. Old ad hoc client storage is
// exactly what this replaces.
type Buffer struct {
	rdb    *redis.Client
	maxLen int64
	ttl    time.Duration
}

const (
	defaultBufferMax = 200
	defaultBufferTTL = 7 * 24 * time.Hour
)

func NewBuffer(rdb *redis.Client, maxLen int, ttl time.Duration) *Buffer {
	if maxLen <= 0 {
		maxLen = defaultBufferMax
	}
	if ttl <= 0 {
		ttl = defaultBufferTTL
	}
	return &Buffer{rdb: rdb, maxLen: int64(maxLen), ttl: ttl}
}

func bufferKey(sessionID string) string { return "anon:" + sessionID }

// Append queues an action. When the session is already at capacity the
// oldest actions are kept and the new one is rejected; a visitor with 200
// queued actions is past the point where silently dropping history helps.
func (b *Buffer) Append(ctx context.Context, sessionID string, a Action) error {
	if a.QueuedAt.IsZero() {
		a.QueuedAt = time.Now().UTC()
	}
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}

	key := bufferKey(sessionID)
	n, err := b.rdb.LLen(ctx, key).Result()
	if err != nil {
		return err
	}
	if n >= b.maxLen {
		return errBufferFull
	}

	pipe := b.rdb.TxPipeline()
	pipe.RPush(ctx, key, string(data))
	pipe.LTrim(ctx, key, 0, b.maxLen-1)
	pipe.Expire(ctx, key, b.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Load returns the queued actions oldest-first.
func (b *Buffer) Load(ctx context.Context, sessionID string) ([]Action, error) {
	raw, err := b.rdb.LRange(ctx, bufferKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	actions := make([]Action, 0, len(raw))
	for _, item := range raw {
		var a Action
		if err := json.Unmarshal([]byte(item), &a); err != nil {
			// A corrupt item must not strand the rest of the queue.
			continue
		}
		actions = append(actions, a)
	}
	return actions, nil
}

// Clear discards the session queue after reconciliation.
func (b *Buffer) Clear(ctx context.Context, sessionID string) error {
	return b.rdb.Del(ctx, bufferKey(sessionID)).Err()
}
