package notify

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ChannelPrefix namespaces the per-setlist pub/sub channels. One channel per
// setlist gives per-key signal ordering; nothing orders signals across keys.
const ChannelPrefix = "setlist:"

// Signal is an invalidation marker, not a state payload. Subscribers that
// receive one must re-fetch authoritative state; the ids are the only
// trustworthy content.
type Signal struct {
	Type    string `json:"type"`
	Payload struct {
		SetlistID string `json:"setlistId"`
		EntryID   string `json:"entryId,omitempty"`
		Seq       uint64 `json:"seq"`
	} `json:"payload"`
}

// Notifier publishes invalidation signals after committed mutations.
// Publishing is fire-and-forget: failures are logged and swallowed so a
// delivery problem can never fail or roll back the mutation that caused it.
type Notifier struct {
	rdb     *redis.Client
	timeout time.Duration

	mu  sync.Mutex
	seq map[string]uint64
}

func NewNotifier(rdb *redis.Client, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Notifier{
		rdb:     rdb,
		timeout: timeout,
		seq:     make(map[string]uint64),
	}
}

func (n *Notifier) SetlistChanged(ctx context.Context, setlistID, kind string) {
	n.publish(ctx, setlistID, kind, "")
}

func (n *Notifier) VoteChanged(ctx context.Context, setlistID, entryID string) {
	n.publish(ctx, setlistID, "entry.vote", entryID)
}

func (n *Notifier) publish(ctx context.Context, setlistID, kind, entryID string) {
	if n.rdb == nil {
		return
	}

	var sig Signal
	sig.Type = kind
	sig.Payload.SetlistID = setlistID
	sig.Payload.EntryID = entryID
	sig.Payload.Seq = n.next(setlistID)

	data, err := json.Marshal(sig)
	if err != nil {
		log.Printf("setlist-service: marshal signal: %v", err)
		return
	}

	// Detach from the request context so a cancelled request cannot drop
	// the signal, but keep the publish bounded.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	if err := n.rdb.Publish(pubCtx, ChannelPrefix+setlistID, string(data)).Err(); err != nil {
		log.Printf("setlist-service: publish %s: %v", setlistID, err)
	}
}

// next hands out a monotonic per-key sequence so subscribers can detect
// stale or duplicate deliveries (delivery is at-least-once). Counters live
// for the process lifetime and are never evicted: resetting one would make
// fresh signals look stale to connected subscribers. One uint64 per setlist
// seen since boot is the cost.
func (n *Notifier) next(setlistID string) uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seq[setlistID]++
	return n.seq[setlistID]
}
