package vote

import (
	"net/http"
	"time"
)

// Vote is one user's endorsement of an entry: at most one per
// (entry, user), toggled on and off rather than counted.
type Vote struct {
	ID        string    `json:"id"`
	EntryID   string    `json:"entryId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// ToggleResult reports which side of the toggle fired.
type ToggleResult struct {
	Created   bool `json:"created"`
	Removed   bool `json:"removed"`
	VoteCount int  `json:"voteCount"`
}

// EntryTally is the aggregated read model per entry.
type EntryTally struct {
	EntryID  string `json:"entryId"`
	Count    int    `json:"count"`
	IsMyVote bool   `json:"isMyVote"`
}

type voteError struct {
	status int
	msg    string
}

func (e *voteError) Error() string { return e.msg }

var (
	errNotAuthenticated = &voteError{status: http.StatusUnauthorized, msg: "missing user context"}
	errEntryNotFound    = &voteError{status: http.StatusNotFound, msg: "entry not found"}
)
