package setlist

import (
	"time"
)

// Setlist is an ordered collection of song entries for one (show, artist)
// pair. Predicted setlists are fan guesses; actual setlists come from the
// import collaborator after the show.
type Setlist struct {
	ID           string    `json:"id"`
	ShowID       string    `json:"showId"`
	ArtistID     string    `json:"artistId"`
	Type         string    `json:"type"` // "predicted" | "actual"
	Name         string    `json:"name"`
	OwnerID      string    `json:"ownerId"`
	Locked       bool      `json:"locked"`
	Accuracy     *int      `json:"accuracy,omitempty"`
	ImportedFrom string    `json:"importedFrom,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Entry is one song slot in a setlist. Positions are 1-based and form a
// contiguous permutation per setlist.
type Entry struct {
	ID        string    `json:"id"`
	SetlistID string    `json:"setlistId"`
	SongID    string    `json:"songId"`
	Position  int       `json:"position"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`

	VoteCount int  `json:"voteCount"`
	IsVoted   bool `json:"isVoted,omitempty"`
}

// PositionUpdate is one element of a bulk reorder payload.
type PositionUpdate struct {
	EntryID  string `json:"entryId"`
	Position int    `json:"position"`
}

// CatalogSong is a song known for an artist, used by the seeder.
type CatalogSong struct {
	SongID    string
	Title     string
	PlayCount int
}

const (
	TypePredicted = "predicted"
	TypeActual    = "actual"
)
