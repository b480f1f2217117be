package setlist

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Notifier receives invalidation signals after committed mutations.
// Delivery is fire-and-forget: a failed publish never unwinds the mutation.
type Notifier interface {
	SetlistChanged(ctx context.Context, setlistID, kind string)
}

type noopNotifier struct{}

func (noopNotifier) SetlistChanged(context.Context, string, string) {}

// Service wires the Guard around the Ledger and Seeder and owns the
// setlist lifecycle.
type Service struct {
	db       DB
	ledger   *Ledger
	guard    *Guard
	seeder   *Seeder
	importer *ImportClient
	notifier Notifier
}

func NewService(db DB, ledger *Ledger, guard *Guard, seeder *Seeder, importer *ImportClient, notifier Notifier) *Service {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Service{
		db:       db,
		ledger:   ledger,
		guard:    guard,
		seeder:   seeder,
		importer: importer,
		notifier: notifier,
	}
}

func (s *Service) Ledger() *Ledger { return s.ledger }
func (s *Service) Guard() *Guard   { return s.guard }

type CreateParams struct {
	ShowID     string
	ArtistID   string
	ArtistName string
	Name       string
}

// Create inserts the setlist row, then seeds it. Seeding failure is
// isolated: the setlist already exists and is returned regardless.
func (s *Service) Create(ctx context.Context, ownerID string, p CreateParams) (*Setlist, error) {
	if ownerID == "" {
		return nil, ErrNotAuthenticated
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = p.ArtistName + " @ " + p.ShowID
	}

	var sl Setlist
	err := s.db.QueryRow(ctx, `
		INSERT INTO setlists (show_id, artist_id, type, name, owner_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, show_id, artist_id, type, name, owner_id, locked, created_at
	`, p.ShowID, p.ArtistID, TypePredicted, name, ownerID).Scan(
		&sl.ID, &sl.ShowID, &sl.ArtistID, &sl.Type, &sl.Name, &sl.OwnerID, &sl.Locked, &sl.CreatedAt,
	)
	if err != nil {
		return nil, mapPgErr(err)
	}

	if s.seeder != nil {
		s.seeder.Seed(ctx, sl.ID, p.ArtistID, p.ArtistName)
	}

	s.notifier.SetlistChanged(ctx, sl.ID, "setlist.created")
	return &sl, nil
}

// Get returns the setlist and its ordered entries with vote counts. viewerID
// may be empty; it only drives the isVoted flag.
func (s *Service) Get(ctx context.Context, setlistID, viewerID string) (*Setlist, []Entry, error) {
	var sl Setlist
	err := s.db.QueryRow(ctx, `
		SELECT id, show_id, artist_id, type, name, owner_id, locked, accuracy, imported_from, created_at
		FROM setlists
		WHERE id = $1
	`, setlistID).Scan(
		&sl.ID, &sl.ShowID, &sl.ArtistID, &sl.Type, &sl.Name, &sl.OwnerID,
		&sl.Locked, &sl.Accuracy, &sl.ImportedFrom, &sl.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, mapPgErr(err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT e.id, e.setlist_id, e.song_id, e.position, e.notes, e.created_at,
		       COUNT(v.id) AS vote_count,
		       COALESCE(BOOL_OR(v.user_id = $2), false) AS is_voted
		FROM entries e
		LEFT JOIN votes v ON v.entry_id = e.id
		WHERE e.setlist_id = $1
		GROUP BY e.id
		ORDER BY e.position ASC
	`, setlistID, viewerID)
	if err != nil {
		return nil, nil, mapPgErr(err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.SetlistID, &e.SongID, &e.Position, &e.Notes, &e.CreatedAt, &e.VoteCount, &e.IsVoted); err != nil {
			return nil, nil, mapPgErr(err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, mapPgErr(err)
	}
	return &sl, entries, nil
}

func (s *Service) AddEntry(ctx context.Context, setlistID, userID, songID string, position int, notes string) (*Entry, error) {
	if err := s.guard.AuthorizeMutation(ctx, setlistID, userID); err != nil {
		return nil, err
	}
	e, err := s.ledger.InsertEntry(ctx, setlistID, songID, position, notes)
	if err != nil {
		return nil, err
	}
	s.notifier.SetlistChanged(ctx, setlistID, "entry.added")
	return e, nil
}

func (s *Service) RemoveEntry(ctx context.Context, entryID, userID string) error {
	setlistID, err := s.setlistOf(ctx, entryID)
	if err != nil {
		return err
	}
	if err := s.guard.AuthorizeMutation(ctx, setlistID, userID); err != nil {
		return err
	}
	if err := s.ledger.RemoveEntry(ctx, setlistID, entryID); err != nil {
		return err
	}
	s.notifier.SetlistChanged(ctx, setlistID, "entry.removed")
	return nil
}

func (s *Service) Reorder(ctx context.Context, setlistID, userID string, updates []PositionUpdate) error {
	if err := s.guard.AuthorizeMutation(ctx, setlistID, userID); err != nil {
		return err
	}
	if err := s.ledger.Reorder(ctx, setlistID, updates); err != nil {
		return err
	}
	s.notifier.SetlistChanged(ctx, setlistID, "setlist.reordered")
	return nil
}

func (s *Service) Lock(ctx context.Context, setlistID, userID string) error {
	if err := s.guard.Lock(ctx, setlistID, userID); err != nil {
		return err
	}
	s.notifier.SetlistChanged(ctx, setlistID, "setlist.locked")
	return nil
}

// ImportActual pulls the played setlist from the archive and materializes
// it as a locked "actual" setlist whose entries go through the Ledger, so
// the position invariant holds for imported data too.
func (s *Service) ImportActual(ctx context.Context, showID, artistID, artistName, userID string) (*Setlist, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	if s.importer == nil {
		return nil, ErrImportFailed
	}
	imported, err := s.importer.FetchActual(ctx, showID, artistName)
	if err != nil {
		return nil, err
	}

	var sl Setlist
	err = s.db.QueryRow(ctx, `
		INSERT INTO setlists (show_id, artist_id, type, name, owner_id, imported_from)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, show_id, artist_id, type, name, owner_id, locked, created_at
	`, showID, artistID, TypeActual, imported.Name, userID, imported.SourceID).Scan(
		&sl.ID, &sl.ShowID, &sl.ArtistID, &sl.Type, &sl.Name, &sl.OwnerID, &sl.Locked, &sl.CreatedAt,
	)
	if err != nil {
		return nil, mapPgErr(err)
	}

	for i, song := range imported.Songs {
		if _, err := s.ledger.InsertEntry(ctx, sl.ID, song.SongID, i+1, song.Notes); err != nil {
			return nil, err
		}
	}

	// Actual setlists are history, not proposals.
	if _, err := s.db.Exec(ctx, `
		UPDATE setlists SET locked = TRUE WHERE id = $1
	`, sl.ID); err != nil {
		return nil, mapPgErr(err)
	}
	sl.Locked = true
	sl.ImportedFrom = imported.SourceID

	s.notifier.SetlistChanged(ctx, sl.ID, "setlist.imported")
	return &sl, nil
}

func (s *Service) setlistOf(ctx context.Context, entryID string) (string, error) {
	var setlistID string
	err := s.db.QueryRow(ctx, `
		SELECT setlist_id FROM entries WHERE id = $1
	`, entryID).Scan(&setlistID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", mapPgErr(err)
	}
	return setlistID, nil
}
