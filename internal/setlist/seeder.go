package setlist

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5"
)

// Seeder auto-populates a fresh setlist from the artist's known catalog,
// popularity-weighted with a random tiebreak. When the artist has no
// history it falls back to a name-keyed lookup against the global song
// catalog. Seeding never fails setlist creation; errors are logged and the
// empty setlist stands.
type Seeder struct {
	db     DB
	ledger *Ledger
	count  int
}

const defaultSeedCount = 5

func NewSeeder(db DB, ledger *Ledger, count int) *Seeder {
	if count <= 0 {
		count = defaultSeedCount
	}
	return &Seeder{db: db, ledger: ledger, count: count}
}

func (s *Seeder) Seed(ctx context.Context, setlistID, artistID, artistName string) int {
	songs, err := s.pickSongs(ctx, artistID, artistName)
	if err != nil {
		log.Printf("setlist-service: seed %s: pick songs: %v", setlistID, err)
		return 0
	}

	seeded := 0
	for i, songID := range songs {
		if _, err := s.ledger.InsertEntry(ctx, setlistID, songID, i+1, ""); err != nil {
			log.Printf("setlist-service: seed %s: insert %s: %v", setlistID, songID, err)
			continue
		}
		seeded++
	}
	return seeded
}

func (s *Seeder) pickSongs(ctx context.Context, artistID, artistName string) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT song_id
		FROM artist_songs
		WHERE artist_id = $1
		ORDER BY play_count DESC, random()
		LIMIT $2
	`, artistID, s.count)
	if err != nil {
		return nil, err
	}
	songs, err := scanIDs(rows)
	if err != nil {
		return nil, err
	}
	if len(songs) > 0 {
		return songs, nil
	}

	// Empty artist catalog: name-keyed fallback against the global catalog.
	rows, err = s.db.Query(ctx, `
		SELECT id
		FROM songs
		WHERE lower(title) LIKE lower($1) || '%'
		ORDER BY random()
		LIMIT $2
	`, artistName, s.count)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

func scanIDs(rows pgx.Rows) ([]string, error) {
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
