package setlist

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

func AutoMigrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS pgcrypto`); err != nil {
		log.Printf("setlist-service: migrate pgcrypto: %v", err)
	}

	_, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS setlists (
          id            uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          show_id       TEXT NOT NULL,
          artist_id     TEXT NOT NULL,
          type          TEXT NOT NULL DEFAULT 'predicted',
          name          TEXT NOT NULL,
          owner_id      TEXT NOT NULL,
          locked        BOOLEAN NOT NULL DEFAULT FALSE,
          accuracy      INT,
          imported_from TEXT NOT NULL DEFAULT '',
          created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `)
	if err != nil {
		log.Printf("setlist-service: migrate setlists: %v", err)
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS entries (
          id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          setlist_id  uuid NOT NULL REFERENCES setlists(id) ON DELETE CASCADE,
          song_id     TEXT NOT NULL,
          position    INT NOT NULL,
          notes       TEXT NOT NULL DEFAULT '',
          created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_setlist_position
      ON entries(setlist_id, position)
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS votes (
          id         uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          entry_id   uuid NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
          user_id    TEXT NOT NULL,
          created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
          UNIQUE(entry_id, user_id)
      )
    `); err != nil {
		return err
	}

	// Seeding catalogs. artist_songs is the per-artist history; songs is the
	// global fallback keyed by title.
	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS artist_songs (
          artist_id  TEXT NOT NULL,
          song_id    TEXT NOT NULL,
          title      TEXT NOT NULL,
          play_count INT NOT NULL DEFAULT 0,
          PRIMARY KEY (artist_id, song_id)
      )
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS songs (
          id    TEXT PRIMARY KEY,
          title TEXT NOT NULL
      )
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE INDEX IF NOT EXISTS idx_songs_title ON songs (lower(title))
    `); err != nil {
		return err
	}

	return nil
}
