package setlist

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeStore is an in-memory DB that understands the exact SQL this
// package issues, keyed on recognizable fragments. It lets ledger and
// handler tests observe real position arithmetic without Postgres, and it
// enforces the unique (setlist_id, position) index per row during position
// rewrites, the same way a non-deferrable index does.
type fakeStore struct {
	mu       sync.Mutex
	setlists map[string]*fakeSetlist
	entries  []*fakeEntry
	catalog  map[string][]CatalogSong // artistID -> songs
	songs    []CatalogSong            // global catalog
	votes    map[string][]string      // entryID -> voter user ids
	nextID   int

	failInsert bool // force entry inserts to error, for isolation tests
}

type fakeSetlist struct {
	showID       string
	artistID     string
	typ          string
	name         string
	ownerID      string
	locked       bool
	importedFrom string
	createdAt    time.Time
}

type fakeEntry struct {
	id        string
	setlistID string
	songID    string
	position  int
	notes     string
	createdAt time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		setlists: make(map[string]*fakeSetlist),
		catalog:  make(map[string][]CatalogSong),
		votes:    make(map[string][]string),
	}
}

func (f *fakeStore) addSetlist(id, ownerID string, locked bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setlists[id] = &fakeSetlist{
		showID: "show-1", artistID: "artist-1", typ: TypePredicted,
		name: "test setlist", ownerID: ownerID, locked: locked,
		createdAt: time.Now(),
	}
}

func (f *fakeStore) addVote(entryID, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.votes[entryID] = append(f.votes[entryID], userID)
}

func (f *fakeStore) addEntry(id, setlistID, songID string, pos int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, &fakeEntry{
		id: id, setlistID: setlistID, songID: songID, position: pos,
		createdAt: time.Now(),
	})
}

// order returns the setlist's song ids sorted by position.
func (f *fakeStore) order(setlistID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []*fakeEntry
	for _, e := range f.entries {
		if e.setlistID == setlistID {
			list = append(list, e)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].position < list[j].position })
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.songID
	}
	return out
}

// positions returns the raw position multiset for invariant checks.
func (f *fakeStore) positions(setlistID string) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []int
	for _, e := range f.entries {
		if e.setlistID == setlistID {
			out = append(out, e.position)
		}
	}
	sort.Ints(out)
	return out
}

func (f *fakeStore) genID() string {
	f.nextID++
	return "entry-" + strconv.Itoa(f.nextID)
}

// rewritePositions applies a position rewrite row by row in slice order and
// fails with a unique violation the moment two rows of one setlist share a
// slot, the way a non-deferrable unique index behaves during a multi-row
// UPDATE on Postgres.
func (f *fakeStore) rewritePositions(setlistID string, match func(int) bool, to func(int) int) (pgconn.CommandTag, error) {
	for _, e := range f.entries {
		if e.setlistID != setlistID || !match(e.position) {
			continue
		}
		e.position = to(e.position)
		if f.dupPosition(setlistID) {
			return pgconn.CommandTag{}, uniqueViolation()
		}
	}
	return pgconn.CommandTag{}, nil
}

func (f *fakeStore) dupPosition(setlistID string) bool {
	seen := make(map[int]bool)
	for _, e := range f.entries {
		if e.setlistID != setlistID {
			continue
		}
		if seen[e.position] {
			return true
		}
		seen[e.position] = true
	}
	return false
}

func uniqueViolation() error {
	return &pgconn.PgError{Code: "23505", ConstraintName: "idx_entries_setlist_position"}
}

func (f *fakeStore) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exec(sql, args...)
}

func (f *fakeStore) exec(sql string, args ...any) (pgconn.CommandTag, error) {
	switch {
	case strings.Contains(sql, "SET position = -1 * position - 1000000"):
		setlistID := args[0].(string)
		match := func(p int) bool { return true }
		if strings.Contains(sql, "position >= $2") {
			from := args[1].(int)
			match = func(p int) bool { return p >= from }
		} else if strings.Contains(sql, "position > $2") {
			above := args[1].(int)
			match = func(p int) bool { return p > above }
		}
		return f.rewritePositions(setlistID, match, func(p int) int { return -1*p - 1000000 })
	case strings.Contains(sql, "SET position = -1 * (position + 1000000) + 1"):
		setlistID := args[0].(string)
		return f.rewritePositions(setlistID,
			func(p int) bool { return p < 0 },
			func(p int) int { return -1*(p+1000000) + 1 })
	case strings.Contains(sql, "SET position = -1 * (position + 1000000) - 1"):
		setlistID := args[0].(string)
		return f.rewritePositions(setlistID,
			func(p int) bool { return p < 0 },
			func(p int) int { return -1*(p+1000000) - 1 })
	case strings.Contains(sql, "SET position = $2"):
		id, pos := args[0].(string), args[1].(int)
		for _, e := range f.entries {
			if e.id == id {
				e.position = pos
				if dup := f.dupPosition(e.setlistID); dup {
					return pgconn.CommandTag{}, uniqueViolation()
				}
			}
		}
	case strings.Contains(sql, "DELETE FROM entries"):
		id, setlistID := args[0].(string), args[1].(string)
		for i, e := range f.entries {
			if e.id == id && e.setlistID == setlistID {
				f.entries = append(f.entries[:i], f.entries[i+1:]...)
				break
			}
		}
	case strings.Contains(sql, "SET locked = TRUE"):
		if sl, ok := f.setlists[args[0].(string)]; ok {
			sl.locked = true
		}
	default:
		return pgconn.CommandTag{}, errors.New("fakeStore: unexpected exec: " + sql)
	}
	return pgconn.CommandTag{}, nil
}

func (f *fakeStore) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queryRow(sql, args...)
}

func (f *fakeStore) queryRow(sql string, args ...any) pgx.Row {
	switch {
	case strings.Contains(sql, "SELECT owner_id, locked"):
		sl, ok := f.setlists[args[0].(string)]
		if !ok {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{vals: []any{sl.ownerID, sl.locked}}

	case strings.Contains(sql, "SELECT COUNT(*) FROM entries"):
		setlistID := args[0].(string)
		n := 0
		for _, e := range f.entries {
			if e.setlistID == setlistID {
				n++
			}
		}
		return fakeRow{vals: []any{n}}

	case strings.Contains(sql, "INSERT INTO setlists"):
		f.nextID++
		id := "setlist-" + strconv.Itoa(f.nextID)
		sl := &fakeSetlist{
			showID: args[0].(string), artistID: args[1].(string),
			typ: args[2].(string), name: args[3].(string), ownerID: args[4].(string),
			createdAt: time.Now(),
		}
		if len(args) > 5 {
			sl.importedFrom = args[5].(string)
		}
		f.setlists[id] = sl
		return fakeRow{vals: []any{id, sl.showID, sl.artistID, sl.typ, sl.name, sl.ownerID, false, sl.createdAt}}

	case strings.Contains(sql, "SELECT id, show_id, artist_id"):
		id := args[0].(string)
		sl, ok := f.setlists[id]
		if !ok {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{vals: []any{
			id, sl.showID, sl.artistID, sl.typ, sl.name, sl.ownerID,
			sl.locked, nil, sl.importedFrom, sl.createdAt,
		}}

	case strings.Contains(sql, "INSERT INTO entries"):
		if f.failInsert {
			return fakeRow{err: errors.New("fakeStore: insert refused")}
		}
		e := &fakeEntry{
			id:        f.genID(),
			setlistID: args[0].(string),
			songID:    args[1].(string),
			position:  args[2].(int),
			notes:     args[3].(string),
			createdAt: time.Now(),
		}
		f.entries = append(f.entries, e)
		if f.dupPosition(e.setlistID) {
			f.entries = f.entries[:len(f.entries)-1]
			return fakeRow{err: uniqueViolation()}
		}
		return fakeRow{vals: []any{e.id, e.setlistID, e.songID, e.position, e.notes, e.createdAt}}

	case strings.Contains(sql, "SELECT position"):
		id, setlistID := args[0].(string), args[1].(string)
		for _, e := range f.entries {
			if e.id == id && e.setlistID == setlistID {
				return fakeRow{vals: []any{e.position}}
			}
		}
		return fakeRow{err: pgx.ErrNoRows}

	case strings.Contains(sql, "SELECT setlist_id FROM entries"):
		id := args[0].(string)
		for _, e := range f.entries {
			if e.id == id {
				return fakeRow{vals: []any{e.setlistID}}
			}
		}
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{err: errors.New("fakeStore: unexpected query row: " + sql)}
}

func (f *fakeStore) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.query(sql, args...)
}

func (f *fakeStore) query(sql string, args ...any) (pgx.Rows, error) {
	switch {
	case strings.Contains(sql, "SELECT id FROM entries"):
		setlistID := args[0].(string)
		var list []*fakeEntry
		for _, e := range f.entries {
			if e.setlistID == setlistID {
				list = append(list, e)
			}
		}
		sort.Slice(list, func(i, j int) bool { return list[i].position < list[j].position })
		rows := &fakeRows{}
		for _, e := range list {
			rows.data = append(rows.data, []any{e.id})
		}
		return rows, nil

	case strings.Contains(sql, "SELECT id, setlist_id, song_id, position, notes, created_at"):
		setlistID := args[0].(string)
		var list []*fakeEntry
		for _, e := range f.entries {
			if e.setlistID == setlistID {
				list = append(list, e)
			}
		}
		sort.Slice(list, func(i, j int) bool { return list[i].position < list[j].position })
		rows := &fakeRows{}
		for _, e := range list {
			rows.data = append(rows.data, []any{e.id, e.setlistID, e.songID, e.position, e.notes, e.createdAt})
		}
		return rows, nil

	case strings.Contains(sql, "LEFT JOIN votes"):
		setlistID, viewerID := args[0].(string), args[1].(string)
		var list []*fakeEntry
		for _, e := range f.entries {
			if e.setlistID == setlistID {
				list = append(list, e)
			}
		}
		sort.Slice(list, func(i, j int) bool { return list[i].position < list[j].position })
		rows := &fakeRows{}
		for _, e := range list {
			voted := false
			for _, u := range f.votes[e.id] {
				if u == viewerID {
					voted = true
				}
			}
			rows.data = append(rows.data, []any{
				e.id, e.setlistID, e.songID, e.position, e.notes, e.createdAt,
				len(f.votes[e.id]), voted,
			})
		}
		return rows, nil

	case strings.Contains(sql, "FROM artist_songs"):
		artistID, limit := args[0].(string), args[1].(int)
		songs := append([]CatalogSong(nil), f.catalog[artistID]...)
		sort.SliceStable(songs, func(i, j int) bool { return songs[i].PlayCount > songs[j].PlayCount })
		if len(songs) > limit {
			songs = songs[:limit]
		}
		rows := &fakeRows{}
		for _, s := range songs {
			rows.data = append(rows.data, []any{s.SongID})
		}
		return rows, nil

	case strings.Contains(sql, "FROM songs"):
		prefix, limit := strings.ToLower(args[0].(string)), args[1].(int)
		rows := &fakeRows{}
		for _, s := range f.songs {
			if strings.HasPrefix(strings.ToLower(s.Title), prefix) && len(rows.data) < limit {
				rows.data = append(rows.data, []any{s.SongID})
			}
		}
		return rows, nil
	}
	return nil, errors.New("fakeStore: unexpected query: " + sql)
}

func (f *fakeStore) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	return &fakeTx{store: f}, nil
}

// fakeTx applies statements directly; the ledger's per-setlist mutex is
// what keeps sequences atomic in these tests.
type fakeTx struct {
	pgx.Tx
	store *fakeStore
}

func (t *fakeTx) Commit(ctx context.Context) error   { return nil }
func (t *fakeTx) Rollback(ctx context.Context) error { return nil }

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return t.store.exec(sql, args...)
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return t.store.queryRow(sql, args...)
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return t.store.query(sql, args...)
}

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanInto(r.vals, dest)
}

type fakeRows struct {
	pgx.Rows
	data [][]any
	idx  int
}

func (m *fakeRows) Next() bool {
	m.idx++
	return m.idx <= len(m.data)
}

func (m *fakeRows) Scan(dest ...any) error {
	return scanInto(m.data[m.idx-1], dest)
}

func (m *fakeRows) Close()     {}
func (m *fakeRows) Err() error { return nil }

func scanInto(vals []any, dest []any) error {
	if len(dest) != len(vals) {
		return errors.New("fakeStore: column count mismatch")
	}
	for i, v := range vals {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case **int:
			if v == nil {
				*d = nil
			} else {
				n := v.(int)
				*d = &n
			}
		case *int:
			*d = v.(int)
		case *bool:
			*d = v.(bool)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return errors.New("fakeStore: unsupported scan target")
		}
	}
	return nil
}
