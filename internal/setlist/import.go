package setlist

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ImportClient talks to the external setlist archive that knows what was
// actually played at a show.
type ImportClient struct {
	baseURL string
	client  *http.Client
}

type ImportedSong struct {
	SongID string `json:"songId"`
	Title  string `json:"title"`
	Notes  string `json:"notes"`
}

type ImportedSetlist struct {
	SourceID string         `json:"sourceId"`
	Name     string         `json:"name"`
	Songs    []ImportedSong `json:"songs"`
}

func NewImportClient(baseURL string, timeout time.Duration) *ImportClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ImportClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// FetchActual asks the archive for the played setlist of (show, artist).
// A miss is the structured ErrImportNoMatch, never a transport error.
func (c *ImportClient) FetchActual(ctx context.Context, showID, artistName string) (*ImportedSetlist, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	u.Path = "/shows/" + url.PathEscape(showID) + "/setlist"
	q := u.Query()
	q.Set("artist", artistName)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportFailed, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrImportNoMatch
	default:
		return nil, fmt.Errorf("%w: status %d", ErrImportFailed, resp.StatusCode)
	}

	var imported ImportedSetlist
	if err := json.NewDecoder(resp.Body).Decode(&imported); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrImportFailed, err)
	}
	if len(imported.Songs) == 0 {
		return nil, ErrImportNoMatch
	}
	return &imported, nil
}
