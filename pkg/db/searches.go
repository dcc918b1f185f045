package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Search statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var ErrSearchNotFound = errors.New("search not found")

// Search is one image run as recorded in history.
type Search struct {
	SearchID    int64        `json:"search_id" yaml:"search_id"`
	RequestID   string       `json:"request_id" yaml:"request_id"`
	CreatedAt   time.Time    `json:"created_at" yaml:"created_at"`
	ImagePath   string       `json:"image_path" yaml:"image_path"`
	Status      string       `json:"status" yaml:"status"`
	LinkCount   int          `json:"link_count" yaml:"link_count"`
	SourceCount int          `json:"source_count" yaml:"source_count"`
	CharCount   int          `json:"char_count" yaml:"char_count"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Language    string       `json:"language,omitempty" yaml:"language,omitempty"`
	Keywords    []string     `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Error       string       `json:"error,omitempty" yaml:"error,omitempty"`
	DurationMS  int64        `json:"duration_ms" yaml:"duration_ms"`
	Links       []SearchLink `json:"links,omitempty" yaml:"links,omitempty"`
	Steps       []SearchStep `json:"steps,omitempty" yaml:"steps,omitempty"`
}

// SearchLink is a harvested link and what became of it.
type SearchLink struct {
	Position    int    `json:"position" yaml:"position"`
	URL         string `json:"url" yaml:"url"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Fetched     bool   `json:"fetched" yaml:"fetched"`
	Included    bool   `json:"included" yaml:"included"`

	LastAccess *AccessRecord `json:"last_access,omitempty" yaml:"last_access,omitempty"`
}

// SearchStep is one browser automation outcome.
type SearchStep struct {
	Step      string `json:"step" yaml:"step"`
	OK        bool   `json:"ok" yaml:"ok"`
	Reason    string `json:"reason,omitempty" yaml:"reason,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms" yaml:"elapsed_ms"`
}

// SearchOutcome is written when a run ends.
type SearchOutcome struct {
	Status      string
	LinkCount   int
	SourceCount int
	CharCount   int
	Description string
	Language    string
	Keywords    []string
	Error       string
	Duration    time.Duration
}

// CreateSearch starts a history row for requestID in the running state.
func (db *DB) CreateSearch(requestID, imagePath string) (int64, error) {
	result, err := db.Exec(`
		INSERT INTO searches (request_id, image_path, status)
		VALUES (?, ?, ?)
	`, requestID, imagePath, StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to create search: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get search ID: %w", err)
	}
	return id, nil
}

// FinishSearch stores the outcome of a run.
func (db *DB) FinishSearch(searchID int64, out SearchOutcome) error {
	keywords := out.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	kwJSON, err := json.Marshal(keywords)
	if err != nil {
		return fmt.Errorf("failed to encode keywords: %w", err)
	}

	res, err := db.Exec(`
		UPDATE searches SET
			status = ?,
			link_count = ?,
			source_count = ?,
			char_count = ?,
			description = ?,
			language = ?,
			top_keywords = ?,
			error_message = ?,
			duration_ms = ?
		WHERE search_id = ?
	`, out.Status, out.LinkCount, out.SourceCount, out.CharCount, out.Description,
		out.Language, string(kwJSON), out.Error, out.Duration.Milliseconds(), searchID)
	if err != nil {
		return fmt.Errorf("failed to finish search: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSearchNotFound
	}
	return nil
}

// AddSearchLink records a harvested link at its discovery position.
func (db *DB) AddSearchLink(searchID int64, link SearchLink) error {
	urlID, err := db.InsertURL(link.URL)
	if err != nil {
		return err
	}
	_, err = db.Exec(`
		INSERT INTO search_links (search_id, position, url_id, description, fetched, included)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(search_id, position) DO UPDATE SET
			fetched = excluded.fetched,
			included = excluded.included
	`, searchID, link.Position, urlID, link.Description, link.Fetched, link.Included)
	if err != nil {
		return fmt.Errorf("failed to add search link: %w", err)
	}
	return nil
}

// AddSearchSteps appends automation outcomes in order.
func (db *DB) AddSearchSteps(searchID int64, steps []SearchStep) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, s := range steps {
		_, err := tx.Exec(`
			INSERT INTO search_steps (search_id, seq, step, ok, reason, elapsed_ms)
			VALUES (?, ?, ?, ?, ?, ?)
		`, searchID, i, s.Step, s.OK, s.Reason, s.ElapsedMS)
		if err != nil {
			return fmt.Errorf("failed to add search step: %w", err)
		}
	}
	return tx.Commit()
}

const searchColumns = `search_id, request_id, created_at, image_path, status, link_count,
	source_count, char_count, description, language, top_keywords, error_message, duration_ms`

type scanner interface {
	Scan(dest ...any) error
}

func scanSearch(row scanner) (*Search, error) {
	var (
		s      Search
		kwJSON string
	)
	err := row.Scan(&s.SearchID, &s.RequestID, &s.CreatedAt, &s.ImagePath, &s.Status, &s.LinkCount,
		&s.SourceCount, &s.CharCount, &s.Description, &s.Language, &kwJSON, &s.Error, &s.DurationMS)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(kwJSON), &s.Keywords); err != nil {
		return nil, fmt.Errorf("failed to decode keywords: %w", err)
	}
	return &s, nil
}

// ListSearches returns the most recent searches without links or steps.
func (db *DB) ListSearches(limit int) ([]Search, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`SELECT `+searchColumns+` FROM searches ORDER BY search_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list searches: %w", err)
	}
	defer rows.Close()

	var searches []Search
	for rows.Next() {
		s, err := scanSearch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search: %w", err)
		}
		searches = append(searches, *s)
	}
	return searches, rows.Err()
}

// GetSearch returns one search with its links and steps.
func (db *DB) GetSearch(searchID int64) (*Search, error) {
	s, err := scanSearch(db.QueryRow(`SELECT `+searchColumns+` FROM searches WHERE search_id = ?`, searchID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrSearchNotFound, searchID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get search: %w", err)
	}

	if s.Links, err = db.searchLinks(searchID); err != nil {
		return nil, err
	}
	if s.Steps, err = db.searchSteps(searchID); err != nil {
		return nil, err
	}
	return s, nil
}

// GetSearchByRequestID resolves a request id to its search.
func (db *DB) GetSearchByRequestID(requestID string) (*Search, error) {
	var id int64
	err := db.QueryRow(`SELECT search_id FROM searches WHERE request_id = ?`, requestID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSearchNotFound, requestID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find search: %w", err)
	}
	return db.GetSearch(id)
}

func (db *DB) searchLinks(searchID int64) ([]SearchLink, error) {
	rows, err := db.Query(`
		SELECT l.position, u.original_url, l.description, l.fetched, l.included
		FROM search_links l
		JOIN urls u ON l.url_id = u.url_id
		WHERE l.search_id = ?
		ORDER BY l.position
	`, searchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get search links: %w", err)
	}
	defer rows.Close()

	var links []SearchLink
	for rows.Next() {
		var l SearchLink
		if err := rows.Scan(&l.Position, &l.URL, &l.Description, &l.Fetched, &l.Included); err != nil {
			return nil, fmt.Errorf("failed to scan search link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (db *DB) searchSteps(searchID int64) ([]SearchStep, error) {
	rows, err := db.Query(`
		SELECT step, ok, reason, elapsed_ms
		FROM search_steps
		WHERE search_id = ?
		ORDER BY seq
	`, searchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get search steps: %w", err)
	}
	defer rows.Close()

	var steps []SearchStep
	for rows.Next() {
		var s SearchStep
		if err := rows.Scan(&s.Step, &s.OK, &s.Reason, &s.ElapsedMS); err != nil {
			return nil, fmt.Errorf("failed to scan search step: %w", err)
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}
