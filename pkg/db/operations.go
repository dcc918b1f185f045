package db

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"
)

// InsertURL parses and inserts a URL, returning the url_id.
// If the URL already exists, returns the existing url_id.
func (db *DB) InsertURL(rawURL string) (int64, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return 0, fmt.Errorf("failed to parse URL: %w", err)
	}

	var existingID int64
	err = db.QueryRow("SELECT url_id FROM urls WHERE original_url = ?", rawURL).Scan(&existingID)
	if err == nil {
		return existingID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to check existing URL: %w", err)
	}

	// Canonical form drops query and fragment
	canonicalURL := fmt.Sprintf("%s://%s%s", parsed.Scheme, parsed.Host, parsed.Path)

	result, err := db.Exec(`
		INSERT INTO urls (original_url, canonical_url, scheme, domain, path, fragment)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rawURL, canonicalURL, parsed.Scheme, parsed.Host, parsed.Path, parsed.Fragment)
	if err != nil {
		return 0, fmt.Errorf("failed to insert URL: %w", err)
	}

	urlID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get URL ID: %w", err)
	}
	return urlID, nil
}

// AccessRecord represents a URL fetch attempt.
type AccessRecord struct {
	AccessID   int64         `json:"access_id" yaml:"access_id"`
	AccessedAt time.Time     `json:"accessed_at" yaml:"accessed_at"`
	StatusCode int           `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	ErrorType  string        `json:"error_type,omitempty" yaml:"error_type,omitempty"`
	Success    bool          `json:"success" yaml:"success"`
	Chars      int           `json:"chars" yaml:"chars"`
	Elapsed    time.Duration `json:"elapsed" yaml:"elapsed"`
}

// RecordAccess records a fetch attempt in url_accesses.
func (db *DB) RecordAccess(urlID int64, rec AccessRecord) error {
	_, err := db.Exec(`
		INSERT INTO url_accesses (url_id, status_code, error_type, success, chars, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`, urlID, rec.StatusCode, rec.ErrorType, rec.Success, rec.Chars, rec.Elapsed.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record access: %w", err)
	}
	return nil
}

// GetLastAccess returns the most recent access record for a URL, or nil.
func (db *DB) GetLastAccess(urlID int64) (*AccessRecord, error) {
	var (
		record    AccessRecord
		elapsedMS int64
	)
	err := db.QueryRow(`
		SELECT access_id, accessed_at, status_code, error_type, success, chars, elapsed_ms
		FROM url_accesses
		WHERE url_id = ?
		ORDER BY access_id DESC
		LIMIT 1
	`, urlID).Scan(&record.AccessID, &record.AccessedAt, &record.StatusCode, &record.ErrorType,
		&record.Success, &record.Chars, &elapsedMS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last access: %w", err)
	}
	record.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	return &record, nil
}

// GetURLID returns the url_id for a given original URL.
func (db *DB) GetURLID(originalURL string) (int64, error) {
	var urlID int64
	err := db.QueryRow("SELECT url_id FROM urls WHERE original_url = ?", originalURL).Scan(&urlID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("URL not found: %s", originalURL)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get URL ID: %w", err)
	}
	return urlID, nil
}
