package db

import (
	"testing"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	database := &DB{path: ":memory:"}
	var err error
	database.DB, err = openDB(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	// every connection would get its own in-memory database
	database.SetMaxOpenConns(1)

	if err := database.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	return database
}

func TestInsertURL(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "simple HTTPS URL", url: "https://example.com"},
		{name: "URL with path", url: "https://example.com/path/to/page"},
		{name: "URL with query params", url: "https://example.com/search?q=test&lang=en"},
		{name: "URL with fragment", url: "https://example.com/page#section"},
		{name: "duplicate URL returns same ID", url: "https://example.com"},
		{name: "unparseable URL", url: "http://[::1", wantErr: true},
	}

	var firstID int64
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			urlID, err := db.InsertURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("InsertURL() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if urlID == 0 {
				t.Error("InsertURL() returned 0 ID")
			}
			if i == 0 {
				firstID = urlID
			}
			if tt.url == tests[0].url && urlID != firstID {
				t.Errorf("Duplicate URL got different ID: got %d, want %d", urlID, firstID)
			}
		})
	}
}

func TestInsertURL_ParsesComponents(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	testURL := "https://www.example.org/cats/tabby.html?ref=lens#care"
	urlID, err := db.InsertURL(testURL)
	if err != nil {
		t.Fatalf("InsertURL() failed: %v", err)
	}

	var canonical, scheme, domain, path, fragment string
	err = db.QueryRow(`
		SELECT canonical_url, scheme, domain, path, fragment
		FROM urls WHERE url_id = ?
	`, urlID).Scan(&canonical, &scheme, &domain, &path, &fragment)
	if err != nil {
		t.Fatalf("failed to query URL: %v", err)
	}

	if canonical != "https://www.example.org/cats/tabby.html" {
		t.Errorf("canonical_url = %q", canonical)
	}
	if scheme != "https" {
		t.Errorf("scheme = %q, want %q", scheme, "https")
	}
	if domain != "www.example.org" {
		t.Errorf("domain = %q, want %q", domain, "www.example.org")
	}
	if path != "/cats/tabby.html" {
		t.Errorf("path = %q, want %q", path, "/cats/tabby.html")
	}
	if fragment != "care" {
		t.Errorf("fragment = %q, want %q", fragment, "care")
	}
}

func TestGetURLID(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	testURL := "https://example.com/test"
	wantID, err := db.InsertURL(testURL)
	if err != nil {
		t.Fatalf("InsertURL() failed: %v", err)
	}

	gotID, err := db.GetURLID(testURL)
	if err != nil {
		t.Fatalf("GetURLID() error = %v", err)
	}
	if gotID != wantID {
		t.Errorf("GetURLID() = %d, want %d", gotID, wantID)
	}

	if _, err = db.GetURLID("https://nonexistent.com"); err == nil {
		t.Error("GetURLID() with non-existent URL should return error")
	}
}
