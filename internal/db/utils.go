package db

import (
	"fmt"
	"strconv"

	dbpkg "github.com/dtnitsch/lens-scraper/pkg/db"
	"github.com/urfave/cli/v2"
)

// ResolveSearch returns the search named by the first argument, which may be a
// numeric search id or a request id. No argument means the latest search.
func ResolveSearch(c *cli.Context, database *dbpkg.DB) (*dbpkg.Search, error) {
	if c.NArg() == 0 {
		searches, err := database.ListSearches(1)
		if err != nil {
			return nil, fmt.Errorf("failed to get latest search: %w", err)
		}
		if len(searches) == 0 {
			return nil, fmt.Errorf("no searches found. Run 'lens-scraper run --image <file>' first")
		}
		return database.GetSearch(searches[0].SearchID)
	}

	arg := c.Args().First()
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return database.GetSearch(id)
	}
	return database.GetSearchByRequestID(arg)
}

// AttachLastAccess fills each link's most recent fetch attempt. Links never
// fetched keep a nil LastAccess.
func AttachLastAccess(database *dbpkg.DB, search *dbpkg.Search) error {
	for i := range search.Links {
		link := &search.Links[i]
		urlID, err := database.GetURLID(link.URL)
		if err != nil {
			return err
		}
		access, err := database.GetLastAccess(urlID)
		if err != nil {
			return err
		}
		link.LastAccess = access
	}
	return nil
}
