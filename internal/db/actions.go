package db

import (
	"fmt"
	"strings"

	"github.com/dtnitsch/lens-scraper/internal/common"
	dbpkg "github.com/dtnitsch/lens-scraper/pkg/db"
	"github.com/urfave/cli/v2"
)

func openHistory(c *cli.Context) (*dbpkg.DB, error) {
	cfg, err := common.LoadConfig(c)
	if err != nil {
		return nil, err
	}
	database, err := dbpkg.Open(cfg.History.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

// HistoryListAction prints the most recent searches.
func HistoryListAction(c *cli.Context) error {
	database, err := openHistory(c)
	if err != nil {
		return err
	}
	defer database.Close()

	searches, err := database.ListSearches(c.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to list searches: %w", err)
	}

	if format := c.String("format"); format != "" && format != "table" {
		return common.Print(searches, format)
	}

	if len(searches) == 0 {
		fmt.Println("No searches found")
		return nil
	}

	fmt.Printf("%-6s %-20s %-10s %-6s %-8s %-8s %-40s\n",
		"ID", "Created", "Status", "Links", "Sources", "Chars", "Description")
	fmt.Println(strings.Repeat("-", 120))

	for _, s := range searches {
		fmt.Printf("%-6d %-20s %-10s %-6d %-8d %-8d %-40s\n",
			s.SearchID,
			s.CreatedAt.Format("2006-01-02 15:04:05"),
			s.Status,
			s.LinkCount,
			s.SourceCount,
			s.CharCount,
			truncate(s.Description, 40),
		)
	}

	fmt.Printf("\nTotal: %d searches\n", len(searches))
	fmt.Printf("\nTip: Use 'lens-scraper history show <id>' to see details\n")
	return nil
}

// HistoryShowAction prints one search with its steps and links.
func HistoryShowAction(c *cli.Context) error {
	database, err := openHistory(c)
	if err != nil {
		return err
	}
	defer database.Close()

	search, err := ResolveSearch(c, database)
	if err != nil {
		return err
	}
	if err := AttachLastAccess(database, search); err != nil {
		return fmt.Errorf("failed to load link accesses: %w", err)
	}

	if format := c.String("format"); format != "" && format != "text" {
		return common.Print(search, format)
	}

	fmt.Printf("Search %d (%s)\n", search.SearchID, search.RequestID)
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Created:     %s\n", search.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Image:       %s\n", search.ImagePath)
	fmt.Printf("Status:      %s\n", search.Status)
	fmt.Printf("Duration:    %dms\n", search.DurationMS)
	fmt.Printf("Links:       %d (%d sources, %d chars)\n", search.LinkCount, search.SourceCount, search.CharCount)
	if search.Language != "" {
		fmt.Printf("Language:    %s\n", search.Language)
	}
	if len(search.Keywords) > 0 {
		fmt.Printf("Keywords:    %s\n", strings.Join(search.Keywords, ", "))
	}
	if search.Description != "" {
		fmt.Printf("Description: %s\n", search.Description)
	}
	if search.Error != "" {
		fmt.Printf("Error:       %s\n", search.Error)
	}

	if len(search.Steps) > 0 {
		fmt.Printf("\nSteps (%d):\n", len(search.Steps))
		fmt.Println(strings.Repeat("-", 60))
		for _, s := range search.Steps {
			mark := "ok"
			if !s.OK {
				mark = "FAILED"
			}
			fmt.Printf("  %-14s %-7s %6dms  %s\n", s.Step, mark, s.ElapsedMS, s.Reason)
		}
	}

	if len(search.Links) > 0 {
		fmt.Printf("\nLinks (%d):\n", len(search.Links))
		fmt.Println(strings.Repeat("-", 60))
		for _, l := range search.Links {
			state := "unused"
			switch {
			case l.Included:
				state = "included"
			case l.Fetched:
				state = "fetched"
			}
			fmt.Printf("%2d. [%s] %s\n", l.Position+1, state, l.URL)
			if l.Description != "" {
				fmt.Printf("    %s\n", truncate(l.Description, 100))
			}
			if a := l.LastAccess; a != nil {
				outcome := "ok"
				if !a.Success {
					outcome = a.ErrorType
				}
				fmt.Printf("    last fetch %s: %s, status %d, %d chars, %dms\n",
					a.AccessedAt.Format("2006-01-02 15:04:05"), outcome, a.StatusCode, a.Chars, a.Elapsed.Milliseconds())
			}
		}
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
