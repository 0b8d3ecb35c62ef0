package scraper

import (
	"context"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ResultRow is one placement in a tournament's standings table.
type ResultRow struct {
	Standing    *int
	PlayerName  string
	PlayerURL   string
	DeckName    string
	DeckSlug    string
	DeckListID  string
	DeckListURL string
}

// PlayerID is the stable site identifier of the player, taken from the profile URL.
func (r ResultRow) PlayerID() string {
	return lastSegment(r.PlayerURL)
}

// FetchTournamentResultRows parses the standings of one tournament. Rows without a deck-list
// link are kept with an empty DeckListURL.
func (c *Client) FetchTournamentResultRows(ctx context.Context, tournamentURL string) ([]ResultRow, error) {
	name := "tournament-" + numericSegment(tournamentURL)
	doc, err := c.fetchDocument(ctx, c.absolute(tournamentURL), name)
	if err != nil {
		return nil, err
	}
	return c.parseResults(doc), nil
}

func (c *Client) parseResults(doc *goquery.Document) []ResultRow {
	var rows []ResultRow

	doc.Find("table tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return
		}

		var row ResultRow
		row.Standing = parseStanding(cells.First().Text())

		// without a profile link the name column's text is used and PlayerURL stays empty
		player := tr.Find(`a[href*="/players/"]`).First()
		if href := attr(player, "href"); href != "" {
			row.PlayerName = collapse(player.Text())
			row.PlayerURL = c.absolute(href)
		} else if cells.Length() > 1 {
			row.PlayerName = collapse(cells.Eq(1).Text())
		}

		list := tr.Find(`a[href*="/decks/list/"]`).First()
		if href := attr(list, "href"); href != "" {
			row.DeckListURL = c.absolute(href)
			row.DeckListID = numericSegment(href)
		}

		deck := tr.Find(`a[href*="/decks/"]`).Not(`a[href*="/decks/list/"]`).First()
		if href := attr(deck, "href"); href != "" {
			row.DeckSlug = numericSegment(href)
			row.DeckName = collapse(deck.Text())
			if row.DeckName == "" {
				row.DeckName = attr(deck, "title")
			}
		}

		if row.Standing == nil && row.PlayerName == "" {
			return
		}
		rows = append(rows, row)
	})
	return rows
}

// parseStanding accepts "1", "1st", "#3" and similar. Anything non-numeric is nil.
func parseStanding(raw string) *int {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "#")
	end := 0
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}
	if end == 0 {
		return nil
	}
	n, err := strconv.Atoi(raw[:end])
	if err != nil {
		return nil
	}
	return &n
}
