package scraper

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gosimple/unidecode"

	"tcg-companion/models"
)

// TournamentRow is one line of the tournament listing.
type TournamentRow struct {
	Date          string
	Region        string
	Country       string
	Format        string
	Name          string
	Players       *int
	PlayersApprox bool
	Winner        string
	WinnerURL     string
	DetailURL     string
}

// ListPage is one parsed listing page. MaxPages is 0 when the page has no pagination widget.
type ListPage struct {
	Rows     []TournamentRow
	MaxPages int
}

// Identity is the key a tournament is matched on across runs: the numeric id in the detail
// URL, else the URL itself, else the name.
func (r TournamentRow) Identity() string {
	if id := numericSegment(r.DetailURL); id != "" {
		return id
	}
	if r.DetailURL != "" {
		return r.DetailURL
	}
	return r.Name
}

var eventDateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05", "Jan 2, 2006", "2 Jan 2006"}

// EventDate parses the data-date attribute. Unknown layouts yield nil.
func (r TournamentRow) EventDate() *time.Time {
	raw := strings.TrimSpace(r.Date)
	if raw == "" {
		return nil
	}
	for _, layout := range eventDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// ClassifyTournamentType infers the event tier from its name. Rule order matters.
func ClassifyTournamentType(name string) *models.TournamentType {
	folded := strings.ToLower(unidecode.Unidecode(name))
	var t models.TournamentType
	switch {
	case strings.Contains(folded, "regional"):
		t = models.TournamentTypeRegional
	case strings.Contains(folded, "treasure cup"):
		t = models.TournamentTypeTreasureCup
	case strings.Contains(folded, "championship"):
		t = models.TournamentTypeChampionship
	default:
		return nil
	}
	return &t
}

// FetchTournamentListPage loads {base}/tournaments?page={n}&show={pageSize}.
func (c *Client) FetchTournamentListPage(ctx context.Context, page int) (ListPage, error) {
	u := fmt.Sprintf("%s/tournaments?page=%d&show=%d", c.BaseURL(), page, c.pageSize)
	doc, err := c.fetchDocument(ctx, u, fmt.Sprintf("tournaments-page-%d", page))
	if err != nil {
		return ListPage{}, err
	}
	return c.parseTournamentList(doc), nil
}

// FetchTournamentRows walks the listing from page 1 until an empty page or the last page
// advertised by the pagination widget. Any failure aborts the walk.
func (c *Client) FetchTournamentRows(ctx context.Context) ([]TournamentRow, error) {
	var rows []TournamentRow
	for page := 1; ; page++ {
		lp, err := c.FetchTournamentListPage(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("tournament list page %d: %w", page, err)
		}
		if len(lp.Rows) == 0 {
			break
		}
		rows = append(rows, lp.Rows...)

		maxPages := lp.MaxPages
		if maxPages <= 0 {
			maxPages = page
		}
		if page >= maxPages {
			break
		}
	}
	return rows, nil
}

func (c *Client) parseTournamentList(doc *goquery.Document) ListPage {
	var out ListPage

	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 4 {
			return
		}

		row := TournamentRow{
			Date:          attr(tr, "data-date"),
			Region:        attr(tr, "data-region"),
			Country:       attr(tr, "data-country"),
			Format:        attr(tr, "data-format"),
			Name:          attr(tr, "data-name"),
			Winner:        attr(tr, "data-winner"),
			PlayersApprox: tr.Find(".approx").Length() > 0,
		}

		players := attr(tr, "data-players")
		if players == "" {
			players = cells.Eq(3).Text()
		}
		row.Players = parseCount(players)

		detail := tr.Find(`a[href*="/tournaments/"]`).First()
		if detail.Length() == 0 {
			detail = tr.Find("a[href]").First()
		}
		row.DetailURL = c.absolute(attr(detail, "href"))
		if row.Name == "" {
			row.Name = collapse(detail.Text())
		}

		winner := tr.Find(`a[href*="/players/"]`).First()
		row.WinnerURL = c.absolute(attr(winner, "href"))
		if row.Winner == "" {
			row.Winner = collapse(winner.Text())
		}

		out.Rows = append(out.Rows, row)
	})

	if raw, ok := doc.Find("[data-max]").First().Attr("data-max"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n > 0 {
			out.MaxPages = n
		}
	}
	return out
}

func attr(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return strings.TrimSpace(v)
}

// parseCount reads counts such as "128", "1,024" or "~96". Anything else is nil.
func parseCount(raw string) *int {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ',', '~', '+', ' ', '\u00a0', '\n', '\t':
			return -1
		}
		return r
	}, raw)
	if cleaned == "" {
		return nil
	}
	n, err := strconv.Atoi(cleaned)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}
