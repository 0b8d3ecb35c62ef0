package scraper

import (
	"context"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type DeckCard struct {
	Code     string `json:"code"`
	Quantity int    `json:"quantity"`
	Section  string `json:"section"`
}

// DeckList is a parsed deck-list page. The leader also appears in Cards.
type DeckList struct {
	LeaderCode string     `json:"leaderCode,omitempty"`
	Cards      []DeckCard `json:"cards"`
}

func (c *Client) FetchDeckList(ctx context.Context, deckListURL string) (DeckList, error) {
	name := "decklist-" + numericSegment(deckListURL)
	doc, err := c.fetchDocument(ctx, c.absolute(deckListURL), name)
	if err != nil {
		return DeckList{}, err
	}
	return ParseDeckList(doc), nil
}

// ParseDeckList reads every [data-code] entry. Quantity comes from data-count (1 when
// missing or not a number) and the section from the heading of the enclosing
// .decklist-column.
func ParseDeckList(doc *goquery.Document) DeckList {
	list := DeckList{Cards: []DeckCard{}}

	doc.Find("[data-code]").Each(func(_ int, s *goquery.Selection) {
		code := attr(s, "data-code")
		if code == "" {
			return
		}

		qty := 1
		if n, err := strconv.Atoi(attr(s, "data-count")); err == nil {
			qty = n
		}

		section := sectionHeading(s.Closest(".decklist-column"))
		if list.LeaderCode == "" && strings.Contains(strings.ToLower(section), "leader") {
			list.LeaderCode = code
		}

		list.Cards = append(list.Cards, DeckCard{Code: code, Quantity: qty, Section: section})
	})
	return list
}

func sectionHeading(column *goquery.Selection) string {
	if column.Length() == 0 {
		return ""
	}
	heading := column.Find(".decklist-column-heading").First()
	if heading.Length() == 0 {
		heading = column.Find("h1, h2, h3, h4, h5, h6").First()
	}
	return collapse(heading.Text())
}
