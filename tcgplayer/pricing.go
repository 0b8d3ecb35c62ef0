package tcgplayer

import (
	"context"
	"net/http"
	"strings"
)

// PricingEntry is the price of one product sub-type ("Normal", "Foil"...).
type PricingEntry struct {
	ProductID      int64    `json:"productId"`
	LowPrice       *float64 `json:"lowPrice"`
	MidPrice       *float64 `json:"midPrice"`
	HighPrice      *float64 `json:"highPrice"`
	MarketPrice    *float64 `json:"marketPrice"`
	DirectLowPrice *float64 `json:"directLowPrice"`
	SubTypeName    string   `json:"subTypeName"`
}

type pricingResponse struct {
	Success bool           `json:"success"`
	Errors  []string       `json:"errors"`
	Results []PricingEntry `json:"results"`
}

// GetPricing returns every pricing entry for ids, several per product when it has variants.
func (c *Client) GetPricing(ctx context.Context, ids []int64) ([]PricingEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var resp pricingResponse
	if err := c.do(ctx, http.MethodGet, "/pricing/product/"+joinIDs(ids), nil, &resp); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return resp.Results, nil
}

// Score ranks pricing entries: 10 per populated price, +2 for the "Normal" sub-type and -1
// for anything foil.
func Score(e PricingEntry) int {
	score := 0
	for _, p := range []*float64{e.MarketPrice, e.MidPrice, e.LowPrice, e.HighPrice, e.DirectLowPrice} {
		if p != nil {
			score += 10
		}
	}
	if e.SubTypeName == "Normal" {
		score += 2
	}
	if strings.Contains(strings.ToLower(e.SubTypeName), "foil") {
		score--
	}
	return score
}

// SelectBestPricing keeps the highest scoring entry per product. On a tie the later entry wins.
func SelectBestPricing(entries []PricingEntry) map[int64]PricingEntry {
	best := make(map[int64]PricingEntry, len(entries))
	scores := make(map[int64]int, len(entries))
	for _, e := range entries {
		s := Score(e)
		if prev, ok := scores[e.ProductID]; ok && s < prev {
			continue
		}
		best[e.ProductID] = e
		scores[e.ProductID] = s
	}
	return best
}
