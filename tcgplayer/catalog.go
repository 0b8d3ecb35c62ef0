package tcgplayer

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// Filter is one search filter, e.g. {Name: "ProductName", Values: ["Roronoa Zoro"]}.
type Filter struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

type SearchRequest struct {
	Sort    string   `json:"sort,omitempty"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
	Filters []Filter `json:"filters"`
}

// ProductNameFilter matches products by exact name. The API caps name searches at 50
// matches no matter how many exist.
func ProductNameFilter(name string) Filter {
	return Filter{Name: "ProductName", Values: []string{name}}
}

// SearchResult holds the product IDs of one search page. TotalItems is whatever the API
// reported and may be smaller than the true match count.
type SearchResult struct {
	TotalItems int
	ProductIDs []int64
}

type searchResponse struct {
	Success      bool     `json:"success"`
	Errors       []string `json:"errors"`
	TotalItems   *int     `json:"totalItems"`
	TotalResults *int     `json:"totalResults"`
	Results      []int64  `json:"results"`
}

// SearchProductIDs posts req to the category search endpoint. A 404 means no matches.
func (c *Client) SearchProductIDs(ctx context.Context, req SearchRequest) (SearchResult, error) {
	if req.Filters == nil {
		req.Filters = []Filter{}
	}
	path := fmt.Sprintf("/catalog/categories/%d/search", c.categoryID)

	var resp searchResponse
	if err := c.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		if isNotFound(err) {
			return SearchResult{}, nil
		}
		return SearchResult{}, err
	}
	if !resp.Success && len(resp.Errors) > 0 {
		return SearchResult{}, fmt.Errorf("tcgplayer search failed: %s", strings.Join(resp.Errors, "; "))
	}

	out := SearchResult{ProductIDs: resp.Results}
	switch {
	case resp.TotalItems != nil:
		out.TotalItems = *resp.TotalItems
	case resp.TotalResults != nil:
		out.TotalItems = *resp.TotalResults
	default:
		out.TotalItems = len(resp.Results)
	}
	return out, nil
}

// ExtendedData is one loosely typed product attribute (card type, rarity, number...).
type ExtendedData struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Value       string `json:"value"`
}

type Product struct {
	ProductID    int64          `json:"productId"`
	Name         string         `json:"name"`
	CleanName    string         `json:"cleanName"`
	ImageURL     string         `json:"imageUrl"`
	CategoryID   int            `json:"categoryId"`
	GroupID      int            `json:"groupId"`
	URL          string         `json:"url"`
	ModifiedOn   string         `json:"modifiedOn"`
	ExtendedData []ExtendedData `json:"extendedData"`

	// Raw is the product exactly as the API returned it.
	Raw json.RawMessage `json:"-"`
}

type productsResponse struct {
	Success bool              `json:"success"`
	Errors  []string          `json:"errors"`
	Results []json.RawMessage `json:"results"`
}

// GetProducts hydrates product IDs in a single request.
func (c *Client) GetProducts(ctx context.Context, ids []int64) ([]Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	path := "/catalog/products/" + joinIDs(ids) + "?includeExtendedFields=true"

	var resp productsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success && len(resp.Errors) > 0 && len(resp.Results) == 0 {
		return nil, fmt.Errorf("tcgplayer products lookup failed: %s", strings.Join(resp.Errors, "; "))
	}

	products := make([]Product, 0, len(resp.Results))
	for _, raw := range resp.Results {
		var p Product
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to decode product: %w", err)
		}
		p.Raw = append(json.RawMessage(nil), raw...)
		products = append(products, p)
	}
	return products, nil
}

// SearchProducts runs a search and hydrates the IDs it returns.
func (c *Client) SearchProducts(ctx context.Context, req SearchRequest) (SearchResult, []Product, error) {
	res, err := c.SearchProductIDs(ctx, req)
	if err != nil {
		return SearchResult{}, nil, err
	}
	products, err := c.GetProducts(ctx, res.ProductIDs)
	if err != nil {
		return res, nil, err
	}
	return res, products, nil
}
