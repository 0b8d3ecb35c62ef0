package tcgplayer

import (
	"strings"
)

// NormalizedProduct is a Product flattened into the columns the catalog mirror stores.
type NormalizedProduct struct {
	ProductID  int64
	Name       string
	CleanName  string
	ImageURL   string
	URL        string
	CategoryID int
	GroupID    int
	CardType   string
	Rarity     string
	Number     string
	IsSealed   bool
	Metadata   []byte
}

var sealedKeywords = []string{
	"booster box",
	"booster pack",
	"booster display",
	"case",
	"starter deck",
	"double pack",
	"premium collection",
	"gift collection",
	"tin",
	"bundle",
	"sealed",
}

func NormalizeProduct(p Product) NormalizedProduct {
	cardType := extendedValue(p.ExtendedData, "CardType", "Card Type")
	return NormalizedProduct{
		ProductID:  p.ProductID,
		Name:       p.Name,
		CleanName:  p.CleanName,
		ImageURL:   p.ImageURL,
		URL:        p.URL,
		CategoryID: p.CategoryID,
		GroupID:    p.GroupID,
		CardType:   cardType,
		Rarity:     extendedValue(p.ExtendedData, "Rarity"),
		Number:     extendedValue(p.ExtendedData, "Number"),
		IsSealed:   IsSealedProduct(p.Name, cardType),
		Metadata:   p.Raw,
	}
}

// IsSealedProduct classifies a product as sealed product or a single card. A card type
// always means a single. Without one the product counts as sealed, keyword match or not.
func IsSealedProduct(name, cardType string) bool {
	if strings.TrimSpace(cardType) != "" {
		return false
	}
	lower := strings.ToLower(name)
	for _, kw := range sealedKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	// unmatched products default to sealed
	return true
}

// extendedValue returns the value of the first field whose name or display name matches.
func extendedValue(fields []ExtendedData, names ...string) string {
	for _, f := range fields {
		for _, n := range names {
			if strings.EqualFold(f.Name, n) || strings.EqualFold(f.DisplayName, n) {
				return strings.TrimSpace(f.Value)
			}
		}
	}
	return ""
}
