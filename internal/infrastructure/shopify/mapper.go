package shopify

import (
	"strconv"
	"strings"

	"github.com/pricelens/backend/internal/domain"
)

// Wire payloads for the REST Admin API. Prices travel as strings.

type productListPayload struct {
	Products []productData `json:"products"`
}

type productPayload struct {
	Product productData `json:"product"`
}

type productData struct {
	ID          int64         `json:"id"`
	Title       string        `json:"title"`
	Vendor      string        `json:"vendor"`
	ProductType string        `json:"product_type"`
	BodyHTML    string        `json:"body_html"`
	Tags        string        `json:"tags"`
	Variants    []variantData `json:"variants"`
}

type variantData struct {
	ID             int64   `json:"id"`
	Price          string  `json:"price"`
	CompareAtPrice *string `json:"compare_at_price"`
}

type variantUpdate struct {
	ID             int64  `json:"id"`
	Price          string `json:"price"`
	CompareAtPrice string `json:"compare_at_price"`
}

type metafieldPayload struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	Type      string `json:"type"`
}

// mapProduct converts a platform product to the engine's input model. The
// first variant's price stands in for the product price.
func mapProduct(p *productData) domain.InputProduct {
	input := domain.InputProduct{
		ExternalID:  p.ID,
		Title:       p.Title,
		Vendor:      p.Vendor,
		ProductType: p.ProductType,
		Description: stripHTML(p.BodyHTML),
		Tags:        splitTags(p.Tags),
	}
	if len(p.Variants) > 0 {
		if price, err := strconv.ParseFloat(p.Variants[0].Price, 64); err == nil {
			input.Price = &price
		}
	}
	return input
}

func mapVariants(variants []variantData) []domain.Variant {
	out := make([]domain.Variant, 0, len(variants))
	for _, v := range variants {
		variant := domain.Variant{ID: v.ID}
		if price, err := strconv.ParseFloat(v.Price, 64); err == nil {
			variant.Price = price
		}
		if v.CompareAtPrice != nil {
			if compareAt, err := strconv.ParseFloat(*v.CompareAtPrice, 64); err == nil {
				variant.CompareAtPrice = &compareAt
			}
		}
		out = append(out, variant)
	}
	return out
}

// splitTags parses Shopify's comma-separated tag string.
func splitTags(tags string) []string {
	if tags == "" {
		return nil
	}
	parts := strings.Split(tags, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// stripHTML removes tags from a body_html description, keeping the text the
// ingredient extractor scans.
func stripHTML(html string) string {
	var b strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteRune(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(strings.Join(strings.Fields(b.String()), " "))
}
