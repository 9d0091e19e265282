// Package homepage composes the print-shop homepage: an ordered list of
// sections, each holding an ordered list of product items.
//
// Storage is reached only through the Gateway interface. Raw records coming
// back from it are normalized once by the mapper (MapSection, MapItem) so the
// rest of the code only sees the strict types declared here.
package homepage

import (
	"encoding/json"
	"maps"
	"time"

	"github.com/shopspring/decimal"
)

// VisibleItemCount is the number of items every section shows on the
// homepage, regardless of what older records stored.
const VisibleItemCount = 3

// DefaultUnit is used when a product has no sale unit.
const DefaultUnit = "unidade"

// LayoutKind selects how a section is laid out.
type LayoutKind string

const (
	LayoutFeatured LayoutKind = "featured"
	LayoutGrid     LayoutKind = "grid"
)

// Background is the section background color.
type Background string

const (
	BackgroundWhite Background = "white"
	BackgroundGray  Background = "gray"
)

// Attrs holds whitelisted presentation attributes. Values are string or bool.
type Attrs map[string]any

// Clone returns a copy of a. A nil Attrs clones to an empty one.
func (a Attrs) Clone() Attrs {
	out := make(Attrs, len(a))
	maps.Copy(out, a)
	return out
}

// Section is a positioned homepage block.
type Section struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Subtitle         *string    `json:"subtitle"`
	LayoutKind       LayoutKind `json:"layoutKind"`
	Background       Background `json:"background"`
	VisibleItemCount int        `json:"visibleItemCount"`
	CTALabel         string     `json:"ctaLabel"`
	CTAHref          string     `json:"ctaHref"`
	LinkedCategoryID *string    `json:"linkedCategoryId"`
	Position         int        `json:"position"`
	Active           bool       `json:"active"`
	Config           Attrs      `json:"config"`
	Items            []Item     `json:"items"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	UpdatedBy        string     `json:"updatedBy"`
}

// Clone returns a deep copy of s.
func (s Section) Clone() Section {
	out := s
	out.Subtitle = cloneString(s.Subtitle)
	out.LinkedCategoryID = cloneString(s.LinkedCategoryID)
	out.Config = s.Config.Clone()
	if s.Items != nil {
		out.Items = make([]Item, len(s.Items))
		for i, it := range s.Items {
			out.Items[i] = it.Clone()
		}
	}
	return out
}

// Item links a product into a section at a section-local position.
type Item struct {
	ID        string          `json:"id"`
	SectionID string          `json:"sectionId"`
	ProductID string          `json:"productId"`
	Position  int             `json:"position"`
	Metadata  Attrs           `json:"metadata"`
	Product   *ProductSummary `json:"product,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	UpdatedBy string          `json:"updatedBy"`
}

// Clone returns a deep copy of it.
func (it Item) Clone() Item {
	out := it
	out.Metadata = it.Metadata.Clone()
	if it.Product != nil {
		p := *it.Product
		out.Product = &p
	}
	return out
}

// ProductSummary is the read-only product projection embedded for display.
type ProductSummary struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Slug     string          `json:"slug"`
	Price    decimal.Decimal `json:"price"`
	Unit     string          `json:"unit"`
	ImageURL string          `json:"imageUrl"`
	Category string          `json:"category"`
}

// MarshalJSON writes the price as a JSON number rather than a string.
func (p ProductSummary) MarshalJSON() ([]byte, error) {
	type alias ProductSummary
	return json.Marshal(struct {
		alias
		Price json.Number `json:"price"`
	}{alias: alias(p), Price: json.Number(p.Price.String())})
}

// CloneSections deep-copies a section list. nil stays nil.
func CloneSections(sections []Section) []Section {
	if sections == nil {
		return nil
	}
	out := make([]Section, len(sections))
	for i, s := range sections {
		out[i] = s.Clone()
	}
	return out
}

// SectionIDs returns the ids of sections in slice order.
func SectionIDs(sections []Section) []string {
	ids := make([]string, len(sections))
	for i, s := range sections {
		ids[i] = s.ID
	}
	return ids
}

// ItemIDs returns the ids of items in slice order.
func ItemIDs(items []Item) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
