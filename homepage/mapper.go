package homepage

import (
	"cmp"
	"database/sql"
	"encoding/json"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/eringen/printshop/sanitize"
)

// MapSection normalizes a raw section record. Missing optional fields become
// nil, config becomes an empty map, VisibleItemCount is forced to the fixed
// constant and items are sorted by position, then creation time.
func MapSection(rec SectionRecord) Section {
	s := Section{
		ID:               rec.ID,
		Title:            rec.Title,
		Subtitle:         nullString(rec.Subtitle),
		LayoutKind:       layoutKind(rec.LayoutKind),
		Background:       background(rec.Background),
		VisibleItemCount: VisibleItemCount,
		CTALabel:         rec.CTALabel,
		CTAHref:          rec.CTAHref,
		LinkedCategoryID: nullString(rec.LinkedCategoryID),
		Position:         rec.Position,
		Active:           rec.Active,
		Config:           decodeAttrs(rec.Config),
		Items:            make([]Item, 0, len(rec.Items)),
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
		UpdatedBy:        rec.UpdatedBy,
	}
	for _, ir := range rec.Items {
		s.Items = append(s.Items, MapItem(ir))
	}
	SortItems(s.Items)
	return s
}

// MapItem normalizes a raw item record and its embedded product.
func MapItem(rec ItemRecord) Item {
	it := Item{
		ID:        rec.ID,
		SectionID: rec.SectionID,
		ProductID: rec.ProductID,
		Position:  rec.Position,
		Metadata:  decodeAttrs(rec.Metadata),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
		UpdatedBy: rec.UpdatedBy,
	}
	if rec.Product != nil {
		p := MapProduct(*rec.Product)
		it.Product = &p
	}
	return it
}

// MapProduct projects a product record for display.
func MapProduct(rec ProductRecord) ProductSummary {
	price, _ := coercePrice(rec.Price)
	unit := rec.Unit.String
	if strings.TrimSpace(unit) == "" {
		unit = DefaultUnit
	}
	return ProductSummary{
		ID:       rec.ID,
		Name:     rec.Name.String,
		Slug:     rec.Slug,
		Price:    price,
		Unit:     unit,
		ImageURL: rec.ImageURL.String,
		Category: rec.Category.String,
	}
}

// ToSectionPayload is the inverse of MapSection. Items are dropped.
func ToSectionPayload(s Section) SectionPayload {
	return SectionPayload{
		ID:               s.ID,
		Title:            s.Title,
		Subtitle:         cloneString(s.Subtitle),
		LayoutKind:       string(s.LayoutKind),
		Background:       string(s.Background),
		VisibleItemCount: VisibleItemCount,
		CTALabel:         s.CTALabel,
		CTAHref:          s.CTAHref,
		LinkedCategoryID: cloneString(s.LinkedCategoryID),
		Position:         s.Position,
		Active:           s.Active,
		Config:           encodeAttrs(s.Config),
		UpdatedAt:        s.UpdatedAt,
		UpdatedBy:        s.UpdatedBy,
	}
}

// ToItemPayload is the inverse of MapItem. The product is dropped.
func ToItemPayload(it Item) ItemPayload {
	return ItemPayload{
		ID:        it.ID,
		SectionID: it.SectionID,
		ProductID: it.ProductID,
		Position:  it.Position,
		Metadata:  encodeAttrs(it.Metadata),
		UpdatedAt: it.UpdatedAt,
		UpdatedBy: it.UpdatedBy,
	}
}

// SortSections orders sections by position. Equal positions keep their
// relative order.
func SortSections(sections []Section) {
	slices.SortStableFunc(sections, func(a, b Section) int {
		return cmp.Compare(a.Position, b.Position)
	})
}

// SortItems orders items by position, then creation time. Legacy rows may
// share a position (often 0); creation time breaks the tie.
func SortItems(items []Item) {
	slices.SortStableFunc(items, func(a, b Item) int {
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

func layoutKind(v string) LayoutKind {
	if LayoutKind(v) == LayoutGrid {
		return LayoutGrid
	}
	return LayoutFeatured
}

func background(v string) Background {
	if Background(v) == BackgroundGray {
		return BackgroundGray
	}
	return BackgroundWhite
}

func decodeAttrs(raw string) Attrs {
	var m map[string]any
	if strings.TrimSpace(raw) != "" {
		_ = json.Unmarshal([]byte(raw), &m)
	}
	return Attrs(sanitize.ConfigMap(m, sanitize.AllowedKeys))
}

func encodeAttrs(a Attrs) string {
	b, err := json.Marshal(sanitize.ConfigMap(a, sanitize.AllowedKeys))
	if err != nil {
		return "{}"
	}
	return string(b)
}

// coercePrice accepts the numeric shapes storage drivers return. The bool
// result is false when v is nil or not a number.
func coercePrice(v any) (decimal.Decimal, bool) {
	switch p := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return p, true
	case float64:
		return decimal.NewFromFloat(p), true
	case float32:
		return decimal.NewFromFloat32(p), true
	case int64:
		return decimal.NewFromInt(p), true
	case int:
		return decimal.NewFromInt(int64(p)), true
	case []byte:
		return parsePrice(string(p))
	case string:
		return parsePrice(p)
	}
	return decimal.Zero, false
}

func parsePrice(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
