package homepage

import (
	"database/sql"
	"time"
)

// SectionRecord is a section row as the gateway returns it, with nested
// item rows. Optional columns are nullable and attribute maps are JSON text.
type SectionRecord struct {
	ID               string
	Title            string
	Subtitle         sql.NullString
	LayoutKind       string
	Background       string
	VisibleItemCount int
	CTALabel         string
	CTAHref          string
	LinkedCategoryID sql.NullString
	Position         int
	Active           bool
	Config           string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	UpdatedBy        string
	Items            []ItemRecord
}

// ItemRecord is an item row, optionally joined with its product.
type ItemRecord struct {
	ID        string
	SectionID string
	ProductID string
	Position  int
	Metadata  string
	CreatedAt time.Time
	UpdatedAt time.Time
	UpdatedBy string
	Product   *ProductRecord
}

// ProductRecord is a product row. Price arrives loosely typed: the storage
// layer may hand back float64, int64, string, []byte or nil.
type ProductRecord struct {
	ID       string
	Name     sql.NullString
	Slug     string
	Price    any
	Unit     sql.NullString
	ImageURL sql.NullString
	Category sql.NullString
}

// SectionPayload is the write form of a section. Read-only fields (items,
// creation time) are not part of it.
type SectionPayload struct {
	ID               string
	Title            string
	Subtitle         *string
	LayoutKind       string
	Background       string
	VisibleItemCount int
	CTALabel         string
	CTAHref          string
	LinkedCategoryID *string
	Position         int
	Active           bool
	Config           string
	UpdatedAt        time.Time
	UpdatedBy        string
}

// ItemPayload is the write form of an item. The embedded product is not
// part of it.
type ItemPayload struct {
	ID        string
	SectionID string
	ProductID string
	Position  int
	Metadata  string
	UpdatedAt time.Time
	UpdatedBy string
}
