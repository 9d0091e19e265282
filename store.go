package printshop

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/eringen/printshop/homepage"
	"github.com/eringen/printshop/ordering"
)

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02 15:04:05.000000000"

// Store wraps a SQLite database and implements homepage.Gateway.
type Store struct {
	db *sql.DB
}

var _ homepage.Gateway = (*Store)(nil)

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	// busy_timeout and foreign_keys are per connection, so they go in the
	// DSN and apply to every pooled connection.
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS products (
    id TEXT PRIMARY KEY,
    name TEXT,
    slug TEXT NOT NULL DEFAULT '',
    price NUMERIC,
    unit TEXT,
    image_url TEXT,
    category TEXT
);

CREATE TABLE IF NOT EXISTS homepage_sections (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    subtitle TEXT,
    layout_kind TEXT NOT NULL DEFAULT 'featured',
    background TEXT NOT NULL DEFAULT 'white',
    visible_item_count INTEGER NOT NULL DEFAULT 3,
    cta_label TEXT NOT NULL DEFAULT '',
    cta_href TEXT NOT NULL DEFAULT '',
    linked_category_id TEXT,
    position INTEGER NOT NULL DEFAULT 0,
    active INTEGER NOT NULL DEFAULT 1,
    config TEXT NOT NULL DEFAULT '{}',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    updated_by TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS homepage_section_items (
    id TEXT PRIMARY KEY,
    section_id TEXT NOT NULL REFERENCES homepage_sections(id) ON DELETE CASCADE,
    product_id TEXT NOT NULL,
    position INTEGER NOT NULL DEFAULT 0,
    metadata TEXT NOT NULL DEFAULT '{}',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    updated_by TEXT NOT NULL DEFAULT '',
    UNIQUE (section_id, product_id)
);

CREATE INDEX IF NOT EXISTS idx_section_items_section ON homepage_section_items(section_id, position);
`)
	return err
}

const sectionColumns = `id, title, subtitle, layout_kind, background, visible_item_count, cta_label, cta_href,
    linked_category_id, position, active, config, created_at, updated_at, updated_by`

const itemColumns = `i.id, i.section_id, i.product_id, i.position, i.metadata, i.created_at, i.updated_at, i.updated_by,
    p.id, p.name, p.slug, p.price, p.unit, p.image_url, p.category`

const itemFrom = `FROM homepage_section_items i LEFT JOIN products p ON p.id = i.product_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanSection(row scanner) (homepage.SectionRecord, error) {
	var rec homepage.SectionRecord
	var active int
	var createdAt, updatedAt string
	err := row.Scan(&rec.ID, &rec.Title, &rec.Subtitle, &rec.LayoutKind, &rec.Background, &rec.VisibleItemCount,
		&rec.CTALabel, &rec.CTAHref, &rec.LinkedCategoryID, &rec.Position, &active, &rec.Config,
		&createdAt, &updatedAt, &rec.UpdatedBy)
	if err != nil {
		return rec, err
	}
	rec.Active = active == 1
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	return rec, nil
}

func scanItem(row scanner) (homepage.ItemRecord, error) {
	var rec homepage.ItemRecord
	var createdAt, updatedAt string
	var pid, pslug sql.NullString
	var p homepage.ProductRecord
	err := row.Scan(&rec.ID, &rec.SectionID, &rec.ProductID, &rec.Position, &rec.Metadata,
		&createdAt, &updatedAt, &rec.UpdatedBy,
		&pid, &p.Name, &pslug, &p.Price, &p.Unit, &p.ImageURL, &p.Category)
	if err != nil {
		return rec, err
	}
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	if pid.Valid {
		p.ID = pid.String
		p.Slug = pslug.String
		rec.Product = &p
	}
	return rec, nil
}

// ListSections returns every section with its items. Order is left to the
// caller.
func (s *Store) ListSections(ctx context.Context) ([]homepage.SectionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sectionColumns+` FROM homepage_sections ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []homepage.SectionRecord
	index := make(map[string]int)
	for rows.Next() {
		rec, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		index[rec.ID] = len(recs)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, err := s.queryItems(ctx, `SELECT `+itemColumns+` `+itemFrom+` ORDER BY i.section_id, i.position`)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if i, ok := index[it.SectionID]; ok {
			recs[i].Items = append(recs[i].Items, it)
		}
	}
	return recs, nil
}

// GetSection returns a single section with its items.
func (s *Store) GetSection(ctx context.Context, id string) (homepage.SectionRecord, error) {
	rec, err := scanSection(s.db.QueryRowContext(ctx, `SELECT `+sectionColumns+` FROM homepage_sections WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, &homepage.NotFoundError{Resource: homepage.ResourceSection, ID: id}
		}
		return rec, err
	}
	rec.Items, err = s.ListItems(ctx, id)
	return rec, err
}

// InsertSection stores a new section after the last one. p.Position is
// ignored; the trailing position is taken in the same statement.
func (s *Store) InsertSection(ctx context.Context, p homepage.SectionPayload) (homepage.SectionRecord, error) {
	at := formatTime(p.UpdatedAt)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO homepage_sections (`+sectionColumns+`)
SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(MAX(position), 0) + 1, ?, ?, ?, ?, ?
FROM homepage_sections`,
		p.ID, p.Title, nullable(p.Subtitle), p.LayoutKind, p.Background, p.VisibleItemCount,
		p.CTALabel, p.CTAHref, nullable(p.LinkedCategoryID), boolInt(p.Active), p.Config,
		at, at, p.UpdatedBy)
	if err != nil {
		if isUniqueViolation(err) {
			return homepage.SectionRecord{}, &homepage.ConflictError{
				Resource: homepage.ResourceSection, ID: p.ID, Reason: homepage.ReasonDuplicateID,
			}
		}
		return homepage.SectionRecord{}, err
	}
	return s.GetSection(ctx, p.ID)
}

// UpdateSection overwrites a section's editable fields. Position is left
// alone; only RewriteSectionPositions moves sections.
func (s *Store) UpdateSection(ctx context.Context, id string, p homepage.SectionPayload) (homepage.SectionRecord, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE homepage_sections SET
    title = ?, subtitle = ?, layout_kind = ?, background = ?, visible_item_count = ?,
    cta_label = ?, cta_href = ?, linked_category_id = ?, active = ?, config = ?,
    updated_at = ?, updated_by = ?
WHERE id = ?`,
		p.Title, nullable(p.Subtitle), p.LayoutKind, p.Background, p.VisibleItemCount,
		p.CTALabel, p.CTAHref, nullable(p.LinkedCategoryID), boolInt(p.Active), p.Config,
		formatTime(p.UpdatedAt), p.UpdatedBy, id)
	if err != nil {
		return homepage.SectionRecord{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return homepage.SectionRecord{}, &homepage.NotFoundError{Resource: homepage.ResourceSection, ID: id}
	}
	return s.GetSection(ctx, id)
}

// DeleteSection removes a section and its items.
func (s *Store) DeleteSection(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM homepage_section_items WHERE section_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM homepage_sections WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &homepage.NotFoundError{Resource: homepage.ResourceSection, ID: id}
	}
	return tx.Commit()
}

// RewriteSectionPositions applies every write in one transaction.
func (s *Store) RewriteSectionPositions(ctx context.Context, writes []homepage.PositionWrite) error {
	return s.rewritePositions(ctx, homepage.ResourceSection, writes,
		`UPDATE homepage_sections SET position = ?, updated_at = ?, updated_by = ? WHERE id = ?`)
}

// ListItems returns a section's items joined with their products.
func (s *Store) ListItems(ctx context.Context, sectionID string) ([]homepage.ItemRecord, error) {
	return s.queryItems(ctx, `SELECT `+itemColumns+` `+itemFrom+` WHERE i.section_id = ? ORDER BY i.position`, sectionID)
}

// GetItem returns one item of sectionID.
func (s *Store) GetItem(ctx context.Context, sectionID, itemID string) (homepage.ItemRecord, error) {
	rec, err := scanItem(s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` `+itemFrom+` WHERE i.section_id = ? AND i.id = ?`, sectionID, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return rec, &homepage.NotFoundError{Resource: homepage.ResourceItem, ID: itemID}
	}
	return rec, err
}

// InsertItem links a product into sectionID. A product already present in
// the section yields a *homepage.ConflictError naming the existing item.
func (s *Store) InsertItem(ctx context.Context, sectionID string, p homepage.ItemPayload) (homepage.ItemRecord, error) {
	at := formatTime(p.UpdatedAt)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO homepage_section_items (id, section_id, product_id, position, metadata, created_at, updated_at, updated_by)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, sectionID, p.ProductID, p.Position, p.Metadata, at, at, p.UpdatedBy)
	if err != nil {
		if isUniqueViolation(err) {
			existing := p.ID
			_ = s.db.QueryRowContext(ctx,
				`SELECT id FROM homepage_section_items WHERE section_id = ? AND product_id = ?`,
				sectionID, p.ProductID).Scan(&existing)
			return homepage.ItemRecord{}, &homepage.ConflictError{
				Resource: homepage.ResourceItem, ID: existing, Reason: homepage.ReasonDuplicateProduct,
			}
		}
		return homepage.ItemRecord{}, err
	}
	return s.GetItem(ctx, sectionID, p.ID)
}

// UpdateItem overwrites an item's metadata.
func (s *Store) UpdateItem(ctx context.Context, sectionID, itemID string, p homepage.ItemPayload) (homepage.ItemRecord, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE homepage_section_items SET metadata = ?, updated_at = ?, updated_by = ?
WHERE section_id = ? AND id = ?`,
		p.Metadata, formatTime(p.UpdatedAt), p.UpdatedBy, sectionID, itemID)
	if err != nil {
		return homepage.ItemRecord{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return homepage.ItemRecord{}, &homepage.NotFoundError{Resource: homepage.ResourceItem, ID: itemID}
	}
	return s.GetItem(ctx, sectionID, itemID)
}

// DeleteItem unlinks an item from sectionID.
func (s *Store) DeleteItem(ctx context.Context, sectionID, itemID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM homepage_section_items WHERE section_id = ? AND id = ?`, sectionID, itemID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &homepage.NotFoundError{Resource: homepage.ResourceItem, ID: itemID}
	}
	return nil
}

// RewriteItemPositions applies every write in one transaction. Rows of
// other sections are never matched.
func (s *Store) RewriteItemPositions(ctx context.Context, sectionID string, writes []homepage.PositionWrite) error {
	return s.rewritePositions(ctx, homepage.ResourceItem, writes,
		`UPDATE homepage_section_items SET position = ?, updated_at = ?, updated_by = ? WHERE id = ? AND section_id = ?`,
		sectionID)
}

// FindProductByID returns the product projection used by homepage cards.
func (s *Store) FindProductByID(ctx context.Context, id string) (homepage.ProductRecord, error) {
	var p homepage.ProductRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, slug, price, unit, image_url, category FROM products WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Slug, &p.Price, &p.Unit, &p.ImageURL, &p.Category)
	if errors.Is(err, sql.ErrNoRows) {
		return p, &homepage.NotFoundError{Resource: homepage.ResourceProduct, ID: id}
	}
	return p, err
}

// Product is a catalog row as imported by the import-products command.
type Product struct {
	ID       string              `json:"id"`
	Name     string              `json:"name"`
	Slug     string              `json:"slug"`
	Price    decimal.NullDecimal `json:"price"`
	Unit     string              `json:"unit"`
	ImageURL string              `json:"imageUrl"`
	Category string              `json:"category"`
}

// UpsertProduct inserts or replaces a product row.
func (s *Store) UpsertProduct(ctx context.Context, p Product) error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("printshop: product id is required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO products (id, name, slug, price, unit, image_url, category)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name, slug = excluded.slug, price = excluded.price, unit = excluded.unit,
    image_url = excluded.image_url, category = excluded.category`,
		p.ID, nullIfEmpty(p.Name), p.Slug, p.Price, p.Unit, nullIfEmpty(p.ImageURL), nullIfEmpty(p.Category))
	return err
}

// ListProducts returns every product ordered by name.
func (s *Store) ListProducts(ctx context.Context) ([]homepage.ProductSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, slug, price, unit, image_url, category FROM products ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []homepage.ProductSummary{}
	for rows.Next() {
		var p homepage.ProductRecord
		if err := rows.Scan(&p.ID, &p.Name, &p.Slug, &p.Price, &p.Unit, &p.ImageURL, &p.Category); err != nil {
			return nil, err
		}
		products = append(products, homepage.MapProduct(p))
	}
	return products, rows.Err()
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]homepage.ItemRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []homepage.ItemRecord
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// rewritePositions runs query once per write inside a transaction. query
// takes position, updated_at, updated_by and id, followed by extra.
func (s *Store) rewritePositions(ctx context.Context, resource string, writes []homepage.PositionWrite, query string, extra ...any) error {
	positions := make([]int, len(writes))
	for i, w := range writes {
		positions[i] = w.Position
	}
	if !ordering.Contiguous(positions) {
		return fmt.Errorf("printshop: %s positions not contiguous: %v", resource, positions)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, w := range writes {
		args := append([]any{w.Position, formatTime(w.UpdatedAt), w.UpdatedBy, w.ID}, extra...)
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &homepage.NotFoundError{Resource: resource, ID: w.ID}
		}
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "constraint failed: unique")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullIfEmpty(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
