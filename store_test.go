package printshop

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eringen/printshop/homepage"
)

func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test_printshop.db")

	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	cleanup := func() {
		s.Close()
	}

	return s, cleanup
}

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func insertTestSection(t *testing.T, s *Store, id string) homepage.SectionRecord {
	t.Helper()
	rec, err := s.InsertSection(context.Background(), homepage.SectionPayload{
		ID: id, Title: "Section " + id, LayoutKind: "featured", Background: "white",
		VisibleItemCount: 3, Active: true, Config: "{}",
		UpdatedAt: testTime, UpdatedBy: "editor-1",
	})
	if err != nil {
		t.Fatalf("InsertSection(%s): %v", id, err)
	}
	return rec
}

func insertTestItem(t *testing.T, s *Store, sectionID, id, productID string, pos int) homepage.ItemRecord {
	t.Helper()
	rec, err := s.InsertItem(context.Background(), sectionID, homepage.ItemPayload{
		ID: id, SectionID: sectionID, ProductID: productID, Position: pos, Metadata: "{}",
		UpdatedAt: testTime.Add(time.Duration(pos) * time.Second), UpdatedBy: "editor-1",
	})
	if err != nil {
		t.Fatalf("InsertItem(%s): %v", id, err)
	}
	return rec
}

func upsertTestProduct(t *testing.T, s *Store, id, name, price string) {
	t.Helper()
	p := Product{ID: id, Name: name, Slug: id}
	if price != "" {
		p.Price = decimal.NewNullDecimal(decimal.RequireFromString(price))
	}
	if err := s.UpsertProduct(context.Background(), p); err != nil {
		t.Fatalf("UpsertProduct(%s): %v", id, err)
	}
}

func sectionIDs(recs []homepage.SectionRecord) []string {
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return ids
}

func TestNewStore(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	if s == nil {
		t.Fatal("store should not be nil")
	}
	if s.db == nil {
		t.Fatal("db should not be nil")
	}
	var fk int
	if err := s.db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}

func TestInsertAndGetSection(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	insertTestSection(t, s, "a1")
	rec, err := s.GetSection(context.Background(), "a1")
	if err != nil {
		t.Fatalf("GetSection: %v", err)
	}
	if rec.Title != "Section a1" || rec.Position != 1 || !rec.Active {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Subtitle.Valid {
		t.Error("subtitle should be NULL")
	}
	if !rec.UpdatedAt.Equal(testTime) {
		t.Errorf("UpdatedAt = %v, want %v", rec.UpdatedAt, testTime)
	}
}

func TestGetSectionNotFound(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := s.GetSection(context.Background(), "missing")
	var nf *homepage.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if nf.Resource != homepage.ResourceSection || nf.ID != "missing" {
		t.Errorf("unexpected error fields: %+v", nf)
	}
}

func TestInsertSectionDuplicateID(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	insertTestSection(t, s, "a1")
	_, err := s.InsertSection(context.Background(), homepage.SectionPayload{
		ID: "a1", Title: "Again", LayoutKind: "grid", Background: "gray", Position: 2, Config: "{}",
	})
	var ce *homepage.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if ce.Reason != homepage.ReasonDuplicateID {
		t.Errorf("Reason = %q, want %q", ce.Reason, homepage.ReasonDuplicateID)
	}
}

func TestListSectionsNestsItems(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	upsertTestProduct(t, s, "p1", "Cartão", "89.50")
	upsertTestProduct(t, s, "p2", "Banner", "")
	insertTestSection(t, s, "a1")
	insertTestSection(t, s, "b1")
	insertTestItem(t, s, "a1", "i1", "p1", 1)
	insertTestItem(t, s, "a1", "i2", "p2", 2)
	insertTestItem(t, s, "b1", "i3", "p1", 1)

	recs, err := s.ListSections(context.Background())
	if err != nil {
		t.Fatalf("ListSections: %v", err)
	}
	if got := sectionIDs(recs); len(got) != 2 || got[0] != "a1" || got[1] != "b1" {
		t.Fatalf("sections = %v, want [a1 b1]", got)
	}
	if len(recs[0].Items) != 2 || len(recs[1].Items) != 1 {
		t.Fatalf("item counts = %d, %d", len(recs[0].Items), len(recs[1].Items))
	}
	first := recs[0].Items[0]
	if first.Product == nil || first.Product.Name.String != "Cartão" {
		t.Fatalf("product not joined: %+v", first.Product)
	}
	if p := homepage.MapProduct(*first.Product); !p.Price.Equal(decimal.RequireFromString("89.5")) {
		t.Errorf("price = %s, want 89.5", p.Price)
	}
	if recs[0].Items[1].Product.Price != nil {
		t.Errorf("expected NULL price, got %#v", recs[0].Items[1].Product.Price)
	}
}

func TestItemWithoutProductRow(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	insertTestSection(t, s, "a1")
	rec := insertTestItem(t, s, "a1", "i1", "gone", 1)
	if rec.Product != nil {
		t.Errorf("expected nil product, got %+v", rec.Product)
	}
}

func TestInsertItemDuplicateProduct(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	upsertTestProduct(t, s, "p1", "Cartão", "10")
	insertTestSection(t, s, "a1")
	insertTestSection(t, s, "b1")
	insertTestItem(t, s, "a1", "i1", "p1", 1)

	_, err := s.InsertItem(context.Background(), "a1", homepage.ItemPayload{
		ID: "i2", ProductID: "p1", Position: 2, Metadata: "{}",
	})
	var ce *homepage.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if ce.ID != "i1" || ce.Reason != homepage.ReasonDuplicateProduct {
		t.Errorf("conflict = %+v, want existing i1 duplicate_product", ce)
	}

	// The same product may appear in another section.
	insertTestItem(t, s, "b1", "i3", "p1", 1)
}

func TestDeleteSectionRemovesItems(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	insertTestSection(t, s, "a1")
	insertTestItem(t, s, "a1", "i1", "p1", 1)

	if err := s.DeleteSection(ctx, "a1"); err != nil {
		t.Fatalf("DeleteSection: %v", err)
	}
	items, err := s.ListItems(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Errorf("expected items to be removed, got %d", len(items))
	}
	if err := s.DeleteSection(ctx, "a1"); !homepage.IsNotFound(err) {
		t.Errorf("second delete: expected NotFound, got %v", err)
	}
}

func TestRewriteSectionPositions(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	insertTestSection(t, s, "a1")
	insertTestSection(t, s, "b1")
	insertTestSection(t, s, "c1")

	writes := []homepage.PositionWrite{
		{ID: "c1", Position: 1, UpdatedAt: testTime, UpdatedBy: "editor-2"},
		{ID: "b1", Position: 2, UpdatedAt: testTime, UpdatedBy: "editor-2"},
		{ID: "a1", Position: 3, UpdatedAt: testTime, UpdatedBy: "editor-2"},
	}
	if err := s.RewriteSectionPositions(ctx, writes); err != nil {
		t.Fatalf("RewriteSectionPositions: %v", err)
	}
	recs, err := s.ListSections(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := sectionIDs(recs); got[0] != "c1" || got[1] != "b1" || got[2] != "a1" {
		t.Errorf("order = %v, want [c1 b1 a1]", got)
	}
	if recs[0].UpdatedBy != "editor-2" {
		t.Errorf("UpdatedBy = %q, want editor-2", recs[0].UpdatedBy)
	}
}

func TestRewritePositionsRejectsGaps(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	insertTestSection(t, s, "a1")
	insertTestSection(t, s, "b1")

	err := s.RewriteSectionPositions(ctx, []homepage.PositionWrite{
		{ID: "a1", Position: 1}, {ID: "b1", Position: 3},
	})
	if err == nil {
		t.Fatal("expected error for non-contiguous positions")
	}
	rec, _ := s.GetSection(ctx, "b1")
	if rec.Position != 2 {
		t.Errorf("position changed to %d despite rejected rewrite", rec.Position)
	}
}

func TestRewritePositionsIsAtomic(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	insertTestSection(t, s, "a1")
	insertTestSection(t, s, "b1")

	err := s.RewriteSectionPositions(ctx, []homepage.PositionWrite{
		{ID: "b1", Position: 1}, {ID: "ghost", Position: 2},
	})
	if !homepage.IsNotFound(err) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	rec, _ := s.GetSection(ctx, "b1")
	if rec.Position != 2 {
		t.Errorf("b1 position = %d, want rollback to 2", rec.Position)
	}
}

func TestRewriteItemPositionsScopedToSection(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	insertTestSection(t, s, "a1")
	insertTestSection(t, s, "b1")
	insertTestItem(t, s, "a1", "i1", "p1", 1)
	insertTestItem(t, s, "a1", "i2", "p2", 2)
	insertTestItem(t, s, "b1", "i3", "p1", 1)

	if err := s.RewriteItemPositions(ctx, "a1", []homepage.PositionWrite{
		{ID: "i2", Position: 1}, {ID: "i1", Position: 2},
	}); err != nil {
		t.Fatalf("RewriteItemPositions: %v", err)
	}
	items, _ := s.ListItems(ctx, "a1")
	if items[0].ID != "i2" || items[1].ID != "i1" {
		t.Errorf("order = [%s %s], want [i2 i1]", items[0].ID, items[1].ID)
	}

	err := s.RewriteItemPositions(ctx, "a1", []homepage.PositionWrite{{ID: "i3", Position: 1}})
	if !homepage.IsNotFound(err) {
		t.Errorf("item of another section: expected NotFound, got %v", err)
	}
}

func TestUpdateAndDeleteItem(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	insertTestSection(t, s, "a1")
	insertTestItem(t, s, "a1", "i1", "p1", 1)

	rec, err := s.UpdateItem(ctx, "a1", "i1", homepage.ItemPayload{
		Metadata: `{"badge":"Novo"}`, UpdatedAt: testTime, UpdatedBy: "editor-2",
	})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if rec.Metadata != `{"badge":"Novo"}` || rec.UpdatedBy != "editor-2" {
		t.Errorf("unexpected item: %+v", rec)
	}
	if _, err := s.UpdateItem(ctx, "b1", "i1", homepage.ItemPayload{Metadata: "{}"}); !homepage.IsNotFound(err) {
		t.Errorf("wrong section: expected NotFound, got %v", err)
	}
	if err := s.DeleteItem(ctx, "a1", "i1"); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	if _, err := s.GetItem(ctx, "a1", "i1"); !homepage.IsNotFound(err) {
		t.Errorf("expected NotFound after delete, got %v", err)
	}
}

func TestProducts(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	upsertTestProduct(t, s, "p1", "Cartão", "89.50")
	upsertTestProduct(t, s, "p1", "Cartão premium", "99")
	upsertTestProduct(t, s, "p2", "Adesivo", "")

	products, err := s.ListProducts(ctx)
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("got %d products, want 2", len(products))
	}
	if products[0].ID != "p2" || products[1].Name != "Cartão premium" {
		t.Errorf("unexpected products: %+v", products)
	}
	if !products[1].Price.Equal(decimal.NewFromInt(99)) {
		t.Errorf("price = %s, want 99", products[1].Price)
	}
	if products[0].Unit != homepage.DefaultUnit {
		t.Errorf("unit = %q, want default", products[0].Unit)
	}

	if _, err := s.FindProductByID(ctx, "nope"); !homepage.IsNotFound(err) {
		t.Errorf("expected NotFound, got %v", err)
	}
	if err := s.UpsertProduct(ctx, Product{Name: "no id"}); err == nil {
		t.Error("expected error for product without id")
	}
}

func TestUpdateSectionKeepsStoredPosition(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	insertTestSection(t, s, "a1")
	insertTestSection(t, s, "b1")
	if err := s.RewriteSectionPositions(ctx, []homepage.PositionWrite{
		{ID: "b1", Position: 1}, {ID: "a1", Position: 2},
	}); err != nil {
		t.Fatal(err)
	}

	// a payload read before the rewrite still carries position 1
	rec, err := s.UpdateSection(ctx, "a1", homepage.SectionPayload{
		Title: "Renamed", LayoutKind: "grid", Background: "gray", Position: 1, Active: true, Config: "{}",
	})
	if err != nil {
		t.Fatalf("UpdateSection: %v", err)
	}
	if rec.Title != "Renamed" || rec.Position != 2 {
		t.Errorf("got title %q position %d, want Renamed at 2", rec.Title, rec.Position)
	}
	recs, _ := s.ListSections(ctx)
	if recs[0].ID != "b1" || recs[0].Position != 1 || recs[1].Position != 2 {
		t.Errorf("positions changed by a metadata edit: %s=%d %s=%d",
			recs[0].ID, recs[0].Position, recs[1].ID, recs[1].Position)
	}
}

func TestInsertSectionTakesTrailingPosition(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	for i, id := range []string{"a1", "b1", "c1"} {
		// every caller computed the same stale position
		rec, err := s.InsertSection(ctx, homepage.SectionPayload{
			ID: id, Title: id, LayoutKind: "featured", Background: "white", Position: 1, Config: "{}",
		})
		if err != nil {
			t.Fatalf("InsertSection(%s): %v", id, err)
		}
		if rec.Position != i+1 {
			t.Errorf("%s position = %d, want %d", id, rec.Position, i+1)
		}
	}
}

func TestProductWithEmptyUnitIsLinkable(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := homepage.WithActor(context.Background(), "editor-1")
	if err := s.UpsertProduct(ctx, Product{
		ID: "p1", Name: "Panfleto", Slug: "panfleto", Price: decimal.NewNullDecimal(decimal.NewFromInt(5)),
	}); err != nil {
		t.Fatal(err)
	}
	rec, err := s.FindProductByID(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Unit.Valid {
		t.Fatal("empty unit stored as NULL")
	}

	svc := homepage.NewService(s)
	if _, err := svc.CreateSection(ctx, homepage.SectionInput{
		Title: "Destaques", LayoutKind: homepage.LayoutFeatured, Background: homepage.BackgroundWhite,
	}); err != nil {
		t.Fatal(err)
	}
	it, err := svc.AddItem(ctx, "destaques", homepage.ItemInput{ProductID: "p1"})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if it.Product == nil || it.Product.Unit != homepage.DefaultUnit {
		t.Errorf("product = %+v, want unit %q", it.Product, homepage.DefaultUnit)
	}
}
