package homepage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// memGateway is an in-memory Gateway for service tests.
type memGateway struct {
	mu       sync.Mutex
	sections map[string]SectionRecord
	items    map[string]ItemRecord
	products map[string]ProductRecord

	failRewrite error
	failList    error
	rewrites    int
}

func newMemGateway() *memGateway {
	return &memGateway{
		sections: map[string]SectionRecord{},
		items:    map[string]ItemRecord{},
		products: map[string]ProductRecord{},
	}
}

func (g *memGateway) addProduct(id, name string, price any, unit string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.products[id] = ProductRecord{
		ID:    id,
		Name:  sql.NullString{String: name, Valid: name != ""},
		Slug:  id,
		Price: price,
		Unit:  sql.NullString{String: unit, Valid: true},
	}
}

func (g *memGateway) sectionWithItems(rec SectionRecord) SectionRecord {
	rec.Items = nil
	for _, it := range g.items {
		if it.SectionID == rec.ID {
			rec.Items = append(rec.Items, g.withProduct(it))
		}
	}
	return rec
}

func (g *memGateway) withProduct(it ItemRecord) ItemRecord {
	if p, ok := g.products[it.ProductID]; ok {
		it.Product = &p
	}
	return it
}

func (g *memGateway) ListSections(ctx context.Context) ([]SectionRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failList != nil {
		return nil, g.failList
	}
	out := make([]SectionRecord, 0, len(g.sections))
	for _, rec := range g.sections {
		out = append(out, g.sectionWithItems(rec))
	}
	return out, nil
}

func (g *memGateway) GetSection(ctx context.Context, id string) (SectionRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.sections[id]
	if !ok {
		return SectionRecord{}, &NotFoundError{Resource: ResourceSection, ID: id}
	}
	return g.sectionWithItems(rec), nil
}

func (g *memGateway) InsertSection(ctx context.Context, p SectionPayload) (SectionRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.sections[p.ID]; ok {
		return SectionRecord{}, &ConflictError{Resource: ResourceSection, ID: p.ID, Reason: ReasonDuplicateID}
	}
	rec := sectionRecordFrom(p)
	rec.CreatedAt = p.UpdatedAt
	rec.Position = 1
	for _, other := range g.sections {
		rec.Position = max(rec.Position, other.Position+1)
	}
	g.sections[p.ID] = rec
	return rec, nil
}

func (g *memGateway) UpdateSection(ctx context.Context, id string, p SectionPayload) (SectionRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	old, ok := g.sections[id]
	if !ok {
		return SectionRecord{}, &NotFoundError{Resource: ResourceSection, ID: id}
	}
	rec := sectionRecordFrom(p)
	rec.CreatedAt = old.CreatedAt
	rec.Position = old.Position
	g.sections[id] = rec
	return g.sectionWithItems(rec), nil
}

func (g *memGateway) DeleteSection(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.sections[id]; !ok {
		return &NotFoundError{Resource: ResourceSection, ID: id}
	}
	delete(g.sections, id)
	for itemID, it := range g.items {
		if it.SectionID == id {
			delete(g.items, itemID)
		}
	}
	return nil
}

func (g *memGateway) RewriteSectionPositions(ctx context.Context, writes []PositionWrite) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rewrites++
	if g.failRewrite != nil {
		return g.failRewrite
	}
	for _, w := range writes {
		if _, ok := g.sections[w.ID]; !ok {
			return &NotFoundError{Resource: ResourceSection, ID: w.ID}
		}
	}
	for _, w := range writes {
		rec := g.sections[w.ID]
		rec.Position = w.Position
		rec.UpdatedAt = w.UpdatedAt
		rec.UpdatedBy = w.UpdatedBy
		g.sections[w.ID] = rec
	}
	return nil
}

func (g *memGateway) ListItems(ctx context.Context, sectionID string) ([]ItemRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []ItemRecord
	for _, it := range g.items {
		if it.SectionID == sectionID {
			out = append(out, g.withProduct(it))
		}
	}
	return out, nil
}

func (g *memGateway) GetItem(ctx context.Context, sectionID, itemID string) (ItemRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	it, ok := g.items[itemID]
	if !ok || it.SectionID != sectionID {
		return ItemRecord{}, &NotFoundError{Resource: ResourceItem, ID: itemID}
	}
	return g.withProduct(it), nil
}

func (g *memGateway) InsertItem(ctx context.Context, sectionID string, p ItemPayload) (ItemRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, it := range g.items {
		if it.SectionID == sectionID && it.ProductID == p.ProductID {
			return ItemRecord{}, &ConflictError{Resource: ResourceItem, ID: it.ID, Reason: ReasonDuplicateProduct}
		}
	}
	rec := ItemRecord{
		ID:        p.ID,
		SectionID: sectionID,
		ProductID: p.ProductID,
		Position:  p.Position,
		Metadata:  p.Metadata,
		CreatedAt: p.UpdatedAt,
		UpdatedAt: p.UpdatedAt,
		UpdatedBy: p.UpdatedBy,
	}
	g.items[p.ID] = rec
	return g.withProduct(rec), nil
}

func (g *memGateway) UpdateItem(ctx context.Context, sectionID, itemID string, p ItemPayload) (ItemRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	it, ok := g.items[itemID]
	if !ok || it.SectionID != sectionID {
		return ItemRecord{}, &NotFoundError{Resource: ResourceItem, ID: itemID}
	}
	it.Metadata = p.Metadata
	it.UpdatedAt = p.UpdatedAt
	it.UpdatedBy = p.UpdatedBy
	g.items[itemID] = it
	return g.withProduct(it), nil
}

func (g *memGateway) DeleteItem(ctx context.Context, sectionID, itemID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	it, ok := g.items[itemID]
	if !ok || it.SectionID != sectionID {
		return &NotFoundError{Resource: ResourceItem, ID: itemID}
	}
	delete(g.items, itemID)
	return nil
}

func (g *memGateway) RewriteItemPositions(ctx context.Context, sectionID string, writes []PositionWrite) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rewrites++
	if g.failRewrite != nil {
		return g.failRewrite
	}
	for _, w := range writes {
		it, ok := g.items[w.ID]
		if !ok || it.SectionID != sectionID {
			return &NotFoundError{Resource: ResourceItem, ID: w.ID}
		}
	}
	for _, w := range writes {
		it := g.items[w.ID]
		it.Position = w.Position
		it.UpdatedAt = w.UpdatedAt
		it.UpdatedBy = w.UpdatedBy
		g.items[w.ID] = it
	}
	return nil
}

func (g *memGateway) FindProductByID(ctx context.Context, id string) (ProductRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.products[id]
	if !ok {
		return ProductRecord{}, &NotFoundError{Resource: ResourceProduct, ID: id}
	}
	return p, nil
}

func sectionRecordFrom(p SectionPayload) SectionRecord {
	rec := SectionRecord{
		ID:               p.ID,
		Title:            p.Title,
		LayoutKind:       p.LayoutKind,
		Background:       p.Background,
		VisibleItemCount: p.VisibleItemCount,
		CTALabel:         p.CTALabel,
		CTAHref:          p.CTAHref,
		Position:         p.Position,
		Active:           p.Active,
		Config:           p.Config,
		UpdatedAt:        p.UpdatedAt,
		UpdatedBy:        p.UpdatedBy,
	}
	if p.Subtitle != nil {
		rec.Subtitle = sql.NullString{String: *p.Subtitle, Valid: true}
	}
	if p.LinkedCategoryID != nil {
		rec.LinkedCategoryID = sql.NullString{String: *p.LinkedCategoryID, Valid: true}
	}
	return rec
}

// recordingSink collects activity entries.
type recordingSink struct {
	mu      sync.Mutex
	entries []Activity
}

func (s *recordingSink) Record(a Activity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, a)
}

func (s *recordingSink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Action + " " + e.ResourceType
	}
	return out
}

var errStorageDown = errors.New("storage down")

func fixedClock() func() time.Time {
	t := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func seqIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}
