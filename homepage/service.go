package homepage

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/eringen/printshop/ordering"
	"github.com/eringen/printshop/sanitize"
)

// Resource names used in errors and activity entries.
const (
	ResourceSection = "homepage_section"
	ResourceItem    = "homepage_item"
	ResourceProduct = "product"
)

// Service runs homepage operations against a Gateway. Every mutating call
// checks the editor capability once, validates and sanitizes input, computes
// the new order with the ordering engine and writes a full position rewrite.
type Service struct {
	gw     Gateway
	auth   Authorizer
	sink   ActivitySink
	logger echo.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures a Service.
type Option func(*Service)

// WithAuthorizer sets the capability check (default ContextAuthorizer).
func WithAuthorizer(a Authorizer) Option {
	return func(s *Service) { s.auth = a }
}

// WithActivitySink sets where audit entries go (default: discarded).
func WithActivitySink(sink ActivitySink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithLogger sets the service logger.
func WithLogger(l echo.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides item id generation (default UUID v4).
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// NewService creates a Service over gw.
func NewService(gw Gateway, opts ...Option) *Service {
	s := &Service{
		gw:     gw,
		auth:   ContextAuthorizer{},
		sink:   nopSink{},
		logger: log.New("homepage"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListSections returns every section, normalized and sorted by position.
// The result is never nil.
func (s *Service) ListSections(ctx context.Context) ([]Section, error) {
	recs, err := s.gw.ListSections(ctx)
	if err != nil {
		return nil, s.gatewayErr("list sections", err)
	}
	sections := make([]Section, 0, len(recs))
	for _, rec := range recs {
		sections = append(sections, MapSection(rec))
	}
	SortSections(sections)
	return sections, nil
}

// ListActiveSections returns the sections shown on the public homepage.
func (s *Service) ListActiveSections(ctx context.Context) ([]Section, error) {
	sections, err := s.ListSections(ctx)
	if err != nil {
		return nil, err
	}
	return ActiveSections(sections), nil
}

// ActiveSections filters sections down to the ones shown publicly.
func ActiveSections(sections []Section) []Section {
	out := make([]Section, 0, len(sections))
	for _, sec := range sections {
		if sec.Active {
			out = append(out, sec)
		}
	}
	return out
}

// GetSection returns one section with its items.
func (s *Service) GetSection(ctx context.Context, id string) (Section, error) {
	rec, err := s.gw.GetSection(ctx, id)
	if err != nil {
		return Section{}, s.gatewayErr("get section", err)
	}
	return MapSection(rec), nil
}

// CreateSection adds a section at the trailing position.
func (s *Service) CreateSection(ctx context.Context, in SectionInput) (Section, error) {
	actor, err := s.auth.RequireEditor(ctx)
	if err != nil {
		return Section{}, err
	}
	in.normalize()
	if err := validateStruct(in); err != nil {
		return Section{}, err
	}
	id := sanitize.SectionID(in.ID, in.Title)
	if err := checkSectionID(id); err != nil {
		return Section{}, err
	}

	recs, err := s.gw.ListSections(ctx)
	if err != nil {
		return Section{}, s.gatewayErr("list sections", err)
	}
	for _, rec := range recs {
		if rec.ID == id {
			return Section{}, &ConflictError{Resource: ResourceSection, ID: id, Reason: ReasonDuplicateID}
		}
	}

	now := s.now()
	sec := Section{
		ID:               id,
		Position:         len(recs) + 1,
		Active:           in.Active == nil || *in.Active,
		CreatedAt:        now,
		UpdatedAt:        now,
		UpdatedBy:        actor,
		VisibleItemCount: VisibleItemCount,
	}
	applyInput(&sec, in)

	rec, err := s.gw.InsertSection(ctx, ToSectionPayload(sec))
	if err != nil {
		return Section{}, s.gatewayErr("insert section", err)
	}
	created := MapSection(rec)
	s.record("create", ResourceSection, id, actor, nil, created)
	return created, nil
}

// UpdateSection edits a section in place. Its id and position do not change.
func (s *Service) UpdateSection(ctx context.Context, id string, in SectionInput) (Section, error) {
	actor, err := s.auth.RequireEditor(ctx)
	if err != nil {
		return Section{}, err
	}
	in.normalize()
	if err := validateStruct(in); err != nil {
		return Section{}, err
	}
	rec, err := s.gw.GetSection(ctx, id)
	if err != nil {
		return Section{}, s.gatewayErr("get section", err)
	}
	before := MapSection(rec)

	sec := before.Clone()
	applyInput(&sec, in)
	if in.Active != nil {
		sec.Active = *in.Active
	}
	sec.UpdatedAt = s.now()
	sec.UpdatedBy = actor

	rec, err = s.gw.UpdateSection(ctx, id, ToSectionPayload(sec))
	if err != nil {
		return Section{}, s.gatewayErr("update section", err)
	}
	after := MapSection(rec)
	s.record("update", ResourceSection, id, actor, before, after)
	return after, nil
}

// DeleteSection removes a section and closes the gap it leaves.
func (s *Service) DeleteSection(ctx context.Context, id string) error {
	actor, err := s.auth.RequireEditor(ctx)
	if err != nil {
		return err
	}
	sections, err := s.ListSections(ctx)
	if err != nil {
		return err
	}
	order := SectionIDs(sections)
	idx := slices.Index(order, id)
	if idx < 0 {
		return &NotFoundError{Resource: ResourceSection, ID: id}
	}
	if err := s.gw.DeleteSection(ctx, id); err != nil {
		return s.gatewayErr("delete section", err)
	}
	writes := ordering.PersistOrder(ordering.Remove(order, id), s.now(), actor)
	if err := s.gw.RewriteSectionPositions(ctx, writes); err != nil {
		return s.gatewayErr("rewrite section positions", err)
	}
	s.record("delete", ResourceSection, id, actor, sections[idx], nil)
	return nil
}

// MoveSection moves one section to a 1-based position.
func (s *Service) MoveSection(ctx context.Context, id string, targetPosition int) ([]Section, error) {
	return s.ReorderSections(ctx, []ordering.Move[string]{{ID: id, TargetPosition: targetPosition}})
}

// ReorderSections applies moves and rewrites every section position. It
// returns the resulting list.
func (s *Service) ReorderSections(ctx context.Context, moves []ordering.Move[string]) ([]Section, error) {
	actor, err := s.auth.RequireEditor(ctx)
	if err != nil {
		return nil, err
	}
	sections, err := s.ListSections(ctx)
	if err != nil {
		return nil, err
	}
	before := SectionIDs(sections)
	after, err := ordering.Reorder(before, moves)
	if err != nil {
		return nil, movesError(err)
	}
	writes := ordering.PersistOrder(after, s.now(), actor)
	if err := s.gw.RewriteSectionPositions(ctx, writes); err != nil {
		return nil, s.gatewayErr("rewrite section positions", err)
	}
	s.record("reorder", ResourceSection, "*", actor, before, after)
	return s.ListSections(ctx)
}

// ListItems returns a section's items in position order.
func (s *Service) ListItems(ctx context.Context, sectionID string) ([]Item, error) {
	if _, err := s.gw.GetSection(ctx, sectionID); err != nil {
		return nil, s.gatewayErr("get section", err)
	}
	return s.items(ctx, sectionID)
}

// AddItem links a product into a section. A product may appear only once
// per section; a repeat yields a *ConflictError naming the existing item and
// leaves the order untouched.
func (s *Service) AddItem(ctx context.Context, sectionID string, in ItemInput) (Item, error) {
	actor, err := s.auth.RequireEditor(ctx)
	if err != nil {
		return Item{}, err
	}
	in.ProductID = strings.TrimSpace(in.ProductID)
	if err := validateStruct(in); err != nil {
		return Item{}, err
	}
	if _, err := s.gw.GetSection(ctx, sectionID); err != nil {
		return Item{}, s.gatewayErr("get section", err)
	}
	items, err := s.items(ctx, sectionID)
	if err != nil {
		return Item{}, err
	}
	for _, it := range items {
		if it.ProductID == in.ProductID {
			return Item{}, &ConflictError{Resource: ResourceItem, ID: it.ID, Reason: ReasonDuplicateProduct}
		}
	}
	prod, err := s.gw.FindProductByID(ctx, in.ProductID)
	if err != nil {
		return Item{}, s.gatewayErr("find product", err)
	}
	if err := checkLinkable(prod); err != nil {
		return Item{}, err
	}

	now := s.now()
	item := Item{
		ID:        s.newID(),
		SectionID: sectionID,
		ProductID: in.ProductID,
		Position:  len(items) + 1,
		Metadata:  Attrs(sanitize.ConfigMap(in.Metadata, sanitize.AllowedKeys)),
		UpdatedAt: now,
		UpdatedBy: actor,
	}
	if _, err := s.gw.InsertItem(ctx, sectionID, ToItemPayload(item)); err != nil {
		return Item{}, s.gatewayErr("insert item", err)
	}

	order := ItemIDs(items)
	if in.Position != nil {
		order = ordering.InsertAt(order, item.ID, *in.Position-1)
	} else {
		order = ordering.Append(order, item.ID)
	}
	if err := s.gw.RewriteItemPositions(ctx, sectionID, ordering.PersistOrder(order, now, actor)); err != nil {
		return Item{}, s.gatewayErr("rewrite item positions", err)
	}

	rec, err := s.gw.GetItem(ctx, sectionID, item.ID)
	if err != nil {
		return Item{}, s.gatewayErr("get item", err)
	}
	created := MapItem(rec)
	s.record("create", ResourceItem, created.ID, actor, nil, created)
	return created, nil
}

// UpdateItem replaces an item's metadata. Position is unchanged.
func (s *Service) UpdateItem(ctx context.Context, sectionID, itemID string, in ItemUpdate) (Item, error) {
	actor, err := s.auth.RequireEditor(ctx)
	if err != nil {
		return Item{}, err
	}
	rec, err := s.gw.GetItem(ctx, sectionID, itemID)
	if err != nil {
		return Item{}, s.gatewayErr("get item", err)
	}
	before := MapItem(rec)
	it := before.Clone()
	it.Metadata = Attrs(sanitize.ConfigMap(in.Metadata, sanitize.AllowedKeys))
	it.UpdatedAt = s.now()
	it.UpdatedBy = actor

	rec, err = s.gw.UpdateItem(ctx, sectionID, itemID, ToItemPayload(it))
	if err != nil {
		return Item{}, s.gatewayErr("update item", err)
	}
	after := MapItem(rec)
	s.record("update", ResourceItem, itemID, actor, before, after)
	return after, nil
}

// RemoveItem unlinks an item and closes the gap within its section only.
func (s *Service) RemoveItem(ctx context.Context, sectionID, itemID string) error {
	actor, err := s.auth.RequireEditor(ctx)
	if err != nil {
		return err
	}
	items, err := s.items(ctx, sectionID)
	if err != nil {
		return err
	}
	order := ItemIDs(items)
	idx := slices.Index(order, itemID)
	if idx < 0 {
		return &NotFoundError{Resource: ResourceItem, ID: itemID}
	}
	if err := s.gw.DeleteItem(ctx, sectionID, itemID); err != nil {
		return s.gatewayErr("delete item", err)
	}
	writes := ordering.PersistOrder(ordering.Remove(order, itemID), s.now(), actor)
	if err := s.gw.RewriteItemPositions(ctx, sectionID, writes); err != nil {
		return s.gatewayErr("rewrite item positions", err)
	}
	s.record("delete", ResourceItem, itemID, actor, items[idx], nil)
	return nil
}

// MoveItem moves one item to a 1-based position inside its section.
func (s *Service) MoveItem(ctx context.Context, sectionID, itemID string, targetPosition int) ([]Item, error) {
	return s.ReorderItems(ctx, sectionID, []ordering.Move[string]{{ID: itemID, TargetPosition: targetPosition}})
}

// ReorderItems applies moves to one section's items. Other sections are
// never touched.
func (s *Service) ReorderItems(ctx context.Context, sectionID string, moves []ordering.Move[string]) ([]Item, error) {
	actor, err := s.auth.RequireEditor(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.gw.GetSection(ctx, sectionID); err != nil {
		return nil, s.gatewayErr("get section", err)
	}
	items, err := s.items(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	before := ItemIDs(items)
	after, err := ordering.Reorder(before, moves)
	if err != nil {
		return nil, movesError(err)
	}
	writes := ordering.PersistOrder(after, s.now(), actor)
	if err := s.gw.RewriteItemPositions(ctx, sectionID, writes); err != nil {
		return nil, s.gatewayErr("rewrite item positions", err)
	}
	s.record("reorder", ResourceItem, sectionID, actor, before, after)
	return s.items(ctx, sectionID)
}

func (s *Service) items(ctx context.Context, sectionID string) ([]Item, error) {
	recs, err := s.gw.ListItems(ctx, sectionID)
	if err != nil {
		return nil, s.gatewayErr("list items", err)
	}
	items := make([]Item, 0, len(recs))
	for _, rec := range recs {
		items = append(items, MapItem(rec))
	}
	SortItems(items)
	return items, nil
}

func applyInput(sec *Section, in SectionInput) {
	sec.Title = in.Title
	sec.Subtitle = cloneString(in.Subtitle)
	sec.LayoutKind = in.LayoutKind
	sec.Background = in.Background
	sec.CTALabel = in.CTALabel
	sec.CTAHref = sanitize.Href(in.CTAHref)
	sec.LinkedCategoryID = cloneString(in.LinkedCategoryID)
	sec.Config = Attrs(sanitize.ConfigMap(in.Config, sanitize.AllowedKeys))
}

func (s *Service) record(action, resourceType, resourceID, actor string, before, after any) {
	s.sink.Record(Activity{
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Actor:        actor,
		Before:       before,
		After:        after,
		At:           s.now(),
	})
}

// gatewayErr passes NotFound and Conflict through and wraps anything else
// in a *GatewayError.
func (s *Service) gatewayErr(op string, err error) error {
	if IsNotFound(err) || IsConflict(err) {
		return err
	}
	s.logger.Errorf("homepage: %s: %v", op, err)
	return &GatewayError{Op: op, Err: err}
}

func movesError(err error) error {
	if errors.Is(err, ordering.ErrUnknownID) {
		return NewValidationError(FieldProblem{Field: "moves", Message: err.Error()})
	}
	return err
}
