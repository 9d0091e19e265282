package homepage

import (
	"context"
	"time"

	"github.com/eringen/printshop/ordering"
)

// PositionWrite is one row of a full position rewrite.
type PositionWrite = ordering.Write[string]

// Gateway is the only path to durable storage. Implementations return
// *NotFoundError for missing rows and *ConflictError for uniqueness
// violations; anything else is treated as a storage failure.
type Gateway interface {
	ListSections(ctx context.Context) ([]SectionRecord, error)
	GetSection(ctx context.Context, id string) (SectionRecord, error)
	// InsertSection places the new section last, whatever p.Position says.
	InsertSection(ctx context.Context, p SectionPayload) (SectionRecord, error)
	// UpdateSection never changes the stored position.
	UpdateSection(ctx context.Context, id string, p SectionPayload) (SectionRecord, error)
	DeleteSection(ctx context.Context, id string) error
	// RewriteSectionPositions must apply every write or none.
	RewriteSectionPositions(ctx context.Context, writes []PositionWrite) error

	ListItems(ctx context.Context, sectionID string) ([]ItemRecord, error)
	GetItem(ctx context.Context, sectionID, itemID string) (ItemRecord, error)
	InsertItem(ctx context.Context, sectionID string, p ItemPayload) (ItemRecord, error)
	UpdateItem(ctx context.Context, sectionID, itemID string, p ItemPayload) (ItemRecord, error)
	DeleteItem(ctx context.Context, sectionID, itemID string) error
	// RewriteItemPositions must apply every write or none and touch only
	// rows of sectionID.
	RewriteItemPositions(ctx context.Context, sectionID string, writes []PositionWrite) error

	FindProductByID(ctx context.Context, id string) (ProductRecord, error)
}

// Activity is one audit entry handed to an ActivitySink.
type Activity struct {
	Action       string    `json:"action"`
	ResourceType string    `json:"resourceType"`
	ResourceID   string    `json:"resourceId"`
	Actor        string    `json:"actor"`
	Before       any       `json:"before,omitempty"`
	After        any       `json:"after,omitempty"`
	At           time.Time `json:"at"`
}

// ActivitySink receives audit entries. Record must not block on I/O and has
// no error result: audit failures never reach the caller.
type ActivitySink interface {
	Record(a Activity)
}

type nopSink struct{}

func (nopSink) Record(Activity) {}
