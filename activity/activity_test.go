package activity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/printshop/homepage"
)

func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "activity.db")

	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return s, func() { s.Close() }
}

func TestNewStoreSchemaVersion(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	v, err := s.GetSetting("schema_version")
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if v != "1" {
		t.Errorf("schema_version = %q, want 1", v)
	}
	missing, err := s.GetSetting("nope")
	if err != nil || missing != "" {
		t.Errorf("GetSetting(nope) = %q, %v", missing, err)
	}
}

func TestSaveAndRecent(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Minute)
	entries := []homepage.Activity{
		{Action: "create", ResourceType: homepage.ResourceSection, ResourceID: "banners", Actor: "admin",
			After: homepage.Section{ID: "banners", Title: "Banners"}, At: base},
		{Action: "create", ResourceType: homepage.ResourceItem, ResourceID: "i1", Actor: "admin", At: base.Add(time.Second)},
		{Action: "reorder", ResourceType: homepage.ResourceSection, ResourceID: "*", Actor: "admin",
			Before: []string{"a", "b"}, After: []string{"b", "a"}, At: base.Add(2 * time.Second)},
	}
	for _, a := range entries {
		if err := s.Save(ctx, a); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	all, err := s.Recent(ctx, "", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	if all[0].Action != "reorder" {
		t.Errorf("newest entry = %q, want reorder", all[0].Action)
	}
	if string(all[0].After) != `["b","a"]` {
		t.Errorf("After = %s", all[0].After)
	}
	if all[1].Before != nil || all[1].After != nil {
		t.Errorf("empty sides stored: %s / %s", all[1].Before, all[1].After)
	}
	if !all[2].At.Equal(base) {
		t.Errorf("At = %v, want %v", all[2].At, base)
	}

	sections, err := s.Recent(ctx, homepage.ResourceSection, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(sections) != 2 {
		t.Errorf("expected 2 section entries, got %d", len(sections))
	}

	limited, _ := s.Recent(ctx, "", 1)
	if len(limited) != 1 {
		t.Errorf("limit ignored: got %d", len(limited))
	}
}

func TestCleanupOld(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	old := homepage.Activity{Action: "delete", ResourceType: homepage.ResourceSection, ResourceID: "x1", Actor: "a",
		At: time.Now().AddDate(0, 0, -40)}
	fresh := homepage.Activity{Action: "create", ResourceType: homepage.ResourceSection, ResourceID: "y1", Actor: "a",
		At: time.Now()}
	for _, a := range []homepage.Activity{old, fresh} {
		if err := s.Save(ctx, a); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	if err := s.CleanupOld(30); err != nil {
		t.Fatalf("CleanupOld failed: %v", err)
	}
	got, _ := s.Recent(ctx, "", 10)
	if len(got) != 1 || got[0].ResourceID != "y1" {
		t.Errorf("after cleanup = %+v", got)
	}
}

func TestCleanupSchedulerStops(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	stop := s.StartCleanupScheduler(30, 10*time.Millisecond, echo.New().Logger)
	time.Sleep(30 * time.Millisecond)
	stop()
}

func TestRecorderPersists(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	r := NewRecorder(s, echo.New().Logger, 0)
	for _, id := range []string{"a", "b", "c"} {
		r.Record(homepage.Activity{Action: "create", ResourceType: homepage.ResourceSection, ResourceID: id, Actor: "admin"})
	}
	r.Close()

	got, err := s.Recent(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("expected 3 entries, got %d", len(got))
	}

	// after Close, Record is a no-op
	r.Record(homepage.Activity{Action: "create"})
	r.Close()
}

func TestRecorderSurvivesClosedStore(t *testing.T) {
	s, cleanup := setupTestStore(t)
	cleanup()

	r := NewRecorder(s, echo.New().Logger, 4)
	r.Record(homepage.Activity{Action: "create", ResourceType: homepage.ResourceSection, ResourceID: "a", Actor: "admin"})
	r.Close()
}

type blockingSaver struct {
	release chan struct{}
}

func (b blockingSaver) Save(ctx context.Context, a homepage.Activity) error {
	<-b.release
	return nil
}

func TestRecorderNeverBlocks(t *testing.T) {
	saver := blockingSaver{release: make(chan struct{})}
	r := NewRecorder(saver, echo.New().Logger, 1)

	done := make(chan struct{})
	go func() {
		for range 10 {
			r.Record(homepage.Activity{Action: "create"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full queue")
	}
	close(saver.release)
	r.Close()
}

func TestListHandler(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	if err := s.Save(context.Background(), homepage.Activity{
		Action: "update", ResourceType: homepage.ResourceItem, ResourceID: "i1", Actor: "admin",
	}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	e := echo.New()
	h := NewHandler(s)
	h.RegisterRoutes(e.Group("/admin"))

	req := httptest.NewRequest(http.MethodGet, "/admin/api/activity?limit=9999", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp ListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Limit != maxListLimit {
		t.Errorf("limit = %d, want %d", resp.Limit, maxListLimit)
	}
	if len(resp.Entries) != 1 || resp.Entries[0].ResourceID != "i1" {
		t.Errorf("entries = %+v", resp.Entries)
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", defaultListLimit},
		{"abc", defaultListLimit},
		{"-3", defaultListLimit},
		{"20", 20},
		{"100000", maxListLimit},
	}
	for _, tt := range tests {
		if got := parseLimit(tt.raw); got != tt.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}
