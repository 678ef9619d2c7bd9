package audit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/boxbuddy/boxbuddy-core/internal/clock"
)

// mockRepository is an in-memory Repository for testing.
type mockRepository struct {
	entries   []Entry // insertion order
	createErr error
}

func (m *mockRepository) Create(_ context.Context, entry *Entry) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockRepository) List(_ context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	// Newest first.
	var out []Entry
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if filter.Kind != "" && e.Kind != filter.Kind {
			continue
		}
		if filter.DeviceID != "" && e.DeviceID != filter.DeviceID {
			continue
		}
		out = append(out, e)
	}
	total := len(out)
	if filter.Offset < len(out) {
		out = out[filter.Offset:]
	} else {
		out = nil
	}
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	if out == nil {
		out = []Entry{}
	}
	return &ListResult{Entries: out, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

func newTestRecorder() (*Recorder, *mockRepository, *clock.Fake) {
	repo := &mockRepository{}
	fc := clock.NewFake(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	return NewRecorder(repo, fc), repo, fc
}

func TestRecorder_Record(t *testing.T) {
	rec, repo, fc := newTestRecorder()
	ctx := context.Background()

	entry, err := rec.Record(ctx, KindAction, "box-01", "Alex", "Unlocked by Alex")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if !strings.HasPrefix(entry.ID, "aud-") {
		t.Errorf("entry ID = %q, want aud- prefix", entry.ID)
	}
	if !entry.CreatedAt.Equal(fc.Now()) {
		t.Errorf("CreatedAt = %v, want %v", entry.CreatedAt, fc.Now())
	}
	if len(repo.entries) != 1 {
		t.Fatalf("repository has %d entries, want 1", len(repo.entries))
	}
	if repo.entries[0].Text != "Unlocked by Alex" {
		t.Errorf("persisted text = %q", repo.entries[0].Text)
	}
}

func TestRecorder_RecordRejectsUnknownKind(t *testing.T) {
	rec, repo, _ := newTestRecorder()

	_, err := rec.Record(context.Background(), Kind("bogus"), "", "", "nope")
	if err == nil {
		t.Fatal("Record() accepted an unknown kind")
	}
	if len(repo.entries) != 0 {
		t.Error("invalid entry was persisted")
	}
}

func TestRecorder_RecentNewestFirst(t *testing.T) {
	rec, _, fc := newTestRecorder()
	ctx := context.Background()

	texts := []string{"first", "second", "third"}
	for _, txt := range texts {
		if _, err := rec.Record(ctx, KindInfo, "", "", txt); err != nil {
			t.Fatalf("Record(%q) error = %v", txt, err)
		}
		fc.Advance(time.Second)
	}

	recent := rec.Recent(0)
	if len(recent) != 3 {
		t.Fatalf("Recent() returned %d entries, want 3", len(recent))
	}
	if recent[0].Text != "third" || recent[2].Text != "first" {
		t.Errorf("Recent() order = [%s %s %s], want newest first", recent[0].Text, recent[1].Text, recent[2].Text)
	}

	limited := rec.Recent(2)
	if len(limited) != 2 || limited[0].Text != "third" {
		t.Errorf("Recent(2) = %v, want the two newest", limited)
	}
}

func TestRecorder_Load(t *testing.T) {
	repo := &mockRepository{}
	fc := clock.NewFake(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	repo.entries = []Entry{
		{ID: "aud-1", Kind: KindSystem, Text: "Device claimed and online", CreatedAt: fc.Now()},
		{ID: "aud-2", Kind: KindAction, Text: "Locked by Alex", CreatedAt: fc.Now().Add(time.Minute)},
	}

	rec := NewRecorder(repo, fc)
	if err := rec.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	recent := rec.Recent(0)
	if len(recent) != 2 {
		t.Fatalf("Recent() after Load = %d entries, want 2", len(recent))
	}
	if recent[0].ID != "aud-2" {
		t.Errorf("Recent()[0].ID = %q, want aud-2 (newest first)", recent[0].ID)
	}
}

func TestRecorder_ListFilters(t *testing.T) {
	rec, _, _ := newTestRecorder()
	ctx := context.Background()

	if _, err := rec.Record(ctx, KindCode, "box-01", "Alex", "Access code created (AB-12-CD-34) • Expires in 4h"); err != nil {
		t.Fatal(err)
	}
	if _, err := rec.Record(ctx, KindDelivery, "box-02", "", "Delivery completed with code AB-12-CD-34 • Photo saved"); err != nil {
		t.Fatal(err)
	}

	result, err := rec.List(ctx, Filter{Kind: KindDelivery})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 1 || result.Entries[0].DeviceID != "box-02" {
		t.Errorf("List(KindDelivery) = %+v, want single box-02 entry", result)
	}
}

func TestKind_Valid(t *testing.T) {
	for _, k := range []Kind{KindSystem, KindAction, KindCooling, KindCode, KindDelivery, KindInfo} {
		if !k.Valid() {
			t.Errorf("Kind(%q).Valid() = false, want true", k)
		}
	}
	if Kind("other").Valid() {
		t.Error(`Kind("other").Valid() = true, want false`)
	}
}
