package content_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/content"
	inmemgw "github.com/trezcool/darasa/storage/inmem"
)

func sectionIDs(secs []content.Section) []string {
	ids := make([]string, len(secs))
	for i := range secs {
		ids[i] = secs[i].ID
	}
	return ids
}

func assertOrder(t *testing.T, secs []content.Section, wantIDs ...string) {
	t.Helper()
	if len(secs) != len(wantIDs) {
		t.Fatalf("got %d sections; want %d", len(secs), len(wantIDs))
	}
	for i, want := range wantIDs {
		if secs[i].ID != want {
			t.Errorf("position %d = %s; want %s", i, secs[i].ID, want)
		}
		if secs[i].Order != i+1 {
			t.Errorf("%s order = %d; want %d", secs[i].ID, secs[i].Order, i+1)
		}
	}
}

func seedSections(t *testing.T, store *content.Store, n int) []content.Section {
	t.Helper()
	if err := store.Load(ctx, "maths"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	titles := []string{"One", "Two", "Three", "Four", "Five"}
	for i := 0; i < n; i++ {
		if _, err := store.CreateSection(ctx, content.NewSection{
			Title:    titles[i],
			Audience: content.AudienceEveryone,
		}); err != nil {
			t.Fatalf("CreateSection() error = %v", err)
		}
	}
	return store.Sections()
}

func TestStoreMoveSection(t *testing.T) {
	store, _ := newTestStore(t)
	secs := seedSections(t, store, 5)

	// dragging the third section onto the first puts it in front
	if err := store.MoveSection(ctx, secs[2].ID, secs[0].ID); err != nil {
		t.Fatalf("MoveSection() error = %v", err)
	}
	assertOrder(t, store.Sections(), secs[2].ID, secs[0].ID, secs[1].ID, secs[3].ID, secs[4].ID)

	// re-issuing the same drop is a no-op
	if err := store.MoveSection(ctx, secs[2].ID, secs[0].ID); err != nil {
		t.Fatalf("MoveSection() repeat error = %v", err)
	}
	assertOrder(t, store.Sections(), secs[2].ID, secs[0].ID, secs[1].ID, secs[3].ID, secs[4].ID)

	// and the order survives a reload
	if err := store.Load(ctx, "maths"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	assertOrder(t, store.Sections(), secs[2].ID, secs[0].ID, secs[1].ID, secs[3].ID, secs[4].ID)
}

func TestStoreMoveSectionUnknownSibling(t *testing.T) {
	store, _ := newTestStore(t)
	secs := seedSections(t, store, 3)

	err := store.MoveSection(ctx, "nope", secs[0].ID)
	if errors.Cause(err) != content.ErrUnknownSibling {
		t.Errorf("MoveSection() error = %v; want %v", err, content.ErrUnknownSibling)
	}
	assertOrder(t, store.Sections(), sectionIDs(secs)...)
}

func TestStoreMoveSectionFailureReloads(t *testing.T) {
	store, gw := newTestStore(t)
	secs := seedSections(t, store, 3)

	gw.FailNext(core.ErrTransport)
	err := store.MoveSection(ctx, secs[2].ID, secs[0].ID)
	if errors.Cause(err) != core.ErrTransport {
		t.Fatalf("MoveSection() error = %v; want %v", err, core.ErrTransport)
	}

	// the optimistic order is gone; the server order is back
	assertOrder(t, store.Sections(), sectionIDs(secs)...)
	if store.Pending("sections:maths") {
		t.Error(`Pending("sections:maths") = true after settled reorder`)
	}
}

func TestStoreMoveItem(t *testing.T) {
	store, _ := newTestStore(t)
	secs, items := seedTree(t, store)

	if err := store.MoveItem(ctx, secs[0].ID, items[2].ID, items[0].ID); err != nil {
		t.Fatalf("MoveItem() error = %v", err)
	}

	got := store.Sections()[0].Items
	want := []string{items[2].ID, items[0].ID, items[1].ID}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d = %s; want %s", i, got[i].ID, id)
		}
		if got[i].Order != i+1 {
			t.Errorf("%s order = %d; want %d", got[i].ID, got[i].Order, i+1)
		}
	}
}

func TestStoreMoveItemForeignSection(t *testing.T) {
	store, _ := newTestStore(t)
	secs, items := seedTree(t, store)

	// items can only move within their own section
	err := store.MoveItem(ctx, secs[1].ID, items[0].ID, items[1].ID)
	if errors.Cause(err) != content.ErrUnknownSibling {
		t.Errorf("MoveItem() error = %v; want %v", err, content.ErrUnknownSibling)
	}
}

// blockingGateway parks reorder calls until released, to hold a reorder in
// flight from a test.
type blockingGateway struct {
	*inmemgw.Gateway
	entered chan struct{}
	release chan struct{}
}

func (gw *blockingGateway) ReorderSections(ctx context.Context, subjectID string, orderedIDs []string) error {
	gw.entered <- struct{}{}
	<-gw.release
	return gw.Gateway.ReorderSections(ctx, subjectID, orderedIDs)
}

func TestStoreMoveSectionRejectsConcurrent(t *testing.T) {
	gw := &blockingGateway{
		Gateway: inmemgw.New(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	store := content.NewStore(gw, newTestValidate(), core.NopLogger{}, nil)
	secs := seedSections(t, store, 3)

	done := make(chan error, 1)
	go func() {
		done <- store.MoveSection(ctx, secs[2].ID, secs[0].ID)
	}()
	<-gw.entered

	// a second drag on the busy container is rejected, not queued
	if err := store.MoveSection(ctx, secs[1].ID, secs[0].ID); errors.Cause(err) != content.ErrReorderInFlight {
		t.Errorf("MoveSection() error = %v; want %v", err, content.ErrReorderInFlight)
	}
	if !store.Pending("sections:maths") {
		t.Error(`Pending("sections:maths") = false while reorder in flight`)
	}

	close(gw.release)
	if err := <-done; err != nil {
		t.Fatalf("MoveSection() error = %v", err)
	}
	assertOrder(t, store.Sections(), secs[2].ID, secs[0].ID, secs[1].ID)
}

func TestDragStateMachine(t *testing.T) {
	store, _ := newTestStore(t)
	secs := seedSections(t, store, 3)

	drag := content.NewSectionDrag(store)
	if drag.Phase() != content.DragIdle {
		t.Fatalf("Phase() = %v; want idle", drag.Phase())
	}

	// hover and drop are only legal mid-drag
	if err := drag.Hover(secs[0].ID); err == nil {
		t.Error("Hover() from idle succeeded; want error")
	}
	if err := drag.Drop(ctx); err == nil {
		t.Error("Drop() from idle succeeded; want error")
	}

	if err := drag.Begin(secs[2].ID); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := drag.Begin(secs[1].ID); err == nil {
		t.Error("second Begin() succeeded; want error")
	}
	if err := drag.Hover(secs[1].ID); err != nil {
		t.Fatalf("Hover() error = %v", err)
	}
	if err := drag.Leave(); err != nil {
		t.Fatalf("Leave() error = %v", err)
	}
	if err := drag.Drop(ctx); err == nil {
		t.Error("Drop() without a target succeeded; want error")
	}
	if err := drag.Hover(secs[0].ID); err != nil {
		t.Fatalf("Hover() error = %v", err)
	}

	if err := drag.Drop(ctx); err != nil {
		t.Fatalf("Drop() error = %v", err)
	}
	if drag.Phase() != content.DragIdle {
		t.Errorf("Phase() = %v after drop; want idle", drag.Phase())
	}
	assertOrder(t, store.Sections(), secs[2].ID, secs[0].ID, secs[1].ID)
}

func TestDragCancel(t *testing.T) {
	store, _ := newTestStore(t)
	secs := seedSections(t, store, 3)

	drag := content.NewSectionDrag(store)
	if err := drag.Begin(secs[2].ID); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := drag.Hover(secs[0].ID); err != nil {
		t.Fatalf("Hover() error = %v", err)
	}
	drag.Cancel()

	if drag.Phase() != content.DragIdle {
		t.Errorf("Phase() = %v after cancel; want idle", drag.Phase())
	}
	assertOrder(t, store.Sections(), sectionIDs(secs)...)
}

func TestDragDropHoldsCommitting(t *testing.T) {
	gw := &blockingGateway{
		Gateway: inmemgw.New(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	store := content.NewStore(gw, newTestValidate(), core.NopLogger{}, nil)
	secs := seedSections(t, store, 3)

	drag := content.NewSectionDrag(store)
	if err := drag.Begin(secs[2].ID); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := drag.Hover(secs[0].ID); err != nil {
		t.Fatalf("Hover() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- drag.Drop(ctx) }()
	<-gw.entered

	// the drop is still in flight; no new drag may start on this tracker
	if drag.Phase() != content.DragCommitting {
		t.Errorf("Phase() = %v mid-drop; want committing", drag.Phase())
	}
	if err := drag.Begin(secs[1].ID); err == nil {
		t.Error("Begin() during commit succeeded; want error")
	}

	close(gw.release)
	if err := <-done; err != nil {
		t.Fatalf("Drop() error = %v", err)
	}
	if drag.Phase() != content.DragIdle {
		t.Errorf("Phase() = %v after drop; want idle", drag.Phase())
	}
	assertOrder(t, store.Sections(), secs[2].ID, secs[0].ID, secs[1].ID)
}
