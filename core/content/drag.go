package content

import (
	"context"

	"github.com/pkg/errors"
)

// Drag phases. Drag-and-drop is a small state machine driven by discrete
// events (idle -> dragging -> hovering -> committing -> idle), independent of
// any input-device API.
type DragPhase int

const (
	DragIdle DragPhase = iota
	DragDragging
	DragHovering
	DragCommitting
)

var errBadDragEvent = errors.New("drag event not allowed in current phase")

// Drag tracks one drag interaction over one container: either the subject's
// sections (sectionID empty) or the items of one section. Drags never cross
// containers.
type Drag struct {
	store     *Store
	sectionID string

	phase  DragPhase
	source string
	target string
}

// NewSectionDrag starts tracking section-level drags.
func NewSectionDrag(store *Store) *Drag {
	return &Drag{store: store}
}

// NewItemDrag starts tracking item-level drags within one section.
func NewItemDrag(store *Store, sectionID string) *Drag {
	return &Drag{store: store, sectionID: sectionID}
}

func (d *Drag) Phase() DragPhase { return d.phase }

// Begin picks up the sibling with the given id.
func (d *Drag) Begin(sourceID string) error {
	if d.phase != DragIdle {
		return errors.Wrap(errBadDragEvent, "begin")
	}
	d.phase = DragDragging
	d.source = sourceID
	return nil
}

// Hover marks targetID as the current drop target.
func (d *Drag) Hover(targetID string) error {
	if d.phase != DragDragging && d.phase != DragHovering {
		return errors.Wrap(errBadDragEvent, "hover")
	}
	d.phase = DragHovering
	d.target = targetID
	return nil
}

// Leave clears the current drop target.
func (d *Drag) Leave() error {
	if d.phase != DragHovering {
		return errors.Wrap(errBadDragEvent, "leave")
	}
	d.phase = DragDragging
	d.target = ""
	return nil
}

// Drop commits the move and returns the drag to idle regardless of outcome.
// The drag stays in DragCommitting until the move settles, so a new Begin is
// rejected while the previous drop is still in flight.
func (d *Drag) Drop(ctx context.Context) error {
	if d.phase != DragHovering {
		return errors.Wrap(errBadDragEvent, "drop")
	}
	d.phase = DragCommitting
	defer d.reset()

	if d.sectionID == "" {
		return d.store.MoveSection(ctx, d.source, d.target)
	}
	return d.store.MoveItem(ctx, d.sectionID, d.source, d.target)
}

// Cancel abandons the drag without committing.
func (d *Drag) Cancel() {
	d.reset()
}

func (d *Drag) reset() {
	d.phase = DragIdle
	d.source = ""
	d.target = ""
}
