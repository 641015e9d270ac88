package content

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

// Reordering: the dragged sibling is removed from its position, reinserted at
// the drop target's position, and the whole sibling list is renumbered to
// contiguous ascending integers starting at 1. The optimistic result is
// applied locally and the full ordered id list is persisted in one call. Only
// one reorder per container may be in flight: a second drag on a busy
// container is rejected with ErrReorderInFlight, never interleaved, since a
// stale full-order array would silently undo a concurrent change.
//
// On persistence failure the optimistic state is discarded and the subject's
// tree is reloaded from the backend, so local state never diverges from the
// server for more than one failed round trip. That same path covers a delete
// racing a reorder: a "reorder references a now-deleted id" response is a
// reload signal, not a hard failure.

// MoveSection moves the dragged section to the drop target's position.
func (s *Store) MoveSection(ctx context.Context, dragID, dropID string) error {
	s.mu.Lock()
	subjectID := s.subjectID
	key := "sections:" + subjectID
	if s.pending[key] {
		s.mu.Unlock()
		return ErrReorderInFlight
	}
	epoch := s.epoch

	ids := make([]string, len(s.sections))
	for i := range s.sections {
		ids[i] = s.sections[i].ID
	}
	moved, changed := moveSibling(ids, dragID, dropID)
	if moved == nil {
		s.mu.Unlock()
		return errors.Wrap(ErrUnknownSibling, "reordering sections")
	}
	if !changed {
		s.mu.Unlock()
		return nil // no-op drop
	}

	byID := make(map[string]Section, len(s.sections))
	for _, sec := range s.sections {
		byID[sec.ID] = sec
	}
	reordered := make([]Section, len(moved))
	for i, id := range moved {
		sec := byID[id]
		sec.Order = i + 1
		reordered[i] = sec
	}
	s.sections = reordered
	s.pending[key] = true
	s.mu.Unlock()

	err := s.gw.ReorderSections(ctx, subjectID, moved)
	return s.finishReorder(ctx, key, subjectID, epoch, err)
}

// MoveItem moves the dragged item to the drop target's position within one
// section. Section-level and item-level drags are independent channels; an
// item can never be dropped onto a different section through this mechanism.
func (s *Store) MoveItem(ctx context.Context, sectionID, dragID, dropID string) error {
	s.mu.Lock()
	subjectID := s.subjectID
	idx := sectionIndex(s.sections, sectionID)
	if idx < 0 {
		s.mu.Unlock()
		return errors.Wrap(core.ErrNotFound, "section")
	}
	key := "items:" + sectionID
	if s.pending[key] {
		s.mu.Unlock()
		return ErrReorderInFlight
	}
	epoch := s.epoch

	items := s.sections[idx].Items
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	moved, changed := moveSibling(ids, dragID, dropID)
	if moved == nil {
		s.mu.Unlock()
		return errors.Wrap(ErrUnknownSibling, "reordering items")
	}
	if !changed {
		s.mu.Unlock()
		return nil
	}

	byID := make(map[string]Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	reordered := make([]Item, len(moved))
	for i, id := range moved {
		it := byID[id]
		it.Order = i + 1
		reordered[i] = it
	}
	s.sections[idx].Items = reordered
	s.pending[key] = true
	s.mu.Unlock()

	err := s.gw.ReorderItems(ctx, sectionID, moved)
	return s.finishReorder(ctx, key, subjectID, epoch, err)
}

func (s *Store) finishReorder(ctx context.Context, key, subjectID string, epoch int, err error) error {
	s.mu.Lock()
	delete(s.pending, key)
	stale := s.epoch != epoch
	s.mu.Unlock()

	if stale {
		return ErrSubjectChanged
	}
	if err == nil {
		return nil
	}

	// discard the optimistic order and fall back to the server's
	s.report.Error("could not reorder; restoring server order")
	if lerr := s.Load(ctx, subjectID); lerr != nil && errors.Cause(lerr) != ErrSubjectChanged {
		s.log.Error("authoritative reload after failed reorder", lerr)
	}
	return errors.Wrap(err, "persisting order")
}

// moveSibling returns a new id list with dragID reinserted at dropID's
// position. It returns nil when either id is not present, and changed=false
// when the move leaves the order untouched.
func moveSibling(ids []string, dragID, dropID string) (moved []string, changed bool) {
	src, dst := -1, -1
	for i, id := range ids {
		switch id {
		case dragID:
			src = i
		case dropID:
			dst = i
		}
	}
	if dragID == dropID {
		if src < 0 {
			return nil, false
		}
		return append([]string(nil), ids...), false
	}
	if src < 0 || dst < 0 {
		return nil, false
	}
	if src < dst {
		dst-- // removal below shifts the target left
	}

	moved = make([]string, 0, len(ids))
	moved = append(moved, ids[:src]...)
	moved = append(moved, ids[src+1:]...)
	moved = append(moved, "")
	copy(moved[dst+1:], moved[dst:])
	moved[dst] = dragID

	for i := range moved {
		if moved[i] != ids[i] {
			return moved, true
		}
	}
	return moved, false
}
