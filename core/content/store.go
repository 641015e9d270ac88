package content

import (
	"context"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

type (
	// Gateway is the persistence boundary of the content tree: pure
	// request/response translation against the backend endpoints. Every call
	// either resolves with its typed payload or fails with one of the core
	// sentinels / core.ValidationError; nothing is retried here.
	Gateway interface {
		GetTree(ctx context.Context, subjectID string) (Tree, error)
		CreateSection(ctx context.Context, subjectID string, ns NewSection) (Section, error)
		UpdateSection(ctx context.Context, id string, us UpdateSection) (Section, error)
		DeleteSection(ctx context.Context, id string) error
		ReorderSections(ctx context.Context, subjectID string, orderedIDs []string) error
		CreateItem(ctx context.Context, sectionID string, ni NewItem) (Item, error)
		UpdateItem(ctx context.Context, id string, ui UpdateItem) (Item, error)
		DeleteItem(ctx context.Context, id string) error
		ReorderItems(ctx context.Context, sectionID string, orderedIDs []string) error
		GetItem(ctx context.Context, id string) (item Item, canEdit bool, err error)
	}

	// Store owns the section/item tree of the currently loaded subject.
	// Mutations are applied to local state first and reconciled with the
	// backend through the Gateway; on failure the local effect is rolled back
	// and the outcome reported. The mutex is never held across a gateway call.
	Store struct {
		gw       Gateway
		validate *validator.Validate
		log      core.Logger
		report   core.Reporter

		mu        sync.Mutex
		subjectID string
		epoch     int // bumped on every Load; stale completions are dropped
		sections  []Section
		pending   map[string]bool // in-flight flag per entity/container
	}
)

func NewStore(gw Gateway, validate *validator.Validate, logger core.Logger, reporter core.Reporter) *Store {
	if reporter == nil {
		reporter = core.NopReporter{}
	}
	return &Store{
		gw:       gw,
		validate: validate,
		log:      logger,
		report:   reporter,
		pending:  make(map[string]bool),
	}
}

// Load fetches the full tree of subjectID, replacing any previously loaded
// subject. A backend NotFound degrades to an empty tree.
func (s *Store) Load(ctx context.Context, subjectID string) error {
	s.mu.Lock()
	s.subjectID = subjectID
	s.epoch++
	epoch := s.epoch
	s.sections = nil
	s.mu.Unlock()

	tree, err := s.gw.GetTree(ctx, subjectID)
	if err != nil {
		if errors.Cause(err) == core.ErrNotFound {
			tree = Tree{SubjectID: subjectID} // no tree yet; present an empty one
		} else {
			s.report.Error("could not load subject content")
			return errors.Wrap(err, "loading tree")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return ErrSubjectChanged
	}
	sortTree(tree.Sections)
	s.sections = tree.Sections
	return nil
}

func (s *Store) SubjectID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subjectID
}

// Sections returns a copy of the full loaded tree in order.
func (s *Store) Sections() []Section {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySections(s.sections)
}

// Pending reports whether a mutation is in flight for the given entity or
// container id; conflicting controls should be disabled while it is.
func (s *Store) Pending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[id]
}

// VisibleFor returns the sections (and, within them, items) whose effective
// audience includes the given role. An item's effective visibility is the
// intersection of its own audience and its parent section's. Sections with no
// visible items but a matching own audience are still returned.
func (s *Store) VisibleFor(role string) []Section {
	s.mu.Lock()
	defer s.mu.Unlock()

	visible := make([]Section, 0, len(s.sections))
	for _, sec := range s.sections {
		if !sec.Audience.Includes(role) {
			continue
		}
		cp := sec
		cp.Items = make([]Item, 0, len(sec.Items))
		for _, it := range sec.Items {
			if it.Audience.Includes(role) {
				cp.Items = append(cp.Items, it)
			}
		}
		visible = append(visible, cp)
	}
	return visible
}

// CreateSection appends a new section at the end of the subject's order.
func (s *Store) CreateSection(ctx context.Context, ns NewSection) (Section, error) {
	if err := ns.Validate(s.validate); err != nil {
		return Section{}, err
	}

	s.mu.Lock()
	epoch := s.epoch
	subjectID := s.subjectID
	ns.Order = maxSectionOrder(s.sections) + 1
	s.mu.Unlock()

	sec, err := s.gw.CreateSection(ctx, subjectID, ns)
	if err != nil {
		s.report.Error("could not create section")
		return Section{}, errors.Wrap(err, "creating section")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return Section{}, ErrSubjectChanged
	}
	if sec.Items == nil {
		sec.Items = []Item{}
	}
	s.sections = append(s.sections, sec)
	sortTree(s.sections)
	s.report.Success("section created")
	return sec, nil
}

// UpdateSection applies the patch locally, then persists it; on backend
// failure the local effect is rolled back.
func (s *Store) UpdateSection(ctx context.Context, id string, us UpdateSection) error {
	if err := us.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	idx := sectionIndex(s.sections, id)
	if idx < 0 {
		s.mu.Unlock()
		return errors.Wrap(core.ErrNotFound, "section")
	}
	epoch := s.epoch
	snapshot := copySections(s.sections)
	us.ApplyTo(&s.sections[idx])
	s.pending[id] = true
	s.mu.Unlock()

	_, err := s.gw.UpdateSection(ctx, id, us)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
	if s.epoch != epoch {
		return ErrSubjectChanged
	}
	if err != nil {
		s.sections = snapshot
		s.report.Error("could not save section")
		return errors.Wrap(err, "updating section")
	}
	s.report.Success("section saved")
	return nil
}

// DeleteSection removes the section and, transitively, all its items. The
// backend cascades server-side deletion; the store does not re-verify.
func (s *Store) DeleteSection(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := sectionIndex(s.sections, id)
	if idx < 0 {
		s.mu.Unlock()
		return errors.Wrap(core.ErrNotFound, "section")
	}
	epoch := s.epoch
	snapshot := copySections(s.sections)
	s.sections = append(s.sections[:idx], s.sections[idx+1:]...)
	renumberSections(s.sections)
	s.pending[id] = true
	s.mu.Unlock()

	err := s.gw.DeleteSection(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
	if s.epoch != epoch {
		return ErrSubjectChanged
	}
	if err != nil {
		s.sections = snapshot
		s.report.Error("could not delete section")
		return errors.Wrap(err, "deleting section")
	}
	s.report.Success("section deleted")
	return nil
}

// CreateItem appends a new item at the end of the parent section's order.
func (s *Store) CreateItem(ctx context.Context, sectionID string, ni NewItem) (Item, error) {
	if err := ni.Validate(s.validate); err != nil {
		return Item{}, err
	}

	s.mu.Lock()
	idx := sectionIndex(s.sections, sectionID)
	if idx < 0 {
		s.mu.Unlock()
		return Item{}, errors.Wrap(core.ErrNotFound, "section")
	}
	epoch := s.epoch
	ni.Order = maxItemOrder(s.sections[idx].Items) + 1
	s.mu.Unlock()

	it, err := s.gw.CreateItem(ctx, sectionID, ni)
	if err != nil {
		s.report.Error("could not create entry")
		return Item{}, errors.Wrap(err, "creating item")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return Item{}, ErrSubjectChanged
	}
	if idx = sectionIndex(s.sections, sectionID); idx >= 0 {
		s.sections[idx].Items = append(s.sections[idx].Items, it)
		sortTree(s.sections)
	}
	s.report.Success("entry created")
	return it, nil
}

// UpdateItem applies the patch locally, then persists it; on backend failure
// the local effect is rolled back. A kind change drops disallowed fields.
func (s *Store) UpdateItem(ctx context.Context, id string, ui UpdateItem) error {
	s.mu.Lock()
	secIdx, itIdx := itemIndex(s.sections, id)
	if secIdx < 0 {
		s.mu.Unlock()
		return errors.Wrap(core.ErrNotFound, "item")
	}
	orig := s.sections[secIdx].Items[itIdx]
	s.mu.Unlock()

	if err := ui.Validate(orig); err != nil {
		return err
	}

	s.mu.Lock()
	secIdx, itIdx = itemIndex(s.sections, id)
	if secIdx < 0 {
		s.mu.Unlock()
		return errors.Wrap(core.ErrNotFound, "item")
	}
	epoch := s.epoch
	snapshot := copySections(s.sections)
	ui.ApplyTo(&s.sections[secIdx].Items[itIdx])
	s.pending[id] = true
	s.mu.Unlock()

	_, err := s.gw.UpdateItem(ctx, id, ui)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
	if s.epoch != epoch {
		return ErrSubjectChanged
	}
	if err != nil {
		s.sections = snapshot
		s.report.Error("could not save entry")
		return errors.Wrap(err, "updating item")
	}
	s.report.Success("entry saved")
	return nil
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	s.mu.Lock()
	secIdx, itIdx := itemIndex(s.sections, id)
	if secIdx < 0 {
		s.mu.Unlock()
		return errors.Wrap(core.ErrNotFound, "item")
	}
	epoch := s.epoch
	snapshot := copySections(s.sections)
	items := s.sections[secIdx].Items
	s.sections[secIdx].Items = append(items[:itIdx], items[itIdx+1:]...)
	renumberItems(s.sections[secIdx].Items)
	s.pending[id] = true
	s.mu.Unlock()

	err := s.gw.DeleteItem(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
	if s.epoch != epoch {
		return ErrSubjectChanged
	}
	if err != nil {
		s.sections = snapshot
		s.report.Error("could not delete entry")
		return errors.Wrap(err, "deleting item")
	}
	s.report.Success("entry deleted")
	return nil
}

// GetItem fetches a single item with the viewer's edit capability.
func (s *Store) GetItem(ctx context.Context, id string) (Item, bool, error) {
	it, canEdit, err := s.gw.GetItem(ctx, id)
	if err != nil {
		return Item{}, false, errors.Wrap(err, "getting item")
	}
	return it, canEdit, nil
}

// helpers; all callers hold s.mu

func sectionIndex(sections []Section, id string) int {
	for i := range sections {
		if sections[i].ID == id {
			return i
		}
	}
	return -1
}

func itemIndex(sections []Section, id string) (secIdx, itIdx int) {
	for i := range sections {
		for j := range sections[i].Items {
			if sections[i].Items[j].ID == id {
				return i, j
			}
		}
	}
	return -1, -1
}

func maxSectionOrder(sections []Section) int {
	var max int
	for i := range sections {
		if sections[i].Order > max {
			max = sections[i].Order
		}
	}
	return max
}

func maxItemOrder(items []Item) int {
	var max int
	for i := range items {
		if items[i].Order > max {
			max = items[i].Order
		}
	}
	return max
}

func renumberSections(sections []Section) {
	for i := range sections {
		sections[i].Order = i + 1
	}
}

func renumberItems(items []Item) {
	for i := range items {
		items[i].Order = i + 1
	}
}

func sortTree(sections []Section) {
	sort.SliceStable(sections, func(i, j int) bool { return sections[i].Order < sections[j].Order })
	for i := range sections {
		items := sections[i].Items
		sort.SliceStable(items, func(a, b int) bool { return items[a].Order < items[b].Order })
	}
}

func copySections(sections []Section) []Section {
	cp := make([]Section, len(sections))
	copy(cp, sections)
	for i := range cp {
		items := make([]Item, len(cp[i].Items))
		copy(items, cp[i].Items)
		cp[i].Items = items
	}
	return cp
}
