package inmemgw

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/content"
	"github.com/trezcool/darasa/core/submission"
)

// Gateway is an in-memory stand-in for the backend: it holds canonical
// server-side state and implements both the content and submission gateway
// contracts. Used in tests and local development.
type Gateway struct {
	mu      sync.RWMutex
	pkCount int

	sections map[string]*content.Section       // by section id
	items    map[string]*content.Item          // by item id
	subs     map[string]*submission.Submission // by submission id

	Viewer core.Viewer // capability decisions (canEdit/canReview)

	failNext error // returned (once) by the next call
}

var (
	_ content.Gateway    = (*Gateway)(nil)
	_ submission.Gateway = (*Gateway)(nil)
)

func New() *Gateway {
	return &Gateway{
		sections: make(map[string]*content.Section),
		items:    make(map[string]*content.Item),
		subs:     make(map[string]*submission.Submission),
		Viewer:   core.Viewer{ID: "t1", Name: "Teacher", Role: core.RoleInstructor},
	}
}

// FailNext makes the next gateway call fail with err, then clears itself.
func (gw *Gateway) FailNext(err error) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	gw.failNext = err
}

func (gw *Gateway) takeFailure() error {
	err := gw.failNext
	gw.failNext = nil
	return err
}

func (gw *Gateway) nextID(prefix string) string {
	gw.pkCount++
	return fmt.Sprintf("%s%d", prefix, gw.pkCount)
}

func (gw *Gateway) GetTree(ctx context.Context, subjectID string) (content.Tree, error) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if err := gw.takeFailure(); err != nil {
		return content.Tree{}, err
	}

	sections := gw.subjectSections(subjectID)
	if len(sections) == 0 {
		return content.Tree{}, core.ErrNotFound
	}
	return content.Tree{SubjectID: subjectID, Sections: sections}, nil
}

func (gw *Gateway) CreateSection(ctx context.Context, subjectID string, ns content.NewSection) (content.Section, error) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if err := gw.takeFailure(); err != nil {
		return content.Section{}, err
	}

	sec := content.Section{
		ID:        gw.nextID("sec"),
		SubjectID: subjectID,
		Title:     ns.Title,
		Order:     ns.Order,
		Audience:  ns.Audience,
		Items:     []content.Item{},
	}
	gw.sections[sec.ID] = &sec
	return sec, nil
}

func (gw *Gateway) UpdateSection(ctx context.Context, id string, us content.UpdateSection) (content.Section, error) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if err := gw.takeFailure(); err != nil {
		return content.Section{}, err
	}

	sec, ok := gw.sections[id]
	if !ok {
		return content.Section{}, core.ErrNotFound
	}
	us.ApplyTo(sec)
	return *sec, nil
}

func (gw *Gateway) DeleteSection(ctx context.Context, id string) error {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if err := gw.takeFailure(); err != nil {
		return err
	}

	sec, ok := gw.sections[id]
	if !ok {
		return core.ErrNotFound
	}
	delete(gw.sections, id)
	for itID, it := range gw.items {
		if it.SectionID == id {
			gw.deleteItemCascade(itID)
		}
	}
	gw.renumberSections(sec.SubjectID)
	return nil
}

func (gw *Gateway) ReorderSections(ctx context.Context, subjectID string, orderedIDs []string) error {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if err := gw.takeFailure(); err != nil {
		return err
	}

	for i, id := range orderedIDs {
		sec, ok := gw.sections[id]
		if !ok || sec.SubjectID != subjectID {
			return errors.Wrap(core.ErrNotFound, id)
		}
		sec.Order = i + 1
	}
	return nil
}

func (gw *Gateway) CreateItem(ctx context.Context, sectionID string, ni content.NewItem) (content.Item, error) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if err := gw.takeFailure(); err != nil {
		return content.Item{}, err
	}

	if _, ok := gw.sections[sectionID]; !ok {
		return content.Item{}, core.ErrNotFound
	}
	it := content.Item{
		ID:        gw.nextID("it"),
		SectionID: sectionID,
		Order:     ni.Order,
		Audience:  ni.Audience,
		Kind:      ni.Kind,
		Label:     ni.Label,
		Content:   ni.Content,
		Window:    ni.Window,
		File:      ni.File,
	}
	it.Sanitize()
	gw.items[it.ID] = &it
	return it, nil
}

func (gw *Gateway) UpdateItem(ctx context.Context, id string, ui content.UpdateItem) (content.Item, error) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if err := gw.takeFailure(); err != nil {
		return content.Item{}, err
	}

	it, ok := gw.items[id]
	if !ok {
		return content.Item{}, core.ErrNotFound
	}
	ui.ApplyTo(it)
	return *it, nil
}

func (gw *Gateway) DeleteItem(ctx context.Context, id string) error {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if err := gw.takeFailure(); err != nil {
		return err
	}

	it, ok := gw.items[id]
	if !ok {
		return core.ErrNotFound
	}
	sectionID := it.SectionID
	gw.deleteItemCascade(id)
	gw.renumberItems(sectionID)
	return nil
}

func (gw *Gateway) ReorderItems(ctx context.Context, sectionID string, orderedIDs []string) error {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if err := gw.takeFailure(); err != nil {
		return err
	}

	for i, id := range orderedIDs {
		it, ok := gw.items[id]
		if !ok || it.SectionID != sectionID {
			return errors.Wrap(core.ErrNotFound, id)
		}
		it.Order = i + 1
	}
	return nil
}

func (gw *Gateway) GetItem(ctx context.Context, id string) (content.Item, bool, error) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if err := gw.takeFailure(); err != nil {
		return content.Item{}, false, err
	}

	it, ok := gw.items[id]
	if !ok {
		return content.Item{}, false, core.ErrNotFound
	}
	return *it, gw.Viewer.IsInstructor(), nil
}

func (gw *Gateway) ListSubmissions(ctx context.Context, itemID string) ([]submission.Submission, bool, error) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if err := gw.takeFailure(); err != nil {
		return nil, false, err
	}

	subs := make([]submission.Submission, 0)
	for _, sub := range gw.subs {
		if sub.ItemID == itemID {
			subs = append(subs, *sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs, gw.Viewer.IsInstructor(), nil
}

func (gw *Gateway) CreateSubmission(ctx context.Context, itemID string, submitter submission.Submitter, file core.Blob) (submission.Submission, error) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if err := gw.takeFailure(); err != nil {
		return submission.Submission{}, err
	}

	if _, ok := gw.items[itemID]; !ok {
		return submission.Submission{}, core.ErrNotFound
	}
	sub := submission.Submission{
		ID:        gw.nextID("sub"),
		ItemID:    itemID,
		Submitter: submitter,
		File:      file,
		Status:    submission.StatusSubmitted,
		CreatedAt: time.Now().UTC(),
	}
	gw.subs[sub.ID] = &sub
	return sub, nil
}

func (gw *Gateway) SetSubmissionStatus(ctx context.Context, id string, status submission.Status, note null.String) error {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if err := gw.takeFailure(); err != nil {
		return err
	}

	sub, ok := gw.subs[id]
	if !ok {
		return core.ErrNotFound
	}
	sub.Status = status
	if note.Valid {
		sub.ReviewNote = note.String
	}
	return nil
}

func (gw *Gateway) DeleteSubmission(ctx context.Context, id string) error {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if err := gw.takeFailure(); err != nil {
		return err
	}

	if _, ok := gw.subs[id]; !ok {
		return core.ErrNotFound
	}
	delete(gw.subs, id)
	return nil
}

// helpers; callers hold gw.mu

func (gw *Gateway) subjectSections(subjectID string) []content.Section {
	sections := make([]content.Section, 0)
	for _, sec := range gw.sections {
		if sec.SubjectID != subjectID {
			continue
		}
		cp := *sec
		cp.Items = gw.sectionItems(sec.ID)
		sections = append(sections, cp)
	}
	sort.Slice(sections, func(i, j int) bool { return sections[i].Order < sections[j].Order })
	return sections
}

func (gw *Gateway) sectionItems(sectionID string) []content.Item {
	items := make([]content.Item, 0)
	for _, it := range gw.items {
		if it.SectionID == sectionID {
			items = append(items, *it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Order < items[j].Order })
	return items
}

func (gw *Gateway) deleteItemCascade(itemID string) {
	delete(gw.items, itemID)
	for subID, sub := range gw.subs {
		if sub.ItemID == itemID {
			delete(gw.subs, subID)
		}
	}
}

func (gw *Gateway) renumberSections(subjectID string) {
	for i, sec := range gw.subjectSections(subjectID) {
		gw.sections[sec.ID].Order = i + 1
	}
}

func (gw *Gateway) renumberItems(sectionID string) {
	for i, it := range gw.sectionItems(sectionID) {
		gw.items[it.ID].Order = i + 1
	}
}
