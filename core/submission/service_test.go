package submission_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/content"
	"github.com/trezcool/darasa/core/submission"
	dummyupload "github.com/trezcool/darasa/services/upload/dummy"
	inmemgw "github.com/trezcool/darasa/storage/inmem"
)

var (
	ctx = context.Background()

	instructor = core.Viewer{ID: "t1", Name: "Teacher", Role: core.RoleInstructor}
	alice      = submission.Submitter{ID: "s1", Name: "Alice"}
	bob        = submission.Submitter{ID: "s2", Name: "Bob"}
)

func newTestService(t *testing.T, window *content.Window) (*submission.Service, *inmemgw.Gateway, content.Item) {
	t.Helper()
	gw := inmemgw.New()

	sec, err := gw.CreateSection(ctx, "maths", content.NewSection{Title: "Week 1", Audience: content.AudienceEveryone, Order: 1})
	if err != nil {
		t.Fatalf("CreateSection() error = %v", err)
	}
	item, err := gw.CreateItem(ctx, sec.ID, content.NewItem{
		Kind:     content.KindFileCollector,
		Label:    "Essay",
		Audience: content.AudienceStudents,
		Window:   window,
		Order:    1,
	})
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}

	svc := submission.NewService(gw, dummyupload.NewUploader(), core.NopLogger{}, nil)
	if err = svc.Load(ctx, item); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return svc, gw, item
}

func submitOne(t *testing.T, svc *submission.Service, submitter submission.Submitter, name string) submission.Submission {
	t.Helper()
	subs, err := svc.Submit(ctx, submitter, submission.Upload{Name: name, Content: strings.NewReader("data")})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	return subs[0]
}

func TestServiceLoadRejectsNonCollector(t *testing.T) {
	gw := inmemgw.New()
	svc := submission.NewService(gw, dummyupload.NewUploader(), core.NopLogger{}, nil)

	err := svc.Load(ctx, content.Item{ID: "it1", Kind: content.KindPlain})
	if errors.Cause(err) != submission.ErrNotCollector {
		t.Errorf("Load() error = %v; want %v", err, submission.ErrNotCollector)
	}
}

func TestServiceSubmitBatch(t *testing.T) {
	svc, _, item := newTestService(t, nil)

	subs, err := svc.Submit(ctx, alice,
		submission.Upload{Name: "draft.pdf", Content: strings.NewReader("one")},
		submission.Upload{Name: "final.pdf", Content: strings.NewReader("two")},
	)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("Submit() = %d submissions; want 2", len(subs))
	}
	for _, sub := range subs {
		if sub.Status != submission.StatusSubmitted {
			t.Errorf("%s status = %s; want %s", sub.File.Name, sub.Status, submission.StatusSubmitted)
		}
		if sub.ItemID != item.ID {
			t.Errorf("%s item = %s; want %s", sub.File.Name, sub.ItemID, item.ID)
		}
		if sub.Submitter != alice {
			t.Errorf("%s submitter = %+v; want %+v", sub.File.Name, sub.Submitter, alice)
		}
	}
	if got := svc.Submissions(); len(got) != 2 {
		t.Errorf("Submissions() = %d; want 2", len(got))
	}
}

func TestServiceSubmitWindowGate(t *testing.T) {
	open := time.Date(2021, 5, 10, 8, 0, 0, 0, time.UTC)
	closed := content.Window{
		StartAt: null.TimeFrom(open),
		EndAt:   null.TimeFrom(open.Add(2 * time.Hour)),
	}
	svc, _, _ := newTestService(t, &closed)

	defer func() { submission.NowFunc = time.Now }()

	// before the window opens
	submission.NowFunc = func() time.Time { return open.Add(-time.Minute) }
	if svc.WindowOpen() {
		t.Error("WindowOpen() = true before start")
	}
	_, err := svc.Submit(ctx, alice, submission.Upload{Name: "early.pdf", Content: strings.NewReader("x")})
	if errors.Cause(err) != submission.ErrWindowClosed {
		t.Errorf("Submit() error = %v; want %v", err, submission.ErrWindowClosed)
	}

	// inside the window
	submission.NowFunc = func() time.Time { return open.Add(time.Hour) }
	if !svc.WindowOpen() {
		t.Error("WindowOpen() = false inside window")
	}
	if _, err = svc.Submit(ctx, alice, submission.Upload{Name: "ontime.pdf", Content: strings.NewReader("x")}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	// after the window closes
	submission.NowFunc = func() time.Time { return open.Add(3 * time.Hour) }
	_, err = svc.Submit(ctx, alice, submission.Upload{Name: "late.pdf", Content: strings.NewReader("x")})
	if errors.Cause(err) != submission.ErrWindowClosed {
		t.Errorf("Submit() error = %v; want %v", err, submission.ErrWindowClosed)
	}

	if got := svc.Submissions(); len(got) != 1 {
		t.Errorf("Submissions() = %d; want 1", len(got))
	}
}

func TestServiceSetStatus(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	sub := submitOne(t, svc, alice, "essay.pdf")

	if err := svc.SetStatus(ctx, instructor, sub.ID, submission.StatusAccepted, null.StringFrom("well done")); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	got := svc.Submissions()[0]
	if got.Status != submission.StatusAccepted || got.ReviewNote != "well done" {
		t.Errorf("submission = %s %q; want accepted %q", got.Status, got.ReviewNote, "well done")
	}

	// no way back to submitted
	err := svc.SetStatus(ctx, instructor, sub.ID, submission.StatusSubmitted, null.String{})
	if errors.Cause(err) != submission.ErrBadTransition {
		t.Errorf("SetStatus() error = %v; want %v", err, submission.ErrBadTransition)
	}

	// reviewers move freely among the reviewed states
	if err = svc.SetStatus(ctx, instructor, sub.ID, submission.StatusRejected, null.String{}); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	got = svc.Submissions()[0]
	if got.Status != submission.StatusRejected {
		t.Errorf("status = %s; want %s", got.Status, submission.StatusRejected)
	}
	if got.ReviewNote != "well done" {
		t.Errorf("note = %q; want it untouched", got.ReviewNote)
	}

	// a student cannot review
	student := core.Viewer{ID: alice.ID, Name: alice.Name, Role: core.RoleStudent}
	err = svc.SetStatus(ctx, student, sub.ID, submission.StatusAccepted, null.String{})
	if errors.Cause(err) != core.ErrUnauthorized {
		t.Errorf("SetStatus() error = %v; want %v", err, core.ErrUnauthorized)
	}
}

func TestServiceSetStatusRollback(t *testing.T) {
	svc, gw, _ := newTestService(t, nil)
	sub := submitOne(t, svc, alice, "essay.pdf")

	gw.FailNext(core.ErrTransport)
	err := svc.SetStatus(ctx, instructor, sub.ID, submission.StatusAccepted, null.StringFrom("nope"))
	if errors.Cause(err) != core.ErrTransport {
		t.Fatalf("SetStatus() error = %v; want %v", err, core.ErrTransport)
	}

	got := svc.Submissions()[0]
	if got.Status != submission.StatusSubmitted || got.ReviewNote != "" {
		t.Errorf("submission = %s %q; want the optimistic change rolled back", got.Status, got.ReviewNote)
	}
	if svc.Pending(sub.ID) {
		t.Error("Pending() = true after settled mutation")
	}
}

func TestServiceSetReviewNote(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	sub := submitOne(t, svc, alice, "essay.pdf")

	// legal while still submitted
	if err := svc.SetReviewNote(ctx, instructor, sub.ID, "looking at it"); err != nil {
		t.Fatalf("SetReviewNote() error = %v", err)
	}
	got := svc.Submissions()[0]
	if got.ReviewNote != "looking at it" || got.Status != submission.StatusSubmitted {
		t.Errorf("submission = %s %q; want note saved, status untouched", got.Status, got.ReviewNote)
	}

	if err := svc.SetStatus(ctx, instructor, sub.ID, submission.StatusAccepted, null.String{}); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if err := svc.SetReviewNote(ctx, instructor, sub.ID, "great work"); err != nil {
		t.Fatalf("SetReviewNote() error = %v", err)
	}
	got = svc.Submissions()[0]
	if got.ReviewNote != "great work" || got.Status != submission.StatusAccepted {
		t.Errorf("submission = %s %q; want note replaced, status untouched", got.Status, got.ReviewNote)
	}
}

func TestServiceDelete(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	aliceSub := submitOne(t, svc, alice, "alice.pdf")
	bobSub := submitOne(t, svc, bob, "bob.pdf")

	// only the owner may delete
	err := svc.Delete(ctx, alice, bobSub.ID)
	if errors.Cause(err) != submission.ErrNotOwner {
		t.Errorf("Delete() error = %v; want %v", err, submission.ErrNotOwner)
	}

	// once reviewed, the owner cannot delete either
	if err = svc.SetStatus(ctx, instructor, aliceSub.ID, submission.StatusAccepted, null.String{}); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	err = svc.Delete(ctx, alice, aliceSub.ID)
	if errors.Cause(err) != submission.ErrReviewStarted {
		t.Errorf("Delete() error = %v; want %v", err, submission.ErrReviewStarted)
	}

	// a still-submitted one goes away
	if err = svc.Delete(ctx, bob, bobSub.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got := svc.Submissions(); len(got) != 1 || got[0].ID != aliceSub.ID {
		t.Errorf("Submissions() = %v; want only %s left", got, aliceSub.ID)
	}
}

func TestServiceGroups(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	aliceSub := submitOne(t, svc, alice, "alice1.pdf")
	submitOne(t, svc, alice, "alice2.pdf")
	bobSub := submitOne(t, svc, bob, "bob.pdf")

	if err := svc.SetStatus(ctx, instructor, aliceSub.ID, submission.StatusAccepted, null.String{}); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if err := svc.SetStatus(ctx, instructor, bobSub.ID, submission.StatusRejected, null.String{}); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	groups := svc.Groups()
	if len(groups) != 2 {
		t.Fatalf("len(groups) = %d; want 2", len(groups))
	}
	a, b := groups[0], groups[1]
	if a.Submitter != alice || a.Total != 2 || a.Accepted != 1 || a.Pending != 1 {
		t.Errorf("alice group = %+v; want total 2, accepted 1, pending 1", a)
	}
	if b.Submitter != bob || b.Total != 1 || b.Rejected != 1 || b.Pending != 0 {
		t.Errorf("bob group = %+v; want total 1, rejected 1, pending 0", b)
	}
}

// flakySubmitGateway lets a fixed number of creates through, then rejects the
// rest, to fail a batch partway.
type flakySubmitGateway struct {
	*inmemgw.Gateway
	allowed int
}

func (gw *flakySubmitGateway) CreateSubmission(ctx context.Context, itemID string, submitter submission.Submitter, file core.Blob) (submission.Submission, error) {
	if gw.allowed == 0 {
		return submission.Submission{}, core.ErrTransport
	}
	gw.allowed--
	return gw.Gateway.CreateSubmission(ctx, itemID, submitter, file)
}

func TestServiceSubmitPartialBatch(t *testing.T) {
	gw := inmemgw.New()
	sec, err := gw.CreateSection(ctx, "maths", content.NewSection{Title: "Week 1", Audience: content.AudienceEveryone, Order: 1})
	if err != nil {
		t.Fatalf("CreateSection() error = %v", err)
	}
	item, err := gw.CreateItem(ctx, sec.ID, content.NewItem{
		Kind:     content.KindFileCollector,
		Label:    "Essay",
		Audience: content.AudienceStudents,
		Order:    1,
	})
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}

	svc := submission.NewService(&flakySubmitGateway{Gateway: gw, allowed: 1}, dummyupload.NewUploader(), core.NopLogger{}, nil)
	if err = svc.Load(ctx, item); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	created, err := svc.Submit(ctx, alice,
		submission.Upload{Name: "draft.pdf", Content: strings.NewReader("one")},
		submission.Upload{Name: "final.pdf", Content: strings.NewReader("two")},
	)
	if errors.Cause(err) != core.ErrTransport {
		t.Fatalf("Submit() error = %v; want %v", err, core.ErrTransport)
	}
	if len(created) != 1 || created[0].File.Name != "draft.pdf" {
		t.Fatalf("Submit() created %d submissions; want the first file only", len(created))
	}

	// the file that got through is on the server; local state keeps it too
	if got := svc.Submissions(); len(got) != 1 || got[0].ID != created[0].ID {
		t.Errorf("Submissions() = %d entries; want the surviving submission", len(got))
	}
}
