package submission

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/content"
)

var (
	ErrWindowClosed   = errors.New("the submission window is closed")
	ErrNotCollector   = errors.New("item does not collect submissions")
	ErrReviewStarted  = errors.New("a reviewed submission can no longer be deleted")
	ErrBadTransition  = errors.New("illegal status transition")
	ErrNotFound       = errors.New("submission not found")
	ErrNotOwner       = errors.New("submission belongs to another viewer")

	// NowFunc returns the current time; overridable in tests.
	NowFunc = time.Now
)

type (
	// Gateway is the persistence boundary for submissions.
	Gateway interface {
		ListSubmissions(ctx context.Context, itemID string) (subs []Submission, canReview bool, err error)
		CreateSubmission(ctx context.Context, itemID string, submitter Submitter, file core.Blob) (Submission, error)
		SetSubmissionStatus(ctx context.Context, id string, status Status, note null.String) error
		DeleteSubmission(ctx context.Context, id string) error
	}

	// Upload is one file handed to Submit; each becomes an independent
	// Submission.
	Upload struct {
		Name    string
		Content io.Reader
	}

	// Service owns the submissions of the currently loaded file-collecting
	// item. Status changes and deletions are applied optimistically against
	// local state and rolled back when the backend rejects them.
	Service struct {
		gw       Gateway
		uploader core.Uploader
		log      core.Logger
		report   core.Reporter

		mu        sync.Mutex
		item      content.Item
		epoch     int
		subs      []Submission
		canReview bool
		pending   map[string]bool
	}
)

func NewService(gw Gateway, uploader core.Uploader, logger core.Logger, reporter core.Reporter) *Service {
	if reporter == nil {
		reporter = core.NopReporter{}
	}
	return &Service{
		gw:       gw,
		uploader: uploader,
		log:      logger,
		report:   reporter,
		pending:  make(map[string]bool),
	}
}

// Load replaces the active item and fetches its submissions.
func (svc *Service) Load(ctx context.Context, item content.Item) error {
	if item.Kind != content.KindFileCollector {
		return errors.Wrap(ErrNotCollector, item.ID)
	}

	svc.mu.Lock()
	svc.item = item
	svc.epoch++
	epoch := svc.epoch
	svc.subs = nil
	svc.canReview = false
	svc.mu.Unlock()

	subs, canReview, err := svc.gw.ListSubmissions(ctx, item.ID)
	if err != nil {
		svc.report.Error("could not load submissions")
		return errors.Wrap(err, "listing submissions")
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.epoch != epoch {
		return content.ErrSubjectChanged
	}
	svc.subs = subs
	svc.canReview = canReview
	return nil
}

func (svc *Service) Item() content.Item {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.item
}

func (svc *Service) CanReview() bool {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.canReview
}

func (svc *Service) Submissions() []Submission {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	subs := make([]Submission, len(svc.subs))
	copy(subs, svc.subs)
	return subs
}

// Groups returns the reviewer aggregation of the loaded submissions.
func (svc *Service) Groups() []Group {
	return Aggregate(svc.Submissions())
}

// Pending reports whether a mutation is in flight for the given submission.
func (svc *Service) Pending(id string) bool {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.pending[id]
}

// WindowOpen reports whether the loaded item currently accepts submissions.
// An absent window, or an absent bound, is unbounded on that side.
func (svc *Service) WindowOpen() bool {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return windowOpen(svc.item, NowFunc())
}

func windowOpen(item content.Item, now time.Time) bool {
	if item.Window == nil {
		return true
	}
	return item.Window.Open(now)
}

// Submit uploads the given files and creates one Submission per file. The
// whole batch is gated by the item's time window before anything is uploaded.
func (svc *Service) Submit(ctx context.Context, submitter Submitter, files ...Upload) ([]Submission, error) {
	svc.mu.Lock()
	item := svc.item
	epoch := svc.epoch
	svc.mu.Unlock()

	if !windowOpen(item, NowFunc()) {
		svc.report.Error("the submission window is closed")
		return nil, ErrWindowClosed
	}

	created := make([]Submission, 0, len(files))
	var submitErr error
	for _, f := range files {
		blob, err := svc.uploader.UploadBlob(ctx, f.Name, f.Content)
		if err != nil {
			svc.report.Error("could not upload " + f.Name)
			submitErr = errors.Wrapf(err, "uploading %s", f.Name)
			break
		}
		sub, err := svc.gw.CreateSubmission(ctx, item.ID, submitter, blob)
		if err != nil {
			svc.report.Error("could not submit " + f.Name)
			submitErr = errors.Wrapf(err, "submitting %s", f.Name)
			break
		}
		created = append(created, sub)
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.epoch != epoch {
		return created, content.ErrSubjectChanged
	}
	// files that made it through a failed batch are already on the server;
	// keep them locally too
	svc.subs = append(svc.subs, created...)
	if submitErr != nil {
		return created, submitErr
	}
	svc.report.Success("submission received")
	return created, nil
}

// SetStatus performs a reviewer status transition, optionally replacing the
// review note in the same call.
func (svc *Service) SetStatus(ctx context.Context, reviewer core.Viewer, id string, status Status, note null.String) error {
	svc.mu.Lock()
	if !svc.canReview || !reviewer.IsInstructor() {
		svc.mu.Unlock()
		return errors.Wrap(core.ErrUnauthorized, "setting status")
	}
	idx := svc.index(id)
	if idx < 0 {
		svc.mu.Unlock()
		return errors.Wrap(ErrNotFound, id)
	}
	sub := svc.subs[idx]
	if !sub.Status.CanBecome(status) {
		svc.mu.Unlock()
		return errors.Wrapf(ErrBadTransition, "%s -> %s", sub.Status, status)
	}
	epoch := svc.epoch
	backup := sub
	svc.subs[idx].Status = status
	if note.Valid {
		svc.subs[idx].ReviewNote = note.String
	}
	svc.pending[id] = true
	svc.mu.Unlock()

	err := svc.gw.SetSubmissionStatus(ctx, id, status, note)

	svc.mu.Lock()
	defer svc.mu.Unlock()
	delete(svc.pending, id)
	if svc.epoch != epoch {
		return content.ErrSubjectChanged
	}
	if err != nil {
		if idx = svc.index(id); idx >= 0 {
			svc.subs[idx] = backup
		}
		svc.report.Error("could not update submission")
		return errors.Wrap(err, "setting status")
	}
	svc.report.Success("submission updated")
	return nil
}

// SetReviewNote replaces the review note without touching the status; legal
// at any status.
func (svc *Service) SetReviewNote(ctx context.Context, reviewer core.Viewer, id, note string) error {
	svc.mu.Lock()
	if !svc.canReview || !reviewer.IsInstructor() {
		svc.mu.Unlock()
		return errors.Wrap(core.ErrUnauthorized, "setting review note")
	}
	idx := svc.index(id)
	if idx < 0 {
		svc.mu.Unlock()
		return errors.Wrap(ErrNotFound, id)
	}
	epoch := svc.epoch
	backup := svc.subs[idx]
	svc.subs[idx].ReviewNote = note
	svc.pending[id] = true
	svc.mu.Unlock()

	err := svc.gw.SetSubmissionStatus(ctx, id, backup.Status, null.StringFrom(note))

	svc.mu.Lock()
	defer svc.mu.Unlock()
	delete(svc.pending, id)
	if svc.epoch != epoch {
		return content.ErrSubjectChanged
	}
	if err != nil {
		if idx = svc.index(id); idx >= 0 {
			svc.subs[idx] = backup
		}
		svc.report.Error("could not save review note")
		return errors.Wrap(err, "setting review note")
	}
	svc.report.Success("review note saved")
	return nil
}

// Delete removes the submitter's own submission. Once a reviewer has set any
// non-submitted status the capability is gone; this is enforced by the status
// check, not by identity.
func (svc *Service) Delete(ctx context.Context, submitter Submitter, id string) error {
	svc.mu.Lock()
	idx := svc.index(id)
	if idx < 0 {
		svc.mu.Unlock()
		return errors.Wrap(ErrNotFound, id)
	}
	sub := svc.subs[idx]
	if sub.Submitter.ID != submitter.ID {
		svc.mu.Unlock()
		return errors.Wrap(ErrNotOwner, id)
	}
	if sub.Status != StatusSubmitted {
		svc.mu.Unlock()
		return errors.Wrap(ErrReviewStarted, id)
	}
	epoch := svc.epoch
	backup := make([]Submission, len(svc.subs))
	copy(backup, svc.subs)
	svc.subs = append(svc.subs[:idx], svc.subs[idx+1:]...)
	svc.pending[id] = true
	svc.mu.Unlock()

	err := svc.gw.DeleteSubmission(ctx, id)

	svc.mu.Lock()
	defer svc.mu.Unlock()
	delete(svc.pending, id)
	if svc.epoch != epoch {
		return content.ErrSubjectChanged
	}
	if err != nil {
		svc.subs = backup
		svc.report.Error("could not delete submission")
		return errors.Wrap(err, "deleting submission")
	}
	svc.report.Success("submission deleted")
	return nil
}

// index looks up a submission position; caller holds svc.mu.
func (svc *Service) index(id string) int {
	for i := range svc.subs {
		if svc.subs[i].ID == id {
			return i
		}
	}
	return -1
}
