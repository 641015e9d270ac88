package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/content"
	"github.com/trezcool/darasa/core/submission"
)

type submissionApi struct {
	deps ServerDeps
}

func registerSubmissionAPI(g *echo.Group, deps ServerDeps) {
	api := submissionApi{deps: deps}

	g.GET("/items/:id/submissions", api.submissionListQuery)
	g.POST("/items/:id/submissions", api.submissionCreate)
	g.PUT("/submissions/:id/status", api.submissionSetStatus, instructorMiddleware())
	g.DELETE("/submissions/:id", api.submissionDelete)
}

func (api submissionApi) submissionListQuery(ctx echo.Context) error {
	viewer := getContextViewer(ctx)
	if _, err := api.collectorItem(ctx.Param("id"), viewer); err != nil {
		return err
	}

	subs, err := api.deps.Repo.ListSubmissions(ctx.Param("id"))
	if err != nil {
		return err
	}

	// students only ever see their own submissions
	if !viewer.IsInstructor() {
		own := make([]submission.Submission, 0, len(subs))
		for _, sub := range subs {
			if sub.Submitter.ID == viewer.ID {
				own = append(own, sub)
			}
		}
		subs = own
	}

	return ctx.JSON(http.StatusOK, submissionListResponse{
		Submissions: subs,
		CanReview:   viewer.IsInstructor(),
	})
}

func (api submissionApi) submissionCreate(ctx echo.Context) error {
	var in newSubmissionRequest
	if err := ctx.Bind(&in); err != nil {
		return err
	}
	if err := api.deps.Validate.Struct(&in); err != nil {
		return err
	}

	viewer := getContextViewer(ctx)
	it, err := api.collectorItem(ctx.Param("id"), viewer)
	if err != nil {
		return err
	}
	if it.Window != nil && !it.Window.Open(submission.NowFunc()) {
		return submission.ErrWindowClosed
	}

	sub, err := api.deps.Repo.CreateSubmission(submission.Submission{
		ItemID:    it.ID,
		Submitter: submission.Submitter{ID: viewer.ID, Name: viewer.Name},
		File:      core.Blob{URL: in.FileURL, Name: in.FileName, Size: in.FileSize},
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api submissionApi) submissionSetStatus(ctx echo.Context) error {
	var in statusRequest
	if err := ctx.Bind(&in); err != nil {
		return err
	}

	sub, err := api.deps.Repo.GetSubmission(ctx.Param("id"))
	if err != nil {
		return err
	}
	if !sub.Status.CanBecome(in.Status) {
		return errors.Wrapf(submission.ErrBadTransition, "%s -> %s", sub.Status, in.Status)
	}

	var note *string
	if in.ReviewNote.Valid {
		note = &in.ReviewNote.String
	}
	if err = api.deps.Repo.SetSubmissionStatus(sub.ID, in.Status, note); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api submissionApi) submissionDelete(ctx echo.Context) error {
	sub, err := api.deps.Repo.GetSubmission(ctx.Param("id"))
	if err != nil {
		return err
	}

	viewer := getContextViewer(ctx)
	if !viewer.IsInstructor() {
		if sub.Submitter.ID != viewer.ID {
			return errors.Wrap(submission.ErrNotOwner, sub.ID)
		}
		if sub.Status != submission.StatusSubmitted {
			return errors.Wrap(submission.ErrReviewStarted, sub.ID)
		}
	}

	if err = api.deps.Repo.DeleteSubmission(sub.ID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// collectorItem loads the item, scoped to the viewer, and ensures it actually
// collects submissions.
func (api submissionApi) collectorItem(id string, viewer core.Viewer) (content.Item, error) {
	it, err := visibleItem(api.deps, id, viewer)
	if err != nil {
		return content.Item{}, err
	}
	if it.Kind != content.KindFileCollector {
		return content.Item{}, errors.Wrap(submission.ErrNotCollector, it.ID)
	}
	return it, nil
}

type (
	submissionListResponse struct {
		Submissions []submission.Submission `json:"submissions"`
		CanReview   bool                    `json:"can_review"`
	}

	newSubmissionRequest struct {
		FileURL  string `json:"file_url" validate:"required,url"`
		FileName string `json:"file_name" validate:"required"`
		FileSize int64  `json:"file_size"`
	}

	statusRequest struct {
		Status     submission.Status `json:"status"`
		ReviewNote null.String       `json:"review_note,omitempty"`
	}
)
