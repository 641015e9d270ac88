package restgw

import (
	"context"
	"net/http"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/submission"
)

var _ submission.Gateway = (*Client)(nil)

func (c *Client) ListSubmissions(ctx context.Context, itemID string) ([]submission.Submission, bool, error) {
	var out submissionListResponse
	if err := c.do(ctx, http.MethodGet, "/v1/items/"+itemID+"/submissions", nil, &out); err != nil {
		return nil, false, err
	}
	return out.Submissions, out.CanReview, nil
}

func (c *Client) CreateSubmission(ctx context.Context, itemID string, submitter submission.Submitter, file core.Blob) (submission.Submission, error) {
	in := newSubmissionRequest{
		FileURL:  file.URL,
		FileName: file.Name,
		FileSize: file.Size,
	}
	var sub submission.Submission
	err := c.do(ctx, http.MethodPost, "/v1/items/"+itemID+"/submissions", &in, &sub)
	return sub, err
}

func (c *Client) SetSubmissionStatus(ctx context.Context, id string, status submission.Status, note null.String) error {
	in := statusRequest{Status: status, ReviewNote: note}
	return c.do(ctx, http.MethodPut, "/v1/submissions/"+id+"/status", &in, nil)
}

func (c *Client) DeleteSubmission(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/submissions/"+id, nil, nil)
}

type (
	submissionListResponse struct {
		Submissions []submission.Submission `json:"submissions"`
		CanReview   bool                    `json:"can_review"`
	}

	newSubmissionRequest struct {
		FileURL  string `json:"file_url"`
		FileName string `json:"file_name"`
		FileSize int64  `json:"file_size"`
	}

	statusRequest struct {
		Status     submission.Status `json:"status"`
		ReviewNote null.String       `json:"review_note,omitempty"`
	}
)
