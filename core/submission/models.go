package submission

import (
	"sort"
	"strings"
	"time"

	"github.com/trezcool/darasa/core"
)

// Statuses
const (
	StatusSubmitted = Status("submitted")
	StatusReviewed  = Status("reviewed")
	StatusAccepted  = Status("accepted")
	StatusRejected  = Status("rejected")
)

type Status string

func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusReviewed, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// CanBecome reports whether a reviewer may move a submission from s to next.
// Reviewers move freely among reviewed/accepted/rejected; nothing ever goes
// back to submitted.
func (s Status) CanBecome(next Status) bool {
	if !next.Valid() || next == StatusSubmitted {
		return false
	}
	return true
}

type (
	// Submitter is the viewer a submission belongs to.
	Submitter struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	// Submission is one file uploaded against a file-collecting item. Only
	// Status and ReviewNote are ever mutated.
	Submission struct {
		ID         string    `json:"id"`
		ItemID     string    `json:"item_id"`
		Submitter  Submitter `json:"submitter"`
		File       core.Blob `json:"file"`
		Status     Status    `json:"status"`
		ReviewNote string    `json:"review_note,omitempty"`
		CreatedAt  time.Time `json:"created_at"` // UTC
	}

	// Group aggregates one submitter's submissions for reviewer display.
	Group struct {
		Submitter   Submitter    `json:"submitter"`
		Submissions []Submission `json:"submissions"`
		Total       int          `json:"total"`
		Accepted    int          `json:"accepted"`
		Reviewed    int          `json:"reviewed"`
		Rejected    int          `json:"rejected"`
		Pending     int          `json:"pending"`
	}
)

// Aggregate groups submissions by submitter, ordered by submitter display
// name, case-insensitive ascending.
func Aggregate(subs []Submission) []Group {
	byID := make(map[string]*Group)
	order := make([]string, 0)
	for _, sub := range subs {
		grp, ok := byID[sub.Submitter.ID]
		if !ok {
			grp = &Group{Submitter: sub.Submitter}
			byID[sub.Submitter.ID] = grp
			order = append(order, sub.Submitter.ID)
		}
		grp.Submissions = append(grp.Submissions, sub)
		grp.Total++
		switch sub.Status {
		case StatusAccepted:
			grp.Accepted++
		case StatusReviewed:
			grp.Reviewed++
		case StatusRejected:
			grp.Rejected++
		}
	}

	groups := make([]Group, 0, len(order))
	for _, id := range order {
		grp := *byID[id]
		grp.Pending = grp.Total - grp.Accepted - grp.Reviewed - grp.Rejected
		groups = append(groups, grp)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return strings.ToLower(groups[i].Submitter.Name) < strings.ToLower(groups[j].Submitter.Name)
	})
	return groups
}
