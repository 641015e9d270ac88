package testutil

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"

	echoapi "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/content"
	"github.com/trezcool/darasa/core/submission"
)

func CreateSection(
	t *testing.T,
	repo echoapi.Repository,
	subjectID, title string,
	audience content.Audience,
) content.Section {
	sec, err := repo.CreateSection(subjectID, content.Section{
		Title:    title,
		Audience: audience,
	})
	if err != nil {
		t.Fatalf("CreateSection() failed: %v", err)
	}
	return sec
}

func CreateItem(
	t *testing.T,
	repo echoapi.Repository,
	sectionID string,
	kind content.Kind,
	label string,
	audience content.Audience,
	mutate ...func(*content.Item),
) content.Item {
	it := content.Item{
		Audience: audience,
		Kind:     kind,
		Label:    label,
	}
	for _, fn := range mutate {
		fn(&it)
	}
	it.Sanitize()
	it, err := repo.CreateItem(sectionID, it)
	if err != nil {
		t.Fatalf("CreateItem() failed: %v", err)
	}
	return it
}

func CreateSubmission(
	t *testing.T,
	repo echoapi.Repository,
	itemID string,
	submitter submission.Submitter,
	fileName string,
) submission.Submission {
	sub, err := repo.CreateSubmission(submission.Submission{
		ItemID:    itemID,
		Submitter: submitter,
		File:      core.Blob{URL: "https://files.test/" + fileName, Name: fileName},
	})
	if err != nil {
		t.Fatalf("CreateSubmission() failed: %v", err)
	}
	return sub
}

// JSONBytesEqual compares two JSON payloads structurally; on mismatch, diff
// holds a unified diff of their indented forms.
func JSONBytesEqual(b1, b2 []byte) (ok bool, diff string, err error) {
	var j1, j2 interface{}
	if err = json.Unmarshal(b1, &j1); err != nil {
		return false, "", err
	}
	if err = json.Unmarshal(b2, &j2); err != nil {
		return false, "", err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, "", nil
	}

	i1, _ := json.MarshalIndent(j1, "", "  ")
	i2, _ := json.MarshalIndent(j2, "", "  ")
	diff, err = difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(i1)),
		B:        difflib.SplitLines(string(i2)),
		FromFile: "got",
		ToFile:   "want",
		Context:  2,
	})
	return false, diff, err
}

// Indent is a convenience for readable failure messages.
func Indent(v interface{}) string {
	data, _ := json.MarshalIndent(v, "", "  ")
	return strings.TrimSpace(string(data))
}
