package submission

import (
	"testing"
)

func TestStatusCanBecome(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusSubmitted, StatusReviewed, true},
		{StatusSubmitted, StatusAccepted, true},
		{StatusSubmitted, StatusRejected, true},
		{StatusReviewed, StatusAccepted, true},
		{StatusReviewed, StatusRejected, true},
		{StatusAccepted, StatusRejected, true},
		{StatusAccepted, StatusReviewed, true},
		{StatusRejected, StatusAccepted, true},
		// nothing ever goes back to submitted
		{StatusReviewed, StatusSubmitted, false},
		{StatusAccepted, StatusSubmitted, false},
		{StatusRejected, StatusSubmitted, false},
		{StatusSubmitted, StatusSubmitted, false},
		{StatusSubmitted, Status("lol"), false},
	}
	for _, tt := range tests {
		if got := tt.from.CanBecome(tt.to); got != tt.want {
			t.Errorf("%s.CanBecome(%s) = %v; want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestAggregate(t *testing.T) {
	alice := Submitter{ID: "s1", Name: "alice"}
	bob := Submitter{ID: "s2", Name: "Bob"}
	zoe := Submitter{ID: "s3", Name: "Zoe"}

	subs := []Submission{
		{ID: "sub1", Submitter: zoe, Status: StatusSubmitted},
		{ID: "sub2", Submitter: alice, Status: StatusAccepted},
		{ID: "sub3", Submitter: bob, Status: StatusRejected},
		{ID: "sub4", Submitter: alice, Status: StatusSubmitted},
	}

	groups := Aggregate(subs)
	if len(groups) != 3 {
		t.Fatalf("len(groups) = %d; want 3", len(groups))
	}

	// ordered by display name, case-insensitive
	wantOrder := []string{"alice", "Bob", "Zoe"}
	for i, want := range wantOrder {
		if groups[i].Submitter.Name != want {
			t.Errorf("groups[%d] = %s; want %s", i, groups[i].Submitter.Name, want)
		}
	}

	a := groups[0]
	if a.Total != 2 || a.Accepted != 1 || a.Pending != 1 {
		t.Errorf("alice = total %d, accepted %d, pending %d; want 2, 1, 1", a.Total, a.Accepted, a.Pending)
	}
	if len(a.Submissions) != 2 {
		t.Errorf("alice submissions = %d; want 2", len(a.Submissions))
	}

	b := groups[1]
	if b.Total != 1 || b.Rejected != 1 || b.Pending != 0 {
		t.Errorf("bob = total %d, rejected %d, pending %d; want 1, 1, 0", b.Total, b.Rejected, b.Pending)
	}

	z := groups[2]
	if z.Total != 1 || z.Pending != 1 {
		t.Errorf("zoe = total %d, pending %d; want 1, 1", z.Total, z.Pending)
	}
}

func TestAggregateEmpty(t *testing.T) {
	if groups := Aggregate(nil); len(groups) != 0 {
		t.Errorf("Aggregate(nil) = %v; want empty", groups)
	}
}
