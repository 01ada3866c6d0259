package review_test

import (
	"testing"

	"trackline/internal/domain"
	"trackline/internal/engine/review"
)

func comment(id int64, author, body string) domain.Comment {
	return domain.Comment{ID: id, AuthorID: author, Body: body, CreatedAt: "2026-01-01T00:00:00Z"}
}

func TestLatestDecisionLastMatchWins(t *testing.T) {
	r := review.NewResolver(nil, nil)
	comments := []domain.Comment{
		comment(1, "reviewer", "needs changes"),
		comment(2, "reviewer", "lgtm"),
	}
	d, ok := r.LatestDecision(comments, "")
	if !ok || d.Kind != review.Approved || d.AuthorID != "reviewer" {
		t.Fatalf("decision = %+v ok=%v", d, ok)
	}
}

func TestLatestDecisionSkipsAssigneeComments(t *testing.T) {
	r := review.NewResolver(nil, nil)
	comments := []domain.Comment{
		comment(1, "reviewer", "approved"),
		comment(2, "alice", "pushed a fix"),
	}
	// the assignee's own comment re-requests review
	if _, ok := r.LatestDecision(comments, "alice"); ok {
		t.Fatalf("expected approval to be voided")
	}
	comments = append(comments, comment(3, "reviewer", "looks good to me"))
	d, ok := r.LatestDecision(comments, "alice")
	if !ok || d.Kind != review.Approved {
		t.Fatalf("decision = %+v ok=%v", d, ok)
	}
}

func TestAssigneeCannotApproveOwnTask(t *testing.T) {
	r := review.NewResolver(nil, nil)
	comments := []domain.Comment{comment(1, "alice", "lgtm")}
	if _, ok := r.LatestDecision(comments, "alice"); ok {
		t.Fatalf("self approval must not count")
	}
}

func TestClassifyChangesBeforeApproval(t *testing.T) {
	r := review.NewResolver(nil, nil)
	comments := []domain.Comment{
		comment(1, "reviewer", "Changes requested, otherwise approved"),
	}
	d, ok := r.LatestDecision(comments, "")
	if !ok || d.Kind != review.ChangesRequested {
		t.Fatalf("decision = %+v ok=%v", d, ok)
	}
}

func TestMatchingIsCaseInsensitiveSubstring(t *testing.T) {
	r := review.NewResolver(nil, nil)
	cases := []struct {
		body string
		kind review.Kind
		ok   bool
	}{
		{"LGTM!", review.Approved, true},
		{"  Looks Good To Me  ", review.Approved, true},
		{"this really needs changes before merge", review.ChangesRequested, true},
		{"just a question about the API", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		d, ok := r.LatestDecision([]domain.Comment{comment(1, "reviewer", tc.body)}, "")
		if ok != tc.ok || (ok && d.Kind != tc.kind) {
			t.Fatalf("%q => %+v ok=%v", tc.body, d, ok)
		}
	}
}

func TestCustomPatterns(t *testing.T) {
	r := review.NewResolver([]string{"ship it"}, []string{"hold on"})
	d, ok := r.LatestDecision([]domain.Comment{comment(1, "reviewer", "ship it")}, "")
	if !ok || d.Kind != review.Approved {
		t.Fatalf("custom approve: %+v ok=%v", d, ok)
	}
	// defaults no longer apply once overridden
	if _, ok := r.LatestDecision([]domain.Comment{comment(1, "reviewer", "lgtm")}, ""); ok {
		t.Fatalf("default pattern should not match")
	}
	d, ok = r.LatestDecision([]domain.Comment{comment(1, "reviewer", "hold on a second")}, "")
	if !ok || d.Kind != review.ChangesRequested {
		t.Fatalf("custom request changes: %+v ok=%v", d, ok)
	}
}
