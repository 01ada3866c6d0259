package review

import (
	"strings"

	"trackline/internal/domain"
)

type Kind string

const (
	Approved         Kind = "approved"
	ChangesRequested Kind = "changes_requested"
)

// Decision is the governing review signal extracted from a task's comments.
type Decision struct {
	Kind      Kind   `json:"kind"`
	AuthorID  string `json:"author_id"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Resolver parses free-text comments for approval and change-request
// decisions. Matching is best effort: text that fits no pattern means
// "no decision", never an error.
type Resolver struct {
	ApprovePatterns        []string
	RequestChangesPatterns []string
}

// DefaultApprovePatterns and DefaultRequestChangesPatterns are the keyword
// sets used when the config does not override them.
var (
	DefaultApprovePatterns        = []string{"approved", "lgtm", "looks good to me"}
	DefaultRequestChangesPatterns = []string{"changes requested", "request changes", "needs changes"}
)

func NewResolver(approve, requestChanges []string) Resolver {
	if len(approve) == 0 {
		approve = DefaultApprovePatterns
	}
	if len(requestChanges) == 0 {
		requestChanges = DefaultRequestChangesPatterns
	}
	return Resolver{ApprovePatterns: approve, RequestChangesPatterns: requestChanges}
}

// LatestDecision returns the governing decision for a task in review.
// Comments must be ordered oldest first (insertion order breaks ties).
// Only comments by someone other than the assignee count as decisions, and
// only those made after the assignee's latest own comment: an assignee
// comment re-requests review and voids earlier decisions.
func (r Resolver) LatestDecision(comments []domain.Comment, assigneeID string) (Decision, bool) {
	start := 0
	if assigneeID != "" {
		for i, c := range comments {
			if c.AuthorID == assigneeID {
				start = i + 1
			}
		}
	}
	var (
		decision Decision
		found    bool
	)
	for _, c := range comments[start:] {
		if assigneeID != "" && c.AuthorID == assigneeID {
			continue
		}
		kind, ok := r.classify(c.Body)
		if !ok {
			continue
		}
		// Comments are ordered, so the last match wins.
		decision = Decision{Kind: kind, AuthorID: c.AuthorID, CreatedAt: c.CreatedAt}
		found = true
	}
	return decision, found
}

func (r Resolver) classify(body string) (Kind, bool) {
	text := strings.ToLower(strings.TrimSpace(body))
	if text == "" {
		return "", false
	}
	// Change requests first: "requested changes before approval" style comments
	// mention both keywords and must not read as an approval.
	if matchAny(text, r.RequestChangesPatterns) {
		return ChangesRequested, true
	}
	if matchAny(text, r.ApprovePatterns) {
		return Approved, true
	}
	return "", false
}

func matchAny(text string, patterns []string) bool {
	for _, p := range patterns {
		p = strings.ToLower(p)
		if strings.HasPrefix(text, p) || strings.Contains(text, p) {
			return true
		}
	}
	return false
}
