// Package validate checks an assignment's groups, and the roster as a
// whole, before repositories are created, cloned or deleted. Problems are
// returned as data; the checks themselves never fail.
package validate

import (
	"fmt"
	"strings"

	"github.com/repo-edu/repo-edu-sub001/internal/roster"
)

// Kind is the closed set of validation issue kinds. The declaration order
// is the order in which issues are reported.
type Kind int

const (
	EmptyGroup Kind = iota
	DuplicateGroupIDInAssignment
	DuplicateRepoNameInAssignment
	StudentInMultipleGroupsInAssignment
	OrphanGroupMember
	MissingGitUsername
	InvalidGitUsername

	// Roster-wide kinds.
	DuplicateMemberID
	DuplicateEmail
	InvalidEmail
)

type kindInfo struct {
	code     string
	title    string
	blocking bool
	// members is true when AffectedIDs hold member IDs, false for group IDs.
	members bool
}

var kinds = map[Kind]kindInfo{
	EmptyGroup:                          {"empty_group", "Empty group", true, false},
	DuplicateGroupIDInAssignment:        {"duplicate_group_id_in_assignment", "Group listed twice", true, false},
	DuplicateRepoNameInAssignment:       {"duplicate_repo_name_in_assignment", "Repository name collision", true, false},
	StudentInMultipleGroupsInAssignment: {"student_in_multiple_groups_in_assignment", "Member in several groups", true, true},
	OrphanGroupMember:                   {"orphan_group_member", "Unknown group member", true, true},
	MissingGitUsername:                  {"missing_git_username", "Missing git username", true, true},
	InvalidGitUsername:                  {"invalid_git_username", "Invalid git username", true, true},
	DuplicateMemberID:                   {"duplicate_member_id", "Duplicate member ID", true, true},
	DuplicateEmail:                      {"duplicate_email", "Duplicate email", true, true},
	InvalidEmail:                        {"invalid_email", "Malformed email", false, true},
}

// String returns the stable machine-readable code of k.
func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.code
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Title returns a short human-readable label for k.
func (k Kind) Title() string {
	return kinds[k].title
}

// Blocking reports whether issues of this kind must stop an operation.
func (k Kind) Blocking() bool {
	return kinds[k].blocking
}

// AffectsMembers reports whether AffectedIDs of this kind are member IDs.
func (k Kind) AffectsMembers() bool {
	return kinds[k].members
}

// MarshalText encodes k as its code.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a code produced by MarshalText.
func (k *Kind) UnmarshalText(b []byte) error {
	for kind, info := range kinds {
		if info.code == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown issue kind %q", string(b))
}

// Issue is one validation finding.
type Issue struct {
	Kind        Kind     `json:"kind"`
	AffectedIDs []string `json:"affected_ids"`
	Context     string   `json:"context,omitempty"`
}

// Blocking reports whether the issue must stop an operation.
func (i Issue) Blocking() bool {
	return i.Kind.Blocking()
}

// Message renders the issue for people, resolving IDs to names against r.
func (i Issue) Message(r *roster.Roster) string {
	names := i.affectedNames(r)
	switch i.Kind {
	case EmptyGroup:
		return fmt.Sprintf("group %s has no members", names)
	case DuplicateGroupIDInAssignment:
		return fmt.Sprintf("group %s is listed more than once", names)
	case DuplicateRepoNameInAssignment:
		if i.Context == "" {
			return fmt.Sprintf("group %s has an empty repository name", names)
		}
		return fmt.Sprintf("groups %s would all use repository %q", names, i.Context)
	case StudentInMultipleGroupsInAssignment:
		return fmt.Sprintf("%s belongs to several groups: %s", names, i.Context)
	case OrphanGroupMember:
		return fmt.Sprintf("group %s references unknown member %s", i.Context, strings.Join(i.AffectedIDs, ", "))
	case MissingGitUsername:
		return fmt.Sprintf("%s has no git username", names)
	case InvalidGitUsername:
		return fmt.Sprintf("%s has a git username that does not exist on the platform", names)
	case DuplicateMemberID:
		return fmt.Sprintf("member ID %s is used more than once", strings.Join(i.AffectedIDs, ", "))
	case DuplicateEmail:
		return fmt.Sprintf("%s share the email %s", names, i.Context)
	case InvalidEmail:
		return fmt.Sprintf("%s has a malformed email %q", names, i.Context)
	default:
		return i.Kind.String()
	}
}

func (i Issue) affectedNames(r *roster.Roster) string {
	parts := make([]string, 0, len(i.AffectedIDs))
	for _, id := range i.AffectedIDs {
		parts = append(parts, displayName(r, id, i.Kind.AffectsMembers()))
	}
	return strings.Join(parts, ", ")
}

func displayName(r *roster.Roster, id string, member bool) string {
	if r == nil {
		return id
	}
	if member {
		if m, _, ok := r.FindMember(id); ok && m.Name != "" {
			return m.Name
		}
		return id
	}
	for _, gs := range r.GroupSets {
		for _, g := range gs.Groups {
			if g.ID == id && g.Name != "" {
				return fmt.Sprintf("%q", g.Name)
			}
		}
	}
	return id
}

// Result is the ordered list of issues found by one validation pass.
type Result struct {
	Issues []Issue `json:"issues"`
}

// HasBlockingIssues reports whether any issue is blocking.
func (r Result) HasBlockingIssues() bool {
	for _, i := range r.Issues {
		if i.Blocking() {
			return true
		}
	}
	return false
}

// OK reports whether no issues were found at all.
func (r Result) OK() bool {
	return len(r.Issues) == 0
}

// Count returns the number of issues of kind k.
func (r Result) Count(k Kind) int {
	n := 0
	for _, i := range r.Issues {
		if i.Kind == k {
			n++
		}
	}
	return n
}
