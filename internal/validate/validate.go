package validate

import (
	"fmt"
	"strings"

	"github.com/repo-edu/repo-edu-sub001/internal/ident"
	"github.com/repo-edu/repo-edu-sub001/internal/roster"
)

// IdentityMode says how repository provisioning maps people to platform accounts.
type IdentityMode string

const (
	// IdentityUsername requires every member to have a git username.
	IdentityUsername IdentityMode = "username"
	// IdentityEmail resolves members by email; a missing username is fine.
	IdentityEmail IdentityMode = "email"
)

// ParseIdentityMode accepts "username" or "email". The empty string means username.
func ParseIdentityMode(s string) (IdentityMode, error) {
	switch IdentityMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", IdentityUsername:
		return IdentityUsername, nil
	case IdentityEmail:
		return IdentityEmail, nil
	default:
		return "", fmt.Errorf("unknown identity mode %q (want username or email)", s)
	}
}

// Options tune assignment validation.
type Options struct {
	Identity IdentityMode
	// DefaultTemplate applies to assignments without a repo name template.
	DefaultTemplate string
}

// Assignment validates the groups of the assignment with the given ID or
// name. The only error is roster.ErrAssignmentNotFound.
func Assignment(r *roster.Roster, assignment string, opts Options) (Result, error) {
	a, err := r.LookupAssignment(assignment)
	if err != nil {
		return Result{}, err
	}
	return AssignmentGroups(r, a, roster.ResolveAssignmentGroups(r, a), opts), nil
}

// AssignmentGroups runs every assignment-level check over groups. All checks
// run; issues are ordered by kind, then by group and member order.
func AssignmentGroups(r *roster.Roster, a *roster.Assignment, groups []roster.Group, opts Options) Result {
	members := r.MemberIndex()
	distinct, duplicates := splitDuplicateGroups(groups)

	var issues []Issue
	issues = append(issues, checkEmptyGroups(distinct)...)
	issues = append(issues, duplicates...)
	issues = append(issues, checkRepoNames(a, distinct, opts.DefaultTemplate, members)...)
	issues = append(issues, checkMultipleGroups(distinct)...)
	issues = append(issues, checkOrphans(distinct, members)...)
	if opts.Identity != IdentityEmail {
		issues = append(issues, checkMemberField(distinct, members, MissingGitUsername, func(m *roster.Member) bool {
			return m.GitUsername == ""
		})...)
	}
	issues = append(issues, checkMemberField(distinct, members, InvalidGitUsername, func(m *roster.Member) bool {
		return m.GitUsernameStatus == roster.GitUsernameInvalid
	})...)
	return Result{Issues: nonNil(issues)}
}

// splitDuplicateGroups returns the groups with repeated IDs removed and one
// DuplicateGroupIDInAssignment issue per repeated ID.
func splitDuplicateGroups(groups []roster.Group) ([]roster.Group, []Issue) {
	seen := make(map[string]bool, len(groups))
	reported := map[string]bool{}
	distinct := make([]roster.Group, 0, len(groups))
	var issues []Issue
	for _, g := range groups {
		if !seen[g.ID] {
			seen[g.ID] = true
			distinct = append(distinct, g)
			continue
		}
		if !reported[g.ID] {
			reported[g.ID] = true
			issues = append(issues, Issue{Kind: DuplicateGroupIDInAssignment, AffectedIDs: []string{g.ID}})
		}
	}
	return distinct, issues
}

func checkEmptyGroups(groups []roster.Group) []Issue {
	var issues []Issue
	for _, g := range groups {
		if len(g.MemberIDs) == 0 {
			issues = append(issues, Issue{Kind: EmptyGroup, AffectedIDs: []string{g.ID}, Context: g.Name})
		}
	}
	return issues
}

func checkRepoNames(a *roster.Assignment, groups []roster.Group, fallback string, members map[string]*roster.Member) []Issue {
	var order []string
	byName := map[string][]string{}
	for i := range groups {
		name := roster.RepoName(a, &groups[i], fallback, members)
		if _, ok := byName[name]; !ok {
			order = append(order, name)
		}
		byName[name] = append(byName[name], groups[i].ID)
	}
	var issues []Issue
	for _, name := range order {
		if ids := byName[name]; len(ids) > 1 || name == "" {
			issues = append(issues, Issue{Kind: DuplicateRepoNameInAssignment, AffectedIDs: ids, Context: name})
		}
	}
	return issues
}

func checkMultipleGroups(groups []roster.Group) []Issue {
	var order []string
	in := map[string][]string{}
	for _, g := range groups {
		counted := map[string]bool{}
		for _, id := range g.MemberIDs {
			if counted[id] {
				continue
			}
			counted[id] = true
			if _, ok := in[id]; !ok {
				order = append(order, id)
			}
			in[id] = append(in[id], g.Name)
		}
	}
	var issues []Issue
	for _, id := range order {
		if len(in[id]) > 1 {
			issues = append(issues, Issue{
				Kind:        StudentInMultipleGroupsInAssignment,
				AffectedIDs: []string{id},
				Context:     strings.Join(in[id], ", "),
			})
		}
	}
	return issues
}

func checkOrphans(groups []roster.Group, members map[string]*roster.Member) []Issue {
	var issues []Issue
	for _, g := range groups {
		seen := map[string]bool{}
		for _, id := range g.MemberIDs {
			if _, ok := members[id]; ok || seen[id] {
				continue
			}
			seen[id] = true
			issues = append(issues, Issue{Kind: OrphanGroupMember, AffectedIDs: []string{id}, Context: g.Name})
		}
	}
	return issues
}

// checkMemberField reports each known member of the groups, once, for which bad holds.
func checkMemberField(groups []roster.Group, members map[string]*roster.Member, kind Kind, bad func(*roster.Member) bool) []Issue {
	var issues []Issue
	seen := map[string]bool{}
	for _, g := range groups {
		for _, id := range g.MemberIDs {
			m, ok := members[id]
			if !ok || seen[id] {
				continue
			}
			seen[id] = true
			if bad(m) {
				issues = append(issues, Issue{Kind: kind, AffectedIDs: []string{id}})
			}
		}
	}
	return issues
}

// Roster runs the roster-wide member checks. Duplicate emails are
// reported within students and within staff, never across the two: one
// person may be enrolled as both, and the Individual Students set already
// leaves out students who are also staff.
func Roster(r *roster.Roster) Result {
	var issues []Issue

	var order []string
	count := map[string]int{}
	for _, list := range [][]roster.Member{r.Students, r.Staff} {
		for _, m := range list {
			if count[m.ID] == 0 {
				order = append(order, m.ID)
			}
			count[m.ID]++
		}
	}
	for _, id := range order {
		if count[id] > 1 {
			issues = append(issues, Issue{Kind: DuplicateMemberID, AffectedIDs: []string{id}})
		}
	}

	for _, list := range [][]roster.Member{r.Students, r.Staff} {
		issues = append(issues, duplicateEmails(list)...)
	}

	for _, list := range [][]roster.Member{r.Students, r.Staff} {
		for _, m := range list {
			if m.Email != "" && !wellFormedEmail(m.Email) {
				issues = append(issues, Issue{Kind: InvalidEmail, AffectedIDs: []string{m.ID}, Context: m.Email})
			}
		}
	}
	return Result{Issues: nonNil(issues)}
}

// duplicateEmails groups members of one role list by normalized email.
func duplicateEmails(list []roster.Member) []Issue {
	var order []string
	byEmail := map[string][]string{}
	for _, m := range list {
		e := ident.NormalizeEmail(m.Email)
		if e == "" {
			continue
		}
		if _, ok := byEmail[e]; !ok {
			order = append(order, e)
		}
		byEmail[e] = append(byEmail[e], m.ID)
	}
	var issues []Issue
	for _, e := range order {
		if ids := byEmail[e]; len(ids) > 1 {
			issues = append(issues, Issue{Kind: DuplicateEmail, AffectedIDs: ids, Context: e})
		}
	}
	return issues
}

func wellFormedEmail(s string) bool {
	if strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	local, domain, ok := strings.Cut(s, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return false
	}
	return !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}

func nonNil(issues []Issue) []Issue {
	if issues == nil {
		return []Issue{}
	}
	return issues
}
