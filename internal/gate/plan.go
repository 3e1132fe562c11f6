// Package gate decides, per group, whether a repository operation may run
// for an assignment, runs the allowed ones against a platform and
// aggregates the outcomes.
package gate

import (
	"fmt"
	"strings"

	"github.com/repo-edu/repo-edu-sub001/internal/platform"
	"github.com/repo-edu/repo-edu-sub001/internal/roster"
	"github.com/repo-edu/repo-edu-sub001/internal/validate"
)

// Operation is a repository operation the gate can run.
type Operation string

const (
	Create Operation = "create"
	Clone  Operation = "clone"
	Delete Operation = "delete"
)

// ParseOperation accepts create, clone or delete.
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(strings.ToLower(strings.TrimSpace(s))); op {
	case Create, Clone, Delete:
		return op, nil
	default:
		return "", fmt.Errorf("unknown operation %q", s)
	}
}

// Target is a group whose repository the gate will attempt to operate on.
type Target struct {
	GroupID   string
	GroupName string
	RepoName  string
	Spec      platform.RepoSpec
}

// SkippedGroup is a group the gate did not attempt, with the reason.
type SkippedGroup struct {
	GroupName string `json:"group_name"`
	Reason    string `json:"reason"`
}

// Plan is the per-group decision for one assignment.
type Plan struct {
	Assignment string
	Targets    []Target
	Skipped    []SkippedGroup
}

// PlanOptions tune how a plan is built.
type PlanOptions struct {
	// DefaultTemplate applies to assignments without a repo name template.
	DefaultTemplate string
	Private         bool
	Identity        validate.IdentityMode
	// IgnoreMemberIssues lets groups through whose only blocking issues
	// concern individual members. Groups flagged directly are still skipped.
	IgnoreMemberIssues bool
}

// NewPlan resolves the assignment's groups and splits them into targets and
// skipped groups using the blocking issues in vr.
func NewPlan(r *roster.Roster, a *roster.Assignment, vr validate.Result, opts PlanOptions) Plan {
	groups := roster.ResolveAssignmentGroups(r, a)
	members := r.MemberIndex()

	flaggedGroups := map[string]string{}
	flaggedMembers := map[string]string{}
	for _, is := range vr.Issues {
		if !is.Blocking() {
			continue
		}
		for _, id := range is.AffectedIDs {
			if is.Kind.AffectsMembers() {
				if _, ok := flaggedMembers[id]; !ok {
					flaggedMembers[id] = is.Kind.Title()
				}
				continue
			}
			if _, ok := flaggedGroups[id]; !ok {
				flaggedGroups[id] = groupReason(is)
			}
		}
	}

	plan := Plan{Assignment: a.Name}
	seen := map[string]bool{}
	for i := range groups {
		g := &groups[i]
		if seen[g.ID] {
			continue
		}
		seen[g.ID] = true

		if reason, ok := flaggedGroups[g.ID]; ok {
			plan.Skipped = append(plan.Skipped, SkippedGroup{GroupName: g.Name, Reason: reason})
			continue
		}
		if !opts.IgnoreMemberIssues {
			if reason, ok := memberReason(g, flaggedMembers, members); ok {
				plan.Skipped = append(plan.Skipped, SkippedGroup{GroupName: g.Name, Reason: reason})
				continue
			}
		}

		name := roster.RepoName(a, g, opts.DefaultTemplate, members)
		if name == "" {
			plan.Skipped = append(plan.Skipped, SkippedGroup{GroupName: g.Name, Reason: "empty repository name"})
			continue
		}
		plan.Targets = append(plan.Targets, Target{
			GroupID:   g.ID,
			GroupName: g.Name,
			RepoName:  name,
			Spec: platform.RepoSpec{
				Name:          name,
				Description:   fmt.Sprintf("%s: %s", a.Name, g.Name),
				Private:       opts.Private,
				Collaborators: collaborators(g, members, opts.Identity),
			},
		})
	}
	return plan
}

func groupReason(is validate.Issue) string {
	if is.Kind == validate.DuplicateRepoNameInAssignment {
		if is.Context == "" {
			return "empty repository name"
		}
		return fmt.Sprintf("%s (%s)", strings.ToLower(is.Kind.Title()), is.Context)
	}
	return strings.ToLower(is.Kind.Title())
}

// memberReason reports the first flagged member of g, in member order.
func memberReason(g *roster.Group, flagged map[string]string, members map[string]*roster.Member) (string, bool) {
	for _, id := range g.MemberIDs {
		title, ok := flagged[id]
		if !ok {
			continue
		}
		who := id
		if m, ok := members[id]; ok && m.Name != "" {
			who = m.Name
		}
		return fmt.Sprintf("%s: %s", strings.ToLower(title), who), true
	}
	return "", false
}

func collaborators(g *roster.Group, members map[string]*roster.Member, mode validate.IdentityMode) []platform.Collaborator {
	out := make([]platform.Collaborator, 0, len(g.MemberIDs))
	for _, id := range g.MemberIDs {
		m, ok := members[id]
		if !ok {
			continue
		}
		c := platform.Collaborator{Email: m.Email}
		if mode != validate.IdentityEmail {
			c.Username = m.GitUsername
		}
		out = append(out, c)
	}
	return out
}
