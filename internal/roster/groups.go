package roster

import (
	"encoding/json"

	"github.com/repo-edu/repo-edu-sub001/internal/ident"
)

// Display names of the system group sets.
const (
	IndividualStudentsSetName = "Individual Students"
	StaffSetName              = "Staff"
	StaffGroupName            = "Staff"
)

// ResolveAssignmentGroups returns the groups of the assignment's group set in
// stored order. A missing group set yields an empty list.
func ResolveAssignmentGroups(r *Roster, a *Assignment) []Group {
	if r == nil || a == nil {
		return nil
	}
	gs, ok := r.GroupSetByID(a.GroupSetID)
	if !ok {
		return []Group{}
	}
	return gs.Groups
}

// EnsureSystemGroupSets brings the system group sets in line with the
// current member lists and reports whether anything changed:
//
//   - the individual-students set holds one singleton group per active
//     student who is not also staff, in student order; existing singleton
//     groups keep their IDs
//   - the staff set holds a single group with every active staff member
//   - duplicate system sets are dropped and assignments pointing at them
//     are moved to the surviving set
//
// Calling it again without changing members is a no-op.
func EnsureSystemGroupSets(r *Roster) bool {
	before := systemFingerprint(r)

	individualID := r.collapseSystemSets(KindIndividualStudents, IndividualStudentsSetName)
	staffID := r.collapseSystemSets(KindStaff, StaffSetName)

	individual, _ := r.GroupSetByID(individualID)
	individual.Groups = r.individualGroups(individual.Groups)
	staff, _ := r.GroupSetByID(staffID)
	staff.Groups = r.staffGroups(staff.Groups)

	return systemFingerprint(r) != before
}

func systemFingerprint(r *Roster) string {
	b, _ := json.Marshal(struct {
		GroupSets   []GroupSet
		Assignments []Assignment
	}{r.GroupSets, r.Assignments})
	return string(b)
}

// collapseSystemSets keeps the first set of kind (creating one if needed),
// drops the rest, and returns the survivor's ID.
func (r *Roster) collapseSystemSets(kind GroupSetKind, name string) string {
	var keepID string
	kept := r.GroupSets[:0]
	dropped := map[string]bool{}
	for _, gs := range r.GroupSets {
		if gs.Kind != kind {
			kept = append(kept, gs)
			continue
		}
		if keepID == "" {
			keepID = gs.ID
			kept = append(kept, gs)
			continue
		}
		dropped[gs.ID] = true
	}
	r.GroupSets = kept

	if keepID == "" {
		r.GroupSets = append(r.GroupSets, GroupSet{
			ID:     ident.NewID(),
			Name:   name,
			Kind:   kind,
			Groups: []Group{},
		})
		keepID = r.GroupSets[len(r.GroupSets)-1].ID
	}
	for i := range r.Assignments {
		if dropped[r.Assignments[i].GroupSetID] {
			r.Assignments[i].GroupSetID = keepID
		}
	}
	return keepID
}

func (r *Roster) individualGroups(existing []Group) []Group {
	staffIDs := make(map[string]bool, len(r.Staff))
	staffEmails := make(map[string]bool, len(r.Staff))
	for _, m := range r.Staff {
		staffIDs[m.ID] = true
		if m.Email != "" {
			staffEmails[ident.NormalizeEmail(m.Email)] = true
		}
	}

	bySingleMember := make(map[string]Group, len(existing))
	for _, g := range existing {
		if len(g.MemberIDs) != 1 {
			continue
		}
		if _, seen := bySingleMember[g.MemberIDs[0]]; !seen {
			bySingleMember[g.MemberIDs[0]] = g
		}
	}

	groups := make([]Group, 0, len(r.Students))
	for _, s := range r.Students {
		if !s.IsActive() || staffIDs[s.ID] || staffEmails[ident.NormalizeEmail(s.Email)] {
			continue
		}
		g, ok := bySingleMember[s.ID]
		if !ok {
			g = Group{ID: ident.NewID()}
		}
		g.Name = s.Name
		g.MemberIDs = []string{s.ID}
		g.LMSGroupID = ""
		groups = append(groups, g)
	}
	return groups
}

func (r *Roster) staffGroups(existing []Group) []Group {
	g := Group{ID: ident.NewID()}
	if len(existing) > 0 {
		g.ID = existing[0].ID
	}
	g.Name = StaffGroupName
	g.MemberIDs = make([]string, 0, len(r.Staff))
	for _, m := range r.Staff {
		if m.IsActive() {
			g.MemberIDs = append(g.MemberIDs, m.ID)
		}
	}
	return []Group{g}
}
