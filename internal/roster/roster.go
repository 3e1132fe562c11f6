package roster

import (
	"errors"
	"fmt"
	"strings"

	"github.com/repo-edu/repo-edu-sub001/internal/ident"
)

var (
	// ErrAssignmentNotFound indicates no assignment has the requested ID or name.
	ErrAssignmentNotFound = errors.New("assignment not found")

	// ErrDuplicateAssignment indicates an assignment name is already taken.
	ErrDuplicateAssignment = errors.New("assignment already exists")

	// ErrGroupSetNotFound indicates no group set has the requested ID or name.
	ErrGroupSetNotFound = errors.New("group set not found")

	// ErrGroupNotFound indicates no group has the requested ID or name.
	ErrGroupNotFound = errors.New("group not found")

	// ErrMemberNotFound indicates no student or staff member has the requested ID.
	ErrMemberNotFound = errors.New("member not found")

	// ErrSystemGroupSet indicates an edit that system group sets do not allow.
	ErrSystemGroupSet = errors.New("system group sets are managed automatically")
)

// New returns an empty roster.
func New() *Roster {
	return &Roster{
		Version:     CurrentVersion,
		Students:    []Member{},
		Staff:       []Member{},
		GroupSets:   []GroupSet{},
		Assignments: []Assignment{},
	}
}

// NewMember builds a member from a draft, assigning it a fresh ID.
func NewMember(d MemberDraft) Member {
	status := d.Status
	if status == "" {
		status = StatusActive
	}
	m := Member{
		ID:            ident.NewID(),
		Name:          strings.TrimSpace(d.Name),
		Email:         ident.NormalizeEmail(d.Email),
		StudentNumber: strings.TrimSpace(d.StudentNumber),
		GitUsername:   ident.NormalizeGitUsername(d.GitUsername),
		Status:        status,
		LMSUserID:     strings.TrimSpace(d.LMSUserID),
	}
	if len(d.CustomFields) > 0 {
		m.CustomFields = make(map[string]string, len(d.CustomFields))
		for k, v := range d.CustomFields {
			m.CustomFields[k] = v
		}
	}
	return m
}

// Members returns the member list for a role.
func (r *Roster) Members(role Role) []Member {
	if role == RoleStaff {
		return r.Staff
	}
	return r.Students
}

// membersPtr returns a pointer to the member list for a role.
func (r *Roster) membersPtr(role Role) *[]Member {
	if role == RoleStaff {
		return &r.Staff
	}
	return &r.Students
}

// AppendMember adds m to the list for role and returns a pointer to the stored copy.
func (r *Roster) AppendMember(role Role, m Member) *Member {
	list := r.membersPtr(role)
	*list = append(*list, m)
	return &(*list)[len(*list)-1]
}

// FindMember looks a member up by ID among students, then staff.
func (r *Roster) FindMember(id string) (*Member, Role, bool) {
	for i := range r.Students {
		if r.Students[i].ID == id {
			return &r.Students[i], RoleStudent, true
		}
	}
	for i := range r.Staff {
		if r.Staff[i].ID == id {
			return &r.Staff[i], RoleStaff, true
		}
	}
	return nil, "", false
}

// MemberIndex maps every member ID to its member.
func (r *Roster) MemberIndex() map[string]*Member {
	idx := make(map[string]*Member, len(r.Students)+len(r.Staff))
	for i := range r.Students {
		idx[r.Students[i].ID] = &r.Students[i]
	}
	for i := range r.Staff {
		idx[r.Staff[i].ID] = &r.Staff[i]
	}
	return idx
}

// RemoveMember deletes a member and strips its ID from every group.
// This is an explicit user action; import never removes members.
func (r *Roster) RemoveMember(id string) error {
	_, role, ok := r.FindMember(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMemberNotFound, id)
	}
	list := r.membersPtr(role)
	for i := range *list {
		if (*list)[i].ID == id {
			*list = append((*list)[:i], (*list)[i+1:]...)
			break
		}
	}
	for si := range r.GroupSets {
		for gi := range r.GroupSets[si].Groups {
			g := &r.GroupSets[si].Groups[gi]
			g.MemberIDs = removeString(g.MemberIDs, id)
		}
	}
	return nil
}

// GroupSetByID returns the group set with the given ID.
func (r *Roster) GroupSetByID(id string) (*GroupSet, bool) {
	for i := range r.GroupSets {
		if r.GroupSets[i].ID == id {
			return &r.GroupSets[i], true
		}
	}
	return nil, false
}

// GroupSetByName returns the first group set whose name matches, ignoring case.
func (r *Roster) GroupSetByName(name string) (*GroupSet, bool) {
	for i := range r.GroupSets {
		if strings.EqualFold(r.GroupSets[i].Name, name) {
			return &r.GroupSets[i], true
		}
	}
	return nil, false
}

// LookupGroupSet resolves a group set by ID first, then by name.
func (r *Roster) LookupGroupSet(key string) (*GroupSet, error) {
	if gs, ok := r.GroupSetByID(key); ok {
		return gs, nil
	}
	if gs, ok := r.GroupSetByName(key); ok {
		return gs, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrGroupSetNotFound, key)
}

// groupSetOfKind returns the first group set of a system kind.
func (r *Roster) groupSetOfKind(kind GroupSetKind) (*GroupSet, bool) {
	for i := range r.GroupSets {
		if r.GroupSets[i].Kind == kind {
			return &r.GroupSets[i], true
		}
	}
	return nil, false
}

// AddGroupSet creates an empty local group set.
func (r *Roster) AddGroupSet(name string) *GroupSet {
	r.GroupSets = append(r.GroupSets, GroupSet{
		ID:     ident.NewID(),
		Name:   strings.TrimSpace(name),
		Kind:   KindLocal,
		Groups: []Group{},
	})
	return &r.GroupSets[len(r.GroupSets)-1]
}

// FindGroup locates a group by ID inside a group set.
func (gs *GroupSet) FindGroup(id string) (*Group, bool) {
	for i := range gs.Groups {
		if gs.Groups[i].ID == id {
			return &gs.Groups[i], true
		}
	}
	return nil, false
}

// LookupGroup resolves a group by ID first, then by name (case-insensitive).
func (gs *GroupSet) LookupGroup(key string) (*Group, error) {
	if g, ok := gs.FindGroup(key); ok {
		return g, nil
	}
	for i := range gs.Groups {
		if strings.EqualFold(gs.Groups[i].Name, key) {
			return &gs.Groups[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, key)
}

// AddGroup appends a new group to a non-system group set.
func (gs *GroupSet) AddGroup(name string, memberIDs ...string) (*Group, error) {
	if gs.Kind.IsSystem() {
		return nil, ErrSystemGroupSet
	}
	g := Group{
		ID:        ident.NewID(),
		Name:      strings.TrimSpace(name),
		MemberIDs: dedupe(memberIDs),
	}
	gs.Groups = append(gs.Groups, g)
	return &gs.Groups[len(gs.Groups)-1], nil
}

// RenameGroup changes a group's display name.
func (gs *GroupSet) RenameGroup(id, name string) error {
	if gs.Kind.IsSystem() {
		return ErrSystemGroupSet
	}
	g, ok := gs.FindGroup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, id)
	}
	g.Name = strings.TrimSpace(name)
	return nil
}

// AddGroupMember adds memberID to the group unless it is already present.
func (gs *GroupSet) AddGroupMember(groupID, memberID string) error {
	if gs.Kind.IsSystem() {
		return ErrSystemGroupSet
	}
	g, ok := gs.FindGroup(groupID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
	}
	if !g.HasMember(memberID) {
		g.MemberIDs = append(g.MemberIDs, memberID)
	}
	return nil
}

// RemoveGroupMember drops memberID from the group.
func (gs *GroupSet) RemoveGroupMember(groupID, memberID string) error {
	if gs.Kind.IsSystem() {
		return ErrSystemGroupSet
	}
	g, ok := gs.FindGroup(groupID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
	}
	g.MemberIDs = removeString(g.MemberIDs, memberID)
	return nil
}

// AssignmentByID returns the assignment with the given ID.
func (r *Roster) AssignmentByID(id string) (*Assignment, bool) {
	for i := range r.Assignments {
		if r.Assignments[i].ID == id {
			return &r.Assignments[i], true
		}
	}
	return nil, false
}

// AssignmentByName returns the assignment with the given name, ignoring case.
func (r *Roster) AssignmentByName(name string) (*Assignment, bool) {
	for i := range r.Assignments {
		if strings.EqualFold(r.Assignments[i].Name, strings.TrimSpace(name)) {
			return &r.Assignments[i], true
		}
	}
	return nil, false
}

// LookupAssignment resolves an assignment by ID first, then by name.
func (r *Roster) LookupAssignment(key string) (*Assignment, error) {
	if a, ok := r.AssignmentByID(key); ok {
		return a, nil
	}
	if a, ok := r.AssignmentByName(key); ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrAssignmentNotFound, key)
}

// AddAssignment registers a new assignment. Names are unique within a roster.
func (r *Roster) AddAssignment(a Assignment) (*Assignment, error) {
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		return nil, fmt.Errorf("assignment name cannot be empty")
	}
	if _, exists := r.AssignmentByName(a.Name); exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateAssignment, a.Name)
	}
	if a.ID == "" {
		a.ID = ident.NewID()
	}
	if a.Type == "" {
		a.Type = AssignmentGroup
	}
	r.Assignments = append(r.Assignments, a)
	return &r.Assignments[len(r.Assignments)-1], nil
}

// RemoveAssignment deletes an assignment by ID.
func (r *Roster) RemoveAssignment(id string) error {
	for i := range r.Assignments {
		if r.Assignments[i].ID == id {
			r.Assignments = append(r.Assignments[:i], r.Assignments[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrAssignmentNotFound, id)
}

// Clone returns a deep copy, so callers can validate or mutate a snapshot
// without aliasing another caller's roster.
func (r *Roster) Clone() *Roster {
	out := &Roster{
		Version:     r.Version,
		Students:    cloneMembers(r.Students),
		Staff:       cloneMembers(r.Staff),
		GroupSets:   make([]GroupSet, len(r.GroupSets)),
		Assignments: append([]Assignment{}, r.Assignments...),
	}
	if r.Connection != nil {
		c := *r.Connection
		out.Connection = &c
	}
	for i, gs := range r.GroupSets {
		groups := make([]Group, len(gs.Groups))
		for j, g := range gs.Groups {
			if g.MemberIDs != nil {
				g.MemberIDs = append([]string{}, g.MemberIDs...)
			}
			groups[j] = g
		}
		if gs.Groups != nil {
			gs.Groups = groups
		}
		out.GroupSets[i] = gs
	}
	return out
}

func cloneMembers(in []Member) []Member {
	out := make([]Member, len(in))
	for i, m := range in {
		if m.CustomFields != nil {
			fields := make(map[string]string, len(m.CustomFields))
			for k, v := range m.CustomFields {
				fields[k] = v
			}
			m.CustomFields = fields
		}
		out[i] = m
	}
	return out
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
