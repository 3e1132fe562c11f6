// Package roster holds the persisted model of one course: its members,
// group sets, groups and assignments. Everything outside the roster refers
// to members and groups by ID only and re-resolves them against the current
// roster.
package roster

import "time"

// CurrentVersion is the schema version written by this package.
const CurrentVersion = 1

// Role distinguishes the two member lists of a roster.
type Role string

const (
	RoleStudent Role = "student"
	RoleStaff   Role = "staff"
)

// MemberStatus is the enrollment state of a member.
type MemberStatus string

const (
	StatusActive   MemberStatus = "active"
	StatusInactive MemberStatus = "inactive"
)

// GitUsernameStatus records the outcome of the last username verification.
// Only verification changes it; import resets it to unknown when the
// username itself changes.
type GitUsernameStatus string

const (
	GitUsernameUnknown  GitUsernameStatus = ""
	GitUsernameVerified GitUsernameStatus = "verified"
	GitUsernameInvalid  GitUsernameStatus = "invalid"
)

// GroupSetKind tags where a group set comes from.
type GroupSetKind string

const (
	// KindIndividualStudents is the system set with one group per active student.
	KindIndividualStudents GroupSetKind = "system_individual_students"
	// KindStaff is the system set with a single group holding all staff.
	KindStaff GroupSetKind = "system_staff"
	// KindImported is a set imported from an LMS or a spreadsheet.
	KindImported GroupSetKind = "imported"
	// KindLocal is a set created by hand.
	KindLocal GroupSetKind = "local"
)

// IsSystem reports whether sets of this kind are regenerated by EnsureSystemGroupSets.
func (k GroupSetKind) IsSystem() bool {
	return k == KindIndividualStudents || k == KindStaff
}

// AssignmentType describes how an assignment's repositories map to people.
type AssignmentType string

const (
	AssignmentIndividual AssignmentType = "individual"
	AssignmentGroup      AssignmentType = "group"
)

// LMSKind identifies the learning-management system a roster came from.
type LMSKind string

const (
	LMSNone   LMSKind = ""
	LMSCanvas LMSKind = "canvas"
	LMSNRPS   LMSKind = "nrps"
)

// Member is a student or a staff member.
type Member struct {
	// ID is assigned once at creation and never regenerated.
	ID                string            `json:"id" yaml:"id"`
	Name              string            `json:"name" yaml:"name"`
	Email             string            `json:"email" yaml:"email"`
	StudentNumber     string            `json:"student_number,omitempty" yaml:"student_number,omitempty"`
	GitUsername       string            `json:"git_username,omitempty" yaml:"git_username,omitempty"`
	GitUsernameStatus GitUsernameStatus `json:"git_username_status,omitempty" yaml:"git_username_status,omitempty"`
	Status            MemberStatus      `json:"status" yaml:"status"`
	LMSUserID         string            `json:"lms_user_id,omitempty" yaml:"lms_user_id,omitempty"`
	CustomFields      map[string]string `json:"custom_fields,omitempty" yaml:"custom_fields,omitempty"`
}

// IsActive reports whether the member counts as enrolled. An empty status is active.
func (m *Member) IsActive() bool {
	return m.Status != StatusInactive
}

// Group is a named, ordered set of member IDs inside one group set.
type Group struct {
	ID         string   `json:"id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	MemberIDs  []string `json:"member_ids" yaml:"member_ids"`
	LMSGroupID string   `json:"lms_group_id,omitempty" yaml:"lms_group_id,omitempty"`
}

// HasMember reports whether id appears in the group's member list.
func (g *Group) HasMember(id string) bool {
	for _, m := range g.MemberIDs {
		if m == id {
			return true
		}
	}
	return false
}

// GroupSet is an ordered collection of groups.
type GroupSet struct {
	ID            string       `json:"id" yaml:"id"`
	Name          string       `json:"name" yaml:"name"`
	Kind          GroupSetKind `json:"kind" yaml:"kind"`
	LMSGroupSetID string       `json:"lms_group_set_id,omitempty" yaml:"lms_group_set_id,omitempty"`
	Groups        []Group      `json:"groups" yaml:"groups"`
}

// Assignment is a unit of work with one repository per group of its group set.
type Assignment struct {
	ID               string         `json:"id" yaml:"id"`
	Name             string         `json:"name" yaml:"name"`
	Description      string         `json:"description,omitempty" yaml:"description,omitempty"`
	Type             AssignmentType `json:"assignment_type" yaml:"assignment_type"`
	GroupSetID       string         `json:"group_set_id" yaml:"group_set_id"`
	RepoNameTemplate string         `json:"repo_name_template,omitempty" yaml:"repo_name_template,omitempty"`
}

// Connection records which LMS course produced the roster data.
type Connection struct {
	Kind       LMSKind   `json:"kind" yaml:"kind"`
	BaseURL    string    `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	CourseID   string    `json:"course_id" yaml:"course_id"`
	CourseName string    `json:"course_name,omitempty" yaml:"course_name,omitempty"`
	LastSync   time.Time `json:"last_sync,omitempty" yaml:"last_sync,omitempty"`
}

// Roster is the aggregate root for one profile.
type Roster struct {
	Version     int          `json:"version" yaml:"version"`
	Connection  *Connection  `json:"connection,omitempty" yaml:"connection,omitempty"`
	Students    []Member     `json:"students" yaml:"students"`
	Staff       []Member     `json:"staff" yaml:"staff"`
	GroupSets   []GroupSet   `json:"group_sets" yaml:"group_sets"`
	Assignments []Assignment `json:"assignments" yaml:"assignments"`
}

// MemberDraft is a freshly imported member record, not yet reconciled.
type MemberDraft struct {
	Name          string            `json:"name"`
	Email         string            `json:"email"`
	StudentNumber string            `json:"student_number,omitempty"`
	GitUsername   string            `json:"git_username,omitempty"`
	LMSUserID     string            `json:"lms_user_id,omitempty"`
	Role          Role              `json:"role,omitempty"`
	Status        MemberStatus      `json:"status,omitempty"`
	CustomFields  map[string]string `json:"custom_fields,omitempty"`
}

// GroupDraft is an imported group whose members are referenced by LMS user
// ID or by email, to be resolved against the roster.
type GroupDraft struct {
	Name         string   `json:"name"`
	LMSGroupID   string   `json:"lms_group_id,omitempty"`
	MemberLMSIDs []string `json:"member_lms_ids,omitempty"`
	MemberEmails []string `json:"member_emails,omitempty"`
}

// GroupSetDraft is an imported group set.
type GroupSetDraft struct {
	Name          string       `json:"name"`
	LMSGroupSetID string       `json:"lms_group_set_id,omitempty"`
	Groups        []GroupDraft `json:"groups"`
}
