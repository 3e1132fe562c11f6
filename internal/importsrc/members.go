// Package importsrc turns spreadsheet files (CSV and XLSX) into roster
// drafts. Columns are matched by normalized header name.
package importsrc

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/repo-edu/repo-edu-sub001/internal/ident"
	"github.com/repo-edu/repo-edu-sub001/internal/roster"
)

// Field is a member attribute a column can map to.
type Field string

const (
	FieldName          Field = "name"
	FieldFirstName     Field = "first_name"
	FieldLastName      Field = "last_name"
	FieldEmail         Field = "email"
	FieldStudentNumber Field = "student_number"
	FieldGitUsername   Field = "git_username"
	FieldLMSUserID     Field = "lms_user_id"
	FieldRole          Field = "role"
	FieldStatus        Field = "status"
	FieldGroup         Field = "group"
)

// headerAliases maps normalized headers to fields.
var headerAliases = map[string]Field{
	"name":            FieldName,
	"full_name":       FieldName,
	"student_name":    FieldName,
	"first_name":      FieldFirstName,
	"given_name":      FieldFirstName,
	"firstname":       FieldFirstName,
	"last_name":       FieldLastName,
	"family_name":     FieldLastName,
	"surname":         FieldLastName,
	"lastname":        FieldLastName,
	"email":           FieldEmail,
	"e_mail":          FieldEmail,
	"email_address":   FieldEmail,
	"mail":            FieldEmail,
	"student_number":  FieldStudentNumber,
	"student_id":      FieldStudentNumber,
	"student_no":      FieldStudentNumber,
	"sis_user_id":     FieldStudentNumber,
	"git_username":    FieldGitUsername,
	"github":          FieldGitUsername,
	"github_username": FieldGitUsername,
	"gitlab_username": FieldGitUsername,
	"username":        FieldGitUsername,
	"lms_id":          FieldLMSUserID,
	"lms_user_id":     FieldLMSUserID,
	"canvas_id":       FieldLMSUserID,
	"user_id":         FieldLMSUserID,
	"role":            FieldRole,
	"status":          FieldStatus,
	"group":           FieldGroup,
	"group_name":      FieldGroup,
	"team":            FieldGroup,
}

// Table is a decoded sheet: a header row and data rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// columns maps each header position to a known field, or to a custom field
// key for unknown headers.
type columns struct {
	fields []Field
	custom []string
}

func mapColumns(header []string) columns {
	c := columns{fields: make([]Field, len(header)), custom: make([]string, len(header))}
	seen := map[Field]bool{}
	for i, h := range header {
		key := ident.NormalizeHeader(h)
		if f, ok := headerAliases[key]; ok && !seen[f] {
			c.fields[i] = f
			seen[f] = true
			continue
		}
		c.custom[i] = key
	}
	return c
}

func (c columns) has(f Field) bool {
	for _, x := range c.fields {
		if x == f {
			return true
		}
	}
	return false
}

// RowError is a problem with one data row. Rows are numbered from 1 with
// the header as row 1, matching spreadsheet numbering.
type RowError struct {
	Row     int
	Message string
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// Members converts t into member drafts. Rows that are entirely blank are
// skipped. Role and status cells that cannot be parsed are reported in the
// returned row errors and the row is still imported with defaults.
func Members(t Table) ([]roster.MemberDraft, []RowError, error) {
	cols := mapColumns(t.Header)
	if !cols.has(FieldEmail) {
		return nil, nil, fmt.Errorf("no email column in header %v", t.Header)
	}
	if !cols.has(FieldName) && !cols.has(FieldFirstName) && !cols.has(FieldLastName) {
		return nil, nil, fmt.Errorf("no name column in header %v", t.Header)
	}

	var drafts []roster.MemberDraft
	var rowErrs []RowError
	for r, row := range t.Rows {
		if blank(row) {
			continue
		}
		d := roster.MemberDraft{}
		var first, last string
		for i, cell := range row {
			if i >= len(cols.fields) {
				break
			}
			cell = strings.TrimSpace(cell)
			switch cols.fields[i] {
			case FieldName:
				d.Name = cell
			case FieldFirstName:
				first = cell
			case FieldLastName:
				last = cell
			case FieldEmail:
				d.Email = cell
			case FieldStudentNumber:
				d.StudentNumber = cell
			case FieldGitUsername:
				d.GitUsername = cell
			case FieldLMSUserID:
				d.LMSUserID = cell
			case FieldRole:
				role, err := parseRole(cell)
				if err != nil {
					rowErrs = append(rowErrs, RowError{Row: r + 2, Message: err.Error()})
				}
				d.Role = role
			case FieldStatus:
				status, err := parseStatus(cell)
				if err != nil {
					rowErrs = append(rowErrs, RowError{Row: r + 2, Message: err.Error()})
				}
				d.Status = status
			case FieldGroup:
			default:
				if key := cols.custom[i]; key != "" && cell != "" {
					if d.CustomFields == nil {
						d.CustomFields = map[string]string{}
					}
					d.CustomFields[key] = cell
				}
			}
		}
		if d.Name == "" {
			d.Name = strings.TrimSpace(first + " " + last)
		}
		drafts = append(drafts, d)
	}
	return drafts, rowErrs, nil
}

// Groups converts t into a group set draft. Each row names a group and a
// member (by email or LMS user ID); rows for the same group accumulate in
// first-seen order.
func Groups(t Table, setName string) (roster.GroupSetDraft, error) {
	cols := mapColumns(t.Header)
	if !cols.has(FieldGroup) {
		return roster.GroupSetDraft{}, fmt.Errorf("no group column in header %v", t.Header)
	}
	if !cols.has(FieldEmail) && !cols.has(FieldLMSUserID) {
		return roster.GroupSetDraft{}, fmt.Errorf("no email or lms id column in header %v", t.Header)
	}

	set := roster.GroupSetDraft{Name: setName}
	index := map[string]int{}
	for _, row := range t.Rows {
		if blank(row) {
			continue
		}
		var group, email, lmsID string
		for i, cell := range row {
			if i >= len(cols.fields) {
				break
			}
			switch cols.fields[i] {
			case FieldGroup:
				group = strings.TrimSpace(cell)
			case FieldEmail:
				email = strings.TrimSpace(cell)
			case FieldLMSUserID:
				lmsID = strings.TrimSpace(cell)
			}
		}
		if group == "" {
			continue
		}
		pos, ok := index[strings.ToLower(group)]
		if !ok {
			set.Groups = append(set.Groups, roster.GroupDraft{Name: group})
			pos = len(set.Groups) - 1
			index[strings.ToLower(group)] = pos
		}
		g := &set.Groups[pos]
		if lmsID != "" {
			g.MemberLMSIDs = append(g.MemberLMSIDs, lmsID)
		}
		if email != "" {
			g.MemberEmails = append(g.MemberEmails, email)
		}
	}
	return set, nil
}

func parseRole(s string) (roster.Role, error) {
	switch strings.ToLower(s) {
	case "", "student", "learner":
		return roster.RoleStudent, nil
	case "staff", "teacher", "instructor", "ta", "teaching_assistant", "teaching assistant":
		return roster.RoleStaff, nil
	default:
		return roster.RoleStudent, fmt.Errorf("unknown role %q, treating as student", s)
	}
}

func parseStatus(s string) (roster.MemberStatus, error) {
	switch strings.ToLower(s) {
	case "", "active", "enrolled":
		return roster.StatusActive, nil
	case "inactive", "dropped", "withdrawn", "completed":
		return roster.StatusInactive, nil
	default:
		return roster.StatusActive, fmt.Errorf("unknown status %q, treating as active", s)
	}
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ExpandPaths resolves glob patterns (including **) into a sorted,
// de-duplicated list of files. Arguments without glob syntax are returned
// as-is so a missing file still surfaces as an open error.
func ExpandPaths(args []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, arg := range args {
		if !strings.ContainsAny(arg, "*?[{") {
			if !seen[arg] {
				seen[arg] = true
				out = append(out, arg)
			}
			continue
		}
		matches, err := doublestar.FilepathGlob(arg)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("pattern %q matched no files", arg)
		}
		sort.Strings(matches)
		for _, m := range matches {
			m = filepath.Clean(m)
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}
