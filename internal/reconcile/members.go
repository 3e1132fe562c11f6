// Package reconcile merges imported member and group data into an existing
// roster. Import is additive: members and groups missing from a batch are
// never removed.
package reconcile

import (
	"strings"

	"github.com/repo-edu/repo-edu-sub001/internal/ident"
	"github.com/repo-edu/repo-edu-sub001/internal/roster"
)

// Outcome classifies what happened to one imported record.
type Outcome string

const (
	Added        Outcome = "added"
	Updated      Outcome = "updated"
	Unchanged    Outcome = "unchanged"
	MissingEmail Outcome = "missing_email"
)

// Summary counts outcomes of a member import.
type Summary struct {
	Added        int `json:"added"`
	Updated      int `json:"updated"`
	Unchanged    int `json:"unchanged"`
	MissingEmail int `json:"missing_email"`
}

// Total is the number of drafts processed.
func (s Summary) Total() int {
	return s.Added + s.Updated + s.Unchanged + s.MissingEmail
}

func (s *Summary) count(o Outcome) {
	switch o {
	case Added:
		s.Added++
	case Updated:
		s.Updated++
	case Unchanged:
		s.Unchanged++
	case MissingEmail:
		s.MissingEmail++
	}
}

// Record describes the outcome for a single draft, in input order.
// MemberID is empty for MissingEmail.
type Record struct {
	Index    int         `json:"index"`
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Role     roster.Role `json:"role"`
	Outcome  Outcome     `json:"outcome"`
	MemberID string      `json:"member_id,omitempty"`
}

// ImportResult is returned by ImportMembers.
type ImportResult struct {
	Summary Summary        `json:"summary"`
	Records []Record       `json:"records"`
	Roster  *roster.Roster `json:"-"`
}

// memberIndex finds members of one role by LMS user ID and normalized email.
type memberIndex struct {
	list    *[]roster.Member
	byLMSID map[string]int
	byEmail map[string]int
}

func newMemberIndex(list *[]roster.Member) *memberIndex {
	idx := &memberIndex{
		list:    list,
		byLMSID: make(map[string]int, len(*list)),
		byEmail: make(map[string]int, len(*list)),
	}
	for i := range *list {
		idx.add(i)
	}
	return idx
}

// add registers position i. Later positions win on key collisions.
func (idx *memberIndex) add(i int) {
	m := &(*idx.list)[i]
	if m.LMSUserID != "" {
		idx.byLMSID[m.LMSUserID] = i
	}
	if e := ident.NormalizeEmail(m.Email); e != "" {
		idx.byEmail[e] = i
	}
}

// reindex moves position i from its previous keys to its current ones.
// Old keys are dropped only while they still point at i.
func (idx *memberIndex) reindex(i int, oldLMSID, oldEmail string) {
	m := &(*idx.list)[i]
	if oldLMSID != "" && oldLMSID != m.LMSUserID {
		if j, ok := idx.byLMSID[oldLMSID]; ok && j == i {
			delete(idx.byLMSID, oldLMSID)
		}
	}
	if oldEmail != "" && oldEmail != ident.NormalizeEmail(m.Email) {
		if j, ok := idx.byEmail[oldEmail]; ok && j == i {
			delete(idx.byEmail, oldEmail)
		}
	}
	idx.add(i)
}

// match applies the key priority: LMS user ID, then normalized email.
func (idx *memberIndex) match(lmsID, email string) (int, bool) {
	if lmsID != "" {
		if i, ok := idx.byLMSID[lmsID]; ok {
			return i, true
		}
	}
	if i, ok := idx.byEmail[email]; ok {
		return i, true
	}
	return 0, false
}

// ImportMembers merges drafts into r in place and returns the per-record
// outcomes. Drafts are matched against existing members of the same role.
// Drafts sharing an email are processed in input order, so a later draft
// may update the member an earlier one just created.
func ImportMembers(r *roster.Roster, drafts []roster.MemberDraft) ImportResult {
	res := ImportResult{Roster: r, Records: make([]Record, 0, len(drafts))}
	indexes := map[roster.Role]*memberIndex{
		roster.RoleStudent: newMemberIndex(&r.Students),
		roster.RoleStaff:   newMemberIndex(&r.Staff),
	}

	for i, d := range drafts {
		role := d.Role
		if role != roster.RoleStaff {
			role = roster.RoleStudent
		}
		email := ident.NormalizeEmail(d.Email)
		rec := Record{Index: i, Name: strings.TrimSpace(d.Name), Email: email, Role: role}

		if email == "" {
			rec.Outcome = MissingEmail
			res.Summary.count(rec.Outcome)
			res.Records = append(res.Records, rec)
			continue
		}

		idx := indexes[role]
		lmsID := strings.TrimSpace(d.LMSUserID)
		if pos, ok := idx.match(lmsID, email); ok {
			m := &(*idx.list)[pos]
			oldLMSID, oldEmail := m.LMSUserID, ident.NormalizeEmail(m.Email)
			if applyDraft(m, d) {
				rec.Outcome = Updated
			} else {
				rec.Outcome = Unchanged
			}
			rec.MemberID = m.ID
			idx.reindex(pos, oldLMSID, oldEmail)
		} else {
			m := roster.NewMember(d)
			*idx.list = append(*idx.list, m)
			idx.add(len(*idx.list) - 1)
			rec.Outcome = Added
			rec.MemberID = m.ID
		}
		res.Summary.count(rec.Outcome)
		res.Records = append(res.Records, rec)
	}
	return res
}

// applyDraft updates the mutable fields of m from d and reports whether
// anything changed. The member ID is never touched.
func applyDraft(m *roster.Member, d roster.MemberDraft) bool {
	changed := false
	set := func(dst *string, v string) {
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}

	set(&m.Name, strings.TrimSpace(d.Name))
	set(&m.Email, ident.NormalizeEmail(d.Email))
	set(&m.StudentNumber, strings.TrimSpace(d.StudentNumber))
	if m.LMSUserID == "" {
		set(&m.LMSUserID, strings.TrimSpace(d.LMSUserID))
	}

	if u := ident.NormalizeGitUsername(d.GitUsername); u != "" && u != m.GitUsername {
		m.GitUsername = u
		m.GitUsernameStatus = roster.GitUsernameUnknown
		changed = true
	}

	if d.Status != "" && d.Status != m.Status {
		m.Status = d.Status
		changed = true
	}

	for k, v := range d.CustomFields {
		if cur, ok := m.CustomFields[k]; ok && cur == v {
			continue
		}
		if m.CustomFields == nil {
			m.CustomFields = make(map[string]string, len(d.CustomFields))
		}
		m.CustomFields[k] = v
		changed = true
	}
	return changed
}
