package reconcile

import (
	"strings"

	"github.com/repo-edu/repo-edu-sub001/internal/ident"
	"github.com/repo-edu/repo-edu-sub001/internal/roster"
)

// UnresolvedMember is a group member reference that matched nobody.
type UnresolvedMember struct {
	Group string `json:"group"`
	Ref   string `json:"ref"`
}

// GroupSetSummary counts outcomes of a group-set import.
type GroupSetSummary struct {
	GroupsAdded     int `json:"groups_added"`
	GroupsUpdated   int `json:"groups_updated"`
	GroupsUnchanged int `json:"groups_unchanged"`
}

// GroupSetResult is returned by ImportGroupSet.
type GroupSetResult struct {
	GroupSetID string             `json:"group_set_id"`
	Created    bool               `json:"created"`
	Summary    GroupSetSummary    `json:"summary"`
	Unresolved []UnresolvedMember `json:"unresolved,omitempty"`
}

// ImportGroupSet merges draft into r. The target set is matched by LMS
// group-set ID, then by name among imported and local sets, and created as
// an imported set otherwise. Groups are matched the same way and keep their
// IDs; each matched group's membership is replaced by the resolved members
// of the draft. Groups absent from the draft are left alone.
func ImportGroupSet(r *roster.Roster, draft roster.GroupSetDraft) GroupSetResult {
	var res GroupSetResult
	gs := findTargetSet(r, draft)
	if gs == nil {
		r.GroupSets = append(r.GroupSets, roster.GroupSet{
			ID:            ident.NewID(),
			Name:          strings.TrimSpace(draft.Name),
			Kind:          roster.KindImported,
			LMSGroupSetID: draft.LMSGroupSetID,
			Groups:        []roster.Group{},
		})
		gs = &r.GroupSets[len(r.GroupSets)-1]
		res.Created = true
	} else if gs.LMSGroupSetID == "" && draft.LMSGroupSetID != "" {
		gs.LMSGroupSetID = draft.LMSGroupSetID
	}
	res.GroupSetID = gs.ID

	resolve := newMemberResolver(r)
	for _, gd := range draft.Groups {
		name := strings.TrimSpace(gd.Name)
		ids, missing := resolve.members(gd)
		for _, ref := range missing {
			res.Unresolved = append(res.Unresolved, UnresolvedMember{Group: name, Ref: ref})
		}

		g := findGroup(gs, gd)
		if g == nil {
			gs.Groups = append(gs.Groups, roster.Group{
				ID:         ident.NewID(),
				Name:       name,
				MemberIDs:  ids,
				LMSGroupID: gd.LMSGroupID,
			})
			res.Summary.GroupsAdded++
			continue
		}

		changed := false
		if name != "" && g.Name != name {
			g.Name = name
			changed = true
		}
		if g.LMSGroupID == "" && gd.LMSGroupID != "" {
			g.LMSGroupID = gd.LMSGroupID
			changed = true
		}
		if !equalIDs(g.MemberIDs, ids) {
			g.MemberIDs = ids
			changed = true
		}
		if changed {
			res.Summary.GroupsUpdated++
		} else {
			res.Summary.GroupsUnchanged++
		}
	}
	return res
}

func findTargetSet(r *roster.Roster, d roster.GroupSetDraft) *roster.GroupSet {
	if d.LMSGroupSetID != "" {
		for i := range r.GroupSets {
			if r.GroupSets[i].LMSGroupSetID == d.LMSGroupSetID {
				return &r.GroupSets[i]
			}
		}
	}
	name := strings.TrimSpace(d.Name)
	for i := range r.GroupSets {
		gs := &r.GroupSets[i]
		if !gs.Kind.IsSystem() && strings.EqualFold(gs.Name, name) {
			return gs
		}
	}
	return nil
}

func findGroup(gs *roster.GroupSet, d roster.GroupDraft) *roster.Group {
	if d.LMSGroupID != "" {
		for i := range gs.Groups {
			if gs.Groups[i].LMSGroupID == d.LMSGroupID {
				return &gs.Groups[i]
			}
		}
	}
	name := strings.TrimSpace(d.Name)
	for i := range gs.Groups {
		if strings.EqualFold(gs.Groups[i].Name, name) {
			return &gs.Groups[i]
		}
	}
	return nil
}

// memberResolver maps LMS user IDs and emails to member IDs across both roles.
type memberResolver struct {
	byLMSID map[string]string
	byEmail map[string]string
}

func newMemberResolver(r *roster.Roster) *memberResolver {
	res := &memberResolver{byLMSID: map[string]string{}, byEmail: map[string]string{}}
	for _, list := range [][]roster.Member{r.Students, r.Staff} {
		for _, m := range list {
			if m.LMSUserID != "" {
				if _, ok := res.byLMSID[m.LMSUserID]; !ok {
					res.byLMSID[m.LMSUserID] = m.ID
				}
			}
			if e := ident.NormalizeEmail(m.Email); e != "" {
				if _, ok := res.byEmail[e]; !ok {
					res.byEmail[e] = m.ID
				}
			}
		}
	}
	return res
}

// members resolves the draft's references in order, LMS IDs first, and
// returns the deduplicated member IDs plus the references that did not match.
func (res *memberResolver) members(d roster.GroupDraft) ([]string, []string) {
	ids := make([]string, 0, len(d.MemberLMSIDs)+len(d.MemberEmails))
	seen := map[string]bool{}
	var missing []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, ref := range d.MemberLMSIDs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if id, ok := res.byLMSID[ref]; ok {
			add(id)
		} else {
			missing = append(missing, ref)
		}
	}
	for _, ref := range d.MemberEmails {
		email := ident.NormalizeEmail(ref)
		if email == "" {
			continue
		}
		if id, ok := res.byEmail[email]; ok {
			add(id)
		} else {
			missing = append(missing, email)
		}
	}
	return ids, missing
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
