package roster

import (
	"sort"
	"strings"
	"unicode"

	"github.com/repo-edu/repo-edu-sub001/internal/ident"
)

// Member-derived placeholders, resolved per group before ident.ExpandTemplate.
const (
	PlaceholderSurnames = "{surnames}"
	PlaceholderInitials = "{initials}"
)

// RepoNameTemplate returns the template that applies to a, falling back to
// fallback and then to ident.DefaultRepoNameTemplate.
func RepoNameTemplate(a *Assignment, fallback string) string {
	switch {
	case a != nil && a.RepoNameTemplate != "":
		return a.RepoNameTemplate
	case fallback != "":
		return fallback
	default:
		return ident.DefaultRepoNameTemplate
	}
}

// RepoName computes the repository name of group g for assignment a.
// Members are looked up in members; IDs that do not resolve are ignored.
func RepoName(a *Assignment, g *Group, fallbackTemplate string, members map[string]*Member) string {
	tmpl := RepoNameTemplate(a, fallbackTemplate)
	if strings.Contains(tmpl, PlaceholderSurnames) || strings.Contains(tmpl, PlaceholderInitials) {
		surnames, initials := memberNameParts(g, members)
		tmpl = strings.NewReplacer(
			PlaceholderSurnames, surnames,
			PlaceholderInitials, initials,
		).Replace(tmpl)
	}
	return ident.RepoName(tmpl, ident.TemplateVars{
		Assignment: a.Name,
		Group:      g.Name,
		GroupID:    g.ID,
	})
}

// memberNameParts returns the group's surnames joined by "-" and the
// members' initials joined by "-", both ordered by surname.
func memberNameParts(g *Group, members map[string]*Member) (string, string) {
	type person struct{ surname, initials string }
	var people []person
	for _, id := range g.MemberIDs {
		m, ok := members[id]
		if !ok {
			continue
		}
		fields := strings.Fields(m.Name)
		if len(fields) == 0 {
			continue
		}
		var init strings.Builder
		for _, f := range fields {
			for _, c := range f {
				init.WriteRune(unicode.ToLower(c))
				break
			}
		}
		people = append(people, person{surname: fields[len(fields)-1], initials: init.String()})
	}
	sort.SliceStable(people, func(i, j int) bool {
		return strings.ToLower(people[i].surname) < strings.ToLower(people[j].surname)
	})

	surnames := make([]string, len(people))
	initials := make([]string, len(people))
	for i, p := range people {
		surnames[i] = p.surname
		initials[i] = p.initials
	}
	return strings.Join(surnames, "-"), strings.Join(initials, "-")
}
