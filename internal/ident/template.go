package ident

import "strings"

// DefaultRepoNameTemplate is used when an assignment has no template of its own.
const DefaultRepoNameTemplate = "{assignment}-{group}"

// Template placeholders understood by ExpandTemplate.
const (
	PlaceholderAssignment = "{assignment}"
	PlaceholderGroup      = "{group}"
	PlaceholderGroupID    = "{group_id}"
)

// TemplateVars are the values substituted into a repository name template.
type TemplateVars struct {
	Assignment string
	Group      string
	GroupID    string
}

// ExpandTemplate substitutes the {assignment}, {group} and {group_id}
// placeholders literally. Unknown placeholders are left as-is.
func ExpandTemplate(template string, vars TemplateVars) string {
	if template == "" {
		template = DefaultRepoNameTemplate
	}
	r := strings.NewReplacer(
		PlaceholderAssignment, vars.Assignment,
		PlaceholderGroupID, vars.GroupID,
		PlaceholderGroup, vars.Group,
	)
	return r.Replace(template)
}

// RepoName expands the template and slugifies the result.
func RepoName(template string, vars TemplateVars) string {
	return Slugify(ExpandTemplate(template, vars))
}
