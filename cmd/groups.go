package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/repo-edu/repo-edu-sub001/internal/history"
	"github.com/repo-edu/repo-edu-sub001/internal/importsrc"
	"github.com/repo-edu/repo-edu-sub001/internal/reconcile"
	"github.com/repo-edu/repo-edu-sub001/internal/roster"
	"github.com/repo-edu/repo-edu-sub001/internal/style"
)

var groupSetName string

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Manage group sets and groups",
}

var groupsListCmd = &cobra.Command{
	Use:   "list [group-set]",
	Short: "List group sets, or the groups of one set",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		r, err := a.load()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(args) == 0 {
			rows := [][]string{{"NAME", "KIND", "GROUPS", "ID"}}
			for _, gs := range r.GroupSets {
				rows = append(rows, []string{gs.Name, string(gs.Kind), fmt.Sprint(len(gs.Groups)), gs.ID})
			}
			style.Table(out, rows)
			return nil
		}
		gs, err := r.LookupGroupSet(args[0])
		if err != nil {
			return err
		}
		members := r.MemberIndex()
		rows := [][]string{{"GROUP", "MEMBERS", "ID"}}
		for _, g := range gs.Groups {
			names := make([]string, 0, len(g.MemberIDs))
			for _, id := range g.MemberIDs {
				if m, ok := members[id]; ok {
					names = append(names, m.Name)
				} else {
					names = append(names, style.Error.Render(id+" (unknown)"))
				}
			}
			rows = append(rows, []string{g.Name, strings.Join(names, ", "), g.ID})
		}
		style.Table(out, rows)
		return nil
	},
}

var groupsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Merge a group set from a CSV/XLSX file with group and email columns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		name := groupSetName
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		}
		tbl, err := importsrc.ReadFile(args[0], importSheet)
		if err != nil {
			return err
		}
		draft, err := importsrc.Groups(tbl, name)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		var (
			res   reconcile.GroupSetResult
			names map[string]string
		)
		err = a.update(func(r *roster.Roster) error {
			res = reconcile.ImportGroupSet(r, draft)
			names = groupSetNames(r)
			return nil
		})
		if err != nil {
			return err
		}
		a.recordImport(cmd.Context(), history.SourceGroups, args[0], reconcile.Summary{
			Added:     res.Summary.GroupsAdded,
			Updated:   res.Summary.GroupsUpdated,
			Unchanged: res.Summary.GroupsUnchanged,
		})
		printGroupSetResult(cmd.OutOrStdout(), names, res)
		return nil
	},
}

var groupsAddSetCmd = &cobra.Command{
	Use:   "add-set <name>",
	Short: "Create an empty local group set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editRoster(cmd, func(r *roster.Roster) (string, error) {
			if _, exists := r.GroupSetByName(args[0]); exists {
				return "", fmt.Errorf("group set %q already exists", args[0])
			}
			gs := r.AddGroupSet(args[0])
			return fmt.Sprintf("created group set %s (%s)", gs.Name, gs.ID), nil
		})
	},
}

var groupsAddCmd = &cobra.Command{
	Use:   "add <group-set> <group> [member-id|email]...",
	Short: "Add a group to a group set",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editRoster(cmd, func(r *roster.Roster) (string, error) {
			gs, err := r.LookupGroupSet(args[0])
			if err != nil {
				return "", err
			}
			ids := make([]string, 0, len(args)-2)
			for _, key := range args[2:] {
				m, err := findMember(r, key)
				if err != nil {
					return "", err
				}
				ids = append(ids, m.ID)
			}
			g, err := gs.AddGroup(args[1], ids...)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("added %s to %s with %d members", g.Name, gs.Name, len(g.MemberIDs)), nil
		})
	},
}

var groupsRenameCmd = &cobra.Command{
	Use:   "rename <group-set> <group> <new-name>",
	Short: "Rename a group",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editRoster(cmd, func(r *roster.Roster) (string, error) {
			gs, g, err := lookupGroup(r, args[0], args[1])
			if err != nil {
				return "", err
			}
			old := g.Name
			if err := gs.RenameGroup(g.ID, args[2]); err != nil {
				return "", err
			}
			return fmt.Sprintf("renamed %s to %s", old, strings.TrimSpace(args[2])), nil
		})
	},
}

var groupsAddMemberCmd = &cobra.Command{
	Use:   "add-member <group-set> <group> <member-id|email>",
	Short: "Add a member to a group",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editRoster(cmd, func(r *roster.Roster) (string, error) {
			gs, g, err := lookupGroup(r, args[0], args[1])
			if err != nil {
				return "", err
			}
			m, err := findMember(r, args[2])
			if err != nil {
				return "", err
			}
			if err := gs.AddGroupMember(g.ID, m.ID); err != nil {
				return "", err
			}
			return fmt.Sprintf("added %s to %s", m.Name, g.Name), nil
		})
	},
}

var groupsRemoveMemberCmd = &cobra.Command{
	Use:   "remove-member <group-set> <group> <member-id|email>",
	Short: "Remove a member from a group",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editRoster(cmd, func(r *roster.Roster) (string, error) {
			gs, g, err := lookupGroup(r, args[0], args[1])
			if err != nil {
				return "", err
			}
			m, err := findMember(r, args[2])
			if err != nil {
				return "", err
			}
			if err := gs.RemoveGroupMember(g.ID, m.ID); err != nil {
				return "", err
			}
			return fmt.Sprintf("removed %s from %s", m.Name, g.Name), nil
		})
	},
}

func lookupGroup(r *roster.Roster, setKey, groupKey string) (*roster.GroupSet, *roster.Group, error) {
	gs, err := r.LookupGroupSet(setKey)
	if err != nil {
		return nil, nil, err
	}
	g, err := gs.LookupGroup(groupKey)
	if err != nil {
		return nil, nil, err
	}
	return gs, g, nil
}

// editRoster loads the roster, applies edit and saves it, printing the
// message edit returns.
func editRoster(cmd *cobra.Command, edit func(*roster.Roster) (string, error)) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	var msg string
	err = a.update(func(r *roster.Roster) error {
		var err error
		msg, err = edit(r)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", style.SuccessPrefix, msg)
	return nil
}

func init() {
	groupsImportCmd.Flags().StringVar(&groupSetName, "set", "", "group set name (default file name)")
	groupsImportCmd.Flags().StringVar(&importSheet, "sheet", "", "XLSX sheet to read (default first sheet)")

	groupsCmd.AddCommand(groupsListCmd, groupsImportCmd, groupsAddSetCmd, groupsAddCmd,
		groupsRenameCmd, groupsAddMemberCmd, groupsRemoveMemberCmd)
	rootCmd.AddCommand(groupsCmd)
}
