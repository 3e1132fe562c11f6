package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/repo-edu/repo-edu-sub001/internal/roster"
	"github.com/repo-edu/repo-edu-sub001/internal/style"
	"github.com/repo-edu/repo-edu-sub001/internal/validate"
)

var (
	assignmentGroupSet    string
	assignmentTemplate    string
	assignmentType        string
	assignmentDescription string
)

var assignmentCmd = &cobra.Command{
	Use:     "assignment",
	Aliases: []string{"assignments"},
	Short:   "Manage assignments",
}

var assignmentAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add an assignment bound to a group set",
	Long: `Adds an assignment. Individual assignments default to the
Individual Students group set; group assignments need --group-set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editRoster(cmd, func(r *roster.Roster) (string, error) {
			typ := roster.AssignmentType(assignmentType)
			if typ != roster.AssignmentIndividual && typ != roster.AssignmentGroup {
				return "", fmt.Errorf("invalid --type %q: must be individual or group", assignmentType)
			}
			roster.EnsureSystemGroupSets(r)
			setKey := assignmentGroupSet
			if setKey == "" {
				if typ != roster.AssignmentIndividual {
					return "", errors.New("group assignments need --group-set")
				}
				setKey = roster.IndividualStudentsSetName
			}
			gs, err := r.LookupGroupSet(setKey)
			if err != nil {
				return "", err
			}
			a, err := r.AddAssignment(roster.Assignment{
				Name:             args[0],
				Description:      assignmentDescription,
				Type:             typ,
				GroupSetID:       gs.ID,
				RepoNameTemplate: assignmentTemplate,
			})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("added assignment %s on %s (%d groups)", a.Name, gs.Name, len(gs.Groups)), nil
		})
	},
}

var assignmentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List assignments",
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
		if len(r.Assignments) == 0 {
			fmt.Fprintln(out, style.Dim.Render("no assignments"))
			return nil
		}
		rows := [][]string{{"NAME", "TYPE", "GROUP SET", "TEMPLATE", "ID"}}
		for i := range r.Assignments {
			asg := &r.Assignments[i]
			setName := style.Error.Render("missing")
			if gs, ok := r.GroupSetByID(asg.GroupSetID); ok {
				setName = gs.Name
			}
			rows = append(rows, []string{asg.Name, string(asg.Type), setName,
				roster.RepoNameTemplate(asg, a.cfg.RepoNameTemplate), asg.ID})
		}
		style.Table(out, rows)
		return nil
	},
}

var assignmentRemoveCmd = &cobra.Command{
	Use:   "remove <assignment>",
	Short: "Remove an assignment; its repositories are left alone",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editRoster(cmd, func(r *roster.Roster) (string, error) {
			asg, err := r.LookupAssignment(args[0])
			if err != nil {
				return "", err
			}
			name := asg.Name
			if err := r.RemoveAssignment(asg.ID); err != nil {
				return "", err
			}
			return "removed assignment " + name, nil
		})
	},
}

var assignmentValidateCmd = &cobra.Command{
	Use:   "validate <assignment>",
	Short: "Check an assignment's groups before creating repositories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		r, err := a.load()
		if err != nil {
			return err
		}
		res, err := validate.Assignment(r, args[0], a.validateOptions())
		if err != nil {
			return err
		}
		if printIssues(cmd.OutOrStdout(), r, res) {
			return &ExitError{Code: 2}
		}
		return nil
	},
}

func init() {
	assignmentAddCmd.Flags().StringVarP(&assignmentGroupSet, "group-set", "g", "", "group set name or ID")
	assignmentAddCmd.Flags().StringVar(&assignmentTemplate, "template", "", "repository name template (default from config)")
	assignmentAddCmd.Flags().StringVar(&assignmentType, "type", string(roster.AssignmentGroup), "individual or group")
	assignmentAddCmd.Flags().StringVar(&assignmentDescription, "description", "", "description used for created repositories")

	assignmentCmd.AddCommand(assignmentAddCmd, assignmentListCmd, assignmentRemoveCmd, assignmentValidateCmd)
	rootCmd.AddCommand(assignmentCmd)
}
