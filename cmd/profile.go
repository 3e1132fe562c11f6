package cmd

import (
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/repo-edu/repo-edu-sub001/internal/style"
)

var profileYes bool

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage course profiles",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles with a saved roster",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		names, err := a.rosters.Profiles()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(names) == 0 {
			fmt.Fprintln(out, style.Dim.Render("no profiles yet, import a roster to create one"))
			return nil
		}
		for _, name := range names {
			marker := " "
			if name == a.profile {
				marker = style.ArrowPrefix
			}
			fmt.Fprintf(out, "%s %s\n", marker, name)
		}
		return nil
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <profile>",
	Short: "Delete a profile and its roster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if !profileYes {
			if err := confirm(fmt.Sprintf("Delete profile %s and its roster", args[0])); err != nil {
				return err
			}
		}
		if err := a.rosters.Delete(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s deleted profile %s\n", style.SuccessPrefix, args[0])
		return nil
	},
}

// confirm asks a yes/no question and returns an error unless the answer is yes.
func confirm(label string) error {
	p := promptui.Prompt{Label: label, IsConfirm: true}
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("aborted")
	}
	return nil
}

func init() {
	profileDeleteCmd.Flags().BoolVarP(&profileYes, "yes", "y", false, "do not ask for confirmation")
	profileCmd.AddCommand(profileListCmd, profileDeleteCmd)
	rootCmd.AddCommand(profileCmd)
}
