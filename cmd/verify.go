package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/repo-edu/repo-edu-sub001/internal/platform"
	"github.com/repo-edu/repo-edu-sub001/internal/roster"
	"github.com/repo-edu/repo-edu-sub001/internal/style"
	"github.com/repo-edu/repo-edu-sub001/internal/verify"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the platform connection and members' git usernames",
}

var verifyPlatformCmd = &cobra.Command{
	Use:   "platform",
	Short: "Check that the configured credentials work",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		p, err := platform.New(a.cfg.PlatformConfig())
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		who, err := p.VerifyCredentials(ctx)
		if err != nil {
			return fmt.Errorf("verifying %s credentials: %w", p.Name(), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s connected to %s as %s\n", style.SuccessPrefix, p.Name(), style.Bold.Render(who.Username))
		return nil
	},
}

var verifyUsernamesCmd = &cobra.Command{
	Use:   "usernames",
	Short: "Mark each member's git username verified or invalid",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		r, err := a.load()
		if err != nil {
			return err
		}
		p, err := platform.New(a.cfg.PlatformConfig())
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()

		res := verify.GitUsernames(ctx, r, p, a.cfg.MaxConcurrency)
		if err := a.update(func(stored *roster.Roster) error {
			copyUsernameStatus(stored, r)
			return nil
		}); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %d verified, %d invalid, %d without username\n", style.SuccessPrefix, res.Verified, res.Invalid, res.Skipped)
		names := make([]string, 0, len(res.Errors))
		for name := range res.Errors {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "  %s %s\n", style.WarningPrefix, res.Errors[name])
		}
		if res.Invalid > 0 {
			return &ExitError{Code: 2}
		}
		return nil
	},
}

// copyUsernameStatus carries verification results from src to dst for
// members whose username did not change while the checks ran.
func copyUsernameStatus(dst, src *roster.Roster) {
	checked := src.MemberIndex()
	for _, m := range dst.MemberIndex() {
		if c, ok := checked[m.ID]; ok && c.GitUsername == m.GitUsername {
			m.GitUsernameStatus = c.GitUsernameStatus
		}
	}
}

func init() {
	verifyCmd.AddCommand(verifyPlatformCmd, verifyUsernamesCmd)
	rootCmd.AddCommand(verifyCmd)
}
