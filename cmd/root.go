package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/repo-edu/repo-edu-sub001/internal/config"
)

var (
	cfgFile     string
	verbose     bool
	profileFlag string
)

var rootCmd = &cobra.Command{
	Use:   "redu",
	Short: "Course roster reconciliation and repository provisioning",
	Long: `redu keeps a course roster in sync with your LMS or spreadsheets,
validates groups and assignments, and creates, clones or deletes one
repository per group on GitHub, GitLab, Gitea or a local directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExitError carries a process exit code for runs that completed but did
// not fully succeed.
type ExitError struct {
	Code int
	Msg  string
}

func (e *ExitError) Error() string { return e.Msg }

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		if exit.Msg != "" {
			fmt.Fprintln(os.Stderr, exit.Msg)
		}
		return exit.Code
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath(), "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&profileFlag, "profile", "p", "", "course profile (default from config)")
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
