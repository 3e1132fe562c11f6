package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/repo-edu/repo-edu-sub001/internal/history"
	"github.com/repo-edu/repo-edu-sub001/internal/importsrc"
	"github.com/repo-edu/repo-edu-sub001/internal/lms"
	"github.com/repo-edu/repo-edu-sub001/internal/reconcile"
	"github.com/repo-edu/repo-edu-sub001/internal/roster"
	"github.com/repo-edu/repo-edu-sub001/internal/storage"
	"github.com/repo-edu/repo-edu-sub001/internal/style"
	"github.com/repo-edu/repo-edu-sub001/internal/validate"
)

var (
	importSheet  string
	importRole   string
	syncCourse   string
	syncGroups   bool
	exportFormat string
)

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Import, inspect and validate the course roster",
}

var rosterImportCmd = &cobra.Command{
	Use:   "import <file|glob>...",
	Short: "Merge members from CSV or XLSX files into the roster",
	Long: `Reads members from one or more CSV/XLSX files and merges them into the
roster. Existing members are matched by LMS user ID and then by email and
keep their IDs; nobody is removed. Globs such as "rosters/**/*.csv" are
expanded.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		paths, err := importsrc.ExpandPaths(args)
		if err != nil {
			return err
		}

		var drafts []roster.MemberDraft
		out := cmd.OutOrStdout()
		for _, path := range paths {
			tbl, err := importsrc.ReadFile(path, importSheet)
			if err != nil {
				return err
			}
			d, rowErrs, err := importsrc.Members(tbl)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			for _, re := range rowErrs {
				fmt.Fprintf(out, "%s %s: %s\n", style.WarningPrefix, path, re)
			}
			drafts = append(drafts, d...)
		}
		if importRole != "" {
			role := roster.Role(strings.ToLower(importRole))
			if role != roster.RoleStudent && role != roster.RoleStaff {
				return fmt.Errorf("invalid --role %q: must be student or staff", importRole)
			}
			for i := range drafts {
				drafts[i].Role = role
			}
		}

		var res reconcile.ImportResult
		err = a.updateOrCreate(func(r *roster.Roster) error {
			res = reconcile.ImportMembers(r, drafts)
			roster.EnsureSystemGroupSets(r)
			return nil
		})
		if err != nil {
			return err
		}
		a.recordImport(cmd.Context(), history.SourceFile, strings.Join(paths, ","), res.Summary)

		printSummary(out, res.Summary)
		printMissingEmail(out, res)
		return nil
	},
}

var rosterSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Merge members (and optionally group sets) from the configured LMS",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		course := syncCourse
		if course == "" {
			r, err := a.load()
			switch {
			case err == nil && r.Connection != nil:
				course = r.Connection.CourseID
			case err != nil && !errors.Is(err, storage.ErrRosterNotFound):
				return err
			}
		}
		if course == "" {
			return errors.New("no course given: pass --course the first time")
		}
		client, err := lms.New(lms.Config{Kind: roster.LMSKind(a.cfg.LMS.Kind), BaseURL: a.cfg.LMS.BaseURL, Token: a.cfg.LMSToken()})
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()

		batch, err := fetchFromLMS(ctx, client, course, syncGroups)
		if err != nil {
			return err
		}
		var (
			res          reconcile.ImportResult
			groupResults []reconcile.GroupSetResult
			names        map[string]string
		)
		err = a.updateOrCreate(func(r *roster.Roster) error {
			res, groupResults = batch.apply(r)
			r.Connection = &roster.Connection{
				Kind:       client.Kind(),
				BaseURL:    a.cfg.LMS.BaseURL,
				CourseID:   course,
				CourseName: batch.course.Name,
				LastSync:   time.Now().UTC(),
			}
			roster.EnsureSystemGroupSets(r)
			names = groupSetNames(r)
			return nil
		})
		if err != nil {
			return err
		}
		a.recordImport(ctx, history.SourceLMS, string(client.Kind())+":"+course, res.Summary)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s synced %s\n", style.ArrowPrefix, style.Bold.Render(batch.course.Name))
		printSummary(out, res.Summary)
		printMissingEmail(out, res)
		for _, gr := range groupResults {
			printGroupSetResult(out, names, gr)
		}
		return nil
	},
}

// lmsBatch is what one sync fetched from the LMS, ready to merge.
type lmsBatch struct {
	course  *lms.Course
	members []roster.MemberDraft
	sets    []roster.GroupSetDraft
}

// fetchFromLMS fetches course members and, if asked, group sets. It does
// not touch the roster so the slow part of a sync runs without the
// profile lock.
func fetchFromLMS(ctx context.Context, client lms.Client, course string, groups bool) (*lmsBatch, error) {
	info, err := client.FetchCourse(ctx, course)
	if err != nil {
		return nil, fmt.Errorf("fetching course: %w", err)
	}
	drafts, err := client.FetchCourseUsers(ctx, course)
	if err != nil {
		return nil, err
	}
	b := &lmsBatch{course: info, members: drafts}
	if groups {
		if b.sets, err = client.FetchCourseGroups(ctx, course); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *lmsBatch) apply(r *roster.Roster) (reconcile.ImportResult, []reconcile.GroupSetResult) {
	res := reconcile.ImportMembers(r, b.members)
	var groupResults []reconcile.GroupSetResult
	for _, set := range b.sets {
		groupResults = append(groupResults, reconcile.ImportGroupSet(r, set))
	}
	return res, groupResults
}

var rosterShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List roster members",
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
		if r.Connection != nil {
			fmt.Fprintf(out, "%s %s %s (last sync %s)\n\n", style.Dim.Render("course"),
				r.Connection.CourseName, style.Dim.Render(string(r.Connection.Kind)+":"+r.Connection.CourseID),
				r.Connection.LastSync.Format(time.DateTime))
		}
		renderMembers(out, "Students", r.Students)
		fmt.Fprintln(out)
		renderMembers(out, "Staff", r.Staff)
		return nil
	},
}

func renderMembers(w io.Writer, title string, members []roster.Member) {
	fmt.Fprintf(w, "%s (%d)\n", style.Header.Render(title), len(members))
	if len(members) == 0 {
		return
	}
	rows := [][]string{{"NAME", "EMAIL", "GIT USERNAME", "STATUS", "ID"}}
	for _, m := range members {
		username := m.GitUsername
		if username != "" && m.GitUsernameStatus != "" {
			username += " (" + string(m.GitUsernameStatus) + ")"
		}
		rows = append(rows, []string{m.Name, m.Email, username, string(m.Status), m.ID})
	}
	style.Table(w, rows)
}

var rosterValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the roster for duplicate IDs and emails",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		r, err := a.load()
		if err != nil {
			return err
		}
		if printIssues(cmd.OutOrStdout(), r, validate.Roster(r)) {
			return &ExitError{Code: 2}
		}
		return nil
	},
}

var rosterExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the roster to stdout as JSON or YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		r, err := a.load()
		if err != nil {
			return err
		}
		return exportRoster(cmd.OutOrStdout(), r, exportFormat)
	},
}

func exportRoster(w io.Writer, r *roster.Roster, format string) error {
	switch strings.ToLower(format) {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q: must be json or yaml", format)
	}
}

var rosterRemoveCmd = &cobra.Command{
	Use:   "remove <member-id|email>",
	Short: "Remove a member from the roster and from all groups",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		var name string
		err = a.update(func(r *roster.Roster) error {
			m, err := findMember(r, args[0])
			if err != nil {
				return err
			}
			name = m.Name
			if err := r.RemoveMember(m.ID); err != nil {
				return err
			}
			roster.EnsureSystemGroupSets(r)
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s removed %s\n", style.SuccessPrefix, name)
		return nil
	},
}

// errUpToDate aborts an update that has nothing to save.
var errUpToDate = errors.New("already up to date")

var rosterSystemGroupsCmd = &cobra.Command{
	Use:   "sync-system-groups",
	Short: "Rebuild the Individual Students and Staff group sets",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		err = a.updateOrCreate(func(r *roster.Roster) error {
			if !roster.EnsureSystemGroupSets(r) {
				return errUpToDate
			}
			return nil
		})
		if errors.Is(err, errUpToDate) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s system group sets already up to date\n", style.SuccessPrefix)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s system group sets updated\n", style.SuccessPrefix)
		return nil
	},
}

func init() {
	rosterImportCmd.Flags().StringVar(&importSheet, "sheet", "", "XLSX sheet to read (default first sheet)")
	rosterImportCmd.Flags().StringVar(&importRole, "role", "", "force every imported member to student or staff")
	rosterSyncCmd.Flags().StringVar(&syncCourse, "course", "", "LMS course ID (Canvas) or membership URL (NRPS)")
	rosterSyncCmd.Flags().BoolVar(&syncGroups, "groups", false, "also import the course's group sets")
	rosterExportCmd.Flags().StringVar(&exportFormat, "format", "json", "output format: json or yaml")

	rosterCmd.AddCommand(rosterImportCmd, rosterSyncCmd, rosterShowCmd, rosterValidateCmd,
		rosterExportCmd, rosterRemoveCmd, rosterSystemGroupsCmd)
	rootCmd.AddCommand(rosterCmd)
}
